package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/models"
	"github.com/mmynk/lineledger/internal/parser"
	"github.com/mmynk/lineledger/internal/service"
)

const unparsedText = "🤔 我無法理解您的訊息呢！\n\n" +
	"💡 記帳很簡單，直接告訴我：\n" +
	"• 「午餐 150 元」\n" +
	"• 「交通 50」\n" +
	"• 「收入 5000」\n\n" +
	"📋 或輸入 /help 查看完整指令說明"

const helpText = "📖 使用說明：\n\n" +
	"💬 直接輸入記帳訊息（例如：午餐 150 元、lunch 150）\n\n" +
	"📋 指令：\n" +
	"/list [數量] - 查詢最近的記錄（預設 10 筆，最多 50 筆）\n" +
	"/summary - 查看本月記帳摘要\n" +
	"/delete [編號] - 刪除記錄（例如：/delete i1 或 /delete o1）\n" +
	"/edit [編號] [金額] [類別] - 修改記錄（例如：/edit o1 120 food）\n" +
	"/budget - 查看本月預算狀態\n" +
	"/pet - 查看電子雞狀態\n" +
	"/savings 或 /goal - 查看儲蓄目標進度\n" +
	"/myid - 取得您的 LINE 用戶 ID 與連結代碼\n" +
	"/group - 群組分帳功能（僅在群組中使用）\n" +
	"/help - 顯示此說明\n\n" +
	"💰 設定預算：\n" + parser.BudgetTemplate + "\n\n" +
	"🎯 設定儲蓄目標：\n" +
	"「儲蓄目標 [名稱] [金額] [期限]」\n" +
	"例如：儲蓄目標 旅遊 50000 2025-12-31"

func (d *Dispatcher) registerCommands() {
	d.register("list", d.list, "ls", "recent", "records", "history", "查詢", "列表")
	d.register("summary", d.summary, "sum", "overview", "stats", "statistics", "摘要", "總結", "總覽", "統計", "總計")
	d.register("delete", d.deleteRecord, "del", "remove", "rm", "刪除", "刪掉", "移除")
	d.register("edit", d.edit, "modify", "修改", "編輯")
	d.register("budget", d.budget, "預算")
	d.register("pet", d.pet, "tamagotchi", "寵物", "電子雞")
	d.register("savings", d.savings, "goal", "goals", "儲蓄", "目標")
	d.register("myid", d.myID, "id", "userid", "我的id")
	d.register("group", d.group, "g", "群組", "分帳")
	d.register("help", d.help, "h", "幫助", "說明")
}

func (d *Dispatcher) help(context.Context, *Request, []string) (*Result, error) {
	return &Result{Text: helpText}, nil
}

func (d *Dispatcher) list(ctx context.Context, req *Request, args []string) (*Result, error) {
	n := service.DefaultListSize
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return &Result{Text: "❌ 數量必須是正整數，例如：/list 20"}, nil
		}
		n = v
	}

	txns, err := d.svc.Ledger.Recent(ctx, req.OwnerID, n)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return &Result{Text: "📝 目前沒有任何記帳記錄。"}, nil
	}

	income, expense := service.SplitByKind(txns)
	var b strings.Builder
	fmt.Fprintf(&b, "📝 最近的 %d 筆記錄：\n\n", len(txns))
	d.renderSection(&b, "💰 收入：", "i", income)
	d.renderSection(&b, "💸 支出：", "o", expense)
	b.WriteString("💡 使用 /delete [編號] 刪除、/edit [編號] [金額] 修改記錄（例如：/delete o1）")
	return &Result{Text: b.String()}, nil
}

func (d *Dispatcher) renderSection(b *strings.Builder, title, prefix string, txns []*models.Transaction) {
	if len(txns) == 0 {
		return
	}
	b.WriteString(title + "\n")
	for i, t := range txns {
		fmt.Fprintf(b, "%s%d. %s 元\n", prefix, i+1, money(t.Amount))
		fmt.Fprintf(b, "   類別：%s", t.Category)
		if t.Note != "" {
			fmt.Fprintf(b, " | %s", t.Note)
		}
		fmt.Fprintf(b, "\n   日期：%s\n\n", date(t.Date, d.location))
	}
}

func (d *Dispatcher) summary(ctx context.Context, req *Request, _ []string) (*Result, error) {
	s, err := d.svc.Ledger.Summary(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s 記帳摘要：\n\n", s.Month)
	fmt.Fprintf(&b, "總收入：%s 元\n總支出：%s 元\n餘額：%s 元", money(s.Income), money(s.Expense), money(s.Net()))
	if len(s.Categories) > 0 {
		b.WriteString("\n\n支出類別：")
		for _, c := range s.Categories {
			fmt.Fprintf(&b, "\n• %s：%s 元", c.Category, money(c.Amount))
		}
	}
	return &Result{Text: b.String(), QuickActions: true}, nil
}

func (d *Dispatcher) deleteRecord(ctx context.Context, req *Request, args []string) (*Result, error) {
	if len(args) == 0 {
		return &Result{Text: "❌ 請提供要刪除的記錄編號，例如：/delete o1\n使用 /list 查看記錄。"}, nil
	}
	txn, err := d.svc.Ledger.Delete(ctx, req.OwnerID, strings.Join(args, ""))
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:          fmt.Sprintf("✅ 已刪除：%s %s %s 元", kindLabel(txn.Kind), txn.Category, money(txn.Amount)),
		LedgerChanged: []string{req.OwnerID},
	}, nil
}

func (d *Dispatcher) edit(ctx context.Context, req *Request, args []string) (*Result, error) {
	if len(args) < 2 {
		return &Result{Text: "❌ 格式：/edit [編號] [金額] [類別]\n例如：/edit o1 120 food"}, nil
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return nil, err
	}
	category := strings.Join(args[2:], " ")

	txn, err := d.svc.Ledger.Edit(ctx, req.OwnerID, args[0], amount, category)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:          fmt.Sprintf("✅ 已更新：%s %s %s 元", kindLabel(txn.Kind), txn.Category, money(txn.Amount)),
		LedgerChanged: []string{req.OwnerID},
	}, nil
}

func (d *Dispatcher) budget(ctx context.Context, req *Request, _ []string) (*Result, error) {
	status, err := d.svc.Budgets.Status(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if status.Budget == nil {
		return &Result{
			Text:         "💰 本月尚未設定預算\n\n請按照以下格式輸入：\n\n" + parser.BudgetTemplate,
			QuickActions: true,
		}, nil
	}

	b := status.Budget
	var sb strings.Builder
	fmt.Fprintf(&sb, "💰 %s 預算狀態：\n\n本月已支出：%s 元", b.Month, money(status.Spent))
	limits := []struct {
		label string
		limit *decimal.Decimal
	}{
		{"單日預算", b.Daily},
		{"單週預算", b.Weekly},
		{"單月預算", b.EffectiveMonthly()},
	}
	for _, l := range limits {
		if models.Configured(l.limit) {
			fmt.Fprintf(&sb, "\n%s：%s 元", l.label, money(*l.limit))
		}
	}

	u, err := d.svc.Budgets.Usage(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		fmt.Fprintf(&sb, "\n使用率：%s%%", u.Percent.StringFixed(1))
	}

	if len(b.Categories) > 0 {
		spent := make(map[string]decimal.Decimal)
		for _, c := range status.Categories {
			spent[c.Category] = c.Amount
		}
		sb.WriteString("\n\n類別預算：")
		for _, c := range sortedKeys(b.Categories) {
			fmt.Fprintf(&sb, "\n• %s：%s / %s 元", c, money(spent[c]), money(b.Categories[c]))
		}
	}
	return &Result{Text: sb.String(), QuickActions: true}, nil
}

func (d *Dispatcher) pet(ctx context.Context, req *Request, _ []string) (*Result, error) {
	p, err := d.svc.Pets.Status(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("🐣 %s\n\n階段：%s\n等級：Lv.%d\n飽食度：%d%%\n心情值：%d%%\n健康度：%d%%\n連續記帳：%d 天\n總記帳筆數：%d 筆\n\n狀態：%s",
		p.Name, stageLabels[p.Stage], p.Level, p.Hunger, p.Happiness, p.Health,
		p.ConsecutiveDays, p.TotalTransactions, petStatus(p))}, nil
}

func (d *Dispatcher) savings(ctx context.Context, req *Request, _ []string) (*Result, error) {
	if _, err := d.svc.Goals.Recompute(ctx, req.OwnerID); err != nil {
		return nil, err
	}
	goals, err := d.svc.Goals.List(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if len(goals) == 0 {
		return &Result{Text: "💰 目前沒有設定儲蓄目標\n\n💡 設定方式：\n「儲蓄目標 [名稱] [金額]」\n例如：儲蓄目標 旅遊 50000"}, nil
	}

	var b strings.Builder
	b.WriteString("💰 儲蓄目標總覽：")
	now := d.clock.Now()
	for _, g := range goals {
		b.WriteString("\n\n")
		renderGoal(&b, g, now, d.location)
	}
	return &Result{Text: b.String()}, nil
}

func (d *Dispatcher) myID(_ context.Context, req *Request, _ []string) (*Result, error) {
	text := fmt.Sprintf("🆔 您的 LINE 用戶 ID：\n%s", req.LineUserID)
	if d.Links != nil {
		token, err := d.Links.Issue(req.OwnerID, req.LineUserID)
		if err != nil {
			slog.Error("Failed to issue link token", "owner_id", req.OwnerID, "error", err)
		} else {
			text += "\n\n🔑 帳號連結代碼（15 分鐘內有效）：\n" + token
		}
	}
	text += "\n\n💡 在網頁介面輸入以連結您的帳號"
	return &Result{Text: text}, nil
}

// parseAmount accepts "1,200", "NT$300" and "45.5".
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "nt$"), "$")
	s = strings.TrimSuffix(s, "元")
	v, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil || !v.IsPositive() {
		return decimal.Zero, service.ErrInvalidAmount
	}
	return v, nil
}
