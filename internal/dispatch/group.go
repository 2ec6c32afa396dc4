package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmynk/lineledger/internal/calculator"
	"github.com/mmynk/lineledger/internal/service"
)

const groupUsage = "📋 群組分帳指令：\n\n" +
	"/group new [總金額] [描述] - 建立新分帳\n" +
	"/group add [金額] - 記錄您的出資金額\n" +
	"/group split [金額] - 設定您的分攤金額\n" +
	"/group list - 查看當前分帳狀態\n" +
	"/group settle - 結算並匯入個人記帳\n" +
	"/group help - 顯示詳細說明"

const groupHelp = "📖 群組分帳使用說明：\n\n" +
	"1️⃣ 建立分帳：/group new 1000 晚餐\n" +
	"2️⃣ 記錄出資：/group add 300（您實際付了 300 元）\n" +
	"3️⃣ 設定分攤：/group split 250（您應分攤 250 元）\n" +
	"4️⃣ 查看狀態：/group list（顯示轉帳建議）\n" +
	"5️⃣ 結算匯入：/group settle（僅建立者可結算）\n\n" +
	"💡 結算後會為每位參與者建立「group contribution」支出與「group reimbursement」收入記錄"

var groupSubcommands = map[string]string{
	"new": "new", "新建": "new", "n": "new",
	"add": "add", "出資": "add", "a": "add",
	"split": "split", "分攤": "split", "s": "split",
	"list": "list", "查看": "list", "l": "list",
	"settle": "settle", "結算": "settle", "st": "settle",
	"help": "help", "幫助": "help", "h": "help",
}

func (d *Dispatcher) group(ctx context.Context, req *Request, args []string) (*Result, error) {
	if req.GroupID == "" {
		return nil, service.ErrGroupOnly
	}
	if len(args) == 0 {
		return &Result{Text: groupUsage}, nil
	}

	sub, ok := groupSubcommands[strings.ToLower(args[0])]
	if !ok {
		return &Result{Text: fmt.Sprintf("❌ 未知的子指令：%s\n使用 /group help 查看說明", args[0])}, nil
	}
	args = args[1:]

	switch sub {
	case "new":
		return d.groupNew(ctx, req, args)
	case "add":
		return d.groupAdd(ctx, req, args)
	case "split":
		return d.groupSplit(ctx, req, args)
	case "list":
		return d.groupList(ctx, req)
	case "settle":
		return d.groupSettle(ctx, req)
	default:
		return &Result{Text: groupHelp}, nil
	}
}

func (d *Dispatcher) groupNew(ctx context.Context, req *Request, args []string) (*Result, error) {
	if len(args) == 0 {
		return &Result{Text: "❌ 格式：/group new [總金額] [描述]\n例如：/group new 1000 晚餐"}, nil
	}
	total, err := parseAmount(args[0])
	if err != nil {
		return nil, err
	}
	expense, err := d.svc.Groups.Create(ctx, req.GroupID, req.LineUserID, total, strings.Join(args[1:], " "))
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("✅ 已建立群組分帳\n總金額：%s 元", money(expense.Total))
	if expense.Description != "" {
		text += "\n描述：" + expense.Description
	}
	text += "\n\n💡 使用 /group add [金額] 記錄您的出資\n使用 /group split [金額] 設定您的分攤"
	return &Result{Text: text}, nil
}

func (d *Dispatcher) groupAdd(ctx context.Context, req *Request, args []string) (*Result, error) {
	if len(args) == 0 {
		return &Result{Text: "❌ 格式：/group add [金額]\n例如：/group add 300"}, nil
	}
	paid, err := parseAmount(args[0])
	if err != nil {
		return nil, err
	}

	name := ""
	if d.Names != nil {
		name = d.Names.DisplayName(ctx, req.GroupID, req.LineUserID)
	}
	if _, err := d.svc.Groups.AddContribution(ctx, req.GroupID, req.LineUserID, name, paid); err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("✅ 已記錄您的出資：%s 元\n💡 使用 /group split [金額] 設定您的分攤金額", money(paid.Round(2)))}, nil
}

func (d *Dispatcher) groupSplit(ctx context.Context, req *Request, args []string) (*Result, error) {
	if len(args) == 0 {
		return &Result{Text: "❌ 格式：/group split [金額]\n例如：/group split 250"}, nil
	}
	share, err := parseAmount(args[0])
	if err != nil {
		return nil, err
	}
	if _, err := d.svc.Groups.SetShare(ctx, req.GroupID, req.LineUserID, share); err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("✅ 已設定您的分攤：%s 元", money(share.Round(2)))}, nil
}

func (d *Dispatcher) groupList(ctx context.Context, req *Request) (*Result, error) {
	expense, transfers, err := d.svc.Groups.Latest(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	status := "進行中"
	if expense.Settled {
		status = "已結算"
	}
	fmt.Fprintf(&b, "📋 分帳狀態（%s）：\n\n總金額：%s 元", status, money(expense.Total))
	if expense.Description != "" {
		b.WriteString("\n描述：" + expense.Description)
	}
	fmt.Fprintf(&b, "\n已出資：%s 元\n\n參與者：", money(expense.TotalPaid()))
	if len(expense.Participants) == 0 {
		b.WriteString("\n（尚無）")
	}
	for i, p := range expense.Participants {
		balance := p.Balance()
		note := "（已平衡）"
		switch {
		case p.Share.IsZero():
			note = "（尚未設定分攤）"
		case balance.GreaterThan(calculator.Epsilon):
			note = fmt.Sprintf("（應收 %s 元）", money(balance))
		case balance.LessThan(calculator.Epsilon.Neg()):
			note = fmt.Sprintf("（應付 %s 元）", money(balance.Abs()))
		}
		fmt.Fprintf(&b, "\n%d. %s 出資：%s 元，分攤：%s 元%s", i+1, p.Label(), money(p.Paid), money(p.Share), note)
	}

	b.WriteString("\n\n")
	renderTransfers(&b, transfers)
	if !expense.Settled {
		b.WriteString("\n\n💡 使用 /group settle 結算並匯入個人記帳")
	}
	return &Result{Text: b.String()}, nil
}

func (d *Dispatcher) groupSettle(ctx context.Context, req *Request) (*Result, error) {
	result, err := d.svc.Groups.Settle(ctx, req.GroupID, req.LineUserID)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("✅ 分帳已結算並匯入個人記帳\n\n")
	renderTransfers(&b, result.Transfers)
	fmt.Fprintf(&b, "\n\n💡 已建立 %d 筆個人記錄", len(result.Transactions))

	seen := make(map[string]bool)
	var owners []string
	for _, t := range result.Transactions {
		if !seen[t.OwnerID] {
			seen[t.OwnerID] = true
			owners = append(owners, t.OwnerID)
		}
	}
	return &Result{Text: b.String(), LedgerChanged: owners}, nil
}
