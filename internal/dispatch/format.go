package dispatch

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/calculator"
	"github.com/mmynk/lineledger/internal/models"
	"github.com/mmynk/lineledger/internal/service"
)

// money formats an amount with thousands separators and at most two
// decimals: 1234.5 -> "1,234.50", 150 -> "150".
func money(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole := d.Truncate(0)
	s := humanize.Comma(whole.IntPart())
	if frac := d.Sub(whole); !frac.IsZero() {
		s += strings.TrimPrefix(frac.StringFixed(2), "0")
	}
	return sign + s
}

func date(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006/01/02")
}

func kindLabel(k models.Kind) string {
	if k == models.KindIncome {
		return "收入"
	}
	return "支出"
}

var windowLabels = map[string]string{
	service.WindowDaily:   "單日",
	service.WindowWeekly:  "單週",
	service.WindowMonthly: "單月",
}

var periodLabels = map[string]string{
	calculator.PeriodWeek:      "本週",
	calculator.PeriodMonth:     "本月",
	calculator.PeriodLastWeek:  "上週",
	calculator.PeriodLastMonth: "上月",
}

// BreachWarning renders a breach as an addendum to a confirmation.
func BreachWarning(b *service.Breach) string {
	if b.Window == service.WindowCategory {
		return fmt.Sprintf("⚠️ 「%s」類別已超支！目前 %s / %s", b.Category, money(b.Spent), money(b.Limit))
	}
	return fmt.Sprintf("⚠️ 已超過%s預算！目前 %s / %s", windowLabels[b.Window], money(b.Spent), money(b.Limit))
}

// UsageAlert renders a budget usage notification.
func UsageAlert(u *service.Usage) string {
	var b strings.Builder
	switch {
	case u.Level >= 100:
		b.WriteString("⚠️ 預算超支提醒\n\n您本月的預算已超支！\n")
	case u.Level >= 90:
		fmt.Fprintf(&b, "🔴 預算警告\n\n您的預算使用率已達 %s%%！\n", u.Percent.StringFixed(1))
	default:
		fmt.Fprintf(&b, "🟡 預算提醒\n\n您的預算使用率已達 %s%%\n", u.Percent.StringFixed(1))
	}
	fmt.Fprintf(&b, "本月預算：%s 元\n已使用：%s 元", money(u.Limit), money(u.Spent))
	if remaining := u.Limit.Sub(u.Spent); remaining.IsNegative() {
		fmt.Fprintf(&b, "\n超支：%s 元", money(remaining.Abs()))
	} else {
		fmt.Fprintf(&b, "\n剩餘：%s 元", money(remaining))
	}
	return b.String()
}

// GoalCompleted renders a savings goal completion notification.
func GoalCompleted(g *models.SavingsGoal) string {
	return fmt.Sprintf("🎉 恭喜！儲蓄目標達成！\n\n目標名稱：%s\n目標金額：%s 元\n目前金額：%s 元\n\n繼續加油，完成更多目標！💪",
		g.Title, money(g.Target), money(g.Current))
}

func renderGoal(b *strings.Builder, g *models.SavingsGoal, now time.Time, loc *time.Location) {
	icon := "🎯"
	if g.Completed {
		icon = "✅"
	}
	fmt.Fprintf(b, "%s %s\n", icon, g.Title)
	fmt.Fprintf(b, "目標：%s 元\n", money(g.Target))
	fmt.Fprintf(b, "目前：%s 元（%s%%）\n", money(g.Current), g.Progress().StringFixed(1))
	fmt.Fprintf(b, "還需：%s 元", money(g.Remaining()))
	if g.Deadline != nil {
		days := int(g.Deadline.Sub(calculator.StartOfDay(now)).Hours() / 24)
		if days < 0 {
			days = 0
		}
		fmt.Fprintf(b, "\n期限：%s（剩餘 %d 天）", date(*g.Deadline, loc), days)
	}
}

func renderTransfers(b *strings.Builder, transfers []calculator.Transfer) {
	if len(transfers) == 0 {
		b.WriteString("✅ 分帳已平衡，無需轉帳")
		return
	}
	b.WriteString("💰 轉帳建議：\n")
	for i, t := range transfers {
		fmt.Fprintf(b, "%d. %s → %s：%s 元\n", i+1, shortName(t.FromName, t.From), shortName(t.ToName, t.To), money(t.Amount))
	}
}

func shortName(name, id string) string {
	if name != "" {
		return name
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func petStatus(p *models.Pet) string {
	switch p.State {
	case models.PetStateSick:
		return "我生病了，需要好好照顧..."
	case models.PetStateHungry:
		return "肚子好餓，快來記帳餵我！"
	case models.PetStateHappy:
		return "吃飽了，心情很好！"
	case models.PetStateSleepy:
		return "好睏喔..."
	default:
		return "等待你的照顧..."
	}
}

var stageLabels = map[models.PetStage]string{
	models.PetStageEgg:   "蛋",
	models.PetStageBaby:  "嬰兒期",
	models.PetStageChild: "兒童期",
	models.PetStageAdult: "成年期",
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
