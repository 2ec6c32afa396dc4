package reply

import "github.com/mmynk/lineledger/internal/line"

// Postback data sent by the quick actions.
const (
	PostbackWeekSpend   = "expense_summary:week"
	PostbackMonthSpend  = "expense_summary:month"
	PostbackRecent      = "recent_records"
	PostbackSetBudget   = "set_budget"
	PostbackSummaryBase = "expense_summary:"
)

// QuickActions is the button row attached to confirmations and postback
// answers.
func QuickActions() []line.QuickAction {
	return []line.QuickAction{
		{Label: "本週支出", Data: PostbackWeekSpend},
		{Label: "本月支出", Data: PostbackMonthSpend},
		{Label: "最近記錄", Data: PostbackRecent},
		{Label: "設定預算", Data: PostbackSetBudget},
	}
}

// Text builds a text message, with the quick actions when withActions is set.
func Text(text string, withActions bool) line.Message {
	msg := line.NewTextMessage(text)
	if withActions {
		msg.QuickActions = QuickActions()
	}
	return msg
}
