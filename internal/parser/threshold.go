package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/models"
)

// BudgetThresholds is a parsed budget-setting message.
type BudgetThresholds struct {
	Daily   decimal.Decimal
	Weekly  decimal.Decimal
	Monthly decimal.Decimal
}

// GoalRequest is a parsed savings-goal message.
type GoalRequest struct {
	Title    string
	Target   decimal.Decimal
	Deadline *time.Time
}

var (
	labelLinePattern = regexp.MustCompile(`^\s*([^:：]+?)\s*[:：]\s*(.*?)\s*$`)

	goalPattern = regexp.MustCompile(
		`(?i)^\s*(?:設定儲蓄目標|儲蓄目標|set savings goal|savings goal)[:：\s]+(\D+?)\s+(\d+(?:\.\d+)?)(?:\s+(\S+))?\s*$`)
	datePattern = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)
)

var budgetLabels = map[string]string{
	"單日預算":           "daily",
	"每日預算":           "daily",
	"daily":          "daily",
	"daily budget":   "daily",
	"單週預算":           "weekly",
	"每週預算":           "weekly",
	"weekly":         "weekly",
	"weekly budget":  "weekly",
	"單月預算":           "monthly",
	"每月預算":           "monthly",
	"monthly":        "monthly",
	"monthly budget": "monthly",
}

// BudgetTemplate is the text users fill in to set thresholds.
const BudgetTemplate = "單日預算：1000\n單週預算：5000\n單月預算：20000"

// ParseBudget matches the three-line budget template. Every line is
// "label: number" with an ASCII or full-width colon. It returns nil when
// any of daily, weekly or monthly is missing, non-numeric or negative.
func ParseBudget(text string) *BudgetThresholds {
	values := make(map[string]decimal.Decimal)

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := labelLinePattern.FindStringSubmatch(line)
		if m == nil {
			return nil
		}
		field, ok := budgetLabels[strings.ToLower(m[1])]
		if !ok {
			return nil
		}
		v, err := decimal.NewFromString(strings.ReplaceAll(m[2], ",", ""))
		if err != nil || v.IsNegative() || v.GreaterThan(models.MaxAmount) {
			return nil
		}
		values[field] = v
	}

	daily, okDaily := values["daily"]
	weekly, okWeekly := values["weekly"]
	monthly, okMonthly := values["monthly"]
	if !okDaily || !okWeekly || !okMonthly {
		return nil
	}

	return &BudgetThresholds{Daily: daily, Weekly: weekly, Monthly: monthly}
}

// ParseGoal matches "savings goal <title> <target> [date]" and the
// Chinese forms. The date is YYYY-MM-DD or YYYY/MM/DD, interpreted in loc;
// an invalid date leaves the deadline unset. Returns nil on no match or a
// non-positive target.
func ParseGoal(text string, loc *time.Location) *GoalRequest {
	m := goalPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	title := strings.TrimSpace(m[1])
	target, err := decimal.NewFromString(m[2])
	if title == "" || err != nil || !target.IsPositive() || target.GreaterThan(models.MaxAmount) {
		return nil
	}

	req := &GoalRequest{Title: title, Target: target}
	if m[3] != "" {
		req.Deadline = parseDate(m[3], loc)
	}
	return req
}

// parseDate rejects dates that time.Date would normalize, like 2026-02-30.
func parseDate(token string, loc *time.Location) *time.Time {
	m := datePattern.FindStringSubmatch(token)
	if m == nil {
		return nil
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return nil
	}
	return &d
}
