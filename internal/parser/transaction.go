// Package parser turns free chat text into structured ledger input:
// transaction candidates, budget thresholds and savings goals.
package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/models"
)

// CategoryOther is used when nothing better can be derived.
const CategoryOther = "other"

// Sources a Candidate can come from.
const (
	SourceHeuristic = "heuristic"
	SourceLLM       = "llm"
)

// maxFallbackRunes bounds the description-prefix category label.
const maxFallbackRunes = 8

// Candidate is a parsed, not yet persisted, transaction.
type Candidate struct {
	Amount      decimal.Decimal
	Kind        models.Kind
	Category    string
	Description string
	Source      string
}

// Render formats the candidate back into text the heuristic parser
// accepts. Parsing the rendered text yields the same amount.
func (c *Candidate) Render() string {
	return strings.TrimSpace(c.Description + " " + c.Amount.String())
}

var (
	amountPattern = regexp.MustCompile(
		`(?i)(?:nt\$|\$)?\s?(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)\s*(?:元|塊錢|塊|dollars?|bucks|ntd|twd)?`)
	spacePattern = regexp.MustCompile(`\s+`)

	incomeKeywords = []string{
		"salary", "income", "bonus", "earned", "received", "refund", "paycheck",
		"收入", "薪資", "薪水", "獎金", "紅利", "收到", "退款",
	}

	// Leading verbs carry no category information. Longer forms first.
	boilerplate = []string{
		"spent on", "spent", "paid for", "paid", "bought", "received", "earned", "got",
		"花了", "買了", "付了", "收到", "獲得", "收入", "支出",
	}
)

// Heuristic is the regex and keyword-table transaction parser.
type Heuristic struct {
	rules []CategoryRule
}

// NewHeuristic creates a parser with the given category rules, or the
// default table when rules is empty.
func NewHeuristic(rules []CategoryRule) *Heuristic {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Heuristic{rules: rules}
}

// Parse extracts a transaction from text. It returns nil when the text
// holds no positive amount or one above models.MaxAmount; that is the
// normal "not a transaction" path.
func (h *Heuristic) Parse(text string) *Candidate {
	text = strings.TrimSpace(text)
	match := amountPattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(match[1], ",", ""))
	if err != nil || !amount.IsPositive() || amount.GreaterThan(models.MaxAmount) {
		return nil
	}

	kind := models.KindExpense
	lower := strings.ToLower(text)
	for _, kw := range incomeKeywords {
		if strings.Contains(lower, kw) {
			kind = models.KindIncome
			break
		}
	}

	description := describe(text)

	category, ok := categorize(h.rules, description)
	if !ok {
		category, ok = categorize(h.rules, text)
	}
	if !ok {
		category = fallbackCategory(description)
	}

	return &Candidate{
		Amount:      amount,
		Kind:        kind,
		Category:    category,
		Description: description,
		Source:      SourceHeuristic,
	}
}

// describe strips amount tokens and one leading boilerplate verb.
func describe(text string) string {
	desc := amountPattern.ReplaceAllString(text, " ")
	desc = strings.TrimSpace(spacePattern.ReplaceAllString(desc, " "))

	for _, verb := range boilerplate {
		if rest, ok := cutWord(desc, verb); ok {
			desc = rest
			break
		}
	}
	for _, filler := range []string{"on", "for"} {
		if rest, ok := cutWord(desc, filler); ok {
			desc = rest
			break
		}
	}
	return strings.Trim(desc, " ,.:;，。：；!！-")
}

// cutWord removes prefix from s, ignoring case. ASCII prefixes must be
// followed by a space or the end of s so "got" does not eat "gotham".
func cutWord(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	rest := s[len(prefix):]
	if isASCII(prefix) && rest != "" && rest[0] != ' ' {
		return s, false
	}
	return strings.TrimSpace(rest), true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func fallbackCategory(description string) string {
	fields := strings.Fields(description)
	if len(fields) == 0 {
		return CategoryOther
	}
	label := strings.ToLower(fields[0])
	if utf8.RuneCountInString(label) > maxFallbackRunes {
		label = string([]rune(label)[:maxFallbackRunes])
	}
	return label
}
