package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// BudgetSchemaVersion is the document version written by MarshalDocument.
//
// Version history:
//   - 1: flat document with totalBudget, categoryBudgets, dailyBudget,
//     weeklyBudget and monthlyBudget (no version field)
//   - 2: limits grouped under explicit names, version field required
const BudgetSchemaVersion = 2

// Budget holds the spending thresholds of one owner for one calendar month.
// A nil limit means "not configured"; so does a zero limit.
type Budget struct {
	OwnerID string

	// Month is the calendar month in YYYY-MM form.
	Month string

	Total      *decimal.Decimal
	Categories map[string]decimal.Decimal

	Daily   *decimal.Decimal
	Weekly  *decimal.Decimal
	Monthly *decimal.Decimal

	// UpdatedAt is the Unix timestamp of the last upsert.
	UpdatedAt int64
}

// EffectiveMonthly returns the monthly limit, falling back to the total
// limit when no explicit monthly limit is set.
func (b *Budget) EffectiveMonthly() *decimal.Decimal {
	if configured(b.Monthly) {
		return b.Monthly
	}
	if configured(b.Total) {
		return b.Total
	}
	return nil
}

// CategoryLimit returns the limit for category, or nil when none is set.
func (b *Budget) CategoryLimit(category string) *decimal.Decimal {
	limit, ok := b.Categories[category]
	if !ok || !limit.IsPositive() {
		return nil
	}
	return &limit
}

// Configured reports whether limit is set to a positive value.
func Configured(limit *decimal.Decimal) bool {
	return configured(limit)
}

func configured(limit *decimal.Decimal) bool {
	return limit != nil && limit.IsPositive()
}

type budgetDocument struct {
	Version    int                        `json:"version"`
	Total      *decimal.Decimal           `json:"total,omitempty"`
	Categories map[string]decimal.Decimal `json:"categories,omitempty"`
	Daily      *decimal.Decimal           `json:"daily,omitempty"`
	Weekly     *decimal.Decimal           `json:"weekly,omitempty"`
	Monthly    *decimal.Decimal           `json:"monthly,omitempty"`
}

type legacyBudgetDocument struct {
	TotalBudget     *decimal.Decimal           `json:"totalBudget"`
	CategoryBudgets map[string]decimal.Decimal `json:"categoryBudgets"`
	DailyBudget     *decimal.Decimal           `json:"dailyBudget"`
	WeeklyBudget    *decimal.Decimal           `json:"weeklyBudget"`
	MonthlyBudget   *decimal.Decimal           `json:"monthlyBudget"`
}

// MarshalDocument encodes the limits at the current schema version.
func (b *Budget) MarshalDocument() ([]byte, error) {
	return json.Marshal(budgetDocument{
		Version:    BudgetSchemaVersion,
		Total:      b.Total,
		Categories: b.Categories,
		Daily:      b.Daily,
		Weekly:     b.Weekly,
		Monthly:    b.Monthly,
	})
}

// UnmarshalDocument decodes limits from any known schema version into b.
// Older documents are migrated in memory; the caller decides whether to
// write the migrated form back.
func (b *Budget) UnmarshalDocument(data []byte) (migrated bool, err error) {
	var head struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return false, fmt.Errorf("failed to decode budget document: %w", err)
	}

	switch head.Version {
	case 0, 1:
		var legacy legacyBudgetDocument
		if err := json.Unmarshal(data, &legacy); err != nil {
			return false, fmt.Errorf("failed to decode v1 budget document: %w", err)
		}
		b.Total = legacy.TotalBudget
		b.Categories = legacy.CategoryBudgets
		b.Daily = legacy.DailyBudget
		b.Weekly = legacy.WeeklyBudget
		b.Monthly = legacy.MonthlyBudget
		return true, nil
	case BudgetSchemaVersion:
		var doc budgetDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return false, fmt.Errorf("failed to decode budget document: %w", err)
		}
		b.Total = doc.Total
		b.Categories = doc.Categories
		b.Daily = doc.Daily
		b.Weekly = doc.Weekly
		b.Monthly = doc.Monthly
		return false, nil
	default:
		return false, fmt.Errorf("unsupported budget document version %d", head.Version)
	}
}
