package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SavingsGoal tracks progress toward a target amount.
// Current is derived from the owner's lifetime net income and is
// recomputed, never set directly.
type SavingsGoal struct {
	// ID is the unique identifier for the goal (UUID format).
	ID      string
	OwnerID string
	Title   string

	Target  decimal.Decimal
	Current decimal.Decimal

	// Deadline is optional.
	Deadline *time.Time

	// Completed never goes back to false once set.
	Completed   bool
	CompletedAt int64

	CreatedAt int64
	UpdatedAt int64
}

// Progress returns completion as a percentage capped at 100.
func (g *SavingsGoal) Progress() decimal.Decimal {
	if !g.Target.IsPositive() {
		return decimal.Zero
	}
	pct := g.Current.Div(g.Target).Mul(decimal.NewFromInt(100)).Round(1)
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return pct
}

// Remaining returns how much is still missing, never negative.
func (g *SavingsGoal) Remaining() decimal.Decimal {
	rest := g.Target.Sub(g.Current)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}
