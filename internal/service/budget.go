package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/calculator"
	"github.com/mmynk/lineledger/internal/clock"
	"github.com/mmynk/lineledger/internal/models"
	"github.com/mmynk/lineledger/internal/parser"
	"github.com/mmynk/lineledger/internal/storage"
)

// Budget windows, in breach priority order.
const (
	WindowMonthly  = "monthly"
	WindowWeekly   = "weekly"
	WindowDaily    = "daily"
	WindowCategory = "category"
)

// Breach describes spending above a configured limit.
type Breach struct {
	Window   string
	Category string // set for WindowCategory
	Limit    decimal.Decimal
	Spent    decimal.Decimal
}

// Over is how far spending exceeds the limit.
func (b *Breach) Over() decimal.Decimal {
	return b.Spent.Sub(b.Limit)
}

// Usage is month-to-date spending against the effective monthly limit.
type Usage struct {
	Limit   decimal.Decimal
	Spent   decimal.Decimal
	Percent decimal.Decimal

	// Level is the highest alert threshold reached (80, 90 or 100), or 0.
	Level int
}

// AlertLevels are the usage percentages that trigger a notification.
var AlertLevels = []int{100, 90, 80}

// BudgetService stores thresholds and evaluates spending against them.
// Evaluations are read-only.
type BudgetService struct {
	store storage.Store
	clock clock.Clock
}

// NewBudgetService creates a BudgetService.
func NewBudgetService(store storage.Store, clk clock.Clock) *BudgetService {
	return &BudgetService{store: store, clock: clk}
}

// Current returns this month's budget, or nil when none is configured.
func (s *BudgetService) Current(ctx context.Context, ownerID string) (*models.Budget, error) {
	b, err := s.store.GetBudget(ctx, ownerID, calculator.MonthKey(s.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}
	return b, nil
}

// BudgetStatus is the budget command's view of the current month.
type BudgetStatus struct {
	Budget     *models.Budget // nil when nothing is configured
	Spent      decimal.Decimal
	Categories []CategoryTotal
}

// Status returns the current budget together with month-to-date spending.
func (s *BudgetService) Status(ctx context.Context, ownerID string) (*BudgetStatus, error) {
	b, err := s.Current(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	w := calculator.MonthToDate(s.clock.Now())
	byCategory, err := s.store.SumByCategory(ctx, storage.TransactionFilter{
		OwnerID: ownerID, Kind: models.KindExpense, From: w.Start, To: w.End,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sum expenses: %w", err)
	}

	status := &BudgetStatus{Budget: b, Spent: decimal.Zero, Categories: sortedTotals(byCategory)}
	for _, c := range status.Categories {
		status.Spent = status.Spent.Add(c.Amount)
	}
	return status, nil
}

// SetThresholds replaces the daily, weekly and monthly limits of the
// current month. Total and per-category limits are left untouched.
func (s *BudgetService) SetThresholds(ctx context.Context, ownerID string, th parser.BudgetThresholds) (*models.Budget, error) {
	for _, v := range []decimal.Decimal{th.Daily, th.Weekly, th.Monthly} {
		if v.IsNegative() || v.GreaterThan(models.MaxAmount) {
			return nil, ErrInvalidAmount
		}
	}

	b, err := s.Current(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		b = &models.Budget{OwnerID: ownerID, Month: calculator.MonthKey(s.clock.Now())}
	}

	daily, weekly, monthly := th.Daily, th.Weekly, th.Monthly
	b.Daily = &daily
	b.Weekly = &weekly
	b.Monthly = &monthly

	if err := s.store.UpsertBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save budget: %w", err)
	}

	slog.Info("Budget thresholds set",
		"owner_id", ownerID,
		"month", b.Month,
		"daily", daily.String(),
		"weekly", weekly.String(),
		"monthly", monthly.String(),
	)
	return b, nil
}

// CheckBudgetExceeded evaluates monthly, then weekly, then daily limits
// and returns the first window whose spending exceeds its limit. A broader
// breach suppresses narrower ones. Returns nil when nothing is configured
// or nothing is exceeded.
func (s *BudgetService) CheckBudgetExceeded(ctx context.Context, ownerID string) (*Breach, error) {
	b, err := s.Current(ctx, ownerID)
	if err != nil || b == nil {
		return nil, err
	}

	now := s.clock.Now()
	checks := []struct {
		window string
		limit  *decimal.Decimal
		span   calculator.Window
	}{
		{WindowMonthly, b.EffectiveMonthly(), calculator.MonthToDate(now)},
		{WindowWeekly, b.Weekly, calculator.WeekToDate(now)},
		{WindowDaily, b.Daily, calculator.DayToDate(now)},
	}

	for _, c := range checks {
		if !models.Configured(c.limit) {
			continue
		}
		spent, err := s.spent(ctx, ownerID, "", c.span)
		if err != nil {
			return nil, err
		}
		if spent.GreaterThan(*c.limit) {
			return &Breach{Window: c.window, Limit: *c.limit, Spent: spent}, nil
		}
	}
	return nil, nil
}

// CheckCategoryBudgetExceeded compares this month's spending in category
// against its per-category limit.
func (s *BudgetService) CheckCategoryBudgetExceeded(ctx context.Context, ownerID, category string) (*Breach, error) {
	b, err := s.Current(ctx, ownerID)
	if err != nil || b == nil {
		return nil, err
	}
	limit := b.CategoryLimit(category)
	if limit == nil {
		return nil, nil
	}

	spent, err := s.spent(ctx, ownerID, category, calculator.MonthToDate(s.clock.Now()))
	if err != nil {
		return nil, err
	}
	if spent.GreaterThan(*limit) {
		return &Breach{Window: WindowCategory, Category: category, Limit: *limit, Spent: spent}, nil
	}
	return nil, nil
}

// Usage reports month-to-date spending against the effective monthly
// limit, or nil when no monthly or total limit is configured.
func (s *BudgetService) Usage(ctx context.Context, ownerID string) (*Usage, error) {
	b, err := s.Current(ctx, ownerID)
	if err != nil || b == nil {
		return nil, err
	}
	limit := b.EffectiveMonthly()
	if limit == nil {
		return nil, nil
	}

	spent, err := s.spent(ctx, ownerID, "", calculator.MonthToDate(s.clock.Now()))
	if err != nil {
		return nil, err
	}

	u := &Usage{
		Limit:   *limit,
		Spent:   spent,
		Percent: spent.Div(*limit).Mul(decimal.NewFromInt(100)).Round(1),
	}
	for _, level := range AlertLevels {
		if u.Percent.GreaterThanOrEqual(decimal.NewFromInt(int64(level))) {
			u.Level = level
			break
		}
	}
	return u, nil
}

func (s *BudgetService) spent(ctx context.Context, ownerID, category string, w calculator.Window) (decimal.Decimal, error) {
	sum, err := s.store.SumTransactions(ctx, storage.TransactionFilter{
		OwnerID:  ownerID,
		Kind:     models.KindExpense,
		Category: category,
		From:     w.Start,
		To:       w.End,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum expenses: %w", err)
	}
	return sum, nil
}
