package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/calculator"
	"github.com/mmynk/lineledger/internal/clock"
	"github.com/mmynk/lineledger/internal/models"
	"github.com/mmynk/lineledger/internal/parser"
	"github.com/mmynk/lineledger/internal/storage"
)

const (
	// DefaultListSize is used by "list" without an argument.
	DefaultListSize = 10

	// MaxListSize bounds "list n" and the window references resolve against.
	MaxListSize = 50

	minIDPrefix = 4
)

// LedgerService records and queries transactions.
type LedgerService struct {
	store storage.Store
	clock clock.Clock
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(store storage.Store, clk clock.Clock) *LedgerService {
	return &LedgerService{store: store, clock: clk}
}

// Record persists a parsed candidate for ownerID.
func (s *LedgerService) Record(ctx context.Context, ownerID string, c *parser.Candidate) (*models.Transaction, error) {
	if c == nil {
		return nil, ErrInvalidAmount
	}
	amount, ok := models.NormalizeAmount(c.Amount)
	if !ok {
		return nil, ErrInvalidAmount
	}
	category := strings.TrimSpace(c.Category)
	if category == "" {
		category = parser.CategoryOther
	}
	kind := c.Kind
	if !kind.Valid() {
		kind = models.KindExpense
	}

	now := s.clock.Now()
	txn := &models.Transaction{
		OwnerID:   ownerID,
		Amount:    amount,
		Category:  category,
		Note:      c.Description,
		Kind:      kind,
		Date:      now,
		CreatedAt: now.Unix(),
	}
	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	slog.Info("Transaction recorded",
		"owner_id", ownerID,
		"transaction_id", txn.ID,
		"kind", txn.Kind,
		"category", txn.Category,
		"source", c.Source,
	)
	return txn, nil
}

// Recent returns the latest n entries, newest first. n is clamped to
// [1, MaxListSize].
func (s *LedgerService) Recent(ctx context.Context, ownerID string, n int) ([]*models.Transaction, error) {
	if n <= 0 {
		n = DefaultListSize
	}
	if n > MaxListSize {
		n = MaxListSize
	}
	txns, err := s.store.ListTransactions(ctx, storage.TransactionFilter{OwnerID: ownerID, Limit: n})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// SplitByKind separates entries into income and expense, keeping order.
func SplitByKind(txns []*models.Transaction) (income, expense []*models.Transaction) {
	for _, t := range txns {
		if t.Kind == models.KindIncome {
			income = append(income, t)
		} else {
			expense = append(expense, t)
		}
	}
	return income, expense
}

// Resolve finds the entry a user reference points at. Accepted forms,
// all evaluated against the latest MaxListSize entries:
//   - i<n> / o<n>: n-th income / expense as shown by "list"
//   - <n>: n-th entry overall
//   - an id or id prefix of at least four characters
func (s *LedgerService) Resolve(ctx context.Context, ownerID, ref string) (*models.Transaction, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return nil, ErrMissingArgument
	}

	recent, err := s.Recent(ctx, ownerID, MaxListSize)
	if err != nil {
		return nil, err
	}
	income, expense := SplitByKind(recent)

	pick := func(list []*models.Transaction, pos string) (*models.Transaction, bool) {
		n, err := strconv.Atoi(pos)
		if err != nil || n < 1 || n > len(list) {
			return nil, false
		}
		return list[n-1], true
	}

	switch {
	case len(ref) > 1 && ref[0] == 'i':
		if t, ok := pick(income, ref[1:]); ok {
			return t, nil
		}
	case len(ref) > 1 && ref[0] == 'o':
		if t, ok := pick(expense, ref[1:]); ok {
			return t, nil
		}
	}
	if t, ok := pick(recent, ref); ok {
		return t, nil
	}

	if len(ref) < minIDPrefix {
		return nil, ErrInvalidRef
	}
	var match *models.Transaction
	for _, t := range recent {
		if strings.HasPrefix(strings.ToLower(t.ID), ref) {
			if match != nil {
				return nil, ErrInvalidRef // ambiguous
			}
			match = t
		}
	}
	if match == nil {
		return nil, ErrInvalidRef
	}
	return match, nil
}

// Delete removes the referenced entry.
func (s *LedgerService) Delete(ctx context.Context, ownerID, ref string) (*models.Transaction, error) {
	txn, err := s.Resolve(ctx, ownerID, ref)
	if err != nil {
		return nil, err
	}
	if txn.Linked() {
		return nil, ErrImmutable
	}
	if err := s.store.DeleteTransaction(ctx, ownerID, txn.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidRef
		}
		return nil, fmt.Errorf("failed to delete transaction: %w", err)
	}
	slog.Info("Transaction deleted", "owner_id", ownerID, "transaction_id", txn.ID)
	return txn, nil
}

// Edit changes the amount and, when category is non-empty, the category
// of the referenced entry.
func (s *LedgerService) Edit(ctx context.Context, ownerID, ref string, amount decimal.Decimal, category string) (*models.Transaction, error) {
	amount, ok := models.NormalizeAmount(amount)
	if !ok {
		return nil, ErrInvalidAmount
	}
	txn, err := s.Resolve(ctx, ownerID, ref)
	if err != nil {
		return nil, err
	}
	if txn.Linked() {
		return nil, ErrImmutable
	}

	txn.Amount = amount
	if category = strings.TrimSpace(category); category != "" {
		txn.Category = strings.ToLower(category)
	}
	if err := s.store.UpdateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	slog.Info("Transaction edited", "owner_id", ownerID, "transaction_id", txn.ID)
	return txn, nil
}

// CategoryTotal is one row of a category breakdown.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
}

// MonthSummary is the month-to-date overview.
type MonthSummary struct {
	Month      string
	Income     decimal.Decimal
	Expense    decimal.Decimal
	Categories []CategoryTotal // expense only, largest first
}

// Net is income minus expense.
func (m *MonthSummary) Net() decimal.Decimal {
	return m.Income.Sub(m.Expense)
}

// Summary returns month-to-date totals for ownerID.
func (s *LedgerService) Summary(ctx context.Context, ownerID string) (*MonthSummary, error) {
	now := s.clock.Now()
	w := calculator.MonthToDate(now)

	income, err := s.store.SumTransactions(ctx, storage.TransactionFilter{
		OwnerID: ownerID, Kind: models.KindIncome, From: w.Start, To: w.End,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sum income: %w", err)
	}

	expenseFilter := storage.TransactionFilter{
		OwnerID: ownerID, Kind: models.KindExpense, From: w.Start, To: w.End,
	}
	byCategory, err := s.store.SumByCategory(ctx, expenseFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to sum expenses: %w", err)
	}

	summary := &MonthSummary{
		Month:      calculator.MonthKey(now),
		Income:     income,
		Expense:    decimal.Zero,
		Categories: sortedTotals(byCategory),
	}
	for _, c := range summary.Categories {
		summary.Expense = summary.Expense.Add(c.Amount)
	}
	return summary, nil
}

// DayTotal is the expense total of one calendar day.
type DayTotal struct {
	Day    string // YYYY-MM-DD
	Amount decimal.Decimal
}

// PeriodReport is the expense breakdown behind the reporting shortcuts.
type PeriodReport struct {
	Period     string
	Window     calculator.Window
	Total      decimal.Decimal
	Days       []DayTotal // only days with spending
	Categories []CategoryTotal
}

// PeriodReport returns the daily expense breakdown for a named period
// (week, month, last_week, last_month).
func (s *LedgerService) PeriodReport(ctx context.Context, ownerID, period string) (*PeriodReport, error) {
	now := s.clock.Now()
	w, err := calculator.PeriodWindow(period, now)
	if err != nil {
		return nil, err
	}

	txns, err := s.store.ListTransactions(ctx, storage.TransactionFilter{
		OwnerID: ownerID, Kind: models.KindExpense, From: w.Start, To: w.End,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list period transactions: %w", err)
	}

	perDay := make(map[string]decimal.Decimal)
	perCategory := make(map[string]decimal.Decimal)
	report := &PeriodReport{Period: period, Window: w, Total: decimal.Zero}
	for _, t := range txns {
		day := t.Date.In(now.Location()).Format("2006-01-02")
		perDay[day] = perDay[day].Add(t.Amount)
		perCategory[t.Category] = perCategory[t.Category].Add(t.Amount)
		report.Total = report.Total.Add(t.Amount)
	}

	for _, d := range w.Days() {
		key := d.Format("2006-01-02")
		if amount, ok := perDay[key]; ok {
			report.Days = append(report.Days, DayTotal{Day: key, Amount: amount})
		}
	}
	report.Categories = sortedTotals(perCategory)
	return report, nil
}

func sortedTotals(m map[string]decimal.Decimal) []CategoryTotal {
	totals := make([]CategoryTotal, 0, len(m))
	for category, amount := range m {
		totals = append(totals, CategoryTotal{Category: category, Amount: amount})
	}
	sort.Slice(totals, func(i, j int) bool {
		if !totals[i].Amount.Equal(totals[j].Amount) {
			return totals[i].Amount.GreaterThan(totals[j].Amount)
		}
		return totals[i].Category < totals[j].Category
	})
	return totals
}
