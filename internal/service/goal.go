package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/clock"
	"github.com/mmynk/lineledger/internal/models"
	"github.com/mmynk/lineledger/internal/parser"
	"github.com/mmynk/lineledger/internal/storage"
)

// GoalService manages savings goals. Progress is derived from the ledger.
type GoalService struct {
	store storage.Store
	clock clock.Clock
}

// NewGoalService creates a GoalService.
func NewGoalService(store storage.Store, clk clock.Clock) *GoalService {
	return &GoalService{store: store, clock: clk}
}

// Create stores a new goal with its progress already computed.
func (s *GoalService) Create(ctx context.Context, ownerID string, req parser.GoalRequest) (*models.SavingsGoal, error) {
	target, ok := models.NormalizeAmount(req.Target)
	if !ok {
		return nil, ErrInvalidAmount
	}

	net, err := s.NetSavings(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	goal := &models.SavingsGoal{
		OwnerID:  ownerID,
		Title:    req.Title,
		Target:   target,
		Deadline: req.Deadline,
	}
	applyProgress(goal, net, s.clock.Now().Unix())

	if err := s.store.CreateGoal(ctx, goal); err != nil {
		return nil, fmt.Errorf("failed to create savings goal: %w", err)
	}

	slog.Info("Savings goal created", "owner_id", ownerID, "goal_id", goal.ID, "target", goal.Target.String())
	return goal, nil
}

// List returns the owner's goals, oldest first.
func (s *GoalService) List(ctx context.Context, ownerID string) ([]*models.SavingsGoal, error) {
	goals, err := s.store.ListGoals(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list savings goals: %w", err)
	}
	return goals, nil
}

// NetSavings is lifetime income minus lifetime expense, floored at zero.
func (s *GoalService) NetSavings(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	income, err := s.store.SumTransactions(ctx, storage.TransactionFilter{OwnerID: ownerID, Kind: models.KindIncome})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum income: %w", err)
	}
	expense, err := s.store.SumTransactions(ctx, storage.TransactionFilter{OwnerID: ownerID, Kind: models.KindExpense})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum expenses: %w", err)
	}

	net := income.Sub(expense)
	if net.IsNegative() {
		return decimal.Zero, nil
	}
	return net, nil
}

// Recompute refreshes every goal of ownerID from the ledger and returns
// the goals that became complete during this call. Running it twice in a
// row changes nothing the second time.
func (s *GoalService) Recompute(ctx context.Context, ownerID string) ([]*models.SavingsGoal, error) {
	goals, err := s.List(ctx, ownerID)
	if err != nil || len(goals) == 0 {
		return nil, err
	}

	net, err := s.NetSavings(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().Unix()
	var completed []*models.SavingsGoal
	for _, g := range goals {
		before, wasComplete := g.Current, g.Completed
		applyProgress(g, net, now)
		if g.Current.Equal(before) && g.Completed == wasComplete {
			continue
		}
		completedNow, err := s.store.UpdateGoal(ctx, g)
		if err != nil {
			return completed, fmt.Errorf("failed to update savings goal: %w", err)
		}
		if completedNow {
			slog.Info("Savings goal completed", "owner_id", ownerID, "goal_id", g.ID)
			completed = append(completed, g)
		}
	}
	return completed, nil
}

// applyProgress sets Current and marks completion the first time Current
// reaches Target. Completion is never undone.
func applyProgress(g *models.SavingsGoal, net decimal.Decimal, now int64) {
	g.Current = net
	if !g.Completed && g.Current.GreaterThanOrEqual(g.Target) {
		g.Completed = true
		g.CompletedAt = now
	}
}
