package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/calculator"
	"github.com/mmynk/lineledger/internal/clock"
	"github.com/mmynk/lineledger/internal/models"
	"github.com/mmynk/lineledger/internal/storage"
)

// GroupService runs shared expenses inside a chat group. Every command
// acts on the group's most recent expense.
//
// Concurrent add/split commands on the same open expense are not locked
// against each other; the last write of each field wins.
type GroupService struct {
	store storage.Store
	clock clock.Clock
}

// NewGroupService creates a GroupService.
func NewGroupService(store storage.Store, clk clock.Clock) *GroupService {
	return &GroupService{store: store, clock: clk}
}

// Create opens a new group expense. It becomes the group's current expense.
func (s *GroupService) Create(ctx context.Context, groupID, creatorID string, total decimal.Decimal, description string) (*models.GroupExpense, error) {
	if groupID == "" {
		return nil, ErrGroupOnly
	}
	total, ok := models.NormalizeAmount(total)
	if !ok {
		return nil, ErrInvalidAmount
	}

	expense := &models.GroupExpense{
		GroupID:     groupID,
		CreatorID:   creatorID,
		Total:       total,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.clock.Now().Unix(),
	}
	if err := s.store.CreateGroupExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to create group expense: %w", err)
	}

	slog.Info("Group expense created",
		"group_id", groupID,
		"expense_id", expense.ID,
		"creator_id", creatorID,
		"total", expense.Total.String(),
	)
	return expense, nil
}

// Latest returns the group's most recent expense, settled or not, together
// with the transfers that would settle it.
func (s *GroupService) Latest(ctx context.Context, groupID string) (*models.GroupExpense, []calculator.Transfer, error) {
	if groupID == "" {
		return nil, nil, ErrGroupOnly
	}
	expense, err := s.store.LatestGroupExpense(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrNoOpenExpense
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load group expense: %w", err)
	}
	return expense, calculator.CalculateSettlements(expense.Participants), nil
}

// open returns the group's latest expense if it is still open.
func (s *GroupService) open(ctx context.Context, groupID string) (*models.GroupExpense, error) {
	expense, _, err := s.Latest(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if expense.Settled {
		return nil, ErrAlreadySettled
	}
	return expense, nil
}

// AddContribution records what memberID actually paid, replacing any
// earlier amount. The member is added on first contribution.
func (s *GroupService) AddContribution(ctx context.Context, groupID, memberID, displayName string, paid decimal.Decimal) (*models.GroupExpense, error) {
	paid, ok := models.NormalizeAmount(paid)
	if !ok {
		return nil, ErrInvalidAmount
	}
	expense, err := s.open(ctx, groupID)
	if err != nil {
		return nil, err
	}

	p := models.Participant{MemberID: memberID, DisplayName: displayName, Paid: paid}
	if err := s.store.SetParticipantPaid(ctx, expense.ID, p); err != nil {
		return nil, s.mapStoreErr(err, "failed to record contribution")
	}

	slog.Info("Group contribution recorded", "expense_id", expense.ID, "member_id", memberID)
	return s.store.GetGroupExpense(ctx, expense.ID)
}

// SetShare records what memberID owes. The member must have contributed first.
func (s *GroupService) SetShare(ctx context.Context, groupID, memberID string, share decimal.Decimal) (*models.GroupExpense, error) {
	share, ok := models.NormalizeAmount(share)
	if !ok {
		return nil, ErrInvalidAmount
	}
	expense, err := s.open(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if expense.Participant(memberID) == nil {
		return nil, ErrNotParticipant
	}

	p := models.Participant{MemberID: memberID, Share: share}
	if err := s.store.SetParticipantShare(ctx, expense.ID, p); err != nil {
		return nil, s.mapStoreErr(err, "failed to record share")
	}

	slog.Info("Group share recorded", "expense_id", expense.ID, "member_id", memberID)
	return s.store.GetGroupExpense(ctx, expense.ID)
}

// SettleResult is the outcome of a successful settlement.
type SettleResult struct {
	Expense      *models.GroupExpense
	Transfers    []calculator.Transfer
	Transactions []*models.Transaction
}

// Settle closes the group's current expense. Only the creator may settle,
// the expense must be open, and every participant needs a non-zero share.
//
// Each participant gets an expense for what they paid (when positive) and,
// if they are owed money, an income for their balance. The ledger entries
// and the settled flag are written atomically; a repeated settle fails
// with ErrAlreadySettled and writes nothing.
func (s *GroupService) Settle(ctx context.Context, groupID, callerID string) (*SettleResult, error) {
	expense, err := s.open(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if expense.CreatorID != callerID {
		return nil, ErrNotCreator
	}
	if !expense.SharesComplete() {
		return nil, ErrSharesUnset
	}

	now := s.clock.Now()
	var txns []*models.Transaction
	for _, p := range expense.Participants {
		owner, err := s.store.GetOrCreateUser(ctx, p.MemberID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve participant: %w", err)
		}

		if p.Paid.IsPositive() {
			txns = append(txns, &models.Transaction{
				OwnerID:   owner.ID,
				Amount:    p.Paid,
				Category:  models.CategoryGroupContribution,
				Note:      expense.Description,
				Kind:      models.KindExpense,
				Date:      now,
				GroupRole: models.GroupRoleContribution,
			})
		}
		if balance := p.Balance(); balance.GreaterThan(calculator.Epsilon) {
			txns = append(txns, &models.Transaction{
				OwnerID:   owner.ID,
				Amount:    balance.Round(2),
				Category:  models.CategoryGroupReimbursement,
				Note:      expense.Description,
				Kind:      models.KindIncome,
				Date:      now,
				GroupRole: models.GroupRoleReimbursement,
			})
		}
	}

	if err := s.store.SettleGroupExpense(ctx, expense.ID, now.Unix(), txns); err != nil {
		return nil, s.mapStoreErr(err, "failed to settle group expense")
	}

	expense.Settled = true
	expense.SettledAt = now.Unix()
	expense.TransactionIDs = expense.TransactionIDs[:0]
	for _, t := range txns {
		expense.TransactionIDs = append(expense.TransactionIDs, t.ID)
	}

	slog.Info("Group expense settled",
		"group_id", groupID,
		"expense_id", expense.ID,
		"transactions", len(txns),
	)
	return &SettleResult{
		Expense:      expense,
		Transfers:    calculator.CalculateSettlements(expense.Participants),
		Transactions: txns,
	}, nil
}

func (s *GroupService) mapStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, storage.ErrAlreadySettled):
		return ErrAlreadySettled
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotParticipant
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}
