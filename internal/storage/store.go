// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadySettled is returned when a settled group expense is mutated.
	ErrAlreadySettled = errors.New("group expense already settled")

	// ErrAmountOutOfRange is returned for amounts that do not fit the
	// stored cents column.
	ErrAmountOutOfRange = errors.New("amount out of range")
)

// TransactionFilter narrows transaction queries. Zero values mean "any".
// From is inclusive, To is exclusive.
type TransactionFilter struct {
	OwnerID  string
	Kind     models.Kind
	Category string
	From     time.Time
	To       time.Time

	// Limit caps the number of rows returned by list queries, newest first.
	Limit int
}

// Store defines the persistence operations the ledger engine needs.
// This abstraction allows swapping storage backends without changing
// the service layer.
type Store interface {
	// GetOrCreateUser returns the user for a platform id, creating it on
	// first contact.
	GetOrCreateUser(ctx context.Context, lineUserID string) (*models.User, error)

	// GetUser retrieves a user by internal id.
	GetUser(ctx context.Context, id string) (*models.User, error)

	// CreateTransaction persists a new entry. ID and CreatedAt are filled in.
	CreateTransaction(ctx context.Context, t *models.Transaction) error

	// GetTransaction retrieves an entry by id.
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)

	// UpdateTransaction overwrites amount, category, note, kind and date.
	UpdateTransaction(ctx context.Context, t *models.Transaction) error

	// DeleteTransaction removes an entry owned by ownerID.
	DeleteTransaction(ctx context.Context, ownerID, id string) error

	// ListTransactions returns entries matching filter, newest first.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, error)

	// SumTransactions totals the amounts matching filter.
	SumTransactions(ctx context.Context, filter TransactionFilter) (decimal.Decimal, error)

	// SumByCategory totals the amounts matching filter per category.
	SumByCategory(ctx context.Context, filter TransactionFilter) (map[string]decimal.Decimal, error)

	// GetBudget returns the budget for (ownerID, month) or nil when none exists.
	GetBudget(ctx context.Context, ownerID, month string) (*models.Budget, error)

	// UpsertBudget inserts or replaces the budget for (OwnerID, Month).
	UpsertBudget(ctx context.Context, b *models.Budget) error

	CreateGoal(ctx context.Context, g *models.SavingsGoal) error
	ListGoals(ctx context.Context, ownerID string) ([]*models.SavingsGoal, error)
	// UpdateGoal writes progress, and completion when g.Completed is set.
	// It reports true only for the call that flipped the stored goal to
	// completed; completion is never undone.
	UpdateGoal(ctx context.Context, g *models.SavingsGoal) (bool, error)

	// CreateGroupExpense persists a new open group expense.
	CreateGroupExpense(ctx context.Context, g *models.GroupExpense) error

	// GetGroupExpense retrieves a group expense with its participants.
	GetGroupExpense(ctx context.Context, id string) (*models.GroupExpense, error)

	// LatestGroupExpense returns the most recently created expense in a
	// chat group, settled or not. Returns ErrNotFound when there is none.
	LatestGroupExpense(ctx context.Context, groupID string) (*models.GroupExpense, error)

	// SetParticipantPaid writes only the paid field of one participant,
	// adding the participant if needed. Fails with ErrAlreadySettled on a
	// settled expense.
	SetParticipantPaid(ctx context.Context, expenseID string, p models.Participant) error

	// SetParticipantShare writes only the share field of an existing
	// participant. Fails with ErrNotFound for unknown members and
	// ErrAlreadySettled on a settled expense.
	SetParticipantShare(ctx context.Context, expenseID string, p models.Participant) error

	// SettleGroupExpense atomically flips the expense to settled and
	// persists txns linked to it. A second call fails with
	// ErrAlreadySettled and writes nothing.
	SettleGroupExpense(ctx context.Context, expenseID string, settledAt int64, txns []*models.Transaction) error

	// GetPet returns the owner's pet or nil when none exists.
	GetPet(ctx context.Context, ownerID string) (*models.Pet, error)

	// SavePet inserts or replaces the owner's pet.
	SavePet(ctx context.Context, p *models.Pet) error

	// Close releases any resources held by the store.
	Close() error
}
