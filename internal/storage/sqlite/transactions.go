package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/models"
	"github.com/mmynk/lineledger/internal/storage"
)

const transactionColumns = "id, owner_id, amount_cents, category, note, kind, occurred_at, created_at, COALESCE(group_expense_id, ''), group_role"

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateTransaction persists a new ledger entry.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return insertTransaction(ctx, s.db, t)
}

func insertTransaction(ctx context.Context, db execer, t *models.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}
	if t.Date.IsZero() {
		t.Date = time.Unix(t.CreatedAt, 0)
	}

	var groupExpenseID any
	if t.GroupExpenseID != "" {
		groupExpenseID = t.GroupExpenseID
	}

	cents, err := toCents(t.Amount)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO transactions (id, owner_id, amount_cents, category, note, kind, occurred_at, created_at, group_expense_id, group_role)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, cents, t.Category, t.Note, string(t.Kind),
		t.Date.Unix(), t.CreatedAt, groupExpenseID, string(t.GroupRole),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a ledger entry by id.
func (s *SQLiteStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// UpdateTransaction overwrites the mutable fields of an entry.
func (s *SQLiteStore) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	cents, err := toCents(t.Amount)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET amount_cents = ?, category = ?, note = ?, kind = ?, occurred_at = ?
		WHERE id = ? AND owner_id = ?`,
		cents, t.Category, t.Note, string(t.Kind), t.Date.Unix(), t.ID, t.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return expectOneRow(res, "transaction", t.ID)
}

// DeleteTransaction removes an entry owned by ownerID.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectOneRow(res, "transaction", id)
}

// ListTransactions returns entries matching filter, newest first.
func (s *SQLiteStore) ListTransactions(ctx context.Context, filter storage.TransactionFilter) ([]*models.Transaction, error) {
	where, args := filterClause(filter)
	query := "SELECT " + transactionColumns + " FROM transactions" + where +
		" ORDER BY occurred_at DESC, created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txns, nil
}

// SumTransactions totals the amounts matching filter.
func (s *SQLiteStore) SumTransactions(ctx context.Context, filter storage.TransactionFilter) (decimal.Decimal, error) {
	where, args := filterClause(filter)

	var cents int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount_cents), 0) FROM transactions"+where, args...,
	).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return fromCents(cents), nil
}

// SumByCategory totals the amounts matching filter per category.
func (s *SQLiteStore) SumByCategory(ctx context.Context, filter storage.TransactionFilter) (map[string]decimal.Decimal, error) {
	where, args := filterClause(filter)

	rows, err := s.db.QueryContext(ctx,
		"SELECT category, SUM(amount_cents) FROM transactions"+where+" GROUP BY category", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to sum by category: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]decimal.Decimal)
	for rows.Next() {
		var category string
		var cents int64
		if err := rows.Scan(&category, &cents); err != nil {
			return nil, fmt.Errorf("failed to scan category sum: %w", err)
		}
		sums[category] = fromCents(cents)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category sums: %w", err)
	}

	return sums, nil
}

func filterClause(f storage.TransactionFilter) (string, []any) {
	var conds []string
	var args []any

	if f.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if !f.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, f.From.Unix())
	}
	if !f.To.IsZero() {
		conds = append(conds, "occurred_at < ?")
		args = append(args, f.To.Unix())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t           models.Transaction
		amountCents int64
		kind        string
		occurredAt  int64
		role        string
	)
	err := row.Scan(&t.ID, &t.OwnerID, &amountCents, &t.Category, &t.Note, &kind,
		&occurredAt, &t.CreatedAt, &t.GroupExpenseID, &role)
	if err != nil {
		return nil, err
	}
	t.Amount = fromCents(amountCents)
	t.Kind = models.Kind(kind)
	t.Date = time.Unix(occurredAt, 0)
	t.GroupRole = models.GroupRole(role)
	return &t, nil
}

func expectOneRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
	}
	return nil
}
