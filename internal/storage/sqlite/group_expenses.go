package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/lineledger/internal/models"
	"github.com/mmynk/lineledger/internal/storage"
)

// CreateGroupExpense persists a new open group expense and its initial participants.
func (s *SQLiteStore) CreateGroupExpense(ctx context.Context, g *models.GroupExpense) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.CreatedAt == 0 {
		g.CreatedAt = time.Now().Unix()
	}

	total, err := toCents(g.Total)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO group_expenses (id, group_id, creator_id, total_cents, description, settled, settled_at, created_at)
			VALUES (?, ?, ?, ?, ?, 0, 0, ?)`,
			g.ID, g.GroupID, g.CreatorID, total, g.Description, g.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group expense: %w", err)
		}

		for _, p := range g.Participants {
			cents, err := centsOf(p.Paid, p.Share)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO group_participants (expense_id, member_id, display_name, paid_cents, share_cents)
				VALUES (?, ?, ?, ?, ?)`,
				g.ID, p.MemberID, p.DisplayName, cents[0], cents[1],
			)
			if err != nil {
				return fmt.Errorf("failed to insert participant: %w", err)
			}
		}
		return nil
	})
}

// GetGroupExpense retrieves a group expense with participants and linked
// transaction ids.
func (s *SQLiteStore) GetGroupExpense(ctx context.Context, id string) (*models.GroupExpense, error) {
	return s.loadGroupExpense(ctx,
		"SELECT id, group_id, creator_id, total_cents, description, settled, settled_at, created_at FROM group_expenses WHERE id = ?",
		id,
	)
}

// LatestGroupExpense returns the most recently created expense in groupID.
func (s *SQLiteStore) LatestGroupExpense(ctx context.Context, groupID string) (*models.GroupExpense, error) {
	return s.loadGroupExpense(ctx,
		`SELECT id, group_id, creator_id, total_cents, description, settled, settled_at, created_at
		FROM group_expenses WHERE group_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		groupID,
	)
}

func (s *SQLiteStore) loadGroupExpense(ctx context.Context, query string, arg string) (*models.GroupExpense, error) {
	var (
		g          models.GroupExpense
		totalCents int64
		settled    int
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&g.ID, &g.GroupID, &g.CreatorID, &totalCents, &g.Description, &settled, &g.SettledAt, &g.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group expense %s: %w", arg, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group expense: %w", err)
	}
	g.Total = fromCents(totalCents)
	g.Settled = settled != 0

	// Participants keep their insertion order.
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, display_name, paid_cents, share_cents
		FROM group_participants WHERE expense_id = ? ORDER BY rowid`,
		g.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Participant
		var paid, share int64
		if err := rows.Scan(&p.MemberID, &p.DisplayName, &paid, &share); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.Paid = fromCents(paid)
		p.Share = fromCents(share)
		g.Participants = append(g.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	idRows, err := s.db.QueryContext(ctx,
		"SELECT transaction_id FROM group_expense_transactions WHERE expense_id = ? ORDER BY position",
		g.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement transactions: %w", err)
	}
	defer idRows.Close()

	for idRows.Next() {
		var txID string
		if err := idRows.Scan(&txID); err != nil {
			return nil, fmt.Errorf("failed to scan settlement transaction: %w", err)
		}
		g.TransactionIDs = append(g.TransactionIDs, txID)
	}
	if err := idRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlement transactions: %w", err)
	}

	return &g, nil
}

// SetParticipantPaid writes the paid amount of one member, adding the
// member when absent. Other participants and the share field are untouched.
func (s *SQLiteStore) SetParticipantPaid(ctx context.Context, expenseID string, p models.Participant) error {
	paid, err := toCents(p.Paid)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireOpen(ctx, tx, expenseID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO group_participants (expense_id, member_id, display_name, paid_cents, share_cents)
			VALUES (?, ?, ?, ?, 0)
			ON CONFLICT (expense_id, member_id) DO UPDATE SET
				paid_cents = excluded.paid_cents,
				display_name = CASE WHEN excluded.display_name = '' THEN display_name ELSE excluded.display_name END`,
			expenseID, p.MemberID, p.DisplayName, paid,
		)
		if err != nil {
			return fmt.Errorf("failed to set participant paid: %w", err)
		}
		return nil
	})
}

// SetParticipantShare writes the share of an existing member.
func (s *SQLiteStore) SetParticipantShare(ctx context.Context, expenseID string, p models.Participant) error {
	share, err := toCents(p.Share)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireOpen(ctx, tx, expenseID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE group_participants SET share_cents = ? WHERE expense_id = ? AND member_id = ?",
			share, expenseID, p.MemberID,
		)
		if err != nil {
			return fmt.Errorf("failed to set participant share: %w", err)
		}
		return expectOneRow(res, "participant", p.MemberID)
	})
}

// SettleGroupExpense flips the expense to settled and persists txns in a
// single transaction. The settled=0 guard on the UPDATE makes a second
// attempt a no-op that reports ErrAlreadySettled.
func (s *SQLiteStore) SettleGroupExpense(ctx context.Context, expenseID string, settledAt int64, txns []*models.Transaction) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE group_expenses SET settled = 1, settled_at = ? WHERE id = ? AND settled = 0",
			settledAt, expenseID,
		)
		if err != nil {
			return fmt.Errorf("failed to mark group expense settled: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			if err := requireOpen(ctx, tx, expenseID); err != nil {
				return err
			}
			return fmt.Errorf("group expense %s: %w", expenseID, storage.ErrNotFound)
		}

		for i, t := range txns {
			t.GroupExpenseID = expenseID
			if err := insertTransaction(ctx, tx, t); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO group_expense_transactions (expense_id, position, transaction_id) VALUES (?, ?, ?)",
				expenseID, i, t.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to link settlement transaction: %w", err)
			}
		}
		return nil
	})
}

// requireOpen fails with ErrNotFound or ErrAlreadySettled unless the
// expense exists and is open.
func requireOpen(ctx context.Context, tx *sql.Tx, expenseID string) error {
	var settled int
	err := tx.QueryRowContext(ctx,
		"SELECT settled FROM group_expenses WHERE id = ?", expenseID,
	).Scan(&settled)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("group expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check group expense: %w", err)
	}
	if settled != 0 {
		return fmt.Errorf("group expense %s: %w", expenseID, storage.ErrAlreadySettled)
	}
	return nil
}
