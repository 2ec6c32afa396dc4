package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/lineledger/internal/models"
)

const goalColumns = "id, owner_id, title, target_cents, current_cents, deadline, completed, completed_at, created_at, updated_at"

// CreateGoal persists a new savings goal.
func (s *SQLiteStore) CreateGoal(ctx context.Context, g *models.SavingsGoal) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if g.CreatedAt == 0 {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	cents, err := centsOf(g.Target, g.Current)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO savings_goals ("+goalColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		g.ID, g.OwnerID, g.Title, cents[0], cents[1], deadlineValue(g.Deadline),
		boolToInt(g.Completed), g.CompletedAt, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert savings goal: %w", err)
	}
	return nil
}

// ListGoals returns the owner's goals, oldest first.
func (s *SQLiteStore) ListGoals(ctx context.Context, ownerID string) ([]*models.SavingsGoal, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+goalColumns+" FROM savings_goals WHERE owner_id = ? ORDER BY created_at, rowid",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list savings goals: %w", err)
	}
	defer rows.Close()

	var goals []*models.SavingsGoal
	for rows.Next() {
		var (
			g            models.SavingsGoal
			target, curr int64
			deadline     sql.NullInt64
			completed    int
		)
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Title, &target, &curr, &deadline,
			&completed, &g.CompletedAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan savings goal: %w", err)
		}
		g.Target = fromCents(target)
		g.Current = fromCents(curr)
		g.Completed = completed != 0
		if deadline.Valid {
			d := time.Unix(deadline.Int64, 0)
			g.Deadline = &d
		}
		goals = append(goals, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate savings goals: %w", err)
	}

	return goals, nil
}

// UpdateGoal writes progress and completion. A completed goal stays
// completed even if the caller passes Completed=false. The completion flip
// is conditional on the stored flag, so among concurrent callers exactly
// one gets true.
func (s *SQLiteStore) UpdateGoal(ctx context.Context, g *models.SavingsGoal) (bool, error) {
	cents, err := centsOf(g.Target, g.Current)
	if err != nil {
		return false, err
	}
	g.UpdatedAt = time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE savings_goals SET
			title = ?, target_cents = ?, current_cents = ?, deadline = ?, updated_at = ?
		WHERE id = ?`,
		g.Title, cents[0], cents[1], deadlineValue(g.Deadline), g.UpdatedAt, g.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update savings goal: %w", err)
	}
	if err := expectOneRow(res, "savings goal", g.ID); err != nil {
		return false, err
	}
	if !g.Completed {
		return false, nil
	}

	res, err = s.db.ExecContext(ctx,
		"UPDATE savings_goals SET completed = 1, completed_at = ? WHERE id = ? AND completed = 0",
		g.CompletedAt, g.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete savings goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check goal completion: %w", err)
	}
	return n == 1, nil
}

func deadlineValue(d *time.Time) any {
	if d == nil {
		return nil
	}
	return d.Unix()
}
