package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/lineledger/internal/models"
)

// GetBudget returns the budget for (ownerID, month), or nil when none exists.
// Documents written at an older schema version are migrated and written back.
func (s *SQLiteStore) GetBudget(ctx context.Context, ownerID, month string) (*models.Budget, error) {
	var (
		doc       string
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT document, updated_at FROM budgets WHERE owner_id = ? AND month = ?",
		ownerID, month,
	).Scan(&doc, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	budget := &models.Budget{OwnerID: ownerID, Month: month, UpdatedAt: updatedAt}
	migrated, err := budget.UnmarshalDocument([]byte(doc))
	if err != nil {
		return nil, err
	}

	if migrated {
		slog.Info("Migrating budget document",
			"owner_id", ownerID,
			"month", month,
			"to_version", models.BudgetSchemaVersion,
		)
		if err := s.writeBudget(ctx, budget); err != nil {
			// The in-memory migration is still valid for this read.
			slog.Warn("Failed to persist migrated budget", "owner_id", ownerID, "error", err)
		}
	}

	return budget, nil
}

// UpsertBudget inserts or replaces the budget for (OwnerID, Month).
func (s *SQLiteStore) UpsertBudget(ctx context.Context, b *models.Budget) error {
	b.UpdatedAt = time.Now().Unix()
	return s.writeBudget(ctx, b)
}

func (s *SQLiteStore) writeBudget(ctx context.Context, b *models.Budget) error {
	doc, err := b.MarshalDocument()
	if err != nil {
		return fmt.Errorf("failed to encode budget: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO budgets (owner_id, month, document, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id, month) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		b.OwnerID, b.Month, string(doc), b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert budget: %w", err)
	}
	return nil
}

// putRawBudget stores a document verbatim. Used by tests to seed legacy rows.
func (s *SQLiteStore) putRawBudget(ctx context.Context, ownerID, month, doc string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO budgets (owner_id, month, document, updated_at) VALUES (?, ?, ?, ?)",
		ownerID, month, doc, time.Now().Unix(),
	)
	return err
}
