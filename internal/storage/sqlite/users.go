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

// GetOrCreateUser returns the user for lineUserID, inserting it on first contact.
func (s *SQLiteStore) GetOrCreateUser(ctx context.Context, lineUserID string) (*models.User, error) {
	if lineUserID == "" {
		return nil, fmt.Errorf("failed to resolve user: empty platform id")
	}

	// INSERT OR IGNORE keeps concurrent first messages from racing on the
	// unique constraint.
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO users (id, line_user_id, display_name, created_at) VALUES (?, ?, '', ?)",
		uuid.New().String(), lineUserID, time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user := &models.User{}
	err = s.db.QueryRowContext(ctx,
		"SELECT id, line_user_id, display_name, created_at FROM users WHERE line_user_id = ?",
		lineUserID,
	).Scan(&user.ID, &user.LineUserID, &user.DisplayName, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by platform id: %w", err)
	}

	return user, nil
}

// GetUser retrieves a user by internal id.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, line_user_id, display_name, created_at FROM users WHERE id = ?",
		id,
	).Scan(&user.ID, &user.LineUserID, &user.DisplayName, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}
