package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/lineledger/internal/models"
)

// GetPet returns the owner's pet, or nil when none exists yet.
func (s *SQLiteStore) GetPet(ctx context.Context, ownerID string) (*models.Pet, error) {
	var (
		p     models.Pet
		stage string
		state string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, name, stage, state, hunger, happiness, health, experience, level,
			last_fed_at, consecutive_days, total_transactions, created_at
		FROM pets WHERE owner_id = ?`,
		ownerID,
	).Scan(&p.OwnerID, &p.Name, &stage, &state, &p.Hunger, &p.Happiness, &p.Health,
		&p.Experience, &p.Level, &p.LastFedAt, &p.ConsecutiveDays, &p.TotalTransactions, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pet: %w", err)
	}
	p.Stage = models.PetStage(stage)
	p.State = models.PetState(state)
	return &p, nil
}

// SavePet inserts or replaces the owner's pet.
func (s *SQLiteStore) SavePet(ctx context.Context, p *models.Pet) error {
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pets (owner_id, name, stage, state, hunger, happiness, health, experience, level,
			last_fed_at, consecutive_days, total_transactions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OwnerID, p.Name, string(p.Stage), string(p.State), p.Hunger, p.Happiness, p.Health,
		p.Experience, p.Level, p.LastFedAt, p.ConsecutiveDays, p.TotalTransactions, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save pet: %w", err)
	}
	return nil
}
