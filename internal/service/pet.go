package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/clock"
	"github.com/mmynk/lineledger/internal/models"
	"github.com/mmynk/lineledger/internal/storage"
)

const (
	defaultPetName = "Penny"

	hungerDecayPerHour = 2
	hungryThreshold    = 20
	sickThreshold      = 30
	feedHunger         = 30
	feedHappiness      = 10
	feedHealing        = 20
	defaultExperience  = 10
	experiencePerLevel = 100
)

// evolution lists the level at which each stage is reached, highest first.
var evolution = []struct {
	level int
	stage models.PetStage
}{
	{15, models.PetStageAdult},
	{8, models.PetStageChild},
	{3, models.PetStageBaby},
	{1, models.PetStageEgg},
}

// PetService keeps the bookkeeping pet alive. Every recorded transaction
// feeds it; budget pressure makes it sick.
type PetService struct {
	store storage.Store
	clock clock.Clock
}

// NewPetService creates a PetService.
func NewPetService(store storage.Store, clk clock.Clock) *PetService {
	return &PetService{store: store, clock: clk}
}

// Status returns the pet with hunger decay applied up to now.
func (s *PetService) Status(ctx context.Context, ownerID string) (*models.Pet, error) {
	pet, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.decay(pet)
	if err := s.store.SavePet(ctx, pet); err != nil {
		return nil, fmt.Errorf("failed to save pet: %w", err)
	}
	return pet, nil
}

// Feed rewards a new transaction of the given amount.
func (s *PetService) Feed(ctx context.Context, ownerID string, amount decimal.Decimal) (*models.Pet, error) {
	pet, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.decay(pet)

	now := s.clock.Now()
	if pet.LastFedAt == 0 {
		pet.ConsecutiveDays = 1
	} else {
		last := time.Unix(pet.LastFedAt, 0).In(now.Location())
		switch daysBetween(last, now) {
		case 0:
		case 1:
			pet.ConsecutiveDays++
		default:
			pet.ConsecutiveDays = 1
		}
	}

	pet.Hunger = clamp(pet.Hunger + feedHunger)
	pet.Happiness = clamp(pet.Happiness + feedHappiness)
	if pet.Health <= sickThreshold {
		pet.Health = clamp(pet.Health + feedHealing)
	}
	pet.LastFedAt = now.Unix()
	pet.TotalTransactions++

	gain := defaultExperience
	if amount.IsPositive() {
		gain = int(amount.Div(decimal.NewFromInt(10)).IntPart())
		if gain < 1 {
			gain = 1
		}
	}
	pet.Experience += gain
	for pet.Experience >= pet.Level*experiencePerLevel {
		pet.Experience -= pet.Level * experiencePerLevel
		pet.Level++
	}

	pet.Stage = stageFor(pet.Level)
	pet.State = models.PetStateHappy
	if pet.Health <= sickThreshold {
		pet.State = models.PetStateSick
	}

	if err := s.store.SavePet(ctx, pet); err != nil {
		return nil, fmt.Errorf("failed to save pet: %w", err)
	}
	return pet, nil
}

// ApplyBudgetUsage adjusts health from the month's budget usage percentage.
func (s *PetService) ApplyBudgetUsage(ctx context.Context, ownerID string, percent decimal.Decimal) error {
	pet, err := s.load(ctx, ownerID)
	if err != nil {
		return err
	}

	switch {
	case percent.GreaterThanOrEqual(decimal.NewFromInt(100)):
		pet.Health = clamp(pet.Health - 5)
	case percent.GreaterThanOrEqual(decimal.NewFromInt(90)):
		pet.Health = clamp(pet.Health - 2)
		pet.Happiness = clamp(pet.Happiness - 5)
	case percent.LessThanOrEqual(decimal.NewFromInt(50)):
		pet.Health = clamp(pet.Health + 1)
		pet.Happiness = clamp(pet.Happiness + 2)
	}
	if pet.Health <= sickThreshold {
		pet.State = models.PetStateSick
	}

	if err := s.store.SavePet(ctx, pet); err != nil {
		return fmt.Errorf("failed to save pet: %w", err)
	}
	return nil
}

func (s *PetService) load(ctx context.Context, ownerID string) (*models.Pet, error) {
	pet, err := s.store.GetPet(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pet: %w", err)
	}
	if pet != nil {
		return pet, nil
	}
	return &models.Pet{
		OwnerID:   ownerID,
		Name:      defaultPetName,
		Stage:     models.PetStageEgg,
		State:     models.PetStateNormal,
		Hunger:    50,
		Happiness: 50,
		Health:    100,
		Level:     1,
		CreatedAt: s.clock.Now().Unix(),
	}, nil
}

// decay lowers hunger by two points per hour since the last feeding.
func (s *PetService) decay(pet *models.Pet) {
	if pet.LastFedAt == 0 {
		return
	}
	hours := s.clock.Now().Sub(time.Unix(pet.LastFedAt, 0)).Hours()
	pet.Hunger = clamp(pet.Hunger - int(hours*hungerDecayPerHour))

	switch {
	case pet.Health <= sickThreshold:
		pet.State = models.PetStateSick
	case pet.Hunger <= hungryThreshold:
		pet.State = models.PetStateHungry
		pet.Health = clamp(pet.Health - 1)
	case pet.State != models.PetStateHappy:
		pet.State = models.PetStateNormal
	}
}

func stageFor(level int) models.PetStage {
	for _, e := range evolution {
		if level >= e.level {
			return e.stage
		}
	}
	return models.PetStageEgg
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
