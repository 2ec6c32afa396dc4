package models

// PetStage is the evolution stage of a pet.
type PetStage string

const (
	PetStageEgg   PetStage = "egg"
	PetStageBaby  PetStage = "baby"
	PetStageChild PetStage = "child"
	PetStageAdult PetStage = "adult"
)

// PetState is the mood derived from the pet's stats.
type PetState string

const (
	PetStateHappy  PetState = "happy"
	PetStateNormal PetState = "normal"
	PetStateHungry PetState = "hungry"
	PetStateSick   PetState = "sick"
	PetStateSleepy PetState = "sleepy"
)

// Pet is the gamification companion fed by bookkeeping.
// Stats are kept in the range 0-100.
type Pet struct {
	OwnerID string
	Name    string
	Stage   PetStage
	State   PetState

	Hunger     int
	Happiness  int
	Health     int
	Experience int
	Level      int

	// LastFedAt is the Unix timestamp of the last feeding, zero if never.
	LastFedAt int64

	ConsecutiveDays   int
	TotalTransactions int

	CreatedAt int64
}
