// Package service implements the ledger's business operations on top of
// storage.Store. Services never talk to the chat transport; they return
// values and typed errors for the dispatcher to turn into replies.
package service

import (
	"errors"

	"github.com/mmynk/lineledger/internal/storage"
)

// Validation failures.
var (
	ErrInvalidAmount   = errors.New("amount must be between 0.01 and 1,000,000,000,000")
	ErrMissingArgument = errors.New("missing argument")
	ErrInvalidRef      = errors.New("no record matches that reference")
	ErrImmutable       = errors.New("record belongs to a settled group expense")
)

// Authorization failures.
var (
	ErrNotCreator = errors.New("only the creator can settle this group expense")
	ErrGroupOnly  = errors.New("command is only available in a group chat")
)

// Precondition failures.
var (
	ErrAlreadySettled = storage.ErrAlreadySettled
	ErrSharesUnset    = errors.New("every participant needs a share before settling")
	ErrNoOpenExpense  = errors.New("no group expense in this chat")
	ErrNotParticipant = errors.New("member has not contributed to this group expense")
)
