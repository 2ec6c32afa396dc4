package models

// User maps a messaging-platform account onto an internal owner id.
// Every ledger record is owned by User.ID, never by the platform id.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// LineUserID is the platform user id that inbound events carry.
	LineUserID string

	// DisplayName is the last profile name seen, if any.
	DisplayName string

	// CreatedAt is the Unix timestamp of the first contact.
	CreatedAt int64
}
