package store

import (
	"context"
)

// IdentityReader provides read-only access to enrolled identities.
type IdentityReader interface {
	// Get retrieves an identity by database ID.
	Get(ctx context.Context, id int64) (*Identity, error)
	// GetByExternalID retrieves an identity by its stable external identifier.
	GetByExternalID(ctx context.Context, externalID string) (*Identity, error)
	// List returns all identities ordered by ID.
	List(ctx context.Context) ([]Identity, error)
	// Count returns the number of enrolled identities.
	Count(ctx context.Context) (int, error)
}

// IdentityWriter mutates enrolled identities.
type IdentityWriter interface {
	// Create inserts a new identity and returns it with the ID populated.
	// Returns ErrDuplicateIdentity when the external ID is already taken.
	Create(ctx context.Context, identity *Identity) error
	// UpdateMetadata updates name/email/group without touching the encoding.
	UpdateMetadata(ctx context.Context, id int64, name, email, group string) error
	// ReplaceEncoding atomically swaps the reference encoding (re-enrollment).
	ReplaceEncoding(ctx context.Context, id int64, encoding []float64) error
	// Delete removes an identity and its attendance history.
	Delete(ctx context.Context, id int64) error
}

// AttendanceReader provides read-only access to attendance events.
type AttendanceReader interface {
	// Has reports whether an event exists for (identityID, day).
	Has(ctx context.Context, identityID int64, day string) (bool, error)
	// ListByDay returns all events for one day ordered by time.
	ListByDay(ctx context.Context, day string) ([]AttendanceEvent, error)
	// ListByIdentity returns all events for one identity, newest first.
	ListByIdentity(ctx context.Context, identityID int64) ([]AttendanceEvent, error)
	// Recent returns the newest events across all identities.
	Recent(ctx context.Context, limit int) ([]AttendanceEvent, error)
	// StatsByDay returns per-day attendance counts for the inclusive range.
	StatsByDay(ctx context.Context, fromDay, toDay string) ([]DayStats, error)
}

// AttendanceWriter appends attendance events.
type AttendanceWriter interface {
	// Insert performs a conditional insert guarded by UNIQUE(identity_id, day).
	// Under concurrent calls for the same key exactly one succeeds; the rest
	// get ErrDuplicateAttendance.
	Insert(ctx context.Context, event *AttendanceEvent) error
}
