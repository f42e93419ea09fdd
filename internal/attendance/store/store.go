// Package store defines the persistence contracts for the attendance engine.
// All session mutation flows through RunInTrackTx so the read-decide-write
// sequence in the session tracker is race-free per track.
package store

import (
	"context"
	"time"

	"rollcall/internal/attendance/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

// TxStores exposes the stores visible inside a track transaction.
type TxStores interface {
	Events() EventStore
	Sessions() SessionStore
}

// TrackTx provides the transactional boundary for tap processing. Two calls
// for the same (program, subject) track serialize; calls for different
// tracks must not block each other.
type TrackTx interface {
	RunInTrackTx(ctx context.Context, programID id.ProgramID, subject models.Subject, fn func(tx TxStores) error) error
}

// EventStore appends and finalizes audit events. Events are never updated
// after their resolved direction is set.
type EventStore interface {
	Insert(ctx context.Context, event *models.Event) error

	// SetResolved fixes the direction actually applied for an event whose
	// requested direction left it pending.
	SetResolved(ctx context.Context, eventID id.EventID, resolved models.Direction) error

	Get(ctx context.Context, eventID id.EventID) (*models.Event, error)
}

// SessionStore persists presence intervals.
type SessionStore interface {
	Insert(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error

	// FindOpen returns the track's open session, or nil when none exists.
	FindOpen(ctx context.Context, programID id.ProgramID, subject models.Subject) (*models.Session, error)

	// FindByCheckIn returns the track's session with exactly this check-in
	// instant, or nil. Exact match is the import idempotency key.
	FindByCheckIn(ctx context.Context, programID id.ProgramID, subject models.Subject, checkIn time.Time) (*models.Session, error)

	// ListOverlapping returns the track's sessions overlapping
	// [start, end): check_in < end and (open or check_out > start).
	ListOverlapping(ctx context.Context, programID id.ProgramID, subject models.Subject, start, end time.Time) ([]*models.Session, error)

	// ListProgramOverlapping is the per-program variant covering every
	// subject, for roll-up reporting.
	ListProgramOverlapping(ctx context.Context, programID id.ProgramID, start, end time.Time) ([]*models.Session, error)

	// ListByPerson returns a person's sessions across programs, newest
	// check-in first, capped at limit.
	ListByPerson(ctx context.Context, personID id.PersonID, limit int) ([]*models.Session, error)
}

// BindingStore manages badge→person bindings.
type BindingStore interface {
	// FindActiveByUID returns the active binding for uid, or nil.
	FindActiveByUID(ctx context.Context, uid string) (*models.BadgeBinding, error)

	// FindActiveByUIDs resolves a batch of uids in one round trip; absent
	// or inactive uids are simply missing from the result.
	FindActiveByUIDs(ctx context.Context, uids []string) (map[string]id.PersonID, error)

	// Assign activates a binding for uid, revoking any existing active one
	// so the one-active-binding-per-uid invariant holds.
	Assign(ctx context.Context, binding models.BadgeBinding) error

	// Revoke deactivates the active binding for uid, if any.
	Revoke(ctx context.Context, uid string) error
}

// KioskStore reads registered kiosk devices.
type KioskStore interface {
	Get(ctx context.Context, kioskID id.KioskID) (*models.KioskDevice, error)
}

// Store aggregates everything a deployment wires up at once.
type Store interface {
	TrackTx
	Events() EventStore
	Sessions() SessionStore
	Bindings() BindingStore
	Kiosks() KioskStore
}
