// Package domain holds the typed identifiers shared across modules.
// Wrapping uuid.UUID keeps program/person/session IDs from being mixed up
// at compile time instead of by convention.
package domain

import "github.com/google/uuid"

type (
	// ProgramID identifies a program in the surrounding application.
	ProgramID uuid.UUID

	// PersonID identifies a durable person record (student).
	PersonID uuid.UUID

	// EventID identifies one append-only attendance event.
	EventID uuid.UUID

	// SessionID identifies one presence interval.
	SessionID uuid.UUID

	// KioskID identifies a registered kiosk device.
	KioskID uuid.UUID
)

// APIKeyID is the opaque key value presented by API clients. It is a string
// rather than a UUID because keys are minted outside this service.
type APIKeyID string

func (id ProgramID) String() string { return uuid.UUID(id).String() }
func (id PersonID) String() string  { return uuid.UUID(id).String() }
func (id EventID) String() string   { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id KioskID) String() string   { return uuid.UUID(id).String() }

func (id ProgramID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PersonID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id KioskID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

func (id APIKeyID) IsNil() bool { return id == "" }

// NewEventID mints a random event identifier.
func NewEventID() EventID { return EventID(uuid.New()) }

// NewSessionID mints a random session identifier.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// ParseProgramID parses the canonical string form of a program ID.
func ParseProgramID(s string) (ProgramID, error) {
	u, err := uuid.Parse(s)
	return ProgramID(u), err
}

// ParsePersonID parses the canonical string form of a person ID.
func ParsePersonID(s string) (PersonID, error) {
	u, err := uuid.Parse(s)
	return PersonID(u), err
}

// ParseKioskID parses the canonical string form of a kiosk ID.
func ParseKioskID(s string) (KioskID, error) {
	u, err := uuid.Parse(s)
	return KioskID(u), err
}
