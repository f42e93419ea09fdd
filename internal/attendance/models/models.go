// Package models defines the attendance engine's data model: badge bindings,
// append-only events, presence sessions, and the person-or-visitor subject.
package models

import (
	"fmt"
	"time"

	id "rollcall/pkg/domain"
)

// Direction is the IN/OUT/AUTO marker on a tap. AUTO is only ever a
// requested direction; resolved directions are always IN or OUT.
type Direction string

const (
	DirectionIn   Direction = "IN"
	DirectionOut  Direction = "OUT"
	DirectionAuto Direction = "AUTO"
)

// IsValid reports whether d is one of the three accepted request directions.
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut || d == DirectionAuto
}

// IsResolved reports whether d is a concrete applied direction.
func (d Direction) IsResolved() bool {
	return d == DirectionIn || d == DirectionOut
}

// SubjectKind discriminates the person-or-visitor union.
type SubjectKind string

const (
	SubjectPerson  SubjectKind = "person"
	SubjectVisitor SubjectKind = "visitor"
)

// Subject is the tagged person-or-visitor variant. An explicit union keeps
// track-key derivation total and makes exactly-one-of structural instead of
// a pair of nullable fields.
//
// The zero Subject is a visitor with an empty label, which is a legitimate
// (if unusual) track key.
type Subject struct {
	kind     SubjectKind
	personID id.PersonID
	visitor  string
}

// PersonSubject builds a subject for a known identity.
func PersonSubject(personID id.PersonID) Subject {
	return Subject{kind: SubjectPerson, personID: personID}
}

// VisitorSubject builds a subject for a free-text visitor label.
func VisitorSubject(label string) Subject {
	return Subject{kind: SubjectVisitor, visitor: label}
}

// Kind returns the variant tag. The zero value reads as a visitor.
func (s Subject) Kind() SubjectKind {
	if s.kind == "" {
		return SubjectVisitor
	}
	return s.kind
}

// Person returns the person ID and whether this subject is a known identity.
func (s Subject) Person() (id.PersonID, bool) {
	return s.personID, s.Kind() == SubjectPerson
}

// VisitorLabel returns the visitor label; empty for person subjects.
func (s Subject) VisitorLabel() string {
	if s.Kind() == SubjectVisitor {
		return s.visitor
	}
	return ""
}

// Key derives the stable per-program track key component for this subject.
// Person and visitor namespaces are disjoint so a visitor named after a
// person's UUID cannot collide.
func (s Subject) Key() string {
	if pid, ok := s.Person(); ok {
		return "p:" + pid.String()
	}
	return "v:" + s.visitor
}

// TrackKey identifies one continuous-presence timeline: the (program,
// subject) pair.
func TrackKey(programID id.ProgramID, subject Subject) string {
	return programID.String() + "|" + subject.Key()
}

func (s Subject) String() string {
	if pid, ok := s.Person(); ok {
		return fmt.Sprintf("person %s", pid)
	}
	return fmt.Sprintf("visitor %q", s.visitor)
}

// BadgeBinding ties a badge UID to a person. At most one binding per UID is
// active at a time; revocation flips the flag instead of deleting history.
type BadgeBinding struct {
	UID        string
	PersonID   id.PersonID
	Active     bool
	AssignedAt time.Time
}

// KioskDevice is a registered tap source tied to one program.
type KioskDevice struct {
	ID        id.KioskID
	Name      string
	ProgramID id.ProgramID
	APIKey    string
	Active    bool
	Location  string
	CreatedAt time.Time
}

// Event is one appended tap record. Resolved stays empty until the session
// tracker applies the tap; after that the record never changes.
type Event struct {
	ID         id.EventID
	ProgramID  id.ProgramID
	Subject    Subject
	BadgeUID   string
	KioskID    *id.KioskID
	Requested  Direction
	Resolved   Direction
	OccurredAt time.Time
	Source     string
	Notes      string
	CreatedAt  time.Time
}

// Session is one presence interval. CheckOut == nil means the session is
// open. OpenedBy/ClosedBy link back to the events that moved it, when the
// move was the event's primary effect.
type Session struct {
	ID              id.SessionID
	ProgramID       id.ProgramID
	Subject         Subject
	CheckIn         time.Time
	CheckOut        *time.Time
	DurationMinutes int
	OpenedBy        *id.EventID
	ClosedBy        *id.EventID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOpen reports whether the session has no check-out yet.
func (s *Session) IsOpen() bool { return s.CheckOut == nil }

// RecomputeDuration refreshes DurationMinutes from the bounds, clamping to
// zero when check-out is missing or not after check-in.
func (s *Session) RecomputeDuration() {
	if s.CheckOut != nil && s.CheckOut.After(s.CheckIn) {
		s.DurationMinutes = int(s.CheckOut.Sub(s.CheckIn) / time.Minute)
		return
	}
	s.DurationMinutes = 0
}

// Close sets the check-out timestamp and recomputes the duration.
func (s *Session) Close(at time.Time) {
	t := at
	s.CheckOut = &t
	s.RecomputeDuration()
}
