// Package directory exposes the engine's read-only collaborators: program
// feature flags and the person register used for name-based fallback
// matching. The surrounding application owns these records; this service
// only reads them.
package directory

import (
	"context"
	"strings"
	"time"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// ErrProgramNotFound is returned for lookups of unknown programs.
var ErrProgramNotFound = dErrors.New(dErrors.CodeNotFound, "program not found")

// Program carries the slice of program state the engine needs.
type Program struct {
	ID                id.ProgramID
	Name              string
	StartDate         *time.Time
	AttendanceEnabled bool
}

// Person is a directory entry used for identity resolution and display.
type Person struct {
	ID                 id.PersonID
	FirstName          string
	PreferredFirstName string
	LastName           string
}

// DisplayName renders the preferred-or-legal first name with the last name.
func (p Person) DisplayName() string {
	first := p.PreferredFirstName
	if first == "" {
		first = p.FirstName
	}
	return strings.TrimSpace(first + " " + p.LastName)
}

// matchesName reports whether name equals this person's display or legal
// full name, ignoring case and surrounding whitespace.
func (p Person) matchesName(name string) bool {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, p.DisplayName()) {
		return true
	}
	legal := strings.TrimSpace(p.FirstName + " " + p.LastName)
	return strings.EqualFold(name, legal)
}

// Programs looks up program state.
type Programs interface {
	Get(ctx context.Context, programID id.ProgramID) (*Program, error)

	// AttendanceEnabled reports the program's attendance feature flag.
	AttendanceEnabled(ctx context.Context, programID id.ProgramID) (bool, error)
}

// Persons looks up people for fallback identity matching.
type Persons interface {
	Get(ctx context.Context, personID id.PersonID) (*Person, error)

	// FindByName returns every person whose full name matches exactly
	// (case-insensitive). More than one result means the name is ambiguous
	// and callers must not guess.
	FindByName(ctx context.Context, name string) ([]Person, error)
}
