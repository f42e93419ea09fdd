package directory

import (
	"context"
	"strings"
	"sync"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// MemoryPrograms is the in-memory Programs implementation used by tests and
// database-less runs.
type MemoryPrograms struct {
	mu       sync.RWMutex
	programs map[id.ProgramID]*Program
}

func NewMemoryPrograms() *MemoryPrograms {
	return &MemoryPrograms{programs: make(map[id.ProgramID]*Program)}
}

var _ Programs = (*MemoryPrograms)(nil)

// Add registers or replaces a program entry.
func (d *MemoryPrograms) Add(program Program) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := program
	d.programs[program.ID] = &cp
}

func (d *MemoryPrograms) Get(ctx context.Context, programID id.ProgramID) (*Program, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.programs[programID]
	if !ok {
		return nil, ErrProgramNotFound
	}
	cp := *p
	return &cp, nil
}

func (d *MemoryPrograms) AttendanceEnabled(ctx context.Context, programID id.ProgramID) (bool, error) {
	p, err := d.Get(ctx, programID)
	if err != nil {
		return false, err
	}
	return p.AttendanceEnabled, nil
}

// MemoryPersons is the in-memory Persons implementation.
type MemoryPersons struct {
	mu      sync.RWMutex
	persons map[id.PersonID]*Person
}

func NewMemoryPersons() *MemoryPersons {
	return &MemoryPersons{persons: make(map[id.PersonID]*Person)}
}

var _ Persons = (*MemoryPersons)(nil)

// Add registers or replaces a person entry.
func (d *MemoryPersons) Add(person Person) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := person
	d.persons[person.ID] = &cp
}

func (d *MemoryPersons) Get(ctx context.Context, personID id.PersonID) (*Person, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.persons[personID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "person not found")
	}
	cp := *p
	return &cp, nil
}

func (d *MemoryPersons) FindByName(ctx context.Context, name string) ([]Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Person
	for _, p := range d.persons {
		if p.matchesName(name) {
			out = append(out, *p)
		}
	}
	return out, nil
}
