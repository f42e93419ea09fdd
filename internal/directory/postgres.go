package directory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// PostgresPrograms reads program state from the application database.
type PostgresPrograms struct {
	db *sql.DB
}

func NewPostgresPrograms(db *sql.DB) *PostgresPrograms {
	return &PostgresPrograms{db: db}
}

var _ Programs = (*PostgresPrograms)(nil)

func (d *PostgresPrograms) Get(ctx context.Context, programID id.ProgramID) (*Program, error) {
	query := `
		SELECT id, name, start_date, attendance_enabled
		FROM programs
		WHERE id = $1
	`
	var p Program
	var pid uuid.UUID
	var startDate sql.NullTime
	err := d.db.QueryRowContext(ctx, query, uuid.UUID(programID)).Scan(&pid, &p.Name, &startDate, &p.AttendanceEnabled)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProgramNotFound
		}
		return nil, fmt.Errorf("get program: %w", err)
	}
	p.ID = id.ProgramID(pid)
	if startDate.Valid {
		t := startDate.Time
		p.StartDate = &t
	}
	return &p, nil
}

func (d *PostgresPrograms) AttendanceEnabled(ctx context.Context, programID id.ProgramID) (bool, error) {
	var enabled bool
	err := d.db.QueryRowContext(ctx,
		`SELECT attendance_enabled FROM programs WHERE id = $1`,
		uuid.UUID(programID),
	).Scan(&enabled)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, ErrProgramNotFound
		}
		return false, fmt.Errorf("check attendance flag: %w", err)
	}
	return enabled, nil
}

// PostgresPersons reads the person register from the application database.
type PostgresPersons struct {
	db *sql.DB
}

func NewPostgresPersons(db *sql.DB) *PostgresPersons {
	return &PostgresPersons{db: db}
}

var _ Persons = (*PostgresPersons)(nil)

func (d *PostgresPersons) Get(ctx context.Context, personID id.PersonID) (*Person, error) {
	query := `
		SELECT id, first_name, COALESCE(preferred_first_name, ''), last_name
		FROM persons
		WHERE id = $1
	`
	var p Person
	var pid uuid.UUID
	err := d.db.QueryRowContext(ctx, query, uuid.UUID(personID)).Scan(&pid, &p.FirstName, &p.PreferredFirstName, &p.LastName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dErrors.New(dErrors.CodeNotFound, "person not found")
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	p.ID = id.PersonID(pid)
	return &p, nil
}

func (d *PostgresPersons) FindByName(ctx context.Context, name string) ([]Person, error) {
	// Match either preferred-or-legal display name or the legal full name,
	// case-insensitively, mirroring how the register renders people.
	query := `
		SELECT id, first_name, COALESCE(preferred_first_name, ''), last_name
		FROM persons
		WHERE lower(btrim($1)) IN (
			lower(btrim(COALESCE(NULLIF(preferred_first_name, ''), first_name) || ' ' || last_name)),
			lower(btrim(first_name || ' ' || last_name))
		)
	`
	rows, err := d.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("find persons by name: %w", err)
	}
	defer rows.Close()

	var out []Person
	for rows.Next() {
		var p Person
		var pid uuid.UUID
		if err := rows.Scan(&pid, &p.FirstName, &p.PreferredFirstName, &p.LastName); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		p.ID = id.PersonID(pid)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return out, nil
}
