package service

import (
	"context"
	"sort"
	"time"

	"rollcall/internal/attendance/hours"
	"rollcall/internal/attendance/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// WeeklyHoursReport is one track's hours inside a single week.
type WeeklyHoursReport struct {
	ProgramID id.ProgramID `json:"program_id"`
	WeekStart time.Time    `json:"week_start"`
	WeekEnd   time.Time    `json:"week_end"`
	Hours     float64      `json:"hours"`
}

// StudentWeeklyHours reports the person's hours in the program for the week
// containing now. An open session counts up to now.
func (s *Service) StudentWeeklyHours(ctx context.Context, programID id.ProgramID, personID id.PersonID) (*WeeklyHoursReport, error) {
	if _, err := s.programs.Get(ctx, programID); err != nil {
		return nil, err
	}
	if _, err := s.persons.Get(ctx, personID); err != nil {
		return nil, err
	}

	now := s.clock()
	start, end := hours.WeekBounds(now)
	subject := models.PersonSubject(personID)

	sessions, err := s.store.Sessions().ListOverlapping(ctx, programID, subject, start, end)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list weekly sessions")
	}

	return &WeeklyHoursReport{
		ProgramID: programID,
		WeekStart: start,
		WeekEnd:   end,
		Hours:     hours.Window(sessions, start, end, now),
	}, nil
}

// ProgramWeeklyEntry is one person's row in a program weekly rollup.
type ProgramWeeklyEntry struct {
	PersonID id.PersonID `json:"person_id"`
	Name     string      `json:"name"`
	Hours    float64     `json:"hours"`
}

// ProgramWeeklyReport aggregates a program's hours for the current week.
type ProgramWeeklyReport struct {
	ProgramID id.ProgramID         `json:"program_id"`
	WeekStart time.Time            `json:"week_start"`
	WeekEnd   time.Time            `json:"week_end"`
	Entries   []ProgramWeeklyEntry `json:"entries"`
}

// ProgramWeeklyHours rolls up this week's hours for every person seen in the
// program, most hours first. Visitor sessions are excluded; rollups are a
// staff-facing roster view and visitors have no stable identity to report on.
func (s *Service) ProgramWeeklyHours(ctx context.Context, programID id.ProgramID) (*ProgramWeeklyReport, error) {
	if _, err := s.programs.Get(ctx, programID); err != nil {
		return nil, err
	}

	now := s.clock()
	start, end := hours.WeekBounds(now)

	sessions, err := s.store.Sessions().ListProgramOverlapping(ctx, programID, start, end)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list program sessions")
	}

	byPerson := make(map[id.PersonID][]*models.Session)
	for _, session := range sessions {
		personID, ok := session.Subject.Person()
		if !ok {
			continue
		}
		byPerson[personID] = append(byPerson[personID], session)
	}

	report := &ProgramWeeklyReport{
		ProgramID: programID,
		WeekStart: start,
		WeekEnd:   end,
		Entries:   make([]ProgramWeeklyEntry, 0, len(byPerson)),
	}
	for personID, personSessions := range byPerson {
		entry := ProgramWeeklyEntry{
			PersonID: personID,
			Hours:    hours.Window(personSessions, start, end, now),
		}
		person, err := s.persons.Get(ctx, personID)
		if err == nil {
			entry.Name = person.DisplayName()
		} else if !dErrors.Is(err, dErrors.CodeNotFound) {
			return nil, err
		}
		report.Entries = append(report.Entries, entry)
	}

	sort.Slice(report.Entries, func(i, j int) bool {
		if report.Entries[i].Hours != report.Entries[j].Hours {
			return report.Entries[i].Hours > report.Entries[j].Hours
		}
		return report.Entries[i].Name < report.Entries[j].Name
	})
	return report, nil
}

// AllTimeReport is the lifetime summary for one track.
type AllTimeReport struct {
	ProgramID           id.ProgramID `json:"program_id"`
	Since               time.Time    `json:"since"`
	TotalHours          float64      `json:"total_hours"`
	WeeksElapsed        int          `json:"weeks_elapsed"`
	AverageHoursPerWeek float64      `json:"average_hours_per_week"`
}

// StudentAllTimeHours reports total and weekly-average hours for the person
// in the program since the program's start date, or since their first
// check-in when the program has none on record.
func (s *Service) StudentAllTimeHours(ctx context.Context, programID id.ProgramID, personID id.PersonID) (*AllTimeReport, error) {
	program, err := s.programs.Get(ctx, programID)
	if err != nil {
		return nil, err
	}
	if _, err := s.persons.Get(ctx, personID); err != nil {
		return nil, err
	}

	now := s.clock()
	subject := models.PersonSubject(personID)

	// The far past lower bound just needs to precede any plausible session.
	floor := now.AddDate(-50, 0, 0)
	sessions, err := s.store.Sessions().ListOverlapping(ctx, programID, subject, floor, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list sessions")
	}

	since := now
	if program.StartDate != nil {
		since = *program.StartDate
	} else if earliest, ok := hours.EarliestCheckIn(sessions); ok {
		since = earliest
	}

	summary := hours.AllTimeSince(sessions, since, now)
	return &AllTimeReport{
		ProgramID:           programID,
		Since:               since,
		TotalHours:          summary.TotalHours,
		WeeksElapsed:        summary.WeeksElapsed,
		AverageHoursPerWeek: summary.AverageHoursPerWeek,
	}, nil
}

// ListStudentSessions returns the person's sessions across programs, newest
// first. limit <= 0 falls back to a sane default.
func (s *Service) ListStudentSessions(ctx context.Context, personID id.PersonID, limit int) ([]*models.Session, error) {
	if _, err := s.persons.Get(ctx, personID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 200
	}
	sessions, err := s.store.Sessions().ListByPerson(ctx, personID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list person sessions")
	}
	return sessions, nil
}

// AssignBadge binds a badge UID to a person, replacing any prior binding for
// that UID, and invalidates the resolver cache entry.
func (s *Service) AssignBadge(ctx context.Context, uid string, personID id.PersonID) error {
	if uid == "" {
		return dErrors.New(dErrors.CodeValidation, "badge uid is required")
	}
	if _, err := s.persons.Get(ctx, personID); err != nil {
		return err
	}
	err := s.store.Bindings().Assign(ctx, models.BadgeBinding{
		UID:        uid,
		PersonID:   personID,
		Active:     true,
		AssignedAt: s.clock(),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "assign badge")
	}
	s.invalidateBadge(ctx, uid)
	return nil
}

// RevokeBadge deactivates the badge UID's active binding, if any.
func (s *Service) RevokeBadge(ctx context.Context, uid string) error {
	if uid == "" {
		return dErrors.New(dErrors.CodeValidation, "badge uid is required")
	}
	if err := s.store.Bindings().Revoke(ctx, uid); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke badge")
	}
	s.invalidateBadge(ctx, uid)
	return nil
}

func (s *Service) invalidateBadge(ctx context.Context, uid string) {
	if inv, ok := s.resolver.(interface{ Invalidate(ctx context.Context, uid string) }); ok {
		inv.Invalidate(ctx, uid)
	}
}
