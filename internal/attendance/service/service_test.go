package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/resolver"
	"rollcall/internal/attendance/store/memory"
	"rollcall/internal/directory"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	store    *memory.Store
	programs *directory.MemoryPrograms
	persons  *directory.MemoryPersons
	svc      *Service
	now      time.Time

	programID id.ProgramID
	personID  id.PersonID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = memory.New()
	s.programs = directory.NewMemoryPrograms()
	s.persons = directory.NewMemoryPersons()
	s.now = time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC) // a Wednesday

	s.programID = id.ProgramID(uuid.New())
	s.programs.Add(directory.Program{
		ID:                s.programID,
		Name:              "Robotics",
		AttendanceEnabled: true,
	})

	s.personID = id.PersonID(uuid.New())
	s.persons.Add(directory.Person{ID: s.personID, FirstName: "Ada", LastName: "Lovelace"})

	res, err := resolver.New(s.store.Bindings())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Bindings().Assign(context.Background(), models.BadgeBinding{
		UID:      "0042",
		PersonID: s.personID,
	}))

	s.svc, err = New(s.store, s.programs, s.persons, res, WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
}

func (s *ServiceSuite) advance(d time.Duration) { s.now = s.now.Add(d) }

func (s *ServiceSuite) tap(req TapRequest) *models.Event {
	if req.ProgramID.IsNil() {
		req.ProgramID = s.programID
	}
	event, err := s.svc.RecordTap(context.Background(), req)
	s.Require().NoError(err)
	return event
}

func (s *ServiceSuite) openSession() *models.Session {
	open, err := s.store.Sessions().FindOpen(context.Background(), s.programID, models.PersonSubject(s.personID))
	s.Require().NoError(err)
	return open
}

func (s *ServiceSuite) TestAutoToggle() {
	ctx := context.Background()

	in := s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionAuto})
	s.Equal(models.DirectionIn, in.Resolved)

	open := s.openSession()
	s.Require().NotNil(open)
	s.Require().NotNil(open.OpenedBy)
	s.Equal(in.ID, *open.OpenedBy)

	s.advance(30 * time.Minute)
	out := s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionAuto})
	s.Equal(models.DirectionOut, out.Resolved)

	s.Nil(s.openSession())

	closedSession, err := s.store.Sessions().FindByCheckIn(ctx, s.programID, models.PersonSubject(s.personID), in.OccurredAt)
	s.Require().NoError(err)
	s.Require().NotNil(closedSession)
	s.Require().NotNil(closedSession.CheckOut)
	s.Equal(30, closedSession.DurationMinutes)
	s.Require().NotNil(closedSession.ClosedBy)
	s.Equal(out.ID, *closedSession.ClosedBy)

	stored, err := s.store.Events().Get(ctx, out.ID)
	s.Require().NoError(err)
	s.Equal(models.DirectionOut, stored.Resolved)
}

func (s *ServiceSuite) TestExplicitInClosesDanglingSession() {
	ctx := context.Background()

	first := s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionIn})
	s.advance(2 * time.Hour)
	second := s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionIn})
	s.Equal(models.DirectionIn, second.Resolved)

	// The dangling session closed at the second tap, unlinked; a fresh one
	// is now open.
	stale, err := s.store.Sessions().FindByCheckIn(ctx, s.programID, models.PersonSubject(s.personID), first.OccurredAt)
	s.Require().NoError(err)
	s.Require().NotNil(stale)
	s.Require().NotNil(stale.CheckOut)
	s.Equal(120, stale.DurationMinutes)
	s.Nil(stale.ClosedBy)

	open := s.openSession()
	s.Require().NotNil(open)
	s.Equal(second.OccurredAt, open.CheckIn)
}

func (s *ServiceSuite) TestExplicitOutWithoutOpenSession() {
	ctx := context.Background()

	out := s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionOut})
	s.Equal(models.DirectionOut, out.Resolved)

	stub, err := s.store.Sessions().FindByCheckIn(ctx, s.programID, models.PersonSubject(s.personID), out.OccurredAt)
	s.Require().NoError(err)
	s.Require().NotNil(stub)
	s.Require().NotNil(stub.CheckOut)
	s.Equal(0, stub.DurationMinutes)
	s.Nil(stub.OpenedBy)
	s.Require().NotNil(stub.ClosedBy)
	s.Equal(out.ID, *stub.ClosedBy)
}

func (s *ServiceSuite) TestVisitorTap() {
	event := s.tap(TapRequest{VisitorLabel: "Guest Parent", Direction: models.DirectionAuto})
	s.Equal(models.SubjectVisitor, event.Subject.Kind())
	s.Equal("Guest Parent", event.Subject.VisitorLabel())

	open, err := s.store.Sessions().FindOpen(context.Background(), s.programID, models.VisitorSubject("Guest Parent"))
	s.Require().NoError(err)
	s.NotNil(open)
}

func (s *ServiceSuite) TestResolvedBadgeSupersedesVisitorLabel() {
	event := s.tap(TapRequest{BadgeUID: "0042", VisitorLabel: "someone", Direction: models.DirectionAuto})
	personID, ok := event.Subject.Person()
	s.True(ok)
	s.Equal(s.personID, personID)
}

func (s *ServiceSuite) TestUnknownBadgeFallsBackToVisitor() {
	event := s.tap(TapRequest{BadgeUID: "9999", VisitorLabel: "walk-in", Direction: models.DirectionAuto})
	s.Equal(models.SubjectVisitor, event.Subject.Kind())
	s.Equal("walk-in", event.Subject.VisitorLabel())
	s.Equal("9999", event.BadgeUID)
}

func (s *ServiceSuite) TestAttendanceDisabledWritesNothing() {
	disabled := id.ProgramID(uuid.New())
	s.programs.Add(directory.Program{ID: disabled, Name: "Chess", AttendanceEnabled: false})

	_, err := s.svc.RecordTap(context.Background(), TapRequest{
		ProgramID: disabled,
		BadgeUID:  "0042",
		Direction: models.DirectionAuto,
	})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeFeatureDisabled))

	open, err := s.store.Sessions().FindOpen(context.Background(), disabled, models.PersonSubject(s.personID))
	s.Require().NoError(err)
	s.Nil(open)
}

func (s *ServiceSuite) TestRecordTapValidation() {
	ctx := context.Background()

	s.Run("bad direction", func() {
		_, err := s.svc.RecordTap(ctx, TapRequest{ProgramID: s.programID, Direction: "SIDEWAYS"})
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})

	s.Run("missing program", func() {
		_, err := s.svc.RecordTap(ctx, TapRequest{Direction: models.DirectionAuto})
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})

	s.Run("blank direction defaults to AUTO", func() {
		event := s.tap(TapRequest{BadgeUID: "0042"})
		s.Equal(models.DirectionAuto, event.Requested)
		s.Equal(models.DirectionIn, event.Resolved)
	})
}

func (s *ServiceSuite) TestKioskChecks() {
	ctx := context.Background()

	kioskID := id.KioskID(uuid.New())
	s.store.SeedKiosk(models.KioskDevice{ID: kioskID, Name: "front door", ProgramID: s.programID, Active: true})

	s.Run("known active kiosk is stamped on the event", func() {
		event := s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionAuto, KioskID: &kioskID})
		s.Require().NotNil(event.KioskID)
		s.Equal(kioskID, *event.KioskID)
	})

	s.Run("unknown kiosk is rejected", func() {
		bogus := id.KioskID(uuid.New())
		_, err := s.svc.RecordTap(ctx, TapRequest{ProgramID: s.programID, BadgeUID: "0042", KioskID: &bogus})
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})

	s.Run("deactivated kiosk is rejected", func() {
		dead := id.KioskID(uuid.New())
		s.store.SeedKiosk(models.KioskDevice{ID: dead, Name: "retired", ProgramID: s.programID, Active: false})
		_, err := s.svc.RecordTap(ctx, TapRequest{ProgramID: s.programID, BadgeUID: "0042", KioskID: &dead})
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestStudentWeeklyHours() {
	ctx := context.Background()

	s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionIn})
	s.advance(90 * time.Minute)
	s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionOut})

	report, err := s.svc.StudentWeeklyHours(ctx, s.programID, s.personID)
	s.Require().NoError(err)
	s.Equal(1.5, report.Hours)
	s.Equal(time.Monday, report.WeekStart.Weekday())
	s.Equal(7*24*time.Hour, report.WeekEnd.Sub(report.WeekStart))

	s.Run("open session counts up to now", func() {
		s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionIn})
		s.advance(30 * time.Minute)
		report, err := s.svc.StudentWeeklyHours(ctx, s.programID, s.personID)
		s.Require().NoError(err)
		s.Equal(2.0, report.Hours)
	})

	s.Run("unknown person is a not found error", func() {
		_, err := s.svc.StudentWeeklyHours(ctx, s.programID, id.PersonID(uuid.New()))
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestProgramWeeklyHours() {
	ctx := context.Background()

	otherID := id.PersonID(uuid.New())
	s.persons.Add(directory.Person{ID: otherID, FirstName: "Grace", LastName: "Hopper"})
	s.Require().NoError(s.store.Bindings().Assign(ctx, models.BadgeBinding{UID: "0043", PersonID: otherID}))

	s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionIn})
	s.tap(TapRequest{BadgeUID: "0043", Direction: models.DirectionIn})
	s.tap(TapRequest{VisitorLabel: "guest", Direction: models.DirectionIn})
	s.advance(time.Hour)
	s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionOut})
	s.advance(time.Hour)
	s.tap(TapRequest{BadgeUID: "0043", Direction: models.DirectionOut})
	s.tap(TapRequest{VisitorLabel: "guest", Direction: models.DirectionOut})

	report, err := s.svc.ProgramWeeklyHours(ctx, s.programID)
	s.Require().NoError(err)
	s.Require().Len(report.Entries, 2) // visitors are excluded from rollups

	s.Equal(otherID, report.Entries[0].PersonID)
	s.Equal("Grace Hopper", report.Entries[0].Name)
	s.Equal(2.0, report.Entries[0].Hours)

	s.Equal(s.personID, report.Entries[1].PersonID)
	s.Equal(1.0, report.Entries[1].Hours)
}

func (s *ServiceSuite) TestStudentAllTimeHours() {
	ctx := context.Background()

	start := s.now.AddDate(0, 0, -20)
	s.programs.Add(directory.Program{
		ID:                s.programID,
		Name:              "Robotics",
		StartDate:         &start,
		AttendanceEnabled: true,
	})

	s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionIn})
	s.advance(3 * time.Hour)
	s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionOut})

	report, err := s.svc.StudentAllTimeHours(ctx, s.programID, s.personID)
	s.Require().NoError(err)
	s.Equal(start, report.Since)
	s.Equal(3.0, report.TotalHours)
	s.Equal(3, report.WeeksElapsed) // 20 days elapsed
	s.Equal(1.0, report.AverageHoursPerWeek)
}

func (s *ServiceSuite) TestStudentAllTimeHoursWithoutProgramStart() {
	in := s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionIn})
	s.advance(time.Hour)
	s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionOut})

	report, err := s.svc.StudentAllTimeHours(context.Background(), s.programID, s.personID)
	s.Require().NoError(err)
	s.Equal(in.OccurredAt, report.Since)
	s.Equal(1.0, report.TotalHours)
	s.Equal(1, report.WeeksElapsed)
}

func (s *ServiceSuite) TestListStudentSessions() {
	s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionIn})
	s.advance(time.Hour)
	s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionOut})
	s.advance(time.Hour)
	s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionIn})

	sessions, err := s.svc.ListStudentSessions(context.Background(), s.personID, 10)
	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	s.True(sessions[0].CheckIn.After(sessions[1].CheckIn))
}

func (s *ServiceSuite) TestBadgeLifecycle() {
	ctx := context.Background()

	s.Run("assign rebinds the uid", func() {
		otherID := id.PersonID(uuid.New())
		s.persons.Add(directory.Person{ID: otherID, FirstName: "Grace", LastName: "Hopper"})
		s.Require().NoError(s.svc.AssignBadge(ctx, "0042", otherID))

		event := s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionAuto})
		personID, ok := event.Subject.Person()
		s.True(ok)
		s.Equal(otherID, personID)
	})

	s.Run("revoke demotes the badge to visitor", func() {
		s.Require().NoError(s.svc.RevokeBadge(ctx, "0042"))
		event := s.tap(TapRequest{BadgeUID: "0042", Direction: models.DirectionAuto})
		s.Equal(models.SubjectVisitor, event.Subject.Kind())
	})

	s.Run("assign validates inputs", func() {
		s.True(dErrors.Is(s.svc.AssignBadge(ctx, "", s.personID), dErrors.CodeValidation))
		s.True(dErrors.Is(s.svc.AssignBadge(ctx, "0042", id.PersonID(uuid.New())), dErrors.CodeNotFound))
	})
}
