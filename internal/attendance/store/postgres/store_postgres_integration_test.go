//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/store"
	"rollcall/internal/attendance/store/postgres"
	id "rollcall/pkg/domain"
	"rollcall/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store

	programID id.ProgramID
	personID  id.PersonID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx,
		"attendance_sessions", "attendance_events", "badge_bindings",
		"kiosk_devices", "persons", "programs",
	)
	s.Require().NoError(err)

	s.programID = id.ProgramID(uuid.New())
	_, err = s.postgres.DB.ExecContext(ctx,
		`INSERT INTO programs (id, name, attendance_enabled) VALUES ($1, 'Robotics', TRUE)`,
		uuid.UUID(s.programID))
	s.Require().NoError(err)

	s.personID = id.PersonID(uuid.New())
	_, err = s.postgres.DB.ExecContext(ctx,
		`INSERT INTO persons (id, first_name, last_name) VALUES ($1, 'Ada', 'Lovelace')`,
		uuid.UUID(s.personID))
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newOpenSession(subject models.Subject, checkIn time.Time) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		ID:        id.NewSessionID(),
		ProgramID: s.programID,
		Subject:   subject,
		CheckIn:   checkIn,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestOneOpenSessionPerTrack verifies the partial unique index rejects a
// second open session for the same track.
func (s *PostgresStoreSuite) TestOneOpenSessionPerTrack() {
	ctx := context.Background()
	subject := models.PersonSubject(s.personID)
	checkIn := time.Now().UTC().Truncate(time.Second)

	s.Require().NoError(s.store.Sessions().Insert(ctx, s.newOpenSession(subject, checkIn)))

	err := s.store.Sessions().Insert(ctx, s.newOpenSession(subject, checkIn.Add(time.Minute)))
	s.Error(err)

	// A different track is unaffected.
	s.NoError(s.store.Sessions().Insert(ctx, s.newOpenSession(models.VisitorSubject("guest"), checkIn)))
}

// TestConcurrentTrackTx verifies that racing transactions for one track
// serialize: exactly one opens a session.
func (s *PostgresStoreSuite) TestConcurrentTrackTx() {
	ctx := context.Background()
	subject := models.PersonSubject(s.personID)
	const goroutines = 32

	var wg sync.WaitGroup
	var opened, txErrors atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.RunInTrackTx(ctx, s.programID, subject, func(tx store.TxStores) error {
				open, err := tx.Sessions().FindOpen(ctx, s.programID, subject)
				if err != nil {
					return err
				}
				if open != nil {
					return nil
				}
				if err := tx.Sessions().Insert(ctx, s.newOpenSession(subject, time.Now().UTC())); err != nil {
					return err
				}
				opened.Add(1)
				return nil
			})
			if err != nil {
				txErrors.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(0), txErrors.Load(), "no transaction should fail")
	s.Equal(int32(1), opened.Load(), "exactly one transaction should open a session")

	open, err := s.store.Sessions().FindOpen(ctx, s.programID, subject)
	s.Require().NoError(err)
	s.NotNil(open)
}

func (s *PostgresStoreSuite) TestEventRoundTrip() {
	ctx := context.Background()

	event := &models.Event{
		ID:         id.NewEventID(),
		ProgramID:  s.programID,
		Subject:    models.PersonSubject(s.personID),
		BadgeUID:   "0042",
		Requested:  models.DirectionAuto,
		OccurredAt: time.Now().UTC().Truncate(time.Second),
		Source:     "kiosk",
		CreatedAt:  time.Now().UTC(),
	}
	s.Require().NoError(s.store.Events().Insert(ctx, event))
	s.Require().NoError(s.store.Events().SetResolved(ctx, event.ID, models.DirectionIn))

	got, err := s.store.Events().Get(ctx, event.ID)
	s.Require().NoError(err)
	s.Equal(models.DirectionIn, got.Resolved)
	s.Equal(models.DirectionAuto, got.Requested)
	s.Equal("0042", got.BadgeUID)

	personID, ok := got.Subject.Person()
	s.True(ok)
	s.Equal(s.personID, personID)

	s.Run("resolving an unknown event is not found", func() {
		err := s.store.Events().SetResolved(ctx, id.NewEventID(), models.DirectionIn)
		s.ErrorIs(err, store.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestSessionQueries() {
	ctx := context.Background()
	subject := models.PersonSubject(s.personID)
	base := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

	first := s.newOpenSession(subject, base)
	first.Close(base.Add(2 * time.Hour))
	s.Require().NoError(s.store.Sessions().Insert(ctx, first))

	second := s.newOpenSession(subject, base.Add(4*time.Hour))
	s.Require().NoError(s.store.Sessions().Insert(ctx, second))

	s.Run("find by exact check-in", func() {
		got, err := s.store.Sessions().FindByCheckIn(ctx, s.programID, subject, base)
		s.Require().NoError(err)
		s.Require().NotNil(got)
		s.Equal(first.ID, got.ID)

		missing, err := s.store.Sessions().FindByCheckIn(ctx, s.programID, subject, base.Add(time.Second))
		s.Require().NoError(err)
		s.Nil(missing)
	})

	s.Run("overlap window includes open sessions", func() {
		sessions, err := s.store.Sessions().ListOverlapping(ctx, s.programID, subject, base.Add(3*time.Hour), base.Add(8*time.Hour))
		s.Require().NoError(err)
		s.Require().Len(sessions, 1)
		s.Equal(second.ID, sessions[0].ID)
	})

	s.Run("program-wide listing spans subjects", func() {
		visitor := s.newOpenSession(models.VisitorSubject("guest"), base)
		s.Require().NoError(s.store.Sessions().Insert(ctx, visitor))

		sessions, err := s.store.Sessions().ListProgramOverlapping(ctx, s.programID, base, base.Add(8*time.Hour))
		s.Require().NoError(err)
		s.Len(sessions, 3)
	})

	s.Run("person listing is newest first", func() {
		sessions, err := s.store.Sessions().ListByPerson(ctx, s.personID, 10)
		s.Require().NoError(err)
		s.Require().Len(sessions, 2)
		s.Equal(second.ID, sessions[0].ID)
	})

	s.Run("update closes the open session", func() {
		second.Close(base.Add(5 * time.Hour))
		second.UpdatedAt = time.Now().UTC()
		s.Require().NoError(s.store.Sessions().Update(ctx, second))

		open, err := s.store.Sessions().FindOpen(ctx, s.programID, subject)
		s.Require().NoError(err)
		s.Nil(open)
	})
}

func (s *PostgresStoreSuite) TestBindings() {
	ctx := context.Background()

	s.Require().NoError(s.store.Bindings().Assign(ctx, models.BadgeBinding{
		UID:        "0042",
		PersonID:   s.personID,
		AssignedAt: time.Now().UTC(),
	}))

	s.Run("active binding resolves", func() {
		binding, err := s.store.Bindings().FindActiveByUID(ctx, "0042")
		s.Require().NoError(err)
		s.Require().NotNil(binding)
		s.Equal(s.personID, binding.PersonID)
	})

	s.Run("batch lookup skips unknown uids", func() {
		found, err := s.store.Bindings().FindActiveByUIDs(ctx, []string{"0042", "9999"})
		s.Require().NoError(err)
		s.Len(found, 1)
		s.Equal(s.personID, found["0042"])
	})

	s.Run("reassign replaces the active binding", func() {
		otherID := id.PersonID(uuid.New())
		_, err := s.postgres.DB.ExecContext(ctx,
			`INSERT INTO persons (id, first_name, last_name) VALUES ($1, 'Grace', 'Hopper')`,
			uuid.UUID(otherID))
		s.Require().NoError(err)

		s.Require().NoError(s.store.Bindings().Assign(ctx, models.BadgeBinding{
			UID:        "0042",
			PersonID:   otherID,
			AssignedAt: time.Now().UTC(),
		}))

		binding, err := s.store.Bindings().FindActiveByUID(ctx, "0042")
		s.Require().NoError(err)
		s.Require().NotNil(binding)
		s.Equal(otherID, binding.PersonID)
	})

	s.Run("revoked binding stops resolving", func() {
		s.Require().NoError(s.store.Bindings().Revoke(ctx, "0042"))
		binding, err := s.store.Bindings().FindActiveByUID(ctx, "0042")
		s.Require().NoError(err)
		s.Nil(binding)
	})
}
