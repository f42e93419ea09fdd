package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "rollcall/pkg/domain"
)

func TestSubject(t *testing.T) {
	personID := id.PersonID(uuid.New())

	t.Run("person subject exposes the identity", func(t *testing.T) {
		s := PersonSubject(personID)
		assert.Equal(t, SubjectPerson, s.Kind())
		got, ok := s.Person()
		assert.True(t, ok)
		assert.Equal(t, personID, got)
		assert.Empty(t, s.VisitorLabel())
	})

	t.Run("visitor subject exposes the label", func(t *testing.T) {
		s := VisitorSubject("John Doe")
		assert.Equal(t, SubjectVisitor, s.Kind())
		_, ok := s.Person()
		assert.False(t, ok)
		assert.Equal(t, "John Doe", s.VisitorLabel())
	})

	t.Run("zero subject is an empty-label visitor", func(t *testing.T) {
		var s Subject
		assert.Equal(t, SubjectVisitor, s.Kind())
		assert.Equal(t, "v:", s.Key())
	})

	t.Run("person and visitor keys never collide", func(t *testing.T) {
		p := PersonSubject(personID)
		v := VisitorSubject(personID.String())
		assert.NotEqual(t, p.Key(), v.Key())
	})

	t.Run("track key includes the program", func(t *testing.T) {
		progA := id.ProgramID(uuid.New())
		progB := id.ProgramID(uuid.New())
		s := VisitorSubject("x")
		assert.NotEqual(t, TrackKey(progA, s), TrackKey(progB, s))
	})
}

func TestSessionDuration(t *testing.T) {
	checkIn := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("closed session computes minutes", func(t *testing.T) {
		s := &Session{CheckIn: checkIn}
		s.Close(checkIn.Add(75 * time.Minute))
		assert.Equal(t, 75, s.DurationMinutes)
		assert.False(t, s.IsOpen())
	})

	t.Run("check-out before check-in clamps to zero", func(t *testing.T) {
		s := &Session{CheckIn: checkIn}
		s.Close(checkIn.Add(-10 * time.Minute))
		assert.Equal(t, 0, s.DurationMinutes)
	})

	t.Run("open session has no duration", func(t *testing.T) {
		s := &Session{CheckIn: checkIn}
		s.RecomputeDuration()
		assert.Equal(t, 0, s.DurationMinutes)
		assert.True(t, s.IsOpen())
	})
}

func TestDirection(t *testing.T) {
	assert.True(t, DirectionAuto.IsValid())
	assert.False(t, Direction("SIDEWAYS").IsValid())
	assert.True(t, DirectionIn.IsResolved())
	assert.False(t, DirectionAuto.IsResolved())
}
