package resolver

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/store/memory"
	id "rollcall/pkg/domain"
)

type ResolverSuite struct {
	suite.Suite
	store    *memory.Store
	resolver *Resolver
	personID id.PersonID
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.store = memory.New()
	s.personID = id.PersonID(uuid.New())

	var err error
	s.resolver, err = New(s.store.Bindings())
	s.Require().NoError(err)

	err = s.store.Bindings().Assign(context.Background(), models.BadgeBinding{
		UID:      "123456",
		PersonID: s.personID,
	})
	s.Require().NoError(err)
}

func (s *ResolverSuite) TestNew() {
	_, err := New(nil)
	s.Error(err)
}

func (s *ResolverSuite) TestResolve() {
	ctx := context.Background()

	s.Run("active binding resolves to the person", func() {
		personID, ok, err := s.resolver.Resolve(ctx, "123456")
		s.NoError(err)
		s.True(ok)
		s.Equal(s.personID, personID)
	})

	s.Run("unknown uid resolves to nothing", func() {
		_, ok, err := s.resolver.Resolve(ctx, "unknown")
		s.NoError(err)
		s.False(ok)
	})

	s.Run("empty uid short-circuits", func() {
		_, ok, err := s.resolver.Resolve(ctx, "")
		s.NoError(err)
		s.False(ok)
	})

	s.Run("revoked binding no longer resolves", func() {
		s.Require().NoError(s.store.Bindings().Revoke(ctx, "123456"))
		_, ok, err := s.resolver.Resolve(ctx, "123456")
		s.NoError(err)
		s.False(ok)
	})
}
