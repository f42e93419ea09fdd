// Package service implements the session tracker: it turns taps into audit
// events and presence-session mutations under the at-most-one-open-session
// invariant.
package service

import (
	"context"
	"log/slog"
	"time"

	"rollcall/internal/attendance/metrics"
	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/store"
	"rollcall/internal/directory"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Clock supplies the current time; injected so tests are deterministic.
type Clock func() time.Time

// BadgeResolver maps a badge UID to a person, if an active binding exists.
type BadgeResolver interface {
	Resolve(ctx context.Context, uid string) (id.PersonID, bool, error)
}

// Service coordinates tap processing and attendance queries.
type Service struct {
	store    store.Store
	programs directory.Programs
	persons  directory.Persons
	resolver BadgeResolver
	clock    Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the attendance service.
func New(st store.Store, programs directory.Programs, persons directory.Persons, resolver BadgeResolver, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "attendance store is required")
	}
	if programs == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "program directory is required")
	}
	if persons == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "person directory is required")
	}
	if resolver == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "badge resolver is required")
	}
	svc := &Service{
		store:    st,
		programs: programs,
		persons:  persons,
		resolver: resolver,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// TapRequest carries one reported presence event into RecordTap.
type TapRequest struct {
	ProgramID    id.ProgramID
	BadgeUID     string
	VisitorLabel string
	Direction    models.Direction
	OccurredAt   time.Time // zero means "now"
	KioskID      *id.KioskID
	Source       string
	Notes        string
}

// RecordTap appends an audit event and opens or closes the track's session
// accordingly. The event insert, open-session read, and session write run in
// one track transaction, so concurrent taps for one track serialize and the
// at-most-one-open-session invariant holds.
//
// Direction policy:
//   - AUTO toggles: an open session closes (OUT), otherwise one opens (IN).
//   - Explicit IN with a session already open closes it first at this tap's
//     timestamp, then opens a new one ("they left and came back").
//   - Explicit OUT with nothing open records an immediately-closed
//     zero-duration session rather than dropping the tap.
func (s *Service) RecordTap(ctx context.Context, req TapRequest) (*models.Event, error) {
	start := time.Now()
	if s.metrics != nil {
		defer s.metrics.ObserveRecordTap(start)
	}

	direction := req.Direction
	if direction == "" {
		direction = models.DirectionAuto
	}
	if !direction.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "direction must be IN, OUT, or AUTO")
	}
	if req.ProgramID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "program_id is required")
	}

	enabled, err := s.programs.AttendanceEnabled(ctx, req.ProgramID)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, dErrors.New(dErrors.CodeFeatureDisabled, "attendance is not enabled for this program")
	}

	if req.KioskID != nil {
		kiosk, err := s.store.Kiosks().Get(ctx, *req.KioskID)
		if err != nil {
			if dErrors.Is(err, dErrors.CodeNotFound) {
				return nil, dErrors.New(dErrors.CodeValidation, "unknown kiosk")
			}
			return nil, err
		}
		if !kiosk.Active {
			return nil, dErrors.New(dErrors.CodeValidation, "kiosk is deactivated")
		}
	}

	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.clock()
	}

	// A resolved identity always wins over a supplied visitor label.
	subject := models.VisitorSubject(req.VisitorLabel)
	if req.BadgeUID != "" {
		personID, ok, err := s.resolver.Resolve(ctx, req.BadgeUID)
		if err != nil {
			return nil, err
		}
		if ok {
			subject = models.PersonSubject(personID)
		}
	}

	source := req.Source
	if source == "" {
		source = "kiosk"
	}

	event := &models.Event{
		ID:         id.NewEventID(),
		ProgramID:  req.ProgramID,
		Subject:    subject,
		BadgeUID:   req.BadgeUID,
		KioskID:    req.KioskID,
		Requested:  direction,
		OccurredAt: occurredAt,
		Source:     source,
		Notes:      req.Notes,
		CreatedAt:  s.clock(),
	}

	var opened, closed int
	err = s.store.RunInTrackTx(ctx, req.ProgramID, subject, func(tx store.TxStores) error {
		// Event first: every tap is audited even if the session step fails
		// and rolls the transaction back together.
		if err := tx.Events().Insert(ctx, event); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "append attendance event")
		}

		open, err := tx.Sessions().FindOpen(ctx, req.ProgramID, subject)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "find open session")
		}

		var resolved models.Direction
		switch direction {
		case models.DirectionAuto:
			resolved, err = s.decideAuto(ctx, tx, event, open)
		case models.DirectionIn:
			if open != nil {
				// Dangling session: treat the second IN as an implicit OUT
				// at this tap's timestamp before reopening.
				open.Close(occurredAt)
				open.UpdatedAt = s.clock()
				if err = tx.Sessions().Update(ctx, open); err == nil {
					closed++
				}
			}
			if err == nil {
				err = s.openSession(ctx, tx, event)
				resolved = models.DirectionIn
			}
		case models.DirectionOut:
			if open != nil {
				open.Close(occurredAt)
				open.ClosedBy = &event.ID
				open.UpdatedAt = s.clock()
				err = tx.Sessions().Update(ctx, open)
			} else {
				// Orphan OUT: keep the audit trail by recording a
				// zero-duration closed session.
				err = s.insertClosedStub(ctx, tx, event)
			}
			resolved = models.DirectionOut
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "apply tap to session")
		}

		if resolved == models.DirectionIn {
			opened++
		} else if open != nil || direction == models.DirectionOut {
			closed++
		}

		if err := tx.Events().SetResolved(ctx, event.ID, resolved); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "finalize event resolution")
		}
		event.Resolved = resolved
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		if event.Resolved == models.DirectionIn {
			s.metrics.TapsIn.Inc()
		} else {
			s.metrics.TapsOut.Inc()
		}
		for i := 0; i < opened; i++ {
			s.metrics.SessionsOpened.Inc()
		}
		for i := 0; i < closed; i++ {
			s.metrics.SessionsClosed.Inc()
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "tap recorded",
			"program_id", req.ProgramID,
			"subject", subject.String(),
			"requested", string(direction),
			"resolved", string(event.Resolved),
			"source", source,
		)
	}
	return event, nil
}

// decideAuto infers IN or OUT from the track's current state and applies it.
func (s *Service) decideAuto(ctx context.Context, tx store.TxStores, event *models.Event, open *models.Session) (models.Direction, error) {
	if open != nil {
		open.Close(event.OccurredAt)
		open.ClosedBy = &event.ID
		open.UpdatedAt = s.clock()
		return models.DirectionOut, tx.Sessions().Update(ctx, open)
	}
	return models.DirectionIn, s.openSession(ctx, tx, event)
}

func (s *Service) openSession(ctx context.Context, tx store.TxStores, event *models.Event) error {
	now := s.clock()
	return tx.Sessions().Insert(ctx, &models.Session{
		ID:        id.NewSessionID(),
		ProgramID: event.ProgramID,
		Subject:   event.Subject,
		CheckIn:   event.OccurredAt,
		OpenedBy:  &event.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *Service) insertClosedStub(ctx context.Context, tx store.TxStores, event *models.Event) error {
	now := s.clock()
	session := &models.Session{
		ID:        id.NewSessionID(),
		ProgramID: event.ProgramID,
		Subject:   event.Subject,
		CheckIn:   event.OccurredAt,
		ClosedBy:  &event.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	session.Close(event.OccurredAt)
	return tx.Sessions().Insert(ctx, session)
}
