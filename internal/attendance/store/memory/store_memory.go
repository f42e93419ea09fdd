// Package memory provides the in-memory store used by unit tests and
// database-less development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/store"
	id "rollcall/pkg/domain"
)

// Store keeps all attendance state in process. Track transactions are
// serialized with one mutex per track key, so different tracks never block
// each other.
type Store struct {
	mu       sync.RWMutex
	events   map[id.EventID]*models.Event
	sessions map[id.SessionID]*models.Session
	bindings []*models.BadgeBinding
	kiosks   map[id.KioskID]*models.KioskDevice

	trackMu sync.Mutex
	tracks  map[string]*sync.Mutex
}

func New() *Store {
	return &Store{
		events:   make(map[id.EventID]*models.Event),
		sessions: make(map[id.SessionID]*models.Session),
		kiosks:   make(map[id.KioskID]*models.KioskDevice),
		tracks:   make(map[string]*sync.Mutex),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Events() store.EventStore     { return (*eventStore)(s) }
func (s *Store) Sessions() store.SessionStore { return (*sessionStore)(s) }
func (s *Store) Bindings() store.BindingStore { return (*bindingStore)(s) }
func (s *Store) Kiosks() store.KioskStore     { return (*kioskStore)(s) }

// RunInTrackTx serializes fn against other transactions for the same track.
func (s *Store) RunInTrackTx(ctx context.Context, programID id.ProgramID, subject models.Subject, fn func(tx store.TxStores) error) error {
	mu := s.trackLock(models.TrackKey(programID, subject))
	mu.Lock()
	defer mu.Unlock()
	return fn(s)
}

func (s *Store) trackLock(key string) *sync.Mutex {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	mu, ok := s.tracks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.tracks[key] = mu
	}
	return mu
}

// --- events ---

type eventStore Store

func (s *eventStore) Insert(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.events[event.ID] = &cp
	return nil
}

func (s *eventStore) SetResolved(_ context.Context, eventID id.EventID, resolved models.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	evt, ok := s.events[eventID]
	if !ok {
		return store.ErrNotFound
	}
	evt.Resolved = resolved
	return nil
}

func (s *eventStore) Get(_ context.Context, eventID id.EventID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evt, ok := s.events[eventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *evt
	return &cp, nil
}

// --- sessions ---

type sessionStore Store

func (s *sessionStore) Insert(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *sessionStore) Update(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *sessionStore) FindOpen(_ context.Context, programID id.ProgramID, subject models.Subject) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := models.TrackKey(programID, subject)
	var latest *models.Session
	for _, sess := range s.sessions {
		if !sess.IsOpen() || models.TrackKey(sess.ProgramID, sess.Subject) != key {
			continue
		}
		if latest == nil || sess.CheckIn.After(latest.CheckIn) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *sessionStore) FindByCheckIn(_ context.Context, programID id.ProgramID, subject models.Subject, checkIn time.Time) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := models.TrackKey(programID, subject)
	for _, sess := range s.sessions {
		if models.TrackKey(sess.ProgramID, sess.Subject) == key && sess.CheckIn.Equal(checkIn) {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *sessionStore) ListOverlapping(_ context.Context, programID id.ProgramID, subject models.Subject, start, end time.Time) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := models.TrackKey(programID, subject)
	var out []*models.Session
	for _, sess := range s.sessions {
		if models.TrackKey(sess.ProgramID, sess.Subject) != key {
			continue
		}
		if overlaps(sess, start, end) {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sortByCheckIn(out)
	return out, nil
}

func (s *sessionStore) ListProgramOverlapping(_ context.Context, programID id.ProgramID, start, end time.Time) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.ProgramID != programID {
			continue
		}
		if overlaps(sess, start, end) {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sortByCheckIn(out)
	return out, nil
}

func (s *sessionStore) ListByPerson(_ context.Context, personID id.PersonID, limit int) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for _, sess := range s.sessions {
		if pid, ok := sess.Subject.Person(); ok && pid == personID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn.After(out[j].CheckIn) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func overlaps(sess *models.Session, start, end time.Time) bool {
	if !sess.CheckIn.Before(end) {
		return false
	}
	return sess.CheckOut == nil || sess.CheckOut.After(start)
}

func sortByCheckIn(sessions []*models.Session) {
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CheckIn.Before(sessions[j].CheckIn) })
}

// --- bindings ---

type bindingStore Store

func (s *bindingStore) FindActiveByUID(_ context.Context, uid string) (*models.BadgeBinding, error) {
	if uid == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bindings {
		if b.UID == uid && b.Active {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *bindingStore) FindActiveByUIDs(_ context.Context, uids []string) (map[string]id.PersonID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]id.PersonID, len(uids))
	for _, uid := range uids {
		for _, b := range s.bindings {
			if b.UID == uid && b.Active {
				out[uid] = b.PersonID
				break
			}
		}
	}
	return out, nil
}

func (s *bindingStore) Assign(_ context.Context, binding models.BadgeBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bindings {
		if b.UID == binding.UID {
			b.Active = false
		}
	}
	binding.Active = true
	cp := binding
	s.bindings = append(s.bindings, &cp)
	return nil
}

func (s *bindingStore) Revoke(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bindings {
		if b.UID == uid && b.Active {
			b.Active = false
		}
	}
	return nil
}

// --- kiosks ---

type kioskStore Store

func (s *kioskStore) Get(_ context.Context, kioskID id.KioskID) (*models.KioskDevice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.kiosks[kioskID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

// SeedKiosk registers a kiosk device; used by tests and dev seeding.
func (s *Store) SeedKiosk(kiosk models.KioskDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := kiosk
	s.kiosks[kiosk.ID] = &cp
}
