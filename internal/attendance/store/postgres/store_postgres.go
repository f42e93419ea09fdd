// Package postgres persists attendance state in PostgreSQL.
// Stores here are pure I/O; tap semantics live in the service layer.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/store"
	id "rollcall/pkg/domain"
)

// querier abstracts *sql.DB and *sql.Tx so the same store code serves both
// direct reads and track transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the PostgreSQL-backed attendance store.
type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed attendance store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Events() store.EventStore     { return &eventStore{q: s.db} }
func (s *Store) Sessions() store.SessionStore { return &sessionStore{q: s.db} }
func (s *Store) Bindings() store.BindingStore { return &bindingStore{q: s.db} }
func (s *Store) Kiosks() store.KioskStore     { return &kioskStore{q: s.db} }

type txStores struct {
	tx *sql.Tx
}

func (t txStores) Events() store.EventStore     { return &eventStore{q: t.tx} }
func (t txStores) Sessions() store.SessionStore { return &sessionStore{q: t.tx} }

// RunInTrackTx wraps fn in a transaction holding an advisory lock derived
// from the track key. The lock serializes concurrent taps for one track
// (including the open-a-first-session case, where there is no row to lock)
// while leaving other tracks unblocked. It releases automatically at commit
// or rollback.
func (s *Store) RunInTrackTx(ctx context.Context, programID id.ProgramID, subject models.Subject, fn func(tx store.TxStores) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin track tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, trackLockKey(programID, subject)); err != nil {
		return fmt.Errorf("acquire track lock: %w", err)
	}

	if err := fn(txStores{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit track tx: %w", err)
	}
	return nil
}

// trackLockKey hashes the track key into the advisory lock space. A hash
// collision only over-serializes two tracks; it cannot corrupt state.
func trackLockKey(programID id.ProgramID, subject models.Subject) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(models.TrackKey(programID, subject)))
	return int64(h.Sum64())
}

// --- events ---

type eventStore struct {
	q querier
}

func (s *eventStore) Insert(ctx context.Context, event *models.Event) error {
	personID, visitorLabel := subjectColumns(event.Subject)
	var kioskID any
	if event.KioskID != nil {
		kioskID = uuid.UUID(*event.KioskID)
	}
	query := `
		INSERT INTO attendance_events
			(id, program_id, person_id, visitor_label, badge_uid, kiosk_id, requested, resolved, occurred_at, source, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.q.ExecContext(ctx, query,
		uuid.UUID(event.ID),
		uuid.UUID(event.ProgramID),
		personID,
		visitorLabel,
		event.BadgeUID,
		kioskID,
		string(event.Requested),
		string(event.Resolved),
		event.OccurredAt,
		event.Source,
		event.Notes,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attendance event: %w", err)
	}
	return nil
}

func (s *eventStore) SetResolved(ctx context.Context, eventID id.EventID, resolved models.Direction) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE attendance_events SET resolved = $2 WHERE id = $1`,
		uuid.UUID(eventID), string(resolved),
	)
	if err != nil {
		return fmt.Errorf("set event resolution: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set event resolution rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *eventStore) Get(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	query := `
		SELECT id, program_id, person_id, visitor_label, badge_uid, kiosk_id, requested, resolved, occurred_at, source, notes, created_at
		FROM attendance_events
		WHERE id = $1
	`
	event, err := scanEvent(s.q.QueryRowContext(ctx, query, uuid.UUID(eventID)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get attendance event: %w", err)
	}
	return event, nil
}

// --- sessions ---

type sessionStore struct {
	q querier
}

const sessionColumns = `id, program_id, person_id, visitor_label, check_in, check_out, duration_minutes, opened_by, closed_by, created_at, updated_at`

func (s *sessionStore) Insert(ctx context.Context, session *models.Session) error {
	personID, visitorLabel := subjectColumns(session.Subject)
	query := `
		INSERT INTO attendance_sessions
			(id, program_id, person_id, visitor_label, subject_key, check_in, check_out, duration_minutes, opened_by, closed_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.q.ExecContext(ctx, query,
		uuid.UUID(session.ID),
		uuid.UUID(session.ProgramID),
		personID,
		visitorLabel,
		session.Subject.Key(),
		session.CheckIn,
		nullableTime(session.CheckOut),
		session.DurationMinutes,
		nullableEventID(session.OpenedBy),
		nullableEventID(session.ClosedBy),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attendance session: %w", err)
	}
	return nil
}

func (s *sessionStore) Update(ctx context.Context, session *models.Session) error {
	query := `
		UPDATE attendance_sessions
		SET check_out = $2,
			duration_minutes = $3,
			opened_by = $4,
			closed_by = $5,
			updated_at = $6
		WHERE id = $1
	`
	result, err := s.q.ExecContext(ctx, query,
		uuid.UUID(session.ID),
		nullableTime(session.CheckOut),
		session.DurationMinutes,
		nullableEventID(session.OpenedBy),
		nullableEventID(session.ClosedBy),
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update attendance session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update attendance session rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *sessionStore) FindOpen(ctx context.Context, programID id.ProgramID, subject models.Subject) (*models.Session, error) {
	// FOR UPDATE pins the open row for the duration of a track transaction;
	// outside one it degrades to a plain locked read.
	query := `
		SELECT ` + sessionColumns + `
		FROM attendance_sessions
		WHERE program_id = $1 AND subject_key = $2 AND check_out IS NULL
		ORDER BY check_in DESC
		LIMIT 1
		FOR UPDATE
	`
	session, err := scanSession(s.q.QueryRowContext(ctx, query, uuid.UUID(programID), subject.Key()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find open session: %w", err)
	}
	return session, nil
}

func (s *sessionStore) FindByCheckIn(ctx context.Context, programID id.ProgramID, subject models.Subject, checkIn time.Time) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM attendance_sessions
		WHERE program_id = $1 AND subject_key = $2 AND check_in = $3
		LIMIT 1
	`
	session, err := scanSession(s.q.QueryRowContext(ctx, query, uuid.UUID(programID), subject.Key(), checkIn))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find session by check-in: %w", err)
	}
	return session, nil
}

func (s *sessionStore) ListOverlapping(ctx context.Context, programID id.ProgramID, subject models.Subject, start, end time.Time) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM attendance_sessions
		WHERE program_id = $1 AND subject_key = $2
		  AND check_in < $4
		  AND (check_out IS NULL OR check_out > $3)
		ORDER BY check_in
	`
	return s.list(ctx, query, uuid.UUID(programID), subject.Key(), start, end)
}

func (s *sessionStore) ListProgramOverlapping(ctx context.Context, programID id.ProgramID, start, end time.Time) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM attendance_sessions
		WHERE program_id = $1
		  AND check_in < $3
		  AND (check_out IS NULL OR check_out > $2)
		ORDER BY check_in
	`
	return s.list(ctx, query, uuid.UUID(programID), start, end)
}

func (s *sessionStore) ListByPerson(ctx context.Context, personID id.PersonID, limit int) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM attendance_sessions
		WHERE person_id = $1
		ORDER BY check_in DESC
		LIMIT $2
	`
	return s.list(ctx, query, uuid.UUID(personID), limit)
}

func (s *sessionStore) list(ctx context.Context, query string, args ...any) ([]*models.Session, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance session: %w", err)
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance sessions: %w", err)
	}
	return out, nil
}

// --- bindings ---

type bindingStore struct {
	q querier
}

func (s *bindingStore) FindActiveByUID(ctx context.Context, uid string) (*models.BadgeBinding, error) {
	if uid == "" {
		return nil, nil
	}
	query := `
		SELECT uid, person_id, active, assigned_at
		FROM badge_bindings
		WHERE uid = $1 AND active
	`
	var binding models.BadgeBinding
	var personID uuid.UUID
	err := s.q.QueryRowContext(ctx, query, uid).Scan(&binding.UID, &personID, &binding.Active, &binding.AssignedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find active badge binding: %w", err)
	}
	binding.PersonID = id.PersonID(personID)
	return &binding, nil
}

// FindActiveByUIDs resolves a batch of uids with one ANY($1) round trip
// instead of per-row queries.
func (s *bindingStore) FindActiveByUIDs(ctx context.Context, uids []string) (map[string]id.PersonID, error) {
	out := make(map[string]id.PersonID, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	query := `
		SELECT uid, person_id
		FROM badge_bindings
		WHERE active AND uid = ANY($1)
	`
	rows, err := s.q.QueryContext(ctx, query, pq.Array(uids))
	if err != nil {
		return nil, fmt.Errorf("batch find badge bindings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var uid string
		var personID uuid.UUID
		if err := rows.Scan(&uid, &personID); err != nil {
			return nil, fmt.Errorf("scan badge binding: %w", err)
		}
		out[uid] = id.PersonID(personID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate badge bindings: %w", err)
	}
	return out, nil
}

func (s *bindingStore) Assign(ctx context.Context, binding models.BadgeBinding) error {
	// Deactivate-then-insert keeps the partial unique index on (uid) WHERE
	// active satisfied without a separate lock.
	if _, err := s.q.ExecContext(ctx, `UPDATE badge_bindings SET active = FALSE WHERE uid = $1 AND active`, binding.UID); err != nil {
		return fmt.Errorf("deactivate previous binding: %w", err)
	}
	assignedAt := binding.AssignedAt
	if assignedAt.IsZero() {
		assignedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO badge_bindings (uid, person_id, active, assigned_at) VALUES ($1, $2, TRUE, $3)`,
		binding.UID, uuid.UUID(binding.PersonID), assignedAt,
	)
	if err != nil {
		return fmt.Errorf("assign badge binding: %w", err)
	}
	return nil
}

func (s *bindingStore) Revoke(ctx context.Context, uid string) error {
	if _, err := s.q.ExecContext(ctx, `UPDATE badge_bindings SET active = FALSE WHERE uid = $1 AND active`, uid); err != nil {
		return fmt.Errorf("revoke badge binding: %w", err)
	}
	return nil
}

// --- kiosks ---

type kioskStore struct {
	q querier
}

func (s *kioskStore) Get(ctx context.Context, kioskID id.KioskID) (*models.KioskDevice, error) {
	query := `
		SELECT id, name, program_id, api_key, active, location, created_at
		FROM kiosk_devices
		WHERE id = $1
	`
	var kiosk models.KioskDevice
	var kid, programID uuid.UUID
	err := s.q.QueryRowContext(ctx, query, uuid.UUID(kioskID)).Scan(
		&kid, &kiosk.Name, &programID, &kiosk.APIKey, &kiosk.Active, &kiosk.Location, &kiosk.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get kiosk device: %w", err)
	}
	kiosk.ID = id.KioskID(kid)
	kiosk.ProgramID = id.ProgramID(programID)
	return &kiosk, nil
}

// --- scanning helpers ---

type row interface {
	Scan(dest ...any) error
}

func subjectColumns(subject models.Subject) (personID any, visitorLabel string) {
	if pid, ok := subject.Person(); ok {
		return uuid.UUID(pid), ""
	}
	return nil, subject.VisitorLabel()
}

func subjectFromColumns(personID uuid.NullUUID, visitorLabel string) models.Subject {
	if personID.Valid {
		return models.PersonSubject(id.PersonID(personID.UUID))
	}
	return models.VisitorSubject(visitorLabel)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableEventID(eventID *id.EventID) any {
	if eventID == nil {
		return nil
	}
	return uuid.UUID(*eventID)
}

func scanEvent(r row) (*models.Event, error) {
	var event models.Event
	var eid, programID uuid.UUID
	var personID, kioskID uuid.NullUUID
	var visitorLabel, requested, resolved string
	if err := r.Scan(&eid, &programID, &personID, &visitorLabel, &event.BadgeUID, &kioskID,
		&requested, &resolved, &event.OccurredAt, &event.Source, &event.Notes, &event.CreatedAt); err != nil {
		return nil, err
	}
	event.ID = id.EventID(eid)
	event.ProgramID = id.ProgramID(programID)
	event.Subject = subjectFromColumns(personID, visitorLabel)
	if kioskID.Valid {
		kid := id.KioskID(kioskID.UUID)
		event.KioskID = &kid
	}
	event.Requested = models.Direction(requested)
	event.Resolved = models.Direction(resolved)
	return &event, nil
}

func scanSession(r row) (*models.Session, error) {
	var session models.Session
	var sid, programID uuid.UUID
	var personID, openedBy, closedBy uuid.NullUUID
	var visitorLabel string
	var checkOut sql.NullTime
	if err := r.Scan(&sid, &programID, &personID, &visitorLabel, &session.CheckIn, &checkOut,
		&session.DurationMinutes, &openedBy, &closedBy, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, err
	}
	session.ID = id.SessionID(sid)
	session.ProgramID = id.ProgramID(programID)
	session.Subject = subjectFromColumns(personID, visitorLabel)
	if checkOut.Valid {
		t := checkOut.Time
		session.CheckOut = &t
	}
	if openedBy.Valid {
		eid := id.EventID(openedBy.UUID)
		session.OpenedBy = &eid
	}
	if closedBy.Valid {
		eid := id.EventID(closedBy.UUID)
		session.ClosedBy = &eid
	}
	return &session, nil
}
