// Package importer reconciles externally-recorded attendance rows, such as a
// paper sign-in sheet typed up after the fact, into the session store. The
// operation is idempotent: re-importing the same sheet changes nothing.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
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

// Row is one externally-recorded attendance record.
type Row struct {
	Name     string `json:"name"`
	BadgeUID string `json:"badge_uid"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Notes    string `json:"notes"`
}

// Summary counts per-row outcomes for one import run.
type Summary struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  int      `json:"errors"`
	Details []string `json:"details,omitempty"`
}

// Importer merges attendance rows into the session store.
type Importer struct {
	store   store.Store
	persons directory.Persons
	clock   Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Importer.
type Option func(*Importer)

func WithClock(clock Clock) Option {
	return func(i *Importer) {
		if clock != nil {
			i.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(i *Importer) {
		i.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Importer) {
		i.metrics = m
	}
}

// New constructs an Importer.
func New(st store.Store, persons directory.Persons, opts ...Option) (*Importer, error) {
	if st == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "attendance store is required")
	}
	if persons == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "person directory is required")
	}
	imp := &Importer{store: st, persons: persons, clock: time.Now}
	for _, opt := range opts {
		opt(imp)
	}
	return imp, nil
}

// Import merges rows into programID's sessions. Each row is handled in its
// own track transaction; a bad row is counted and reported, never fatal, so
// one typo does not sink the rest of the sheet.
func (i *Importer) Import(ctx context.Context, programID id.ProgramID, rows []Row) (*Summary, error) {
	if programID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "program_id is required")
	}

	summary := &Summary{}
	bindings := i.prefetchBindings(ctx, rows)

	for n, row := range rows {
		outcome, err := i.importRow(ctx, programID, row, bindings)
		if err != nil {
			summary.Errors++
			summary.Details = append(summary.Details, fmt.Sprintf("row %d: %v", n+1, err))
			if i.metrics != nil {
				i.metrics.ImportRowsErrored.Inc()
			}
			if i.logger != nil {
				i.logger.WarnContext(ctx, "import row rejected", "row", n+1, "error", err)
			}
			continue
		}
		switch outcome {
		case outcomeCreated:
			summary.Created++
			if i.metrics != nil {
				i.metrics.ImportRowsCreated.Inc()
			}
		case outcomeUpdated:
			summary.Updated++
			if i.metrics != nil {
				i.metrics.ImportRowsUpdated.Inc()
			}
		case outcomeSkipped:
			summary.Skipped++
			if i.metrics != nil {
				i.metrics.ImportRowsSkipped.Inc()
			}
		}
	}

	if i.logger != nil {
		i.logger.InfoContext(ctx, "import finished",
			"program_id", programID,
			"rows", len(rows),
			"created", summary.Created,
			"updated", summary.Updated,
			"skipped", summary.Skipped,
			"errors", summary.Errors,
		)
	}
	return summary, nil
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeSkipped
)

// prefetchBindings resolves every badge uid on the sheet in one round trip.
// A lookup failure degrades to per-row name matching rather than failing the
// whole import.
func (i *Importer) prefetchBindings(ctx context.Context, rows []Row) map[string]id.PersonID {
	uids := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		uid := strings.TrimSpace(row.BadgeUID)
		if uid == "" {
			continue
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		uids = append(uids, uid)
	}
	if len(uids) == 0 {
		return nil
	}
	bindings, err := i.store.Bindings().FindActiveByUIDs(ctx, uids)
	if err != nil {
		if i.logger != nil {
			i.logger.WarnContext(ctx, "badge prefetch failed", "error", err)
		}
		return nil
	}
	return bindings
}

func (i *Importer) importRow(ctx context.Context, programID id.ProgramID, row Row, bindings map[string]id.PersonID) (outcome, error) {
	checkIn, err := parseTimestamp(row.CheckIn)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeValidation, "check_in")
	}
	var checkOut *time.Time
	if strings.TrimSpace(row.CheckOut) != "" {
		t, err := parseTimestamp(row.CheckOut)
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeValidation, "check_out")
		}
		// A check-out before the check-in still imports; the session keeps
		// both timestamps and clamps the duration to zero.
		checkOut = &t
	}

	subject, err := i.resolveSubject(ctx, row, bindings)
	if err != nil {
		return 0, err
	}

	var result outcome
	err = i.store.RunInTrackTx(ctx, programID, subject, func(tx store.TxStores) error {
		existing, err := tx.Sessions().FindByCheckIn(ctx, programID, subject, checkIn)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "match existing session")
		}
		if existing == nil {
			result = outcomeCreated
			return i.insertSession(ctx, tx, programID, subject, checkIn, checkOut, row)
		}
		if checkOut == nil || sameInstant(existing.CheckOut, checkOut) {
			// Exact check-in match with nothing new to add: the sheet row is
			// already reflected.
			result = outcomeSkipped
			return nil
		}
		existing.Close(*checkOut)
		existing.UpdatedAt = i.clock()
		result = outcomeUpdated
		return tx.Sessions().Update(ctx, existing)
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

// resolveSubject picks the row's identity: active badge binding first, then a
// unique directory name match, then a visitor label so no row is ever lost.
// An ambiguous name never guesses a person.
func (i *Importer) resolveSubject(ctx context.Context, row Row, bindings map[string]id.PersonID) (models.Subject, error) {
	uid := strings.TrimSpace(row.BadgeUID)
	if uid != "" {
		if personID, ok := bindings[uid]; ok {
			return models.PersonSubject(personID), nil
		}
	}

	name := strings.TrimSpace(row.Name)
	if name != "" {
		matches, err := i.persons.FindByName(ctx, name)
		if err != nil {
			return models.Subject{}, dErrors.Wrap(err, dErrors.CodeInternal, "match name")
		}
		if len(matches) == 1 {
			return models.PersonSubject(matches[0].ID), nil
		}
	}

	switch {
	case name != "":
		return models.VisitorSubject(name), nil
	case uid != "":
		return models.VisitorSubject("badge " + uid), nil
	default:
		return models.VisitorSubject("Unknown"), nil
	}
}

// insertSession materializes one sheet row as audit events plus a session.
// The check-in always yields an opening IN event; a check-out additionally
// yields a closing OUT event so both session links point at import events.
func (i *Importer) insertSession(ctx context.Context, tx store.TxStores, programID id.ProgramID, subject models.Subject, checkIn time.Time, checkOut *time.Time, row Row) error {
	now := i.clock()

	opening := &models.Event{
		ID:         id.NewEventID(),
		ProgramID:  programID,
		Subject:    subject,
		BadgeUID:   strings.TrimSpace(row.BadgeUID),
		Requested:  models.DirectionIn,
		Resolved:   models.DirectionIn,
		OccurredAt: checkIn,
		Source:     "import",
		Notes:      row.Notes,
		CreatedAt:  now,
	}
	if err := tx.Events().Insert(ctx, opening); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "append import event")
	}

	session := &models.Session{
		ID:        id.NewSessionID(),
		ProgramID: programID,
		Subject:   subject,
		CheckIn:   checkIn,
		OpenedBy:  &opening.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if checkOut != nil {
		closing := &models.Event{
			ID:         id.NewEventID(),
			ProgramID:  programID,
			Subject:    subject,
			BadgeUID:   strings.TrimSpace(row.BadgeUID),
			Requested:  models.DirectionOut,
			Resolved:   models.DirectionOut,
			OccurredAt: *checkOut,
			Source:     "import",
			CreatedAt:  now,
		}
		if err := tx.Events().Insert(ctx, closing); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "append import event")
		}
		session.Close(*checkOut)
		session.ClosedBy = &closing.ID
	}
	if err := tx.Sessions().Insert(ctx, session); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "insert imported session")
	}
	return nil
}

// timestampLayouts are accepted in order. Layouts without a zone are read as
// UTC, matching how kiosk events are stored.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "timestamp is required")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, dErrors.New(dErrors.CodeValidation, "unrecognized timestamp "+raw)
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
