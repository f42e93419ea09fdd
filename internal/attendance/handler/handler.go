// Package handler wires the attendance HTTP endpoints to the service layer.
// It stays thin: decode, delegate, encode.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/attendance/importer"
	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/service"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Service defines the attendance operations the handler delegates to.
type Service interface {
	RecordTap(ctx context.Context, req service.TapRequest) (*models.Event, error)
	StudentWeeklyHours(ctx context.Context, programID id.ProgramID, personID id.PersonID) (*service.WeeklyHoursReport, error)
	StudentAllTimeHours(ctx context.Context, programID id.ProgramID, personID id.PersonID) (*service.AllTimeReport, error)
	ProgramWeeklyHours(ctx context.Context, programID id.ProgramID) (*service.ProgramWeeklyReport, error)
	ListStudentSessions(ctx context.Context, personID id.PersonID, limit int) ([]*models.Session, error)
	AssignBadge(ctx context.Context, uid string, personID id.PersonID) error
	RevokeBadge(ctx context.Context, uid string) error
}

// Importer defines the bulk reconciliation operation.
type Importer interface {
	Import(ctx context.Context, programID id.ProgramID, rows []importer.Row) (*importer.Summary, error)
}

// Handler exposes the attendance API.
type Handler struct {
	service      Service
	importer     Importer
	logger       *slog.Logger
	sessionLimit int
}

// New constructs the attendance handler with its dependencies.
func New(svc Service, imp Importer, logger *slog.Logger, sessionLimit int) *Handler {
	return &Handler{
		service:      svc,
		importer:     imp,
		logger:       logger,
		sessionLimit: sessionLimit,
	}
}

// Register mounts the attendance routes. Mutating routes go behind the write
// middleware, reporting routes behind read.
func (h *Handler) Register(r chi.Router, read, write func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(write)
		r.Post("/attendance/tap", h.HandleTap)
		r.Post("/programs/{programID}/attendance/import", h.HandleImport)
		r.Post("/badges/{uid}/assign", h.HandleAssignBadge)
		r.Post("/badges/{uid}/revoke", h.HandleRevokeBadge)
	})
	r.Group(func(r chi.Router) {
		r.Use(read)
		r.Get("/students/{studentID}/weekly-hours", h.HandleStudentWeeklyHours)
		r.Get("/students/{studentID}/hours", h.HandleStudentAllTimeHours)
		r.Get("/students/{studentID}/sessions", h.HandleStudentSessions)
		r.Get("/programs/{programID}/weekly-hours", h.HandleProgramWeeklyHours)
	})
}

// HandleTap handles POST /attendance/tap.
func (h *Handler) HandleTap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[TapRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	event, err := h.service.RecordTap(ctx, service.TapRequest{
		ProgramID:    req.ParsedProgramID(),
		BadgeUID:     req.BadgeUID,
		VisitorLabel: req.VisitorLabel,
		Direction:    models.Direction(req.Direction),
		OccurredAt:   req.ParsedOccurredAt(),
		KioskID:      req.ParsedKioskID(),
		Source:       req.Source,
		Notes:        req.Notes,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "tap failed",
			"request_id", requestID,
			"program_id", req.ProgramID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "tap accepted",
		"request_id", requestID,
		"program_id", req.ProgramID,
		"resolved", string(event.Resolved),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromEvent(event))
}

// HandleImport handles POST /programs/{programID}/attendance/import.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	programID, err := id.ParseProgramID(chi.URLParam(r, "programID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "program id must be a UUID"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[ImportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	summary, err := h.importer.Import(ctx, programID, req.Rows)
	if err != nil {
		h.logger.ErrorContext(ctx, "import failed",
			"request_id", requestID,
			"program_id", programID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "import accepted",
		"request_id", requestID,
		"program_id", programID,
		"created", summary.Created,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
	)
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// HandleStudentWeeklyHours handles GET /students/{studentID}/weekly-hours.
// The program is selected with the program_id query parameter.
func (h *Handler) HandleStudentWeeklyHours(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	personID, programID, ok := h.studentProgramParams(w, r)
	if !ok {
		return
	}

	report, err := h.service.StudentWeeklyHours(ctx, programID, personID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleStudentAllTimeHours handles GET /students/{studentID}/hours.
func (h *Handler) HandleStudentAllTimeHours(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	personID, programID, ok := h.studentProgramParams(w, r)
	if !ok {
		return
	}

	report, err := h.service.StudentAllTimeHours(ctx, programID, personID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleStudentSessions handles GET /students/{studentID}/sessions.
func (h *Handler) HandleStudentSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	personID, err := id.ParsePersonID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "student id must be a UUID"))
		return
	}

	sessions, err := h.service.ListStudentSessions(ctx, personID, h.sessionLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": FromSessions(sessions)})
}

// HandleProgramWeeklyHours handles GET /programs/{programID}/weekly-hours.
func (h *Handler) HandleProgramWeeklyHours(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	programID, err := id.ParseProgramID(chi.URLParam(r, "programID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "program id must be a UUID"))
		return
	}

	report, err := h.service.ProgramWeeklyHours(ctx, programID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleAssignBadge handles POST /badges/{uid}/assign.
func (h *Handler) HandleAssignBadge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	uid := chi.URLParam(r, "uid")
	req, ok := httputil.DecodeAndPrepare[AssignBadgeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.AssignBadge(ctx, uid, req.ParsedPersonID()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "badge assigned", "request_id", requestID, "uid", uid)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRevokeBadge handles POST /badges/{uid}/revoke.
func (h *Handler) HandleRevokeBadge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	uid := chi.URLParam(r, "uid")
	if err := h.service.RevokeBadge(ctx, uid); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "badge revoked", "request_id", requestID, "uid", uid)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) studentProgramParams(w http.ResponseWriter, r *http.Request) (id.PersonID, id.ProgramID, bool) {
	personID, err := id.ParsePersonID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "student id must be a UUID"))
		return id.PersonID{}, id.ProgramID{}, false
	}
	programID, err := id.ParseProgramID(r.URL.Query().Get("program_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "program_id query parameter must be a UUID"))
		return id.PersonID{}, id.ProgramID{}, false
	}
	return personID, programID, true
}
