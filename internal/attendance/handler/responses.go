package handler

import (
	"time"

	"rollcall/internal/attendance/models"
)

// SubjectResponse is the wire form of a tap subject.
type SubjectResponse struct {
	Kind         string `json:"kind"`
	PersonID     string `json:"person_id,omitempty"`
	VisitorLabel string `json:"visitor_label,omitempty"`
}

func fromSubject(subject models.Subject) SubjectResponse {
	if personID, ok := subject.Person(); ok {
		return SubjectResponse{Kind: string(models.SubjectPerson), PersonID: personID.String()}
	}
	return SubjectResponse{Kind: string(models.SubjectVisitor), VisitorLabel: subject.VisitorLabel()}
}

// EventResponse is the wire form of a recorded attendance event.
type EventResponse struct {
	ID         string          `json:"id"`
	ProgramID  string          `json:"program_id"`
	Subject    SubjectResponse `json:"subject"`
	BadgeUID   string          `json:"badge_uid,omitempty"`
	KioskID    string          `json:"kiosk_id,omitempty"`
	Requested  string          `json:"requested"`
	Resolved   string          `json:"resolved"`
	OccurredAt time.Time       `json:"occurred_at"`
	Source     string          `json:"source"`
	Notes      string          `json:"notes,omitempty"`
}

// FromEvent converts a domain event for the wire.
func FromEvent(event *models.Event) EventResponse {
	resp := EventResponse{
		ID:         event.ID.String(),
		ProgramID:  event.ProgramID.String(),
		Subject:    fromSubject(event.Subject),
		BadgeUID:   event.BadgeUID,
		Requested:  string(event.Requested),
		Resolved:   string(event.Resolved),
		OccurredAt: event.OccurredAt,
		Source:     event.Source,
		Notes:      event.Notes,
	}
	if event.KioskID != nil {
		resp.KioskID = event.KioskID.String()
	}
	return resp
}

// SessionResponse is the wire form of one presence interval.
type SessionResponse struct {
	ID              string          `json:"id"`
	ProgramID       string          `json:"program_id"`
	Subject         SubjectResponse `json:"subject"`
	CheckIn         time.Time       `json:"check_in"`
	CheckOut        *time.Time      `json:"check_out,omitempty"`
	DurationMinutes int             `json:"duration_minutes"`
	Open            bool            `json:"open"`
}

// FromSessions converts domain sessions for the wire.
func FromSessions(sessions []*models.Session) []SessionResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			ID:              s.ID.String(),
			ProgramID:       s.ProgramID.String(),
			Subject:         fromSubject(s.Subject),
			CheckIn:         s.CheckIn,
			CheckOut:        s.CheckOut,
			DurationMinutes: s.DurationMinutes,
			Open:            s.IsOpen(),
		})
	}
	return out
}
