package handler

import (
	"strings"
	"time"

	"rollcall/internal/attendance/importer"
	"rollcall/internal/attendance/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// maxImportRows caps one import request; bigger sheets get split by the
// caller.
const maxImportRows = 5000

// TapRequest is the wire form of a kiosk tap.
type TapRequest struct {
	ProgramID    string `json:"program_id"`
	BadgeUID     string `json:"badge_uid"`
	VisitorLabel string `json:"visitor_label"`
	Direction    string `json:"direction"`
	OccurredAt   string `json:"occurred_at"`
	KioskID      string `json:"kiosk_id"`
	Source       string `json:"source"`
	Notes        string `json:"notes"`
}

// Validate checks field shapes; referential checks belong to the service.
func (r TapRequest) Validate() error {
	if strings.TrimSpace(r.ProgramID) == "" {
		return dErrors.New(dErrors.CodeValidation, "program_id is required")
	}
	if _, err := id.ParseProgramID(r.ProgramID); err != nil {
		return dErrors.New(dErrors.CodeValidation, "program_id must be a UUID")
	}
	if r.Direction != "" && !models.Direction(r.Direction).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "direction must be IN, OUT, or AUTO")
	}
	if r.KioskID != "" {
		if _, err := id.ParseKioskID(r.KioskID); err != nil {
			return dErrors.New(dErrors.CodeValidation, "kiosk_id must be a UUID")
		}
	}
	if r.OccurredAt != "" {
		if _, err := time.Parse(time.RFC3339, r.OccurredAt); err != nil {
			return dErrors.New(dErrors.CodeValidation, "occurred_at must be RFC 3339")
		}
	}
	return nil
}

// ParsedProgramID returns the program ID; call after Validate.
func (r TapRequest) ParsedProgramID() id.ProgramID {
	programID, _ := id.ParseProgramID(r.ProgramID)
	return programID
}

// ParsedKioskID returns the kiosk ID, or nil when absent; call after
// Validate.
func (r TapRequest) ParsedKioskID() *id.KioskID {
	if r.KioskID == "" {
		return nil
	}
	kioskID, _ := id.ParseKioskID(r.KioskID)
	return &kioskID
}

// ParsedOccurredAt returns the tap instant, zero when absent; call after
// Validate.
func (r TapRequest) ParsedOccurredAt() time.Time {
	if r.OccurredAt == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, r.OccurredAt)
	return t
}

// ImportRequest is the wire form of a bulk reconciliation.
type ImportRequest struct {
	Rows []importer.Row `json:"rows"`
}

func (r ImportRequest) Validate() error {
	if len(r.Rows) == 0 {
		return dErrors.New(dErrors.CodeValidation, "rows must not be empty")
	}
	if len(r.Rows) > maxImportRows {
		return dErrors.New(dErrors.CodeValidation, "too many rows in one request")
	}
	return nil
}

// AssignBadgeRequest binds a badge to a person.
type AssignBadgeRequest struct {
	PersonID string `json:"person_id"`
}

func (r AssignBadgeRequest) Validate() error {
	if strings.TrimSpace(r.PersonID) == "" {
		return dErrors.New(dErrors.CodeValidation, "person_id is required")
	}
	if _, err := id.ParsePersonID(r.PersonID); err != nil {
		return dErrors.New(dErrors.CodeValidation, "person_id must be a UUID")
	}
	return nil
}

// ParsedPersonID returns the person ID; call after Validate.
func (r AssignBadgeRequest) ParsedPersonID() id.PersonID {
	personID, _ := id.ParsePersonID(r.PersonID)
	return personID
}
