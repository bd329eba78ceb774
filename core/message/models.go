package message

import (
	"time"

	"github.com/trezcool/halaqat/core"
)

type Type string

const (
	TypeDailyPlan  Type = "DAILY_PLAN"
	TypeReminder   Type = "REMINDER"
	TypeMotivation Type = "MOTIVATION"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDailyPlan, TypeReminder, TypeMotivation:
		return true
	}
	return false
}

type Status string

const (
	StatusSent   Status = "SENT"
	StatusFailed Status = "FAILED"
)

// Log is the append-only trace of one dispatched message.
type Log struct {
	ID     string    `json:"id" db:"id"`
	OrgID  string    `json:"org_id" db:"org_id"`
	Type   Type      `json:"type" db:"type"`
	Target string    `json:"target" db:"target"`
	Text   string    `json:"text" db:"text"`
	Status Status    `json:"status" db:"status"`
	Error  string    `json:"error,omitempty" db:"error"`
	SentAt time.Time `json:"sent_at" db:"sent_at"` // UTC
}

type NewMessage struct {
	OrgID  string
	Type   Type
	Target string
	Text   string
}

func (nm *NewMessage) validate() error {
	nm.Target = core.CleanString(nm.Target)
	nm.Text = core.CleanString(nm.Text)

	var flds []core.FieldError
	if nm.OrgID == "" {
		flds = append(flds, core.FieldError{Field: "org_id", Error: "this field is required"})
	}
	if !nm.Type.Valid() {
		flds = append(flds, core.FieldError{Field: "type", Error: "invalid message type"})
	}
	if nm.Target == "" {
		flds = append(flds, core.FieldError{Field: "target", Error: "this field is required"})
	}
	if nm.Text == "" {
		flds = append(flds, core.FieldError{Field: "text", Error: "this field is required"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

type Filter struct {
	OrgID  string
	Type   Type   `query:"type"`
	Status Status `query:"status"`
}

// Broadcast is a Messages page submission: predefined templates and/or a custom text sent to every
// halaqa channel of a course.
type Broadcast struct {
	CourseID   string     `json:"course_id" validate:"required"`
	Templates  []Template `json:"templates" validate:"omitempty,dive,msgtemplate"`
	CustomText string     `json:"custom_text" validate:"required_without=Templates"`
}
