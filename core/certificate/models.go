package certificate

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/halaqat/core"
)

type Kind string

const (
	KindCompletion    Kind = "COMPLETION"
	KindParticipation Kind = "PARTICIPATION"
	KindAppreciation  Kind = "APPRECIATION"
)

func (k Kind) Title() string {
	switch k {
	case KindCompletion:
		return "شهادة إكمال دورة"
	case KindParticipation:
		return "شهادة مشاركة"
	case KindAppreciation:
		return "شهادة شكر وتقدير"
	}
	return ""
}

// DefaultMessage is the body printed when the request carries none.
func (k Kind) DefaultMessage() string {
	switch k {
	case KindCompletion:
		return "تتشرف الإدارة بمنح هذه الشهادة تقديراً لإتمامه حفظ المقرر الدراسي المحدد في الدورة بنجاح وإتقان"
	case KindParticipation:
		return "تتشرف الإدارة بمنح هذه الشهادة تقديراً لمشاركته الفاعلة وجهوده المبذولة خلال فترة انعقاد الدورة"
	case KindAppreciation:
		return "تتشرف الإدارة بمنح هذه الشهادة تقديراً للجهود المتميزة والعطاء المستمر في خدمة كتاب الله تعالى"
	}
	return ""
}

type RecipientKind string

const (
	RecipientStudent RecipientKind = "student"
	RecipientStaff   RecipientKind = "staff"
)

const DefaultSignatureTitle = "مدير المركز"

type Request struct {
	RecipientKind  RecipientKind `json:"recipient_kind" validate:"required,oneof=student staff"`
	RecipientID    string        `json:"recipient_id" validate:"required,notblank"`
	CourseID       string        `json:"course_id"` // students: defaults to the student's course
	SignatureTitle string        `json:"signature_title" validate:"max=100"`
	Message        string        `json:"message" validate:"max=500"`
}

func (r *Request) Validate(validate *validator.Validate) error {
	r.RecipientID = core.CleanString(r.RecipientID)
	r.CourseID = core.CleanString(r.CourseID)
	r.SignatureTitle = core.CleanString(r.SignatureTitle)
	r.Message = core.CleanString(r.Message)
	return validate.Struct(r)
}

// Certificate holds what the dashboard prints. Rendering is the client's job.
type Certificate struct {
	ID             string        `json:"id"`
	OrgID          string        `json:"org_id"`
	Kind           Kind          `json:"kind"`
	Title          string        `json:"title"`
	RecipientKind  RecipientKind `json:"recipient_kind"`
	RecipientID    string        `json:"recipient_id"`
	RecipientName  string        `json:"recipient_name"`
	CourseID       string        `json:"course_id,omitempty"`
	CourseTitle    string        `json:"course_title,omitempty"`
	AverageScore   *float64      `json:"average_score,omitempty"`
	Message        string        `json:"message"`
	SignatureTitle string        `json:"signature_title"`
	IssuedAt       time.Time     `json:"issued_at"` // UTC
}
