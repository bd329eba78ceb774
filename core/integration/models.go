package integration

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/halaqat/core"
)

var sheetIDRegex = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Credentials are the OAuth tokens of a Google connection. Secret: never serialized nor logged.
type Credentials struct {
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	TokenType    string    `json:"-" db:"token_type"`
	Expiry       time.Time `json:"-" db:"expiry"`
}

func (c Credentials) String() string { return "[redacted]" }

// Connection links an organization to a Google account. At most one per organization.
type Connection struct {
	ID          string      `json:"id" db:"id"`
	OrgID       string      `json:"org_id" db:"org_id"`
	Email       string      `json:"email" db:"email"`
	Scopes      []string    `json:"scopes" db:"-"`
	ConnectedAt time.Time   `json:"connected_at" db:"connected_at"` // UTC
	Credentials Credentials `json:"-" db:"-"`
}

// Asset holds the registration form, response sheet and exam links of a course. At most one per course.
type Asset struct {
	ID             string    `json:"id" db:"id"`
	CourseID       string    `json:"course_id" db:"course_id"`
	OrgID          string    `json:"org_id" db:"org_id"`
	FormID         string    `json:"form_id,omitempty" db:"form_id"`
	FormURL        string    `json:"form_url" db:"form_url"`
	SheetID        string    `json:"sheet_id,omitempty" db:"sheet_id"`
	SheetURL       string    `json:"sheet_url" db:"sheet_url"`
	MidtermExamURL string    `json:"midterm_exam_url,omitempty" db:"midterm_exam_url"`
	FinalExamURL   string    `json:"final_exam_url,omitempty" db:"final_exam_url"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// HasSheet reports whether a response sheet is linked.
func (a Asset) HasSheet() bool {
	return a.SheetID != "" || a.SheetURL != ""
}

// RegistrationAssets is what the Google gateway returns when creating the assets of a course.
type RegistrationAssets struct {
	FormID   string
	FormURL  string
	SheetID  string
	SheetURL string
}

// AssetURLs is the manual edit of a course's asset links.
// Nil fields are left untouched; a set field must not be blank.
type AssetURLs struct {
	FormURL        *string `json:"form_url" validate:"omitempty,notblank"`
	SheetURL       *string `json:"sheet_url" validate:"omitempty,notblank"`
	MidtermExamURL *string `json:"midterm_exam_url" validate:"omitempty,notblank"`
	FinalExamURL   *string `json:"final_exam_url" validate:"omitempty,notblank"`
}

func (au *AssetURLs) Validate(validate *validator.Validate) error {
	var flds []core.FieldError
	for _, f := range []struct {
		name string
		val  *string
	}{
		{"form_url", au.FormURL},
		{"sheet_url", au.SheetURL},
		{"midterm_exam_url", au.MidtermExamURL},
		{"final_exam_url", au.FinalExamURL},
	} {
		if f.val == nil {
			continue
		}
		if *f.val = core.CleanString(*f.val); *f.val == "" {
			flds = append(flds, core.FieldError{Field: f.name, Error: f.name + " must not be blank"})
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	if au.FormURL == nil && au.SheetURL == nil && au.MidtermExamURL == nil && au.FinalExamURL == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "form_url", Error: "no link to update"})
	}
	return validate.Struct(au)
}

// SheetIDFromURL extracts the spreadsheet id of a Google Sheets URL, if any.
func SheetIDFromURL(u string) string {
	if m := sheetIDRegex.FindStringSubmatch(u); len(m) == 2 {
		return m[1]
	}
	return ""
}

type JobKind string

const (
	JobConnect      JobKind = "connect"
	JobCreateAssets JobKind = "create_registration_assets"
	JobImportSheet  JobKind = "import_from_sheet"
)

type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

func (s JobStatus) Done() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job tracks a gateway call running in the background.
type Job struct {
	ID         string      `json:"id"`
	OrgID      string      `json:"org_id"`
	Kind       JobKind     `json:"kind"`
	Status     JobStatus   `json:"status"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	Err        error       `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`            // UTC
	FinishedAt *time.Time  `json:"finished_at,omitempty"` // UTC
}
