package roster

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/halaqat/core"
)

type CourseType string

const (
	CourseSurahSingle CourseType = "SURAH_SINGLE"
	CourseJuzRange    CourseType = "JUZ_RANGE"
	CourseMultiSurahs CourseType = "MULTI_SURAHS"
)

func (t CourseType) Valid() bool {
	switch t {
	case CourseSurahSingle, CourseJuzRange, CourseMultiSurahs:
		return true
	}
	return false
}

type Gender string

const (
	Male   Gender = "MALE"
	Female Gender = "FEMALE"
)

func (g Gender) Valid() bool {
	switch g {
	case Male, Female:
		return true
	}
	return false
}

type StudentStatus string

const (
	StatusNew      StudentStatus = "NEW"
	StatusAccepted StudentStatus = "ACCEPTED"
	StatusRejected StudentStatus = "REJECTED"
	StatusWaitlist StudentStatus = "WAITLIST"
)

func (s StudentStatus) Valid() bool {
	switch s {
	case StatusNew, StatusAccepted, StatusRejected, StatusWaitlist:
		return true
	}
	return false
}

type Course struct {
	ID             string     `json:"id" db:"id"`
	OrgID          string     `json:"org_id" db:"org_id"`
	Name           string     `json:"name" db:"name"`
	Type           CourseType `json:"type" db:"type"`
	DailyAmount    string     `json:"daily_amount" db:"daily_amount"` // e.g. "one page"
	StartDate      core.Date  `json:"start_date" db:"start_date"`
	EndDate        core.Date  `json:"end_date" db:"end_date"`
	MidtermDate    core.Date  `json:"midterm_date,omitempty" db:"midterm_date"`
	FinalExamDate  core.Date  `json:"final_exam_date,omitempty" db:"final_exam_date"`
	RecitationDays []int      `json:"recitation_days" db:"-"`
	PassingScore   int        `json:"passing_score" db:"passing_score"`
	LogoURL        string     `json:"logo,omitempty" db:"logo_url"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"` // UTC
}

// Active reports whether the course runs on the given date.
func (c Course) Active(on core.Date) bool {
	return on.Between(c.StartDate, c.EndDate)
}

// IsRecitationDay reports whether sessions are held on the given date.
func (c Course) IsRecitationDay(d core.Date) bool {
	wd := int(d.Weekday())
	for _, rd := range c.RecitationDays {
		if rd == wd {
			return true
		}
	}
	return false
}

// SessionDates returns the recitation days of the course within [from, to], clipped to the course window.
func (c Course) SessionDates(from, to core.Date) []core.Date {
	from = core.MaxDate(from, c.StartDate)
	to = core.MinDate(to, c.EndDate)
	var dates []core.Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		if c.IsRecitationDay(d) {
			dates = append(dates, d)
		}
	}
	return dates
}

// checkDates enforces the course date ordering.
func (c Course) checkDates() error {
	var flds []core.FieldError
	if c.StartDate.After(c.EndDate) {
		flds = append(flds, core.FieldError{Field: "end_date", Error: "end date must not be before start date"})
	}
	if !c.MidtermDate.IsZero() && !c.MidtermDate.Between(c.StartDate, c.EndDate) {
		flds = append(flds, core.FieldError{Field: "midterm_date", Error: "midterm date must fall within the course"})
	}
	if !c.FinalExamDate.IsZero() && !c.FinalExamDate.Between(c.StartDate, c.EndDate) {
		flds = append(flds, core.FieldError{Field: "final_exam_date", Error: "final exam date must fall within the course"})
	}
	if !c.MidtermDate.IsZero() && !c.FinalExamDate.IsZero() && c.MidtermDate.After(c.FinalExamDate) {
		flds = append(flds, core.FieldError{Field: "final_exam_date", Error: "final exam date must not be before midterm date"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

type Halaqa struct {
	ID        string    `json:"id" db:"id"`
	OrgID     string    `json:"org_id" db:"org_id"`
	CourseID  string    `json:"course_id" db:"course_id"`
	Name      string    `json:"name" db:"name"`
	TeacherID string    `json:"teacher_id" db:"teacher_id"`
	Capacity  int       `json:"capacity" db:"capacity"`
	ChannelID string    `json:"channel_id,omitempty" db:"channel_id"` // telegram chat
	CreatedAt time.Time `json:"created_at" db:"created_at"`           // UTC
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`           // UTC
}

type Student struct {
	ID        string        `json:"id" db:"id"`
	OrgID     string        `json:"org_id" db:"org_id"`
	CourseID  string        `json:"course_id" db:"course_id"`
	Name      string        `json:"name" db:"name"`
	Phone     string        `json:"phone" db:"phone"`
	Gender    Gender        `json:"gender" db:"gender"`
	Status    StudentStatus `json:"status" db:"status"`
	HalaqaID  string        `json:"halaqa_id,omitempty" db:"halaqa_id"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"` // UTC
}

// DailyPlan is the memorization portion of a course day. At most one per (course, date).
type DailyPlan struct {
	ID       string    `json:"id" db:"id"`
	CourseID string    `json:"course_id" db:"course_id"`
	Date     core.Date `json:"date" db:"date"`
	Text     string    `json:"text" db:"text"`
	IsExam   bool      `json:"is_exam" db:"is_exam"`
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	OrgID          string     `json:"org_id" validate:"required"`
	Name           string     `json:"name" validate:"required,notblank"`
	Type           CourseType `json:"type" validate:"required,coursetype"`
	DailyAmount    string     `json:"daily_amount" validate:"required,notblank"`
	StartDate      core.Date  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        core.Date  `json:"end_date" validate:"required,datetime=2006-01-02"`
	MidtermDate    core.Date  `json:"midterm_date" validate:"omitempty,datetime=2006-01-02"`
	FinalExamDate  core.Date  `json:"final_exam_date" validate:"omitempty,datetime=2006-01-02"`
	RecitationDays []int      `json:"recitation_days" validate:"omitempty,weekdays"`
	PassingScore   *int       `json:"passing_score" validate:"omitempty,min=0,max=10"` // nil: configured default
	LogoURL        string     `json:"logo" validate:"omitempty,url"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.DailyAmount = core.CleanString(nc.DailyAmount)
	nc.LogoURL = core.CleanString(nc.LogoURL)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
// Nil fields are left untouched.
type UpdateCourse struct {
	Name           *string     `json:"name" validate:"omitempty,notblank"`
	Type           *CourseType `json:"type" validate:"omitempty,coursetype"`
	DailyAmount    *string     `json:"daily_amount" validate:"omitempty,notblank"`
	StartDate      *core.Date  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate        *core.Date  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	MidtermDate    *core.Date  `json:"midterm_date" validate:"omitempty,datetime=2006-01-02"`
	FinalExamDate  *core.Date  `json:"final_exam_date" validate:"omitempty,datetime=2006-01-02"`
	RecitationDays []int       `json:"recitation_days" validate:"omitempty,weekdays"`
	PassingScore   *int        `json:"passing_score" validate:"omitempty,min=0,max=10"`
	LogoURL        *string     `json:"logo" validate:"omitempty,url"` // empty string clears the logo
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	for _, s := range []*string{uc.Name, uc.DailyAmount, uc.LogoURL} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(uc)
}

// merge applies the set fields onto c.
func (uc UpdateCourse) merge(c Course) Course {
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Type != nil {
		c.Type = *uc.Type
	}
	if uc.DailyAmount != nil {
		c.DailyAmount = *uc.DailyAmount
	}
	if uc.LogoURL != nil {
		c.LogoURL = *uc.LogoURL
	}
	if uc.StartDate != nil {
		c.StartDate = *uc.StartDate
	}
	if uc.EndDate != nil {
		c.EndDate = *uc.EndDate
	}
	if uc.MidtermDate != nil {
		c.MidtermDate = *uc.MidtermDate
	}
	if uc.FinalExamDate != nil {
		c.FinalExamDate = *uc.FinalExamDate
	}
	if uc.RecitationDays != nil {
		c.RecitationDays = uc.RecitationDays
	}
	if uc.PassingScore != nil {
		c.PassingScore = *uc.PassingScore
	}
	return c
}

type NewHalaqa struct {
	CourseID  string `json:"course_id" validate:"required"`
	Name      string `json:"name" validate:"required,notblank"`
	TeacherID string `json:"teacher_id" validate:"required"`
	Capacity  int    `json:"capacity" validate:"required,min=1"`
	ChannelID string `json:"channel_id"`
}

func (nh *NewHalaqa) Validate(validate *validator.Validate) error {
	nh.Name = core.CleanString(nh.Name)
	nh.ChannelID = core.CleanString(nh.ChannelID)
	return validate.Struct(nh)
}

type UpdateHalaqa struct {
	Name      *string `json:"name" validate:"omitempty,notblank"`
	TeacherID *string `json:"teacher_id" validate:"omitempty,min=1"`
	Capacity  *int    `json:"capacity" validate:"omitempty,min=1"`
	ChannelID *string `json:"channel_id"`
}

func (uh *UpdateHalaqa) Validate(validate *validator.Validate) error {
	return validate.Struct(uh)
}

// NewStudent contains information needed to add a Student manually.
type NewStudent struct {
	CourseID string `json:"course_id" validate:"required"`
	Name     string `json:"name" validate:"required,notblank"`
	Phone    string `json:"phone" validate:"required,notblank"`
	Gender   Gender `json:"gender" validate:"required,gender"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Phone = core.CleanString(ns.Phone)
	return validate.Struct(ns)
}

// ImportRow is one registration row coming from an external sheet.
type ImportRow struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Gender Gender `json:"gender"`
}

type NewDailyPlan struct {
	Date   core.Date `json:"date" validate:"required,datetime=2006-01-02"`
	Text   string    `json:"text" validate:"required,notblank"`
	IsExam bool      `json:"is_exam"`
}

func (np *NewDailyPlan) Validate(validate *validator.Validate) error {
	np.Text = core.CleanString(np.Text)
	return validate.Struct(np)
}

type HalaqaFilter struct {
	OrgID     string
	CourseID  string
	TeacherID string
}

type StudentFilter struct {
	OrgID    string            `query:"-"`
	CourseID string            `query:"course_id"`
	HalaqaID string            `query:"halaqa_id"`
	Statuses []StudentStatus   `query:"status"`
	Ordering []core.DBOrdering `query:"-"`
}

// StudentMatch is a search hit ranked by similarity.
type StudentMatch struct {
	Student Student `json:"student"`
	Score   float64 `json:"score"`
}
