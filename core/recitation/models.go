package recitation

import (
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/roster"
)

type Attendance string

const (
	Present Attendance = "PRESENT"
	Absent  Attendance = "ABSENT"
	Excused Attendance = "EXCUSED"
)

func (a Attendance) Valid() bool {
	switch a {
	case Present, Absent, Excused:
		return true
	}
	return false
}

type Recited string

const (
	RecitedYes     Recited = "YES"
	RecitedPartial Recited = "PARTIAL"
	RecitedNo      Recited = "NO"
)

func (r Recited) Valid() bool {
	switch r {
	case RecitedYes, RecitedPartial, RecitedNo:
		return true
	}
	return false
}

type Rating string

const (
	Excellent Rating = "EXCELLENT"
	Good      Rating = "GOOD"
	NeedsWork Rating = "NEEDS_WORK"
)

func (r Rating) Valid() bool {
	switch r {
	case Excellent, Good, NeedsWork:
		return true
	}
	return false
}

const (
	MinScore = 0
	MaxScore = 10
)

// Record is the attendance and grade of one student on one date.
type Record struct {
	ID         string     `json:"id" db:"id"`
	StudentID  string     `json:"student_id" db:"student_id"`
	Date       core.Date  `json:"date" db:"date"`
	Attendance Attendance `json:"attendance" db:"attendance"`
	Recited    Recited    `json:"recited" db:"recited"`
	Score      int        `json:"score" db:"score"`
	Rating     Rating     `json:"rating" db:"rating"`
	Notes      string     `json:"notes,omitempty" db:"notes"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"` // UTC
}

// DefaultRecord is the optimistic pre-fill shown for a student without a stored record.
func DefaultRecord(studentID string, date core.Date) Record {
	return Record{
		StudentID:  studentID,
		Date:       date,
		Attendance: Present,
		Recited:    RecitedYes,
		Score:      MaxScore,
		Rating:     Excellent,
	}
}

// Counts reports whether recited, score and rating are meaningful. They are only for PRESENT students.
func (r Record) Counts() bool {
	return r.Attendance == Present
}

// Completed reports whether the record counts as a completed session.
func (r Record) Completed() bool {
	return r.Counts() && r.Recited != RecitedNo
}

func (r Record) validate() error {
	var flds []core.FieldError
	if r.StudentID == "" {
		flds = append(flds, core.FieldError{Field: "student_id", Error: "this field is required"})
	}
	if !r.Date.Valid() {
		flds = append(flds, core.FieldError{Field: "date", Error: "must be a date formatted as YYYY-MM-DD"})
	}
	if !r.Attendance.Valid() {
		flds = append(flds, core.FieldError{Field: "attendance", Error: "invalid attendance"})
	}
	if !r.Recited.Valid() {
		flds = append(flds, core.FieldError{Field: "recited", Error: "invalid recited value"})
	}
	if r.Score < MinScore || r.Score > MaxScore {
		flds = append(flds, core.FieldError{Field: "score", Error: "score must be between 0 and 10"})
	}
	if !r.Rating.Valid() {
		flds = append(flds, core.FieldError{Field: "rating", Error: "invalid rating"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

type Field string

const (
	FieldAttendance Field = "attendance"
	FieldRecited    Field = "recited"
	FieldScore      Field = "score"
	FieldRating     Field = "rating"
	FieldNotes      Field = "notes"
)

// set parses value into the field of r.
func (r *Record) set(field Field, value string) error {
	invalid := func(msg string) error {
		return core.NewValidationError(nil, core.FieldError{Field: string(field), Error: msg})
	}
	value = strings.TrimSpace(value)

	switch field {
	case FieldAttendance:
		a := Attendance(strings.ToUpper(value))
		if !a.Valid() {
			return invalid("invalid attendance")
		}
		r.Attendance = a
	case FieldRecited:
		rc := Recited(strings.ToUpper(value))
		if !rc.Valid() {
			return invalid("invalid recited value")
		}
		r.Recited = rc
	case FieldScore:
		score, err := strconv.Atoi(value)
		if err != nil || score < MinScore || score > MaxScore {
			return invalid("score must be between 0 and 10")
		}
		r.Score = score
	case FieldRating:
		rt := Rating(strings.ToUpper(value))
		if !rt.Valid() {
			return invalid("invalid rating")
		}
		r.Rating = rt
	case FieldNotes:
		r.Notes = value
	default:
		return invalid("unknown field")
	}
	return nil
}

// Entry is one row of a session sheet.
type Entry struct {
	Student roster.Student `json:"student"`
	Record  Record         `json:"record"`
	Saved   bool           `json:"saved"` // false: Record is the default pre-fill
}

// Sheet is the grading sheet of a halaqa for one date.
type Sheet struct {
	HalaqaID string            `json:"halaqa_id"`
	Date     core.Date         `json:"date"`
	Plan     *roster.DailyPlan `json:"plan,omitempty"`
	Entries  []Entry           `json:"entries"`
}

type Filter struct {
	StudentIDs []string
	From       core.Date // inclusive, optional
	To         core.Date // inclusive, optional
}
