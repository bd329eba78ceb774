package report

import (
	"strings"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/roster"
)

type ScopeKind string

const (
	ScopeStudent ScopeKind = "student"
	ScopeHalaqa  ScopeKind = "halaqa"
	ScopeTeacher ScopeKind = "teacher"
	ScopeCourse  ScopeKind = "course"
)

func (k ScopeKind) Valid() bool {
	switch k {
	case ScopeStudent, ScopeHalaqa, ScopeTeacher, ScopeCourse:
		return true
	}
	return false
}

// Scope selects the population of students an aggregate is computed over.
type Scope struct {
	Kind ScopeKind `json:"kind" query:"scope"`
	ID   string    `json:"id" query:"id"`
}

func StudentScope(id string) Scope { return Scope{Kind: ScopeStudent, ID: id} }
func HalaqaScope(id string) Scope  { return Scope{Kind: ScopeHalaqa, ID: id} }
func TeacherScope(id string) Scope { return Scope{Kind: ScopeTeacher, ID: id} }
func CourseScope(id string) Scope  { return Scope{Kind: ScopeCourse, ID: id} }

type Window string

const (
	WindowToday        Window = "today"
	WindowWeek         Window = "week"
	WindowMonth        Window = "month"
	WindowCourseToDate Window = "course"
)

func ParseWindow(s string) (Window, error) {
	w := Window(strings.ToLower(strings.TrimSpace(s)))
	switch w {
	case WindowToday, WindowWeek, WindowMonth, WindowCourseToDate:
		return w, nil
	case "":
		return WindowCourseToDate, nil
	}
	return "", core.NewValidationError(nil, core.FieldError{Field: "window", Error: "window must be one of today, week, month, course"})
}

// Range resolves the window for a course as of the given date. Trailing windows are clipped to the course:
// today is [asOf, asOf], week the 7 days ending asOf, month the 30 days ending asOf,
// course-to-date [startDate, asOf]. ok is false when the range is empty.
func (w Window) Range(c roster.Course, asOf core.Date) (from, to core.Date, ok bool) {
	switch w {
	case WindowToday:
		from = asOf
	case WindowWeek:
		from = asOf.AddDays(-6)
	case WindowMonth:
		from = asOf.AddDays(-29)
	case WindowCourseToDate:
		from = c.StartDate
	default:
		return "", "", false
	}
	from = core.MaxDate(from, c.StartDate)
	to = core.MinDate(asOf, c.EndDate)
	return from, to, !from.After(to)
}

// Metric is an aggregate value. A nil Value is the "no data" result (empty denominator).
type Metric struct {
	Value   *float64 `json:"value"`
	Samples int      `json:"samples"` // size of the denominator
}

func NoData() Metric { return Metric{} }

func newMetric(num float64, denom int) Metric {
	if denom == 0 {
		return NoData()
	}
	v := num / float64(denom)
	return Metric{Value: &v, Samples: denom}
}

func (m Metric) HasData() bool { return m.Value != nil }

// Float returns the value and whether there is one.
func (m Metric) Float() (float64, bool) {
	if m.Value == nil {
		return 0, false
	}
	return *m.Value, true
}

// Summary bundles the three aggregates of a scope.
type Summary struct {
	Scope          Scope     `json:"scope"`
	Window         Window    `json:"window"`
	AsOf           core.Date `json:"as_of"`
	CompletionRate Metric    `json:"completion_rate"`
	AverageScore   Metric    `json:"average_score"`
	PassRate       Metric    `json:"pass_rate"`
}

// StudentProgress is one row of the analytics table.
type StudentProgress struct {
	Student        roster.Student `json:"student"`
	Expected       int            `json:"expected_sessions"`
	Completed      int            `json:"completed_sessions"`
	CompletionRate Metric         `json:"completion_rate"`
	AverageScore   Metric         `json:"average_score"`
	Passing        *bool          `json:"passing"` // nil: no score yet
}
