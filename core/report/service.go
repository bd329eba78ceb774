package report

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/recitation"
	"github.com/trezcool/halaqat/core/roster"
)

var errInvalidScope = core.NewValidationError(nil, core.FieldError{
	Field: "scope",
	Error: "scope must be one of student, halaqa, teacher, course with an id",
})

type (
	Roster interface {
		GetCourse(ctx context.Context, id string) (roster.Course, error)
		QueryCourses(ctx context.Context, orgID string) ([]roster.Course, error)
		GetHalaqa(ctx context.Context, id string) (roster.Halaqa, error)
		QueryHalaqat(ctx context.Context, filter roster.HalaqaFilter) ([]roster.Halaqa, error)
		GetStudent(ctx context.Context, id string) (roster.Student, error)
		QueryStudents(ctx context.Context, filter roster.StudentFilter) ([]roster.Student, error)
	}

	Records interface {
		QueryRecords(ctx context.Context, filter recitation.Filter) ([]recitation.Record, error)
	}

	Users interface {
		QueryUsers(ctx context.Context, orgID string, roles ...org.Role) ([]org.User, error)
	}

	// Service computes read-only aggregates. It holds no state: every call reads fresh copies.
	Service struct {
		roster  Roster
		records Records
		users   Users
	}
)

func NewService(rstr Roster, records Records, users Users) *Service {
	return &Service{roster: rstr, records: records, users: users}
}

type member struct {
	student roster.Student
	course  roster.Course
}

// population resolves the students of a scope with their course.
func (svc *Service) population(ctx context.Context, scope Scope) ([]member, error) {
	if !scope.Kind.Valid() || scope.ID == "" {
		return nil, errInvalidScope
	}

	courses := make(map[string]roster.Course)
	course := func(id string) (roster.Course, error) {
		if c, ok := courses[id]; ok {
			return c, nil
		}
		c, err := svc.roster.GetCourse(ctx, id)
		if err != nil {
			return roster.Course{}, err
		}
		courses[id] = c
		return c, nil
	}
	members := func(students []roster.Student) ([]member, error) {
		ms := make([]member, 0, len(students))
		for _, s := range students {
			c, err := course(s.CourseID)
			if err != nil {
				return nil, errors.Wrap(err, "getting student course")
			}
			ms = append(ms, member{student: s, course: c})
		}
		return ms, nil
	}

	switch scope.Kind {
	case ScopeStudent:
		s, err := svc.roster.GetStudent(ctx, scope.ID)
		if err != nil {
			return nil, err
		}
		return members([]roster.Student{s})
	case ScopeHalaqa:
		h, err := svc.roster.GetHalaqa(ctx, scope.ID)
		if err != nil {
			return nil, err
		}
		students, err := svc.roster.QueryStudents(ctx, roster.StudentFilter{HalaqaID: h.ID})
		if err != nil {
			return nil, errors.Wrap(err, "querying halaqa students")
		}
		return members(students)
	case ScopeTeacher:
		halaqat, err := svc.roster.QueryHalaqat(ctx, roster.HalaqaFilter{TeacherID: scope.ID})
		if err != nil {
			return nil, errors.Wrap(err, "querying teacher halaqat")
		}
		var students []roster.Student
		for _, h := range halaqat {
			hs, err := svc.roster.QueryStudents(ctx, roster.StudentFilter{HalaqaID: h.ID})
			if err != nil {
				return nil, errors.Wrap(err, "querying halaqa students")
			}
			students = append(students, hs...)
		}
		return members(students)
	case ScopeCourse:
		c, err := course(scope.ID)
		if err != nil {
			return nil, err
		}
		students, err := svc.roster.QueryStudents(ctx, roster.StudentFilter{
			CourseID: c.ID,
			Statuses: []roster.StudentStatus{roster.StatusAccepted},
		})
		if err != nil {
			return nil, errors.Wrap(err, "querying course students")
		}
		return members(students)
	}
	return nil, errInvalidScope
}

type tally struct {
	expected  int
	completed int
	scoreSum  int
	scored    int // PRESENT records
}

func (t tally) average() Metric {
	return newMetric(float64(t.scoreSum), t.scored)
}

// tallies computes per-student counters over the window, one record query per course.
func (svc *Service) tallies(ctx context.Context, members []member, window Window, asOf core.Date) ([]tally, error) {
	if _, err := ParseWindow(string(window)); err != nil {
		return nil, err
	}
	if !asOf.Valid() {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "as_of", Error: "must be a date formatted as YYYY-MM-DD"})
	}

	tallies := make([]tally, len(members))
	byCourse := make(map[string][]int)
	for i, m := range members {
		byCourse[m.course.ID] = append(byCourse[m.course.ID], i)
	}

	for _, idxs := range byCourse {
		c := members[idxs[0]].course
		from, to, ok := window.Range(c, asOf)
		if !ok {
			continue
		}
		sessions := make(map[core.Date]bool)
		for _, d := range c.SessionDates(from, to) {
			sessions[d] = true
		}

		ids := make([]string, 0, len(idxs))
		pos := make(map[string]int, len(idxs))
		for _, i := range idxs {
			ids = append(ids, members[i].student.ID)
			pos[members[i].student.ID] = i
			tallies[i].expected = len(sessions)
		}
		records, err := svc.records.QueryRecords(ctx, recitation.Filter{StudentIDs: ids, From: from, To: to})
		if err != nil {
			return nil, errors.Wrap(err, "querying records")
		}
		for _, rec := range records {
			i, ok := pos[rec.StudentID]
			if !ok {
				continue
			}
			if sessions[rec.Date] && rec.Completed() {
				tallies[i].completed++
			}
			if rec.Counts() {
				tallies[i].scoreSum += rec.Score
				tallies[i].scored++
			}
		}
	}
	return tallies, nil
}

// CompletionRate is completed sessions over expected sessions. Missing records count as not completed.
func (svc *Service) CompletionRate(ctx context.Context, scope Scope, window Window, asOf core.Date) (Metric, error) {
	members, err := svc.population(ctx, scope)
	if err != nil {
		return Metric{}, err
	}
	tallies, err := svc.tallies(ctx, members, window, asOf)
	if err != nil {
		return Metric{}, err
	}
	return completionRate(tallies), nil
}

// AverageScore is the mean score of PRESENT records. No such record gives NoData.
func (svc *Service) AverageScore(ctx context.Context, scope Scope, window Window, asOf core.Date) (Metric, error) {
	members, err := svc.population(ctx, scope)
	if err != nil {
		return Metric{}, err
	}
	tallies, err := svc.tallies(ctx, members, window, asOf)
	if err != nil {
		return Metric{}, err
	}
	return averageScore(tallies), nil
}

// PassRate is the fraction of students with a score whose average reaches their course's passing score.
func (svc *Service) PassRate(ctx context.Context, scope Scope, window Window, asOf core.Date) (Metric, error) {
	members, err := svc.population(ctx, scope)
	if err != nil {
		return Metric{}, err
	}
	tallies, err := svc.tallies(ctx, members, window, asOf)
	if err != nil {
		return Metric{}, err
	}
	return passRate(members, tallies), nil
}

// Summary computes the three aggregates in one pass.
func (svc *Service) Summary(ctx context.Context, scope Scope, window Window, asOf core.Date) (Summary, error) {
	members, err := svc.population(ctx, scope)
	if err != nil {
		return Summary{}, err
	}
	tallies, err := svc.tallies(ctx, members, window, asOf)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Scope:          scope,
		Window:         window,
		AsOf:           asOf,
		CompletionRate: completionRate(tallies),
		AverageScore:   averageScore(tallies),
		PassRate:       passRate(members, tallies),
	}, nil
}

// StudentProgress returns one row per student of the scope.
func (svc *Service) StudentProgress(ctx context.Context, scope Scope, window Window, asOf core.Date) ([]StudentProgress, error) {
	members, err := svc.population(ctx, scope)
	if err != nil {
		return nil, err
	}
	tallies, err := svc.tallies(ctx, members, window, asOf)
	if err != nil {
		return nil, err
	}
	rows := make([]StudentProgress, 0, len(members))
	for i, m := range members {
		t := tallies[i]
		row := StudentProgress{
			Student:        m.student,
			Expected:       t.expected,
			Completed:      t.completed,
			CompletionRate: newMetric(float64(t.completed), t.expected),
			AverageScore:   t.average(),
		}
		if avg, ok := row.AverageScore.Float(); ok {
			passing := avg >= float64(m.course.PassingScore)
			row.Passing = &passing
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func completionRate(tallies []tally) Metric {
	var completed, expected int
	for _, t := range tallies {
		completed += t.completed
		expected += t.expected
	}
	return newMetric(float64(completed), expected)
}

func averageScore(tallies []tally) Metric {
	var sum, n int
	for _, t := range tallies {
		sum += t.scoreSum
		n += t.scored
	}
	return newMetric(float64(sum), n)
}

func passRate(members []member, tallies []tally) Metric {
	var passed, graded int
	for i, t := range tallies {
		avg, ok := t.average().Float()
		if !ok {
			continue
		}
		graded++
		if avg >= float64(members[i].course.PassingScore) {
			passed++
		}
	}
	return newMetric(float64(passed), graded)
}

// OrgStats returns the dashboard counters: courses not ended yet, registered students and teachers.
func (svc *Service) OrgStats(ctx context.Context, orgID string) (org.Stats, error) {
	courses, err := svc.roster.QueryCourses(ctx, orgID)
	if err != nil {
		return org.Stats{}, errors.Wrap(err, "querying courses")
	}
	students, err := svc.roster.QueryStudents(ctx, roster.StudentFilter{OrgID: orgID})
	if err != nil {
		return org.Stats{}, errors.Wrap(err, "querying students")
	}
	teachers, err := svc.users.QueryUsers(ctx, orgID, org.RoleTeacher)
	if err != nil {
		return org.Stats{}, errors.Wrap(err, "querying teachers")
	}

	today := core.Today()
	var stats org.Stats
	for _, c := range courses {
		if !c.EndDate.Before(today) {
			stats.ActiveCourses++
		}
	}
	stats.TotalStudents = len(students)
	stats.TotalTeachers = len(teachers)
	return stats, nil
}
