package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/recitation"
	"github.com/trezcool/halaqat/core/report"
	"github.com/trezcool/halaqat/core/roster"
	inmemdb "github.com/trezcool/halaqat/storage/database/inmem"
)

var (
	course = roster.Course{
		ID:             "c1",
		OrgID:          "o1",
		Name:           "جزء عم",
		Type:           roster.CourseJuzRange,
		StartDate:      "2023-10-01",
		EndDate:        "2023-10-31",
		RecitationDays: []int{0, 1, 2, 3, 4},
		PassingScore:   8,
	}
	asOf = core.MustDate("2023-10-07")
)

// newService builds a course with one graded student (s1), one accepted student without records (s2)
// and one NEW student (s3). s1 recited 10-01 to 10-05 with scores 8, 9, 8, 9, 9.
func newService(t *testing.T) *report.Service {
	t.Helper()
	ctx := context.Background()
	db := inmemdb.Open()
	rosterRepo := inmemdb.NewRosterRepository(db)
	records := inmemdb.NewRecitationRepository(db)

	_, err := rosterRepo.CreateCourse(ctx, course)
	require.NoError(t, err)
	_, err = rosterRepo.CreateHalaqa(ctx, roster.Halaqa{ID: "h1", OrgID: "o1", CourseID: "c1", Name: "حلقة", TeacherID: "t1", Capacity: 10})
	require.NoError(t, err)
	_, err = rosterRepo.CreateStudents(ctx,
		roster.Student{ID: "s1", OrgID: "o1", CourseID: "c1", Name: "محمد", Gender: roster.Male, Status: roster.StatusAccepted, HalaqaID: "h1"},
		roster.Student{ID: "s2", OrgID: "o1", CourseID: "c1", Name: "علي", Gender: roster.Male, Status: roster.StatusAccepted, HalaqaID: "h1"},
		roster.Student{ID: "s3", OrgID: "o1", CourseID: "c1", Name: "عمر", Gender: roster.Male, Status: roster.StatusNew},
	)
	require.NoError(t, err)

	for i, score := range []int{8, 9, 8, 9, 9} {
		_, err = records.UpsertRecord(ctx, recitation.Record{
			ID:         core.NewID(),
			StudentID:  "s1",
			Date:       course.StartDate.AddDays(i),
			Attendance: recitation.Present,
			Recited:    recitation.RecitedYes,
			Score:      score,
			Rating:     recitation.Good,
		})
		require.NoError(t, err)
	}

	users := org.NewService(inmemdb.NewOrgRepository(db), nil)
	return report.NewService(rosterRepo, records, users)
}

func value(t *testing.T, m report.Metric) float64 {
	t.Helper()
	v, ok := m.Float()
	require.True(t, ok, "metric has no data")
	return v
}

func TestService_Summary(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	t.Run("student", func(t *testing.T) {
		s, err := svc.Summary(ctx, report.StudentScope("s1"), report.WindowWeek, asOf)
		require.NoError(t, err)
		assert.InDelta(t, 8.6, value(t, s.AverageScore), 1e-9)
		assert.Equal(t, 5, s.AverageScore.Samples)
		assert.InDelta(t, 1.0, value(t, s.CompletionRate), 1e-9)
		assert.InDelta(t, 1.0, value(t, s.PassRate), 1e-9)
	})

	t.Run("course counts accepted students only", func(t *testing.T) {
		s, err := svc.Summary(ctx, report.CourseScope("c1"), report.WindowWeek, asOf)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, value(t, s.CompletionRate), 1e-9)
		assert.Equal(t, 10, s.CompletionRate.Samples)
		assert.InDelta(t, 8.6, value(t, s.AverageScore), 1e-9)
		// s2 has no score and is left out of the pass rate
		assert.Equal(t, 1, s.PassRate.Samples)
	})

	t.Run("today is not a recitation day", func(t *testing.T) {
		s, err := svc.Summary(ctx, report.HalaqaScope("h1"), report.WindowToday, asOf) // saturday
		require.NoError(t, err)
		assert.False(t, s.CompletionRate.HasData())
		assert.False(t, s.AverageScore.HasData())
		assert.False(t, s.PassRate.HasData())
	})
}

func TestService_CompletionRate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	// month window is clipped to the course start: 10-01 to 10-10 holds 8 sessions
	m, err := svc.CompletionRate(ctx, report.StudentScope("s1"), report.WindowMonth, "2023-10-10")
	require.NoError(t, err)
	assert.Equal(t, 8, m.Samples)
	assert.InDelta(t, 5.0/8, value(t, m), 1e-9)

	m, err = svc.CompletionRate(ctx, report.StudentScope("s1"), report.WindowCourseToDate, "2023-09-20")
	require.NoError(t, err)
	assert.Equal(t, report.NoData(), m)
}

func TestService_PassRate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	// 10-01 alone: a score of 8 meets the passing score
	m, err := svc.PassRate(ctx, report.TeacherScope("t1"), report.WindowToday, "2023-10-01")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, value(t, m), 1e-9)

	m, err = svc.PassRate(ctx, report.TeacherScope("nobody"), report.WindowCourseToDate, asOf)
	require.NoError(t, err)
	assert.False(t, m.HasData())
}

func TestService_Errors(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.AverageScore(ctx, report.Scope{Kind: "planet", ID: "x"}, report.WindowWeek, asOf)
	assert.True(t, core.IsValidation(err))

	_, err = svc.AverageScore(ctx, report.Scope{Kind: report.ScopeStudent}, report.WindowWeek, asOf)
	assert.True(t, core.IsValidation(err))

	_, err = svc.AverageScore(ctx, report.StudentScope("s1"), "year", asOf)
	assert.True(t, core.IsValidation(err))

	_, err = svc.AverageScore(ctx, report.StudentScope("s1"), report.WindowWeek, "07/10/2023")
	assert.True(t, core.IsValidation(err))

	_, err = svc.AverageScore(ctx, report.StudentScope("s9"), report.WindowWeek, asOf)
	assert.True(t, core.IsNotFound(err))
}

func TestService_StudentProgress(t *testing.T) {
	svc := newService(t)

	rows, err := svc.StudentProgress(context.Background(), report.HalaqaScope("h1"), report.WindowCourseToDate, asOf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[string]report.StudentProgress{rows[0].Student.ID: rows[0], rows[1].Student.ID: rows[1]}
	s1 := byID["s1"]
	assert.Equal(t, 5, s1.Expected)
	assert.Equal(t, 5, s1.Completed)
	require.NotNil(t, s1.Passing)
	assert.True(t, *s1.Passing)

	s2 := byID["s2"]
	assert.Equal(t, 5, s2.Expected)
	assert.Equal(t, 0, s2.Completed)
	assert.Nil(t, s2.Passing)
	assert.False(t, s2.AverageScore.HasData())
}

func TestService_OrgStats(t *testing.T) {
	svc := newService(t)
	defer func(f func() time.Time) { core.NowFunc = f }(core.NowFunc)

	core.NowFunc = func() time.Time { return time.Date(2023, 10, 7, 12, 0, 0, 0, time.UTC) }
	stats, err := svc.OrgStats(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, org.Stats{ActiveCourses: 1, TotalStudents: 3}, stats)

	core.NowFunc = func() time.Time { return time.Date(2023, 11, 1, 12, 0, 0, 0, time.UTC) }
	stats, err = svc.OrgStats(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ActiveCourses)
}

func TestWindow_Range(t *testing.T) {
	tests := []struct {
		window   report.Window
		asOf     core.Date
		from, to core.Date
		ok       bool
	}{
		{report.WindowToday, "2023-10-07", "2023-10-07", "2023-10-07", true},
		{report.WindowWeek, "2023-10-03", "2023-10-01", "2023-10-03", true},
		{report.WindowMonth, "2023-11-20", "2023-10-22", "2023-10-31", true},
		{report.WindowCourseToDate, "2023-10-15", "2023-10-01", "2023-10-15", true},
		{report.WindowToday, "2023-09-30", "", "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.window)+" "+string(tt.asOf), func(t *testing.T) {
			from, to, ok := tt.window.Range(course, tt.asOf)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.from, from)
				assert.Equal(t, tt.to, to)
			}
		})
	}
}

func TestParseWindow(t *testing.T) {
	w, err := report.ParseWindow(" Week ")
	require.NoError(t, err)
	assert.Equal(t, report.WindowWeek, w)

	w, err = report.ParseWindow("")
	require.NoError(t, err)
	assert.Equal(t, report.WindowCourseToDate, w)

	_, err = report.ParseWindow("year")
	assert.True(t, core.IsValidation(err))
}
