package pgdb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/recitation"
	"github.com/trezcool/halaqat/core/roster"
)

var studentCols = []string{"id", "org_id", "course_id", "name", "phone", "gender", "status", "halaqa_id", "created_at", "updated_at"}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func studentRows(halaqaID interface{}, status roster.StudentStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(studentCols).
		AddRow("s4", "org1", "c1", "يوسف حسن", "0501122334", "MALE", string(status), halaqaID, now, now)
}

func TestRosterRepository_AssignStudent(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "seated",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT .* FROM students WHERE id = \\$1 FOR UPDATE").WithArgs("s4").
					WillReturnRows(studentRows(nil, roster.StatusAccepted))
				mock.ExpectQuery("SELECT capacity FROM halaqat WHERE id = \\$1 FOR UPDATE").WithArgs("h1").
					WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(15))
				mock.ExpectQuery("UPDATE students SET halaqa_id").
					WithArgs("s4", "h1", sqlmock.AnyArg(), 15).
					WillReturnRows(studentRows("h1", roster.StatusAccepted))
				mock.ExpectCommit()
			},
		},
		{
			name: "full",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT .* FROM students WHERE id = \\$1 FOR UPDATE").WithArgs("s4").
					WillReturnRows(studentRows(nil, roster.StatusAccepted))
				mock.ExpectQuery("SELECT capacity FROM halaqat").WithArgs("h1").
					WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(1))
				mock.ExpectQuery("UPDATE students SET halaqa_id").
					WillReturnRows(sqlmock.NewRows(studentCols))
				mock.ExpectRollback()
			},
			wantErr: roster.ErrCapacityExceeded,
		},
		{
			name: "not accepted",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT .* FROM students WHERE id = \\$1 FOR UPDATE").WithArgs("s4").
					WillReturnRows(studentRows(nil, roster.StatusNew))
				mock.ExpectQuery("SELECT capacity FROM halaqat").WithArgs("h1").
					WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(15))
				mock.ExpectRollback()
			},
			wantErr: roster.ErrInvalidStatus,
		},
		{
			name: "unknown halaqa",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT .* FROM students WHERE id = \\$1 FOR UPDATE").WithArgs("s4").
					WillReturnRows(studentRows(nil, roster.StatusAccepted))
				mock.ExpectQuery("SELECT capacity FROM halaqat").WithArgs("h1").WillReturnError(sql.ErrNoRows)
				mock.ExpectRollback()
			},
			wantErr: roster.ErrHalaqaNotFound,
		},
		{
			name: "same halaqa",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT .* FROM students WHERE id = \\$1 FOR UPDATE").WithArgs("s4").
					WillReturnRows(studentRows("h1", roster.StatusAccepted))
				mock.ExpectRollback()
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			tc.setup(mock)

			s, err := NewRosterRepository(db).AssignStudent(context.Background(), "s4", "h1", time.Now().UTC())
			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "h1", s.HalaqaID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRosterRepository_SetStudentStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRosterRepository(db)
	at := time.Now().UTC()

	mock.ExpectQuery("UPDATE students SET status = \\$2::text,\\s+halaqa_id = CASE WHEN \\$2::text = 'ACCEPTED' THEN halaqa_id END").
		WithArgs("s4", roster.StatusRejected, at).
		WillReturnRows(studentRows(nil, roster.StatusRejected))
	mock.ExpectQuery("UPDATE students SET status").WithArgs("nope", roster.StatusNew, at).WillReturnError(sql.ErrNoRows)

	s, err := repo.SetStudentStatus(context.Background(), "s4", roster.StatusRejected, at)
	require.NoError(t, err)
	assert.Equal(t, roster.StatusRejected, s.Status)
	assert.Empty(t, s.HalaqaID)

	_, err = repo.SetStudentStatus(context.Background(), "nope", roster.StatusNew, at)
	assert.Equal(t, roster.ErrStudentNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepository_ClearStudentHalaqa(t *testing.T) {
	db, mock := newMock(t)
	at := time.Now().UTC()

	mock.ExpectQuery("UPDATE students SET halaqa_id = NULL").WithArgs("s4", at).
		WillReturnRows(studentRows(nil, roster.StatusAccepted))

	s, err := NewRosterRepository(db).ClearStudentHalaqa(context.Background(), "s4", at)
	require.NoError(t, err)
	assert.Empty(t, s.HalaqaID)
	assert.Equal(t, roster.StatusAccepted, s.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepository_GetCourse(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRosterRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .* FROM courses WHERE id = \\$1").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "org_id", "name", "type", "daily_amount", "start_date", "end_date", "midterm_date",
			"final_exam_date", "recitation_days", "passing_score", "logo_url", "created_at", "updated_at",
		}).AddRow("c1", "org1", "دورة", "SURAH_SINGLE", "وجه واحد", "2023-10-01", "2023-12-30", nil,
			time.Date(2023, 12, 28, 0, 0, 0, 0, time.UTC), []byte("{0,1,2,3,4}"), 8, nil, now, now))
	mock.ExpectQuery("SELECT .* FROM courses WHERE id = \\$1").WithArgs("nope").WillReturnError(sql.ErrNoRows)

	c, err := repo.GetCourse(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, c.RecitationDays)
	assert.Equal(t, core.Date(""), c.MidtermDate)
	assert.Equal(t, core.Date("2023-12-28"), c.FinalExamDate)
	assert.Equal(t, "وجه واحد", c.DailyAmount)
	assert.Empty(t, c.LogoURL)

	_, err = repo.GetCourse(context.Background(), "nope")
	assert.Equal(t, roster.ErrCourseNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepository_QueryStudents(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("SELECT .* FROM students WHERE course_id = \\$1 AND status = ANY\\(\\$2\\) ORDER BY name ASC, id ASC").
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnRows(studentRows(nil, roster.StatusNew))

	students, err := NewRosterRepository(db).QueryStudents(context.Background(), roster.StudentFilter{
		CourseID: "c1",
		Statuses: []roster.StudentStatus{roster.StatusNew},
		Ordering: []core.DBOrdering{{Field: "name", Ascending: true}, {Field: "phone; DROP TABLE students"}},
	})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Empty(t, students[0].HalaqaID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecitationRepository_UpsertRecord(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()

	rec := recitation.DefaultRecord("s1", "2023-10-01")
	rec.ID = "new-id"
	rec.UpdatedAt = now

	mock.ExpectQuery("INSERT INTO recitation_records .* ON CONFLICT \\(student_id, date\\) DO UPDATE").
		WithArgs("new-id", "s1", sqlmock.AnyArg(), "PRESENT", "YES", 10, "EXCELLENT", sqlmock.AnyArg(), now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "date", "attendance", "recited", "score", "rating", "notes", "updated_at"}).
			AddRow("r_s1_0", "s1", "2023-10-01", "PRESENT", "YES", 10, "EXCELLENT", nil, now))

	saved, err := NewRecitationRepository(db).UpsertRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "r_s1_0", saved.ID)
	assert.Equal(t, core.Date("2023-10-01"), saved.Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrgRepository_CreateUserDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: uniqueViolation})

	_, err := NewOrgRepository(db).CreateUser(context.Background(), org.User{ID: "u9", Email: "teacher@alnoor.com"})
	assert.Equal(t, org.ErrEmailExists, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
