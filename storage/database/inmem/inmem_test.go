package inmemdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/integration"
	"github.com/trezcool/halaqat/core/message"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/recitation"
	"github.com/trezcool/halaqat/core/roster"
)

func seeded(t *testing.T) *DB {
	t.Helper()
	db := Open()
	require.NoError(t, Seed(db, "password123", "2023-10-05"))
	return db
}

func TestSeed(t *testing.T) {
	db := seeded(t)
	ctx := context.Background()

	users, err := NewOrgRepository(db).QueryUsers(ctx, org.UserFilter{OrgID: "org1", Roles: []org.Role{org.RoleTeacher}})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	plans, err := NewRosterRepository(db).QueryDailyPlans(ctx, "c1", "", "")
	require.NoError(t, err)
	assert.Len(t, plans, 30)

	recs, err := NewRecitationRepository(db).QueryRecords(ctx, recitation.Filter{StudentIDs: []string{"s1"}})
	require.NoError(t, err)
	assert.Len(t, recs, 5)
	assert.Equal(t, core.Date("2023-10-01"), recs[0].Date)
}

func TestRosterRepository_AssignStudent(t *testing.T) {
	db := seeded(t)
	repo := NewRosterRepository(db)
	ctx := context.Background()

	h, err := repo.CreateHalaqa(ctx, roster.Halaqa{ID: "small", OrgID: "org1", CourseID: "c1", Name: "small", TeacherID: "u4", Capacity: 1})
	require.NoError(t, err)

	tests := []struct {
		name      string
		studentID string
		wantErr   error
	}{
		{name: "not accepted", studentID: "s4", wantErr: roster.ErrInvalidStatus},
		{name: "first seat", studentID: "s1"},
		{name: "same halaqa", studentID: "s1"},
		{name: "full", studentID: "s2", wantErr: roster.ErrCapacityExceeded},
		{name: "unknown student", studentID: "nope", wantErr: roster.ErrStudentNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := repo.AssignStudent(ctx, tc.studentID, h.ID, time.Now().UTC())
			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, h.ID, s.HalaqaID)
		})
	}
}

func TestRosterRepository_AssignStudentConcurrent(t *testing.T) {
	db := seeded(t)
	repo := NewRosterRepository(db)
	ctx := context.Background()

	_, err := repo.CreateHalaqa(ctx, roster.Halaqa{ID: "h9", OrgID: "org1", CourseID: "c1", Name: "h9", TeacherID: "u4", Capacity: 2})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for _, id := range []string{"s1", "s2", "s3", "s5"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := repo.AssignStudent(ctx, id, "h9", time.Now()); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 2, success)
	seated, err := repo.QueryStudents(ctx, roster.StudentFilter{HalaqaID: "h9"})
	require.NoError(t, err)
	assert.Len(t, seated, 2)
}

func TestRosterRepository_QueryStudentsOrdering(t *testing.T) {
	db := seeded(t)
	repo := NewRosterRepository(db)

	students, err := repo.QueryStudents(context.Background(), roster.StudentFilter{
		HalaqaID: "h1",
		Ordering: []core.DBOrdering{{Field: "name", Ascending: true}},
	})
	require.NoError(t, err)
	require.Len(t, students, 3)
	for i := 1; i < len(students); i++ {
		assert.True(t, students[i-1].Name <= students[i].Name)
	}
}

func TestRecitationRepository_UpsertKeepsID(t *testing.T) {
	db := seeded(t)
	repo := NewRecitationRepository(db)
	ctx := context.Background()

	rec := recitation.DefaultRecord("s1", "2023-10-05")
	rec.ID = "other"
	rec.Score = 4
	saved, err := repo.UpsertRecord(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "r_s1_0", saved.ID)

	got, err := repo.GetRecord(ctx, "s1", "2023-10-05")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Score)
}

func TestIntegrationRepository(t *testing.T) {
	repo := NewIntegrationRepository(Open())
	ctx := context.Background()

	_, err := repo.GetConnection(ctx, "org1")
	assert.Equal(t, integration.ErrConnectionNotFound, err)

	conn := integration.Connection{OrgID: "org1", Email: "admin@alnoor-center.com", Scopes: []string{"a"}}
	_, err = repo.SaveConnection(ctx, conn)
	require.NoError(t, err)
	_, err = repo.SaveConnection(ctx, conn)
	assert.Equal(t, integration.ErrAlreadyConnected, err)

	require.NoError(t, repo.DeleteConnection(ctx, "org1"))
	assert.Equal(t, integration.ErrConnectionNotFound, repo.DeleteConnection(ctx, "org1"))

	created := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	_, err = repo.UpsertAsset(ctx, integration.Asset{ID: "a1", CourseID: "c1", SheetURL: "u1", CreatedAt: created})
	require.NoError(t, err)
	_, err = repo.UpsertAsset(ctx, integration.Asset{ID: "a2", CourseID: "c1", SheetURL: "u2", CreatedAt: created.AddDate(0, 0, 1)})
	require.NoError(t, err)
	a, err := repo.GetAsset(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "u2", a.SheetURL)
	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, created, a.CreatedAt)
}

func TestMessageRepository_QueryLogs(t *testing.T) {
	repo := NewMessageRepository(Open())
	ctx := context.Background()

	for _, l := range []message.Log{
		{ID: "1", OrgID: "org1", Type: message.TypeReminder, Status: message.StatusSent},
		{ID: "2", OrgID: "org1", Type: message.TypeDailyPlan, Status: message.StatusFailed},
		{ID: "3", OrgID: "org2", Type: message.TypeReminder, Status: message.StatusSent},
	} {
		_, err := repo.AppendLog(ctx, l)
		require.NoError(t, err)
	}

	logs, err := repo.QueryLogs(ctx, message.Filter{OrgID: "org1"})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "2", logs[0].ID)

	logs, err = repo.QueryLogs(ctx, message.Filter{Status: message.StatusSent})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}
