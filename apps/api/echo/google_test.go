package echoapi_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/halaqat/core/integration"
	"github.com/trezcool/halaqat/core/roster"
)

type jobResponse struct {
	ID     string                `json:"id"`
	Kind   integration.JobKind   `json:"kind"`
	Status integration.JobStatus `json:"status"`
	Result json.RawMessage       `json:"result"`
}

func TestGoogleWithoutConnection(t *testing.T) {
	app := setup(t)
	manager := app.token(t, "u2")

	app.run(t, []httpTest{
		{
			name:     "teacher forbidden",
			method:   http.MethodGet,
			path:     "/v1/google/connection",
			token:    app.token(t, "u4"),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "not connected",
			method:   http.MethodGet,
			path:     "/v1/google/connection",
			token:    manager,
			wantCode: http.StatusPreconditionFailed,
			wantData: []byte(`{"error": "google account not connected", "precondition": true}`),
		},
		{
			name:     "create assets",
			method:   http.MethodPost,
			path:     "/v1/courses/c1/assets?wait=true",
			token:    manager,
			wantCode: http.StatusPreconditionFailed,
		},
		{
			name:     "sync without sheet",
			method:   http.MethodPost,
			path:     "/v1/courses/c1/sync?wait=true",
			token:    manager,
			wantCode: http.StatusPreconditionFailed,
			wantData: []byte(`{"error": "no registration sheet linked to this course", "precondition": true}`),
		},
		{
			name:     "unknown course",
			method:   http.MethodPost,
			path:     "/v1/courses/c9/assets",
			token:    manager,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "free plan",
			method:   http.MethodPost,
			path:     "/v1/google/connection?wait=true&org_id=org2",
			body:     []byte(`{"code": "auth-code"}`),
			token:    app.token(t, "u1"),
			wantCode: http.StatusPreconditionFailed,
			wantData: []byte(`{"error": "feature not available on the organization's plan", "precondition": true}`),
		},
		{
			name:     "unknown job",
			method:   http.MethodGet,
			path:     "/v1/google/jobs/nope",
			token:    manager,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "disconnect is idempotent",
			method:   http.MethodDelete,
			path:     "/v1/google/connection",
			token:    manager,
			wantCode: http.StatusNoContent,
		},
	})
}

func TestGoogleRegistrationFlow(t *testing.T) {
	app := setup(t)
	manager := app.token(t, "u2")

	waitJob := func(t *testing.T, path string, body []byte) jobResponse {
		t.Helper()
		rec := app.do(http.MethodPost, path+"?wait=true", manager, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var job jobResponse
		decode(t, rec, &job)
		require.Equal(t, integration.JobSucceeded, job.Status)
		return job
	}

	t.Run("async connect", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/google/connection", manager, []byte(`{"code": "auth-code"}`))
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		var job jobResponse
		decode(t, rec, &job)
		assert.Equal(t, integration.JobConnect, job.Kind)

		// jobs are private to their organization
		rec = app.do(http.MethodGet, "/v1/google/jobs/"+job.ID+"?org_id=org2", app.token(t, "u1"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("connect", func(t *testing.T) {
		waitJob(t, "/v1/google/connection", []byte(`{"code": "auth-code"}`))

		rec := app.do(http.MethodGet, "/v1/google/connection", manager)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var conn integration.Connection
		decode(t, rec, &conn)
		assert.Equal(t, "org1", conn.OrgID)
		assert.NotEmpty(t, conn.Email)
		assert.NotContains(t, rec.Body.String(), "mock_access_token")
	})

	t.Run("create assets", func(t *testing.T) {
		job := waitJob(t, "/v1/courses/c1/assets", nil)
		var a integration.Asset
		require.NoError(t, json.Unmarshal(job.Result, &a))
		assert.Equal(t, "c1", a.CourseID)
		assert.NotEmpty(t, a.FormURL)
		assert.Equal(t, "mockSheetIDc1", integration.SheetIDFromURL(a.SheetURL))

		rec := app.do(http.MethodGet, "/v1/courses/c1/assets", manager)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("sync", func(t *testing.T) {
		job := waitJob(t, "/v1/courses/c1/sync", nil)
		assert.JSONEq(t, `{"imported": 3}`, string(job.Result))

		rec := app.do(http.MethodGet, "/v1/students?course_id=c1&status=NEW", manager)
		require.Equal(t, http.StatusOK, rec.Code)
		var students []roster.Student
		decode(t, rec, &students)
		assert.Len(t, students, 4) // s4 and the imported rows
	})

	t.Run("manual urls", func(t *testing.T) {
		app.run(t, []httpTest{
			{
				name:     "blank urls",
				method:   http.MethodPut,
				path:     "/v1/courses/c2/assets",
				body:     []byte(`{"form_url": " ", "sheet_url": ""}`),
				token:    manager,
				wantCode: http.StatusBadRequest,
			},
			{
				name:     "set urls",
				method:   http.MethodPut,
				path:     "/v1/courses/c2/assets",
				body:     []byte(`{"form_url": "https://forms.gle/abc", "sheet_url": "https://docs.google.com/spreadsheets/d/sheet-c2/edit"}`),
				token:    manager,
				wantCode: http.StatusOK,
			},
		})
		job := waitJob(t, "/v1/courses/c2/sync", nil)
		assert.JSONEq(t, `{"imported": 3}`, string(job.Result))

		rec := app.do(http.MethodPut, "/v1/courses/c2/assets", manager, []byte(`{"midterm_exam_url": "https://forms.gle/mid"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var a integration.Asset
		decode(t, rec, &a)
		assert.Equal(t, "https://forms.gle/mid", a.MidtermExamURL)
		assert.Equal(t, "https://forms.gle/abc", a.FormURL)
		assert.Equal(t, "sheet-c2", a.SheetID)
	})
}
