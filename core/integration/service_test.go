package integration_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/integration"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/roster"
	inmemdb "github.com/trezcool/halaqat/storage/database/inmem"
)

// clientMock answers after delay, ignoring cancellation when stubborn is set.
type clientMock struct {
	delay     time.Duration
	stubborn  bool
	err       error
	authCalls int32
}

func (c *clientMock) wait(ctx context.Context) error {
	if c.stubborn {
		time.Sleep(c.delay)
		return c.err
	}
	select {
	case <-time.After(c.delay):
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *clientMock) Authorize(ctx context.Context, _ string) (integration.Connection, error) {
	atomic.AddInt32(&c.authCalls, 1)
	if err := c.wait(ctx); err != nil {
		return integration.Connection{}, err
	}
	return integration.Connection{
		Email:       "center@gmail.com",
		Credentials: integration.Credentials{AccessToken: "token", TokenType: "Bearer"},
	}, nil
}

func (c *clientMock) CreateRegistrationAssets(ctx context.Context, _ integration.Credentials, course roster.Course) (integration.RegistrationAssets, error) {
	if err := c.wait(ctx); err != nil {
		return integration.RegistrationAssets{}, err
	}
	return integration.RegistrationAssets{
		FormID:   "form-" + course.ID,
		FormURL:  "https://docs.google.com/forms/d/form-" + course.ID + "/viewform",
		SheetID:  "sheet-" + course.ID,
		SheetURL: "https://docs.google.com/spreadsheets/d/sheet-" + course.ID + "/edit",
	}, nil
}

func (c *clientMock) ReadRegistrations(ctx context.Context, _ integration.Credentials, _ string) ([]roster.ImportRow, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return []roster.ImportRow{
		{Name: "زيد", Phone: "0501111111", Gender: roster.Male},
		{Name: "مريم", Phone: "0502222222", Gender: roster.Female},
		{Name: "بلال", Phone: "0503333333", Gender: roster.Male},
	}, nil
}

func newService(t *testing.T, client integration.GoogleClient, timeout time.Duration) (*integration.Service, *roster.Service) {
	t.Helper()
	db := inmemdb.Open()
	require.NoError(t, inmemdb.Seed(db, "s3cr3t-p@ss", "2023-10-05"))

	validate, translator := core.NewValidator()
	org.InitValidators(validate, translator)
	roster.InitValidators(validate, translator)

	conf := &core.Config{Google: core.GoogleConfig{Timeout: timeout}}
	orgSvc := org.NewService(inmemdb.NewOrgRepository(db), validate)
	rosterSvc := roster.NewService(inmemdb.NewRosterRepository(db), orgSvc, validate, conf)
	svc := integration.NewService(inmemdb.NewIntegrationRepository(db), client, rosterSvc, orgSvc, validate, conf)
	return svc, rosterSvc
}

func TestService_NotConnected(t *testing.T) {
	svc, _ := newService(t, &clientMock{}, time.Second)
	ctx := context.Background()

	_, err := svc.GetConnection(ctx, "org1")
	assert.Equal(t, integration.ErrNotConnected, err)

	_, err = svc.CreateRegistrationAssets(ctx, "org1", "c1")
	assert.Equal(t, integration.ErrNotConnected, err)

	_, err = svc.ImportFromSheet(ctx, "org1", "c1")
	assert.Equal(t, integration.ErrNoSheetLinked, err)

	_, err = svc.CreateRegistrationAssets(ctx, "org2", "c1")
	assert.Equal(t, roster.ErrCourseNotFound, err)

	assert.NoError(t, svc.Disconnect(ctx, "org1"))
}

func TestService_Connect(t *testing.T) {
	client := &clientMock{}
	svc, _ := newService(t, client, time.Second)
	ctx := context.Background()

	_, err := svc.Connect(ctx, "org2", "code")
	assert.Equal(t, org.ErrFeatureNotAvailable, err)

	conn, err := svc.Connect(ctx, "org1", "code")
	require.NoError(t, err)
	assert.Equal(t, "org1", conn.OrgID)
	assert.Equal(t, "center@gmail.com", conn.Email)

	again, err := svc.Connect(ctx, "org1", "another-code")
	require.NoError(t, err)
	assert.Equal(t, conn.ConnectedAt, again.ConnectedAt)
	assert.EqualValues(t, 1, atomic.LoadInt32(&client.authCalls))

	require.NoError(t, svc.Disconnect(ctx, "org1"))
	_, err = svc.GetConnection(ctx, "org1")
	assert.Equal(t, integration.ErrNotConnected, err)
}

func TestService_RegistrationFlow(t *testing.T) {
	svc, rosterSvc := newService(t, &clientMock{}, time.Second)
	ctx := context.Background()

	_, err := svc.Connect(ctx, "org1", "code")
	require.NoError(t, err)

	a, err := svc.CreateRegistrationAssets(ctx, "org1", "c2")
	require.NoError(t, err)
	assert.Equal(t, "sheet-c2", a.SheetID)

	got, err := svc.GetAsset(ctx, "org1", "c2")
	require.NoError(t, err)
	assert.Equal(t, a, got)

	n, err := svc.ImportFromSheet(ctx, "org1", "c2")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	students, err := rosterSvc.QueryStudents(ctx, roster.StudentFilter{CourseID: "c2"})
	require.NoError(t, err)
	assert.Len(t, students, 3)
	for _, s := range students {
		assert.Equal(t, roster.StatusNew, s.Status)
	}
}

func strPtr(s string) *string { return &s }

func TestService_SetAssetURLs(t *testing.T) {
	svc, _ := newService(t, &clientMock{}, time.Second)
	ctx := context.Background()

	_, err := svc.SetAssetURLs(ctx, "org1", "c1", integration.AssetURLs{FormURL: strPtr(" "), SheetURL: strPtr("x")})
	assert.True(t, core.IsValidation(err))

	_, err = svc.SetAssetURLs(ctx, "org1", "c1", integration.AssetURLs{})
	assert.True(t, core.IsValidation(err))

	a, err := svc.SetAssetURLs(ctx, "org1", "c1", integration.AssetURLs{
		FormURL:  strPtr("https://forms.gle/abc"),
		SheetURL: strPtr("https://docs.google.com/spreadsheets/d/1AbC-d_E/edit#gid=0"),
	})
	require.NoError(t, err)
	assert.Equal(t, "1AbC-d_E", a.SheetID)
	assert.Empty(t, a.FormID)
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	t.Run("exam urls alone", func(t *testing.T) {
		got, err := svc.SetAssetURLs(ctx, "org1", "c1", integration.AssetURLs{
			MidtermExamURL: strPtr(" https://forms.gle/mid "),
			FinalExamURL:   strPtr("https://forms.gle/final"),
		})
		require.NoError(t, err)
		assert.Equal(t, "https://forms.gle/mid", got.MidtermExamURL)
		assert.Equal(t, "https://forms.gle/final", got.FinalExamURL)
		assert.Equal(t, a.FormURL, got.FormURL)
		assert.Equal(t, a.SheetID, got.SheetID)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, a.CreatedAt, got.CreatedAt)
	})

	t.Run("exam urls on a course without assets", func(t *testing.T) {
		got, err := svc.SetAssetURLs(ctx, "org1", "c2", integration.AssetURLs{MidtermExamURL: strPtr("https://forms.gle/mid2")})
		require.NoError(t, err)
		assert.Equal(t, "https://forms.gle/mid2", got.MidtermExamURL)
		assert.False(t, got.HasSheet())
	})

	t.Run("blank exam url", func(t *testing.T) {
		_, err := svc.SetAssetURLs(ctx, "org1", "c1", integration.AssetURLs{FinalExamURL: strPtr("  ")})
		assert.True(t, core.IsValidation(err))
	})

	t.Run("sheet without spreadsheet id", func(t *testing.T) {
		_, err := svc.SetAssetURLs(ctx, "org1", "c1", integration.AssetURLs{SheetURL: strPtr("https://example.com/sheet")})
		require.NoError(t, err)
		_, err = svc.ImportFromSheet(ctx, "org1", "c1")
		assert.Equal(t, integration.ErrNoSheetLinked, err)
	})
}

func TestService_CreateRegistrationAssetsKeepsExamURLs(t *testing.T) {
	svc, _ := newService(t, &clientMock{}, time.Second)
	ctx := context.Background()

	_, err := svc.Connect(ctx, "org1", "code")
	require.NoError(t, err)
	manual, err := svc.SetAssetURLs(ctx, "org1", "c1", integration.AssetURLs{MidtermExamURL: strPtr("https://forms.gle/mid")})
	require.NoError(t, err)

	a, err := svc.CreateRegistrationAssets(ctx, "org1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "sheet-c1", a.SheetID)
	assert.Equal(t, "https://forms.gle/mid", a.MidtermExamURL)
	assert.Equal(t, manual.ID, a.ID)
}

func TestService_GatewayFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("timeout", func(t *testing.T) {
		svc, _ := newService(t, &clientMock{delay: time.Second}, 20*time.Millisecond)
		_, err := svc.Connect(ctx, "org1", "code")
		assert.Equal(t, integration.ErrGatewayTimeout, err)
	})

	t.Run("client ignoring cancellation", func(t *testing.T) {
		svc, _ := newService(t, &clientMock{delay: 200 * time.Millisecond, stubborn: true}, 20*time.Millisecond)
		start := time.Now()
		_, err := svc.Connect(ctx, "org1", "code")
		assert.Equal(t, integration.ErrGatewayTimeout, err)
		assert.Less(t, time.Since(start), 150*time.Millisecond)
	})

	t.Run("invalid auth code", func(t *testing.T) {
		client := &clientMock{err: core.NewValidationError(nil, core.FieldError{Field: "auth_code", Error: "auth_code is required"})}
		svc, _ := newService(t, client, time.Second)
		_, err := svc.Connect(ctx, "org1", " ")
		assert.True(t, core.IsValidation(err))
		assert.False(t, core.IsGateway(err))
	})

	t.Run("error", func(t *testing.T) {
		svc, _ := newService(t, &clientMock{err: errors.New("invalid_grant")}, time.Second)
		_, err := svc.Connect(ctx, "org1", "code")
		var gwErr *core.GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.False(t, gwErr.Timeout)
		assert.Contains(t, err.Error(), "invalid_grant")

		_, err = svc.GetConnection(ctx, "org1")
		assert.Equal(t, integration.ErrNotConnected, err)
	})
}

func TestService_Jobs(t *testing.T) {
	svc, _ := newService(t, &clientMock{delay: 10 * time.Millisecond}, time.Second)
	ctx := context.Background()

	job := svc.StartConnect("org1", "code")
	assert.Equal(t, integration.JobConnect, job.Kind)
	assert.False(t, job.Status.Done())

	_, err := svc.Job("org2", job.ID)
	assert.Equal(t, integration.ErrJobNotFound, err)

	done, err := svc.WaitJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.JobSucceeded, done.Status)
	assert.NotNil(t, done.FinishedAt)

	job = svc.StartImportFromSheet("org1", "c1")
	done, err = svc.WaitJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.JobFailed, done.Status)
	assert.Equal(t, integration.ErrNoSheetLinked, done.Err)

	_, err = svc.WaitJob(ctx, "nope")
	assert.Equal(t, integration.ErrJobNotFound, err)
}
