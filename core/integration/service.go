package integration

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/roster"
)

var (
	// errors
	ErrConnectionNotFound = &core.NotFoundError{Entity: "google connection"}
	ErrAssetNotFound      = &core.NotFoundError{Entity: "google asset"}
	ErrAlreadyConnected   = errors.New("organization already has a google connection")
	ErrNotConnected       = &core.PreconditionError{Msg: "google account not connected"}
	ErrNoSheetLinked      = &core.PreconditionError{Msg: "no registration sheet linked to this course"}
	ErrGatewayTimeout     = &core.GatewayError{Msg: "google gateway timed out", Timeout: true}
)

type (
	Repository interface {
		GetConnection(ctx context.Context, orgID string) (Connection, error)
		// SaveConnection fails with ErrAlreadyConnected if the organization is connected.
		SaveConnection(ctx context.Context, conn Connection) (Connection, error)
		DeleteConnection(ctx context.Context, orgID string) error

		GetAsset(ctx context.Context, courseID string) (Asset, error)
		// UpsertAsset saves the asset of the course. An existing asset keeps its id and creation time.
		UpsertAsset(ctx context.Context, a Asset) (Asset, error)
	}

	// GoogleClient is the Google Workspace collaborator. Implementations must honour ctx cancellation.
	GoogleClient interface {
		// Authorize exchanges an OAuth authorization code for a connection (OrgID left empty).
		Authorize(ctx context.Context, authCode string) (Connection, error)
		CreateRegistrationAssets(ctx context.Context, creds Credentials, course roster.Course) (RegistrationAssets, error)
		ReadRegistrations(ctx context.Context, creds Credentials, sheetID string) ([]roster.ImportRow, error)
	}

	// Roster is the part of the roster touched by the gateway flows.
	Roster interface {
		GetCourse(ctx context.Context, id string) (roster.Course, error)
		ImportStudents(ctx context.Context, orgID, courseID string, rows []roster.ImportRow) (int, error)
	}

	// FeatureChecker tells whether an organization's plan unlocks a feature.
	FeatureChecker interface {
		CheckFeature(ctx context.Context, orgID string, f org.Feature) error
	}

	Service struct {
		repo     Repository
		client   GoogleClient
		roster   Roster
		features FeatureChecker
		validate *validator.Validate
		timeout  time.Duration
		jobs     *jobTracker
	}
)

func NewService(
	repo Repository,
	client GoogleClient,
	rstr Roster,
	features FeatureChecker,
	validate *validator.Validate,
	conf *core.Config,
) *Service {
	return &Service{
		repo:     repo,
		client:   client,
		roster:   rstr,
		features: features,
		validate: validate,
		timeout:  conf.Google.Timeout,
		jobs:     newJobTracker(conf.Google.JobRetention),
	}
}

// call runs a gateway call bounded by the service timeout.
// The call keeps running in its goroutine if it ignores ctx, but the caller is released on time.
func (svc *Service) call(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, svc.timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- fn(ctx) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrGatewayTimeout
	case errors.Is(err, context.Canceled):
		return errors.Wrap(err, name)
	}
	if core.IsGateway(err) || core.IsValidation(err) || core.IsPrecondition(err) {
		return err
	}
	return core.NewGatewayError("google "+name, err)
}

func (svc *Service) orgCourse(ctx context.Context, orgID, courseID string) (roster.Course, error) {
	c, err := svc.roster.GetCourse(ctx, courseID)
	if err != nil {
		return roster.Course{}, err
	}
	if c.OrgID != orgID {
		return roster.Course{}, roster.ErrCourseNotFound
	}
	return c, nil
}

func (svc *Service) connection(ctx context.Context, orgID string) (Connection, error) {
	conn, err := svc.repo.GetConnection(ctx, orgID)
	if err != nil {
		if errors.Cause(err) == ErrConnectionNotFound {
			return Connection{}, ErrNotConnected
		}
		return Connection{}, errors.Wrap(err, "getting connection")
	}
	return conn, nil
}

// GetConnection returns the organization's connection or ErrNotConnected.
func (svc *Service) GetConnection(ctx context.Context, orgID string) (Connection, error) {
	return svc.connection(ctx, orgID)
}

// Connect links the organization to a Google account. An existing connection is returned unchanged.
func (svc *Service) Connect(ctx context.Context, orgID, authCode string) (Connection, error) {
	if err := svc.features.CheckFeature(ctx, orgID, org.FeatureGoogleIntegration); err != nil {
		return Connection{}, err
	}
	if conn, err := svc.repo.GetConnection(ctx, orgID); err == nil {
		return conn, nil
	} else if errors.Cause(err) != ErrConnectionNotFound {
		return Connection{}, errors.Wrap(err, "getting connection")
	}

	var conn Connection
	err := svc.call(ctx, "authorize", func(ctx context.Context) error {
		var err error
		conn, err = svc.client.Authorize(ctx, authCode)
		return err
	})
	if err != nil {
		return Connection{}, err
	}

	conn.ID = core.NewID()
	conn.OrgID = orgID
	conn.ConnectedAt = time.Now().UTC()
	saved, err := svc.repo.SaveConnection(ctx, conn)
	if err != nil {
		if errors.Cause(err) == ErrAlreadyConnected { // lost a race with a concurrent Connect
			return svc.repo.GetConnection(ctx, orgID)
		}
		return Connection{}, errors.Wrap(err, "saving connection")
	}
	return saved, nil
}

// Disconnect removes the organization's connection. Course assets are kept.
func (svc *Service) Disconnect(ctx context.Context, orgID string) error {
	if err := svc.repo.DeleteConnection(ctx, orgID); err != nil && errors.Cause(err) != ErrConnectionNotFound {
		return errors.Wrap(err, "deleting connection")
	}
	return nil
}

func (svc *Service) GetAsset(ctx context.Context, orgID, courseID string) (Asset, error) {
	if _, err := svc.orgCourse(ctx, orgID, courseID); err != nil {
		return Asset{}, err
	}
	return svc.repo.GetAsset(ctx, courseID)
}

// CreateRegistrationAssets creates the course's registration form and response sheet. Nothing is saved on failure.
func (svc *Service) CreateRegistrationAssets(ctx context.Context, orgID, courseID string) (Asset, error) {
	c, err := svc.orgCourse(ctx, orgID, courseID)
	if err != nil {
		return Asset{}, err
	}
	conn, err := svc.connection(ctx, orgID)
	if err != nil {
		return Asset{}, err
	}

	var ra RegistrationAssets
	err = svc.call(ctx, "create registration assets", func(ctx context.Context) error {
		var err error
		ra, err = svc.client.CreateRegistrationAssets(ctx, conn.Credentials, c)
		return err
	})
	if err != nil {
		return Asset{}, err
	}

	a, err := svc.courseAsset(ctx, c)
	if err != nil {
		return Asset{}, err
	}
	a.FormID, a.FormURL = ra.FormID, ra.FormURL
	a.SheetID, a.SheetURL = ra.SheetID, ra.SheetURL
	a.UpdatedAt = time.Now().UTC()
	return svc.repo.UpsertAsset(ctx, a)
}

// ImportFromSheet reads the registration rows of the course's sheet and imports them as NEW students.
func (svc *Service) ImportFromSheet(ctx context.Context, orgID, courseID string) (int, error) {
	c, err := svc.orgCourse(ctx, orgID, courseID)
	if err != nil {
		return 0, err
	}
	a, err := svc.repo.GetAsset(ctx, c.ID)
	if err != nil && errors.Cause(err) != ErrAssetNotFound {
		return 0, errors.Wrap(err, "getting asset")
	}
	if err != nil || !a.HasSheet() {
		return 0, ErrNoSheetLinked
	}
	sheetID := a.SheetID
	if sheetID == "" {
		sheetID = SheetIDFromURL(a.SheetURL)
	}
	if sheetID == "" {
		return 0, ErrNoSheetLinked
	}
	conn, err := svc.connection(ctx, orgID)
	if err != nil {
		return 0, err
	}

	var rows []roster.ImportRow
	err = svc.call(ctx, "read registrations", func(ctx context.Context) error {
		var err error
		rows, err = svc.client.ReadRegistrations(ctx, conn.Credentials, sheetID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return svc.roster.ImportStudents(ctx, orgID, c.ID, rows)
}

// SetAssetURLs edits the course's asset links manually.
func (svc *Service) SetAssetURLs(ctx context.Context, orgID, courseID string, au AssetURLs) (Asset, error) {
	if err := au.Validate(svc.validate); err != nil {
		return Asset{}, err
	}
	c, err := svc.orgCourse(ctx, orgID, courseID)
	if err != nil {
		return Asset{}, err
	}

	a, err := svc.courseAsset(ctx, c)
	if err != nil {
		return Asset{}, err
	}
	if au.FormURL != nil && *au.FormURL != a.FormURL {
		a.FormID = ""
		a.FormURL = *au.FormURL
	}
	if au.SheetURL != nil && *au.SheetURL != a.SheetURL {
		a.SheetID = SheetIDFromURL(*au.SheetURL)
		a.SheetURL = *au.SheetURL
	}
	if au.MidtermExamURL != nil {
		a.MidtermExamURL = *au.MidtermExamURL
	}
	if au.FinalExamURL != nil {
		a.FinalExamURL = *au.FinalExamURL
	}
	a.UpdatedAt = time.Now().UTC()
	return svc.repo.UpsertAsset(ctx, a)
}

// courseAsset returns the stored asset of the course, or a new unsaved one.
func (svc *Service) courseAsset(ctx context.Context, c roster.Course) (Asset, error) {
	a, err := svc.repo.GetAsset(ctx, c.ID)
	if err == nil {
		return a, nil
	}
	if errors.Cause(err) != ErrAssetNotFound {
		return Asset{}, errors.Wrap(err, "getting asset")
	}
	return Asset{ID: core.NewID(), CourseID: c.ID, OrgID: c.OrgID, CreatedAt: time.Now().UTC()}, nil
}

// Background variants: the call keeps running after the request returns and is observed through Job.

func (svc *Service) StartConnect(orgID, authCode string) Job {
	return svc.jobs.start(orgID, JobConnect, func(ctx context.Context) (interface{}, error) {
		return svc.Connect(ctx, orgID, authCode)
	})
}

func (svc *Service) StartCreateRegistrationAssets(orgID, courseID string) Job {
	return svc.jobs.start(orgID, JobCreateAssets, func(ctx context.Context) (interface{}, error) {
		return svc.CreateRegistrationAssets(ctx, orgID, courseID)
	})
}

func (svc *Service) StartImportFromSheet(orgID, courseID string) Job {
	return svc.jobs.start(orgID, JobImportSheet, func(ctx context.Context) (interface{}, error) {
		n, err := svc.ImportFromSheet(ctx, orgID, courseID)
		return ImportResult{Imported: n}, err
	})
}

type ImportResult struct {
	Imported int `json:"imported"`
}

// Job returns the state of a background call of the organization.
func (svc *Service) Job(orgID, id string) (Job, error) {
	job, err := svc.jobs.get(id)
	if err != nil {
		return Job{}, err
	}
	if job.OrgID != orgID {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

// WaitJob blocks until the job is done or ctx is over.
func (svc *Service) WaitJob(ctx context.Context, id string) (Job, error) {
	return svc.jobs.wait(ctx, id)
}
