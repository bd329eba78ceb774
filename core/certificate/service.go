package certificate

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/report"
	"github.com/trezcool/halaqat/core/roster"
)

var ErrCourseMismatch = core.NewValidationError(nil, core.FieldError{
	Field: "course_id",
	Error: "student is not enrolled in this course",
})

type (
	Roster interface {
		GetCourse(ctx context.Context, id string) (roster.Course, error)
		GetStudent(ctx context.Context, id string) (roster.Student, error)
	}

	Users interface {
		GetUser(ctx context.Context, id string) (org.User, error)
	}

	Progress interface {
		StudentProgress(ctx context.Context, scope report.Scope, window report.Window, asOf core.Date) ([]report.StudentProgress, error)
	}

	Service struct {
		roster   Roster
		users    Users
		progress Progress
		validate *validator.Validate
	}
)

func NewService(rstr Roster, users Users, progress Progress, validate *validator.Validate) *Service {
	return &Service{roster: rstr, users: users, progress: progress, validate: validate}
}

// Issue builds a certificate for a student or a staff member of the organization.
// Students whose course-to-date average reaches the passing score get a completion certificate,
// the others a participation one. Staff members always get an appreciation certificate.
func (svc *Service) Issue(ctx context.Context, orgID string, req Request) (Certificate, error) {
	if err := req.Validate(svc.validate); err != nil {
		return Certificate{}, err
	}

	cert := Certificate{
		ID:             core.NewID(),
		OrgID:          orgID,
		RecipientKind:  req.RecipientKind,
		RecipientID:    req.RecipientID,
		SignatureTitle: req.SignatureTitle,
		Message:        req.Message,
		IssuedAt:       time.Now().UTC(),
	}
	if cert.SignatureTitle == "" {
		cert.SignatureTitle = DefaultSignatureTitle
	}

	var err error
	switch req.RecipientKind {
	case RecipientStudent:
		err = svc.forStudent(ctx, &cert, req.CourseID)
	case RecipientStaff:
		err = svc.forStaff(ctx, &cert, req.CourseID)
	}
	if err != nil {
		return Certificate{}, err
	}

	cert.Title = cert.Kind.Title()
	if cert.Message == "" {
		cert.Message = cert.Kind.DefaultMessage()
	}
	return cert, nil
}

func (svc *Service) forStudent(ctx context.Context, cert *Certificate, courseID string) error {
	s, err := svc.roster.GetStudent(ctx, cert.RecipientID)
	if err != nil {
		return err
	}
	if s.OrgID != cert.OrgID {
		return roster.ErrStudentNotFound
	}
	if courseID != "" && courseID != s.CourseID {
		return ErrCourseMismatch
	}
	c, err := svc.roster.GetCourse(ctx, s.CourseID)
	if err != nil {
		return errors.Wrap(err, "getting student course")
	}

	rows, err := svc.progress.StudentProgress(ctx, report.StudentScope(s.ID), report.WindowCourseToDate, core.Today())
	if err != nil {
		return errors.Wrap(err, "computing student progress")
	}

	cert.Kind = KindParticipation
	if len(rows) == 1 {
		if rows[0].Passing != nil && *rows[0].Passing {
			cert.Kind = KindCompletion
		}
		cert.AverageScore = rows[0].AverageScore.Value
	}
	cert.RecipientName = s.Name
	cert.CourseID = c.ID
	cert.CourseTitle = c.Name
	return nil
}

func (svc *Service) forStaff(ctx context.Context, cert *Certificate, courseID string) error {
	usr, err := svc.users.GetUser(ctx, cert.RecipientID)
	if err != nil {
		return err
	}
	if usr.OrgID != cert.OrgID {
		return org.ErrUserNotFound
	}
	if courseID != "" {
		c, err := svc.roster.GetCourse(ctx, courseID)
		if err != nil {
			return err
		}
		if c.OrgID != cert.OrgID {
			return roster.ErrCourseNotFound
		}
		cert.CourseID = c.ID
		cert.CourseTitle = c.Name
	}
	cert.Kind = KindAppreciation
	cert.RecipientName = usr.Name
	return nil
}
