package org

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
)

var (
	// errors
	ErrOrgNotFound         = &core.NotFoundError{Entity: "organization"}
	ErrUserNotFound        = &core.NotFoundError{Entity: "user"}
	ErrEmailExists         = errors.New("a user with this email already exists")
	ErrInvalidCredentials  = core.NewValidationError(errors.New("invalid credentials"))
	ErrFeatureNotAvailable = &core.PreconditionError{Msg: "feature not available on the organization's plan"}
)

type (
	Repository interface {
		CreateOrganization(ctx context.Context, o Organization) (Organization, error)
		GetOrganization(ctx context.Context, id string) (Organization, error)
		QueryOrganizations(ctx context.Context) ([]Organization, error)

		// CreateUser fails with ErrEmailExists if the email is taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		QueryUsers(ctx context.Context, filter UserFilter) ([]User, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) CreateOrganization(ctx context.Context, no NewOrganization) (Organization, error) {
	if err := no.Validate(svc.validate); err != nil {
		return Organization{}, err
	}
	o := Organization{
		ID:        core.NewID(),
		Name:      no.Name,
		Plan:      no.Plan,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateOrganization(ctx, o)
}

func (svc *Service) GetOrganization(ctx context.Context, id string) (Organization, error) {
	return svc.repo.GetOrganization(ctx, id)
}

func (svc *Service) QueryOrganizations(ctx context.Context) ([]Organization, error) {
	return svc.repo.QueryOrganizations(ctx)
}

// CheckFeature fails with ErrFeatureNotAvailable if the organization's plan does not unlock the feature.
func (svc *Service) CheckFeature(ctx context.Context, orgID string, f Feature) error {
	o, err := svc.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if !o.Plan.Allows(f) {
		return ErrFeatureNotAvailable
	}
	return nil
}

func (svc *Service) CreateUser(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if _, err := svc.repo.GetOrganization(ctx, nu.OrgID); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		ID:        core.NewID(),
		OrgID:     nu.OrgID,
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return User{}, err
	}
	return usr, nil
}

func (svc *Service) GetUser(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) QueryUsers(ctx context.Context, orgID string, roles ...Role) ([]User, error) {
	return svc.repo.QueryUsers(ctx, UserFilter{OrgID: orgID, Roles: roles})
}

// Authenticate checks the user's credentials. Unknown emails and wrong passwords look the same.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrUserNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (svc *Service) SetPassword(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetUserByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}
