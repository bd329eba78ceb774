package pgdb

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core/org"
)

const userColumns = "id, org_id, name, email, role, password_hash, created_at, updated_at"

type orgRepository struct {
	db *sqlx.DB
}

var _ org.Repository = (*orgRepository)(nil)

func NewOrgRepository(db *sqlx.DB) org.Repository {
	return &orgRepository{db: db}
}

func (repo *orgRepository) CreateOrganization(ctx context.Context, o org.Organization) (org.Organization, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO organizations (id, name, plan, created_at) VALUES ($1, $2, $3, $4)",
		o.ID, o.Name, o.Plan, o.CreatedAt)
	if err != nil {
		return org.Organization{}, errors.Wrap(err, "inserting organization")
	}
	return o, nil
}

func (repo *orgRepository) GetOrganization(ctx context.Context, id string) (org.Organization, error) {
	var o org.Organization
	err := repo.db.GetContext(ctx, &o, "SELECT id, name, plan, created_at FROM organizations WHERE id = $1", id)
	if err != nil {
		if isNoRows(err) {
			return org.Organization{}, org.ErrOrgNotFound
		}
		return org.Organization{}, errors.Wrap(err, "selecting organization")
	}
	return o, nil
}

func (repo *orgRepository) QueryOrganizations(ctx context.Context) ([]org.Organization, error) {
	orgs := make([]org.Organization, 0)
	if err := repo.db.SelectContext(ctx, &orgs, "SELECT id, name, plan, created_at FROM organizations ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "selecting organizations")
	}
	return orgs, nil
}

func (repo *orgRepository) CreateUser(ctx context.Context, usr org.User) (org.User, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		usr.ID, usr.OrgID, usr.Name, usr.Email, usr.Role, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return org.User{}, org.ErrEmailExists
		}
		return org.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *orgRepository) UpdateUser(ctx context.Context, usr org.User) (org.User, error) {
	var updated org.User
	err := repo.db.GetContext(ctx, &updated,
		`UPDATE users SET name = $2, email = $3, role = $4, password_hash = COALESCE($5, password_hash), updated_at = $6
		WHERE id = $1 RETURNING `+userColumns,
		usr.ID, usr.Name, usr.Email, usr.Role, usr.PasswordHash, usr.UpdatedAt)
	if err != nil {
		switch {
		case isNoRows(err):
			return org.User{}, org.ErrUserNotFound
		case isUniqueViolation(err):
			return org.User{}, org.ErrEmailExists
		}
		return org.User{}, errors.Wrap(err, "updating user")
	}
	return updated, nil
}

func (repo *orgRepository) GetUser(ctx context.Context, filter org.GetFilter) (org.User, error) {
	var w where
	if filter.ID != "" {
		w.add("id = ?", filter.ID)
	}
	if filter.Email != "" {
		w.add("email = ?", filter.Email)
	}
	if len(w.conds) == 0 {
		return org.User{}, org.ErrUserNotFound
	}

	var usr org.User
	if err := repo.db.GetContext(ctx, &usr, "SELECT "+userColumns+" FROM users"+w.String(), w.args...); err != nil {
		if isNoRows(err) {
			return org.User{}, org.ErrUserNotFound
		}
		return org.User{}, errors.Wrap(err, "selecting user")
	}
	return usr, nil
}

func (repo *orgRepository) QueryUsers(ctx context.Context, filter org.UserFilter) ([]org.User, error) {
	var w where
	if filter.OrgID != "" {
		w.add("org_id = ?", filter.OrgID)
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, r := range filter.Roles {
			roles[i] = string(r)
		}
		w.add("role = ANY(?)", pq.Array(roles))
	}

	users := make([]org.User, 0)
	if err := repo.db.SelectContext(ctx, &users, "SELECT "+userColumns+" FROM users"+w.String()+" ORDER BY name", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return users, nil
}
