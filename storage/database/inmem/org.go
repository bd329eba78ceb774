package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/halaqat/core/org"
)

type orgRepository struct {
	db *orgTable
}

var _ org.Repository = (*orgRepository)(nil)

func NewOrgRepository(db *DB) org.Repository {
	return &orgRepository{db: db.org}
}

func (repo *orgRepository) CreateOrganization(_ context.Context, o org.Organization) (org.Organization, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.orgs[o.ID] = &o
	return o, nil
}

func (repo *orgRepository) GetOrganization(_ context.Context, id string) (org.Organization, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if o, ok := repo.db.orgs[id]; ok {
		return *o, nil
	}
	return org.Organization{}, org.ErrOrgNotFound
}

func (repo *orgRepository) QueryOrganizations(context.Context) ([]org.Organization, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	orgs := make([]org.Organization, 0, len(repo.db.orgs))
	for _, o := range repo.db.orgs {
		orgs = append(orgs, *o)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].Name < orgs[j].Name })
	return orgs, nil
}

func (repo *orgRepository) CreateUser(_ context.Context, usr org.User) (org.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, u := range repo.db.users {
		if u.Email == usr.Email {
			return org.User{}, org.ErrEmailExists
		}
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *orgRepository) UpdateUser(_ context.Context, usr org.User) (org.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return org.User{}, org.ErrUserNotFound
	}
	for _, u := range repo.db.users {
		if u.ID != usr.ID && u.Email == usr.Email {
			return org.User{}, org.ErrEmailExists
		}
	}
	orig.Name = usr.Name
	orig.Email = usr.Email
	orig.Role = usr.Role
	if usr.PasswordHash != nil {
		orig.PasswordHash = usr.PasswordHash
	}
	orig.UpdatedAt = usr.UpdatedAt
	return *orig, nil
}

func (repo *orgRepository) GetUser(_ context.Context, filter org.GetFilter) (org.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if filter.ID != "" {
		if u, ok := repo.db.users[filter.ID]; ok && (filter.Email == "" || u.Email == filter.Email) {
			return *u, nil
		}
		return org.User{}, org.ErrUserNotFound
	}
	for _, u := range repo.db.users {
		if filter.Email != "" && u.Email == filter.Email {
			return *u, nil
		}
	}
	return org.User{}, org.ErrUserNotFound
}

func (repo *orgRepository) QueryUsers(_ context.Context, filter org.UserFilter) ([]org.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	users := make([]org.User, 0)
	for _, u := range repo.db.users {
		if filter.OrgID != "" && u.OrgID != filter.OrgID {
			continue
		}
		if len(filter.Roles) > 0 && !hasRole(filter.Roles, u.Role) {
			continue
		}
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func hasRole(roles []org.Role, r org.Role) bool {
	for _, role := range roles {
		if role == r {
			return true
		}
	}
	return false
}
