package inmemdb

import (
	"context"

	"github.com/trezcool/halaqat/core/integration"
)

type integrationRepository struct {
	db *integrationTable
}

var _ integration.Repository = (*integrationRepository)(nil)

func NewIntegrationRepository(db *DB) integration.Repository {
	return &integrationRepository{db: db.integration}
}

func copyConnection(c *integration.Connection) integration.Connection {
	cc := *c
	cc.Scopes = append([]string(nil), c.Scopes...)
	return cc
}

func (repo *integrationRepository) GetConnection(_ context.Context, orgID string) (integration.Connection, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if c, ok := repo.db.connections[orgID]; ok {
		return copyConnection(c), nil
	}
	return integration.Connection{}, integration.ErrConnectionNotFound
}

func (repo *integrationRepository) SaveConnection(_ context.Context, conn integration.Connection) (integration.Connection, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.connections[conn.OrgID]; ok {
		return integration.Connection{}, integration.ErrAlreadyConnected
	}
	c := copyConnection(&conn)
	repo.db.connections[conn.OrgID] = &c
	return conn, nil
}

func (repo *integrationRepository) DeleteConnection(_ context.Context, orgID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.connections[orgID]; !ok {
		return integration.ErrConnectionNotFound
	}
	delete(repo.db.connections, orgID)
	return nil
}

func (repo *integrationRepository) GetAsset(_ context.Context, courseID string) (integration.Asset, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if a, ok := repo.db.assets[courseID]; ok {
		return *a, nil
	}
	return integration.Asset{}, integration.ErrAssetNotFound
}

func (repo *integrationRepository) UpsertAsset(_ context.Context, a integration.Asset) (integration.Asset, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if old, ok := repo.db.assets[a.CourseID]; ok {
		a.ID, a.CreatedAt = old.ID, old.CreatedAt
	}
	repo.db.assets[a.CourseID] = &a
	return a, nil
}
