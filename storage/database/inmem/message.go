package inmemdb

import (
	"context"

	"github.com/trezcool/halaqat/core/message"
)

type messageRepository struct {
	db *logTable
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *DB) message.Repository {
	return &messageRepository{db: db.message}
}

func (repo *messageRepository) AppendLog(_ context.Context, l message.Log) (message.Log, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.logs = append(repo.db.logs, l)
	return l, nil
}

// QueryLogs returns the newest logs first.
func (repo *messageRepository) QueryLogs(_ context.Context, filter message.Filter) ([]message.Log, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	logs := make([]message.Log, 0)
	for i := len(repo.db.logs) - 1; i >= 0; i-- {
		l := repo.db.logs[i]
		switch {
		case filter.OrgID != "" && l.OrgID != filter.OrgID:
		case filter.Type != "" && l.Type != filter.Type:
		case filter.Status != "" && l.Status != filter.Status:
		default:
			logs = append(logs, l)
		}
	}
	return logs, nil
}
