package pgdb

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/halaqat/core/message"
)

const logColumns = "id, org_id, type, target, text, status, error, sent_at"

type logRow struct {
	ID     string         `db:"id"`
	OrgID  string         `db:"org_id"`
	Type   message.Type   `db:"type"`
	Target string         `db:"target"`
	Text   string         `db:"text"`
	Status message.Status `db:"status"`
	Error  null.String    `db:"error"`
	SentAt time.Time      `db:"sent_at"`
}

type messageRepository struct {
	db *sqlx.DB
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *sqlx.DB) message.Repository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) AppendLog(ctx context.Context, l message.Log) (message.Log, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO message_logs ("+logColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		l.ID, l.OrgID, l.Type, l.Target, l.Text, l.Status, nullString(l.Error), l.SentAt)
	if err != nil {
		return message.Log{}, errors.Wrap(err, "inserting message log")
	}
	return l, nil
}

func (repo *messageRepository) QueryLogs(ctx context.Context, filter message.Filter) ([]message.Log, error) {
	var w where
	if filter.OrgID != "" {
		w.add("org_id = ?", filter.OrgID)
	}
	if filter.Type != "" {
		w.add("type = ?", filter.Type)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	var rows []logRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+logColumns+" FROM message_logs"+w.String()+" ORDER BY sent_at DESC", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting message logs")
	}
	logs := make([]message.Log, len(rows))
	for i, r := range rows {
		logs[i] = message.Log{
			ID:     r.ID,
			OrgID:  r.OrgID,
			Type:   r.Type,
			Target: r.Target,
			Text:   r.Text,
			Status: r.Status,
			Error:  r.Error.String,
			SentAt: r.SentAt,
		}
	}
	return logs, nil
}
