package pgdb

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/recitation"
)

const recordColumns = "id, student_id, date, attendance, recited, score, rating, notes, updated_at"

type recordRow struct {
	ID         string                `db:"id"`
	StudentID  string                `db:"student_id"`
	Date       core.Date             `db:"date"`
	Attendance recitation.Attendance `db:"attendance"`
	Recited    recitation.Recited    `db:"recited"`
	Score      int                   `db:"score"`
	Rating     recitation.Rating     `db:"rating"`
	Notes      null.String           `db:"notes"`
	UpdatedAt  time.Time             `db:"updated_at"`
}

func (r recordRow) record() recitation.Record {
	return recitation.Record{
		ID:         r.ID,
		StudentID:  r.StudentID,
		Date:       r.Date,
		Attendance: r.Attendance,
		Recited:    r.Recited,
		Score:      r.Score,
		Rating:     r.Rating,
		Notes:      r.Notes.String,
		UpdatedAt:  r.UpdatedAt,
	}
}

type recitationRepository struct {
	db *sqlx.DB
}

var _ recitation.Repository = (*recitationRepository)(nil)

func NewRecitationRepository(db *sqlx.DB) recitation.Repository {
	return &recitationRepository{db: db}
}

// UpsertRecord relies on the (student_id, date) unique key: concurrent writes of the same key are linearized
// by postgres and the existing id is kept.
func (repo *recitationRepository) UpsertRecord(ctx context.Context, rec recitation.Record) (recitation.Record, error) {
	var row recordRow
	err := repo.db.GetContext(ctx, &row,
		`INSERT INTO recitation_records (`+recordColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (student_id, date) DO UPDATE SET attendance = EXCLUDED.attendance, recited = EXCLUDED.recited,
		score = EXCLUDED.score, rating = EXCLUDED.rating, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at
		RETURNING `+recordColumns,
		rec.ID, rec.StudentID, rec.Date, rec.Attendance, rec.Recited, rec.Score, rec.Rating, nullString(rec.Notes), rec.UpdatedAt)
	if err != nil {
		return recitation.Record{}, errors.Wrap(err, "upserting record")
	}
	return row.record(), nil
}

func (repo *recitationRepository) GetRecord(ctx context.Context, studentID string, date core.Date) (recitation.Record, error) {
	var row recordRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+recordColumns+" FROM recitation_records WHERE student_id = $1 AND date = $2", studentID, date)
	if err != nil {
		if isNoRows(err) {
			return recitation.Record{}, recitation.ErrRecordNotFound
		}
		return recitation.Record{}, errors.Wrap(err, "selecting record")
	}
	return row.record(), nil
}

func (repo *recitationRepository) QueryRecords(ctx context.Context, filter recitation.Filter) ([]recitation.Record, error) {
	var w where
	if filter.StudentIDs != nil {
		w.add("student_id = ANY(?)", pq.Array(filter.StudentIDs))
	}
	if filter.From != "" {
		w.add("date >= ?", filter.From)
	}
	if filter.To != "" {
		w.add("date <= ?", filter.To)
	}

	var rows []recordRow
	q := "SELECT " + recordColumns + " FROM recitation_records" + w.String() + " ORDER BY date, student_id"
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting records")
	}
	records := make([]recitation.Record, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return records, nil
}
