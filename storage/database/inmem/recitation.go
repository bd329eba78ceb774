package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/recitation"
)

type recitationRepository struct {
	db *recordTable
}

var _ recitation.Repository = (*recitationRepository)(nil)

func NewRecitationRepository(db *DB) recitation.Repository {
	return &recitationRepository{db: db.recitation}
}

// UpsertRecord keeps the id of an existing (student, date) record.
func (repo *recitationRepository) UpsertRecord(_ context.Context, rec recitation.Record) (recitation.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	key := recordKey{rec.StudentID, string(rec.Date)}
	if orig, ok := repo.db.table[key]; ok {
		rec.ID = orig.ID
	}
	repo.db.table[key] = &rec
	return rec, nil
}

func (repo *recitationRepository) GetRecord(_ context.Context, studentID string, date core.Date) (recitation.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if rec, ok := repo.db.table[recordKey{studentID, string(date)}]; ok {
		return *rec, nil
	}
	return recitation.Record{}, recitation.ErrRecordNotFound
}

func (repo *recitationRepository) QueryRecords(_ context.Context, filter recitation.Filter) ([]recitation.Record, error) {
	var students map[string]bool
	if filter.StudentIDs != nil {
		students = make(map[string]bool, len(filter.StudentIDs))
		for _, id := range filter.StudentIDs {
			students[id] = true
		}
	}

	repo.db.RLock()
	defer repo.db.RUnlock()
	records := make([]recitation.Record, 0)
	for _, rec := range repo.db.table {
		switch {
		case students != nil && !students[rec.StudentID]:
		case filter.From != "" && rec.Date.Before(filter.From):
		case filter.To != "" && rec.Date.After(filter.To):
		default:
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date < records[j].Date
		}
		return records[i].StudentID < records[j].StudentID
	})
	return records, nil
}
