package recitation

import (
	"github.com/trezcool/halaqat/core"
)

var errDateMismatch = core.NewValidationError(nil, core.FieldError{Field: "date", Error: "date does not match the session"})

// Session holds the in-progress edits of a sheet on the caller's side.
// Nothing is persisted until the records are committed. A Session is not safe for concurrent use.
type Session struct {
	date    core.Date
	order   []string
	records map[string]Record
	dirty   map[string]bool
}

func NewSession(sheet Sheet) *Session {
	s := &Session{
		date:    sheet.Date,
		order:   make([]string, 0, len(sheet.Entries)),
		records: make(map[string]Record, len(sheet.Entries)),
		dirty:   make(map[string]bool),
	}
	for _, e := range sheet.Entries {
		s.order = append(s.order, e.Student.ID)
		s.records[e.Student.ID] = e.Record
	}
	return s
}

func (s *Session) Date() core.Date { return s.date }

// UpdateField changes one field of a student's record in the session.
func (s *Session) UpdateField(studentID string, date core.Date, field Field, value string) error {
	if date != s.date {
		return errDateMismatch
	}
	rec, ok := s.records[studentID]
	if !ok {
		return ErrStudentNotInSession
	}
	if err := rec.set(field, value); err != nil {
		return err
	}
	s.records[studentID] = rec
	s.dirty[studentID] = true
	return nil
}

// Record returns the current state of a student's record.
func (s *Session) Record(studentID string) (Record, bool) {
	rec, ok := s.records[studentID]
	return rec, ok
}

// Records returns every record of the session in sheet order.
func (s *Session) Records() []Record {
	records := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.records[id])
	}
	return records
}

// Modified returns the records touched by UpdateField, in sheet order.
func (s *Session) Modified() []Record {
	records := make([]Record, 0, len(s.dirty))
	for _, id := range s.order {
		if s.dirty[id] {
			records = append(records, s.records[id])
		}
	}
	return records
}
