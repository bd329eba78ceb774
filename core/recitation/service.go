package recitation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/message"
	"github.com/trezcool/halaqat/core/roster"
)

var (
	// errors
	ErrRecordNotFound       = &core.NotFoundError{Entity: "recitation record"}
	ErrStudentNotInSession  = &core.NotFoundError{Entity: "student in session"}
	ErrNoChannelConfigured  = &core.PreconditionError{Msg: "no messaging channel configured for this halaqa"}
	errCommitPartialFailure = "some records could not be saved"
)

type (
	Repository interface {
		// UpsertRecord inserts or overwrites the record keyed by (StudentID, Date). Same-key writes are linearized.
		UpsertRecord(ctx context.Context, rec Record) (Record, error)
		GetRecord(ctx context.Context, studentID string, date core.Date) (Record, error)
		QueryRecords(ctx context.Context, filter Filter) ([]Record, error)
	}

	// Roster is the read side of the roster needed to build sheets.
	Roster interface {
		GetHalaqa(ctx context.Context, id string) (roster.Halaqa, error)
		GetStudent(ctx context.Context, id string) (roster.Student, error)
		QueryStudents(ctx context.Context, filter roster.StudentFilter) ([]roster.Student, error)
		GetDailyPlan(ctx context.Context, courseID string, date core.Date) (roster.DailyPlan, error)
	}

	// Notifier dispatches messages to external channels.
	Notifier interface {
		Send(ctx context.Context, nm message.NewMessage) (message.Log, error)
	}

	Service struct {
		repo     Repository
		roster   Roster
		notifier Notifier
	}
)

func NewService(repo Repository, rstr Roster, notifier Notifier) *Service {
	return &Service{repo: repo, roster: rstr, notifier: notifier}
}

// GetSessionSheet lists the students currently seated in the halaqa with their stored record for the date,
// or the default record when none was saved yet.
func (svc *Service) GetSessionSheet(ctx context.Context, halaqaID string, date core.Date) (Sheet, error) {
	if !date.Valid() {
		return Sheet{}, core.NewValidationError(nil, core.FieldError{Field: "date", Error: "must be a date formatted as YYYY-MM-DD"})
	}
	h, err := svc.roster.GetHalaqa(ctx, halaqaID)
	if err != nil {
		return Sheet{}, err
	}
	students, err := svc.roster.QueryStudents(ctx, roster.StudentFilter{
		HalaqaID: h.ID,
		Ordering: []core.DBOrdering{{Field: "name", Ascending: true}},
	})
	if err != nil {
		return Sheet{}, errors.Wrap(err, "querying halaqa students")
	}

	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	stored := make(map[string]Record, len(students))
	if len(ids) > 0 {
		records, err := svc.repo.QueryRecords(ctx, Filter{StudentIDs: ids, From: date, To: date})
		if err != nil {
			return Sheet{}, errors.Wrap(err, "querying records")
		}
		for _, rec := range records {
			stored[rec.StudentID] = rec
		}
	}

	sheet := Sheet{
		HalaqaID: h.ID,
		Date:     date,
		Entries:  make([]Entry, 0, len(students)),
	}
	if plan, err := svc.roster.GetDailyPlan(ctx, h.CourseID, date); err == nil {
		sheet.Plan = &plan
	} else if !core.IsNotFound(err) {
		return Sheet{}, errors.Wrap(err, "getting daily plan")
	}
	for _, s := range students {
		rec, saved := stored[s.ID]
		if !saved {
			rec = DefaultRecord(s.ID, date)
		}
		sheet.Entries = append(sheet.Entries, Entry{Student: s, Record: rec, Saved: saved})
	}
	return sheet, nil
}

// RecordFailure is the reason one record of a commit was rejected.
type RecordFailure struct {
	StudentID string    `json:"student_id"`
	Date      core.Date `json:"date"`
	Err       error     `json:"-"`
	Message   string    `json:"error"`
}

// CommitError lists the records of a commit that were not saved. The other records were.
type CommitError struct {
	Failures []RecordFailure
}

func (err CommitError) Error() string {
	parts := make([]string, 0, len(err.Failures))
	for _, f := range err.Failures {
		parts = append(parts, fmt.Sprintf("%s@%s: %s", f.StudentID, f.Date, f.Message))
	}
	return errCommitPartialFailure + ": " + strings.Join(parts, "; ")
}

// CommitSession upserts each record independently. A rejected record never prevents the others from being saved;
// rejections are reported through a *CommitError alongside the saved records.
func (svc *Service) CommitSession(ctx context.Context, records []Record) ([]Record, error) {
	saved := make([]Record, 0, len(records))
	var failures []RecordFailure

	fail := func(rec Record, err error) {
		failures = append(failures, RecordFailure{StudentID: rec.StudentID, Date: rec.Date, Err: err, Message: err.Error()})
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			fail(rec, err)
			continue
		}
		if err := rec.validate(); err != nil {
			fail(rec, err)
			continue
		}
		if _, err := svc.roster.GetStudent(ctx, rec.StudentID); err != nil {
			fail(rec, err)
			continue
		}
		if rec.ID == "" {
			rec.ID = core.NewID()
		}
		rec.Notes = core.CleanString(rec.Notes)
		rec.UpdatedAt = time.Now().UTC()

		stored, err := svc.repo.UpsertRecord(ctx, rec)
		if err != nil {
			fail(rec, errors.Wrap(err, "upserting record"))
			continue
		}
		saved = append(saved, stored)
	}

	if len(failures) > 0 {
		return saved, &CommitError{Failures: failures}
	}
	return saved, nil
}

func (svc *Service) GetRecord(ctx context.Context, studentID string, date core.Date) (Record, error) {
	return svc.repo.GetRecord(ctx, studentID, date)
}

// StudentHistory returns the student's records between from and to (both optional), whatever halaqa they sat in.
func (svc *Service) StudentHistory(ctx context.Context, studentID string, from, to core.Date) ([]Record, error) {
	if _, err := svc.roster.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryRecords(ctx, Filter{StudentIDs: []string{studentID}, From: from, To: to})
}

// SendSessionReminder sends a REMINDER to the halaqa channel, with today's plan when there is one.
func (svc *Service) SendSessionReminder(ctx context.Context, halaqaID string) (message.Log, error) {
	h, err := svc.roster.GetHalaqa(ctx, halaqaID)
	if err != nil {
		return message.Log{}, err
	}
	if h.ChannelID == "" {
		return message.Log{}, ErrNoChannelConfigured
	}

	text := fmt.Sprintf("تذكير: موعد التسميع اليوم في %s", h.Name)
	today := core.Today()
	if plan, err := svc.roster.GetDailyPlan(ctx, h.CourseID, today); err == nil {
		text += "\nالمقرر: " + plan.Text
	} else if !core.IsNotFound(err) {
		return message.Log{}, errors.Wrap(err, "getting daily plan")
	}

	return svc.notifier.Send(ctx, message.NewMessage{
		OrgID:  h.OrgID,
		Type:   message.TypeReminder,
		Target: h.ChannelID,
		Text:   text,
	})
}
