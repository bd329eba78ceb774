package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/recitation"
)

type recitationApi struct {
	svc *recitation.Service
}

func registerRecitationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := recitationApi{svc: deps.RecitationSvc}

	// route level middleware: a group on /halaqat/:id would shadow the halaqa detail routes
	mw := []echo.MiddlewareFunc{jwt, capabilityMiddleware(org.CapRecordRecitation), halaqaMiddleware(deps.RosterSvc)}
	g.GET("/halaqat/:id/session", api.sheet, mw...)
	g.POST("/halaqat/:id/session", api.commit, mw...)
	g.POST("/halaqat/:id/reminder", api.reminder, mw...)
}

// Handlers

func (api *recitationApi) sheet(ctx echo.Context) error {
	date, err := queryDate(ctx, dateParam)
	if err != nil {
		return err
	}
	sheet, err := api.svc.GetSessionSheet(ctx.Request().Context(), contextHalaqa(ctx).ID, date)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sheet)
}

// commit saves a grading session. Field edits are applied on top of the sheet, full records replace the
// sheet's record of their student and All commits every record of the sheet, pre-filled ones included.
// Records of students not seated in the halaqa are reported as failures.
func (api *recitationApi) commit(ctx echo.Context) error {
	var data CommitRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CommitRequest")
	}
	if data.Date == "" {
		data.Date = core.Today()
	}

	sheet, err := api.svc.GetSessionSheet(ctx.Request().Context(), contextHalaqa(ctx).ID, data.Date)
	if err != nil {
		return err
	}
	session := recitation.NewSession(sheet)

	var failures []recitation.RecordFailure
	fail := func(studentID string, err error) {
		failures = append(failures, recitation.RecordFailure{StudentID: studentID, Date: data.Date, Err: err, Message: err.Error()})
	}

	for _, e := range data.Edits {
		if err := session.UpdateField(e.StudentID, data.Date, e.Field, e.Value); err != nil {
			fail(e.StudentID, err)
		}
	}

	var records []recitation.Record
	if data.All {
		records = session.Records()
	} else {
		records = session.Modified()
	}
	for _, rec := range data.Records {
		if _, ok := session.Record(rec.StudentID); !ok {
			fail(rec.StudentID, recitation.ErrStudentNotInSession)
			continue
		}
		rec.Date = data.Date
		records = replaceRecord(records, rec)
	}

	saved, err := api.svc.CommitSession(ctx.Request().Context(), records)
	if cErr, ok := errors.Cause(err).(*recitation.CommitError); ok {
		failures = append(failures, cErr.Failures...)
	} else if err != nil {
		return errors.Wrap(err, "committing session")
	}
	if len(failures) > 0 {
		return ctx.JSON(http.StatusMultiStatus, CommitResponse{Saved: saved, Failures: failures})
	}
	return ctx.JSON(http.StatusOK, CommitResponse{Saved: saved, Failures: []recitation.RecordFailure{}})
}

func replaceRecord(records []recitation.Record, rec recitation.Record) []recitation.Record {
	for i, r := range records {
		if r.StudentID == rec.StudentID {
			records[i] = rec
			return records
		}
	}
	return append(records, rec)
}

func (api *recitationApi) reminder(ctx echo.Context) error {
	l, err := api.svc.SendSessionReminder(ctx.Request().Context(), contextHalaqa(ctx).ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, l)
}

type (
	FieldEdit struct {
		StudentID string           `json:"student_id"`
		Field     recitation.Field `json:"field"`
		Value     string           `json:"value"`
	}

	CommitRequest struct {
		Date    core.Date           `json:"date"`
		Edits   []FieldEdit         `json:"edits"`
		Records []recitation.Record `json:"records"`
		All     bool                `json:"all"`
	}

	CommitResponse struct {
		Saved    []recitation.Record        `json:"saved"`
		Failures []recitation.RecordFailure `json:"failures"`
	}
)
