package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/report"
	"github.com/trezcool/halaqat/core/roster"
)

type reportApi struct {
	svc    *report.Service
	roster *roster.Service
	users  *org.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := reportApi{svc: deps.ReportSvc, roster: deps.RosterSvc, users: deps.OrgSvc}

	rg := g.Group("/reports", jwt)
	rg.GET("/summary", api.summary)
	rg.GET("/completion", api.completion)
	rg.GET("/average", api.average)
	rg.GET("/pass-rate", api.passRate)
	rg.GET("/progress", api.progress)
}

// bind reads scope, window and as_of from the query string.
// Callers without the reports capability only see their own teacher scope.
func (api *reportApi) bind(ctx echo.Context) (report.Scope, report.Window, core.Date, error) {
	var scope report.Scope
	if err := ctx.Bind(&scope); err != nil {
		return report.Scope{}, "", "", errors.Wrap(err, "binding to Scope")
	}
	window, err := report.ParseWindow(ctx.QueryParam("window"))
	if err != nil {
		return report.Scope{}, "", "", err
	}
	asOf, err := queryDate(ctx, "as_of")
	if err != nil {
		return report.Scope{}, "", "", err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return report.Scope{}, "", "", err
	}
	if !claims.Can(org.CapViewReports) && !(scope.Kind == report.ScopeTeacher && scope.ID == claims.Subject) {
		return report.Scope{}, "", "", errHttpForbidden
	}
	if err := api.checkScopeOrg(ctx, scope); err != nil {
		return report.Scope{}, "", "", err
	}
	return scope, window, asOf, nil
}

func (api *reportApi) checkScopeOrg(ctx echo.Context, scope report.Scope) error {
	rctx := ctx.Request().Context()
	switch scope.Kind {
	case report.ScopeStudent:
		s, err := api.roster.GetStudent(rctx, scope.ID)
		if err != nil {
			return err
		}
		return checkOrg(ctx, s.OrgID, roster.ErrStudentNotFound)
	case report.ScopeHalaqa:
		h, err := api.roster.GetHalaqa(rctx, scope.ID)
		if err != nil {
			return err
		}
		return checkOrg(ctx, h.OrgID, roster.ErrHalaqaNotFound)
	case report.ScopeCourse:
		c, err := api.roster.GetCourse(rctx, scope.ID)
		if err != nil {
			return err
		}
		return checkOrg(ctx, c.OrgID, roster.ErrCourseNotFound)
	case report.ScopeTeacher:
		u, err := api.users.GetUser(rctx, scope.ID)
		if err != nil {
			return err
		}
		return checkOrg(ctx, u.OrgID, org.ErrUserNotFound)
	}
	return nil // invalid scopes are rejected by the report service
}

// Handlers

func (api *reportApi) summary(ctx echo.Context) error {
	scope, window, asOf, err := api.bind(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.Summary(ctx.Request().Context(), scope, window, asOf)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *reportApi) completion(ctx echo.Context) error {
	scope, window, asOf, err := api.bind(ctx)
	if err != nil {
		return err
	}
	m, err := api.svc.CompletionRate(ctx.Request().Context(), scope, window, asOf)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *reportApi) average(ctx echo.Context) error {
	scope, window, asOf, err := api.bind(ctx)
	if err != nil {
		return err
	}
	m, err := api.svc.AverageScore(ctx.Request().Context(), scope, window, asOf)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *reportApi) passRate(ctx echo.Context) error {
	scope, window, asOf, err := api.bind(ctx)
	if err != nil {
		return err
	}
	m, err := api.svc.PassRate(ctx.Request().Context(), scope, window, asOf)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *reportApi) progress(ctx echo.Context) error {
	scope, window, asOf, err := api.bind(ctx)
	if err != nil {
		return err
	}
	rows, err := api.svc.StudentProgress(ctx.Request().Context(), scope, window, asOf)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rows)
}
