package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core/integration"
	"github.com/trezcool/halaqat/core/org"
)

var (
	waitParam  = "wait" // ?wait=true blocks until the job is done
	maxJobWait = 2 * time.Minute
)

type googleApi struct {
	svc *integration.Service
}

func registerGoogleAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := googleApi{svc: deps.IntegrationSvc}
	manage := capabilityMiddleware(org.CapManageIntegrations)

	gg := g.Group("/google", jwt, manage)
	gg.GET("/connection", api.connection)
	gg.POST("/connection", api.connect)
	gg.DELETE("/connection", api.disconnect)
	gg.GET("/jobs/:id", api.job)

	// route level middleware: a group on /courses/:id would shadow the course detail routes
	mw := []echo.MiddlewareFunc{jwt, manage}
	g.GET("/courses/:id/assets", api.asset, mw...)
	g.PUT("/courses/:id/assets", api.setAssetURLs, mw...)
	g.POST("/courses/:id/assets", api.createAssets, mw...)
	g.POST("/courses/:id/sync", api.sync, mw...)
}

// respondJob answers 202 with the job, or waits for it when ?wait=true.
func (api *googleApi) respondJob(ctx echo.Context, job integration.Job) error {
	if ctx.QueryParam(waitParam) != "true" {
		return ctx.JSON(http.StatusAccepted, job)
	}

	wctx, cancel := context.WithTimeout(ctx.Request().Context(), maxJobWait)
	defer cancel()
	job, err := api.svc.WaitJob(wctx, job.ID)
	if err != nil {
		return errors.Wrap(err, "waiting for job")
	}
	if job.Status == integration.JobFailed {
		return job.Err
	}
	return ctx.JSON(http.StatusOK, job)
}

// Handlers

func (api *googleApi) connection(ctx echo.Context) error {
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	conn, err := api.svc.GetConnection(ctx.Request().Context(), orgID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, conn)
}

func (api *googleApi) connect(ctx echo.Context) error {
	var data ConnectRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConnectRequest")
	}
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	return api.respondJob(ctx, api.svc.StartConnect(orgID, data.Code))
}

func (api *googleApi) disconnect(ctx echo.Context) error {
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Disconnect(ctx.Request().Context(), orgID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *googleApi) job(ctx echo.Context) error {
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	job, err := api.svc.Job(orgID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, job)
}

func (api *googleApi) asset(ctx echo.Context) error {
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.GetAsset(ctx.Request().Context(), orgID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *googleApi) setAssetURLs(ctx echo.Context) error {
	var data integration.AssetURLs
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssetURLs")
	}
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.SetAssetURLs(ctx.Request().Context(), orgID, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *googleApi) createAssets(ctx echo.Context) error {
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	// fail fast on unknown courses rather than on a failed job
	if _, err := api.svc.GetAsset(ctx.Request().Context(), orgID, ctx.Param("id")); err != nil && errors.Cause(err) != integration.ErrAssetNotFound {
		return err
	}
	return api.respondJob(ctx, api.svc.StartCreateRegistrationAssets(orgID, ctx.Param("id")))
}

func (api *googleApi) sync(ctx echo.Context) error {
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	if _, err := api.svc.GetAsset(ctx.Request().Context(), orgID, ctx.Param("id")); err != nil && errors.Cause(err) != integration.ErrAssetNotFound {
		return err
	}
	return api.respondJob(ctx, api.svc.StartImportFromSheet(orgID, ctx.Param("id")))
}

type ConnectRequest struct {
	Code string `json:"code"`
}
