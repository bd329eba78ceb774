package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/message"
	"github.com/trezcool/halaqat/core/org"
)

type messageApi struct {
	svc *message.Service
}

func registerMessageAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := messageApi{svc: deps.MessageSvc}

	mg := g.Group("/messages", jwt, capabilityMiddleware(org.CapSendMessages))
	mg.GET("/templates", api.templates)
	mg.GET("/logs", api.logs)
	mg.POST("", api.send)
	mg.POST("/broadcast", api.broadcast)
	mg.POST("/daily-plan", api.dailyPlan)
}

// Handlers

func (api *messageApi) templates(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, message.Templates())
}

func (api *messageApi) logs(ctx echo.Context) error {
	var filter message.Filter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []message.Log{})
	}
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	filter.OrgID = orgID

	logs, err := api.svc.QueryLogs(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying message logs")
	}
	if logs == nil {
		logs = []message.Log{}
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *messageApi) send(ctx echo.Context) error {
	var data SendRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendRequest")
	}
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	l, err := api.svc.Send(ctx.Request().Context(), message.NewMessage{
		OrgID:  orgID,
		Type:   data.Type,
		Target: data.Target,
		Text:   data.Text,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *messageApi) broadcast(ctx echo.Context) error {
	var data message.Broadcast
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Broadcast")
	}
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	logs, err := api.svc.Broadcast(ctx.Request().Context(), orgID, data)
	return respondLogs(ctx, logs, err)
}

func (api *messageApi) dailyPlan(ctx echo.Context) error {
	var data DailyPlanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DailyPlanRequest")
	}
	if data.Date == "" {
		data.Date = core.Today()
	}
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	logs, err := api.svc.SendDailyPlan(ctx.Request().Context(), orgID, data.CourseID, data.Date)
	return respondLogs(ctx, logs, err)
}

// respondLogs reports fan-out sends. Delivery failures are already in the logs, so they only
// downgrade the status to 207.
func respondLogs(ctx echo.Context, logs []message.Log, err error) error {
	if err != nil && !(core.IsGateway(err) && len(logs) > 0) {
		return err
	}
	if logs == nil {
		logs = []message.Log{}
	}
	if err != nil {
		return ctx.JSON(http.StatusMultiStatus, logs)
	}
	return ctx.JSON(http.StatusCreated, logs)
}

type (
	SendRequest struct {
		Type   message.Type `json:"type"`
		Target string       `json:"target"`
		Text   string       `json:"text"`
	}

	DailyPlanRequest struct {
		CourseID string    `json:"course_id"`
		Date     core.Date `json:"date"`
	}
)
