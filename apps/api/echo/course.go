package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/roster"
)

type courseApi struct {
	svc *roster.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{svc: deps.RosterSvc}
	manage := capabilityMiddleware(org.CapManageCourses)

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, manage)

	dg := cg.Group("/:id", api.courseMiddleware)
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update, manage)
	dg.GET("/halaqat", api.queryHalaqat)
	dg.GET("/teachers/count", api.teacherCount)
	dg.GET("/plans", api.queryPlans)
	dg.PUT("/plans", api.setPlan, manage)
	dg.GET("/plans/:date", api.retrievePlan)
}

// courseMiddleware loads the course of the path into the context.
func (api *courseApi) courseMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		c, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return err
		}
		if err := checkOrg(ctx, c.OrgID, roster.ErrCourseNotFound); err != nil {
			return err
		}
		ctx.Set("object", c)
		return next(ctx)
	}
}

func contextCourse(ctx echo.Context) roster.Course {
	c, _ := ctx.Get("object").(roster.Course)
	return c
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	courses, err := api.svc.QueryCourses(ctx.Request().Context(), orgID)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []roster.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data roster.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	data.OrgID = orgID

	c, err := api.svc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextCourse(ctx))
}

func (api *courseApi) update(ctx echo.Context) error {
	var data roster.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	c, err := api.svc.UpdateCourse(ctx.Request().Context(), contextCourse(ctx).ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) queryHalaqat(ctx echo.Context) error {
	halaqat, err := api.svc.QueryHalaqat(ctx.Request().Context(), roster.HalaqaFilter{CourseID: contextCourse(ctx).ID})
	if err != nil {
		return errors.Wrap(err, "querying halaqat")
	}
	if halaqat == nil {
		halaqat = []roster.Halaqa{}
	}
	return ctx.JSON(http.StatusOK, halaqat)
}

func (api *courseApi) teacherCount(ctx echo.Context) error {
	n, err := api.svc.TeacherCount(ctx.Request().Context(), contextCourse(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "counting teachers")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"count": n})
}

func (api *courseApi) queryPlans(ctx echo.Context) error {
	from, err := optionalDate(ctx, "from")
	if err != nil {
		return err
	}
	to, err := optionalDate(ctx, "to")
	if err != nil {
		return err
	}
	plans, err := api.svc.QueryDailyPlans(ctx.Request().Context(), contextCourse(ctx).ID, from, to)
	if err != nil {
		return errors.Wrap(err, "querying daily plans")
	}
	if plans == nil {
		plans = []roster.DailyPlan{}
	}
	return ctx.JSON(http.StatusOK, plans)
}

func (api *courseApi) setPlan(ctx echo.Context) error {
	var data roster.NewDailyPlan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDailyPlan")
	}
	p, err := api.svc.SetDailyPlan(ctx.Request().Context(), contextCourse(ctx).ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *courseApi) retrievePlan(ctx echo.Context) error {
	d, err := core.ParseDate(ctx.Param("date"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "must be a date formatted as YYYY-MM-DD"})
	}
	p, err := api.svc.GetDailyPlan(ctx.Request().Context(), contextCourse(ctx).ID, d)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}
