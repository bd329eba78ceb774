package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/roster"
)

type halaqaApi struct {
	svc *roster.Service
}

func registerHalaqaAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := halaqaApi{svc: deps.RosterSvc}
	manage := capabilityMiddleware(org.CapManageCourses)

	hg := g.Group("/halaqat", jwt)
	hg.GET("", api.query)
	hg.POST("", api.create, manage)

	dg := hg.Group("/:id", halaqaMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update, manage)
	dg.GET("/students", api.queryStudents)
}

// halaqaMiddleware loads the halaqa of the path into the context.
// Teachers only reach the circles they teach.
func halaqaMiddleware(svc *roster.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			h, err := svc.GetHalaqa(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return err
			}
			if err := checkOrg(ctx, h.OrgID, roster.ErrHalaqaNotFound); err != nil {
				return err
			}
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.Role == org.RoleTeacher && h.TeacherID != claims.Subject {
				return errHttpForbidden
			}
			ctx.Set("halaqa", h)
			return next(ctx)
		}
	}
}

func contextHalaqa(ctx echo.Context) roster.Halaqa {
	h, _ := ctx.Get("halaqa").(roster.Halaqa)
	return h
}

// Handlers

func (api *halaqaApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	filter := roster.HalaqaFilter{
		OrgID:     orgID,
		CourseID:  ctx.QueryParam("course_id"),
		TeacherID: ctx.QueryParam("teacher_id"),
	}
	if claims.Role == org.RoleTeacher {
		filter.TeacherID = claims.Subject
	}

	halaqat, err := api.svc.QueryHalaqat(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying halaqat")
	}
	if halaqat == nil {
		halaqat = []roster.Halaqa{}
	}
	return ctx.JSON(http.StatusOK, halaqat)
}

func (api *halaqaApi) create(ctx echo.Context) error {
	var data roster.NewHalaqa
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewHalaqa")
	}
	c, err := api.svc.GetCourse(ctx.Request().Context(), data.CourseID)
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "getting course")
	}
	if err == nil {
		if err := checkOrg(ctx, c.OrgID, roster.ErrCourseNotFound); err != nil {
			return err
		}
	}

	h, err := api.svc.CreateHalaqa(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, h)
}

func (api *halaqaApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextHalaqa(ctx))
}

func (api *halaqaApi) update(ctx echo.Context) error {
	var data roster.UpdateHalaqa
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateHalaqa")
	}
	h, err := api.svc.UpdateHalaqa(ctx.Request().Context(), contextHalaqa(ctx).ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, h)
}

func (api *halaqaApi) queryStudents(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.QueryStudents(ctx.Request().Context(), roster.StudentFilter{
		HalaqaID: contextHalaqa(ctx).ID,
		Ordering: ordering.Orderings,
	})
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []roster.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}
