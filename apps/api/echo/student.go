package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/recitation"
	"github.com/trezcool/halaqat/core/roster"
)

var defaultSearchLimit = 20

type studentApi struct {
	svc         *roster.Service
	recitations *recitation.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{svc: deps.RosterSvc, recitations: deps.RecitationSvc}

	sg := g.Group("/students", jwt)
	sg.GET("/search", api.search, capabilityMiddleware(org.CapRecordRecitation))
	sg.GET("/:id/history", api.history, api.studentMiddleware, capabilityMiddleware(org.CapRecordRecitation))

	mg := sg.Group("", capabilityMiddleware(org.CapManageRoster))
	mg.GET("", api.query)
	mg.POST("", api.create)
	mg.POST("/import", api.importRows)

	dg := mg.Group("/:id", api.studentMiddleware)
	dg.GET("", api.retrieve)
	dg.POST("/assign", api.assign)
	dg.POST("/unassign", api.unassign)
	dg.POST("/status", api.changeStatus)
}

// studentMiddleware loads the student of the path into the context.
func (api *studentApi) studentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		s, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return err
		}
		if err := checkOrg(ctx, s.OrgID, roster.ErrStudentNotFound); err != nil {
			return err
		}
		ctx.Set("student", s)
		return next(ctx)
	}
}

func contextStudent(ctx echo.Context) roster.Student {
	s, _ := ctx.Get("student").(roster.Student)
	return s
}

// checkCourseOrg hides courses of other organizations. Unknown courses are left to the service.
func (api *studentApi) checkCourseOrg(ctx echo.Context, courseID string) error {
	c, err := api.svc.GetCourse(ctx.Request().Context(), courseID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return errors.Wrap(err, "getting course")
	}
	return checkOrg(ctx, c.OrgID, roster.ErrCourseNotFound)
}

// Handlers

func (api *studentApi) query(ctx echo.Context) error {
	var filter roster.StudentFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []roster.Student{})
	}
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	filter.OrgID = orgID
	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter.Ordering = ordering.Orderings

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []roster.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data roster.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := api.checkCourseOrg(ctx, data.CourseID); err != nil {
		return err
	}
	s, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) importRows(ctx echo.Context) error {
	var data ImportRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ImportRequest")
	}
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.ImportStudents(ctx.Request().Context(), orgID, data.CourseID, data.Rows)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"imported": n})
}

func (api *studentApi) search(ctx echo.Context) error {
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	matches, err := api.svc.SearchStudents(ctx.Request().Context(), orgID, ctx.QueryParam("q"), queryInt(ctx, "limit", defaultSearchLimit))
	if err != nil {
		return errors.Wrap(err, "searching students")
	}
	return ctx.JSON(http.StatusOK, matches)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextStudent(ctx))
}

func (api *studentApi) assign(ctx echo.Context) error {
	var data AssignRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignRequest")
	}
	if data.HalaqaID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "halaqa_id", Error: "this field is required"})
	}
	s, err := api.svc.AssignStudentToHalaqa(ctx.Request().Context(), contextStudent(ctx).ID, data.HalaqaID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) unassign(ctx echo.Context) error {
	s, err := api.svc.UnassignStudent(ctx.Request().Context(), contextStudent(ctx).ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) changeStatus(ctx echo.Context) error {
	var data StatusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusRequest")
	}
	s, err := api.svc.ChangeStudentStatus(ctx.Request().Context(), contextStudent(ctx).ID, data.Status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) history(ctx echo.Context) error {
	from, err := optionalDate(ctx, "from")
	if err != nil {
		return err
	}
	to, err := optionalDate(ctx, "to")
	if err != nil {
		return err
	}
	records, err := api.recitations.StudentHistory(ctx.Request().Context(), contextStudent(ctx).ID, from, to)
	if err != nil {
		return err
	}
	if records == nil {
		records = []recitation.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

type (
	ImportRequest struct {
		CourseID string             `json:"course_id"`
		Rows     []roster.ImportRow `json:"rows"`
	}

	AssignRequest struct {
		HalaqaID string `json:"halaqa_id"`
	}

	StatusRequest struct {
		Status roster.StudentStatus `json:"status"`
	}
)
