package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/core/report"
)

var errNoPermsToSetRole = "not enough rights to set this role"

type userApi struct {
	conf     *core.Config
	svc      *org.Service
	reports  *report.Service
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{conf: deps.Conf, svc: deps.OrgSvc, validate: deps.Validate}

	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.POST("/token-refresh", api.refreshToken, jwt)
	ag.GET("/me", api.me, jwt)
}

func registerOrgAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{conf: deps.Conf, svc: deps.OrgSvc, reports: deps.ReportSvc, validate: deps.Validate}

	g.GET("/org", api.retrieveOrg, jwt)
	g.GET("/org/stats", api.orgStats, jwt, capabilityMiddleware(org.CapViewReports))

	pg := g.Group("/orgs", jwt, capabilityMiddleware(org.CapManagePlatform))
	pg.GET("", api.queryOrgs)
	pg.POST("", api.createOrg)

	ug := g.Group("/users", jwt)
	ug.GET("", api.query, capabilityMiddleware(org.CapManageRoster))
	ug.POST("", api.create, capabilityMiddleware(org.CapManageCourses))
	ug.GET("/:id", api.retrieve, capabilityMiddleware(org.CapManageRoster))
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return err
	}
	token, err := GenerateToken(GetUserClaims(usr, api.conf), api.conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: &usr})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc, api.conf)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) retrieveOrg(ctx echo.Context) error {
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	o, err := api.svc.GetOrganization(ctx.Request().Context(), orgID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *userApi) orgStats(ctx echo.Context) error {
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	stats, err := api.reports.OrgStats(ctx.Request().Context(), orgID)
	if err != nil {
		return errors.Wrap(err, "computing org stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *userApi) queryOrgs(ctx echo.Context) error {
	orgs, err := api.svc.QueryOrganizations(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying organizations")
	}
	if orgs == nil {
		orgs = []org.Organization{}
	}
	return ctx.JSON(http.StatusOK, orgs)
}

func (api *userApi) createOrg(ctx echo.Context) error {
	var data org.NewOrganization
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOrganization")
	}
	o, err := api.svc.CreateOrganization(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, o)
}

func (api *userApi) create(ctx echo.Context) error {
	var data org.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	// only platform admins create users outside their own organization
	if claims.Role != org.RolePlatformAdmin || data.OrgID == "" {
		data.OrgID = claims.OrgID
	}
	// ctxUser cannot set a role > their own
	if data.Role.Priority() > claims.Role.Priority() {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
	}

	usr, err := api.svc.CreateUser(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	var roles []org.Role
	for _, r := range ctx.QueryParams()["role"] {
		if role := org.Role(r); role.Valid() {
			roles = append(roles, role)
		}
	}

	users, err := api.svc.QueryUsers(ctx.Request().Context(), orgID, roles...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []org.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.svc.GetUser(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if err := checkOrg(ctx, usr.OrgID, org.ErrUserNotFound); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  *org.User `json:"user,omitempty"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
