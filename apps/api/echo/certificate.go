package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core/certificate"
	"github.com/trezcool/halaqat/core/org"
)

type certificateApi struct {
	svc      *certificate.Service
	features *org.Service
}

func registerCertificateAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := certificateApi{svc: deps.CertificateSvc, features: deps.OrgSvc}

	g.POST("/certificates", api.issue, jwt, capabilityMiddleware(org.CapIssueCertificates))
}

func (api *certificateApi) issue(ctx echo.Context) error {
	var data certificate.Request
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to certificate Request")
	}
	orgID, err := contextOrgID(ctx)
	if err != nil {
		return err
	}
	if err := api.features.CheckFeature(ctx.Request().Context(), orgID, org.FeatureCertificates); err != nil {
		return err
	}

	cert, err := api.svc.Issue(ctx.Request().Context(), orgID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, cert)
}
