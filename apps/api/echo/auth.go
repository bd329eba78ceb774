package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/halaqat/core"
	"github.com/trezcool/halaqat/core/org"
)

var (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
	orgParam        = "org_id"
)

// newJWTConfig returns the JWT auth middleware config.
func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Name         string   `json:"name,omitempty"`
	Email        string   `json:"email,omitempty"`
	OrgID        string   `json:"org_id"`
	Role         org.Role `json:"role"`
}

func (c Claims) Person() core.Person {
	return core.Person{ID: c.Subject, Name: c.Name, Email: c.Email, OrgID: c.OrgID, Role: string(c.Role)}
}

func (c Claims) Can(cp org.Capability) bool {
	return c.Role.Can(cp)
}

func GetUserClaims(usr org.User, conf *core.Config, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  "Dashboard",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         usr.Name,
		Email:        usr.Email,
		OrgID:        usr.OrgID,
		Role:         usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	jwtConf := newJWTConfig(conf)
	method := jwt.GetSigningMethod(jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(jwtConf.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads the authenticated user once per request.
func getContextUser(ctx echo.Context, svc *org.Service) (org.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(org.User); ok {
		return usr, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return org.User{}, err
	}
	usr, err := svc.GetUser(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == org.ErrUserNotFound {
			return org.User{}, errUnauthorized
		}
		return org.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// contextOrgID returns the organization the request acts on.
// Platform admins may target any organization with the org_id query param.
func contextOrgID(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	if claims.Role == org.RolePlatformAdmin {
		if id := ctx.QueryParam(orgParam); id != "" {
			return id, nil
		}
	}
	return claims.OrgID, nil
}

// checkOrg hides entities of other organizations behind a 404.
func checkOrg(ctx echo.Context, entityOrgID string, notFound error) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.Role == org.RolePlatformAdmin || claims.OrgID == entityOrgID {
		return nil
	}
	return notFound
}

func refreshToken(ctx echo.Context, svc *org.Service, conf *core.Config) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	token, err := GenerateToken(GetUserClaims(usr, conf, claims.OrigIssuedAt), conf)
	return token, errors.Wrap(err, "generating token")
}
