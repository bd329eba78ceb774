package echoapi

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trezcool/halaqat/core/org"
	"github.com/trezcool/halaqat/services/metrics"
)

// capabilityMiddleware lets the request through if the caller's role holds all the capabilities.
func capabilityMiddleware(caps ...org.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, c := range caps {
				if !claims.Can(c) {
					return errHttpForbidden
				}
			}
			return next(ctx)
		}
	}
}

func requestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	})
}

// metricsMiddleware records every request under its route pattern.
func metricsMiddleware(m *metricsvc.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			done := m.HTTPStarted(ctx.Request().Method, ctx.Path())
			err := next(ctx)
			if err != nil {
				ctx.Error(err) // commits the response so the status is known
			}
			done(ctx.Response().Status)
			return nil
		}
	}
}
