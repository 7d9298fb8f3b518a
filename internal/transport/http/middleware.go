package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/xid"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/logging"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/service"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/util"
)

const (
	contextUserKey  = "auth.claims"
	contextTokenKey = "auth.token"
)

type authenticator interface {
	Authenticate(token string) (*util.Claims, error)
}

func RequireAuth(auth authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if strings.TrimSpace(authHeader) == "" {
				return c.JSON(http.StatusUnauthorized, util.Error("missing authorization header"))
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return c.JSON(http.StatusUnauthorized, util.Error("invalid authorization header"))
			}
			token := strings.TrimSpace(parts[1])
			claims, err := auth.Authenticate(token)
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, service.ErrNotAdmin) {
					status = http.StatusForbidden
				}
				return c.JSON(status, util.Error(err.Error()))
			}
			c.Set(contextUserKey, claims)
			c.Set(contextTokenKey, token)

			ctx := service.ContextWithActor(c.Request().Context(), claims.Email)
			ctx = logging.WithFields(ctx, "user", claims.Email)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireAdmin rejects sessions without the admin claim.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := CurrentUser(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
			}
			if !claims.Admin {
				return c.JSON(http.StatusForbidden, util.Error("admin privileges required"))
			}
			return next(c)
		}
	}
}

func CurrentUser(c echo.Context) (*util.Claims, bool) {
	claims, ok := c.Get(contextUserKey).(*util.Claims)
	return claims, ok && claims != nil
}

// requestContext tags every request with an id and a logger carrying it.
func requestContext() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			Generator: func() string { return xid.New().String() },
		}),
		func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				id := c.Response().Header().Get(echo.HeaderXRequestID)
				ctx := logging.WithFields(c.Request().Context(), "request_id", id)
				c.SetRequest(c.Request().WithContext(ctx))
				return next(c)
			}
		},
	}
}
