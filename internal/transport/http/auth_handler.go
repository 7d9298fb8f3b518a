package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/service"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/util"
)

type googleLogin interface {
	LoginWithGoogle(ctx context.Context, idToken string) (string, time.Time, error)
}

type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

func RegisterAuth(e *echo.Echo, s googleLogin) {
	e.POST("/api/v1/auth/google", func(c echo.Context) error {
		var req googleLoginRequest
		if err := c.Bind(&req); err != nil || strings.TrimSpace(req.IDToken) == "" {
			return c.JSON(http.StatusBadRequest, util.Error("id_token is required"))
		}
		token, expiresAt, err := s.LoginWithGoogle(c.Request().Context(), req.IDToken)
		if errors.Is(err, service.ErrNotAdmin) {
			return c.JSON(http.StatusForbidden, util.Error(err.Error()))
		}
		if err != nil {
			return c.JSON(http.StatusUnauthorized, util.Error(err.Error()))
		}
		return c.JSON(http.StatusOK, util.Envelope{"token": token, "expires_at": expiresAt})
	})
}
