package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/logging"
)

// RouterConfig carries the transport settings taken from config.
type RouterConfig struct {
	AllowOrigins []string
	// MaxUploadBytes bounds request bodies; multipart overhead is added on top.
	MaxUploadBytes int64
	// LogMirror is reported by /health when set.
	LogMirror interface{ Stats() logging.MirrorStats }
}

func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	allowOrigins := cfg.AllowOrigins

	allowCredentials := true
	for _, origin := range allowOrigins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}

	e.Use(requestContext()...)
	registerLogging(e)

	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(bodyLimit(cfg.MaxUploadBytes)))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Path(), "/download")
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderAuthorization,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderOrigin,
			echo.HeaderXRequestedWith,
		},
		ExposeHeaders:    []string{echo.HeaderContentDisposition, echo.HeaderXRequestID},
		AllowCredentials: allowCredentials,
	}))

	e.GET("/health", func(c echo.Context) error {
		body := echo.Map{"ok": true}
		if cfg.LogMirror != nil {
			body["log_mirror"] = cfg.LogMirror.Stats()
		}
		return c.JSON(http.StatusOK, body)
	})
	return e
}

func bodyLimit(maxUpload int64) string {
	if maxUpload <= 0 {
		maxUpload = 64 << 20
	}
	return fmt.Sprintf("%dK", maxUpload/1024+1024)
}
