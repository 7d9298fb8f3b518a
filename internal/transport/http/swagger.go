package http

import (
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	// Registers the API description with swag.
	_ "github.com/njprem/Catalog_Backup_BackEnd/docs"
)

// RegisterSwagger serves the Swagger UI and doc.json under /swagger.
func RegisterSwagger(e *echo.Echo) {
	e.GET("/swagger/*", echoSwagger.WrapHandler)
}
