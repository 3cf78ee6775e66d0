package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"feedkeeper/internal/handler"
)

func NewRouter(
	treeHandler *handler.TreeHandler,
	messageHandler *handler.MessageHandler,
	updateHandler *handler.UpdateHandler,
	cleanupHandler *handler.CleanupHandler,
	importHandler *handler.ImportHandler,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(RequestLoggerMiddleware())

	api := e.Group("/api")
	treeHandler.RegisterRoutes(api)
	messageHandler.RegisterRoutes(api)
	updateHandler.RegisterRoutes(api)
	cleanupHandler.RegisterRoutes(api)
	importHandler.RegisterRoutes(api)

	return e
}
