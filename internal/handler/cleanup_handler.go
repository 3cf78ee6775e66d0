package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"feedkeeper/internal/service"
)

type CleanupHandler struct {
	cleanup service.CleanupService
}

func NewCleanupHandler(cleanup service.CleanupService) *CleanupHandler {
	return &CleanupHandler{cleanup: cleanup}
}

func (h *CleanupHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/cleanup", h.Run)
}

func (h *CleanupHandler) Run(c echo.Context) error {
	var opts service.CleanupOptions
	if err := c.Bind(&opts); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if opts.OlderThanDays < 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "olderThanDays must not be negative"})
	}
	report, err := h.cleanup.Run(c.Request().Context(), opts)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}
