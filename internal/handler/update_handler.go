package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"feedkeeper/internal/service"
)

type UpdateHandler struct {
	sync service.SyncService
}

func NewUpdateHandler(sync service.SyncService) *UpdateHandler {
	return &UpdateHandler{sync: sync}
}

func (h *UpdateHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/update", h.UpdateAll)
	g.POST("/accounts/:id/update", h.UpdateAccount)
	g.POST("/accounts/:id/update-feeds", h.UpdateFeeds)
	g.GET("/accounts/:id/state", h.State)
}

type updateFeedsRequest struct {
	FeedIDs []string `json:"feedIds"`
}

type stateResponse struct {
	State string `json:"state"`
}

func (h *UpdateHandler) UpdateAll(c echo.Context) error {
	report, err := h.sync.UpdateAll(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *UpdateHandler) UpdateAccount(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	report, err := h.sync.UpdateAccount(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *UpdateHandler) UpdateFeeds(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req updateFeedsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	feedIDs := make([]int64, 0, len(req.FeedIDs))
	for _, raw := range req.FeedIDs {
		feedID, err := parseID(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid feed id"})
		}
		feedIDs = append(feedIDs, feedID)
	}
	report, err := h.sync.UpdateFeeds(c.Request().Context(), id, feedIDs)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *UpdateHandler) State(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	return c.JSON(http.StatusOK, stateResponse{State: string(h.sync.State(id))})
}
