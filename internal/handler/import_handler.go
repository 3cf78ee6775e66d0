package handler

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"feedkeeper/internal/service"
)

const maxImportSize = 5 << 20

type ImportHandler struct {
	importer service.ImportService
	tasks    service.ImportTaskService
}

func NewImportHandler(importer service.ImportService, tasks service.ImportTaskService) *ImportHandler {
	return &ImportHandler{importer: importer, tasks: tasks}
}

func (h *ImportHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/accounts/:id/import", h.BulkAdd)
	g.POST("/accounts/:id/import/opml", h.ImportOPML)
	g.GET("/accounts/:id/export/opml", h.ExportOPML)
	g.GET("/import/status", h.Status)
	g.POST("/import/cancel", h.Cancel)
}

type bulkAddRequest struct {
	Feeds []service.FeedSpec `json:"feeds"`
}

type importStartedResponse struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

type importCancelledResponse struct {
	Cancelled bool `json:"cancelled"`
}

// BulkAdd starts a background bulk add and returns the task id. Progress
// is polled via /import/status.
func (h *ImportHandler) BulkAdd(c echo.Context) error {
	accountID, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req bulkAddRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if len(req.Feeds) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "feeds is required"})
	}

	taskID, ctx := h.tasks.Start(len(req.Feeds))
	go func() {
		result, err := h.importer.BulkAdd(ctx, accountID, req.Feeds, func(p service.ImportProgress) {
			h.tasks.Update(p.Current, p.Feed)
		})
		if err != nil {
			h.tasks.Fail(err)
			return
		}
		h.tasks.Complete(result)
	}()

	return c.JSON(http.StatusAccepted, importStartedResponse{TaskID: taskID, Status: "running"})
}

// ImportOPML runs synchronously; OPML files are small and callers want
// the per-entry outcome in the response.
func (h *ImportHandler) ImportOPML(c echo.Context) error {
	accountID, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}

	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response().Writer, req.Body, maxImportSize)

	var reader io.Reader
	if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/") {
		file, err := c.FormFile("file")
		if err != nil {
			if err == http.ErrMissingFile {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: "missing file"})
			}
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		}
		if file.Size > maxImportSize {
			return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large"})
		}
		src, err := file.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		}
		defer src.Close()
		reader = io.LimitReader(src, maxImportSize)
	} else {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxImportSize))
		if err != nil {
			return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large"})
		}
		reader = bytes.NewReader(body)
	}

	result, err := h.importer.ImportOPML(req.Context(), accountID, reader, nil)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *ImportHandler) ExportOPML(c echo.Context) error {
	accountID, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	payload, err := h.importer.ExportOPML(c.Request().Context(), accountID)
	if err != nil {
		return writeServiceError(c, err)
	}
	c.Response().Header().Set("Content-Disposition", `attachment; filename="feedkeeper.opml"`)
	return c.Blob(http.StatusOK, "application/xml", payload)
}

func (h *ImportHandler) Status(c echo.Context) error {
	task := h.tasks.Get()
	if task == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "idle"})
	}
	return c.JSON(http.StatusOK, task)
}

func (h *ImportHandler) Cancel(c echo.Context) error {
	return c.JSON(http.StatusOK, importCancelledResponse{Cancelled: h.tasks.Cancel()})
}
