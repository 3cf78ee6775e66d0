package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"feedkeeper/internal/model"
	"feedkeeper/internal/repository"
	"feedkeeper/internal/service"
)

type MessageHandler struct {
	messages service.MessageService
	bin      service.BinService
}

func NewMessageHandler(messages service.MessageService, bin service.BinService) *MessageHandler {
	return &MessageHandler{messages: messages, bin: bin}
}

func (h *MessageHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/messages", h.List)
	g.GET("/messages/:id", h.GetByID)
	g.PATCH("/messages/:id/read", h.UpdateReadStatus)
	g.PATCH("/messages/:id/important", h.UpdateImportantStatus)
	g.DELETE("/messages/:id", h.Delete)
	g.POST("/messages/:id/restore", h.Restore)
	g.POST("/feeds/:id/mark-read", h.MarkFeedRead)
	g.GET("/bin", h.ListBin)
	g.POST("/bin/empty", h.EmptyBin)
}

type messageResponse struct {
	ID          string               `json:"id"`
	FeedID      string               `json:"feedId"`
	AccountID   string               `json:"accountId"`
	Title       string               `json:"title"`
	URL         *string              `json:"url,omitempty"`
	Author      *string              `json:"author,omitempty"`
	Contents    *string              `json:"contents,omitempty"`
	Attachments []attachmentResponse `json:"attachments,omitempty"`
	CreatedOn   string               `json:"createdOn"`
	Read        bool                 `json:"read"`
	Important   bool                 `json:"important"`
	Deleted     bool                 `json:"deleted"`
}

type attachmentResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType,omitempty"`
	Length   int64  `json:"length,omitempty"`
}

type messageListResponse struct {
	Messages []messageResponse `json:"messages"`
	HasMore  bool              `json:"hasMore"`
}

type flagRequest struct {
	Value bool `json:"value"`
}

type emptyBinResponse struct {
	Removed int64 `json:"removed"`
}

func (h *MessageHandler) List(c echo.Context) error {
	filter := repository.MessageListFilter{Limit: 50}

	var err error
	if filter.FeedID, err = parseOptionalID(c, "feedId"); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid feedId"})
	}
	if filter.AccountID, err = parseOptionalID(c, "accountId"); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid accountId"})
	}
	filter.UnreadOnly = c.QueryParam("unreadOnly") == "true"
	filter.ImportantOnly = c.QueryParam("importantOnly") == "true"

	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 200 {
			filter.Limit = limit
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	msgs, err := h.messages.List(c.Request().Context(), filter)
	if err != nil {
		return writeServiceError(c, err)
	}

	resp := messageListResponse{
		Messages: make([]messageResponse, len(msgs)),
		HasMore:  len(msgs) == filter.Limit,
	}
	for i, msg := range msgs {
		resp.Messages[i] = toMessageResponse(msg)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *MessageHandler) GetByID(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	msg, err := h.messages.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toMessageResponse(msg))
}

func (h *MessageHandler) UpdateReadStatus(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req flagRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if err := h.messages.SetRead(c.Request().Context(), id, req.Value); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *MessageHandler) UpdateImportantStatus(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req flagRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if err := h.messages.SetImportant(c.Request().Context(), id, req.Value); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *MessageHandler) Delete(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	if err := h.bin.Delete(c.Request().Context(), id); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *MessageHandler) Restore(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	if err := h.bin.Restore(c.Request().Context(), id); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *MessageHandler) MarkFeedRead(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	if err := h.messages.MarkFeedRead(c.Request().Context(), id); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *MessageHandler) ListBin(c echo.Context) error {
	accountID, err := parseOptionalID(c, "accountId")
	if err != nil || accountID == nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "accountId is required"})
	}

	limit, offset := 50, 0
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	msgs, err := h.bin.List(c.Request().Context(), *accountID, limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := messageListResponse{
		Messages: make([]messageResponse, len(msgs)),
		HasMore:  len(msgs) == limit,
	}
	for i, msg := range msgs {
		resp.Messages[i] = toMessageResponse(msg)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *MessageHandler) EmptyBin(c echo.Context) error {
	accountID, err := parseOptionalID(c, "accountId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid accountId"})
	}
	removed, err := h.bin.Empty(c.Request().Context(), accountID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, emptyBinResponse{Removed: removed})
}

func toMessageResponse(msg model.Message) messageResponse {
	resp := messageResponse{
		ID:        idToString(msg.ID),
		FeedID:    idToString(msg.FeedID),
		AccountID: idToString(msg.AccountID),
		Title:     msg.Title,
		URL:       msg.URL,
		Author:    msg.Author,
		Contents:  msg.Contents,
		CreatedOn: msg.CreatedOn.UTC().Format(time.RFC3339),
		Read:      msg.Read,
		Important: msg.Important,
		Deleted:   msg.Deleted,
	}
	for _, a := range msg.Attachments {
		resp.Attachments = append(resp.Attachments, attachmentResponse{
			URL:      a.URL,
			MimeType: a.MimeType,
			Length:   a.Length,
		})
	}
	return resp
}
