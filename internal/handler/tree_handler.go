package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"feedkeeper/internal/model"
	"feedkeeper/internal/service"
)

type TreeHandler struct {
	tree service.TreeService
}

func NewTreeHandler(tree service.TreeService) *TreeHandler {
	return &TreeHandler{tree: tree}
}

func (h *TreeHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/tree", h.GetTree)
	g.GET("/accounts", h.ListAccounts)
	g.POST("/accounts", h.CreateAccount)
	g.GET("/items/:id", h.GetItem)
	g.POST("/items", h.AddItem)
	g.PATCH("/items/:id/move", h.MoveItem)
	g.PATCH("/items/:id/title", h.Rename)
	g.PATCH("/items/:id/auto-update", h.SetAutoUpdate)
	g.DELETE("/items/:id", h.RemoveItem)
}

type itemResponse struct {
	ID                 string          `json:"id"`
	ParentID           *string         `json:"parentId,omitempty"`
	AccountID          string          `json:"accountId"`
	Kind               string          `json:"kind"`
	Title              string          `json:"title"`
	URL                *string         `json:"url,omitempty"`
	CustomID           *string         `json:"customId,omitempty"`
	AutoUpdateType     string          `json:"autoUpdateType,omitempty"`
	AutoUpdateInterval *int            `json:"autoUpdateIntervalMin,omitempty"`
	LastFetchedAt      *string         `json:"lastFetchedAt,omitempty"`
	LastStatus         string          `json:"lastStatus,omitempty"`
	Unread             int             `json:"unread"`
	Total              int             `json:"total"`
	Children           []*itemResponse `json:"children,omitempty"`
}

type treeResponse struct {
	Accounts []*itemResponse `json:"accounts"`
}

type createAccountRequest struct {
	Title  string              `json:"title"`
	Config model.AccountConfig `json:"config"`
}

type addItemRequest struct {
	ParentID string  `json:"parentId"`
	Kind     string  `json:"kind"`
	Title    string  `json:"title"`
	URL      *string `json:"url,omitempty"`
	Encoding *string `json:"encoding,omitempty"`
}

type moveItemRequest struct {
	ParentID string `json:"parentId"`
}

type renameRequest struct {
	Title string `json:"title"`
}

type autoUpdateRequest struct {
	Mode        string `json:"mode"`
	IntervalMin *int   `json:"intervalMin,omitempty"`
}

// GetTree returns the whole forest with live counters.
func (h *TreeHandler) GetTree(c echo.Context) error {
	snapshot := h.tree.Snapshot()
	resp := treeResponse{Accounts: []*itemResponse{}}
	if snapshot != nil {
		for _, root := range snapshot.Accounts {
			resp.Accounts = append(resp.Accounts, toNodeResponse(root))
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *TreeHandler) ListAccounts(c echo.Context) error {
	accounts := h.tree.ListAccounts()
	resp := make([]itemResponse, len(accounts))
	for i, account := range accounts {
		resp[i] = toItemResponse(account, 0, 0)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *TreeHandler) CreateAccount(c echo.Context) error {
	var req createAccountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "title is required"})
	}
	account, err := h.tree.CreateAccount(c.Request().Context(), req.Title, req.Config)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := toItemResponse(account, 0, 0)
	return c.JSON(http.StatusCreated, resp)
}

func (h *TreeHandler) GetItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	item, ok := h.tree.GetItem(id)
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "resource not found"})
	}
	resp := toItemResponse(item, 0, 0)
	return c.JSON(http.StatusOK, resp)
}

func (h *TreeHandler) AddItem(c echo.Context) error {
	var req addItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	parentID, err := parseID(req.ParentID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid parentId"})
	}
	kind := model.ItemKind(req.Kind)
	if kind != model.KindFeed && kind != model.KindCategory {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "kind must be feed or category"})
	}
	if kind == model.KindFeed && (req.URL == nil || *req.URL == "") {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "url is required for feeds"})
	}

	item := model.Item{Kind: kind, Title: req.Title, URL: req.URL, Encoding: req.Encoding}
	created, err := h.tree.AddItem(c.Request().Context(), parentID, item)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := toItemResponse(created, 0, 0)
	return c.JSON(http.StatusCreated, resp)
}

func (h *TreeHandler) MoveItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req moveItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	parentID, err := parseID(req.ParentID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid parentId"})
	}
	if err := h.tree.MoveItem(c.Request().Context(), id, parentID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TreeHandler) Rename(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req renameRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if err := h.tree.Rename(c.Request().Context(), id, req.Title); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TreeHandler) SetAutoUpdate(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req autoUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	mode := model.AutoUpdateType(req.Mode)
	if err := h.tree.SetAutoUpdate(c.Request().Context(), id, mode, req.IntervalMin); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TreeHandler) RemoveItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	if err := h.tree.RemoveItem(c.Request().Context(), id); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func toNodeResponse(node *service.TreeNode) *itemResponse {
	resp := toItemResponse(node.Item, node.Unread, node.Total)
	for _, child := range node.Children {
		resp.Children = append(resp.Children, toNodeResponse(child))
	}
	return &resp
}

func toItemResponse(item model.Item, unread, total int) itemResponse {
	resp := itemResponse{
		ID:                 idToString(item.ID),
		AccountID:          idToString(item.AccountID),
		Kind:               string(item.Kind),
		Title:              item.Title,
		URL:                item.URL,
		CustomID:           item.CustomID,
		AutoUpdateInterval: item.AutoUpdateInterval,
		LastStatus:         string(item.LastStatus),
		Unread:             unread,
		Total:              total,
	}
	if item.ParentID != nil {
		parent := idToString(*item.ParentID)
		resp.ParentID = &parent
	}
	if item.IsFeed() {
		resp.AutoUpdateType = string(item.AutoUpdateType)
	}
	if item.LastFetchedAt != nil {
		fetched := item.LastFetchedAt.UTC().Format(time.RFC3339)
		resp.LastFetchedAt = &fetched
	}
	return resp
}
