package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"feedkeeper/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalid):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	case errors.Is(err, service.ErrInvalidTransfer):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "items cannot move between accounts"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "resource not found"})
	case errors.Is(err, service.ErrItemBusy), errors.Is(err, service.ErrOperationBusy):
		return c.JSON(http.StatusConflict, errorResponse{Error: "account is busy with another operation"})
	case errors.Is(err, service.ErrUnsupportedOperation):
		return c.JSON(http.StatusMethodNotAllowed, errorResponse{Error: "operation not supported by this account"})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
