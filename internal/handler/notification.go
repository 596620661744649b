package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"keyshop/internal/service"
)

type NotificationHandler struct {
	notificationService service.NotificationService
}

func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

func (h *NotificationHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	unreadOnly := c.QueryParam("unread") == "true"

	notifications, err := h.notificationService.ListByUser(ctx, userIDFromContext(c), unreadOnly)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	}

	if err := h.notificationService.MarkRead(ctx, userIDFromContext(c), uint(id)); err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}
