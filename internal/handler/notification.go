package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/middleware"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/server"
	"github.com/deppfellow/schoolhub/internal/service"
)

type NotificationHandler struct {
	Handler
	notifications *service.NotificationService
}

func NewNotificationHandler(s *server.Server, notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		Handler:       NewHandler(s),
		notifications: notifications,
	}
}

func (h *NotificationHandler) List(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, q *model.ListNotificationsQuery) (*model.PaginatedResponse[model.Notification], error) {
		return h.notifications.List(c.Request().Context(), middleware.GetActor(c), q)
	}, http.StatusOK, &model.ListNotificationsQuery{})(c)
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, _ *model.Empty) (*model.UnreadCount, error) {
		return h.notifications.UnreadCount(c.Request().Context(), middleware.GetActor(c))
	}, http.StatusOK, &model.Empty{})(c)
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.IDParam) (*model.Notification, error) {
		return h.notifications.MarkRead(c.Request().Context(), middleware.GetActor(c), p.ID)
	}, http.StatusOK, &model.IDParam{})(c)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, _ *model.Empty) (*model.MarkAllReadResult, error) {
		return h.notifications.MarkAllRead(c.Request().Context(), middleware.GetActor(c))
	}, http.StatusOK, &model.Empty{})(c)
}
