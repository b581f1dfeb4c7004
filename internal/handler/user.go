package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/middleware"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/server"
	"github.com/deppfellow/schoolhub/internal/service"
)

type UserHandler struct {
	Handler
	users *service.UserService
}

func NewUserHandler(s *server.Server, users *service.UserService) *UserHandler {
	return &UserHandler{
		Handler: NewHandler(s),
		users:   users,
	}
}

// UpsertProfile syncs the caller's Clerk profile into the school.
func (h *UserHandler) UpsertProfile(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.UpsertProfilePayload) (*model.User, error) {
		return h.users.UpsertProfile(c.Request().Context(), middleware.GetActor(c), p)
	}, http.StatusOK, &model.UpsertProfilePayload{})(c)
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, _ *model.Empty) (*model.User, error) {
		return h.users.GetProfile(c.Request().Context(), middleware.GetActor(c))
	}, http.StatusOK, &model.Empty{})(c)
}

func (h *UserHandler) List(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, q *model.ListUsersQuery) (*model.PaginatedResponse[model.User], error) {
		return h.users.List(c.Request().Context(), middleware.GetActor(c).TenantID, q)
	}, http.StatusOK, &model.ListUsersQuery{})(c)
}

func (h *UserHandler) Bulk(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.BulkUsersPayload) (*model.BulkUsersResult, error) {
		return h.users.Bulk(c.Request().Context(), middleware.GetActor(c), p)
	}, http.StatusOK, &model.BulkUsersPayload{})(c)
}
