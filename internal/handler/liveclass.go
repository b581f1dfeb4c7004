package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/middleware"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/server"
	"github.com/deppfellow/schoolhub/internal/service"
)

type LiveClassHandler struct {
	Handler
	liveClasses *service.LiveClassService
}

func NewLiveClassHandler(s *server.Server, liveClasses *service.LiveClassService) *LiveClassHandler {
	return &LiveClassHandler{
		Handler:     NewHandler(s),
		liveClasses: liveClasses,
	}
}

func (h *LiveClassHandler) Schedule(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.ScheduleLiveClassPayload) (*model.LiveClass, error) {
		return h.liveClasses.Schedule(c.Request().Context(), middleware.GetActor(c).TenantID, p)
	}, http.StatusCreated, &model.ScheduleLiveClassPayload{})(c)
}

func (h *LiveClassHandler) Get(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.IDParam) (*model.LiveClass, error) {
		return h.liveClasses.Get(c.Request().Context(), middleware.GetActor(c).TenantID, p.ID)
	}, http.StatusOK, &model.IDParam{})(c)
}

func (h *LiveClassHandler) Update(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.UpdateLiveClassPayload) (*model.LiveClass, error) {
		return h.liveClasses.Update(c.Request().Context(), middleware.GetActor(c).TenantID, p)
	}, http.StatusOK, &model.UpdateLiveClassPayload{})(c)
}

func (h *LiveClassHandler) Cancel(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.IDParam) (*model.LiveClass, error) {
		return h.liveClasses.Cancel(c.Request().Context(), middleware.GetActor(c).TenantID, p.ID)
	}, http.StatusOK, &model.IDParam{})(c)
}

func (h *LiveClassHandler) ListForCourse(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, q *model.ListCourseLiveClassesQuery) ([]model.LiveClass, error) {
		return h.liveClasses.ListForCourse(c.Request().Context(), middleware.GetActor(c), q)
	}, http.StatusOK, &model.ListCourseLiveClassesQuery{})(c)
}

func (h *LiveClassHandler) Upcoming(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, _ *model.Empty) ([]model.LiveClass, error) {
		return h.liveClasses.Upcoming(c.Request().Context(), middleware.GetActor(c))
	}, http.StatusOK, &model.Empty{})(c)
}
