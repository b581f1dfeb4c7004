package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/middleware"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/server"
	"github.com/deppfellow/schoolhub/internal/service"
)

type SupportHandler struct {
	Handler
	support *service.SupportService
}

func NewSupportHandler(s *server.Server, support *service.SupportService) *SupportHandler {
	return &SupportHandler{
		Handler: NewHandler(s),
		support: support,
	}
}

func (h *SupportHandler) Create(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.CreateTicketPayload) (*model.TicketWithSLA, error) {
		return h.support.Create(c.Request().Context(), middleware.GetActor(c), p)
	}, http.StatusCreated, &model.CreateTicketPayload{})(c)
}

func (h *SupportHandler) List(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, q *model.ListTicketsQuery) (*model.PaginatedResponse[model.TicketWithSLA], error) {
		return h.support.List(c.Request().Context(), middleware.GetActor(c), q)
	}, http.StatusOK, &model.ListTicketsQuery{})(c)
}

func (h *SupportHandler) Get(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.IDParam) (*model.TicketDetail, error) {
		return h.support.Get(c.Request().Context(), middleware.GetActor(c), p.ID)
	}, http.StatusOK, &model.IDParam{})(c)
}

func (h *SupportHandler) Reply(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.ReplyTicketPayload) (*model.TicketReply, error) {
		return h.support.Reply(c.Request().Context(), middleware.GetActor(c), p)
	}, http.StatusCreated, &model.ReplyTicketPayload{})(c)
}

func (h *SupportHandler) UpdateStatus(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.UpdateTicketStatusPayload) (*model.TicketWithSLA, error) {
		return h.support.UpdateStatus(c.Request().Context(), middleware.GetActor(c), p)
	}, http.StatusOK, &model.UpdateTicketStatusPayload{})(c)
}

func (h *SupportHandler) Assign(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.AssignTicketPayload) (*model.TicketWithSLA, error) {
		return h.support.Assign(c.Request().Context(), middleware.GetActor(c), p)
	}, http.StatusOK, &model.AssignTicketPayload{})(c)
}
