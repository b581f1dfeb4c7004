package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/middleware"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/server"
	"github.com/deppfellow/schoolhub/internal/service"
)

type CouponHandler struct {
	Handler
	coupons *service.CouponService
}

func NewCouponHandler(s *server.Server, coupons *service.CouponService) *CouponHandler {
	return &CouponHandler{
		Handler: NewHandler(s),
		coupons: coupons,
	}
}

func (h *CouponHandler) Create(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.CreateCouponPayload) (*model.Coupon, error) {
		return h.coupons.Create(c.Request().Context(), middleware.GetActor(c).TenantID, p)
	}, http.StatusCreated, &model.CreateCouponPayload{})(c)
}

func (h *CouponHandler) List(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, q *model.ListCouponsQuery) (*model.PaginatedResponse[model.Coupon], error) {
		return h.coupons.List(c.Request().Context(), middleware.GetActor(c).TenantID, q)
	}, http.StatusOK, &model.ListCouponsQuery{})(c)
}

func (h *CouponHandler) Get(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.IDParam) (*model.Coupon, error) {
		return h.coupons.Get(c.Request().Context(), middleware.GetActor(c).TenantID, p.ID)
	}, http.StatusOK, &model.IDParam{})(c)
}

func (h *CouponHandler) Update(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.UpdateCouponPayload) (*model.Coupon, error) {
		return h.coupons.Update(c.Request().Context(), middleware.GetActor(c).TenantID, p)
	}, http.StatusOK, &model.UpdateCouponPayload{})(c)
}

func (h *CouponHandler) Delete(c echo.Context) error {
	return HandleNoContent(h.Handler, func(c echo.Context, p *model.IDParam) error {
		return h.coupons.Delete(c.Request().Context(), middleware.GetActor(c).TenantID, p.ID)
	}, http.StatusNoContent, &model.IDParam{})(c)
}

// Validate quotes a course with a coupon applied. Nothing is redeemed.
func (h *CouponHandler) Validate(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.ValidateCouponPayload) (*model.CouponQuote, error) {
		return h.coupons.Preview(c.Request().Context(), middleware.GetActor(c), p)
	}, http.StatusOK, &model.ValidateCouponPayload{})(c)
}
