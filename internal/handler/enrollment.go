package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/middleware"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/server"
	"github.com/deppfellow/schoolhub/internal/service"
)

type EnrollmentHandler struct {
	Handler
	enrollments *service.EnrollmentService
}

func NewEnrollmentHandler(s *server.Server, enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{
		Handler:     NewHandler(s),
		enrollments: enrollments,
	}
}

// Enroll is the checkout. A paid course answers with the payment reference
// the client hands to the gateway.
func (h *EnrollmentHandler) Enroll(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.EnrollPayload) (*model.EnrollResult, error) {
		return h.enrollments.Enroll(c.Request().Context(), middleware.GetActor(c), p)
	}, http.StatusCreated, &model.EnrollPayload{})(c)
}

func (h *EnrollmentHandler) Get(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.IDParam) (*model.Enrollment, error) {
		return h.enrollments.Get(c.Request().Context(), middleware.GetActor(c), p.ID)
	}, http.StatusOK, &model.IDParam{})(c)
}

func (h *EnrollmentHandler) ListMine(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, q *model.ListEnrollmentsQuery) (*model.PaginatedResponse[model.Enrollment], error) {
		return h.enrollments.ListMine(c.Request().Context(), middleware.GetActor(c), q)
	}, http.StatusOK, &model.ListEnrollmentsQuery{})(c)
}

func (h *EnrollmentHandler) ListForCourse(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, q *model.ListCourseEnrollmentsQuery) (*model.PaginatedResponse[model.Enrollment], error) {
		return h.enrollments.ListForCourse(c.Request().Context(), middleware.GetActor(c).TenantID, q)
	}, http.StatusOK, &model.ListCourseEnrollmentsQuery{})(c)
}

func (h *EnrollmentHandler) UpdateProgress(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.UpdateProgressPayload) (*model.Enrollment, error) {
		return h.enrollments.UpdateProgress(c.Request().Context(), middleware.GetActor(c), p)
	}, http.StatusOK, &model.UpdateProgressPayload{})(c)
}

func (h *EnrollmentHandler) Cancel(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.IDParam) (*model.Enrollment, error) {
		return h.enrollments.Cancel(c.Request().Context(), middleware.GetActor(c), p.ID)
	}, http.StatusOK, &model.IDParam{})(c)
}
