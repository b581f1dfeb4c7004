package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/middleware"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/server"
	"github.com/deppfellow/schoolhub/internal/service"
)

type CatalogHandler struct {
	Handler
	catalog *service.CatalogService
}

func NewCatalogHandler(s *server.Server, catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{
		Handler: NewHandler(s),
		catalog: catalog,
	}
}

func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.CreateCategoryPayload) (*model.Category, error) {
		return h.catalog.CreateCategory(c.Request().Context(), middleware.GetActor(c).TenantID, p)
	}, http.StatusCreated, &model.CreateCategoryPayload{})(c)
}

func (h *CatalogHandler) ListCategories(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, _ *model.Empty) ([]model.Category, error) {
		return h.catalog.ListCategories(c.Request().Context(), middleware.GetActor(c).TenantID)
	}, http.StatusOK, &model.Empty{})(c)
}

func (h *CatalogHandler) GetCategory(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.IDParam) (*model.Category, error) {
		return h.catalog.GetCategory(c.Request().Context(), middleware.GetActor(c).TenantID, p.ID)
	}, http.StatusOK, &model.IDParam{})(c)
}

func (h *CatalogHandler) UpdateCategory(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.UpdateCategoryPayload) (*model.Category, error) {
		return h.catalog.UpdateCategory(c.Request().Context(), middleware.GetActor(c).TenantID, p)
	}, http.StatusOK, &model.UpdateCategoryPayload{})(c)
}

func (h *CatalogHandler) DeleteCategory(c echo.Context) error {
	return HandleNoContent(h.Handler, func(c echo.Context, p *model.IDParam) error {
		return h.catalog.DeleteCategory(c.Request().Context(), middleware.GetActor(c).TenantID, p.ID)
	}, http.StatusNoContent, &model.IDParam{})(c)
}

func (h *CatalogHandler) CreateCourse(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.CreateCoursePayload) (*model.Course, error) {
		return h.catalog.CreateCourse(c.Request().Context(), middleware.GetActor(c), p)
	}, http.StatusCreated, &model.CreateCoursePayload{})(c)
}

func (h *CatalogHandler) ListCourses(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, q *model.ListCoursesQuery) (*model.PaginatedResponse[model.Course], error) {
		return h.catalog.ListCourses(c.Request().Context(), middleware.GetActor(c), q)
	}, http.StatusOK, &model.ListCoursesQuery{})(c)
}

func (h *CatalogHandler) GetCourse(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.IDParam) (*model.Course, error) {
		return h.catalog.GetCourse(c.Request().Context(), middleware.GetActor(c), p.ID)
	}, http.StatusOK, &model.IDParam{})(c)
}

func (h *CatalogHandler) UpdateCourse(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.UpdateCoursePayload) (*model.Course, error) {
		return h.catalog.UpdateCourse(c.Request().Context(), middleware.GetActor(c).TenantID, p)
	}, http.StatusOK, &model.UpdateCoursePayload{})(c)
}

func (h *CatalogHandler) ChangeCourseStatus(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.ChangeCourseStatusPayload) (*model.Course, error) {
		return h.catalog.ChangeCourseStatus(c.Request().Context(), middleware.GetActor(c).TenantID, p)
	}, http.StatusOK, &model.ChangeCourseStatusPayload{})(c)
}

func (h *CatalogHandler) DeleteCourse(c echo.Context) error {
	return HandleNoContent(h.Handler, func(c echo.Context, p *model.IDParam) error {
		return h.catalog.DeleteCourse(c.Request().Context(), middleware.GetActor(c).TenantID, p.ID)
	}, http.StatusNoContent, &model.IDParam{})(c)
}
