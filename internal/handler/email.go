package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/lib/email"
	"github.com/deppfellow/schoolhub/internal/middleware"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/server"
	"github.com/deppfellow/schoolhub/internal/service"
)

type EmailHandler struct {
	Handler
	emails *service.EmailService
}

func NewEmailHandler(s *server.Server, emails *service.EmailService) *EmailHandler {
	return &EmailHandler{
		Handler: NewHandler(s),
		emails:  emails,
	}
}

func (h *EmailHandler) List(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, q *model.ListEmailsQuery) (*model.PaginatedResponse[model.EmailMessage], error) {
		return h.emails.List(c.Request().Context(), middleware.GetActor(c).TenantID, q)
	}, http.StatusOK, &model.ListEmailsQuery{})(c)
}

func (h *EmailHandler) Analytics(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, q *model.EmailAnalyticsQuery) (*email.Analytics, error) {
		return h.emails.Analytics(c.Request().Context(), middleware.GetActor(c).TenantID, q)
	}, http.StatusOK, &model.EmailAnalyticsQuery{})(c)
}

func (h *EmailHandler) GetPreferences(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, _ *model.Empty) (*email.Preferences, error) {
		return h.emails.GetPreferences(c.Request().Context(), middleware.GetActor(c))
	}, http.StatusOK, &model.Empty{})(c)
}

func (h *EmailHandler) UpdatePreferences(c echo.Context) error {
	return Handle(h.Handler, func(c echo.Context, p *model.UpdatePreferencesPayload) (*email.Preferences, error) {
		return h.emails.UpdatePreferences(c.Request().Context(), middleware.GetActor(c), p)
	}, http.StatusOK, &model.UpdatePreferencesPayload{})(c)
}

// Preview renders a template with sample data so admins can check it in
// the browser.
func (h *EmailHandler) Preview(c echo.Context) error {
	return HandleHTML(h.Handler, func(c echo.Context, p *model.PreviewEmailPayload) ([]byte, error) {
		return h.emails.Preview(email.Template(p.Template))
	}, http.StatusOK, &model.PreviewEmailPayload{})(c)
}
