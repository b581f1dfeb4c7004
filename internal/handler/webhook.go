package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/payment"
	"github.com/deppfellow/schoolhub/internal/middleware"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/server"
	"github.com/deppfellow/schoolhub/internal/service"
)

// maxWebhookBody bounds the body read before the signature is checked.
const maxWebhookBody = 1 << 20

// WebhookHandler receives gateway and email provider callbacks. The raw
// body is kept intact because the signature covers its exact bytes, so
// these routes skip the binding pipeline.
type WebhookHandler struct {
	Handler
	payments *service.PaymentService
	emails   *service.EmailService
}

func NewWebhookHandler(s *server.Server, payments *service.PaymentService, emails *service.EmailService) *WebhookHandler {
	return &WebhookHandler{
		Handler:  NewHandler(s),
		payments: payments,
		emails:   emails,
	}
}

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return nil, errs.NewBadRequestError("Could not read request body", false, nil, nil, nil)
	}
	if len(body) > maxWebhookBody {
		return nil, errs.NewBadRequestError("Request body too large", false, nil, nil, nil)
	}
	return body, nil
}

func (h *WebhookHandler) ack(c echo.Context, source string, result *model.WebhookAck, err error) error {
	if err != nil {
		middleware.GetLogger(c).Warn().Err(err).Str("source", source).Msg("webhook rejected")
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *WebhookHandler) Payments(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	result, err := h.payments.HandleWebhook(c.Request().Context(), c.Request().Header.Get(payment.SignatureHeader), body)
	return h.ack(c, "payments", result, err)
}

func (h *WebhookHandler) Email(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	result, err := h.emails.HandleWebhook(c.Request().Context(), c.Request().Header.Get(service.EmailWebhookSecretHeader), body)
	return h.ack(c, "email", result, err)
}
