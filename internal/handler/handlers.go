package handler

import (
	"github.com/deppfellow/schoolhub/internal/server"
	"github.com/deppfellow/schoolhub/internal/service"
)

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Health        *HealthHandler
	OpenAPI       *OpenAPIHandler
	Metrics       *MetricsHandler
	Users         *UserHandler
	Catalog       *CatalogHandler
	Coupons       *CouponHandler
	Enrollments   *EnrollmentHandler
	LiveClasses   *LiveClassHandler
	Support       *SupportHandler
	Email         *EmailHandler
	Notifications *NotificationHandler
	Webhooks      *WebhookHandler
}

func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:        NewHealthHandler(s),
		OpenAPI:       NewOpenAPIHandler(s),
		Metrics:       NewMetricsHandler(s),
		Users:         NewUserHandler(s, services.Users),
		Catalog:       NewCatalogHandler(s, services.Catalog),
		Coupons:       NewCouponHandler(s, services.Coupons),
		Enrollments:   NewEnrollmentHandler(s, services.Enrollments),
		LiveClasses:   NewLiveClassHandler(s, services.LiveClasses),
		Support:       NewSupportHandler(s, services.Support),
		Email:         NewEmailHandler(s, services.Email),
		Notifications: NewNotificationHandler(s, services.Notifications),
		Webhooks:      NewWebhookHandler(s, services.Payments, services.Email),
	}
}
