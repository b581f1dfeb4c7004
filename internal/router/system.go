package router

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/handler"
)

// registerSystemRoutes mounts the unauthenticated operational endpoints.
func registerSystemRoutes(r *echo.Echo, h *handler.Handlers) {
	r.GET("/status", h.Health.CheckHealth)
	r.GET("/metrics", h.Metrics.Serve)
	r.GET("/docs", h.OpenAPI.ServeOpenAPIUI)
	r.GET("/docs/openapi.json", h.OpenAPI.ServeOpenAPISpec)
}
