package handler

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/config"
	"github.com/deppfellow/schoolhub/internal/middleware"
	"github.com/deppfellow/schoolhub/internal/server"
)

type HealthHandler struct {
	Handler
}

func NewHealthHandler(s *server.Server) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(s),
	}
}

// checkResult is one dependency entry of the health response.
type checkResult struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

type healthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Environment string                 `json:"environment"`
	Checks      map[string]checkResult `json:"checks"`
}

func (h *HealthHandler) recordFailure(check string, err error, elapsed time.Duration) {
	if h.server.LoggerService == nil || h.server.LoggerService.GetApplication() == nil {
		return
	}
	h.server.LoggerService.GetApplication().RecordCustomEvent("HealthCheckError", map[string]interface{}{
		"check_type":       check,
		"operation":        "health_check",
		"error_type":       check + "_unhealthy",
		"response_time_ms": elapsed.Milliseconds(),
		"error_message":    err.Error(),
	})
}

func (h *HealthHandler) settings() config.HealthChecksConfig {
	if h.server.Config.Observability == nil {
		return config.DefaultObservabilityConfig().HealthChecks
	}
	return h.server.Config.Observability.HealthChecks
}

func (h *HealthHandler) check(ctx context.Context, name string, timeout time.Duration, ping func(context.Context) error) checkResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.recordFailure(name, err, elapsed)
		return checkResult{Status: "unhealthy", ResponseTime: elapsed.String(), Error: err.Error()}
	}
	return checkResult{Status: "healthy", ResponseTime: elapsed.String()}
}

// CheckHealth probes the dependencies listed in the health check config.
// Any failure answers 503, Redis included since the job queue lives there.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()
	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	response := healthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Environment: h.server.Config.Primary.Env,
		Checks:      map[string]checkResult{},
	}

	settings := h.settings()
	if settings.Enabled {
		ctx := c.Request().Context()
		if slices.Contains(settings.Checks, "database") && h.server.DB != nil {
			response.Checks["database"] = h.check(ctx, "database", settings.Timeout, h.server.DB.Pool.Ping)
		}
		if slices.Contains(settings.Checks, "redis") && h.server.Redis != nil {
			response.Checks["redis"] = h.check(ctx, "redis", settings.Timeout, func(ctx context.Context) error {
				return h.server.Redis.Ping(ctx).Err()
			})
		}
	}

	for name, result := range response.Checks {
		if result.Status != "healthy" {
			response.Status = "unhealthy"
			logger.Error().
				Str("check", name).
				Str("error", result.Error).
				Str("response_time", result.ResponseTime).
				Msg("health check failed")
		}
	}

	if response.Status != "healthy" {
		logger.Warn().Dur("total_duration", time.Since(start)).Msg("service unhealthy")
		return c.JSON(http.StatusServiceUnavailable, response)
	}

	logger.Debug().Dur("total_duration", time.Since(start)).Msg("health check passed")
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write JSON response: %w", err)
	}
	return nil
}

// MetricsHandler exposes the Prometheus registry.
type MetricsHandler struct {
	Handler
}

func NewMetricsHandler(s *server.Server) *MetricsHandler {
	return &MetricsHandler{Handler: NewHandler(s)}
}

func (h *MetricsHandler) Serve(c echo.Context) error {
	h.server.Metrics.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}
