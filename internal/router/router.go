// Package router builds the Echo instance: global middleware in order,
// system routes, webhooks and the authenticated /v1 API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/handler"
	"github.com/deppfellow/schoolhub/internal/middleware"
	"github.com/deppfellow/schoolhub/internal/server"
)

func NewRouter(s *server.Server, h *handler.Handlers) *echo.Echo {
	middlewares := middleware.NewMiddlewares(s)

	router := echo.New()
	router.HideBanner = true
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	router.Use(
		middleware.RequestID(),
		middlewares.Tracing.NewRelicMiddleware(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Global.CORS(),
		middlewares.Global.Secure(),
		middlewares.Global.RequestLogger(),
		middlewares.Global.Metrics(),
		middlewares.Global.Recover(),
		middlewares.RateLimit.Limit(),
	)

	registerSystemRoutes(router, h)
	registerWebhookRoutes(router, h)

	v1 := router.Group("/v1", middlewares.Auth.RequireAuth, middlewares.Auth.RequireTenant)
	registerV1Routes(v1, h, middlewares.Auth)

	return router
}

func registerWebhookRoutes(r *echo.Echo, h *handler.Handlers) {
	webhooks := r.Group("/webhooks")
	webhooks.POST("/payments", h.Webhooks.Payments)
	webhooks.POST("/email", h.Webhooks.Email)
}

func registerV1Routes(v1 *echo.Group, h *handler.Handlers, auth *middleware.AuthMiddleware) {
	staff := auth.RequireStaff
	admin := auth.RequireAdmin

	me := v1.Group("/me")
	me.GET("", h.Users.GetProfile)
	me.PUT("", h.Users.UpsertProfile)
	me.GET("/notification-preferences", h.Email.GetPreferences)
	me.PUT("/notification-preferences", h.Email.UpdatePreferences)
	me.GET("/enrollments", h.Enrollments.ListMine)
	me.GET("/live-classes", h.LiveClasses.Upcoming)

	notifications := v1.Group("/notifications")
	notifications.GET("", h.Notifications.List)
	notifications.GET("/unread-count", h.Notifications.UnreadCount)
	notifications.POST("/read-all", h.Notifications.MarkAllRead)
	notifications.POST("/:id/read", h.Notifications.MarkRead)

	categories := v1.Group("/categories")
	categories.GET("", h.Catalog.ListCategories)
	categories.GET("/:id", h.Catalog.GetCategory)

	courses := v1.Group("/courses")
	courses.GET("", h.Catalog.ListCourses)
	courses.GET("/:id", h.Catalog.GetCourse)
	courses.POST("/:id/enroll", h.Enrollments.Enroll)
	courses.GET("/:id/live-classes", h.LiveClasses.ListForCourse)
	courses.POST("", h.Catalog.CreateCourse, staff)
	courses.PATCH("/:id", h.Catalog.UpdateCourse, staff)
	courses.POST("/:id/status", h.Catalog.ChangeCourseStatus, staff)
	courses.GET("/:id/enrollments", h.Enrollments.ListForCourse, staff)
	courses.POST("/:id/live-classes", h.LiveClasses.Schedule, staff)

	v1.POST("/coupons/validate", h.Coupons.Validate)

	enrollments := v1.Group("/enrollments")
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.PATCH("/:id/progress", h.Enrollments.UpdateProgress)
	enrollments.POST("/:id/cancel", h.Enrollments.Cancel)

	liveClasses := v1.Group("/live-classes")
	liveClasses.GET("/:id", h.LiveClasses.Get)
	liveClasses.PATCH("/:id", h.LiveClasses.Update, staff)
	liveClasses.POST("/:id/cancel", h.LiveClasses.Cancel, staff)

	tickets := v1.Group("/tickets")
	tickets.POST("", h.Support.Create)
	tickets.GET("", h.Support.List)
	tickets.GET("/:id", h.Support.Get)
	tickets.POST("/:id/replies", h.Support.Reply)
	tickets.PATCH("/:id/status", h.Support.UpdateStatus)
	tickets.POST("/:id/assign", h.Support.Assign, staff)

	registerAdminRoutes(v1.Group("/admin", admin), h)
}

func registerAdminRoutes(g *echo.Group, h *handler.Handlers) {
	g.POST("/categories", h.Catalog.CreateCategory)
	g.PATCH("/categories/:id", h.Catalog.UpdateCategory)
	g.DELETE("/categories/:id", h.Catalog.DeleteCategory)

	g.DELETE("/courses/:id", h.Catalog.DeleteCourse)

	g.GET("/coupons", h.Coupons.List)
	g.POST("/coupons", h.Coupons.Create)
	g.GET("/coupons/:id", h.Coupons.Get)
	g.PATCH("/coupons/:id", h.Coupons.Update)
	g.DELETE("/coupons/:id", h.Coupons.Delete)

	g.GET("/users", h.Users.List)
	g.POST("/users/bulk", h.Users.Bulk)

	g.GET("/emails", h.Email.List)
	g.GET("/emails/analytics", h.Email.Analytics)
	g.GET("/emails/preview/:template", h.Email.Preview)
}
