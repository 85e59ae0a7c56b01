package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/prisvakt/compliance-service/internal/middleware"
)

// RouteConfig configures route protection
type RouteConfig struct {
	InternalAPIKey string
	// InternalRPS and InternalBurst bound all /internal traffic together.
	InternalRPS   float64
	InternalBurst int
	WidgetLimiter *middleware.IPRateLimiter
}

// RegisterRoutes mounts every API route on router
func RegisterRoutes(router *gin.Engine, cfg RouteConfig) {
	if cfg.InternalRPS <= 0 {
		cfg.InternalRPS, cfg.InternalBurst = 50, 100
	}
	if cfg.WidgetLimiter == nil {
		cfg.WidgetLimiter = middleware.NewIPRateLimiter(middleware.DefaultRateLimiterConfig())
	}

	router.GET("/health", HealthCheck)

	router.GET("/widget/:shop/:productId/:variantId",
		middleware.RateLimitMiddleware(cfg.WidgetLimiter),
		GetWidget,
	)

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware(cfg.InternalAPIKey))
	internal.Use(middleware.ServiceRateLimitMiddleware(cfg.InternalRPS, cfg.InternalBurst))
	{
		internal.GET("/health", HealthCheck)

		internal.PUT("/shops/:shop", UpsertShop)
		internal.POST("/scans/:shop", EnqueueScan)
		internal.GET("/tasks/:taskId", GetTask)

		compliance := internal.Group("/compliance/:shop")
		{
			compliance.GET("", ListEvaluations)
			compliance.GET("/summary", GetSummary)
			compliance.GET("/report.xlsx", GetReport)
			compliance.GET("/:productId/:variantId", GetEvaluation)
			compliance.GET("/:productId/:variantId/history", GetHistory)
			compliance.POST("/:productId/:variantId/recheck", RecheckVariant)
		}
	}
}
