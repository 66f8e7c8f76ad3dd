// Package httpapi wires the gin HTTP surface: the two SSE search endpoints,
// the filter-preset administrative API, and the standard health/metrics/
// swagger routes the rest of the stack expects.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tsgate/internal/config"
	"tsgate/internal/filterpreset"
	"tsgate/internal/logger"
	"tsgate/pkg/health"
	"tsgate/pkg/metrics"
	"tsgate/pkg/middleware"
	"tsgate/pkg/ratelimit"
	"tsgate/pkg/tracing"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const serviceName = "tsgate"

// NewRouter assembles the gin engine: middleware stack, the search
// endpoints, the filter-preset admin routes, and health/metrics/swagger.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	searchHandler *SearchHandler,
	presetHandler *filterpreset.Handler,
	healthRegistry *health.CheckerRegistry,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())

	if cfg.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             cfg.RateLimit.RPS,
			Burst:           cfg.RateLimit.Burst,
			CleanupInterval: time.Duration(cfg.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(cfg.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
	}

	router.GET("/events", searchHandler.SearchEvents)
	router.GET("/messages", searchHandler.SearchMessages)

	if presetHandler != nil {
		presetHandler.RegisterRoutes(router)
	}

	metrics.RegisterSearchMetrics()
	metrics.RegisterCodecMetrics()
	metrics.RegisterFilterPresetMetrics()
	metrics.RegisterSSEMetrics()
	metrics.RegisterAuditMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterCircuitBreakerMetrics()
	metrics.RegisterStoreMetrics()
	metrics.RegisterHTTPMetrics()

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}
