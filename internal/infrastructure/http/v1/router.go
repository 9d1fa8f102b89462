// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"retailpos/internal/app"
	"retailpos/internal/core/idempotency"
	"retailpos/internal/infrastructure/http/v1/handlers"
	"retailpos/internal/infrastructure/http/v1/middleware"
	"retailpos/internal/infrastructure/metrics"
	"retailpos/internal/infrastructure/storage/postgres"
	"retailpos/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Engine is the wired transaction engine
	Engine *app.Engine

	// Pool is used by health checks; nil on the in-memory store
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// Idempotency stores keys of replay-safe requests; nil disables the middleware
	Idempotency idempotency.Store

	// Metrics enables request metrics and GET /metrics when set
	Metrics *metrics.Metrics
}

// routeRegistrar is a handler that owns a route group.
type routeRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Session())
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()

	register(v1, "/documents", handlers.NewDocumentHandler(base, cfg.Engine))
	register(v1, "/returns", handlers.NewReturnHandler(base, cfg.Engine))

	stockHandler := handlers.NewStockHandler(base, cfg.Engine)
	v1.GET("/stock/:item/:location", stockHandler.OnHand)

	itemHandler := handlers.NewItemHandler(base, cfg.Engine)
	items := v1.Group("/items")
	{
		items.GET("/:id", itemHandler.Get)
		items.PUT("/:id", itemHandler.Put)
	}

	return router
}

func register(rg *gin.RouterGroup, path string, h routeRegistrar) {
	h.RegisterRoutes(rg.Group(path))
}
