// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/zori-go/internal/application/container"
	"github.com/AtRiskMedia/zori-go/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/zori-go/internal/presentation/http/middleware"
	"github.com/AtRiskMedia/zori-go/pkg/config"
)

// SetupRoutes configures all collector routes and middleware with dependency injection.
func SetupRoutes(container *container.CollectorContainer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middleware.CORSMiddleware(container.Settings.AllowOrigins))

	collectorHandlers := handlers.NewCollectorHandlers(
		container.CaptureService,
		container.Broadcaster,
		container.Logger,
		container.Tracker,
		container.Settings.MaxBodyBytes,
		config.SSEHeartbeatInterval,
	)

	r.GET("/health", collectorHandlers.HandleHealth)

	// Ingestion endpoints, as posted by clients
	ingest := r.Group("/")
	ingest.Use(middleware.PublishableKeyMiddleware(container.Settings.Key, container.Logger))
	{
		ingest.POST("/ingest", collectorHandlers.HandleIngest)
		ingest.POST("/identify", collectorHandlers.HandleIdentify)
	}

	// Inspection endpoints
	r.GET("/recent", collectorHandlers.HandleRecent)
	r.GET("/stats", collectorHandlers.HandleStats)
	r.GET("/tail", collectorHandlers.HandleTail)

	return r
}
