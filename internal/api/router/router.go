// Package router wires the HTTP routes for the discovery API.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spotsng/discovery-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "discovery-api-service",
		})
	})

	if registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	locationHandler := handler.NewLocationHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		discovery := v1.Group("/discovery")
		{
			// POST /api/v1/discovery/batch - Ingest a candidate batch
			discovery.POST("/batch", locationHandler.ProcessDiscoveryBatch)
		}

		locations := v1.Group("/locations")
		{
			// GET /api/v1/locations - List locations with filtering
			locations.GET("", locationHandler.ListLocations)

			// GET /api/v1/locations/:location_id - Get location details
			locations.GET("/:location_id", locationHandler.GetLocation)

			// POST /api/v1/locations/:location_id/enrich - Schedule enrichment
			locations.POST("/:location_id/enrich", locationHandler.EnrichLocation)

			// PATCH /api/v1/locations/:location_id/status - Moderate a location
			locations.PATCH("/:location_id/status", locationHandler.UpdateLocationStatus)
		}

		queue := v1.Group("/queue")
		{
			// GET /api/v1/queue/stats - Enrichment queue snapshot
			queue.GET("/stats", locationHandler.GetQueueStats)
		}

		cache := v1.Group("/cache")
		{
			// GET /api/v1/cache/stats - Cache hit/miss counters
			cache.GET("/stats", locationHandler.GetCacheStats)

			// DELETE /api/v1/cache - Flush the location cache
			cache.DELETE("", locationHandler.ClearCache)
		}
	}

	return r
}
