package router

import (
	"net/http"

	"github.com/curbfleet/dispatch/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes.
func SetupRouter(deps *handler.Dependencies, authSecret string) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "tracking-service",
		})
	})

	trackingHandler := handler.NewTrackingHandler(deps)
	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes (authenticated)
	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(authSecret))
	{
		// POST /api/v1/tracking - Ingest one position report
		v1.POST("/tracking", trackingHandler.Ingest)

		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs/:job_id/transition - Apply a status change
			jobs.POST("/:job_id/transition", jobHandler.Transition)
		}

		couriers := v1.Group("/couriers")
		{
			// GET /api/v1/couriers/:courier_id/queue - Active queue
			couriers.GET("/:courier_id/queue", jobHandler.GetQueue)

			// PUT /api/v1/couriers/:courier_id/sequences - Persist manual order
			couriers.PUT("/:courier_id/sequences", jobHandler.Reorder)

			// GET /api/v1/couriers/:courier_id/history - Position history
			couriers.GET("/:courier_id/history", jobHandler.GetHistory)

			// GET /api/v1/couriers/:courier_id/stats - Today's earnings
			couriers.GET("/:courier_id/stats", jobHandler.GetStats)

			// PUT /api/v1/couriers/:courier_id/online - Online flag toggle
			couriers.PUT("/:courier_id/online", jobHandler.SetOnline)
		}
	}

	return r
}
