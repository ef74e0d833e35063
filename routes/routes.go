package routes

import (
	"publishing-api/controllers"
	"publishing-api/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, publishing *controllers.PublishingController, jwtSecret string) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"message": "Publishing API is running",
			})
		})

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			protected.GET("/pages/scheduled", publishing.ListScheduled)

			workflow := protected.Group("/pages/:pageId/workflow")
			{
				workflow.GET("", publishing.GetWorkflow)
				workflow.PUT("", publishing.UpsertWorkflow)
				workflow.POST("/request-approval", publishing.RequestApproval)
				workflow.POST("/approve", publishing.Approve)
				workflow.POST("/reject", publishing.Reject)
			}

			protected.GET("/workflows/pending", publishing.ListPending)
			protected.GET("/publishing/stats", publishing.Stats)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "Not found"})
	})
}
