package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Session-less capture and briefing
		api.POST("/process", h.itemHandler.Process)
		api.POST("/briefing", h.briefingHandler.Generate)
		api.POST("/inbound-email", h.itemHandler.InboundEmail)
		api.GET("/items/search", h.itemHandler.Search)

		// Sessions: one per open UI
		sessions := api.Group("/sessions")
		{
			sessions.POST("", h.sessionHandler.Open)
			sessions.DELETE("/:sid", h.sessionHandler.Close)
			sessions.GET("/:sid/events", h.sessionHandler.Events)
			sessions.GET("/:sid/items", h.sessionHandler.Items)
			sessions.POST("/:sid/capture", h.sessionHandler.Capture)
			sessions.GET("/:sid/capture", h.sessionHandler.CaptureState)
			sessions.PATCH("/:sid/items/:id", h.sessionHandler.Edit)
			sessions.DELETE("/:sid/items/:id", h.sessionHandler.Delete)
			sessions.PATCH("/:sid/items/:id/section", h.sessionHandler.Move)
			sessions.PATCH("/:sid/items/:id/context", h.sessionHandler.SetContext)
			sessions.POST("/:sid/items/:id/context/cycle", h.sessionHandler.CycleContext)
			sessions.POST("/:sid/items/:id/complete", h.sessionHandler.ToggleCompletion)

			sessions.GET("/:sid/briefing", h.briefingHandler.Get)
			sessions.POST("/:sid/briefing/refresh", h.briefingHandler.Refresh)
			sessions.POST("/:sid/briefing/dismiss", h.briefingHandler.Dismiss)
			sessions.POST("/:sid/briefing/show", h.briefingHandler.Show)
		}

		// Push token registration
		if h.deviceHandler != nil {
			devices := api.Group("/devices")
			{
				devices.POST("", h.deviceHandler.RegisterToken)
				devices.DELETE("/:token", h.deviceHandler.UnregisterToken)
			}
		}

		// Settings routes (public) - Runtime configuration
		settings := api.Group("/settings")
		{
			settings.GET("/ollama", h.settingsHandler.GetOllamaSettings)
			settings.PUT("/ollama", h.settingsHandler.UpdateOllamaSettings)
			settings.POST("/ollama/test", h.settingsHandler.TestOllamaConnection)
		}
	}
}
