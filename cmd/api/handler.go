package api

import (
	briefingDelivery "triage-backend/internal/briefing/delivery"
	deviceDelivery "triage-backend/internal/device/delivery"
	itemDelivery "triage-backend/internal/item/delivery"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	itemHandler     *itemDelivery.ItemHandler
	sessionHandler  *itemDelivery.SessionHandler
	briefingHandler *briefingDelivery.BriefingHandler
	deviceHandler   *deviceDelivery.DeviceHandler
	settingsHandler *SettingsHandler
}

// Handlers groups the feature handlers served by the API. A nil
// DeviceHandler disables the push token routes.
type Handlers struct {
	Items    *itemDelivery.ItemHandler
	Sessions *itemDelivery.SessionHandler
	Briefing *briefingDelivery.BriefingHandler
	Devices  *deviceDelivery.DeviceHandler
	Settings *SettingsHandler
}

func NewHandler(h Handlers) *Handler {
	return &Handler{
		itemHandler:     h.Items,
		sessionHandler:  h.Sessions,
		briefingHandler: h.Briefing,
		deviceHandler:   h.Devices,
		settingsHandler: h.Settings,
	}
}

// Router builds the gin engine with CORS and every route
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h)
	return r
}
