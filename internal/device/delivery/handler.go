package delivery

import (
	"net/http"

	"triage-backend/internal/device/repository"
	"triage-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type DeviceHandler struct {
	tokens repository.TokenRepository
	log    zerolog.Logger
}

func NewDeviceHandler(tokens repository.TokenRepository) *DeviceHandler {
	return &DeviceHandler{tokens: tokens, log: logger.Component("device-handler")}
}

type RegisterTokenRequest struct {
	DeviceID   string `json:"device_id" binding:"required"`
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

// RegisterToken stores a push token for the morning briefing
// POST /api/devices
func (h *DeviceHandler) RegisterToken(c *gin.Context) {
	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tokens.SaveToken(c.Request.Context(), req.DeviceID, req.Token, req.DeviceInfo); err != nil {
		h.log.Error().Err(err).Str("device", req.DeviceID).Msg("save token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Token registered"})
}

// UnregisterToken removes a push token
// DELETE /api/devices/:token
func (h *DeviceHandler) UnregisterToken(c *gin.Context) {
	if err := h.tokens.DeleteToken(c.Request.Context(), c.Param("token")); err != nil {
		h.log.Error().Err(err).Msg("delete token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unregister token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Token unregistered"})
}
