package delivery

import (
	"errors"
	"net/http"

	"triage-backend/internal/briefing/usecase"
	itemdomain "triage-backend/internal/item/domain"
	"triage-backend/internal/item/session"
	"triage-backend/pkg/ai"
	"triage-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type BriefingHandler struct {
	summarizer ai.Summarizer
	sessions   *session.Manager
	log        zerolog.Logger
}

func NewBriefingHandler(summarizer ai.Summarizer, sessions *session.Manager) *BriefingHandler {
	return &BriefingHandler{
		summarizer: summarizer,
		sessions:   sessions,
		log:        logger.Component("briefing-handler"),
	}
}

type GenerateBriefingRequest struct {
	Items []itemdomain.Item `json:"items"`
}

// Generate writes a briefing for the posted items. Completed items are
// ignored.
// POST /api/briefing
func (h *BriefingHandler) Generate(c *gin.Context) {
	var req GenerateBriefingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	text, err := h.summarizer.Summarize(c.Request.Context(), itemdomain.Active(req.Items))
	if err != nil {
		h.log.Error().Err(err).Msg("briefing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate briefing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"briefing": text})
}

// Get returns the session's briefing panel
// GET /api/sessions/:sid/briefing
func (h *BriefingHandler) Get(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Briefing.State())
}

// Refresh recomputes today's briefing. A failed generation leaves the
// panel empty rather than returning an error.
// POST /api/sessions/:sid/briefing/refresh
func (h *BriefingHandler) Refresh(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Briefing.Refresh(c.Request.Context()); err != nil {
		if errors.Is(err, usecase.ErrBriefingInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "briefing": s.Briefing.State()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate briefing"})
		return
	}
	c.JSON(http.StatusOK, s.Briefing.State())
}

// Dismiss hides the panel and keeps the text
// POST /api/sessions/:sid/briefing/dismiss
func (h *BriefingHandler) Dismiss(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Briefing.Dismiss()
	c.JSON(http.StatusOK, s.Briefing.State())
}

// Show reopens a dismissed panel
// POST /api/sessions/:sid/briefing/show
func (h *BriefingHandler) Show(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Briefing.Show()
	c.JSON(http.StatusOK, s.Briefing.State())
}

func (h *BriefingHandler) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.sessions.Get(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return s, true
}
