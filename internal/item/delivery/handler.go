package delivery

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"triage-backend/internal/item/capture"
	"triage-backend/internal/item/domain"
	"triage-backend/internal/item/usecase"
	"triage-backend/pkg/ai"
	"triage-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ItemHandler serves the session-less item endpoints
type ItemHandler struct {
	classifier ai.Classifier
	inbound    *capture.Inbound
	search     *usecase.SearchUsecase
	loc        *time.Location
	now        func() time.Time
	log        zerolog.Logger
}

func NewItemHandler(classifier ai.Classifier, inbound *capture.Inbound, search *usecase.SearchUsecase, loc *time.Location) *ItemHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ItemHandler{
		classifier: classifier,
		inbound:    inbound,
		search:     search,
		loc:        loc,
		now:        time.Now,
		log:        logger.Component("item-handler"),
	}
}

type ProcessRequest struct {
	Text string `json:"text"`
}

// Process classifies text without filing it
// POST /api/process
func (h *ItemHandler) Process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No text provided"})
		return
	}

	today := domain.DateOf(h.now().In(h.loc))
	draft, err := h.classifier.Classify(c.Request.Context(), req.Text, today)
	if err != nil {
		h.log.Error().Err(err).Msg("process failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process input"})
		return
	}
	c.JSON(http.StatusOK, draft)
}

// InboundEmail files a forwarded email. Accepts the form fields sent by
// mail forwarding webhooks.
// POST /api/inbound-email
func (h *ItemHandler) InboundEmail(c *gin.Context) {
	sender := c.PostForm("sender")
	subject := c.PostForm("subject")
	body := c.PostForm("stripped-text")
	if body == "" {
		body = c.PostForm("body-plain")
	}

	if _, err := h.inbound.IngestEmail(c.Request.Context(), sender, subject, body); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process email"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Search finds items by substring, fuzzy or semantic match
// GET /api/items/search?q=&mode=&limit=
func (h *ItemHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	mode, err := usecase.ParseSearchMode(c.Query("mode"))
	if err != nil {
		respondError(c, err)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}

	results, err := h.search.Search(c.Request.Context(), query, mode, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"mode":    mode,
		"results": results,
		"total":   len(results),
	})
}
