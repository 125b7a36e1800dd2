package delivery

import (
	"net/http"

	"triage-backend/internal/item/capture"
	"triage-backend/internal/item/domain"
	"triage-backend/internal/item/session"

	"github.com/gin-gonic/gin"
)

// EventStreamer serves a session's server-sent event stream
type EventStreamer interface {
	ServeHTTP(c *gin.Context, key string)
}

// SessionHandler exposes a device's session: its items, capture box and
// event stream.
type SessionHandler struct {
	sessions *session.Manager
	streams  EventStreamer
}

func NewSessionHandler(sessions *session.Manager, streams EventStreamer) *SessionHandler {
	return &SessionHandler{sessions: sessions, streams: streams}
}

type OpenSessionRequest struct {
	DeviceID string `json:"device_id"`
}

type EditItemRequest struct {
	Title string `json:"title" binding:"required"`
	Notes string `json:"notes"`
}

type CaptureRequest struct {
	Text string `json:"text"`
}

// Open starts a session and returns its snapshot
// POST /api/sessions
func (h *SessionHandler) Open(c *gin.Context) {
	var req OpenSessionRequest
	// an empty body opens a session for the default device
	_ = c.ShouldBindJSON(&req)

	s, err := h.sessions.Open(c.Request.Context(), req.DeviceID)
	if err != nil {
		respondError(c, err)
		return
	}
	entries, err := s.Cache.Snapshot()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": s.ID,
		"device_id":  s.DeviceID,
		"items":      entries,
		"capture":    s.Capture.State(),
		"briefing":   s.Briefing.State(),
	})
}

// Close ends a session
// DELETE /api/sessions/:sid
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.sessions.Close(c.Param("sid")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Events streams item, capture and briefing updates
// GET /api/sessions/:sid/events
func (h *SessionHandler) Events(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.streams.ServeHTTP(c, s.ID)
}

// Items returns every item with its sync state, split like the board
// GET /api/sessions/:sid/items
func (h *SessionHandler) Items(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	entries, err := s.Cache.Snapshot()
	if err != nil {
		respondError(c, err)
		return
	}

	active := make([]session.Entry, 0, len(entries))
	completed := make([]session.Entry, 0)
	for _, e := range entries {
		if e.Item.Completed {
			completed = append(completed, e)
		} else {
			active = append(active, e)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"active":    active,
		"completed": completed,
		"total":     len(entries),
	})
}

// Capture classifies and files text. The draft survives a failure and is
// returned with the capture state.
// POST /api/sessions/:sid/capture
func (h *SessionHandler) Capture(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := s.Capture.Submit(c.Request.Context(), req.Text)
	if err != nil {
		status, msg := StatusFor(err)
		if status == http.StatusInternalServerError || status == http.StatusBadGateway || status == http.StatusServiceUnavailable {
			msg = capture.GenericFailureMessage
		}
		c.JSON(status, gin.H{"error": msg, "capture": s.Capture.State()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item, "capture": s.Capture.State()})
}

// CaptureState returns the capture box
// GET /api/sessions/:sid/capture
func (h *SessionHandler) CaptureState(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Capture.State())
}

// Move files an item under another section
// PATCH /api/sessions/:sid/items/:id/section
func (h *SessionHandler) Move(c *gin.Context) {
	var req struct {
		Section string `json:"section" binding:"required"`
	}
	h.mutate(c, &req, func(cache *session.Cache, id string) (domain.Item, error) {
		return cache.Move(id, domain.Section(req.Section))
	})
}

// CycleContext advances the item's context
// POST /api/sessions/:sid/items/:id/context/cycle
func (h *SessionHandler) CycleContext(c *gin.Context) {
	h.mutate(c, nil, func(cache *session.Cache, id string) (domain.Item, error) {
		return cache.CycleContext(id)
	})
}

// SetContext sets the item's context
// PATCH /api/sessions/:sid/items/:id/context
func (h *SessionHandler) SetContext(c *gin.Context) {
	var req struct {
		Context string `json:"context" binding:"required"`
	}
	h.mutate(c, &req, func(cache *session.Cache, id string) (domain.Item, error) {
		return cache.SetContext(id, domain.Context(req.Context))
	})
}

// ToggleCompletion flips the completed flag
// POST /api/sessions/:sid/items/:id/complete
func (h *SessionHandler) ToggleCompletion(c *gin.Context) {
	h.mutate(c, nil, func(cache *session.Cache, id string) (domain.Item, error) {
		return cache.ToggleCompletion(id)
	})
}

// Edit replaces title and notes
// PATCH /api/sessions/:sid/items/:id
func (h *SessionHandler) Edit(c *gin.Context) {
	var req EditItemRequest
	h.mutate(c, &req, func(cache *session.Cache, id string) (domain.Item, error) {
		return cache.Edit(id, req.Title, req.Notes)
	})
}

// Delete removes an item
// DELETE /api/sessions/:sid/items/:id
func (h *SessionHandler) Delete(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Cache.Delete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted"})
}

// mutate binds req when given, applies op and returns the optimistic state.
// The store write happens in the background.
func (h *SessionHandler) mutate(c *gin.Context, req interface{}, op func(*session.Cache, string) (domain.Item, error)) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if req != nil {
		if err := c.ShouldBindJSON(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	id := c.Param("id")
	if _, err := op(s.Cache, id); err != nil {
		respondError(c, err)
		return
	}
	entry, err := s.Cache.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *SessionHandler) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.sessions.Get(c.Param("sid"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return s, true
}
