package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"triage-backend/internal/briefing/repository"
	itemdomain "triage-backend/internal/item/domain"
	"triage-backend/internal/item/feed"
	itemrepo "triage-backend/internal/item/repository"
	"triage-backend/internal/item/session"
	"triage-backend/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSummarizer struct {
	mu   sync.Mutex
	seen []int
	err  error
}

func (s *countingSummarizer) Summarize(_ context.Context, items []itemdomain.Item) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, len(items))
	if s.err != nil {
		return "", s.err
	}
	if len(items) == 0 {
		return itemdomain.EmptyBriefing, nil
	}
	return "Two things need you today.", nil
}

type nopClassifier struct{}

func (nopClassifier) Classify(context.Context, string, itemdomain.Date) (itemdomain.ProcessedItem, error) {
	return itemdomain.ProcessedItem{}, errors.New("not used")
}

func newRouter(t *testing.T, summarizer *countingSummarizer) (*gin.Engine, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewSQLiteConnection(":memory:")
	require.NoError(t, err)
	items, err := itemrepo.NewGormItemRepository(db)
	require.NoError(t, err)
	briefings, err := repository.NewGormBriefingRepository(db)
	require.NoError(t, err)

	hub := feed.NewHub("test")
	sessions := session.NewManager(session.ManagerConfig{
		Items:      itemrepo.NewNotifyingRepository(items, hub),
		Hub:        hub,
		Classifier: nopClassifier{},
		Summarizer: summarizer,
		Briefings:  briefings,
		Location:   time.UTC,
		IdleTTL:    time.Minute,
	})
	t.Cleanup(func() { _ = sessions.Shutdown(context.Background()) })

	h := NewBriefingHandler(summarizer, sessions)
	r := gin.New()
	r.POST("/api/briefing", h.Generate)
	r.GET("/api/sessions/:sid/briefing", h.Get)
	r.POST("/api/sessions/:sid/briefing/refresh", h.Refresh)
	r.POST("/api/sessions/:sid/briefing/dismiss", h.Dismiss)
	r.POST("/api/sessions/:sid/briefing/show", h.Show)
	return r, sessions
}

func post(t *testing.T, r *gin.Engine, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func TestGenerate_IgnoresCompletedItems(t *testing.T) {
	summarizer := &countingSummarizer{}
	r, _ := newRouter(t, summarizer)

	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	draft := itemdomain.ProcessedItem{Title: "x", Section: itemdomain.SectionNow, Type: itemdomain.TypeTask, Context: itemdomain.ContextWork}
	open := itemdomain.NewItem("a1", "x", draft, now)
	done := itemdomain.NewItem("a2", "y", draft, now)
	done = itemdomain.ToggleCompletion(done, now).Apply(done)

	w, out := post(t, r, "/api/briefing", gin.H{"items": []itemdomain.Item{open, done, open}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Two things need you today.", out["briefing"])
	assert.Equal(t, []int{2}, summarizer.seen)

	w, out = post(t, r, "/api/briefing", gin.H{"items": []itemdomain.Item{}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, itemdomain.EmptyBriefing, out["briefing"])
}

func TestGenerate_Failure(t *testing.T) {
	r, _ := newRouter(t, &countingSummarizer{err: errors.New("overloaded")})

	w, out := post(t, r, "/api/briefing", gin.H{"items": []itemdomain.Item{}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to generate briefing", out["error"])
}

func TestSessionBriefing(t *testing.T) {
	summarizer := &countingSummarizer{}
	r, sessions := newRouter(t, summarizer)

	s, err := sessions.Open(context.Background(), "tablet")
	require.NoError(t, err)
	base := "/api/sessions/" + s.ID + "/briefing"

	assert.Eventually(t, func() bool {
		st := s.Briefing.State()
		return !st.Loading && st.Text != ""
	}, time.Second, 10*time.Millisecond)

	w, out := post(t, r, base+"/dismiss", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["visible"])
	assert.Equal(t, itemdomain.EmptyBriefing, out["text"])

	w, out = post(t, r, base+"/show", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["visible"])

	w, out = post(t, r, base+"/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["loading"])
	assert.Equal(t, itemdomain.EmptyBriefing, out["text"])

	req := httptest.NewRequest(http.MethodGet, base, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	w, out = post(t, r, "/api/sessions/unknown/briefing/refresh", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Session not found", out["error"])
}
