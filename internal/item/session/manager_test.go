package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	briefingdomain "triage-backend/internal/briefing/domain"
	"triage-backend/internal/item/domain"
	"triage-backend/internal/item/feed"
	"triage-backend/internal/item/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct{}

func (stubClassifier) Classify(_ context.Context, text string, _ domain.Date) (domain.ProcessedItem, error) {
	return domain.ProcessedItem{
		Title:   text,
		Section: domain.SectionNow,
		Type:    domain.TypeTask,
		Context: domain.ContextWork,
	}, nil
}

type stubSummarizer struct {
	mu    sync.Mutex
	calls int
}

func (s *stubSummarizer) Summarize(_ context.Context, items []domain.Item) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(items) == 0 {
		return domain.EmptyBriefing, nil
	}
	return "You have things to do.", nil
}

type memBriefings struct {
	mu sync.Mutex
	m  map[string]briefingdomain.Briefing
}

func (b *memBriefings) Get(_ context.Context, device, date string) (*briefingdomain.Briefing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.m[device+date]; ok {
		return &v, nil
	}
	return nil, nil
}

func (b *memBriefings) Save(_ context.Context, v *briefingdomain.Briefing) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.m == nil {
		b.m = make(map[string]briefingdomain.Briefing)
	}
	b.m[v.DeviceID+v.Date] = *v
	return nil
}

type recordingStreamer struct {
	mu        sync.Mutex
	events    map[string][]string
	connected map[string]bool
}

func newRecordingStreamer() *recordingStreamer {
	return &recordingStreamer{events: make(map[string][]string), connected: make(map[string]bool)}
}

func (r *recordingStreamer) SendTo(key, event string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[key] = append(r.events[key], event)
}

func (r *recordingStreamer) IsConnected(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected[key]
}

func (r *recordingStreamer) has(key, event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events[key] {
		if e == event {
			return true
		}
	}
	return false
}

type managerFixture struct {
	hub     *feed.Hub
	repo    *memRepo
	streams *recordingStreamer
	summary *stubSummarizer
	manager *Manager
}

func newManagerFixture(t *testing.T, seed ...domain.Item) *managerFixture {
	t.Helper()
	f := &managerFixture{
		hub:     feed.NewHub("test"),
		repo:    newMemRepo(),
		streams: newRecordingStreamer(),
		summary: &stubSummarizer{},
	}
	for _, it := range seed {
		f.repo.items[it.ID] = it
	}
	f.manager = NewManager(ManagerConfig{
		Items:      repository.NewNotifyingRepository(f.repo, f.hub),
		Hub:        f.hub,
		Classifier: stubClassifier{},
		Summarizer: f.summary,
		Briefings:  &memBriefings{},
		Streams:    f.streams,
		Location:   time.UTC,
		IdleTTL:    time.Minute,
	})
	t.Cleanup(func() { _ = f.manager.Shutdown(context.Background()) })
	return f
}

func TestManager_OpenAndClose(t *testing.T) {
	f := newManagerFixture(t, newItem("a1"))
	ctx := context.Background()

	s, err := f.manager.Open(ctx, "phone")
	require.NoError(t, err)
	assert.Equal(t, "phone", s.DeviceID)
	assert.Equal(t, 1, f.hub.Subscribers())

	items, err := s.Cache.Items()
	require.NoError(t, err)
	require.Len(t, items, 1)

	got, err := f.manager.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	// the day's briefing is generated on open
	assert.Eventually(t, func() bool { return s.Briefing.State().Text == "You have things to do." }, time.Second, 5*time.Millisecond)
	assert.True(t, f.streams.has(s.ID, EventBriefing))

	require.NoError(t, f.manager.Close(s.ID))
	assert.Zero(t, f.hub.Subscribers())
	_, err = f.manager.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.manager.Close(s.ID), ErrSessionNotFound)
}

func TestManager_SessionsSeeEachOthersChanges(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	a, err := f.manager.Open(ctx, "phone")
	require.NoError(t, err)
	b, err := f.manager.Open(ctx, "laptop")
	require.NoError(t, err)

	item, err := a.Capture.Submit(ctx, "call mom")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := b.Cache.Get(item.ID)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	_, err = b.Cache.Move(item.ID, domain.SectionSomeday)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, err := a.Cache.Get(item.ID)
		return err == nil && got.Item.Section == domain.SectionSomeday
	}, time.Second, 5*time.Millisecond)

	// the capturing session holds the item once
	items, err := a.Cache.Items()
	require.NoError(t, err)
	assert.Len(t, items, 1)

	assert.Eventually(t, func() bool { return f.streams.has(a.ID, EventItem) }, time.Second, 5*time.Millisecond)
	assert.True(t, f.streams.has(a.ID, EventCapture))
}

func TestManager_RetryAfterFailedCaptureFilesOnce(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	s, err := f.manager.Open(ctx, "phone")
	require.NoError(t, err)

	f.repo.mu.Lock()
	f.repo.err = errors.New("store offline")
	f.repo.mu.Unlock()

	_, err = s.Capture.Submit(ctx, "call mom")
	require.Error(t, err)
	assert.Equal(t, "call mom", s.Capture.State().Draft)

	items, err := s.Cache.Items()
	require.NoError(t, err)
	assert.Empty(t, items, "the failed capture is not left behind")

	f.repo.mu.Lock()
	f.repo.err = nil
	f.repo.mu.Unlock()

	item, err := s.Capture.Submit(ctx, s.Capture.State().Draft)
	require.NoError(t, err)

	items, err = s.Cache.Items()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
	assert.Equal(t, 1, f.repo.inserts)
}

func TestManager_ReapIdle(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	now := t0
	f.manager.now = func() time.Time { return now }

	idle, err := f.manager.Open(ctx, "phone")
	require.NoError(t, err)
	watched, err := f.manager.Open(ctx, "tv")
	require.NoError(t, err)
	fresh, err := f.manager.Open(ctx, "laptop")
	require.NoError(t, err)

	f.streams.mu.Lock()
	f.streams.connected[watched.ID] = true
	f.streams.mu.Unlock()

	now = t0.Add(2 * time.Minute)
	_, err = f.manager.Get(fresh.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.manager.ReapIdle(ctx))
	_, err = f.manager.Get(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 2, f.manager.Len())
	assert.Equal(t, 2, f.hub.Subscribers())
}

func TestManager_Shutdown(t *testing.T) {
	f := newManagerFixture(t)
	_, err := f.manager.Open(context.Background(), "")
	require.NoError(t, err)

	require.NoError(t, f.manager.Shutdown(context.Background()))
	assert.Zero(t, f.manager.Len())
	assert.Zero(t, f.hub.Subscribers())
}
