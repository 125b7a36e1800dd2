package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	briefingrepo "triage-backend/internal/briefing/repository"
	briefing "triage-backend/internal/briefing/usecase"
	"triage-backend/internal/item/capture"
	"triage-backend/internal/item/feed"
	"triage-backend/internal/item/repository"
	"triage-backend/pkg/ai"
	"triage-backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrSessionNotFound is returned for an unknown or closed session id
var ErrSessionNotFound = errors.New("session not found")

// Stream event names
const (
	EventItem     = "item"
	EventCapture  = "capture"
	EventBriefing = "briefing"
)

// Streamer pushes events to whoever is watching a session
type Streamer interface {
	SendTo(key, event string, data interface{})
	IsConnected(key string) bool
}

type nopStreamer struct{}

func (nopStreamer) SendTo(string, string, interface{}) {}
func (nopStreamer) IsConnected(string) bool            { return false }

// Session is one device's open view of the items: the cache, its capture
// box and its briefing.
type Session struct {
	ID       string
	DeviceID string
	Cache    *Cache
	Capture  *capture.Pipeline
	Briefing *briefing.Scheduler

	sub      *feed.Subscription
	stop     chan struct{}
	lastSeen atomic.Int64
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen is the last time the session was used
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) close() {
	close(s.stop)
	s.sub.Close()
	s.Cache.Close()
}

// ManagerConfig carries the shared dependencies of every session
type ManagerConfig struct {
	Items      repository.ItemRepository
	Hub        *feed.Hub
	Classifier ai.Classifier
	Summarizer ai.Summarizer
	Briefings  briefingrepo.BriefingRepository
	Streams    Streamer
	Location   *time.Location
	IdleTTL    time.Duration
}

// Manager owns the open sessions
type Manager struct {
	cfg ManagerConfig
	now func() time.Time
	log zerolog.Logger

	// background work started by sessions, cancelled on Shutdown
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Streams == nil {
		cfg.Streams = nopStreamer{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		now:      time.Now,
		log:      logger.Component("sessions"),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session for deviceID: it subscribes to the change feed, loads
// the snapshot and kicks off the day's briefing.
func (m *Manager) Open(ctx context.Context, deviceID string) (*Session, error) {
	if deviceID == "" {
		deviceID = "default"
	}

	// subscribe first so nothing published during the load is missed
	sub := m.cfg.Hub.Subscribe()
	snapshot, err := m.cfg.Items.ListAll(ctx)
	if err != nil {
		sub.Close()
		return nil, err
	}

	id := uuid.New().String()
	s := &Session{
		ID:       id,
		DeviceID: deviceID,
		Cache:    NewCache(m.cfg.Items, snapshot),
		sub:      sub,
		stop:     make(chan struct{}),
	}
	s.Capture = capture.NewPipeline(m.cfg.Classifier, s.Cache,
		capture.WithLocation(m.cfg.Location),
		capture.WithOnChange(func(st capture.State) { m.cfg.Streams.SendTo(id, EventCapture, st) }),
	)
	s.Briefing = briefing.NewScheduler(deviceID, m.cfg.Briefings, m.cfg.Summarizer, s.Cache,
		briefing.WithLocation(m.cfg.Location),
		briefing.WithOnChange(func(st briefing.State) { m.cfg.Streams.SendTo(id, EventBriefing, st) }),
	)
	s.touch(m.now())

	go s.Cache.Follow(sub)
	go m.forwardViews(s)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	go func() {
		if err := s.Briefing.Start(m.ctx); err != nil {
			m.log.Debug().Err(err).Str("session", id).Msg("briefing not started")
		}
	}()

	m.log.Info().Str("session", id).Str("device", deviceID).Int("items", len(snapshot)).Msg("session opened")
	return s, nil
}

func (m *Manager) forwardViews(s *Session) {
	views, cancel := s.Cache.Subscribe()
	defer cancel()
	for {
		select {
		case ev, ok := <-views:
			if !ok {
				return
			}
			m.cfg.Streams.SendTo(s.ID, EventItem, ev)
		case <-s.stop:
			return
		}
	}
}

// Get returns an open session and marks it as used
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Close ends a session and releases its feed subscription
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.close()
	m.log.Info().Str("session", id).Msg("session closed")
	return nil
}

// Len reports how many sessions are open
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ReapIdle closes sessions unused for longer than the idle TTL. A session
// with a live event stream is never idle.
func (m *Manager) ReapIdle(context.Context) int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) && !m.cfg.Streams.IsConnected(id) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	reaped := 0
	for _, id := range idle {
		if m.Close(id) == nil {
			reaped++
		}
	}
	if reaped > 0 {
		m.log.Info().Int("reaped", reaped).Msg("idle sessions closed")
	}
	return reaped
}

// Shutdown closes every session
func (m *Manager) Shutdown(context.Context) error {
	m.cancel()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	return nil
}
