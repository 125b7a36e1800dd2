package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"triage-backend/internal/briefing/domain"
	"triage-backend/internal/briefing/repository"
	itemdomain "triage-backend/internal/item/domain"
	"triage-backend/pkg/ai"
	"triage-backend/pkg/logger"

	"github.com/rs/zerolog"
)

// ErrBriefingInFlight rejects a trigger while a briefing is being computed
var ErrBriefingInFlight = errors.New("a briefing is already being generated")

// ItemSource yields the items a briefing is computed from
type ItemSource interface {
	Active() ([]itemdomain.Item, error)
}

// State is what the briefing panel shows
type State struct {
	Date    string `json:"date"`
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
	Loading bool   `json:"loading"`
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

// WithOnChange registers a callback invoked after every state change
func WithOnChange(fn func(State)) Option {
	return func(s *Scheduler) { s.onChange = fn }
}

// Scheduler keeps one device's briefing for the current local day
type Scheduler struct {
	deviceID   string
	repo       repository.BriefingRepository
	summarizer ai.Summarizer
	items      ItemSource
	now        func() time.Time
	loc        *time.Location
	onChange   func(State)
	log        zerolog.Logger

	mu    sync.Mutex
	state State
}

func NewScheduler(deviceID string, repo repository.BriefingRepository, summarizer ai.Summarizer, items ItemSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		deviceID:   deviceID,
		repo:       repo,
		summarizer: summarizer,
		items:      items,
		now:        time.Now,
		loc:        time.Local,
		state:      State{Visible: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.Component("briefing").With().Str("device", deviceID).Logger()
	return s
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Today is the cache key for the current local calendar day
func (s *Scheduler) Today() string {
	return itemdomain.DateOf(s.now().In(s.loc)).String()
}

// Start reuses today's cached briefing or computes a fresh one
func (s *Scheduler) Start(ctx context.Context) error {
	today := s.Today()

	s.mu.Lock()
	if s.state.Loading {
		s.mu.Unlock()
		return ErrBriefingInFlight
	}
	if s.state.Date == today && s.state.Text != "" {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	cached, err := s.repo.Get(ctx, s.deviceID, today)
	if err != nil {
		s.log.Warn().Err(err).Msg("reading cached briefing failed, regenerating")
	}
	if cached != nil && cached.Text != "" {
		s.mu.Lock()
		s.state.Date = today
		s.state.Text = cached.Text
		s.changed()
		s.mu.Unlock()
		return nil
	}

	return s.generate(ctx, today)
}

// Refresh recomputes today's briefing and overwrites the cached one
func (s *Scheduler) Refresh(ctx context.Context) error {
	return s.generate(ctx, s.Today())
}

// Dismiss hides the briefing without discarding it
func (s *Scheduler) Dismiss() {
	s.setVisible(false)
}

func (s *Scheduler) Show() {
	s.setVisible(true)
}

func (s *Scheduler) setVisible(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Visible == v {
		return
	}
	s.state.Visible = v
	s.changed()
}

// generate fails only when another computation holds the loading flag.
// Upstream and store failures are logged and leave the text empty.
func (s *Scheduler) generate(ctx context.Context, today string) error {
	s.mu.Lock()
	if s.state.Loading {
		s.mu.Unlock()
		return ErrBriefingInFlight
	}
	s.state.Loading = true
	s.changed()
	s.mu.Unlock()

	text, err := s.compute(ctx)

	s.mu.Lock()
	s.state.Loading = false
	s.state.Date = today
	if err != nil {
		s.log.Error().Err(err).Msg("briefing generation failed")
		s.state.Text = ""
	} else {
		s.state.Text = text
		s.state.Visible = true
	}
	s.changed()
	s.mu.Unlock()

	if err != nil {
		return nil
	}
	if err := s.repo.Save(ctx, &domain.Briefing{DeviceID: s.deviceID, Date: today, Text: text}); err != nil {
		s.log.Warn().Err(err).Msg("caching briefing failed")
	}
	return nil
}

func (s *Scheduler) compute(ctx context.Context) (string, error) {
	active, err := s.items.Active()
	if err != nil {
		return "", err
	}
	return s.summarizer.Summarize(ctx, active)
}

// changed must be called with mu held
func (s *Scheduler) changed() {
	if s.onChange != nil {
		s.onChange(s.state)
	}
}
