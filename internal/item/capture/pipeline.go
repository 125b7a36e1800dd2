// Package capture turns free text into filed items, interactively for a
// session or in the background for inbound mail.
package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"triage-backend/internal/item/domain"
	"triage-backend/pkg/ai"
	"triage-backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrCaptureInFlight rejects a submission while another one is running
var ErrCaptureInFlight = errors.New("a capture is already being processed")

// GenericFailureMessage is shown for any capture failure
const GenericFailureMessage = "Something went wrong. Check your API key and try again."

// AckDuration is how long the "filed to" acknowledgment is held
const AckDuration = 3 * time.Second

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// State is what a capture box shows
type State struct {
	Phase  Phase  `json:"phase"`
	Draft  string `json:"draft"`
	Ack    string `json:"ack,omitempty"`
	Error  string `json:"error,omitempty"`
	ItemID string `json:"itemId,omitempty"`
}

// Inserter accepts a new item optimistically and reports when it is stored
type Inserter interface {
	Create(item domain.Item) (<-chan error, error)
}

// Discarder drops a locally held item whose insert failed, so a retry of
// the kept draft does not leave two copies behind
type Discarder interface {
	Discard(id string) (bool, error)
}

type Option func(*Pipeline)

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(p *Pipeline) { p.loc = loc }
}

func WithAckDuration(d time.Duration) Option {
	return func(p *Pipeline) { p.ackDuration = d }
}

func WithIDGenerator(next func() string) Option {
	return func(p *Pipeline) { p.newID = next }
}

// WithOnChange registers a callback invoked after every state transition
func WithOnChange(fn func(State)) Option {
	return func(p *Pipeline) { p.onChange = fn }
}

// Pipeline is a session's capture box: idle → submitting → succeeded or
// failed → idle.
type Pipeline struct {
	classifier  ai.Classifier
	sink        Inserter
	now         func() time.Time
	loc         *time.Location
	ackDuration time.Duration
	newID       func() string
	onChange    func(State)
	log         zerolog.Logger

	mu    sync.Mutex
	state State
	gen   uint64
}

func NewPipeline(classifier ai.Classifier, sink Inserter, opts ...Option) *Pipeline {
	p := &Pipeline{
		classifier:  classifier,
		sink:        sink,
		now:         time.Now,
		loc:         time.Local,
		ackDuration: AckDuration,
		newID:       uuid.NewString,
		log:         logger.Component("capture"),
		state:       State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current capture state
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Submit classifies text, files the resulting item and waits until it is
// stored. Blank input is rejected before any upstream call.
func (p *Pipeline) Submit(ctx context.Context, text string) (domain.Item, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Item{}, &domain.ValidationError{Field: "text", Message: "no text provided"}
	}

	p.mu.Lock()
	if p.state.Phase == PhaseSubmitting {
		p.mu.Unlock()
		return domain.Item{}, ErrCaptureInFlight
	}
	p.gen++
	p.state = State{Phase: PhaseSubmitting, Draft: text}
	p.changed()
	p.mu.Unlock()

	item, err := p.file(ctx, text)
	if err != nil {
		p.log.Error().Err(err).Msg("capture failed")
		if item.ID != "" {
			p.discard(item.ID)
		}
		p.fail(text)
		return domain.Item{}, err
	}

	p.succeed(item)
	return item, nil
}

func (p *Pipeline) file(ctx context.Context, text string) (domain.Item, error) {
	now := p.now()
	today := domain.DateOf(now.In(p.loc))

	draft, err := p.classifier.Classify(ctx, text, today)
	if err != nil {
		return domain.Item{}, err
	}

	item := domain.NewItem(p.newID(), text, draft, now)
	stored, err := p.sink.Create(item)
	if err != nil {
		return domain.Item{}, err
	}

	// from here on a failure returns the item so Submit can discard it
	select {
	case err := <-stored:
		if err != nil {
			return item, err
		}
	case <-ctx.Done():
		return item, ctx.Err()
	}
	return item, nil
}

func (p *Pipeline) discard(id string) {
	d, ok := p.sink.(Discarder)
	if !ok {
		return
	}
	removed, err := d.Discard(id)
	if err != nil {
		p.log.Warn().Err(err).Str("id", id).Msg("could not drop failed capture")
		return
	}
	if removed {
		p.log.Info().Str("id", id).Msg("dropped failed capture, draft kept for retry")
	}
}

func (p *Pipeline) succeed(item domain.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = State{
		Phase:  PhaseSucceeded,
		Ack:    "filed to " + item.Section.Label(),
		ItemID: item.ID,
	}
	p.changed()

	gen := p.gen
	time.AfterFunc(p.ackDuration, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		// a newer submission owns the state now
		if p.gen != gen || p.state.Phase != PhaseSucceeded {
			return
		}
		p.state = State{Phase: PhaseIdle}
		p.changed()
	})
}

func (p *Pipeline) fail(draft string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = State{Phase: PhaseFailed, Draft: draft, Error: GenericFailureMessage}
	p.changed()

	p.state.Phase = PhaseIdle
	p.changed()
}

// changed must be called with mu held
func (p *Pipeline) changed() {
	if p.onChange != nil {
		p.onChange(p.state)
	}
}
