package feed

import (
	"context"
	"sync"

	"triage-backend/pkg/logger"

	"github.com/rs/zerolog"
)

const defaultBuffer = 64

// Hub fans change events out to in-process subscribers and, when a relay is
// attached, to the other instances sharing the store. All subscribers see
// events in the same order.
type Hub struct {
	origin string
	log    zerolog.Logger

	pubMu sync.Mutex

	mu    sync.RWMutex
	subs  map[*Subscription]struct{}
	relay Relay
}

// NewHub creates a hub identified by origin (the instance id)
func NewHub(origin string) *Hub {
	return &Hub{
		origin: origin,
		log:    logger.Component("feed"),
		subs:   make(map[*Subscription]struct{}),
	}
}

// Origin returns the instance id stamped on locally published events
func (h *Hub) Origin() string { return h.origin }

// SetRelay attaches a cross-instance relay
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
}

// Publish delivers e to local subscribers and forwards it to the relay
func (h *Hub) Publish(ctx context.Context, e Event) {
	if e.Origin == "" {
		e.Origin = h.origin
	}
	h.deliver(e)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay == nil {
		return
	}
	if err := relay.Forward(ctx, e); err != nil {
		h.log.Error().Err(err).Str("kind", string(e.Kind)).Str("id", e.ID).Msg("relay forward failed")
	}
}

// Deliver hands an event received from another instance to local
// subscribers. Events that originated here were already delivered.
func (h *Hub) Deliver(e Event) {
	if e.Origin == h.origin {
		return
	}
	h.deliver(e)
}

// deliver queues e on every subscription. It never waits on a reader, so a
// stalled subscriber cannot hold up the store writer that published.
func (h *Hub) deliver(e Event) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		s.enqueue(e)
	}
}

// Subscribe registers a new subscriber. Callers must Close it.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{
		hub:    h,
		ch:     make(chan Event, defaultBuffer),
		done:   make(chan struct{}),
		notify: make(chan struct{}, 1),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	go s.pump()
	return s
}

// Subscribers reports how many subscriptions are open
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Subscription is one consumer's view of the feed. Events wait in an
// unbounded backlog until the consumer reads them, in publish order.
type Subscription struct {
	hub  *Hub
	ch   chan Event
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	backlog []Event
	notify  chan struct{}
}

// Events returns the delivery channel. It is never closed; select on Done.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Done is closed once the subscription is released
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		s.mu.Lock()
		s.backlog = nil
		s.mu.Unlock()
	})
}

// Pending reports how many events are queued but not yet on the channel
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backlog)
}

func (s *Subscription) enqueue(e Event) {
	select {
	case <-s.done:
		return
	default:
	}
	s.mu.Lock()
	s.backlog = append(s.backlog, e)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// pump moves the backlog onto ch until the subscription closes
func (s *Subscription) pump() {
	for {
		select {
		case <-s.notify:
		case <-s.done:
			return
		}
		for {
			s.mu.Lock()
			if len(s.backlog) == 0 {
				s.mu.Unlock()
				break
			}
			e := s.backlog[0]
			s.backlog[0] = Event{}
			s.backlog = s.backlog[1:]
			s.mu.Unlock()

			select {
			case s.ch <- e:
			case <-s.done:
				return
			}
		}
	}
}
