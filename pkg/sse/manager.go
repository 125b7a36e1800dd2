// Package sse fans server-sent events out to connected HTTP streams.
package sse

import (
	"io"
	"net/http"
	"sync"
	"time"

	"triage-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	clientBuffer  = 64
	messageBuffer = 256
	heartbeat     = 25 * time.Second
)

// Event is one named server-sent event
type Event struct {
	Name string
	Data interface{}
}

type client struct {
	id     string
	key    string
	events chan Event
}

type message struct {
	key   string
	event Event
}

// Manager tracks open streams by key and routes events to them. Run must be
// running for registrations and sends to take effect.
type Manager struct {
	register   chan *client
	unregister chan *client
	messages   chan message
	stop       chan struct{}
	stopOnce   sync.Once
	log        zerolog.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewManager() *Manager {
	return &Manager{
		register:   make(chan *client),
		unregister: make(chan *client),
		messages:   make(chan message, messageBuffer),
		stop:       make(chan struct{}),
		log:        logger.Component("sse"),
		clients:    make(map[string]map[*client]struct{}),
	}
}

// Run owns the client table until Stop is called
func (m *Manager) Run() {
	for {
		select {
		case c := <-m.register:
			m.mu.Lock()
			if m.clients[c.key] == nil {
				m.clients[c.key] = make(map[*client]struct{})
			}
			m.clients[c.key][c] = struct{}{}
			m.mu.Unlock()
			m.log.Debug().Str("key", c.key).Str("client", c.id).Msg("client connected")

		case c := <-m.unregister:
			m.drop(c)

		case msg := <-m.messages:
			m.mu.RLock()
			for c := range m.clients[msg.key] {
				select {
				case c.events <- msg.event:
				default:
					m.log.Warn().Str("key", msg.key).Str("event", msg.event.Name).Msg("client lagging, event dropped")
				}
			}
			m.mu.RUnlock()

		case <-m.stop:
			m.mu.Lock()
			for key, set := range m.clients {
				for c := range set {
					close(c.events)
				}
				delete(m.clients, key)
			}
			m.mu.Unlock()
			return
		}
	}
}

func (m *Manager) drop(c *client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.clients[c.key]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.events)
	if len(set) == 0 {
		delete(m.clients, c.key)
	}
	m.log.Debug().Str("key", c.key).Str("client", c.id).Msg("client disconnected")
}

// Stop disconnects every stream and ends Run
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// SendTo queues an event for every stream open under key. It never blocks;
// when the queue is full the event is dropped.
func (m *Manager) SendTo(key, event string, data interface{}) {
	select {
	case m.messages <- message{key: key, event: Event{Name: event, Data: data}}:
	case <-m.stop:
	default:
		m.log.Warn().Str("key", key).Str("event", event).Msg("event queue full, event dropped")
	}
}

// IsConnected reports whether any stream is open under key
func (m *Manager) IsConnected(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[key]) > 0
}

// ServeHTTP streams events for key until the client goes away or the
// manager stops.
func (m *Manager) ServeHTTP(c *gin.Context, key string) {
	cl := &client{id: uuid.New().String(), key: key, events: make(chan Event, clientBuffer)}

	select {
	case m.register <- cl:
	case <-m.stop:
		c.Status(http.StatusServiceUnavailable)
		return
	}
	defer func() {
		select {
		case m.unregister <- cl:
		case <-m.stop:
		}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("connected", gin.H{"client_id": cl.id})
	c.Writer.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	done := c.Request.Context().Done()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-cl.events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-done:
			return false
		}
	})
}
