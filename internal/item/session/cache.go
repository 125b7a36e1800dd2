// Package session holds the per-device view of the items collection: an
// optimistic cache reconciled against the change feed, plus the capture and
// briefing state that hang off it.
package session

import (
	"context"
	"errors"
	"time"

	"triage-backend/internal/item/domain"
	"triage-backend/internal/item/feed"
	"triage-backend/internal/item/repository"
	"triage-backend/pkg/logger"

	"github.com/rs/zerolog"
)

var ErrSessionClosed = errors.New("session closed")

const (
	mailboxSize    = 128
	viewBufferSize = 256
	persistTimeout = 15 * time.Second
)

// SyncState reports whether an item's local state has reached the store
type SyncState string

const (
	SyncApplied SyncState = "applied"
	SyncPending SyncState = "pending"
	SyncFailed  SyncState = "failed"
)

// Entry is an item together with its persistence state
type Entry struct {
	Item  domain.Item `json:"item"`
	Sync  SyncState   `json:"sync"`
	Error string      `json:"error,omitempty"`
}

type ViewKind string

const (
	ViewUpsert ViewKind = "upsert"
	ViewRemove ViewKind = "remove"
)

// ViewEvent describes a change to the cache as seen by a UI
type ViewEvent struct {
	Kind  ViewKind `json:"kind"`
	ID    string   `json:"id"`
	Entry *Entry   `json:"entry,omitempty"`
}

// Cache is the session's ordered item list, newest first. Every change
// (local mutations, persistence outcomes, feed events) runs on a single
// goroutine, one message at a time.
type Cache struct {
	repo repository.ItemRepository
	now  func() time.Time
	log  zerolog.Logger

	mailbox chan func()
	done    chan struct{}
	stopped chan struct{}
	writes  *writeQueue

	// owned by the loop goroutine
	items   []domain.Item
	pending map[string]int
	failed  map[string]error
	views   map[chan ViewEvent]struct{}
}

type CacheOption func(*Cache)

// WithClock overrides the time source used for mutation timestamps
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache starts a cache seeded with a snapshot ordered newest first
func NewCache(repo repository.ItemRepository, snapshot []domain.Item, opts ...CacheOption) *Cache {
	c := &Cache{
		repo:    repo,
		now:     time.Now,
		log:     logger.Component("cache"),
		mailbox: make(chan func(), mailboxSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		writes:  newWriteQueue(),
		items:   append([]domain.Item(nil), snapshot...),
		pending: make(map[string]int),
		failed:  make(map[string]error),
		views:   make(map[chan ViewEvent]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.loop()
	go c.writer()
	return c
}

func (c *Cache) loop() {
	defer close(c.stopped)
	for {
		select {
		case msg := <-c.mailbox:
			msg()
		case <-c.done:
			return
		}
	}
}

// send enqueues a message without waiting for it to run
func (c *Cache) send(msg func()) bool {
	select {
	case c.mailbox <- msg:
		return true
	case <-c.done:
		return false
	}
}

// call runs fn on the loop goroutine and waits for it
func (c *Cache) call(fn func()) error {
	ran := make(chan struct{})
	if !c.send(func() { fn(); close(ran) }) {
		return ErrSessionClosed
	}
	select {
	case <-ran:
		return nil
	case <-c.done:
		return ErrSessionClosed
	}
}

// Close stops the loop. Queued writes still reach the store.
func (c *Cache) Close() {
	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	<-c.stopped
	c.writes.close()
}

// Snapshot returns every item with its sync state, newest first
func (c *Cache) Snapshot() ([]Entry, error) {
	var out []Entry
	err := c.call(func() {
		out = make([]Entry, 0, len(c.items))
		for _, it := range c.items {
			out = append(out, c.entry(it))
		}
	})
	return out, err
}

// Items returns a copy of the list, newest first
func (c *Cache) Items() ([]domain.Item, error) {
	var out []domain.Item
	err := c.call(func() {
		out = append([]domain.Item(nil), c.items...)
	})
	return out, err
}

// Active returns the items that are not completed
func (c *Cache) Active() ([]domain.Item, error) {
	items, err := c.Items()
	if err != nil {
		return nil, err
	}
	return domain.Active(items), nil
}

// Get returns one item with its sync state
func (c *Cache) Get(id string) (Entry, error) {
	var (
		out   Entry
		found bool
	)
	err := c.call(func() {
		if i := c.index(id); i >= 0 {
			out, found = c.entry(c.items[i]), true
		}
	})
	if err != nil {
		return Entry{}, err
	}
	if !found {
		return Entry{}, domain.ErrItemNotFound
	}
	return out, nil
}

// Create inserts a new item at the head of the list and persists it in the
// background. The returned channel yields the persistence outcome once.
func (c *Cache) Create(item domain.Item) (<-chan error, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	result := make(chan error, 1)
	var createErr error
	err := c.call(func() {
		if c.index(item.ID) >= 0 {
			createErr = &domain.ValidationError{Field: "id", Message: "duplicate id " + item.ID}
			return
		}
		c.items = append([]domain.Item{item}, c.items...)
		c.persist(item.ID, result, func(ctx context.Context) error {
			return c.repo.Insert(ctx, item)
		})
		c.emitUpsert(item)
	})
	if err != nil {
		return nil, err
	}
	if createErr != nil {
		return nil, createErr
	}
	return result, nil
}

// Discard drops an item whose insert or update failed and has nothing else
// queued. The store is not touched. It reports whether the item was removed.
func (c *Cache) Discard(id string) (bool, error) {
	var removed bool
	err := c.call(func() {
		i := c.index(id)
		if i < 0 || c.pending[id] > 0 {
			return
		}
		if _, ok := c.failed[id]; !ok {
			return
		}
		c.remove(i)
		removed = true
	})
	return removed, err
}

// Move files an item under another section
func (c *Cache) Move(id string, section domain.Section) (domain.Item, error) {
	patch, err := domain.Move(section, c.now())
	if err != nil {
		return domain.Item{}, err
	}
	return c.update(id, func(domain.Item) domain.Patch { return patch })
}

// CycleContext advances work → personal → both → work
func (c *Cache) CycleContext(id string) (domain.Item, error) {
	now := c.now()
	return c.update(id, func(it domain.Item) domain.Patch { return domain.CycleContext(it, now) })
}

// SetContext sets an explicit context
func (c *Cache) SetContext(id string, ctx domain.Context) (domain.Item, error) {
	patch, err := domain.ChangeContext(ctx, c.now())
	if err != nil {
		return domain.Item{}, err
	}
	return c.update(id, func(domain.Item) domain.Patch { return patch })
}

// ToggleCompletion flips the completed flag
func (c *Cache) ToggleCompletion(id string) (domain.Item, error) {
	now := c.now()
	return c.update(id, func(it domain.Item) domain.Patch { return domain.ToggleCompletion(it, now) })
}

// Edit replaces title and notes
func (c *Cache) Edit(id, title, notes string) (domain.Item, error) {
	patch, err := domain.Edit(title, notes, c.now())
	if err != nil {
		return domain.Item{}, err
	}
	return c.update(id, func(domain.Item) domain.Patch { return patch })
}

// update computes the patch from the item's current state inside the loop
// so that read-modify-write cannot interleave with other messages.
func (c *Cache) update(id string, build func(domain.Item) domain.Patch) (domain.Item, error) {
	var (
		out   domain.Item
		found bool
	)
	err := c.call(func() {
		i := c.index(id)
		if i < 0 {
			return
		}
		found = true
		patch := build(c.items[i])
		c.items[i] = patch.Apply(c.items[i])
		out = c.items[i]
		c.persist(id, nil, func(ctx context.Context) error {
			return c.repo.Update(ctx, id, patch)
		})
		c.emitUpsert(out)
	})
	if err != nil {
		return domain.Item{}, err
	}
	if !found {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return out, nil
}

// Delete removes an item locally and from the store
func (c *Cache) Delete(id string) error {
	var found bool
	err := c.call(func() {
		i := c.index(id)
		if i < 0 {
			return
		}
		found = true
		c.remove(i)
		c.persist(id, nil, func(ctx context.Context) error {
			return c.repo.Delete(ctx, id)
		})
	})
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrItemNotFound
	}
	return nil
}

// persist queues op for the background writer and reports its outcome back
// through the mailbox. The optimistic state is never rolled back.
func (c *Cache) persist(id string, result chan<- error, op func(ctx context.Context) error) {
	c.pending[id]++
	c.writes.push(write{id: id, result: result, op: op})
}

// writer applies queued writes one at a time so the store sees them in the
// order the user made them.
func (c *Cache) writer() {
	for {
		w, ok := c.writes.pop()
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err := w.op(ctx)
		cancel()

		if err != nil {
			c.log.Error().Err(err).Str("id", w.id).Msg("persist failed, keeping local state")
		}
		// settle is queued first so a caller woken by result sees the outcome
		id := w.id
		c.send(func() { c.settle(id, err) })
		if w.result != nil {
			w.result <- err
		}
	}
}

func (c *Cache) settle(id string, err error) {
	if c.pending[id] > 0 {
		c.pending[id]--
	}
	if c.pending[id] == 0 {
		delete(c.pending, id)
	}
	if err != nil {
		c.failed[id] = err
	}
	if i := c.index(id); i >= 0 {
		c.emitUpsert(c.items[i])
	}
}

// ApplyFeed enqueues a change event. Events are applied in the order they
// are enqueued.
func (c *Cache) ApplyFeed(e feed.Event) bool {
	return c.send(func() { c.applyFeed(e) })
}

func (c *Cache) applyFeed(e feed.Event) {
	i := c.index(e.ID)
	switch e.Kind {
	case feed.KindInsert:
		if i >= 0 || e.Item == nil {
			return
		}
		c.items = append([]domain.Item{*e.Item}, c.items...)
		c.emitUpsert(*e.Item)

	case feed.KindUpdate:
		if i < 0 || e.Item == nil {
			return
		}
		c.items[i] = *e.Item
		// the stored row is now what we show
		delete(c.failed, e.ID)
		c.emitUpsert(c.items[i])

	case feed.KindDelete:
		if i < 0 {
			return
		}
		c.remove(i)
	}
}

// Follow applies events from sub until the subscription or the cache is
// closed.
func (c *Cache) Follow(sub *feed.Subscription) {
	for {
		select {
		case e := <-sub.Events():
			if !c.ApplyFeed(e) {
				return
			}
		case <-sub.Done():
			return
		case <-c.done:
			return
		}
	}
}

// Subscribe streams view events until cancel is called or the cache closes
func (c *Cache) Subscribe() (<-chan ViewEvent, func()) {
	ch := make(chan ViewEvent, viewBufferSize)
	if err := c.call(func() { c.views[ch] = struct{}{} }); err != nil {
		close(ch)
		return ch, func() {}
	}
	cancel := func() {
		c.send(func() { delete(c.views, ch) })
	}
	return ch, cancel
}

func (c *Cache) index(id string) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (c *Cache) remove(i int) {
	id := c.items[i].ID
	c.items = append(c.items[:i], c.items[i+1:]...)
	delete(c.failed, id)
	c.emit(ViewEvent{Kind: ViewRemove, ID: id})
}

func (c *Cache) entry(it domain.Item) Entry {
	e := Entry{Item: it, Sync: SyncApplied}
	if err, ok := c.failed[it.ID]; ok {
		e.Sync = SyncFailed
		e.Error = err.Error()
	} else if c.pending[it.ID] > 0 {
		e.Sync = SyncPending
	}
	return e
}

func (c *Cache) emitUpsert(it domain.Item) {
	e := c.entry(it)
	c.emit(ViewEvent{Kind: ViewUpsert, ID: it.ID, Entry: &e})
}

func (c *Cache) emit(ev ViewEvent) {
	for ch := range c.views {
		select {
		case ch <- ev:
		default:
			c.log.Warn().Str("id", ev.ID).Msg("view subscriber lagging, event dropped")
		}
	}
}
