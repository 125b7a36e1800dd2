package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"triage-backend/internal/item/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case e := <-s.Events():
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHub_FanOutInOrder(t *testing.T) {
	hub := NewHub("local")
	a := hub.Subscribe()
	b := hub.Subscribe()
	defer a.Close()
	defer b.Close()

	ctx := context.Background()
	hub.Publish(ctx, Deleted("1"))
	hub.Publish(ctx, Deleted("2"))
	hub.Publish(ctx, Deleted("3"))

	for _, s := range []*Subscription{a, b} {
		for _, id := range []string{"1", "2", "3"} {
			e := receive(t, s)
			assert.Equal(t, id, e.ID)
			assert.Equal(t, "local", e.Origin)
		}
	}
}

func TestHub_CloseReleasesSubscription(t *testing.T) {
	hub := NewHub("local")
	s := hub.Subscribe()
	require.Equal(t, 1, hub.Subscribers())

	s.Close()
	s.Close()
	assert.Equal(t, 0, hub.Subscribers())

	// publishing after close must not block
	for i := 0; i < defaultBuffer*2; i++ {
		hub.Publish(context.Background(), Deleted("x"))
	}
}

func TestHub_SlowSubscriberClosedMidDelivery(t *testing.T) {
	hub := NewHub("local")
	s := hub.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultBuffer+1; i++ {
			hub.Publish(context.Background(), Deleted("x"))
		}
	}()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a closed subscription")
	}
}

func TestHub_StalledSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub("local")
	stalled := hub.Subscribe()
	reader := hub.Subscribe()
	defer stalled.Close()
	defer reader.Close()

	const n = 100
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			hub.Publish(context.Background(), Deleted(fmt.Sprint(i)))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a subscriber that never reads")
	}

	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprint(i), receive(t, reader).ID)
	}

	// the stalled subscriber still gets everything, in order, once it reads
	assert.Positive(t, stalled.Pending())
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprint(i), receive(t, stalled).ID)
	}
}

type fakeRelay struct {
	mu        sync.Mutex
	forwarded []Event
	err       error
}

func (r *fakeRelay) Forward(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forwarded = append(r.forwarded, e)
	return r.err
}

func (r *fakeRelay) Run(ctx context.Context, _ func(Event)) error {
	<-ctx.Done()
	return nil
}

func (r *fakeRelay) Close() error { return nil }

func TestHub_RelaySkipsOwnEcho(t *testing.T) {
	hub := NewHub("local")
	relay := &fakeRelay{err: errors.New("offline")}
	hub.SetRelay(relay)

	s := hub.Subscribe()
	defer s.Close()

	item := domain.Item{ID: "a1", Title: "x"}
	hub.Publish(context.Background(), Inserted(item))
	require.Len(t, relay.forwarded, 1)
	assert.Equal(t, "local", relay.forwarded[0].Origin)
	assert.Equal(t, "a1", receive(t, s).ID)

	// the relay echoes our own event back; it must not be delivered twice
	hub.Deliver(relay.forwarded[0])
	hub.Deliver(Event{Kind: KindDelete, ID: "b2", Origin: "remote"})

	e := receive(t, s)
	assert.Equal(t, "b2", e.ID)
	assert.Equal(t, "remote", e.Origin)
}

func TestEventEncoding(t *testing.T) {
	due := domain.Date{Year: 2024, Month: time.March, Day: 11}
	item := domain.Item{
		ID: "a1", Raw: "r", Title: "t", Section: domain.SectionNow, Type: domain.TypeTask,
		Context: domain.ContextWork, DueDate: &due,
		CreatedAt: time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
	}
	e := Updated(item)
	e.Origin = "i-1"

	b, err := encode(e)
	require.NoError(t, err)
	back, err := decode(b)
	require.NoError(t, err)
	assert.Equal(t, e, back)

	_, err = decode([]byte("not json"))
	assert.Error(t, err)
}
