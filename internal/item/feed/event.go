// Package feed carries row-level change events for the items collection
// from the store to every open session, locally and across instances.
package feed

import (
	"context"
	"encoding/json"

	"triage-backend/internal/item/domain"
)

// Kind is the row-level change that happened
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Event is one change notification. Item is set for inserts and updates.
type Event struct {
	Kind   Kind         `json:"kind"`
	ID     string       `json:"id"`
	Item   *domain.Item `json:"item,omitempty"`
	Origin string       `json:"origin,omitempty"`
}

func Inserted(item domain.Item) Event {
	return Event{Kind: KindInsert, ID: item.ID, Item: &item}
}

func Updated(item domain.Item) Event {
	return Event{Kind: KindUpdate, ID: item.ID, Item: &item}
}

func Deleted(id string) Event {
	return Event{Kind: KindDelete, ID: id}
}

// Publisher accepts change events
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Relay forwards events to other instances and delivers theirs back
type Relay interface {
	Forward(ctx context.Context, e Event) error
	Run(ctx context.Context, deliver func(Event)) error
	Close() error
}

func encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

func decode(b []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(b, &e)
	return e, err
}
