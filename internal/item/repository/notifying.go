package repository

import (
	"context"

	"triage-backend/internal/item/domain"
	"triage-backend/internal/item/feed"
)

// NotifyingRepository publishes a change event after every successful
// mutation of the wrapped repository. Updates re-read the row so the event
// carries the full stored item.
type NotifyingRepository struct {
	ItemRepository
	pub feed.Publisher
}

func NewNotifyingRepository(inner ItemRepository, pub feed.Publisher) *NotifyingRepository {
	return &NotifyingRepository{ItemRepository: inner, pub: pub}
}

func (r *NotifyingRepository) Insert(ctx context.Context, item domain.Item) error {
	if err := r.ItemRepository.Insert(ctx, item); err != nil {
		return err
	}
	r.pub.Publish(ctx, feed.Inserted(item))
	return nil
}

func (r *NotifyingRepository) Update(ctx context.Context, id string, patch domain.Patch) error {
	if err := r.ItemRepository.Update(ctx, id, patch); err != nil {
		return err
	}
	item, err := r.ItemRepository.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}
	r.pub.Publish(ctx, feed.Updated(*item))
	return nil
}

func (r *NotifyingRepository) Delete(ctx context.Context, id string) error {
	if err := r.ItemRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.pub.Publish(ctx, feed.Deleted(id))
	return nil
}
