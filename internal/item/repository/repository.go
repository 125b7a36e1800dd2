package repository

import (
	"context"

	"triage-backend/internal/item/domain"
)

// ItemRepository is the persistence boundary for items. Failures are
// returned as *domain.StoreError. Update and Delete on an unknown id are
// silent no-ops.
type ItemRepository interface {
	Insert(ctx context.Context, item domain.Item) error
	Update(ctx context.Context, id string, patch domain.Patch) error
	Delete(ctx context.Context, id string) error

	// ListAll returns every item, newest first
	ListAll(ctx context.Context) ([]domain.Item, error)

	// FindByID returns nil, nil when the id does not exist
	FindByID(ctx context.Context, id string) (*domain.Item, error)
}
