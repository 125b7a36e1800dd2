package usecase

import (
	"context"
	"time"

	"triage-backend/internal/item/domain"
	"triage-backend/internal/item/feed"
	"triage-backend/internal/item/repository"
	"triage-backend/pkg/logger"

	"github.com/rs/zerolog"
)

// DocumentIndex is the write side of a semantic index
type DocumentIndex interface {
	Upsert(ctx context.Context, id, text string, meta map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

const indexTimeout = 30 * time.Second

// Indexer keeps a semantic index in step with the change feed
type Indexer struct {
	index DocumentIndex
	repo  repository.ItemRepository
	log   zerolog.Logger
}

func NewIndexer(index DocumentIndex, repo repository.ItemRepository) *Indexer {
	return &Indexer{index: index, repo: repo, log: logger.Component("indexer")}
}

// Backfill indexes every stored item
func (x *Indexer) Backfill(ctx context.Context) error {
	items, err := x.repo.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := x.upsert(ctx, it); err != nil {
			x.log.Warn().Err(err).Str("id", it.ID).Msg("indexing failed")
		}
	}
	x.log.Info().Int("items", len(items)).Msg("backfill finished")
	return nil
}

// Follow applies feed events until the subscription closes or ctx ends.
// Index failures are logged and skipped.
func (x *Indexer) Follow(ctx context.Context, sub *feed.Subscription) {
	for {
		select {
		case e := <-sub.Events():
			x.apply(ctx, e)
		case <-sub.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

func (x *Indexer) apply(ctx context.Context, e feed.Event) {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	var err error
	switch e.Kind {
	case feed.KindInsert, feed.KindUpdate:
		if e.Item == nil {
			return
		}
		err = x.upsert(ctx, *e.Item)
	case feed.KindDelete:
		err = x.index.Delete(ctx, e.ID)
	}
	if err != nil {
		x.log.Warn().Err(err).Str("kind", string(e.Kind)).Str("id", e.ID).Msg("index update failed")
	}
}

func (x *Indexer) upsert(ctx context.Context, it domain.Item) error {
	return x.index.Upsert(ctx, it.ID, Document(it), map[string]interface{}{
		"section":   string(it.Section),
		"type":      string(it.Type),
		"context":   string(it.Context),
		"completed": it.Completed,
	})
}
