package repository

import (
	"context"
	"errors"

	"triage-backend/internal/item/domain"
	"triage-backend/pkg/logger"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// gormItemRepository implements ItemRepository using GORM
type gormItemRepository struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewGormItemRepository creates a GORM-backed ItemRepository and migrates
// the items table.
func NewGormItemRepository(db *gorm.DB) (ItemRepository, error) {
	if err := db.AutoMigrate(&ItemRow{}); err != nil {
		return nil, domain.WrapStoreError("migrate", err)
	}
	return &gormItemRepository{db: db, log: logger.Component("item-store")}, nil
}

func (r *gormItemRepository) Insert(ctx context.Context, item domain.Item) error {
	row := ToRow(item)
	return domain.WrapStoreError("insert", r.db.WithContext(ctx).Create(&row).Error)
}

func (r *gormItemRepository) Update(ctx context.Context, id string, patch domain.Patch) error {
	cols := patchColumns(patch)
	if len(cols) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&ItemRow{}).Where("id = ?", id).Updates(cols).Error
	return domain.WrapStoreError("update", err)
}

func (r *gormItemRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Delete(&ItemRow{}, "id = ?", id).Error
	return domain.WrapStoreError("delete", err)
}

func (r *gormItemRepository) ListAll(ctx context.Context) ([]domain.Item, error) {
	var rows []ItemRow
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, domain.WrapStoreError("list", err)
	}

	items := make([]domain.Item, 0, len(rows))
	for _, row := range rows {
		item, err := FromRow(row)
		if err != nil {
			r.log.Warn().Err(err).Str("id", row.ID).Msg("skipping unreadable row")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *gormItemRepository) FindByID(ctx context.Context, id string) (*domain.Item, error) {
	var row ItemRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, domain.WrapStoreError("find", err)
	}
	item, err := FromRow(row)
	if err != nil {
		return nil, domain.WrapStoreError("find", err)
	}
	return &item, nil
}
