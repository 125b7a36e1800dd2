package repository

import (
	"context"
	"errors"
	"time"

	"triage-backend/internal/briefing/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormBriefingRepository struct {
	db *gorm.DB
}

// NewGormBriefingRepository creates a new GORM-backed BriefingRepository
func NewGormBriefingRepository(db *gorm.DB) (BriefingRepository, error) {
	if err := db.AutoMigrate(&domain.Briefing{}); err != nil {
		return nil, err
	}
	return &gormBriefingRepository{db: db}, nil
}

func (r *gormBriefingRepository) Get(ctx context.Context, deviceID, date string) (*domain.Briefing, error) {
	var b domain.Briefing
	err := r.db.WithContext(ctx).Where("device_id = ? AND date = ?", deviceID, date).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// Save is an atomic upsert on (device_id, date)
func (r *gormBriefingRepository) Save(ctx context.Context, b *domain.Briefing) error {
	now := time.Now()
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "updated_at"}),
	}).Create(b).Error
}
