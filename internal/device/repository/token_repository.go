package repository

import (
	"context"
	"time"

	"triage-backend/internal/device/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository stores push tokens per device
type TokenRepository interface {
	SaveToken(ctx context.Context, deviceID, token, deviceInfo string) error
	GetTokensByDeviceID(ctx context.Context, deviceID string) ([]domain.DeviceToken, error)
	ListTokens(ctx context.Context) ([]domain.DeviceToken, error)
	DeleteToken(ctx context.Context, token string) error
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) (TokenRepository, error) {
	if err := db.AutoMigrate(&domain.DeviceToken{}); err != nil {
		return nil, err
	}
	return &tokenRepository{db: db}, nil
}

// SaveToken registers a token, moving it to deviceID if another device held it
func (r *tokenRepository) SaveToken(ctx context.Context, deviceID, token, deviceInfo string) error {
	now := time.Now()
	t := &domain.DeviceToken{
		ID:         uuid.New().String(),
		DeviceID:   deviceID,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// INSERT ... ON CONFLICT (token) DO UPDATE
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_id", "device_info", "updated_at"}),
	}).Create(t).Error
}

func (r *tokenRepository) GetTokensByDeviceID(ctx context.Context, deviceID string) ([]domain.DeviceToken, error) {
	var tokens []domain.DeviceToken
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *tokenRepository) ListTokens(ctx context.Context) ([]domain.DeviceToken, error) {
	var tokens []domain.DeviceToken
	if err := r.db.WithContext(ctx).Order("device_id").Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *tokenRepository) DeleteToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&domain.DeviceToken{}).Error
}
