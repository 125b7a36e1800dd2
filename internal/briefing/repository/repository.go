package repository

import (
	"context"

	"triage-backend/internal/briefing/domain"
)

// BriefingRepository caches one briefing per device per day
type BriefingRepository interface {
	// Get returns nil, nil when nothing is cached for the day
	Get(ctx context.Context, deviceID, date string) (*domain.Briefing, error)
	// Save stores or overwrites the briefing for its device and day
	Save(ctx context.Context, b *domain.Briefing) error
}
