package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"triage-backend/internal/briefing/domain"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

// briefings only matter for their own day; two days covers time zone skew
const defaultBriefingTTL = 48 * time.Hour

type redisBriefingRepository struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBriefingRepository creates a Redis-backed BriefingRepository
func NewRedisBriefingRepository(client *redislib.Client, ttl time.Duration) BriefingRepository {
	if ttl <= 0 {
		ttl = defaultBriefingTTL
	}
	return &redisBriefingRepository{client: client, prefix: "briefing:", ttl: ttl}
}

func (r *redisBriefingRepository) Get(ctx context.Context, deviceID, date string) (*domain.Briefing, error) {
	result, err := r.client.Get(ctx, r.key(deviceID, date)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var b domain.Briefing
	if err := json.Unmarshal([]byte(result), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *redisBriefingRepository) Save(ctx context.Context, b *domain.Briefing) error {
	now := time.Now()
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(b.DeviceID, b.Date), payload, r.ttl).Err()
}

func (r *redisBriefingRepository) key(deviceID, date string) string {
	return fmt.Sprintf("%s%s:%s", r.prefix, deviceID, date)
}
