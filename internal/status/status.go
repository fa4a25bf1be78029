// Package status keeps the last delivery outcome of each event in redis.
// Records are informational and are never consulted before sending.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/franzego/eventmailer/internal/models"
	"github.com/redis/go-redis/v9"
)

var ErrStatusNotFound = errors.New("status not found")

type RedisRecorder struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisRecorder(client *redis.Client, ttl time.Duration) *RedisRecorder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisRecorder{redis: client, ttl: ttl}
}

func key(eventID string) string {
	return fmt.Sprintf("notification:status:%s", eventID)
}

func (r *RedisRecorder) Record(ctx context.Context, s models.DeliveryStatus) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	statusJSON, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, key(s.EventID), statusJSON, r.ttl).Err()
}

func (r *RedisRecorder) Get(ctx context.Context, eventID string) (*models.DeliveryStatus, error) {
	raw, err := r.redis.Get(ctx, key(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, err
	}
	var s models.DeliveryStatus
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &s, nil
}
