package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultMarkerTTL = 12 * time.Hour

// MarkerStore is the durable two-factor "verified" flag backed by Redis.
// Keys are per identity, so one identity's verification can never leak to
// another client of the same store.
// Key format: 2fa:verified:<identity_id>
type MarkerStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMarkerStore creates a MarkerStore. A non-positive ttl falls back to
// the default; the TTL bounds how long a passed second factor is
// remembered across reloads.
func NewMarkerStore(client *redis.Client, ttl time.Duration) *MarkerStore {
	if ttl <= 0 {
		ttl = defaultMarkerTTL
	}
	return &MarkerStore{client: client, ttl: ttl}
}

func (s *MarkerStore) Set(ctx context.Context, identityID string) error {
	return s.client.Set(ctx, s.key(identityID), "1", s.ttl).Err()
}

func (s *MarkerStore) Clear(ctx context.Context, identityID string) error {
	return s.client.Del(ctx, s.key(identityID)).Err()
}

func (s *MarkerStore) IsSet(ctx context.Context, identityID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(identityID)).Result()
	if err != nil {
		return false, fmt.Errorf("marker check: %w", err)
	}
	return n > 0, nil
}

func (s *MarkerStore) key(identityID string) string {
	return fmt.Sprintf("2fa:verified:%s", identityID)
}
