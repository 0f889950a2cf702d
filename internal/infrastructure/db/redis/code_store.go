package redis

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCodeTTL = 5 * time.Minute
	codeDigits     = 6
)

// CodeStore issues and validates single-use one-time codes in Redis.
// Key format: 2fa:code:<identity_id>
//
// No attempt limit or backoff is enforced here; repeated failures only
// burn time until the code's TTL lapses.
type CodeStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCodeStore(client *redis.Client, ttl time.Duration) *CodeStore {
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	return &CodeStore{client: client, ttl: ttl}
}

// Issue generates a fresh 6-digit code for the identity, replacing any
// outstanding one. Delivery to the user is the caller's concern.
func (s *CodeStore) Issue(ctx context.Context, identityID string) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	if err := s.client.Set(ctx, s.key(identityID), code, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Validate compares the submitted code against the stored one in constant
// time. A matching code is consumed: it cannot be replayed.
func (s *CodeStore) Validate(ctx context.Context, identityID, code string) (bool, error) {
	stored, err := s.client.Get(ctx, s.key(identityID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fetch code: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false, nil
	}

	if err := s.client.Del(ctx, s.key(identityID)).Err(); err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return true, nil
}

func (s *CodeStore) key(identityID string) string {
	return fmt.Sprintf("2fa:code:%s", identityID)
}

func randomCode() (string, error) {
	bound := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		bound.Mul(bound, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
