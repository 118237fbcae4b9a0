package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore tracks access tokens invalidated by logout before their expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const revokedTokenKeyPrefix = "revoked:jti:"

type redisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore keeps revoked token ids in Redis until the token would have expired anyway.
func NewRedisRevocationStore(client *redis.Client) RevocationStore {
	return &redisRevocationStore{client: client}
}

func (s *redisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedTokenKeyPrefix+jti, "1", ttl).Err()
}

func (s *redisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	_, err := s.client.Get(ctx, revokedTokenKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type memoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewMemoryRevocationStore keeps revoked token ids in process memory.
func NewMemoryRevocationStore() RevocationStore {
	return &memoryRevocationStore{revoked: make(map[string]time.Time)}
}

func (s *memoryRevocationStore) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = time.Now().Add(ttl)
	return nil
}

func (s *memoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}
