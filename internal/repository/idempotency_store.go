package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyState describes what is known about a request key.
type IdempotencyState int

const (
	// IdempotencyReserved means the caller now owns the key and must Complete or Release it.
	IdempotencyReserved IdempotencyState = iota
	// IdempotencyInProgress means another request holds the key.
	IdempotencyInProgress
	// IdempotencyCompleted means a response was stored for the key.
	IdempotencyCompleted
)

// IdempotencyStore remembers registration attempts by client supplied key.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (IdempotencyState, []byte, error)
	Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

const (
	idempotencyKeyPrefix = "idem:register:"
	pendingMarker        = "\x00pending"
)

type redisIdempotencyStore struct {
	client *redis.Client
}

// NewRedisIdempotencyStore stores keys in Redis with SETNX semantics.
func NewRedisIdempotencyStore(client *redis.Client) IdempotencyStore {
	return &redisIdempotencyStore{client: client}
}

func (s *redisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (IdempotencyState, []byte, error) {
	redisKey := idempotencyKeyPrefix + key
	ok, err := s.client.SetNX(ctx, redisKey, pendingMarker, ttl).Result()
	if err != nil {
		return 0, nil, err
	}
	if ok {
		return IdempotencyReserved, nil, nil
	}

	val, err := s.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		return s.Reserve(ctx, key, ttl)
	}
	if err != nil {
		return 0, nil, err
	}
	if string(val) == pendingMarker {
		return IdempotencyInProgress, nil, nil
	}
	return IdempotencyCompleted, val, nil
}

func (s *redisIdempotencyStore) Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyKeyPrefix+key, response, ttl).Err()
}

func (s *redisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

type memoryIdempotencyEntry struct {
	response  []byte
	pending   bool
	expiresAt time.Time
}

type memoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]memoryIdempotencyEntry
	now     func() time.Time
}

// NewMemoryIdempotencyStore keeps keys in process memory.
func NewMemoryIdempotencyStore() IdempotencyStore {
	return &memoryIdempotencyStore{entries: make(map[string]memoryIdempotencyEntry), now: time.Now}
}

func (s *memoryIdempotencyStore) Reserve(_ context.Context, key string, ttl time.Duration) (IdempotencyState, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && s.now().Before(entry.expiresAt) {
		if entry.pending {
			return IdempotencyInProgress, nil, nil
		}
		return IdempotencyCompleted, entry.response, nil
	}
	s.entries[key] = memoryIdempotencyEntry{pending: true, expiresAt: s.now().Add(ttl)}
	return IdempotencyReserved, nil, nil
}

func (s *memoryIdempotencyStore) Complete(_ context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryIdempotencyEntry{response: response, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
