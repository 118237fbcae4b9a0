package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bid2build/bid2build/internal/config"
	"github.com/bid2build/bid2build/internal/repository"
)

const redisDialTimeout = 3 * time.Second

// Redis holds registration idempotency keys and revoked token ids.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects and waits for the server to answer a PING. An unreachable server is an error.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: redisDialTimeout,
		MaxRetries:  1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}

	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &Redis{Client: client}, nil
}

// IdempotencyStore returns the registration replay store kept in this server.
func (r *Redis) IdempotencyStore() repository.IdempotencyStore {
	return repository.NewRedisIdempotencyStore(r.Client)
}

// RevocationStore returns the logout deny-list kept in this server.
func (r *Redis) RevocationStore() repository.RevocationStore {
	return repository.NewRedisRevocationStore(r.Client)
}

// Ping is the readiness check.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}
