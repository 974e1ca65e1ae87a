package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig controls lock lifetime and how long Lock waits.
type RedisConfig struct {
	// TTL bounds how long a crashed holder can block the key.
	TTL time.Duration
	// Wait is the maximum time spent retrying before ErrNotObtained.
	Wait time.Duration
	// Backoff between attempts.
	Backoff time.Duration
	// Prefix namespaces keys, e.g. "ledger:".
	Prefix string
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.TTL <= 0 {
		c.TTL = 10 * time.Second
	}
	if c.Wait <= 0 {
		c.Wait = 5 * time.Second
	}
	if c.Backoff <= 0 {
		c.Backoff = 25 * time.Millisecond
	}
	return c
}

// Redis is a distributed Locker backed by redislock.
type Redis struct {
	client *redislock.Client
	cfg    RedisConfig
	logger *zap.Logger
}

func NewRedis(rdb redis.UniversalClient, cfg RedisConfig, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client: redislock.New(rdb),
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.Wait)
	defer cancel()

	fullKey := r.cfg.Prefix + key
	l, err := r.client.Obtain(waitCtx, fullKey, r.cfg.TTL, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(r.cfg.Backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) || (err != nil && waitCtx.Err() != nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, fullKey)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain redis lock %s: %w", fullKey, err)
	}

	return func() {
		// The request context may already be cancelled; release regardless.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.Release(releaseCtx); err != nil {
			level := zap.ErrorLevel
			if errors.Is(err, redislock.ErrLockNotHeld) {
				level = zap.WarnLevel
			}
			r.logger.Log(level, "release redis lock", zap.String("key", fullKey), zap.Error(err))
		}
	}, nil
}
