package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewRedisClient builds a Redis client from the config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock shared by every process using the same Redis.
type RedisLocker struct {
	client *redis.Client
	cfg    config.LockingConfig
	logger *zerolog.Logger
}

func NewRedisLocker(client *redis.Client, cfg config.LockingConfig, logger *zerolog.Logger) *RedisLocker {
	return &RedisLocker{client: client, cfg: cfg, logger: logger}
}

func (l *RedisLocker) key(key string) string {
	if l.cfg.KeyPrefix == "" {
		return key
	}
	return l.cfg.KeyPrefix + ":" + key
}

// Acquire polls until the key is free or the wait timeout expires. Redis
// failures are returned as-is; contention is reported as ErrRetryable.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l.client == nil {
		return nil, errors.New("redis client is nil")
	}

	redisKey := l.key(key)
	token := uuid.NewString()
	poll := l.cfg.PollInterval
	if poll <= 0 {
		poll = 25 * time.Millisecond
	}
	deadline := time.Now().Add(l.cfg.WaitTimeout)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire redis lock %s: %w", redisKey, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: lock %s is held", domain.ErrRetryable, key)
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: lock %s: %v", domain.ErrRetryable, key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
			// The TTL frees the key eventually.
			l.logger.Warn().Err(err).Str("key", redisKey).Msg("Failed to release redis lock")
		}
	}
}
