package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingValue = "pending"

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Address  string
	Password string
	Database int
	// Prefix is prepended to all keys.
	Prefix string
	// TTL bounds how long completed keys are remembered.
	TTL time.Duration
	// PendingTTL bounds how long a reservation survives a crashed request.
	PendingTTL time.Duration
	Timeout    time.Duration
}

// DefaultRedisConfig returns defaults for address.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address:    address,
		Prefix:     "partline:idem:",
		TTL:        24 * time.Hour,
		PendingTTL: time.Minute,
		Timeout:    2 * time.Second,
	}
}

// RedisStore shares keys across server instances.
type RedisStore struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("idempotency: connect to redis %s: %w", cfg.Address, err)
	}
	return &RedisStore{cfg: cfg, client: client}, nil
}

func (r *RedisStore) key(k string) string {
	return r.cfg.Prefix + k
}

func (r *RedisStore) Begin(ctx context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrEmptyKey
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	ok, err := r.client.SetNX(ctx, r.key(key), pendingValue, r.cfg.PendingTTL).Result()
	if err != nil {
		return Result{}, fmt.Errorf("idempotency: reserve %s: %w", key, err)
	}
	if ok {
		return Result{State: StateNew}, nil
	}

	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; the caller may retry.
		return Result{State: StatePending}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("idempotency: read %s: %w", key, err)
	}
	return parseValue(val)
}

func parseValue(val string) (Result, error) {
	if val == pendingValue {
		return Result{State: StatePending}, nil
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return Result{}, fmt.Errorf("idempotency: corrupt value %q", val)
	}
	return Result{State: StateDone, EventID: uint(id)}, nil
}

func (r *RedisStore) Complete(ctx context.Context, key string, eventID uint) error {
	if key == "" {
		return ErrEmptyKey
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	if err := r.client.Set(ctx, r.key(key), strconv.FormatUint(uint64(eventID), 10), r.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("idempotency: complete %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Abort(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	// Only a pending reservation is released; a completed key stays.
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("idempotency: abort %s: %w", key, err)
	}
	if val != pendingValue {
		return nil
	}
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: abort %s: %w", key, err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
