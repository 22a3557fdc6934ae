// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
lock.go - Per-Tenant Restore Lock

RedisLocker uses SET NX PX with a random token and releases with a
compare-and-delete script, so an expired lock taken over by another process is
never released by the original holder.
*/

//nolint:staticcheck // File documentation, not package doc
package restore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/tenantvault/internal/config"
	"github.com/tomtom215/tenantvault/internal/logging"
)

// ErrLocked is returned when another restore holds the tenant lock.
var ErrLocked = errors.New("restore already in progress for tenant")

// DefaultLockTTL bounds how long a crashed holder blocks the tenant.
const DefaultLockTTL = 2 * time.Hour

const lockKeyPrefix = "tenantvault:restore:"

// releaseScript deletes the key only if it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Locker serializes restores per tenant.
type Locker interface {
	// Acquire returns ErrLocked without blocking when the lock is held.
	Acquire(ctx context.Context, tenantID string) (release func(), err error)
}

// redisClient is the subset of *redis.Client used by RedisLocker.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLocker is a Locker shared by every process using the same Redis.
type RedisLocker struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisLocker creates a RedisLocker. ttl defaults to DefaultLockTTL.
func NewRedisLocker(client redisClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, tenantID string) (func(), error) {
	key := lockKeyPrefix + tenantID
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire restore lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrLocked, tenantID)
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("lock", key).Msg("Failed to release restore lock")
		}
	}
	return release, nil
}

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(_ context.Context, tenantID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[tenantID]; busy {
		return nil, fmt.Errorf("%w %s", ErrLocked, tenantID)
	}
	l.held[tenantID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, tenantID)
			l.mu.Unlock()
		})
	}, nil
}

// NewLocker returns a RedisLocker when cfg names a Redis address, otherwise a
// LocalLocker. The close function releases the Redis connection pool.
func NewLocker(ctx context.Context, cfg config.LockConfig) (Locker, func() error, error) {
	if cfg.RedisAddr == "" {
		return NewLocalLocker(), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck,gosec // Best effort cleanup
		return nil, nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
	}

	logging.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis restore lock")
	return NewRedisLocker(client, cfg.TTL), client.Close, nil
}
