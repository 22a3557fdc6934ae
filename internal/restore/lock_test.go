// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package restore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis implements redisClient with SET NX and the release script.
type fakeRedis struct {
	mu   sync.Mutex
	keys map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if script != releaseScript {
		return redis.NewCmdResult(nil, errors.New("unexpected script"))
	}
	if f.keys[keys[0]] == args[0].(string) {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Acquire(ctx, "t1"); !errors.Is(err, ErrLocked) {
		t.Errorf("second Acquire error = %v, want ErrLocked", err)
	}
	if r2, err := l.Acquire(ctx, "t2"); err != nil {
		t.Errorf("other tenant blocked: %v", err)
	} else {
		r2()
	}

	release()
	release()
	again, err := l.Acquire(ctx, "t1")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again()
}

func TestRedisLocker(t *testing.T) {
	fake := newFakeRedis()
	l := NewRedisLocker(fake, 0)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if fake.ttls[lockKeyPrefix+"t1"] != DefaultLockTTL {
		t.Errorf("ttl = %v", fake.ttls[lockKeyPrefix+"t1"])
	}
	if _, err := l.Acquire(ctx, "t1"); !errors.Is(err, ErrLocked) {
		t.Errorf("second Acquire error = %v", err)
	}

	release()
	if _, held := fake.keys[lockKeyPrefix+"t1"]; held {
		t.Error("release did not delete the key")
	}
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	fake := newFakeRedis()
	l := NewRedisLocker(fake, time.Minute)

	release, err := l.Acquire(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}

	// The lock expired and another process took it.
	fake.keys[lockKeyPrefix+"t1"] = "someone-else"
	release()

	if fake.keys[lockKeyPrefix+"t1"] != "someone-else" {
		t.Error("release deleted a lock it no longer owned")
	}
}

func TestRedisLocker_Error(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")

	_, err := NewRedisLocker(fake, time.Minute).Acquire(context.Background(), "t1")
	if err == nil || errors.Is(err, ErrLocked) {
		t.Errorf("error = %v, want connection failure", err)
	}
}
