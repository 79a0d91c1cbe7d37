// file: service/ratelimit.go

package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore is the pluggable backend for fixed-window rate limit counters.
// A deployment with several server processes must use the Redis-backed store;
// the in-memory store is only correct for a single process.
type CounterStore interface {
	// Increment bumps the counter for key, starting a new window of the
	// given length if none is active, and returns the new count together
	// with the instant the window resets.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
	// Decrement undoes one increment. Used by policies that do not count
	// requests which ultimately succeeded.
	Decrement(ctx context.Context, key string) error
}

// RedisCounterStore implements CounterStore with INCR plus an expiry set on
// the first hit of each window, so the counter is shared and atomic across
// all server processes.
type RedisCounterStore struct {
	client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	if count == 1 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		return count, time.Now().Add(window), nil
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		// Key lost its expiry (e.g. a failed PExpire on the first hit);
		// re-arm it so the window always terminates.
		s.client.PExpire(ctx, key, window)
		ttl = window
	}
	return count, time.Now().Add(ttl), nil
}

func (s *RedisCounterStore) Decrement(ctx context.Context, key string) error {
	return s.client.Decr(ctx, key).Err()
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryCounterStore is the process-local CounterStore implementation.
type MemoryCounterStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

func (s *MemoryCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}

func (s *MemoryCounterStore) Decrement(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.windows[key]; ok && w.count > 0 {
		w.count--
	}
	return nil
}
