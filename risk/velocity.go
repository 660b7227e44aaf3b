package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FailureWindow counts authentication/authorization failures per principal
// within a sliding window. N failures within the window classify the
// principal as under brute force.
type FailureWindow interface {
	RecordFailure(ctx context.Context, principal string) error
	CountFailures(ctx context.Context, principal string) (int, error)
}

// MemoryWindow is an in-memory sliding-window failure counter
type MemoryWindow struct {
	mu       sync.Mutex
	window   time.Duration
	failures map[string][]time.Time
}

// NewMemoryWindow creates a failure window with the given duration
func NewMemoryWindow(window time.Duration) *MemoryWindow {
	return &MemoryWindow{
		window:   window,
		failures: make(map[string][]time.Time),
	}
}

// RecordFailure appends a failure timestamp for the principal
func (m *MemoryWindow) RecordFailure(ctx context.Context, principal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[principal] = append(m.prune(principal, time.Now()), time.Now())
	return nil
}

// CountFailures returns the number of failures inside the window
func (m *MemoryWindow) CountFailures(ctx context.Context, principal string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pruned := m.prune(principal, time.Now())
	m.failures[principal] = pruned
	return len(pruned), nil
}

func (m *MemoryWindow) prune(principal string, now time.Time) []time.Time {
	var kept []time.Time
	for _, t := range m.failures[principal] {
		if now.Sub(t) < m.window {
			kept = append(kept, t)
		}
	}
	return kept
}

const failureKeyPrefix = "auth_failures:"

// RedisWindow counts failures in Redis so the brute-force signal is shared
// across nodes. INCR with a TTL approximates the sliding window; the
// evaluator tolerates the eventual consistency this implies.
type RedisWindow struct {
	client *redis.Client
	window time.Duration
}

// NewRedisWindow creates a Redis-backed failure window
func NewRedisWindow(client *redis.Client, window time.Duration) *RedisWindow {
	return &RedisWindow{client: client, window: window}
}

// RecordFailure increments the principal's counter, setting the TTL on the
// first failure in the window
func (r *RedisWindow) RecordFailure(ctx context.Context, principal string) error {
	key := failureKeyPrefix + principal
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return fmt.Errorf("failed to set failure window expiry: %w", err)
		}
	}
	return nil
}

// CountFailures returns the principal's failure count inside the window
func (r *RedisWindow) CountFailures(ctx context.Context, principal string) (int, error) {
	count, err := r.client.Get(ctx, failureKeyPrefix+principal).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count failures: %w", err)
	}
	return count, nil
}
