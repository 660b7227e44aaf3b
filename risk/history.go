package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Observation is what the evaluator remembers about a principal between
// assessments: where they were last seen, which device fingerprints they
// have used, and how they were last classified.
type Observation struct {
	Country      string    `json:"country,omitempty"`
	Latitude     float64   `json:"latitude,omitempty"`
	Longitude    float64   `json:"longitude,omitempty"`
	HasLocation  bool      `json:"hasLocation"`
	Fingerprints []string  `json:"fingerprints,omitempty"`
	LastSeen     time.Time `json:"lastSeen"`
	LastLevel    string    `json:"lastLevel,omitempty"`
}

// KnowsFingerprint reports whether the fingerprint has been seen before
func (o *Observation) KnowsFingerprint(fp string) bool {
	for _, known := range o.Fingerprints {
		if known == fp {
			return true
		}
	}
	return false
}

// PrincipalHistory stores the last observation per principal. The evaluator
// tolerates eventual consistency here; only per-principal recency matters.
type PrincipalHistory interface {
	Last(ctx context.Context, principal string) (*Observation, error)
	Save(ctx context.Context, principal string, obs *Observation) error
}

// MemoryHistory is an in-memory observation store
type MemoryHistory struct {
	mu   sync.RWMutex
	data map[string]Observation
}

// NewMemoryHistory creates an empty in-memory history
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{data: make(map[string]Observation)}
}

// Last returns the principal's last observation, or nil for first-timers
func (m *MemoryHistory) Last(ctx context.Context, principal string) (*Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if obs, ok := m.data[principal]; ok {
		return &obs, nil
	}
	return nil, nil
}

// Save replaces the principal's observation
func (m *MemoryHistory) Save(ctx context.Context, principal string, obs *Observation) error {
	if obs == nil {
		return fmt.Errorf("observation must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[principal] = *obs
	return nil
}

const (
	historyKeyPrefix = "principal_history:"
	historyTTL       = 30 * 24 * time.Hour
)

// RedisHistory shares principal observations across nodes
type RedisHistory struct {
	client *redis.Client
}

// NewRedisHistory creates a Redis-backed observation store
func NewRedisHistory(client *redis.Client) *RedisHistory {
	return &RedisHistory{client: client}
}

// Last returns the principal's last observation, or nil for first-timers
func (r *RedisHistory) Last(ctx context.Context, principal string) (*Observation, error) {
	payload, err := r.client.Get(ctx, historyKeyPrefix+principal).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read principal history: %w", err)
	}
	var obs Observation
	if err := json.Unmarshal(payload, &obs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal principal history: %w", err)
	}
	return &obs, nil
}

// Save replaces the principal's observation
func (r *RedisHistory) Save(ctx context.Context, principal string, obs *Observation) error {
	payload, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to marshal principal history: %w", err)
	}
	if err := r.client.Set(ctx, historyKeyPrefix+principal, payload, historyTTL).Err(); err != nil {
		return fmt.Errorf("failed to save principal history: %w", err)
	}
	return nil
}
