package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Hung6066/IVF-sub008/models"
)

// Recorder appends security events and serves recent-event queries. Appends
// from concurrent requests are independent; ordering is only guaranteed per
// principal via timestamps, which is all the threat scoring needs.
type Recorder interface {
	Record(ctx context.Context, event *models.SecurityEvent) error
	Recent(ctx context.Context, filter models.EventFilter) ([]models.SecurityEvent, error)
}

// GormRecorder persists security events to the database
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder creates a database-backed event recorder
func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

// Record appends the event. Events are never updated after creation.
func (r *GormRecorder) Record(ctx context.Context, event *models.SecurityEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to record security event: %w", err)
	}
	slog.Info("Security event recorded",
		"eventType", event.EventType,
		"severity", event.Severity,
		"ip", event.IPAddress,
		"blocked", event.IsBlocked)
	return nil
}

// Recent returns the most recent events matching the filter, newest first
func (r *GormRecorder) Recent(ctx context.Context, filter models.EventFilter) ([]models.SecurityEvent, error) {
	query := r.db.WithContext(ctx).Model(&models.SecurityEvent{})
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.IPAddress != "" {
		query = query.Where("ip_address = ?", filter.IPAddress)
	}
	if filter.Username != "" {
		query = query.Where("username = ?", filter.Username)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []models.SecurityEvent
	if err := query.Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	return events, nil
}

// RecordAsync appends the event in the background (fire-and-forget). Used
// where the caller must not block on the event log, e.g. risk assessments
// on the read path. A detached context keeps the append alive after the
// request ends.
func RecordAsync(recorder Recorder, event *models.SecurityEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := recorder.Record(ctx, event); err != nil {
			slog.Error("Failed to record security event asynchronously",
				"eventType", event.EventType, "error", err)
		}
	}()
}

// MemoryRecorder keeps events in memory for tests
type MemoryRecorder struct {
	mu     sync.RWMutex
	events []models.SecurityEvent
}

// NewMemoryRecorder creates an empty in-memory recorder
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record appends the event
func (r *MemoryRecorder) Record(ctx context.Context, event *models.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

// Recent returns matching events, newest first
func (r *MemoryRecorder) Recent(ctx context.Context, filter models.EventFilter) ([]models.SecurityEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.SecurityEvent
	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if filter.IPAddress != "" && e.IPAddress != filter.IPAddress {
			continue
		}
		if filter.Username != "" && (e.Username == nil || *e.Username != filter.Username) {
			continue
		}
		if !filter.Since.IsZero() && e.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Events returns a copy of everything recorded, oldest first
func (r *MemoryRecorder) Events() []models.SecurityEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SecurityEvent, len(r.events))
	copy(out, r.events)
	return out
}
