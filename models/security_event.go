package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SecurityEvent is an append-only audit record. Events are never mutated
// after creation.
type SecurityEvent struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	EventType   string          `gorm:"column:event_type;not null;index" json:"eventType"`
	Severity    string          `gorm:"column:severity;not null" json:"severity"`
	IPAddress   string          `gorm:"column:ip_address;index" json:"ipAddress"`
	Username    *string         `gorm:"column:username;index" json:"username,omitempty"`
	IsBlocked   bool            `gorm:"column:is_blocked" json:"isBlocked"`
	DetailsJSON json.RawMessage `gorm:"column:details_json;type:jsonb" json:"detailsJson,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at;not null;index" json:"createdAt"`
}

// TableName sets the table name for GORM
func (SecurityEvent) TableName() string {
	return "security_events"
}

// BeforeCreate hook to assign an event ID and timestamp if not provided
func (e *SecurityEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return nil
}

// NewSecurityEvent builds an event with marshalled details. Marshal failures
// degrade to an event without details rather than losing the event.
func NewSecurityEvent(eventType string, severity Severity, ipAddress string, details map[string]any) *SecurityEvent {
	e := &SecurityEvent{
		ID:        uuid.New().String(),
		EventType: eventType,
		Severity:  severity.String(),
		IPAddress: ipAddress,
		CreatedAt: time.Now(),
	}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			e.DetailsJSON = raw
		}
	}
	return e
}

// WithUsername attaches the acting principal to the event
func (e *SecurityEvent) WithUsername(username string) *SecurityEvent {
	if username != "" {
		e.Username = &username
	}
	return e
}

// WithBlocked marks the event as having blocked the request
func (e *SecurityEvent) WithBlocked(blocked bool) *SecurityEvent {
	e.IsBlocked = blocked
	return e
}

// EventFilter narrows security event listings
type EventFilter struct {
	EventType string    `json:"eventType,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	Username  string    `json:"username,omitempty"`
	Since     time.Time `json:"since,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}
