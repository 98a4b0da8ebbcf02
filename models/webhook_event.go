// Package models contains domain entities and business models for the referral marketplace
package models

import (
	"time"
)

// WebhookEvent is the replay-protection ledger for payment provider events.
// The unique EventID constraint is the serialization point: a replayed event
// fails the insert and is acknowledged without side effects.
type WebhookEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"size:255;not null;uniqueIndex:uk_webhook_events_event_id" json:"event_id"`
	EventType string    `gorm:"size:100;not null;index:idx_webhook_events_type" json:"event_type"`
	Status    string    `gorm:"size:20;not null;default:processed" json:"status"`
	Detail    *string   `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_webhook_events_created_at" json:"created_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// Webhook event processing status constants
const (
	WebhookStatusProcessed = "processed"
	WebhookStatusDropped   = "dropped"
	WebhookStatusFailed    = "failed"
)

// WebhookEventFilter represents filter criteria for webhook event queries
type WebhookEventFilter struct {
	ID            *uint
	EventID       *string
	EventType     *string
	Status        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
