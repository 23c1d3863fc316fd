package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookEventStatus string

const (
	WebhookProcessed WebhookEventStatus = "PROCESSED"
	WebhookIgnored   WebhookEventStatus = "IGNORED"
	WebhookFailed    WebhookEventStatus = "FAILED"
)

// WebhookEvent logs every authenticated provider callback. The unique
// (provider, provider event id) pair dedupes redeliveries.
type WebhookEvent struct {
	ID              uint               `gorm:"primaryKey" json:"id"`
	Provider        GatewayType        `gorm:"uniqueIndex:idx_webhook_provider_event;not null" json:"provider"`
	ProviderEventID string             `gorm:"uniqueIndex:idx_webhook_provider_event;not null" json:"provider_event_id"`
	GatewayID       uint               `gorm:"index" json:"gateway_id"`
	EventType       string             `json:"event_type"`
	TransactionID   *uint              `gorm:"index" json:"transaction_id,omitempty"`
	Payload         datatypes.JSON     `json:"payload,omitempty"`
	Status          WebhookEventStatus `gorm:"not null" json:"status"`
	Error           string             `json:"error,omitempty"`
	ProcessedAt     *time.Time         `json:"processed_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}
