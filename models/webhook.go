package models

import (
	"time"

	"gorm.io/gorm"
)

// ProcessedWebhook is the dedup ledger for inbound events. A live
// (non-expired) row for a webhook id means the event was already handled.
// The unique index is what makes MarkWebhookIfNew atomic.
type ProcessedWebhook struct {
	gorm.Model

	WebhookID   string    `gorm:"not null;uniqueIndex" json:"webhook_id"`
	WebhookType string    `gorm:"not null" json:"webhook_type"` // twilio_sms, cal_booking, etc.
	ExpiresAt   time.Time `gorm:"not null;index" json:"expires_at"`
}
