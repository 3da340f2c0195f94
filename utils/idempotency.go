package utils

import (
	"time"

	"leadflow/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookTTL is how long a dedup record stays live
const WebhookTTL = 24 * time.Hour

// WebhookGuard deduplicates inbound event processing. Handlers call
// MarkWebhookIfNew before acting: a false result means another delivery
// of the same event already claimed it. The claim is a single
// insert-or-conditional-update against the unique webhook_id index, so
// two near-simultaneous deliveries can never both win.
type WebhookGuard struct {
	DB *gorm.DB
}

func NewWebhookGuard(db *gorm.DB) *WebhookGuard {
	return &WebhookGuard{DB: db}
}

// MarkWebhookIfNew atomically claims a webhook id. Returns true when the
// caller is first (no live record existed); an expired record counts as
// absent and is revived with a fresh TTL.
func (g *WebhookGuard) MarkWebhookIfNew(webhookID, webhookType string) (bool, error) {
	now := time.Now()
	record := models.ProcessedWebhook{
		WebhookID:   webhookID,
		WebhookType: webhookType,
		ExpiresAt:   now.Add(WebhookTTL),
	}

	result := g.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "webhook_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"webhook_type": webhookType,
			"expires_at":   record.ExpiresAt,
			"updated_at":   now,
		}),
		// Only steal the row when the previous claim has expired
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lt{Column: clause.Column{Table: "processed_webhooks", Name: "expires_at"}, Value: now},
		}},
	}).Create(&record)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IsWebhookProcessed reports whether a live dedup record exists. It is a
// read-only view for diagnostics; handlers must use MarkWebhookIfNew.
func (g *WebhookGuard) IsWebhookProcessed(webhookID string) (bool, error) {
	var count int64
	err := g.DB.Model(&models.ProcessedWebhook{}).
		Where("webhook_id = ? AND expires_at > ?", webhookID, time.Now()).
		Count(&count).Error
	return count > 0, err
}

// CleanupExpiredWebhooks deletes stale records and returns the count
func (g *WebhookGuard) CleanupExpiredWebhooks() (int64, error) {
	result := g.DB.Unscoped().
		Where("expires_at < ?", time.Now()).
		Delete(&models.ProcessedWebhook{})
	return result.RowsAffected, result.Error
}
