package utils

import (
	"testing"
	"time"

	"leadflow/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkWebhookIfNew(t *testing.T) {
	db := newTestDB(t)
	guard := NewWebhookGuard(db)

	first, err := guard.MarkWebhookIfNew("twilio:SM123", "twilio_sms")
	require.NoError(t, err)
	assert.True(t, first)

	// Second delivery of the same event loses the claim
	second, err := guard.MarkWebhookIfNew("twilio:SM123", "twilio_sms")
	require.NoError(t, err)
	assert.False(t, second)

	// A different event is unaffected
	other, err := guard.MarkWebhookIfNew("twilio:SM456", "twilio_sms")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMarkWebhookIfNewRevivesExpiredRecord(t *testing.T) {
	db := newTestDB(t)
	guard := NewWebhookGuard(db)

	first, err := guard.MarkWebhookIfNew("cal:booking-1", "cal_booking")
	require.NoError(t, err)
	assert.True(t, first)

	// Age the record past its TTL
	expired := time.Now().Add(-1 * time.Minute)
	require.NoError(t, db.Model(&models.ProcessedWebhook{}).
		Where("webhook_id = ?", "cal:booking-1").
		Update("expires_at", expired).Error)

	// An expired claim counts as absent and gets a fresh TTL
	again, err := guard.MarkWebhookIfNew("cal:booking-1", "cal_booking")
	require.NoError(t, err)
	assert.True(t, again)

	var record models.ProcessedWebhook
	require.NoError(t, db.Where("webhook_id = ?", "cal:booking-1").First(&record).Error)
	assert.True(t, record.ExpiresAt.After(time.Now()))

	// And the revived claim blocks further deliveries
	blocked, err := guard.MarkWebhookIfNew("cal:booking-1", "cal_booking")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestIsWebhookProcessed(t *testing.T) {
	db := newTestDB(t)
	guard := NewWebhookGuard(db)

	processed, err := guard.IsWebhookProcessed("twilio:SM999")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = guard.MarkWebhookIfNew("twilio:SM999", "twilio_sms")
	require.NoError(t, err)

	processed, err = guard.IsWebhookProcessed("twilio:SM999")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestCleanupExpiredWebhooks(t *testing.T) {
	db := newTestDB(t)
	guard := NewWebhookGuard(db)

	for _, id := range []string{"a", "b", "c"} {
		_, err := guard.MarkWebhookIfNew("twilio:"+id, "twilio_sms")
		require.NoError(t, err)
	}

	expired := time.Now().Add(-1 * time.Minute)
	require.NoError(t, db.Model(&models.ProcessedWebhook{}).
		Where("webhook_id IN ?", []string{"twilio:a", "twilio:b"}).
		Update("expires_at", expired).Error)

	deleted, err := guard.CleanupExpiredWebhooks()
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// The live record survives
	alive, err := guard.IsWebhookProcessed("twilio:c")
	require.NoError(t, err)
	assert.True(t, alive)
}
