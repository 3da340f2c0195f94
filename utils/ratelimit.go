package utils

import (
	"fmt"
	"math"
	"time"

	"leadflow/models"

	"gorm.io/gorm"
)

const (
	// SMSMinInterval is the minimum gap between two SMS to the same lead
	SMSMinInterval = 60 * time.Second
	// SMSDailyLimit caps SMS per lead per calendar day
	SMSDailyLimit = 5
)

// RateLimitResult is the outcome of a rate-limit check. RetryAfter is
// only set for interval violations; daily-cap violations require waiting
// for the midnight rollover.
type RateLimitResult struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"` // seconds
}

// RateLimiter enforces per-lead SMS send constraints using the counters
// stored on the lead row. Email is not rate limited.
type RateLimiter struct {
	DB *gorm.DB
}

func NewRateLimiter(db *gorm.DB) *RateLimiter {
	return &RateLimiter{DB: db}
}

// CheckSMSRateLimit reports whether an SMS may be sent to the lead now
func (rl *RateLimiter) CheckSMSRateLimit(leadID uint) (RateLimitResult, error) {
	var lead models.Lead
	if err := rl.DB.Select("last_sms_at", "sms_count_today", "sms_count_reset_at").
		First(&lead, leadID).Error; err != nil {
		return RateLimitResult{Allowed: false, Reason: "lead not found"}, err
	}

	now := time.Now()

	// Roll the daily counter over if the reset boundary has passed
	countToday := lead.SMSCountToday
	if lead.SMSCountResetAt == nil || !now.Before(*lead.SMSCountResetAt) {
		countToday = 0
	}

	if countToday >= SMSDailyLimit {
		return RateLimitResult{
			Allowed: false,
			Reason:  fmt.Sprintf("daily SMS limit reached (%d/day)", SMSDailyLimit),
		}, nil
	}

	if lead.LastSMSAt != nil {
		elapsed := now.Sub(*lead.LastSMSAt)
		if elapsed < SMSMinInterval {
			retryAfter := int(math.Ceil((SMSMinInterval - elapsed).Seconds()))
			return RateLimitResult{
				Allowed:    false,
				Reason:     "too soon since last SMS (min 1 minute)",
				RetryAfter: retryAfter,
			}, nil
		}
	}

	return RateLimitResult{Allowed: true}, nil
}

// RecordSMSSent updates the lead's counters after a send attempt. The
// same rollover logic as the check applies before incrementing, so the
// counter resets exactly once per boundary no matter how many checks ran.
func (rl *RateLimiter) RecordSMSSent(leadID uint) error {
	var lead models.Lead
	if err := rl.DB.Select("sms_count_today", "sms_count_reset_at").
		First(&lead, leadID).Error; err != nil {
		return err
	}

	now := time.Now()

	countToday := lead.SMSCountToday
	resetAt := lead.SMSCountResetAt
	if resetAt == nil || !now.Before(*resetAt) {
		countToday = 0
		midnight := nextLocalMidnight(now)
		resetAt = &midnight
	}
	countToday++

	return rl.DB.Model(&models.Lead{}).Where("id = ?", leadID).
		Updates(map[string]interface{}{
			"last_sms_at":        now,
			"sms_count_today":    countToday,
			"sms_count_reset_at": resetAt,
		}).Error
}

// SMSRateLimitStatus returns the current counters for display
func (rl *RateLimiter) SMSRateLimitStatus(leadID uint) (map[string]interface{}, error) {
	var lead models.Lead
	if err := rl.DB.Select("last_sms_at", "sms_count_today", "sms_count_reset_at").
		First(&lead, leadID).Error; err != nil {
		return nil, err
	}

	countToday := lead.SMSCountToday
	if lead.SMSCountResetAt != nil && !time.Now().Before(*lead.SMSCountResetAt) {
		countToday = 0
	}

	return map[string]interface{}{
		"sms_count_today": countToday,
		"daily_limit":     SMSDailyLimit,
		"last_sms_at":     lead.LastSMSAt,
		"reset_at":        lead.SMSCountResetAt,
	}, nil
}

func nextLocalMidnight(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day+1, 0, 0, 0, 0, now.Location())
}
