package utils

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"leadflow/config"
	"leadflow/models"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TwilioSender delivers SMS through the Twilio Messages API and logs
// every attempt to the messages table.
type TwilioSender struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	cfg    config.TwilioConfig
	client *resty.Client
}

func NewTwilioSender(db *gorm.DB, logger *logrus.Logger, cfg config.TwilioConfig) *TwilioSender {
	client := resty.New().
		SetBaseURL("https://api.twilio.com/2010-04-01").
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetTimeout(10 * time.Second)

	return &TwilioSender{
		DB:     db,
		Logger: logger,
		cfg:    cfg,
		client: client,
	}
}

type twilioMessageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"` // error description on failure
}

// SendSMS sends one outbound SMS and records it. A transport failure is
// logged as a failed message row and returned; retries, if any, are the
// caller's decision.
func (s *TwilioSender) SendSMS(leadID uint, to, body string, sequenceStep int) error {
	var out twilioMessageResponse
	resp, err := s.client.R().
		SetFormData(map[string]string{
			"From": s.cfg.FromNumber,
			"To":   to,
			"Body": body,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/Accounts/" + s.cfg.AccountSID + "/Messages.json")

	if err != nil || resp.IsError() || out.Status == "failed" {
		if err == nil {
			err = fmt.Errorf("twilio returned %s: %s", resp.Status(), out.Message)
		}
		s.logMessage(leadID, body, models.MessageStatusFailed, out.SID, err.Error(), sequenceStep)
		s.Logger.WithFields(logrus.Fields{
			"lead_id": leadID,
			"step":    sequenceStep,
		}).Errorf("Failed to send SMS: %v", err)
		return err
	}

	s.logMessage(leadID, body, models.MessageStatusSent, out.SID, "", sequenceStep)
	s.touchLastContacted(leadID)
	return nil
}

func (s *TwilioSender) logMessage(leadID uint, body, status, externalID, errMsg string, sequenceStep int) {
	message := models.Message{
		LeadID:       leadID,
		Channel:      models.ChannelSMS,
		Direction:    models.DirectionOutbound,
		Body:         body,
		Status:       status,
		ExternalID:   externalID,
		ErrorMessage: errMsg,
		SequenceStep: Pointer(sequenceStep),
	}
	if err := s.DB.Create(&message).Error; err != nil {
		s.Logger.Errorf("Failed to log SMS for lead %d: %v", leadID, err)
	}
}

func (s *TwilioSender) touchLastContacted(leadID uint) {
	if err := s.DB.Model(&models.Lead{}).Where("id = ?", leadID).
		Update("last_contacted_at", time.Now()).Error; err != nil {
		s.Logger.Errorf("Failed to update last_contacted_at for lead %d: %v", leadID, err)
	}
}

// LogInboundSMS records a reply from the lead and suspends automation:
// a human response pauses the sequence but does not close the lead.
func LogInboundSMS(db *gorm.DB, leadID uint, body, externalID string) error {
	message := models.Message{
		LeadID:     leadID,
		Channel:    models.ChannelSMS,
		Direction:  models.DirectionInbound,
		Body:       body,
		Status:     models.MessageStatusDelivered,
		ExternalID: externalID,
	}
	if err := db.Create(&message).Error; err != nil {
		return err
	}

	return db.Model(&models.Lead{}).Where("id = ?", leadID).
		Updates(map[string]interface{}{
			"last_responded_at": time.Now(),
			"status":            models.LeadStatusEngaged,
			"sequence_status":   models.SequencePaused,
			"next_followup_at":  nil,
		}).Error
}

// ValidateTwilioSignature checks the X-Twilio-Signature header for an
// inbound webhook: HMAC-SHA1 over the full URL plus the POST parameters
// appended in sorted key order, base64 encoded.
func ValidateTwilioSignature(authToken, url string, params map[string]string, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
