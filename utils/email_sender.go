package utils

import (
	"fmt"
	"time"

	"leadflow/config"
	"leadflow/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// SMTPSender delivers follow-up emails over SMTP and logs every attempt
// to the messages table.
type SMTPSender struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	cfg config.SMTPConfig
}

func NewSMTPSender(db *gorm.DB, logger *logrus.Logger, cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{DB: db, Logger: logger, cfg: cfg}
}

// SendEmail sends one outbound email and records it
func (s *SMTPSender) SendEmail(leadID uint, to, subject, body string, sequenceStep int) error {
	m := gomail.NewMessage()
	from := s.cfg.FromEmail
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail)
	}
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	// SMTP has no provider message id; generate one for the log
	messageID := uuid.New().String()

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		s.logMessage(leadID, subject, body, models.MessageStatusFailed, messageID, err.Error(), sequenceStep)
		s.Logger.WithFields(logrus.Fields{
			"lead_id": leadID,
			"step":    sequenceStep,
		}).Errorf("Failed to send email: %v", err)
		return fmt.Errorf("error sending email: %w", err)
	}

	s.logMessage(leadID, subject, body, models.MessageStatusSent, messageID, "", sequenceStep)
	s.touchLastContacted(leadID)
	return nil
}

func (s *SMTPSender) logMessage(leadID uint, subject, body, status, externalID, errMsg string, sequenceStep int) {
	message := models.Message{
		LeadID:       leadID,
		Channel:      models.ChannelEmail,
		Direction:    models.DirectionOutbound,
		Subject:      subject,
		Body:         body,
		Status:       status,
		ExternalID:   externalID,
		ErrorMessage: errMsg,
		SequenceStep: Pointer(sequenceStep),
	}
	if err := s.DB.Create(&message).Error; err != nil {
		s.Logger.Errorf("Failed to log email for lead %d: %v", leadID, err)
	}
}

func (s *SMTPSender) touchLastContacted(leadID uint) {
	if err := s.DB.Model(&models.Lead{}).Where("id = ?", leadID).
		Update("last_contacted_at", time.Now()).Error; err != nil {
		s.Logger.Errorf("Failed to update last_contacted_at for lead %d: %v", leadID, err)
	}
}
