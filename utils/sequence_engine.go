package utils

import (
	"errors"
	"fmt"
	"time"

	"leadflow/models"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SMSSender delivers one outbound SMS. Implementations own message
// logging and retries; the engine treats sends as fire-and-forget.
type SMSSender interface {
	SendSMS(leadID uint, to, body string, sequenceStep int) error
}

// EmailSender delivers one outbound email
type EmailSender interface {
	SendEmail(leadID uint, to, subject, body string, sequenceStep int) error
}

// SequenceEngine is the per-lead follow-up state machine. It decides on
// each trigger whether to send a step's messages, advance, pause,
// complete, or expire a lead's sequence.
type SequenceEngine struct {
	DB      *gorm.DB
	Logger  *logrus.Logger
	SMS     SMSSender
	Email   EmailSender
	Limiter *RateLimiter
}

func NewSequenceEngine(db *gorm.DB, logger *logrus.Logger, sms SMSSender, email EmailSender) *SequenceEngine {
	return &SequenceEngine{
		DB:      db,
		Logger:  logger,
		SMS:     sms,
		Email:   email,
		Limiter: NewRateLimiter(db),
	}
}

// ProcessInstantResponse executes step 0 for a freshly created lead,
// marks it contacted, and schedules step 1.
func (e *SequenceEngine) ProcessInstantResponse(leadID uint) error {
	var lead models.Lead
	if err := e.DB.First(&lead, leadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			e.Logger.Errorf("Lead not found: %d", leadID)
			return nil
		}
		return err
	}

	// Already processed; lead creation handlers may race
	if lead.SequenceStep >= 0 {
		e.Logger.Warnf("Instant response already processed for lead %d", leadID)
		return nil
	}

	step, err := e.findStep(0)
	if err != nil {
		return err
	}

	if step == nil || !step.IsActive {
		e.Logger.Info("No active instant step configured")
		// "No content" counts as a no-op send; still schedule step 1
		if err := e.DB.Model(&lead).Update("sequence_step", 0).Error; err != nil {
			return err
		}
		return e.scheduleNextStep(&lead, 0)
	}

	settings, err := LoadBusinessSettings(e.DB)
	if err != nil {
		return err
	}

	e.sendStepMessages(&lead, step, settings)

	if err := e.DB.Model(&lead).Updates(map[string]interface{}{
		"status":        models.LeadStatusContacted,
		"sequence_step": 0,
	}).Error; err != nil {
		return err
	}

	return e.scheduleNextStep(&lead, 0)
}

// ProcessFollowup executes the next due step for a lead whose
// next_followup_at has arrived. Guards run in order; the first match
// returns without sending.
func (e *SequenceEngine) ProcessFollowup(leadID uint) error {
	var lead models.Lead
	if err := e.DB.First(&lead, leadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			e.Logger.Errorf("Lead not found: %d", leadID)
			return nil
		}
		return err
	}

	if lead.SequenceStatus != models.SequenceActive {
		e.Logger.Debugf("Skipping lead %d: sequence status is %s", leadID, lead.SequenceStatus)
		return nil
	}

	// A human reply suspends automation; it does not close the lead
	if lead.LastRespondedAt != nil {
		e.Logger.Infof("Skipping lead %d: lead has responded", leadID)
		return e.DB.Model(&lead).Updates(map[string]interface{}{
			"sequence_status":  models.SequencePaused,
			"next_followup_at": nil,
		}).Error
	}

	if lead.ConsultationBookedAt != nil {
		e.Logger.Infof("Skipping lead %d: consultation booked", leadID)
		return e.DB.Model(&lead).Updates(map[string]interface{}{
			"sequence_status":  models.SequenceCompleted,
			"status":           models.LeadStatusBooked,
			"next_followup_at": nil,
		}).Error
	}

	nextStepNumber := lead.SequenceStep + 1
	step, err := e.findStep(nextStepNumber)
	if err != nil {
		return err
	}
	if step == nil || !step.IsActive {
		return e.completeSequence(&lead)
	}

	// Claim the step before sending. The compare-and-swap on
	// sequence_step keeps an overlapping scheduler run from sending the
	// same step twice.
	claim := e.DB.Model(&models.Lead{}).
		Where("id = ? AND sequence_step = ?", lead.ID, lead.SequenceStep).
		Update("sequence_step", nextStepNumber)
	if claim.Error != nil {
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		e.Logger.Warnf("Lead %d advanced concurrently, skipping step %d", leadID, nextStepNumber)
		return nil
	}
	lead.SequenceStep = nextStepNumber

	settings, err := LoadBusinessSettings(e.DB)
	if err != nil {
		return err
	}

	e.sendStepMessages(&lead, step, settings)

	return e.scheduleNextStep(&lead, nextStepNumber)
}

// ProcessAllFollowups runs one scheduler batch: due leads in ascending
// next_followup_at order, capped at maxLeads. One lead's failure is
// logged and reported but never aborts the batch. Returns the count of
// leads attempted.
func (e *SequenceEngine) ProcessAllFollowups(maxLeads int) (int, error) {
	if maxLeads <= 0 {
		maxLeads = 20
	}

	var leads []models.Lead
	if err := e.DB.Where("sequence_status = ? AND next_followup_at <= ?", models.SequenceActive, time.Now()).
		Order("next_followup_at asc").
		Limit(maxLeads).
		Find(&leads).Error; err != nil {
		return 0, err
	}

	e.Logger.Infof("Processing %d followups", len(leads))

	for _, lead := range leads {
		if err := e.ProcessFollowup(lead.ID); err != nil {
			e.Logger.WithFields(logrus.Fields{
				"lead_id": lead.ID,
			}).Errorf("Error processing followup: %v", err)
			sentry.CaptureException(fmt.Errorf("followup for lead %d: %w", lead.ID, err))
		}
	}

	return len(leads), nil
}

// PauseSequence suspends automated sending for a lead. Idempotent.
func (e *SequenceEngine) PauseSequence(leadID uint) error {
	return e.DB.Model(&models.Lead{}).Where("id = ?", leadID).
		Updates(map[string]interface{}{
			"sequence_status":  models.SequencePaused,
			"next_followup_at": nil,
		}).Error
}

// ResumeSequence reactivates a paused lead. The delay is recomputed from
// now; time elapsed before the pause is not credited.
func (e *SequenceEngine) ResumeSequence(leadID uint) error {
	var lead models.Lead
	if err := e.DB.First(&lead, leadID).Error; err != nil {
		return err
	}

	nextStep, err := e.findStepAfter(lead.SequenceStep)
	if err != nil {
		return err
	}
	if nextStep == nil {
		return e.completeSequence(&lead)
	}

	nextFollowupAt := time.Now().Add(time.Duration(nextStep.DelayMinutes) * time.Minute)
	return e.DB.Model(&lead).Updates(map[string]interface{}{
		"sequence_status":  models.SequenceActive,
		"next_followup_at": nextFollowupAt,
	}).Error
}

// SkipToNextStep advances past the upcoming step without sending it,
// then schedules off the step after that.
func (e *SequenceEngine) SkipToNextStep(leadID uint) error {
	var lead models.Lead
	if err := e.DB.First(&lead, leadID).Error; err != nil {
		return err
	}

	newStep := lead.SequenceStep + 1

	nextStep, err := e.findStepAfter(newStep)
	if err != nil {
		return err
	}
	if nextStep == nil {
		return e.DB.Model(&lead).Updates(map[string]interface{}{
			"sequence_step":    newStep,
			"sequence_status":  models.SequenceCompleted,
			"next_followup_at": nil,
		}).Error
	}

	nextFollowupAt := time.Now().Add(time.Duration(nextStep.DelayMinutes) * time.Minute)
	return e.DB.Model(&lead).Updates(map[string]interface{}{
		"sequence_step":    newStep,
		"sequence_status":  models.SequenceActive,
		"next_followup_at": nextFollowupAt,
	}).Error
}

// StopSequence terminates automation and closes the lead as won or lost
func (e *SequenceEngine) StopSequence(leadID uint, reason, finalStatus string) error {
	if finalStatus != models.LeadStatusWon && finalStatus != models.LeadStatusLost {
		return fmt.Errorf("invalid final status %q", finalStatus)
	}

	return e.DB.Model(&models.Lead{}).Where("id = ?", leadID).
		Updates(map[string]interface{}{
			"sequence_status":  models.SequenceStopped,
			"next_followup_at": nil,
			"status":           finalStatus,
			"closed_at":        time.Now(),
			"closed_reason":    reason,
		}).Error
}

// CloseExpiredSequences closes active or paused leads whose
// sequence_expires_at has passed, so stale leads stop consuming
// scheduler cycles. Returns the number of leads closed.
func (e *SequenceEngine) CloseExpiredSequences() (int64, error) {
	result := e.DB.Model(&models.Lead{}).
		Where("sequence_status IN ? AND sequence_expires_at IS NOT NULL AND sequence_expires_at < ?",
			[]string{models.SequenceActive, models.SequencePaused}, time.Now()).
		Updates(map[string]interface{}{
			"sequence_status":  models.SequenceStopped,
			"status":           models.LeadStatusClosed,
			"closed_at":        time.Now(),
			"closed_reason":    "expired",
			"next_followup_at": nil,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		e.Logger.Infof("Closed %d expired sequences", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// sendStepMessages renders and dispatches a step through every enabled
// channel the lead is reachable on. Rate-limit denials and transport
// failures skip the channel but never block step advancement.
func (e *SequenceEngine) sendStepMessages(lead *models.Lead, step *models.SequenceStep, settings BusinessSettings) {
	if step.SendSMS && step.SMSTemplate != "" && lead.PhoneNormalized != "" {
		limit, err := e.Limiter.CheckSMSRateLimit(lead.ID)
		switch {
		case err != nil:
			e.Logger.Errorf("Rate limit check failed for lead %d: %v", lead.ID, err)
		case !limit.Allowed:
			e.Logger.WithFields(logrus.Fields{
				"lead_id":     lead.ID,
				"step":        step.StepNumber,
				"reason":      limit.Reason,
				"retry_after": limit.RetryAfter,
			}).Warn("Skipping SMS: rate limited")
		default:
			if body := RenderSMSTemplate(step, lead, settings); body != "" {
				if err := e.SMS.SendSMS(lead.ID, lead.PhoneNormalized, body, step.StepNumber); err != nil {
					// Advance regardless; the failed send is in the
					// message log for manual follow-up
					e.Logger.Errorf("SMS send failed for lead %d step %d: %v", lead.ID, step.StepNumber, err)
				}
				if err := e.Limiter.RecordSMSSent(lead.ID); err != nil {
					e.Logger.Errorf("Failed to record SMS counters for lead %d: %v", lead.ID, err)
				}
			}
		}
	}

	if step.SendEmail && lead.Email != "" {
		if subject, body, ok := RenderEmailTemplates(step, lead, settings); ok {
			if err := e.Email.SendEmail(lead.ID, lead.Email, subject, body, step.StepNumber); err != nil {
				e.Logger.Errorf("Email send failed for lead %d step %d: %v", lead.ID, step.StepNumber, err)
			}
		}
	}
}

// scheduleNextStep finds the first active step past currentStep and sets
// the lead's next due time, or completes the sequence when none is left.
func (e *SequenceEngine) scheduleNextStep(lead *models.Lead, currentStep int) error {
	nextStep, err := e.findStepAfter(currentStep)
	if err != nil {
		return err
	}
	if nextStep == nil {
		return e.completeSequence(lead)
	}

	nextFollowupAt := time.Now().Add(time.Duration(nextStep.DelayMinutes) * time.Minute)
	return e.DB.Model(lead).Updates(map[string]interface{}{
		"sequence_status":  models.SequenceActive,
		"next_followup_at": nextFollowupAt,
	}).Error
}

func (e *SequenceEngine) completeSequence(lead *models.Lead) error {
	return e.DB.Model(lead).Updates(map[string]interface{}{
		"sequence_status":  models.SequenceCompleted,
		"next_followup_at": nil,
	}).Error
}

// findStep returns the step with the exact number, nil when absent
func (e *SequenceEngine) findStep(stepNumber int) (*models.SequenceStep, error) {
	var step models.SequenceStep
	err := e.DB.Where("step_number = ?", stepNumber).First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &step, nil
}

// findStepAfter returns the lowest-numbered active step strictly greater
// than stepNumber, nil when none exists
func (e *SequenceEngine) findStepAfter(stepNumber int) (*models.SequenceStep, error) {
	var step models.SequenceStep
	err := e.DB.Where("step_number > ? AND is_active = ?", stepNumber, true).
		Order("step_number asc").
		First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &step, nil
}
