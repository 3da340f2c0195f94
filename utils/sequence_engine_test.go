package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"leadflow/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentSMS struct {
	LeadID uint
	To     string
	Body   string
	Step   int
}

type mockSMSSender struct {
	calls []sentSMS
	err   error
}

func (m *mockSMSSender) SendSMS(leadID uint, to, body string, sequenceStep int) error {
	m.calls = append(m.calls, sentSMS{LeadID: leadID, To: to, Body: body, Step: sequenceStep})
	return m.err
}

type sentEmail struct {
	LeadID  uint
	To      string
	Subject string
	Body    string
	Step    int
}

type mockEmailSender struct {
	calls []sentEmail
	err   error
}

func (m *mockEmailSender) SendEmail(leadID uint, to, subject, body string, sequenceStep int) error {
	m.calls = append(m.calls, sentEmail{LeadID: leadID, To: to, Subject: subject, Body: body, Step: sequenceStep})
	return m.err
}

func newTestEngine(t *testing.T) (*SequenceEngine, *gorm.DB, *mockSMSSender, *mockEmailSender) {
	t.Helper()
	db := newTestDB(t)
	sms := &mockSMSSender{}
	email := &mockEmailSender{}
	engine := NewSequenceEngine(db, newTestLogger(), sms, email)
	return engine, db, sms, email
}

func seedSteps(t *testing.T, db *gorm.DB) {
	t.Helper()
	steps := []models.SequenceStep{
		{StepNumber: 0, Name: "Instant Response", DelayMinutes: 0, SendSMS: true, SendEmail: true,
			SMSTemplate: "Hi {{firstName}}, thanks for reaching out", EmailSubject: "Thanks {{firstName}}", EmailTemplate: "We got your request", IsActive: true},
		{StepNumber: 1, Name: "4 Hour Follow-up", DelayMinutes: 240, SendSMS: true, SendEmail: false,
			SMSTemplate: "{{firstName}}, still interested in your {{projectType}}?", IsActive: true},
		{StepNumber: 2, Name: "Day 1 Follow-up", DelayMinutes: 1440, SendSMS: true, SendEmail: true,
			SMSTemplate: "Quick check-in {{firstName}}", EmailSubject: "Your {{projectType}} project", EmailTemplate: "Book here: {{bookingLink}}", IsActive: true},
		{StepNumber: 3, Name: "Day 3 Follow-up", DelayMinutes: 4320, SendSMS: false, SendEmail: true,
			EmailSubject: "Checking in", EmailTemplate: "Still here for you", IsActive: true},
		{StepNumber: 4, Name: "Day 7 Final", DelayMinutes: 10080, SendSMS: true, SendEmail: true,
			SMSTemplate: "Last note from {{ownerName}}", EmailSubject: "Closing the loop", EmailTemplate: "Reach out anytime", IsActive: true},
	}
	for i := range steps {
		require.NoError(t, db.Create(&steps[i]).Error)
	}
}

func createSequenceLead(t *testing.T, db *gorm.DB, step int) *models.Lead {
	t.Helper()
	lead := &models.Lead{
		FirstName:       "Dana",
		LastName:        "Reyes",
		Email:           "dana@example.com",
		Phone:           "5135550100",
		PhoneNormalized: "+15135550100",
		ProjectType:     "deck",
		Status:          models.LeadStatusNew,
		SequenceStatus:  models.SequenceActive,
		SequenceStep:    step,
	}
	require.NoError(t, db.Create(lead).Error)
	return lead
}

func reload(t *testing.T, db *gorm.DB, id uint) *models.Lead {
	t.Helper()
	var lead models.Lead
	require.NoError(t, db.First(&lead, id).Error)
	return &lead
}

func makeDue(t *testing.T, db *gorm.DB, lead *models.Lead) {
	t.Helper()
	due := time.Now().Add(-1 * time.Minute)
	require.NoError(t, db.Model(lead).Update("next_followup_at", due).Error)
}

// Scenario: new lead arrives, instant response fires on both channels
// and schedules the next step.
func TestProcessInstantResponse(t *testing.T) {
	engine, db, sms, email := newTestEngine(t)
	seedSteps(t, db)
	lead := createSequenceLead(t, db, -1)

	require.NoError(t, engine.ProcessInstantResponse(lead.ID))

	require.Len(t, sms.calls, 1)
	assert.Equal(t, "+15135550100", sms.calls[0].To)
	assert.Equal(t, "Hi Dana, thanks for reaching out", sms.calls[0].Body)
	assert.Equal(t, 0, sms.calls[0].Step)

	require.Len(t, email.calls, 1)
	assert.Equal(t, "dana@example.com", email.calls[0].To)
	assert.Equal(t, "Thanks Dana", email.calls[0].Subject)

	updated := reload(t, db, lead.ID)
	assert.Equal(t, models.LeadStatusContacted, updated.Status)
	assert.Equal(t, 0, updated.SequenceStep)
	assert.Equal(t, models.SequenceActive, updated.SequenceStatus)
	require.NotNil(t, updated.NextFollowupAt)
	assert.WithinDuration(t, time.Now().Add(240*time.Minute), *updated.NextFollowupAt, 5*time.Second)

	// The send counted against the SMS budget
	assert.Equal(t, 1, updated.SMSCountToday)
}

func TestProcessInstantResponseIsIdempotent(t *testing.T) {
	engine, db, sms, _ := newTestEngine(t)
	seedSteps(t, db)
	lead := createSequenceLead(t, db, -1)

	require.NoError(t, engine.ProcessInstantResponse(lead.ID))
	require.NoError(t, engine.ProcessInstantResponse(lead.ID))

	assert.Len(t, sms.calls, 1)
}

func TestProcessInstantResponseUnknownLead(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)
	seedSteps(t, db)

	// Missing leads are logged, not errors; intake goroutines must not panic
	assert.NoError(t, engine.ProcessInstantResponse(9999))
}

func TestProcessInstantResponseNoActiveStepStillSchedules(t *testing.T) {
	engine, db, sms, _ := newTestEngine(t)
	seedSteps(t, db)
	require.NoError(t, db.Model(&models.SequenceStep{}).
		Where("step_number = ?", 0).Update("is_active", false).Error)
	lead := createSequenceLead(t, db, -1)

	require.NoError(t, engine.ProcessInstantResponse(lead.ID))

	assert.Empty(t, sms.calls)
	updated := reload(t, db, lead.ID)
	assert.Equal(t, 0, updated.SequenceStep)
	require.NotNil(t, updated.NextFollowupAt)
}

// Steps advance monotonically, one per trigger
func TestProcessFollowupAdvancesOneStep(t *testing.T) {
	engine, db, sms, _ := newTestEngine(t)
	seedSteps(t, db)
	lead := createSequenceLead(t, db, 0)
	makeDue(t, db, lead)

	require.NoError(t, engine.ProcessFollowup(lead.ID))

	require.Len(t, sms.calls, 1)
	assert.Equal(t, 1, sms.calls[0].Step)
	assert.Equal(t, "Dana, still interested in your deck?", sms.calls[0].Body)

	updated := reload(t, db, lead.ID)
	assert.Equal(t, 1, updated.SequenceStep)
	assert.Equal(t, models.SequenceActive, updated.SequenceStatus)
	require.NotNil(t, updated.NextFollowupAt)
	assert.WithinDuration(t, time.Now().Add(1440*time.Minute), *updated.NextFollowupAt, 5*time.Second)
}

func TestProcessFollowupSkipsNonActiveSequence(t *testing.T) {
	engine, db, sms, email := newTestEngine(t)
	seedSteps(t, db)

	for _, status := range []string{models.SequencePaused, models.SequenceCompleted, models.SequenceStopped} {
		lead := createSequenceLead(t, db, 0)
		require.NoError(t, db.Model(lead).Update("sequence_status", status).Error)
		makeDue(t, db, lead)

		require.NoError(t, engine.ProcessFollowup(lead.ID))

		updated := reload(t, db, lead.ID)
		assert.Equal(t, status, updated.SequenceStatus, "status %s must be untouched", status)
		assert.Equal(t, 0, updated.SequenceStep)
	}
	assert.Empty(t, sms.calls)
	assert.Empty(t, email.calls)
}

// Scenario: the lead texted back, automation stands down
func TestProcessFollowupPausesWhenLeadResponded(t *testing.T) {
	engine, db, sms, _ := newTestEngine(t)
	seedSteps(t, db)
	lead := createSequenceLead(t, db, 1)
	responded := time.Now().Add(-5 * time.Minute)
	require.NoError(t, db.Model(lead).Update("last_responded_at", responded).Error)
	makeDue(t, db, lead)

	require.NoError(t, engine.ProcessFollowup(lead.ID))

	assert.Empty(t, sms.calls)
	updated := reload(t, db, lead.ID)
	assert.Equal(t, models.SequencePaused, updated.SequenceStatus)
	assert.Nil(t, updated.NextFollowupAt)
	assert.Equal(t, 1, updated.SequenceStep)
}

func TestProcessFollowupCompletesWhenBooked(t *testing.T) {
	engine, db, sms, _ := newTestEngine(t)
	seedSteps(t, db)
	lead := createSequenceLead(t, db, 1)
	booked := time.Now().Add(-1 * time.Hour)
	require.NoError(t, db.Model(lead).Update("consultation_booked_at", booked).Error)
	makeDue(t, db, lead)

	require.NoError(t, engine.ProcessFollowup(lead.ID))

	assert.Empty(t, sms.calls)
	updated := reload(t, db, lead.ID)
	assert.Equal(t, models.SequenceCompleted, updated.SequenceStatus)
	assert.Equal(t, models.LeadStatusBooked, updated.Status)
	assert.Nil(t, updated.NextFollowupAt)
}

// Scenario: next step is missing or deactivated, sequence completes
// without sending
func TestProcessFollowupCompletesOnMissingStep(t *testing.T) {
	engine, db, sms, email := newTestEngine(t)
	seedSteps(t, db)
	require.NoError(t, db.Model(&models.SequenceStep{}).
		Where("step_number = ?", 3).Update("is_active", false).Error)
	lead := createSequenceLead(t, db, 2)
	makeDue(t, db, lead)

	require.NoError(t, engine.ProcessFollowup(lead.ID))

	assert.Empty(t, sms.calls)
	assert.Empty(t, email.calls)
	updated := reload(t, db, lead.ID)
	assert.Equal(t, models.SequenceCompleted, updated.SequenceStatus)
	assert.Nil(t, updated.NextFollowupAt)
}

// The final step completes the sequence after sending
func TestProcessFollowupFinalStepCompletes(t *testing.T) {
	engine, db, sms, email := newTestEngine(t)
	seedSteps(t, db)
	lead := createSequenceLead(t, db, 3)
	makeDue(t, db, lead)

	require.NoError(t, engine.ProcessFollowup(lead.ID))

	require.Len(t, sms.calls, 1)
	assert.Equal(t, 4, sms.calls[0].Step)
	require.Len(t, email.calls, 1)

	updated := reload(t, db, lead.ID)
	assert.Equal(t, 4, updated.SequenceStep)
	assert.Equal(t, models.SequenceCompleted, updated.SequenceStatus)
	assert.Nil(t, updated.NextFollowupAt)
}

// A dead transport must not stall the sequence; the failure lives in the
// message log and the lead keeps moving
func TestProcessFollowupAdvancesOnTransportFailure(t *testing.T) {
	engine, db, sms, _ := newTestEngine(t)
	seedSteps(t, db)
	sms.err = errors.New("twilio 500")
	lead := createSequenceLead(t, db, 0)
	makeDue(t, db, lead)

	require.NoError(t, engine.ProcessFollowup(lead.ID))

	require.Len(t, sms.calls, 1)
	updated := reload(t, db, lead.ID)
	assert.Equal(t, 1, updated.SequenceStep)
	assert.Equal(t, models.SequenceActive, updated.SequenceStatus)
	require.NotNil(t, updated.NextFollowupAt)
	// Failed attempts still consume SMS budget
	assert.Equal(t, 1, updated.SMSCountToday)
}

// Rate limiting silences the SMS channel for the step; email and
// advancement are unaffected
func TestProcessFollowupRateLimitSkipsSMSOnly(t *testing.T) {
	engine, db, sms, email := newTestEngine(t)
	seedSteps(t, db)
	lead := createSequenceLead(t, db, 1)
	resetAt := nextLocalMidnight(time.Now())
	require.NoError(t, db.Model(lead).Updates(map[string]interface{}{
		"sms_count_today":    SMSDailyLimit,
		"sms_count_reset_at": resetAt,
	}).Error)
	makeDue(t, db, lead)

	require.NoError(t, engine.ProcessFollowup(lead.ID))

	assert.Empty(t, sms.calls)
	require.Len(t, email.calls, 1)
	assert.Equal(t, 2, email.calls[0].Step)

	updated := reload(t, db, lead.ID)
	assert.Equal(t, 2, updated.SequenceStep)
	assert.Equal(t, models.SequenceActive, updated.SequenceStatus)
}

func TestProcessFollowupSkipsSMSWithoutPhone(t *testing.T) {
	engine, db, sms, email := newTestEngine(t)
	seedSteps(t, db)
	lead := createSequenceLead(t, db, 1)
	require.NoError(t, db.Model(lead).Update("phone_normalized", "").Error)
	makeDue(t, db, lead)

	require.NoError(t, engine.ProcessFollowup(lead.ID))

	assert.Empty(t, sms.calls)
	assert.Len(t, email.calls, 1)
}

func TestProcessAllFollowups(t *testing.T) {
	engine, db, sms, _ := newTestEngine(t)
	seedSteps(t, db)

	var due []*models.Lead
	for i := 0; i < 3; i++ {
		lead := &models.Lead{
			FirstName:       fmt.Sprintf("Lead%d", i),
			Email:           fmt.Sprintf("lead%d@example.com", i),
			Phone:           fmt.Sprintf("513555020%d", i),
			PhoneNormalized: fmt.Sprintf("+1513555020%d", i),
			Status:          models.LeadStatusContacted,
			SequenceStatus:  models.SequenceActive,
			SequenceStep:    0,
		}
		require.NoError(t, db.Create(lead).Error)
		makeDue(t, db, lead)
		due = append(due, lead)
	}

	// One lead not yet due, one paused: both must be left alone
	notDue := createSequenceLead(t, db, 0)
	future := time.Now().Add(1 * time.Hour)
	require.NoError(t, db.Model(notDue).Update("next_followup_at", future).Error)

	paused := createSequenceLead(t, db, 0)
	require.NoError(t, db.Model(paused).Updates(map[string]interface{}{
		"sequence_status":  models.SequencePaused,
		"next_followup_at": time.Now().Add(-1 * time.Minute),
	}).Error)

	processed, err := engine.ProcessAllFollowups(20)
	require.NoError(t, err)
	assert.Equal(t, 3, processed)
	assert.Len(t, sms.calls, 3)

	for _, lead := range due {
		assert.Equal(t, 1, reload(t, db, lead.ID).SequenceStep)
	}
	assert.Equal(t, 0, reload(t, db, notDue.ID).SequenceStep)
	assert.Equal(t, 0, reload(t, db, paused.ID).SequenceStep)
}

func TestProcessAllFollowupsRespectsBatchCap(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)
	seedSteps(t, db)

	for i := 0; i < 5; i++ {
		lead := &models.Lead{
			FirstName:       fmt.Sprintf("Cap%d", i),
			Email:           fmt.Sprintf("cap%d@example.com", i),
			Status:          models.LeadStatusContacted,
			SequenceStatus:  models.SequenceActive,
			SequenceStep:    0,
		}
		require.NoError(t, db.Create(lead).Error)
		makeDue(t, db, lead)
	}

	processed, err := engine.ProcessAllFollowups(2)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
}

func TestPauseAndResumeSequence(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)
	seedSteps(t, db)
	lead := createSequenceLead(t, db, 1)
	makeDue(t, db, lead)

	require.NoError(t, engine.PauseSequence(lead.ID))
	updated := reload(t, db, lead.ID)
	assert.Equal(t, models.SequencePaused, updated.SequenceStatus)
	assert.Nil(t, updated.NextFollowupAt)

	// Pausing twice is harmless
	require.NoError(t, engine.PauseSequence(lead.ID))

	// Resume recomputes the delay from now, elapsed time is not credited
	require.NoError(t, engine.ResumeSequence(lead.ID))
	updated = reload(t, db, lead.ID)
	assert.Equal(t, models.SequenceActive, updated.SequenceStatus)
	require.NotNil(t, updated.NextFollowupAt)
	assert.WithinDuration(t, time.Now().Add(1440*time.Minute), *updated.NextFollowupAt, 5*time.Second)
}

func TestResumeSequencePastLastStepCompletes(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)
	seedSteps(t, db)
	lead := createSequenceLead(t, db, 4)
	require.NoError(t, db.Model(lead).Update("sequence_status", models.SequencePaused).Error)

	require.NoError(t, engine.ResumeSequence(lead.ID))

	updated := reload(t, db, lead.ID)
	assert.Equal(t, models.SequenceCompleted, updated.SequenceStatus)
	assert.Nil(t, updated.NextFollowupAt)
}

// Scenario: operator skips the upcoming step, nothing is sent and the
// lead is scheduled for the step after
func TestSkipToNextStep(t *testing.T) {
	engine, db, sms, email := newTestEngine(t)
	seedSteps(t, db)
	lead := createSequenceLead(t, db, 0)
	makeDue(t, db, lead)

	require.NoError(t, engine.SkipToNextStep(lead.ID))

	assert.Empty(t, sms.calls)
	assert.Empty(t, email.calls)

	updated := reload(t, db, lead.ID)
	assert.Equal(t, 1, updated.SequenceStep)
	assert.Equal(t, models.SequenceActive, updated.SequenceStatus)
	require.NotNil(t, updated.NextFollowupAt)
	assert.WithinDuration(t, time.Now().Add(1440*time.Minute), *updated.NextFollowupAt, 5*time.Second)
}

func TestSkipToNextStepAtEndCompletes(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)
	seedSteps(t, db)
	lead := createSequenceLead(t, db, 3)

	require.NoError(t, engine.SkipToNextStep(lead.ID))

	updated := reload(t, db, lead.ID)
	assert.Equal(t, 4, updated.SequenceStep)
	assert.Equal(t, models.SequenceCompleted, updated.SequenceStatus)
	assert.Nil(t, updated.NextFollowupAt)
}

func TestStopSequence(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)
	seedSteps(t, db)
	lead := createSequenceLead(t, db, 1)

	require.Error(t, engine.StopSequence(lead.ID, "whatever", models.LeadStatusEngaged))

	require.NoError(t, engine.StopSequence(lead.ID, "went with competitor", models.LeadStatusLost))
	updated := reload(t, db, lead.ID)
	assert.Equal(t, models.SequenceStopped, updated.SequenceStatus)
	assert.Equal(t, models.LeadStatusLost, updated.Status)
	assert.Equal(t, "went with competitor", updated.ClosedReason)
	require.NotNil(t, updated.ClosedAt)
	assert.Nil(t, updated.NextFollowupAt)
}

func TestCloseExpiredSequences(t *testing.T) {
	engine, db, _, _ := newTestEngine(t)
	seedSteps(t, db)

	expiredActive := createSequenceLead(t, db, 1)
	expiredPaused := createSequenceLead(t, db, 2)
	fresh := createSequenceLead(t, db, 1)

	past := time.Now().Add(-1 * time.Hour)
	future := time.Now().Add(24 * time.Hour)
	require.NoError(t, db.Model(expiredActive).Update("sequence_expires_at", past).Error)
	require.NoError(t, db.Model(expiredPaused).Updates(map[string]interface{}{
		"sequence_status":     models.SequencePaused,
		"sequence_expires_at": past,
	}).Error)
	require.NoError(t, db.Model(fresh).Update("sequence_expires_at", future).Error)

	closed, err := engine.CloseExpiredSequences()
	require.NoError(t, err)
	assert.Equal(t, int64(2), closed)

	for _, id := range []uint{expiredActive.ID, expiredPaused.ID} {
		updated := reload(t, db, id)
		assert.Equal(t, models.SequenceStopped, updated.SequenceStatus)
		assert.Equal(t, models.LeadStatusClosed, updated.Status)
		assert.Equal(t, "expired", updated.ClosedReason)
		assert.Nil(t, updated.NextFollowupAt)
	}

	assert.Equal(t, models.SequenceActive, reload(t, db, fresh.ID).SequenceStatus)
}
