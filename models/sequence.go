package models

import "gorm.io/gorm"

// SequenceStep represents one stage of the follow-up sequence.
// Step 0 is the instant response sent on lead creation; every later
// step becomes due DelayMinutes after the previous one executed.
type SequenceStep struct {
	gorm.Model

	StepNumber   int    `gorm:"not null;uniqueIndex" json:"step_number"`
	Name         string `gorm:"not null" json:"name"`
	DelayMinutes int    `gorm:"not null" json:"delay_minutes"`

	SendSMS   bool `gorm:"default:false" json:"send_sms"`
	SendEmail bool `gorm:"default:false" json:"send_email"`

	SMSTemplate   string `gorm:"type:text" json:"sms_template"`
	EmailSubject  string `json:"email_subject"`
	EmailTemplate string `gorm:"type:text" json:"email_template"`

	// Inactive steps are skipped entirely when searching for the next step
	IsActive bool `gorm:"default:true" json:"is_active"`
}
