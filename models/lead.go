package models

import (
	"time"

	"gorm.io/gorm"
)

// Funnel statuses for a lead
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusEngaged   = "engaged"
	LeadStatusBooked    = "booked"
	LeadStatusWon       = "won"
	LeadStatusLost      = "lost"
	LeadStatusClosed    = "closed"
)

// Sequence statuses; completed and stopped are terminal for automated sending
const (
	SequenceActive    = "active"
	SequencePaused    = "paused"
	SequenceCompleted = "completed"
	SequenceStopped   = "stopped"
)

// Lead represents a single inbound inquiry being nurtured
type Lead struct {
	gorm.Model

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `gorm:"index" json:"email"`
	Phone     string `json:"phone"`
	// E.164 form, required for SMS delivery
	PhoneNormalized string `gorm:"index" json:"phone_normalized"`

	City               string `json:"city"`
	Address            string `json:"address"`
	ProjectType        string `gorm:"default:'deck'" json:"project_type"`
	ProjectDescription string `gorm:"type:text" json:"project_description"`
	Source             string `json:"source"` // website, webhook, manual, etc.
	Notes              string `gorm:"type:text" json:"notes"`
	ExternalID         string `gorm:"index" json:"external_id"` // dedup key for webhook intake

	// Funnel state
	Status string `gorm:"default:'new';index" json:"status"`

	// Sequence state
	SequenceStatus    string     `gorm:"default:'active';index" json:"sequence_status"`
	SequenceStep      int        `gorm:"default:-1" json:"sequence_step"` // last step executed, -1 before any send
	NextFollowupAt    *time.Time `gorm:"index" json:"next_followup_at"`
	SequenceExpiresAt *time.Time `json:"sequence_expires_at"`

	// Interaction markers
	LastContactedAt      *time.Time `json:"last_contacted_at"`
	LastRespondedAt      *time.Time `json:"last_responded_at"`
	ConsultationBookedAt *time.Time `json:"consultation_booked_at"`
	ClosedAt             *time.Time `json:"closed_at"`
	ClosedReason         string     `json:"closed_reason"`

	// SMS rate-limit counters
	LastSMSAt       *time.Time `json:"last_sms_at"`
	SMSCountToday   int        `gorm:"default:0" json:"sms_count_today"`
	SMSCountResetAt *time.Time `json:"sms_count_reset_at"`

	// Relations
	Messages []Message `gorm:"foreignKey:LeadID" json:"messages,omitempty"`
}

// FullName joins first and last name, skipping whichever is empty
func (l *Lead) FullName() string {
	switch {
	case l.FirstName != "" && l.LastName != "":
		return l.FirstName + " " + l.LastName
	case l.FirstName != "":
		return l.FirstName
	default:
		return l.LastName
	}
}
