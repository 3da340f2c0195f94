package models

import "gorm.io/gorm"

// Message channels and directions
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"

	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"

	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusFailed    = "failed"
)

// Message is an append-only log of every send and every inbound reply
type Message struct {
	gorm.Model
	LeadID uint `gorm:"not null;index" json:"lead_id"`

	Channel   string `gorm:"not null" json:"channel"`   // sms, email
	Direction string `gorm:"not null" json:"direction"` // outbound, inbound
	Subject   string `json:"subject"`                   // email only
	Body      string `gorm:"type:text" json:"body"`

	Status       string `gorm:"not null" json:"status"` // sent, delivered, failed
	ErrorMessage string `json:"error_message"`
	ExternalID   string `gorm:"index" json:"external_id"` // provider message id

	// Which sequence step produced this message; nil for manual/inbound
	SequenceStep *int `json:"sequence_step"`
}
