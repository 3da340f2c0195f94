package utils

import (
	"testing"

	"leadflow/models"

	"github.com/stretchr/testify/assert"
)

func sampleLead() *models.Lead {
	return &models.Lead{
		FirstName:   "Sarah",
		LastName:    "Connor",
		Email:       "sarah@example.com",
		Phone:       "(513) 555-9999",
		City:        "Mason",
		ProjectType: "pergola",
	}
}

func sampleSettings() BusinessSettings {
	return BusinessSettings{
		BusinessName: "Hickory Dickory Decks Cincinnati",
		OwnerName:    "Nathan",
		BookingLink:  "https://cal.com/hdd/consult",
	}
}

func TestRenderTemplate(t *testing.T) {
	lead := sampleLead()
	settings := sampleSettings()

	out := RenderTemplate("Hi {{firstName}}, {{ownerName}} from {{businessName}} here about your {{projectType}}.", lead, settings)
	assert.Equal(t, "Hi Sarah, Nathan from Hickory Dickory Decks Cincinnati here about your pergola.", out)
}

func TestRenderTemplateUnknownPlaceholderStaysVerbatim(t *testing.T) {
	out := RenderTemplate("Hi {{firstName}}, your {{discountCode}} awaits", sampleLead(), sampleSettings())
	assert.Equal(t, "Hi Sarah, your {{discountCode}} awaits", out)
}

func TestRenderTemplateEmptyLeadFieldRendersEmpty(t *testing.T) {
	lead := sampleLead()
	lead.City = ""
	out := RenderTemplate("Serving {{city}} and beyond", lead, sampleSettings())
	assert.Equal(t, "Serving  and beyond", out)
}

func TestRenderTemplateProjectTypeDefaults(t *testing.T) {
	lead := sampleLead()
	lead.ProjectType = ""
	out := RenderTemplate("your {{projectType}} project", lead, sampleSettings())
	assert.Equal(t, "your deck project", out)
}

func TestRenderTemplateFullName(t *testing.T) {
	out := RenderTemplate("{{fullName}}", sampleLead(), sampleSettings())
	assert.Equal(t, "Sarah Connor", out)

	lead := sampleLead()
	lead.LastName = ""
	assert.Equal(t, "Sarah", RenderTemplate("{{fullName}}", lead, sampleSettings()))
}

func TestRenderSMSTemplate(t *testing.T) {
	step := &models.SequenceStep{SMSTemplate: "Hi {{firstName}}"}
	assert.Equal(t, "Hi Sarah", RenderSMSTemplate(step, sampleLead(), sampleSettings()))

	empty := &models.SequenceStep{}
	assert.Equal(t, "", RenderSMSTemplate(empty, sampleLead(), sampleSettings()))
}

func TestRenderEmailTemplates(t *testing.T) {
	step := &models.SequenceStep{
		EmailSubject:  "{{firstName}}, about your {{projectType}}",
		EmailTemplate: "Hi {{firstName}},\n\nBook here: {{bookingLink}}",
	}
	subject, body, ok := RenderEmailTemplates(step, sampleLead(), sampleSettings())
	assert.True(t, ok)
	assert.Equal(t, "Sarah, about your pergola", subject)
	assert.Contains(t, body, "https://cal.com/hdd/consult")

	// Missing subject or body disables the channel for the step
	_, _, ok = RenderEmailTemplates(&models.SequenceStep{EmailTemplate: "body only"}, sampleLead(), sampleSettings())
	assert.False(t, ok)
}

func TestPreviewTemplate(t *testing.T) {
	out := PreviewTemplate("Hi {{firstName}} {{lastName}} in {{city}}")
	assert.Equal(t, "Hi John Smith in Mason", out)
}
