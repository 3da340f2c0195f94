package models

import "gorm.io/gorm"

// Default SMS templates per step
const (
	smsInstant = `Hi {{firstName}}! This is {{ownerName}} from {{businessName}}. Thanks for reaching out about your {{projectType}} project in {{city}}! I'd love to learn more. Can we schedule a quick call? Book a time here: {{bookingLink}}`

	smsFourHours = `Hi {{firstName}}, just following up on your {{projectType}} inquiry. I have some great ideas for your project in {{city}}. Would you like to chat? {{bookingLink}}`

	smsTwentyFourHours = `{{firstName}}, I wanted to make sure you got my message about your {{projectType}} project. We're booking consultations for the next few weeks - would love to get you on the calendar: {{bookingLink}}`

	smsSeventyTwoHours = `Hi {{firstName}}, final follow-up on your deck project! We'd love to help transform your outdoor space in {{city}}. Book a free consultation: {{bookingLink}} - {{ownerName}}`
)

// Default email templates per step
const (
	emailInstantSubject = `Your {{projectType}} project in {{city}} - Let's chat!`
	emailInstantBody    = `Hi {{firstName}},

Thank you for reaching out about your {{projectType}} project! I'm {{ownerName}} from {{businessName}}, and I'm excited to help you create the perfect outdoor living space.

I'd love to learn more about your vision for your home in {{city}}. Our team specializes in custom decks, pergolas, and outdoor structures built to last.

Book a free consultation: {{bookingLink}}

Or reply to this email with any questions - I'm happy to help!

Best,
{{ownerName}}
{{businessName}}
{{businessPhone}}`

	emailDayOneSubject = `Following up on your {{projectType}} project`
	emailDayOneBody    = `Hi {{firstName}},

I wanted to follow up on your inquiry about a {{projectType}} for your home in {{city}}.

At {{businessName}}, we pride ourselves on quality craftsmanship and customer service. We'd love to show you some of our recent projects and discuss how we can bring your vision to life.

Schedule your free consultation: {{bookingLink}}

Looking forward to hearing from you!

{{ownerName}}
{{businessName}}`

	emailWeekOneSubject = `Last chance: Free {{projectType}} consultation`
	emailWeekOneBody    = `Hi {{firstName}},

I hope this message finds you well! I wanted to reach out one more time about your {{projectType}} project in {{city}}.

If you're still considering upgrading your outdoor space, we'd love to help. Our consultations are free and no-obligation - we'll visit your home, discuss your ideas, and provide a detailed quote.

Book your consultation before our schedule fills up: {{bookingLink}}

If the timing isn't right, no worries at all. Feel free to reach out whenever you're ready.

Best wishes,
{{ownerName}}
{{businessName}}
{{businessPhone}}`
)

// CreateDefaultSequenceSteps installs the stock five-step follow-up
// sequence if the table is empty. Existing steps are never overwritten.
func CreateDefaultSequenceSteps(db *gorm.DB) error {
	defaultSteps := []SequenceStep{
		{
			StepNumber:    0,
			Name:          "Instant Response",
			DelayMinutes:  0,
			SendSMS:       true,
			SendEmail:     true,
			SMSTemplate:   smsInstant,
			EmailSubject:  emailInstantSubject,
			EmailTemplate: emailInstantBody,
			IsActive:      true,
		},
		{
			StepNumber:   1,
			Name:         "4 Hour Follow-up",
			DelayMinutes: 240,
			SendSMS:      true,
			SMSTemplate:  smsFourHours,
			IsActive:     true,
		},
		{
			StepNumber:    2,
			Name:          "24 Hour Follow-up",
			DelayMinutes:  1440,
			SendSMS:       true,
			SendEmail:     true,
			SMSTemplate:   smsTwentyFourHours,
			EmailSubject:  emailDayOneSubject,
			EmailTemplate: emailDayOneBody,
			IsActive:      true,
		},
		{
			StepNumber:   3,
			Name:         "72 Hour Follow-up",
			DelayMinutes: 4320,
			SendSMS:      true,
			SMSTemplate:  smsSeventyTwoHours,
			IsActive:     true,
		},
		{
			StepNumber:    4,
			Name:          "7 Day Final Follow-up",
			DelayMinutes:  10080,
			SendEmail:     true,
			EmailSubject:  emailWeekOneSubject,
			EmailTemplate: emailWeekOneBody,
			IsActive:      true,
		},
	}

	for _, step := range defaultSteps {
		if err := db.FirstOrCreate(&step, "step_number = ?", step.StepNumber).Error; err != nil {
			return err
		}
	}
	return nil
}

// CreateDefaultSettings seeds the business-identity variables used by
// the template renderer. Values are placeholders until edited.
func CreateDefaultSettings(db *gorm.DB) error {
	defaults := []Setting{
		{Key: "businessName", Value: "Hickory Dickory Decks Cincinnati"},
		{Key: "businessPhone", Value: ""},
		{Key: "ownerName", Value: "Nathan"},
		{Key: "bookingLink", Value: ""},
		{Key: "websiteUrl", Value: ""},
		{Key: "googleReviewUrl", Value: ""},
	}

	for _, setting := range defaults {
		if err := db.FirstOrCreate(&setting, "key = ?", setting.Key).Error; err != nil {
			return err
		}
	}
	return nil
}
