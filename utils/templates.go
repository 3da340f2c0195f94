package utils

import (
	"regexp"

	"leadflow/models"
)

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// RenderTemplate substitutes {{name}} placeholders using the lead and
// business-setting variables. Unknown placeholders are left verbatim so
// template authoring mistakes stay visible; known-but-empty lead fields
// render as empty strings.
func RenderTemplate(template string, lead *models.Lead, settings BusinessSettings) string {
	variables := map[string]string{
		// Lead variables
		"firstName":          lead.FirstName,
		"lastName":           lead.LastName,
		"fullName":           lead.FullName(),
		"email":              lead.Email,
		"phone":              lead.Phone,
		"city":               lead.City,
		"address":            lead.Address,
		"projectType":        lead.ProjectType,
		"projectDescription": lead.ProjectDescription,
		"source":             lead.Source,

		// Business variables from settings
		"businessName":    settings.BusinessName,
		"businessPhone":   settings.BusinessPhone,
		"ownerName":       settings.OwnerName,
		"bookingLink":     settings.BookingLink,
		"websiteUrl":      settings.WebsiteURL,
		"googleReviewUrl": settings.GoogleReviewURL,
	}
	if variables["projectType"] == "" {
		variables["projectType"] = "deck"
	}

	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		if value, ok := variables[key]; ok {
			return value
		}
		return match
	})
}

// RenderSMSTemplate renders the SMS body for a step, or "" when the step
// carries no SMS template.
func RenderSMSTemplate(step *models.SequenceStep, lead *models.Lead, settings BusinessSettings) string {
	if step.SMSTemplate == "" {
		return ""
	}
	return RenderTemplate(step.SMSTemplate, lead, settings)
}

// RenderEmailTemplates renders the subject and body for a step's email.
// Both must be configured; otherwise ok is false.
func RenderEmailTemplates(step *models.SequenceStep, lead *models.Lead, settings BusinessSettings) (subject, body string, ok bool) {
	if step.EmailSubject == "" || step.EmailTemplate == "" {
		return "", "", false
	}
	return RenderTemplate(step.EmailSubject, lead, settings),
		RenderTemplate(step.EmailTemplate, lead, settings),
		true
}

// PreviewTemplate renders a template against fixed sample data, for the
// admin editing surface.
func PreviewTemplate(template string) string {
	sampleLead := &models.Lead{
		FirstName:          "John",
		LastName:           "Smith",
		Email:              "john@example.com",
		Phone:              "(513) 555-1234",
		PhoneNormalized:    "+15135551234",
		City:               "Mason",
		Address:            "123 Main St",
		ProjectType:        "deck",
		ProjectDescription: "New composite deck with railing",
		Source:             "website",
	}
	sampleSettings := BusinessSettings{
		BusinessName:  "Hickory Dickory Decks Cincinnati",
		BusinessPhone: "(513) 555-4321",
		OwnerName:     "Nathan",
		BookingLink:   "https://cal.com/hdd-cincinnati/consultation",
		WebsiteURL:    "https://hdd-cincinnati.com",
	}
	return RenderTemplate(template, sampleLead, sampleSettings)
}
