package controller

import (
	"encoding/json"
	"strings"
	"time"

	"leadflow/config"
	"leadflow/middleware"
	"leadflow/models"
	"leadflow/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const twimlEmpty = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type WebhookController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Engine *utils.SequenceEngine
	Guard  *utils.WebhookGuard
	Leads  *LeadController
}

func NewWebhookController(db *gorm.DB, logger *logrus.Logger, engine *utils.SequenceEngine, guard *utils.WebhookGuard, leads *LeadController) *WebhookController {
	return &WebhookController{
		DB:     db,
		Logger: logger,
		Engine: engine,
		Guard:  guard,
		Leads:  leads,
	}
}

// HandleLeadIntake receives leads pushed from external form providers.
// The raw body is HMAC-signed; duplicate external ids return the
// existing lead instead of creating another sequence.
func (wc *WebhookController) HandleLeadIntake(c *fiber.Ctx) error {
	body := c.Body()

	if secret := config.AppConfig.LeadWebhookSecret; secret != "" {
		signature := c.Get("X-Webhook-Signature")
		if !middleware.VerifyHMACSignature(body, signature, secret) {
			wc.Logger.Warn("Lead intake webhook rejected: bad signature")
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid signature", nil)
		}
	}

	var input LeadInput
	if err := json.Unmarshal(body, &input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if input.ExternalID != "" {
		var existing models.Lead
		err := wc.DB.Where("external_id = ?", input.ExternalID).First(&existing).Error
		if err == nil {
			return c.JSON(fiber.Map{
				"success":   true,
				"duplicate": true,
				"data":      existing,
			})
		}
		if err != gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check for duplicates", err)
		}
	}

	lead, status, err := wc.Leads.createFromInput(input, "webhook")
	if err != nil {
		return utils.ErrorResponse(c, status, err.Error(), nil)
	}

	wc.Logger.WithFields(logrus.Fields{
		"lead_id": lead.ID,
		"source":  lead.Source,
	}).Info("Lead created via intake webhook")

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(lead))
}

// HandleTwilioInbound processes inbound SMS replies. Twilio retries
// aggressively, so delivery is deduped by MessageSid before any state
// changes. The response is always TwiML so Twilio stops retrying.
func (wc *WebhookController) HandleTwilioInbound(c *fiber.Ctx) error {
	params := map[string]string{}
	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})

	if token := config.AppConfig.Twilio.AuthToken; token != "" {
		signature := c.Get("X-Twilio-Signature")
		url := c.BaseURL() + c.OriginalURL()
		if !utils.ValidateTwilioSignature(token, url, params, signature) {
			wc.Logger.Warn("Twilio webhook rejected: bad signature")
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid signature", nil)
		}
	}

	messageSid := params["MessageSid"]
	if messageSid == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Missing MessageSid", nil)
	}

	first, err := wc.Guard.MarkWebhookIfNew("twilio:"+messageSid, "twilio_sms")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record webhook", err)
	}
	if !first {
		wc.Logger.WithField("message_sid", messageSid).Info("Duplicate Twilio webhook ignored")
		return wc.twiml(c)
	}

	from := utils.NormalizePhone(params["From"])
	if from == "" {
		wc.Logger.WithField("from", params["From"]).Warn("Inbound SMS with unparseable sender")
		return wc.twiml(c)
	}

	var lead models.Lead
	err = wc.DB.Where("phone_normalized = ?", from).
		Order("created_at desc").First(&lead).Error
	if err == gorm.ErrRecordNotFound {
		wc.Logger.WithField("from", from).Info("Inbound SMS from unknown number")
		return wc.twiml(c)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to look up lead", err)
	}

	if err := utils.LogInboundSMS(wc.DB, lead.ID, params["Body"], messageSid); err != nil {
		wc.Logger.Errorf("Failed to record inbound SMS for lead %d: %v", lead.ID, err)
	}

	wc.Logger.WithFields(logrus.Fields{
		"lead_id":     lead.ID,
		"message_sid": messageSid,
	}).Info("Inbound SMS recorded, sequence paused")

	return wc.twiml(c)
}

func (wc *WebhookController) twiml(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/xml")
	return c.SendString(twimlEmpty)
}

// calBookingPayload is the subset of Cal.com's BOOKING_CREATED event
// this service cares about
type calBookingPayload struct {
	TriggerEvent string `json:"triggerEvent"`
	Payload      struct {
		UID       string `json:"uid"`
		StartTime string `json:"startTime"`
		Attendees []struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"attendees"`
	} `json:"payload"`
}

// HandleCalBooking marks a lead booked when a consultation is scheduled
func (wc *WebhookController) HandleCalBooking(c *fiber.Ctx) error {
	body := c.Body()

	if secret := config.AppConfig.CalWebhookSecret; secret != "" {
		signature := c.Get("X-Cal-Signature-256")
		if !middleware.VerifyHMACSignature(body, signature, secret) {
			wc.Logger.Warn("Cal webhook rejected: bad signature")
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid signature", nil)
		}
	}

	var event calBookingPayload
	if err := json.Unmarshal(body, &event); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if event.TriggerEvent != "BOOKING_CREATED" {
		return c.JSON(fiber.Map{"success": true, "ignored": event.TriggerEvent})
	}
	if event.Payload.UID == "" || len(event.Payload.Attendees) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Missing booking uid or attendees", nil)
	}

	first, err := wc.Guard.MarkWebhookIfNew("cal:"+event.Payload.UID, "cal_booking")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record webhook", err)
	}
	if !first {
		return c.JSON(fiber.Map{"success": true, "duplicate": true})
	}

	email := strings.ToLower(event.Payload.Attendees[0].Email)
	var lead models.Lead
	err = wc.DB.Where("email = ?", email).Order("created_at desc").First(&lead).Error
	if err == gorm.ErrRecordNotFound {
		wc.Logger.WithField("email", email).Info("Booking for unknown attendee, nothing to update")
		return c.JSON(fiber.Map{"success": true, "matched": false})
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to look up lead", err)
	}

	bookedAt := time.Now()
	if t, err := time.Parse(time.RFC3339, event.Payload.StartTime); err == nil {
		bookedAt = t
	}

	updates := map[string]interface{}{
		"consultation_booked_at": bookedAt,
		"status":                 models.LeadStatusBooked,
		"sequence_status":        models.SequenceCompleted,
		"next_followup_at":       nil,
	}
	if err := wc.DB.Model(&models.Lead{}).Where("id = ?", lead.ID).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", err)
	}

	wc.Logger.WithFields(logrus.Fields{
		"lead_id":     lead.ID,
		"booking_uid": event.Payload.UID,
	}).Info("Consultation booked, sequence completed")

	return c.JSON(fiber.Map{"success": true, "matched": true, "lead_id": lead.ID})
}
