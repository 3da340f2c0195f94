package controller

import (
	"strconv"
	"strings"
	"time"

	"leadflow/models"
	"leadflow/utils"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultSequenceTTL is how long a new lead stays eligible for automated
// follow-up before the expiration sweep closes it.
const DefaultSequenceTTL = 30 * 24 * time.Hour

type LeadController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Engine *utils.SequenceEngine
}

func NewLeadController(db *gorm.DB, logger *logrus.Logger, engine *utils.SequenceEngine) *LeadController {
	return &LeadController{
		DB:     db,
		Logger: logger,
		Engine: engine,
	}
}

// LeadInput is the shared payload for manual creation and webhook intake
type LeadInput struct {
	FirstName          string `json:"first_name" validate:"required,max=100"`
	LastName           string `json:"last_name" validate:"omitempty,max=100"`
	Email              string `json:"email" validate:"omitempty,email"`
	Phone              string `json:"phone" validate:"omitempty,max=30"`
	City               string `json:"city" validate:"omitempty,max=100"`
	Address            string `json:"address" validate:"omitempty,max=200"`
	ProjectType        string `json:"project_type" validate:"omitempty,max=100"`
	ProjectDescription string `json:"project_description" validate:"omitempty,max=2000"`
	Source             string `json:"source" validate:"omitempty,max=100"`
	Notes              string `json:"notes" validate:"omitempty,max=2000"`
	ExternalID         string `json:"external_id" validate:"omitempty,max=200"`
}

// CreateLead creates a new lead and fires the instant response
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	var input LeadInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	lead, status, err := lc.createFromInput(input, "manual")
	if err != nil {
		return utils.ErrorResponse(c, status, err.Error(), nil)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(lead))
}

// createFromInput validates, persists, and kicks off the instant
// response for one lead. Returns the HTTP status to use on error.
func (lc *LeadController) createFromInput(input LeadInput, defaultSource string) (*models.Lead, int, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, fiber.StatusBadRequest, err
	}
	if input.Email == "" && input.Phone == "" {
		return nil, fiber.StatusBadRequest, errMissingContact
	}
	if input.Email != "" {
		if err := checkmail.ValidateFormat(input.Email); err != nil {
			return nil, fiber.StatusBadRequest, errInvalidEmail
		}
	}

	source := input.Source
	if source == "" {
		source = defaultSource
	}

	expiresAt := time.Now().Add(DefaultSequenceTTL)
	lead := models.Lead{
		FirstName:          input.FirstName,
		LastName:           input.LastName,
		Email:              strings.ToLower(input.Email),
		Phone:              input.Phone,
		PhoneNormalized:    utils.NormalizePhone(input.Phone),
		City:               input.City,
		Address:            input.Address,
		ProjectType:        input.ProjectType,
		ProjectDescription: input.ProjectDescription,
		Source:             source,
		Notes:              input.Notes,
		ExternalID:         input.ExternalID,
		Status:             models.LeadStatusNew,
		SequenceStatus:     models.SequenceActive,
		SequenceStep:       -1,
		SequenceExpiresAt:  &expiresAt,
	}

	if err := lc.DB.Create(&lead).Error; err != nil {
		lc.Logger.Errorf("Failed to create lead: %v", err)
		return nil, fiber.StatusInternalServerError, errCreateFailed
	}

	// Instant response runs in the background; intake latency must not
	// depend on channel sender round trips
	go func(leadID uint) {
		if err := lc.Engine.ProcessInstantResponse(leadID); err != nil {
			lc.Logger.Errorf("Error processing instant response for lead %d: %v", leadID, err)
		}
	}(lead.ID)

	return &lead, 0, nil
}

// GetLeads returns a filtered, paginated lead list
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	query := lc.DB.Model(&models.Lead{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if sequenceStatus := c.Query("sequence_status"); sequenceStatus != "" {
		query = query.Where("sequence_status = ?", sequenceStatus)
	}
	if search := c.Query("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where(
			"first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ? OR phone ILIKE ? OR city ILIKE ?",
			pattern, pattern, pattern, pattern, pattern,
		)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit > 100 {
		limit = 100
	}
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	var leads []models.Lead
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	return c.JSON(fiber.Map{
		"leads":  leads,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetLead returns one lead with its message history
func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	var lead models.Lead
	if err := lc.DB.Preload("Messages").First(&lead, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	return c.JSON(utils.SuccessResponse(lead))
}

// PauseLead suspends the lead's sequence
func (lc *LeadController) PauseLead(c *fiber.Ctx) error {
	lead, err := lc.findLead(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err := lc.Engine.PauseSequence(lead.ID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to pause sequence", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// ResumeLead reactivates a paused sequence
func (lc *LeadController) ResumeLead(c *fiber.Ctx) error {
	lead, err := lc.findLead(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err := lc.Engine.ResumeSequence(lead.ID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resume sequence", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// SkipLead advances past the next step without sending it
func (lc *LeadController) SkipLead(c *fiber.Ctx) error {
	lead, err := lc.findLead(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err := lc.Engine.SkipToNextStep(lead.ID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to skip step", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// CloseLead stops the sequence and closes the lead as won or lost
func (lc *LeadController) CloseLead(c *fiber.Ctx) error {
	var input struct {
		Reason string `json:"reason" validate:"required,max=200"`
		Notes  string `json:"notes" validate:"omitempty,max=2000"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	lead, err := lc.findLead(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	// A booked lead closes as won, everything else as lost
	finalStatus := models.LeadStatusLost
	if input.Reason == "booked" {
		finalStatus = models.LeadStatusWon
	}

	if err := lc.Engine.StopSequence(lead.ID, input.Reason, finalStatus); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to close lead", err)
	}

	if input.Notes != "" {
		if err := lc.DB.Model(&models.Lead{}).Where("id = ?", lead.ID).
			Update("notes", input.Notes).Error; err != nil {
			lc.Logger.Errorf("Failed to update notes for lead %d: %v", lead.ID, err)
		}
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetRateLimitStatus exposes the lead's SMS counters for the UI
func (lc *LeadController) GetRateLimitStatus(c *fiber.Ctx) error {
	lead, err := lc.findLead(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	status, err := lc.Engine.Limiter.SMSRateLimitStatus(lead.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch rate limit status", err)
	}
	return c.JSON(utils.SuccessResponse(status))
}

func (lc *LeadController) findLead(c *fiber.Ctx) (*models.Lead, error) {
	var lead models.Lead
	if err := lc.DB.First(&lead, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}
