package controller

import (
	"time"

	"leadflow/config"
	"leadflow/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type CronController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Engine *utils.SequenceEngine
	Guard  *utils.WebhookGuard
}

func NewCronController(db *gorm.DB, logger *logrus.Logger, engine *utils.SequenceEngine, guard *utils.WebhookGuard) *CronController {
	return &CronController{
		DB:     db,
		Logger: logger,
		Engine: engine,
		Guard:  guard,
	}
}

// ProcessFollowups runs one scheduler pass: due follow-ups, the
// expiration sweep, and webhook ledger cleanup. External cron services
// hit this when the in-process worker is disabled.
func (cc *CronController) ProcessFollowups(c *fiber.Ctx) error {
	start := time.Now()

	processed, err := cc.Engine.ProcessAllFollowups(config.AppConfig.FollowupBatchSize)
	if err != nil {
		cc.Logger.Errorf("Follow-up batch failed: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process follow-ups", err)
	}

	expired, err := cc.Engine.CloseExpiredSequences()
	if err != nil {
		cc.Logger.Errorf("Expiration sweep failed: %v", err)
	}

	cleaned, err := cc.Guard.CleanupExpiredWebhooks()
	if err != nil {
		cc.Logger.Errorf("Webhook cleanup failed: %v", err)
	}

	cc.Logger.WithFields(logrus.Fields{
		"processed": processed,
		"expired":   expired,
		"cleaned":   cleaned,
		"duration":  time.Since(start).String(),
	}).Info("Cron pass complete")

	return c.JSON(fiber.Map{
		"success":   true,
		"processed": processed,
		"expired":   expired,
		"cleaned":   cleaned,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
