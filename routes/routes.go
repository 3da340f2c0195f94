package routes

import (
	"leadflow/config"
	controller "leadflow/controllers"
	"leadflow/middleware"
	"leadflow/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Setup wires every HTTP route against a shared engine and guard
func Setup(app *fiber.App, db *gorm.DB, log *logrus.Logger, engine *utils.SequenceEngine, guard *utils.WebhookGuard) {
	leadController := controller.NewLeadController(db, log, engine)
	webhookController := controller.NewWebhookController(db, log, engine, guard, leadController)
	cronController := controller.NewCronController(db, log, engine, guard)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "leadflow",
		})
	})

	api := app.Group("/api/v1", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	api.Post("/leads", leadController.CreateLead)
	api.Get("/leads", leadController.GetLeads)
	api.Get("/leads/:id", leadController.GetLead)
	api.Post("/leads/:id/pause", leadController.PauseLead)
	api.Post("/leads/:id/resume", leadController.ResumeLead)
	api.Post("/leads/:id/skip", leadController.SkipLead)
	api.Post("/leads/:id/close", leadController.CloseLead)
	api.Get("/leads/:id/rate-limit", leadController.GetRateLimitStatus)

	webhooks := app.Group("/webhooks", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Intake is the only endpoint open to arbitrary third parties,
	// throttle it per client IP
	webhooks.Post("/leads", middleware.IntakeRateLimiter(config.AppConfig.RateLimitIntake), webhookController.HandleLeadIntake)
	webhooks.Post("/twilio", webhookController.HandleTwilioInbound)
	webhooks.Post("/cal", webhookController.HandleCalBooking)

	cron := app.Group("/cron", middleware.CronProtected(config.AppConfig.CronSecret))
	cron.Post("/process-followups", cronController.ProcessFollowups)

	log.Info("Routes initialized successfully")
}
