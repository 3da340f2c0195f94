package main

import (
	"context"
	"time"

	"leadflow/config"
	"leadflow/middleware"
	"leadflow/routes"
	"leadflow/utils"
	"leadflow/worker"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.Environment == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	// Error reporting is optional, only wired when a DSN is set
	if dsn := config.AppConfig.SentryDSN; dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Errorf("Failed to initialize Sentry: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Channel senders and the engine they feed
	smsSender := utils.NewTwilioSender(config.DB, logger, config.AppConfig.Twilio)
	emailSender := utils.NewSMTPSender(config.DB, logger, config.AppConfig.SMTP)
	engine := utils.NewSequenceEngine(config.DB, logger, smsSender, emailSender)
	guard := utils.NewWebhookGuard(config.DB)

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Start background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	followupWorker := worker.NewFollowupWorker(config.DB, engine, logger,
		config.AppConfig.FollowupInterval, config.AppConfig.FollowupBatchSize)
	go followupWorker.Start(ctx)

	cleanupWorker := worker.NewCleanupWorker(config.DB, guard, logger)
	go cleanupWorker.Start(ctx)

	// Setup routes
	routes.Setup(app, config.DB, logger, engine, guard)

	// Start server
	logger.Infof("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
