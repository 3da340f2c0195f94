package worker

import (
	"context"
	"time"

	"leadflow/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CleanupWorker prunes expired rows from the processed-webhook ledger
// so dedup lookups stay small
type CleanupWorker struct {
	DB     *gorm.DB
	Guard  *utils.WebhookGuard
	Logger *logrus.Logger
}

func NewCleanupWorker(db *gorm.DB, guard *utils.WebhookGuard, logger *logrus.Logger) *CleanupWorker {
	return &CleanupWorker{
		DB:     db,
		Guard:  guard,
		Logger: logger,
	}
}

func (cw *CleanupWorker) Start(ctx context.Context) {
	time.Sleep(30 * time.Second)

	cw.Logger.Info("Cleanup worker started")

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.Logger.Info("Cleanup worker shutting down...")
			return
		case <-ticker.C:
			deleted, err := cw.Guard.CleanupExpiredWebhooks()
			if err != nil {
				cw.Logger.Errorf("Error cleaning up webhook ledger: %v", err)
				continue
			}
			if deleted > 0 {
				cw.Logger.WithField("deleted", deleted).Info("Webhook ledger cleaned")
			}
		}
	}
}
