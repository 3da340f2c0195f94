package worker

import (
	"context"
	"time"

	"leadflow/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FollowupWorker drives the sequence engine on a fixed cadence. It is
// the in-process alternative to hitting /cron/process-followups from an
// external scheduler.
type FollowupWorker struct {
	DB        *gorm.DB
	Engine    *utils.SequenceEngine
	Logger    *logrus.Logger
	Interval  time.Duration
	BatchSize int
}

func NewFollowupWorker(db *gorm.DB, engine *utils.SequenceEngine, logger *logrus.Logger, interval time.Duration, batchSize int) *FollowupWorker {
	return &FollowupWorker{
		DB:        db,
		Engine:    engine,
		Logger:    logger,
		Interval:  interval,
		BatchSize: batchSize,
	}
}

func (fw *FollowupWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	fw.Logger.Info("Follow-up worker started")

	ticker := time.NewTicker(fw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fw.Logger.Info("Follow-up worker shutting down...")
			return
		case <-ticker.C:
			fw.runOnce()
		}
	}
}

func (fw *FollowupWorker) runOnce() {
	processed, err := fw.Engine.ProcessAllFollowups(fw.BatchSize)
	if err != nil {
		fw.Logger.Errorf("Error processing follow-ups: %v", err)
		return
	}

	expired, err := fw.Engine.CloseExpiredSequences()
	if err != nil {
		fw.Logger.Errorf("Error closing expired sequences: %v", err)
	}

	if processed > 0 || expired > 0 {
		fw.Logger.WithFields(logrus.Fields{
			"processed": processed,
			"expired":   expired,
		}).Info("Follow-up pass complete")
	}
}
