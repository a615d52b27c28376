package workflow

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultWorkerBatchSize = 25
	defaultWorkerInterval  = time.Second
	defaultWorkerLockTTL   = 2 * time.Minute
)

// OutboxWorker drains due outbox events in the background. Batches are
// claimed with SKIP LOCKED so multiple replicas share the queue without
// serializing on each other; a crashed worker's claims expire via LockTTL.
type OutboxWorker struct {
	DB          *gorm.DB
	Logger      *logrus.Logger
	WorkerId    string
	BatchSize   int
	Interval    time.Duration
	LockTTL     time.Duration
	MaxAttempts int
}

func NewOutboxWorker(db *gorm.DB, logger *logrus.Logger) *OutboxWorker {
	host, _ := os.Hostname()
	if host == "" {
		host = "worker"
	}
	return &OutboxWorker{
		DB:          db,
		Logger:      logger,
		WorkerId:    fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
		BatchSize:   envInt("POS_WORKER_BATCH_SIZE", defaultWorkerBatchSize),
		Interval:    envMillis("POS_WORKER_INTERVAL_MS", defaultWorkerInterval),
		LockTTL:     WorkerLockTTLFromEnv(),
		MaxAttempts: MaxAttemptsFromEnv(),
	}
}

// WorkerLockTTLFromEnv reads POS_WORKER_LOCK_TTL in seconds.
func WorkerLockTTLFromEnv() time.Duration {
	if raw := os.Getenv("POS_WORKER_LOCK_TTL"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return defaultWorkerLockTTL
}

func envInt(name string, def int) int {
	if raw := os.Getenv(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envMillis(name string, def time.Duration) time.Duration {
	if raw := os.Getenv(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return def
}

// Run loops until the context is canceled.
func (w *OutboxWorker) Run(ctx context.Context) {
	config.LogInfo(w.Logger, "workflow", "OutboxWorker.Run", "worker started",
		map[string]interface{}{"worker_id": w.WorkerId, "batch_size": w.BatchSize})

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			config.LogInfo(w.Logger, "workflow", "OutboxWorker.Run", "worker stopped",
				map[string]interface{}{"worker_id": w.WorkerId})
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				config.LogError(w.Logger, "workflow", "OutboxWorker.Run", "batch failed",
					map[string]interface{}{"worker_id": w.WorkerId}, err)
			}
		}
	}
}

// RunOnce claims one batch and processes it, returning how many events it
// handled. Exposed for the replay CLI and tests.
func (w *OutboxWorker) RunOnce(ctx context.Context) (int, error) {
	events, err := w.claimBatch(ctx)
	if err != nil {
		return 0, err
	}
	for i := range events {
		if err := w.processClaimed(ctx, &events[i]); err != nil {
			// Infra failure; the claim expires via LockTTL and the event
			// will be retried.
			config.LogError(w.Logger, "workflow", "OutboxWorker.RunOnce", "process claimed event",
				map[string]interface{}{"event_id": events[i].ID, "worker_id": w.WorkerId}, err)
		}
	}
	return len(events), nil
}

// claimBatch locks a batch of due events for this worker. Due means pending,
// or failed with its retry time reached. Rows locked by a live worker are
// skipped; claims older than LockTTL count as abandoned and are reclaimed.
func (w *OutboxWorker) claimBatch(ctx context.Context) ([]models.OutboxEvent, error) {
	var claimed []models.OutboxEvent
	now := time.Now().UTC()

	err := w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var events []models.OutboxEvent
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? OR (status = ? AND next_attempt_at <= ?)",
				models.OutboxEventStatusPending, models.OutboxEventStatusFailed, now).
			Where("locked_at IS NULL OR locked_at <= ?", now.Add(-w.LockTTL)).
			Order("CASE WHEN status = 'pending' THEN 0 ELSE 1 END, COALESCE(next_attempt_at, created_at) ASC").
			Limit(w.BatchSize).
			Find(&events).Error
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		ids := make([]string, 0, len(events))
		for i := range events {
			ids = append(ids, events[i].ID)
		}
		err = tx.Model(&models.OutboxEvent{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"locked_at": &now,
				"locked_by": w.WorkerId,
			}).Error
		if err != nil {
			return err
		}
		for i := range events {
			events[i].LockedAt = &now
			events[i].LockedBy = &w.WorkerId
		}
		claimed = events
		return nil
	})
	return claimed, err
}

// processClaimed runs one claimed event through the same savepoint +
// bookkeeping contract as on-demand processing.
func (w *OutboxWorker) processClaimed(ctx context.Context, event *models.OutboxEvent) error {
	var ref *DocumentRef
	var procErr error

	err := w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ref, procErr = runProcessorSavepoint(ctx, tx, event)
		if procErr != nil {
			if err := markEventFailed(tx, event, procErr, w.MaxAttempts); err != nil {
				return err
			}
			if event.Status == models.OutboxEventStatusDead {
				return enqueueEventDeadNotice(tx, event)
			}
			return nil
		}
		if err := markEventProcessed(tx, event, ref); err != nil {
			return err
		}
		return enqueueDocPostedNotice(tx, event, ref)
	})
	if err != nil {
		return err
	}

	if procErr != nil {
		config.LogInfo(w.Logger, "workflow", "OutboxWorker.processClaimed", "event attempt failed",
			map[string]interface{}{
				"event_id":      event.ID,
				"event_type":    event.EventType,
				"status":        event.Status,
				"attempt_count": event.AttemptCount,
				"error":         procErr.Error(),
			})
		return nil
	}

	notifyDocPosted(event, ref)
	return nil
}
