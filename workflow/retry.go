package workflow

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cedarpos/pos_backend/models"
	"gorm.io/gorm"
)

const (
	DefaultMaxAttempts  = 5
	maxJitterWindowSecs = 30
	backoffBaseCapSecs  = 300
)

// MaxAttemptsFromEnv reads POS_OUTBOX_MAX_ATTEMPTS, falling back to 5.
func MaxAttemptsFromEnv() int {
	if raw := os.Getenv("POS_OUTBOX_MAX_ATTEMPTS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxAttempts
}

// backoffForAttempt schedules the next retry: exponential base capped at
// 300s, plus a jitter slice derived from SHA-1(eventId:attempt). Salting by
// event id keeps a burst of same-attempt failures from retrying in lockstep,
// while staying fully deterministic per (event, attempt).
func backoffForAttempt(attempt int, eventId string) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	baseSecs := backoffBaseCapSecs
	if attempt-1 < 31 {
		if v := 1 << (attempt - 1); v < backoffBaseCapSecs {
			baseSecs = v
		}
	}

	window := baseSecs / 5
	if window < 1 {
		window = 1
	}
	if window > maxJitterWindowSecs {
		window = maxJitterWindowSecs
	}
	digest := sha1.Sum([]byte(fmt.Sprintf("%s:%d", eventId, attempt)))
	jitter := int(binary.BigEndian.Uint64(digest[:8]) % uint64(window+1))

	total := baseSecs + jitter
	if total > backoffBaseCapSecs {
		total = backoffBaseCapSecs
	}
	return time.Duration(total) * time.Second
}

// markEventProcessed finalizes a successful attempt and records the produced
// document reference.
func markEventProcessed(tx *gorm.DB, event *models.OutboxEvent, ref *DocumentRef) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":          models.OutboxEventStatusProcessed,
		"processed_at":    &now,
		"error_message":   nil,
		"next_attempt_at": nil,
		"locked_at":       nil,
		"locked_by":       nil,
	}
	if ref != nil {
		updates["doc_type"] = ref.DocType
		updates["doc_id"] = ref.DocId
	}
	if err := tx.Model(&models.OutboxEvent{}).Where("id = ?", event.ID).Updates(updates).Error; err != nil {
		return err
	}
	event.Status = models.OutboxEventStatusProcessed
	event.ProcessedAt = &now
	event.ErrorMessage = nil
	event.NextAttemptAt = nil
	if ref != nil {
		event.DocType = &ref.DocType
		event.DocId = &ref.DocId
	}
	return nil
}

// markEventFailed books one failed attempt. Dead exactly when the attempt
// count reaches maxAttempts; otherwise failed with a scheduled retry.
func markEventFailed(tx *gorm.DB, event *models.OutboxEvent, procErr error, maxAttempts int) error {
	attempt := event.AttemptCount + 1
	msg := procErr.Error()
	if len(msg) > 4000 {
		msg = msg[:4000]
	}

	updates := map[string]interface{}{
		"attempt_count": attempt,
		"error_message": &msg,
		"locked_at":     nil,
		"locked_by":     nil,
	}
	if attempt >= maxAttempts {
		updates["status"] = models.OutboxEventStatusDead
		updates["next_attempt_at"] = nil
		event.Status = models.OutboxEventStatusDead
		event.NextAttemptAt = nil
	} else {
		next := time.Now().UTC().Add(backoffForAttempt(attempt, event.ID))
		updates["status"] = models.OutboxEventStatusFailed
		updates["next_attempt_at"] = &next
		event.Status = models.OutboxEventStatusFailed
		event.NextAttemptAt = &next
	}
	event.AttemptCount = attempt
	event.ErrorMessage = &msg

	return tx.Model(&models.OutboxEvent{}).Where("id = ?", event.ID).Updates(updates).Error
}
