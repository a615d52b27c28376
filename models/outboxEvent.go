package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxEventPayloadBytes caps a single submitted payload.
const MaxEventPayloadBytes = 256 * 1024

// OutboxEvent is the durable record of a device-submitted POS event. The
// client-generated id is the idempotency unit: resubmitting the same id is a
// no-op regardless of the row's processing state.
type OutboxEvent struct {
	ID         string       `gorm:"primary_key;size:36" json:"id"`
	BusinessId string       `gorm:"size:64;not null;index:idx_outbox_due,priority:1;uniqueIndex:uniq_outbox_idem,priority:1" json:"business_id"`
	DeviceId   string       `gorm:"size:36;not null;index;uniqueIndex:uniq_outbox_idem,priority:2" json:"device_id"`
	EventType  PosEventType `gorm:"size:40;not null;uniqueIndex:uniq_outbox_idem,priority:3" json:"event_type"`
	Payload    []byte       `gorm:"type:blob;not null" json:"payload"`
	// Optional secondary idempotency axis; collapses distinct ids that carry
	// the same business operation.
	IdempotencyKey *string           `gorm:"size:128;uniqueIndex:uniq_outbox_idem,priority:4" json:"idempotency_key"`
	Status         OutboxEventStatus `gorm:"size:20;not null;default:'pending';index:idx_outbox_due,priority:2" json:"status"`
	AttemptCount   int               `gorm:"not null;default:0" json:"attempt_count"`
	NextAttemptAt  *time.Time        `gorm:"index:idx_outbox_due,priority:3" json:"next_attempt_at"`
	ErrorMessage   *string           `gorm:"type:text" json:"error_message"`
	ProcessedAt    *time.Time        `gorm:"index" json:"processed_at"`
	// Reference to the document the processor produced.
	DocType       *string    `gorm:"size:40" json:"doc_type"`
	DocId         *string    `gorm:"size:36" json:"doc_id"`
	LockedAt      *time.Time `gorm:"index" json:"locked_at"`
	LockedBy      *string    `gorm:"size:100" json:"locked_by"`
	CorrelationId string     `gorm:"size:64;index" json:"correlation_id"`
	OccurredAt    time.Time  `gorm:"not null" json:"occurred_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime;index" json:"updated_at"`
}

type NewOutboxEvent struct {
	ID             string          `json:"id" binding:"required"`
	EventType      string          `json:"event_type" binding:"required"`
	Payload        json.RawMessage `json:"payload" binding:"required"`
	OccurredAt     *time.Time      `json:"occurred_at"`
	IdempotencyKey *string         `json:"idempotency_key"`
}

const (
	SubmitStatusInserted  = "inserted"
	SubmitStatusDuplicate = "duplicate"
)

type OutboxSubmitResult struct {
	EventId         string  `json:"event_id"`
	Status          string  `json:"status"`
	ExistingEventId *string `json:"existing_event_id,omitempty"`
}

type OutboxRejectedEvent struct {
	EventId string `json:"event_id"`
	Error   string `json:"error"`
}

func validateNewOutboxEvent(input *NewOutboxEvent) error {
	if input.ID == "" {
		return utils.NewValidationError("event id is required")
	}
	if _, err := uuid.Parse(input.ID); err != nil {
		return utils.NewValidationError("event id must be a uuid")
	}
	if _, err := ParsePosEventType(input.EventType); err != nil {
		return utils.NewValidationError("%s", err.Error())
	}
	if len(input.Payload) == 0 {
		return utils.NewValidationError("payload is required")
	}
	if len(input.Payload) > MaxEventPayloadBytes {
		return utils.NewValidationError("payload exceeds %d bytes", MaxEventPayloadBytes)
	}
	if !json.Valid(input.Payload) {
		return utils.NewValidationError("payload is not valid JSON")
	}
	if input.IdempotencyKey != nil && len(*input.IdempotencyKey) > 128 {
		return utils.NewValidationError("idempotency key exceeds 128 chars")
	}
	return nil
}

// SubmitOutboxEvents admits a device batch. Events are handled independently:
// one bad event never fails its neighbors. Inserts go through insert-ignore so
// a retried batch classifies instead of erroring.
func SubmitOutboxEvents(ctx context.Context, businessId string, deviceId string, events []*NewOutboxEvent) ([]OutboxSubmitResult, []OutboxRejectedEvent) {
	logger := config.GetLogger()
	db := config.GetDB()

	results := make([]OutboxSubmitResult, 0, len(events))
	rejected := make([]OutboxRejectedEvent, 0)

	for _, input := range events {
		if input == nil {
			rejected = append(rejected, OutboxRejectedEvent{Error: "empty event"})
			continue
		}
		if err := validateNewOutboxEvent(input); err != nil {
			rejected = append(rejected, OutboxRejectedEvent{EventId: input.ID, Error: err.Error()})
			continue
		}

		occurredAt := time.Now().UTC()
		if input.OccurredAt != nil {
			occurredAt = input.OccurredAt.UTC()
		}
		record := OutboxEvent{
			ID:             input.ID,
			BusinessId:     businessId,
			DeviceId:       deviceId,
			EventType:      PosEventType(input.EventType),
			Payload:        input.Payload,
			IdempotencyKey: input.IdempotencyKey,
			Status:         OutboxEventStatusPending,
			CorrelationId:  correlationIdFromContextOrNew(ctx),
			OccurredAt:     occurredAt,
		}

		res := db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&record)
		if res.Error != nil {
			config.LogError(logger, "models", "SubmitOutboxEvents", "insert failed", input.ID, res.Error)
			rejected = append(rejected, OutboxRejectedEvent{EventId: input.ID, Error: "storage error"})
			continue
		}
		if res.RowsAffected > 0 {
			results = append(results, OutboxSubmitResult{EventId: input.ID, Status: SubmitStatusInserted})
			continue
		}

		// Insert was ignored: either this id already exists, or the
		// idempotency key points at a different canonical event.
		existing, err := classifyDuplicate(ctx, db, businessId, deviceId, &record)
		if err != nil {
			config.LogError(logger, "models", "SubmitOutboxEvents", "duplicate classification failed", input.ID, err)
			rejected = append(rejected, OutboxRejectedEvent{EventId: input.ID, Error: "storage error"})
			continue
		}
		result := OutboxSubmitResult{EventId: input.ID, Status: SubmitStatusDuplicate}
		if existing != nil && existing.ID != input.ID {
			result.ExistingEventId = &existing.ID
		}
		results = append(results, result)
	}

	return results, rejected
}

// classifyDuplicate decides which unique axis swallowed the insert. The row's
// prior state is never touched either way.
func classifyDuplicate(ctx context.Context, db *gorm.DB, businessId string, deviceId string, record *OutboxEvent) (*OutboxEvent, error) {
	var byId OutboxEvent
	err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, record.ID).
		First(&byId).Error
	if err == nil {
		return &byId, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	if record.IdempotencyKey == nil {
		// Same id exists under another tenant; treat as duplicate of itself.
		return nil, nil
	}
	var byKey OutboxEvent
	err = db.WithContext(ctx).
		Where("business_id = ? AND device_id = ? AND event_type = ? AND idempotency_key = ?",
			businessId, deviceId, record.EventType, *record.IdempotencyKey).
		First(&byKey).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &byKey, nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// GetOutboxEvent fetches one event scoped to the tenant.
func GetOutboxEvent(ctx context.Context, businessId string, eventId string) (*OutboxEvent, error) {
	db := config.GetDB()
	var event OutboxEvent
	err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, eventId).
		First(&event).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListOutboxEvents returns a device's events for its reconciliation view.
func ListOutboxEvents(ctx context.Context, businessId string, deviceId string, status string, limit int) ([]*OutboxEvent, error) {
	db := config.GetDB()
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := db.WithContext(ctx).
		Where("business_id = ? AND device_id = ?", businessId, deviceId)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var events []*OutboxEvent
	err := q.Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}

// RequeueOutboxEvents moves failed/dead events back to pending with a fresh
// attempt budget. Only failed and dead rows are touched.
func RequeueOutboxEvents(ctx context.Context, businessId string, eventIds []string, deviceId *string) (int64, error) {
	db := config.GetDB()
	if len(eventIds) == 0 {
		return 0, nil
	}
	q := db.WithContext(ctx).Model(&OutboxEvent{}).
		Where("business_id = ? AND id IN ?", businessId, utils.UniqueSlice(eventIds)).
		Where("status IN ?", []OutboxEventStatus{OutboxEventStatusFailed, OutboxEventStatusDead})
	if deviceId != nil {
		q = q.Where("device_id = ?", *deviceId)
	}
	res := q.Updates(map[string]interface{}{
		"status":          OutboxEventStatusPending,
		"attempt_count":   0,
		"next_attempt_at": nil,
		"error_message":   nil,
		"locked_at":       nil,
		"locked_by":       nil,
	})
	return res.RowsAffected, res.Error
}

// RequeueAllDead requeues every dead event of a tenant (ops bulk replay).
func RequeueAllDead(ctx context.Context, businessId string) (int64, error) {
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&OutboxEvent{}).
		Where("business_id = ? AND status = ?", businessId, OutboxEventStatusDead).
		Updates(map[string]interface{}{
			"status":          OutboxEventStatusPending,
			"attempt_count":   0,
			"next_attempt_at": nil,
			"error_message":   nil,
			"locked_at":       nil,
			"locked_by":       nil,
		})
	return res.RowsAffected, res.Error
}

// ListDeadOutboxEvents is the ops dead-letter inspection view.
func ListDeadOutboxEvents(ctx context.Context, businessId string, limit int) ([]*OutboxEvent, error) {
	db := config.GetDB()
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	var events []*OutboxEvent
	err := db.WithContext(ctx).
		Where("business_id = ? AND status = ?", businessId, OutboxEventStatusDead).
		Order("updated_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
