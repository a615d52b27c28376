package workflow

import (
	"context"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Spans parent the otelgorm query spans emitted inside the transaction.
var tracer = otel.Tracer("github.com/cedarpos/pos_backend/workflow")

// ProcessResult reports one processing attempt. ProcErr carries the
// processor's domain error; the attempt bookkeeping around it has already
// been committed when the caller sees it.
type ProcessResult struct {
	Event   *models.OutboxEvent
	Ref     *DocumentRef
	ProcErr error
}

// ProcessOutboxEvent runs one event through its processor on demand. The
// processor works inside a savepoint: on failure its writes roll back while
// the attempt bookkeeping (attempt_count, status, next_attempt_at) still
// commits. deviceId scopes device-initiated calls; nil means ops access.
// force overrides the dead status and a not-yet-due retry schedule.
func ProcessOutboxEvent(ctx context.Context, businessId string, deviceId *string, eventId string, force bool) (*ProcessResult, error) {
	ctx, span := tracer.Start(ctx, "outbox.process_one", trace.WithAttributes(
		attribute.String("outbox.event_id", eventId),
		attribute.Bool("outbox.force", force),
	))
	defer span.End()

	db := config.GetDB()
	maxAttempts := MaxAttemptsFromEnv()
	lockTTL := WorkerLockTTLFromEnv()

	var result ProcessResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.OutboxEvent
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, eventId).
			First(&event).Error
		if err == gorm.ErrRecordNotFound {
			return utils.NewNotFoundError("event not found: %s", eventId)
		}
		if err != nil {
			return err
		}
		if deviceId != nil && event.DeviceId != *deviceId {
			return utils.NewForbiddenError("event belongs to another device")
		}
		result.Event = &event

		switch event.Status {
		case models.OutboxEventStatusProcessed:
			if event.DocType != nil && event.DocId != nil {
				result.Ref = &DocumentRef{DocType: *event.DocType, DocId: *event.DocId}
			}
			return nil
		case models.OutboxEventStatusDead:
			if !force {
				return utils.NewConflictError("event is dead after %d attempts; requeue or force", event.AttemptCount)
			}
		case models.OutboxEventStatusFailed:
			if !force && event.NextAttemptAt != nil && event.NextAttemptAt.After(time.Now().UTC()) {
				return utils.NewConflictError("event retry is scheduled for %s",
					event.NextAttemptAt.UTC().Format(time.RFC3339))
			}
		}
		if event.LockedAt != nil && time.Since(*event.LockedAt) < lockTTL {
			return utils.NewConflictError("event is being processed")
		}

		ref, procErr := runProcessorSavepoint(ctx, tx, &event)
		if procErr != nil {
			result.ProcErr = procErr
			if err := markEventFailed(tx, &event, procErr, maxAttempts); err != nil {
				return err
			}
			if event.Status == models.OutboxEventStatusDead {
				return enqueueEventDeadNotice(tx, &event)
			}
			return nil
		}

		result.Ref = ref
		if err := markEventProcessed(tx, &event, ref); err != nil {
			return err
		}
		return enqueueDocPostedNotice(tx, &event, ref)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if result.ProcErr != nil {
		span.RecordError(result.ProcErr)
		span.SetStatus(otelcodes.Error, result.ProcErr.Error())
	}

	if result.ProcErr == nil && result.Ref != nil {
		notifyDocPosted(result.Event, result.Ref)
	}
	return &result, nil
}

// runProcessorSavepoint nests the processor's writes so a failure rolls them
// back without touching the outer bookkeeping transaction.
func runProcessorSavepoint(ctx context.Context, tx *gorm.DB, event *models.OutboxEvent) (*DocumentRef, error) {
	var ref *DocumentRef
	err := tx.Transaction(func(inner *gorm.DB) error {
		var err error
		ref, err = processEvent(ctx, inner, event)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// inboxNoticeId derives a stable id per (event, kind) so completion
// bookkeeping replayed after a crash inserts the notice once.
func inboxNoticeId(kind string, eventId string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("inbox:"+kind+":"+eventId)).String()
}

type docPostedNotice struct {
	EventId   string `json:"event_id"`
	EventType string `json:"event_type"`
	DocType   string `json:"doc_type"`
	DocId     string `json:"doc_id"`
}

type eventDeadNotice struct {
	EventId      string `json:"event_id"`
	EventType    string `json:"event_type"`
	AttemptCount int    `json:"attempt_count"`
	Error        string `json:"error"`
}

// enqueueDocPostedNotice tells the originating device its event landed.
func enqueueDocPostedNotice(tx *gorm.DB, event *models.OutboxEvent, ref *DocumentRef) error {
	notice := docPostedNotice{
		EventId:   event.ID,
		EventType: string(event.EventType),
	}
	if ref != nil {
		notice.DocType = ref.DocType
		notice.DocId = ref.DocId
	}
	payload, err := utils.MarshalToJSON(notice)
	if err != nil {
		return err
	}
	return models.EnqueueInboxEventTx(tx, &models.InboxEvent{
		ID:         inboxNoticeId(models.InboxEventTypeDocPosted, event.ID),
		BusinessId: event.BusinessId,
		DeviceId:   event.DeviceId,
		EventType:  models.InboxEventTypeDocPosted,
		Payload:    []byte(payload),
	})
}

// enqueueEventDeadNotice tells the originating device the event exhausted its
// retry budget and needs attention.
func enqueueEventDeadNotice(tx *gorm.DB, event *models.OutboxEvent) error {
	notice := eventDeadNotice{
		EventId:      event.ID,
		EventType:    string(event.EventType),
		AttemptCount: event.AttemptCount,
	}
	if event.ErrorMessage != nil {
		notice.Error = *event.ErrorMessage
	}
	payload, err := utils.MarshalToJSON(notice)
	if err != nil {
		return err
	}
	return models.EnqueueInboxEventTx(tx, &models.InboxEvent{
		ID:         inboxNoticeId(models.InboxEventTypeEventDead, event.ID),
		BusinessId: event.BusinessId,
		DeviceId:   event.DeviceId,
		EventType:  models.InboxEventTypeEventDead,
		Payload:    []byte(payload),
	})
}

// notifyDocPosted fans the completion out to Pub/Sub after commit. Failures
// are logged only; the document is already durable.
func notifyDocPosted(event *models.OutboxEvent, ref *DocumentRef) {
	if event == nil || ref == nil || !config.PublishDocPostedEnabled() {
		return
	}
	msg := config.DocPostedMessage{
		EventId:       event.ID,
		BusinessId:    event.BusinessId,
		DeviceId:      event.DeviceId,
		EventType:     string(event.EventType),
		DocType:       ref.DocType,
		DocId:         ref.DocId,
		OccurredAt:    event.OccurredAt,
		CorrelationId: event.CorrelationId,
	}
	if err := config.PublishDocPosted(event.BusinessId, msg); err != nil {
		config.LogError(config.GetLogger(), "workflow", "notifyDocPosted",
			"publish doc_posted", map[string]string{"event_id": event.ID}, err)
	}
}
