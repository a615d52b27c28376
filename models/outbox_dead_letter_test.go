package models_test

import (
	"context"
	"testing"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/cedarpos/pos_backend/workflow"
	"github.com/google/uuid"
)

// Drives one event through the whole failure lifecycle: five conflicting
// attempts, dead-letter, refused retry, manual requeue, then success via the
// background worker once the conflict is resolved.
func TestOutboxEventDeadLetterAndRequeue(t *testing.T) {
	setupIntegrationStack(t)
	ctx := context.Background()
	f := seedTenant(t, "DeadLetter Co")

	// A cash movement with no open shift conflicts on every attempt.
	eventId := uuid.NewString()
	results, rejected := models.SubmitOutboxEvents(ctx, f.Business.ID, f.Device.ID, []*models.NewOutboxEvent{{
		ID:        eventId,
		EventType: string(models.PosEventTypeCashMovement),
		Payload:   cashInPayload(),
	}})
	if len(rejected) != 0 || len(results) != 1 {
		t.Fatalf("submit: results=%+v rejected=%+v", results, rejected)
	}

	for attempt := 1; attempt <= 5; attempt++ {
		res, err := workflow.ProcessOutboxEvent(ctx, f.Business.ID, nil, eventId, true)
		if err != nil {
			t.Fatalf("attempt %d: unexpected pipeline error: %v", attempt, err)
		}
		if res.ProcErr == nil {
			t.Fatalf("attempt %d: expected processor conflict", attempt)
		}
		if utils.KindOf(res.ProcErr) != utils.ErrorKindConflict {
			t.Fatalf("attempt %d: error kind = %s", attempt, utils.KindOf(res.ProcErr))
		}

		stored, err := models.GetOutboxEvent(ctx, f.Business.ID, eventId)
		if err != nil {
			t.Fatalf("attempt %d: GetOutboxEvent: %v", attempt, err)
		}
		if stored.AttemptCount != attempt {
			t.Fatalf("attempt %d: attempt_count = %d", attempt, stored.AttemptCount)
		}
		if attempt < 5 {
			if stored.Status != models.OutboxEventStatusFailed {
				t.Fatalf("attempt %d: status = %s, want failed", attempt, stored.Status)
			}
			if stored.NextAttemptAt == nil {
				t.Fatalf("attempt %d: failed event must carry a retry schedule", attempt)
			}
		} else {
			if stored.Status != models.OutboxEventStatusDead {
				t.Fatalf("status after 5 attempts = %s, want dead", stored.Status)
			}
			if stored.NextAttemptAt != nil {
				t.Fatal("dead event must not schedule another retry")
			}
			if stored.ErrorMessage == nil || *stored.ErrorMessage == "" {
				t.Fatal("dead event should retain its last error")
			}
		}
	}

	// Without force, a dead event conflicts instead of running.
	if _, err := workflow.ProcessOutboxEvent(ctx, f.Business.ID, nil, eventId, false); utils.KindOf(err) != utils.ErrorKindConflict {
		t.Fatalf("processing a dead event should conflict, got %v", err)
	}

	// The device was told its event died.
	inbox, err := models.PullInboxEvents(ctx, f.Business.ID, f.Device.ID, 10)
	if err != nil {
		t.Fatalf("PullInboxEvents: %v", err)
	}
	foundDead := false
	for _, e := range inbox {
		if e.EventType == models.InboxEventTypeEventDead {
			foundDead = true
		}
	}
	if !foundDead {
		t.Fatalf("expected an event_dead inbox notice, got %d events", len(inbox))
	}

	// Manual requeue resets the attempt budget.
	n, err := models.RequeueOutboxEvents(ctx, f.Business.ID, []string{eventId}, nil)
	if err != nil || n != 1 {
		t.Fatalf("requeue: n=%d err=%v", n, err)
	}
	stored, err := models.GetOutboxEvent(ctx, f.Business.ID, eventId)
	if err != nil {
		t.Fatalf("GetOutboxEvent after requeue: %v", err)
	}
	if stored.Status != models.OutboxEventStatusPending || stored.AttemptCount != 0 ||
		stored.NextAttemptAt != nil || stored.ErrorMessage != nil {
		t.Fatalf("requeue did not reset the event: %+v", stored)
	}

	// Resolve the conflict and let the worker loop pick the event up.
	if _, err := models.OpenShift(ctx, f.Business.ID, f.Device.ID, models.NewShiftOpen{
		OpeningCashUsd: dt("100"),
	}); err != nil {
		t.Fatalf("OpenShift: %v", err)
	}

	worker := workflow.NewOutboxWorker(config.GetDB(), config.GetLogger())
	processed, err := worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("worker RunOnce: %v", err)
	}
	if processed == 0 {
		t.Fatal("worker claimed no events")
	}

	stored, err = models.GetOutboxEvent(ctx, f.Business.ID, eventId)
	if err != nil {
		t.Fatalf("GetOutboxEvent after worker: %v", err)
	}
	if stored.Status != models.OutboxEventStatusProcessed {
		t.Fatalf("status after worker = %s, want processed", stored.Status)
	}
	if stored.DocType == nil || *stored.DocType != "cash_movement" || stored.DocId == nil {
		t.Fatalf("processed event should reference its document: %+v", stored)
	}

	// Replaying the processed event re-reads, never re-executes.
	res, err := workflow.ProcessOutboxEvent(ctx, f.Business.ID, nil, eventId, false)
	if err != nil || res.Ref == nil || res.Ref.DocId != *stored.DocId {
		t.Fatalf("idempotent re-read: res=%+v err=%v", res, err)
	}
	var count int64
	if err := config.GetDB().Model(&models.CashMovement{}).
		Where("business_id = ? AND id = ?", f.Business.ID, eventId).
		Count(&count).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one movement row, got %d", count)
	}
}
