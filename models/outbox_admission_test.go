package models_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/google/uuid"
)

func cashInPayload() json.RawMessage {
	return json.RawMessage(`{"movement_type":"cash_in","amount_usd":"10","amount_lbp":"0"}`)
}

func TestOutboxAdmissionIdempotency(t *testing.T) {
	setupIntegrationStack(t)
	ctx := context.Background()
	f := seedTenant(t, "Admission Co")

	eventId := uuid.NewString()
	event := &models.NewOutboxEvent{
		ID:        eventId,
		EventType: string(models.PosEventTypeCashMovement),
		Payload:   cashInPayload(),
	}

	results, rejected := models.SubmitOutboxEvents(ctx, f.Business.ID, f.Device.ID, []*models.NewOutboxEvent{event})
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejections: %+v", rejected)
	}
	if len(results) != 1 || results[0].Status != models.SubmitStatusInserted {
		t.Fatalf("first submission: %+v", results)
	}

	// Same id again: duplicate, original row untouched.
	results, rejected = models.SubmitOutboxEvents(ctx, f.Business.ID, f.Device.ID, []*models.NewOutboxEvent{event})
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejections on resubmit: %+v", rejected)
	}
	if len(results) != 1 || results[0].Status != models.SubmitStatusDuplicate {
		t.Fatalf("resubmission: %+v", results)
	}
	if results[0].ExistingEventId != nil {
		t.Fatalf("same-id duplicate should not carry existing_event_id, got %s", *results[0].ExistingEventId)
	}

	stored, err := models.GetOutboxEvent(ctx, f.Business.ID, eventId)
	if err != nil {
		t.Fatalf("GetOutboxEvent: %v", err)
	}
	if stored.Status != models.OutboxEventStatusPending || stored.AttemptCount != 0 {
		t.Fatalf("resubmission mutated the row: %+v", stored)
	}
}

func TestOutboxIdempotencyKeyCollapsesDistinctIds(t *testing.T) {
	setupIntegrationStack(t)
	ctx := context.Background()
	f := seedTenant(t, "Collapse Co")

	key := "drawer-open-20260826-001"
	firstId := uuid.NewString()
	secondId := uuid.NewString()

	results, rejected := models.SubmitOutboxEvents(ctx, f.Business.ID, f.Device.ID, []*models.NewOutboxEvent{{
		ID:             firstId,
		EventType:      string(models.PosEventTypeCashMovement),
		Payload:        cashInPayload(),
		IdempotencyKey: &key,
	}})
	if len(rejected) != 0 || len(results) != 1 || results[0].Status != models.SubmitStatusInserted {
		t.Fatalf("first submission: results=%+v rejected=%+v", results, rejected)
	}

	// Different client-generated id, same logical action: the earlier row is
	// canonical and its id comes back for local-id reconciliation.
	results, rejected = models.SubmitOutboxEvents(ctx, f.Business.ID, f.Device.ID, []*models.NewOutboxEvent{{
		ID:             secondId,
		EventType:      string(models.PosEventTypeCashMovement),
		Payload:        cashInPayload(),
		IdempotencyKey: &key,
	}})
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejections: %+v", rejected)
	}
	if len(results) != 1 || results[0].Status != models.SubmitStatusDuplicate {
		t.Fatalf("second submission: %+v", results)
	}
	if results[0].ExistingEventId == nil || *results[0].ExistingEventId != firstId {
		t.Fatalf("expected existing_event_id=%s, got %+v", firstId, results[0].ExistingEventId)
	}

	// The second id never landed as its own row.
	if _, err := models.GetOutboxEvent(ctx, f.Business.ID, secondId); err != utils.ErrorRecordNotFound {
		t.Fatalf("collapsed id should not exist, got err=%v", err)
	}
}

func TestOutboxAdmissionIsolatesPerItemFailures(t *testing.T) {
	setupIntegrationStack(t)
	ctx := context.Background()
	f := seedTenant(t, "Batch Co")

	good := &models.NewOutboxEvent{
		ID:        uuid.NewString(),
		EventType: string(models.PosEventTypeCashMovement),
		Payload:   cashInPayload(),
	}
	badId := &models.NewOutboxEvent{
		ID:        "not-a-uuid",
		EventType: string(models.PosEventTypeCashMovement),
		Payload:   cashInPayload(),
	}
	badType := &models.NewOutboxEvent{
		ID:        uuid.NewString(),
		EventType: "coffee_break",
		Payload:   cashInPayload(),
	}
	badJson := &models.NewOutboxEvent{
		ID:        uuid.NewString(),
		EventType: string(models.PosEventTypeCashMovement),
		Payload:   json.RawMessage(`{"movement_type":`),
	}

	results, rejected := models.SubmitOutboxEvents(ctx, f.Business.ID, f.Device.ID,
		[]*models.NewOutboxEvent{badId, good, badType, badJson})

	if len(results) != 1 || results[0].EventId != good.ID || results[0].Status != models.SubmitStatusInserted {
		t.Fatalf("good event should survive its neighbors: %+v", results)
	}
	if len(rejected) != 3 {
		t.Fatalf("expected 3 rejections, got %+v", rejected)
	}
	for _, r := range rejected {
		if r.Error == "" {
			t.Fatalf("rejected item without error text: %+v", r)
		}
	}
}
