package workflow

import (
	"context"
	"testing"

	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
)

// An event whose stored type fails to parse must be rejected as a validation
// failure before the processor dispatch touches the transaction.
func TestProcessEventRejectsUnknownType(t *testing.T) {
	event := &models.OutboxEvent{
		ID:         "evt-1",
		BusinessId: "biz-1",
		EventType:  models.PosEventType("coffee_break"),
	}

	ref, err := processEvent(context.Background(), nil, event)
	if ref != nil {
		t.Fatalf("expected no document ref, got %+v", ref)
	}
	if utils.KindOf(err) != utils.ErrorKindValidation {
		t.Fatalf("unknown event type should be a validation error, got %v", err)
	}
}

// Every dispatchable event type must survive the round trip through the
// stored column representation and back out of the parser.
func TestDispatchableEventTypesParse(t *testing.T) {
	for _, et := range []models.PosEventType{
		models.PosEventTypeSaleCompleted,
		models.PosEventTypeSaleReturned,
		models.PosEventTypeCashMovement,
		models.PosEventTypeGoodsReceived,
		models.PosEventTypePurchaseInvoice,
	} {
		parsed, err := models.ParsePosEventType(string(et))
		if err != nil {
			t.Fatalf("%s: %v", et, err)
		}
		if parsed != et {
			t.Fatalf("%s parsed as %s", et, parsed)
		}
	}
}
