package edgesync

import (
	"context"
	"time"

	"github.com/cedarpos/pos_backend/models"
)

// Ping records an edge node heartbeat and returns the server clock so the
// node can detect drift before it trusts its own cursor timestamps.
func Ping(ctx context.Context, businessId string, nodeId string) *PingResponse {
	models.TouchEdgeNode(ctx, businessId, nodeId, models.EdgeTouchPing)
	return &PingResponse{
		NodeId:     nodeId,
		ServerTime: time.Now().UTC(),
	}
}

// Touch stamps export/import activity for the node outside of ping calls.
func Touch(ctx context.Context, businessId string, nodeId string, kind models.EdgeTouchKind) {
	models.TouchEdgeNode(ctx, businessId, nodeId, kind)
}
