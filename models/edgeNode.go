package models

import (
	"context"
	"os"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EdgeTouchKind selects which bookkeeping column an edge call refreshes.
type EdgeTouchKind string

const (
	EdgeTouchPing   EdgeTouchKind = "ping"
	EdgeTouchImport EdgeTouchKind = "import"
	EdgeTouchExport EdgeTouchKind = "export"
	EdgeTouchSeen   EdgeTouchKind = "seen"
)

// EdgeNode tracks the last activity of an on-prem sync node. Rows are created
// lazily on first contact.
type EdgeNode struct {
	ID           string     `gorm:"primary_key;size:36" json:"id"`
	BusinessId   string     `gorm:"size:64;not null;uniqueIndex:uniq_edge_node,priority:1" json:"business_id"`
	NodeId       string     `gorm:"size:64;not null;uniqueIndex:uniq_edge_node,priority:2" json:"node_id"`
	LastSeenAt   *time.Time `json:"last_seen_at"`
	LastPingAt   *time.Time `json:"last_ping_at"`
	LastImportAt *time.Time `json:"last_import_at"`
	LastExportAt *time.Time `json:"last_export_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type edgeNodeStatus struct {
	BusinessId string    `json:"business_id"`
	NodeId     string    `json:"node_id"`
	Kind       string    `json:"kind"`
	SeenAt     time.Time `json:"seen_at"`
}

// TouchEdgeNode upserts the node row and stamps last_seen plus the
// kind-specific column. Failures are logged, never surfaced: activity
// bookkeeping must not gate sync correctness.
func TouchEdgeNode(ctx context.Context, businessId string, nodeId string, kind EdgeTouchKind) {
	if nodeId == "" {
		return
	}
	logger := config.GetLogger()
	db := config.GetDB()
	now := time.Now().UTC()

	node := EdgeNode{ID: uuid.NewString(), BusinessId: businessId, NodeId: nodeId}
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&node).Error; err != nil {
		config.LogError(logger, "models", "TouchEdgeNode", "upsert failed", nodeId, err)
		return
	}

	updates := map[string]interface{}{"last_seen_at": now}
	switch kind {
	case EdgeTouchPing:
		updates["last_ping_at"] = now
	case EdgeTouchImport:
		updates["last_import_at"] = now
	case EdgeTouchExport:
		updates["last_export_at"] = now
	}
	err := db.WithContext(ctx).Model(&EdgeNode{}).
		Where("business_id = ? AND node_id = ?", businessId, nodeId).
		Updates(updates).Error
	if err != nil {
		config.LogError(logger, "models", "TouchEdgeNode", "touch failed", nodeId, err)
		return
	}

	if topic := os.Getenv("EDGE_NODE_STATUS_TOPIC"); topic != "" && kind == EdgeTouchPing {
		status := edgeNodeStatus{BusinessId: businessId, NodeId: nodeId, Kind: string(kind), SeenAt: now}
		if err := config.PublishTopicJSON(topic, status); err != nil {
			config.LogError(logger, "models", "TouchEdgeNode", "status publish failed", nodeId, err)
		}
	}
}

// ListEdgeNodes is the ops node-status view.
func ListEdgeNodes(ctx context.Context, businessId string) ([]*EdgeNode, error) {
	db := config.GetDB()
	var nodes []*EdgeNode
	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("node_id ASC").
		Find(&nodes).Error
	return nodes, err
}

// EdgeSyncCursor persists an edge node's replication position per entity so
// a restart resumes where the last pull stopped.
type EdgeSyncCursor struct {
	ID         string    `gorm:"primary_key;size:36" json:"id"`
	BusinessId string    `gorm:"size:64;not null;uniqueIndex:uniq_edge_cursor,priority:1" json:"business_id"`
	Entity     string    `gorm:"size:40;not null;uniqueIndex:uniq_edge_cursor,priority:2" json:"entity"`
	CursorTs   time.Time `gorm:"not null" json:"cursor_ts"`
	CursorId   string    `gorm:"size:36;not null" json:"cursor_id"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetEdgeSyncCursor returns the stored cursor, or nil when the entity has
// never been pulled.
func GetEdgeSyncCursor(ctx context.Context, businessId string, entity string) (*EdgeSyncCursor, error) {
	db := config.GetDB()
	var cursor EdgeSyncCursor
	err := db.WithContext(ctx).
		Where("business_id = ? AND entity = ?", businessId, entity).
		First(&cursor).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

// SaveEdgeSyncCursor upserts the cursor after a page lands.
func SaveEdgeSyncCursor(ctx context.Context, businessId string, entity string, cursorTs time.Time, cursorId string) error {
	db := config.GetDB()
	cursor := EdgeSyncCursor{
		ID:         uuid.NewString(),
		BusinessId: businessId,
		Entity:     entity,
		CursorTs:   cursorTs,
		CursorId:   cursorId,
	}
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&cursor).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Model(&EdgeSyncCursor{}).
		Where("business_id = ? AND entity = ?", businessId, entity).
		Updates(map[string]interface{}{"cursor_ts": cursorTs, "cursor_id": cursorId}).Error
}
