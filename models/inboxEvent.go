package models

import (
	"context"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	InboxEventTypeDocPosted   = "doc_posted"
	InboxEventTypeEventDead   = "event_dead"
	InboxEventTypeTokenReset  = "token_reset"
	InboxEventTypeConfigDirty = "config_dirty"
)

// InboxEvent is a server-to-device notification. Devices pull in applied
// order and ack to delete; redelivery until ack is expected.
type InboxEvent struct {
	ID         string    `gorm:"primary_key;size:36" json:"id"`
	BusinessId string    `gorm:"size:64;not null;index:idx_inbox_pull,priority:1" json:"business_id"`
	DeviceId   string    `gorm:"size:36;not null;index:idx_inbox_pull,priority:2" json:"device_id"`
	EventType  string    `gorm:"size:40;not null" json:"event_type"`
	Payload    []byte    `gorm:"type:blob" json:"payload"`
	AppliedAt  time.Time `gorm:"not null;index:idx_inbox_pull,priority:3" json:"applied_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// EnqueueInboxEventTx inserts a notification inside the caller's transaction.
// Insert-ignore keeps completion bookkeeping idempotent across retries.
func EnqueueInboxEventTx(tx *gorm.DB, event *InboxEvent) error {
	if event.AppliedAt.IsZero() {
		event.AppliedAt = time.Now().UTC()
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(event).Error
}

// PullInboxEvents returns the device's oldest unacked notifications.
func PullInboxEvents(ctx context.Context, businessId string, deviceId string, limit int) ([]*InboxEvent, error) {
	db := config.GetDB()
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []*InboxEvent
	err := db.WithContext(ctx).
		Where("business_id = ? AND device_id = ?", businessId, deviceId).
		Order("applied_at ASC, id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// AckInboxEvents deletes acked notifications. Unknown ids are ignored so a
// replayed ack stays harmless.
func AckInboxEvents(ctx context.Context, businessId string, deviceId string, eventIds []string) (int64, error) {
	if len(eventIds) == 0 {
		return 0, nil
	}
	db := config.GetDB()
	res := db.WithContext(ctx).
		Where("business_id = ? AND device_id = ? AND id IN ?", businessId, deviceId, utils.UniqueSlice(eventIds)).
		Delete(&InboxEvent{})
	return res.RowsAffected, res.Error
}
