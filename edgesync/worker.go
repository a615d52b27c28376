package edgesync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/cedarpos/pos_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultSyncInterval  = 30 * time.Second
	defaultSyncPageLimit = 500
	// A single cycle stops paging an entity after this many pages; the
	// persisted cursor lets the next cycle continue the drain.
	maxPullLoops = 200
	// Unsynced documents pushed per cycle.
	pushBatchSize = 100
)

// Worker runs on an edge deployment: it pulls masterdata pages from the
// cloud, pushes locally posted documents up, and heartbeats. The cloud never
// dials the edge, so stores behind NAT or flaky uplinks need no inbound
// connectivity.
type Worker struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	Client    *Client
	Interval  time.Duration
	PageLimit int
}

func NewWorkerFromEnv(db *gorm.DB, logger *logrus.Logger) (*Worker, error) {
	client, err := NewClientFromEnv()
	if err != nil {
		return nil, err
	}

	interval := defaultSyncInterval
	if raw := os.Getenv("EDGE_SYNC_INTERVAL_MS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			interval = time.Duration(n) * time.Millisecond
		}
	}
	pageLimit := defaultSyncPageLimit
	if raw := os.Getenv("EDGE_SYNC_PAGE_LIMIT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pageLimit = n
		}
	}

	return &Worker{
		DB:        db,
		Logger:    logger,
		Client:    client,
		Interval:  interval,
		PageLimit: pageLimit,
	}, nil
}

// Run loops until the context is canceled. The first cycle starts
// immediately so a freshly provisioned edge does not sit empty for a full
// interval.
func (w *Worker) Run(ctx context.Context) {
	config.LogInfo(w.Logger, "edgesync", "Worker.Run", "edge sync started",
		map[string]interface{}{"node_id": w.Client.NodeId(), "interval": w.Interval.String()})

	if err := w.RunOnce(ctx); err != nil {
		config.LogError(w.Logger, "edgesync", "Worker.Run", "sync cycle failed", w.Client.NodeId(), err)
	}

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			config.LogInfo(w.Logger, "edgesync", "Worker.Run", "edge sync stopped",
				map[string]interface{}{"node_id": w.Client.NodeId()})
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				config.LogError(w.Logger, "edgesync", "Worker.Run", "sync cycle failed", w.Client.NodeId(), err)
			}
		}
	}
}

// RunOnce performs one full cycle: pull every entity, push unsynced
// documents, heartbeat. A failing entity does not stop the others; the first
// error is returned after the cycle completes.
func (w *Worker) RunOnce(ctx context.Context) error {
	var firstErr error
	for _, entity := range models.ExportEntityPullOrder {
		if err := w.pullEntity(ctx, entity); err != nil {
			config.LogError(w.Logger, "edgesync", "Worker.RunOnce", "pull failed", string(entity), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if err := w.pushSalesDocs(ctx); err != nil {
		config.LogError(w.Logger, "edgesync", "Worker.RunOnce", "push failed", w.Client.NodeId(), err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if _, err := w.Client.Ping(ctx); err != nil {
		config.LogError(w.Logger, "edgesync", "Worker.RunOnce", "ping failed", w.Client.NodeId(), err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// pullEntity pages one entity from the cloud until a short page. The cursor
// persists after every page, so a crash or the loop cap resumes instead of
// refetching.
func (w *Worker) pullEntity(ctx context.Context, entity models.ExportEntity) error {
	businessId := w.Client.BusinessId()

	var sinceTs *time.Time
	sinceId := ""
	cursor, err := models.GetEdgeSyncCursor(ctx, businessId, string(entity))
	if err != nil {
		return err
	}
	if cursor != nil {
		ts := cursor.CursorTs
		sinceTs, sinceId = &ts, cursor.CursorId
	}
	ts, id := NormalizeCursor(sinceTs, sinceId)

	for loops := 0; loops < maxPullLoops; loops++ {
		page, err := w.Client.FetchMasterdata(ctx, string(entity), ts, id, w.PageLimit)
		if err != nil {
			return err
		}
		if len(page.Rows) == 0 {
			return nil
		}
		if err := w.applyRows(ctx, entity, page.Rows); err != nil {
			return err
		}
		if err := models.SaveEdgeSyncCursor(ctx, businessId, string(entity), page.NextTs, page.NextId); err != nil {
			return err
		}
		ts, id = page.NextTs, page.NextId
		if len(page.Rows) < w.PageLimit {
			return nil
		}
	}
	return fmt.Errorf("entity %s still has pages after %d pulls", entity, maxPullLoops)
}

// applyRows upserts a page by primary key. Cloud masterdata overwrites the
// local copy; edge-side changes to these tables do not survive a pull.
func (w *Worker) applyRows(ctx context.Context, entity models.ExportEntity, rows []json.RawMessage) error {
	db := w.DB.WithContext(ctx)
	switch entity {
	case models.ExportEntityItems:
		return applyPage[models.Item](db, rows)
	case models.ExportEntityUoms:
		return applyPage[models.Uom](db, rows)
	case models.ExportEntityUomConversions:
		return applyPage[models.UomConversion](db, rows)
	case models.ExportEntityItemBatches:
		return applyPage[models.ItemBatch](db, rows)
	case models.ExportEntityWarehouses:
		return applyPage[models.Warehouse](db, rows)
	case models.ExportEntityStockLocations:
		return applyPage[models.StockLocation](db, rows)
	case models.ExportEntityCustomers:
		return applyPage[models.Customer](db, rows)
	case models.ExportEntityPaymentMethods:
		return applyPage[models.PaymentMethod](db, rows)
	case models.ExportEntityExchangeRates:
		return applyPage[models.ExchangeRate](db, rows)
	case models.ExportEntityBranches:
		return applyPage[models.Branch](db, rows)
	case models.ExportEntityDevices:
		return applyDeviceRows(db, rows)
	default:
		return fmt.Errorf("entity %s has no apply handler", entity)
	}
}

func applyPage[T any](db *gorm.DB, rows []json.RawMessage) error {
	for _, raw := range rows {
		var row T
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// applyDeviceRows rebuilds PosDevice rows from the export shape. The model
// hides token_hash from JSON, so a straight unmarshal would blank it and lock
// every device out of the edge.
func applyDeviceRows(db *gorm.DB, rows []json.RawMessage) error {
	for _, raw := range rows {
		var row deviceRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		device := models.PosDevice{
			ID:         row.ID,
			BusinessId: row.BusinessId,
			BranchId:   row.BranchId,
			Name:       row.Name,
			TokenHash:  row.TokenHash,
			Status:     row.Status,
			LastSeenAt: row.LastSeenAt,
			LastStatus: row.LastStatus,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.UpdatedAt,
		}
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&device).Error; err != nil {
			return err
		}
	}
	return nil
}

// pushSalesDocs sends posted documents the cloud has not acknowledged, oldest
// first. synced_at stamps only after the cloud accepted the bundle, so a
// crash between push and stamp resends a bundle the cloud skips row by row.
func (w *Worker) pushSalesDocs(ctx context.Context) error {
	businessId := w.Client.BusinessId()

	var docs []models.SalesDoc
	err := w.DB.WithContext(ctx).
		Preload("Lines").Preload("Payments").Preload("TaxLines").
		Where("business_id = ? AND synced_at IS NULL AND status = ?", businessId, models.DocStatusPosted).
		Order("created_at ASC").
		Limit(pushBatchSize).
		Find(&docs).Error
	if err != nil {
		return err
	}

	for i := range docs {
		bundle, err := w.buildBundle(ctx, &docs[i])
		if err != nil {
			return err
		}
		if _, err := w.Client.PushSalesBundle(ctx, bundle); err != nil {
			return err
		}
		now := time.Now().UTC()
		err = w.DB.WithContext(ctx).Model(&models.SalesDoc{}).
			Where("id = ?", docs[i].ID).
			Update("synced_at", &now).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// buildBundle gathers everything the posting workflow wrote for one document.
func (w *Worker) buildBundle(ctx context.Context, doc *models.SalesDoc) (*SalesBundle, error) {
	db := w.DB.WithContext(ctx)

	bundle := &SalesBundle{
		Doc:          *doc,
		Lines:        doc.Lines,
		Payments:     doc.Payments,
		TaxLines:     doc.TaxLines,
		SourceNodeId: w.Client.NodeId(),
	}
	bundle.Doc.Lines = nil
	bundle.Doc.Payments = nil
	bundle.Doc.TaxLines = nil

	var journals []models.GlJournal
	err := db.Preload("Entries").
		Where("business_id = ? AND source_type = ? AND source_id = ?",
			doc.BusinessId, workflow.DocRefTypeSale, doc.ID).
		Find(&journals).Error
	if err != nil {
		return nil, err
	}
	for i := range journals {
		bundle.Entries = append(bundle.Entries, journals[i].Entries...)
		journals[i].Entries = nil
		bundle.Journals = append(bundle.Journals, journals[i])
	}

	var moves []models.StockMove
	err = db.Where("business_id = ? AND source_doc_type = ? AND source_doc_id = ?",
		doc.BusinessId, workflow.DocRefTypeSale, doc.ID).
		Find(&moves).Error
	if err != nil {
		return nil, err
	}
	bundle.StockMoves = moves

	if doc.CustomerId != nil {
		customer, err := models.GetCustomerTx(db, doc.BusinessId, *doc.CustomerId)
		if err != nil && err != utils.ErrorRecordNotFound {
			return nil, err
		}
		if customer != nil {
			snapshot := &CustomerBalanceSnapshot{
				Id:               customer.ID,
				CreditBalanceUsd: customer.CreditBalanceUsd,
				CreditBalanceLbp: customer.CreditBalanceLbp,
				LoyaltyPoints:    customer.LoyaltyPoints,
			}
			if customer.MembershipNo != nil {
				snapshot.MembershipNo = *customer.MembershipNo
			}
			bundle.CustomerUpdate = snapshot
		}
	}
	return bundle, nil
}
