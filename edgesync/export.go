package edgesync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"gorm.io/gorm"
)

const (
	exportDefaultLimit = 500
	exportMaxLimit     = 2000
)

// NilCursorId is the lower bound for the id tie-breaker: the nil uuid sorts
// before every real uuid.
const NilCursorId = "00000000-0000-0000-0000-000000000000"

// exporter pulls one keyset page of one entity. The tuple predicate
// (updated_at, id) > (since_ts, since_id) with matching ORDER BY never skips
// or repeats rows under concurrent writes, unlike offset paging.
type exporter func(tx *gorm.DB, businessId string, sinceTs time.Time, sinceId string, limit int) ([]json.RawMessage, time.Time, string, error)

// exporters maps every ExportEntity to its typed query builder. A missing row
// is a lookup failure, not a silent fallthrough.
var exporters = map[models.ExportEntity]exporter{
	models.ExportEntityItems:          tableExporter(func(r *models.Item) (time.Time, string) { return r.UpdatedAt, r.ID }),
	models.ExportEntityUoms:           tableExporter(func(r *models.Uom) (time.Time, string) { return r.UpdatedAt, r.ID }),
	models.ExportEntityUomConversions: tableExporter(func(r *models.UomConversion) (time.Time, string) { return r.UpdatedAt, r.ID }),
	models.ExportEntityItemBatches:    tableExporter(func(r *models.ItemBatch) (time.Time, string) { return r.UpdatedAt, r.ID }),
	models.ExportEntityWarehouses:     tableExporter(func(r *models.Warehouse) (time.Time, string) { return r.UpdatedAt, r.ID }),
	models.ExportEntityStockLocations: tableExporter(func(r *models.StockLocation) (time.Time, string) { return r.UpdatedAt, r.ID }),
	models.ExportEntityCustomers:      tableExporter(func(r *models.Customer) (time.Time, string) { return r.UpdatedAt, r.ID }),
	models.ExportEntityPaymentMethods: tableExporter(func(r *models.PaymentMethod) (time.Time, string) { return r.UpdatedAt, r.ID }),
	models.ExportEntityExchangeRates:  tableExporter(func(r *models.ExchangeRate) (time.Time, string) { return r.UpdatedAt, r.ID }),
	models.ExportEntityBranches:       tableExporter(func(r *models.Branch) (time.Time, string) { return r.UpdatedAt, r.ID }),
	models.ExportEntityDevices:        exportDevices,
}

func keysetPage(tx *gorm.DB, businessId string, sinceTs time.Time, sinceId string) *gorm.DB {
	return tx.Where("business_id = ?", businessId).
		Where("(updated_at, id) > (?, ?)", sinceTs, sinceId).
		Order("updated_at ASC, id ASC")
}

func tableExporter[T any](key func(*T) (time.Time, string)) exporter {
	return func(tx *gorm.DB, businessId string, sinceTs time.Time, sinceId string, limit int) ([]json.RawMessage, time.Time, string, error) {
		var rows []T
		err := keysetPage(tx, businessId, sinceTs, sinceId).
			Limit(limit).
			Find(&rows).Error
		if err != nil {
			return nil, sinceTs, sinceId, err
		}

		out := make([]json.RawMessage, 0, len(rows))
		nextTs, nextId := sinceTs, sinceId
		for i := range rows {
			raw, err := json.Marshal(&rows[i])
			if err != nil {
				return nil, sinceTs, sinceId, err
			}
			out = append(out, raw)
			nextTs, nextId = key(&rows[i])
		}
		return out, nextTs, nextId, nil
	}
}

// exportDevices selects into deviceRow because the model keeps token_hash out
// of JSON and the edge needs it for offline device auth.
func exportDevices(tx *gorm.DB, businessId string, sinceTs time.Time, sinceId string, limit int) ([]json.RawMessage, time.Time, string, error) {
	var rows []deviceRow
	err := keysetPage(tx.Model(&models.PosDevice{}), businessId, sinceTs, sinceId).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, sinceTs, sinceId, err
	}

	out := make([]json.RawMessage, 0, len(rows))
	nextTs, nextId := sinceTs, sinceId
	for i := range rows {
		raw, err := json.Marshal(&rows[i])
		if err != nil {
			return nil, sinceTs, sinceId, err
		}
		out = append(out, raw)
		nextTs, nextId = rows[i].UpdatedAt, rows[i].ID
	}
	return out, nextTs, nextId, nil
}

// ClampLimit bounds a requested page size to 1..2000, defaulting to 500.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return exportDefaultLimit
	}
	if limit > exportMaxLimit {
		return exportMaxLimit
	}
	return limit
}

// NormalizeCursor fills absent cursor parts with the epoch / nil-uuid lower
// bounds.
func NormalizeCursor(sinceTs *time.Time, sinceId string) (time.Time, string) {
	ts := time.Unix(0, 0).UTC()
	if sinceTs != nil && !sinceTs.IsZero() {
		ts = sinceTs.UTC()
	}
	if sinceId == "" {
		sinceId = NilCursorId
	}
	return ts, sinceId
}

// ExportMasterdata serves one page of one entity for an edge node.
func ExportMasterdata(ctx context.Context, businessId string, entity string, sinceTs *time.Time, sinceId string, limit int) (*MasterdataPage, error) {
	parsed, err := models.ParseExportEntity(entity)
	if err != nil {
		return nil, utils.NewValidationError("unknown entity %s", entity)
	}
	if config.EdgeExportDisabledFor(entity) {
		return nil, utils.NewForbiddenError("export of %s is disabled", entity)
	}
	run, ok := exporters[parsed]
	if !ok {
		return nil, utils.NewValidationError("entity %s has no exporter", entity)
	}

	ts, id := NormalizeCursor(sinceTs, sinceId)
	limit = ClampLimit(limit)

	db := config.GetDB().WithContext(ctx)
	rows, nextTs, nextId, err := run(db, businessId, ts, id, limit)
	if err != nil {
		config.LogError(config.GetLogger(), "edgesync", "ExportMasterdata", entity, businessId, err)
		return nil, err
	}

	return &MasterdataPage{
		Entity:  string(parsed),
		SinceTs: ts,
		SinceId: id,
		NextTs:  nextTs,
		NextId:  nextId,
		Rows:    rows,
	}, nil
}
