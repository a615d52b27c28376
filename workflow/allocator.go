package workflow

import (
	"time"

	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AllocationRequest describes one outbound demand against a warehouse.
type AllocationRequest struct {
	ItemId      string
	WarehouseId string
	Qty         decimal.Decimal
	// MinExpiry gates shelf-life compliance; batches expiring earlier are not
	// eligible. Nil disables the gate.
	MinExpiry *time.Time
	// AllowUnbatchedRemainder lets untracked on-hand cover what batches
	// cannot, without going negative.
	AllowUnbatchedRemainder bool
	// AllowNegativeStock permits oversell; the remainder lands unbatched.
	AllowNegativeStock bool
	LocationId         *string
	StrictLocation     bool
}

// Allocation is one plan entry. A nil BatchId is untracked stock or
// permitted oversell.
type Allocation struct {
	BatchId *string
	Qty     decimal.Decimal
}

type batchCandidate struct {
	BatchId    *string
	ExpiryDate *time.Time
	OnHand     decimal.Decimal
}

// AllocateFefo builds a first-expire-first-out consumption plan. Candidates
// are available batches with positive on-hand, earliest expiry first,
// no-expiry batches last, batch id as the deterministic tie-break. On
// success the plan quantities sum exactly to the requested quantity.
func AllocateFefo(tx *gorm.DB, businessId string, req AllocationRequest) ([]Allocation, error) {
	qty := QuantizeQty(req.Qty)
	if !qty.IsPositive() {
		return []Allocation{}, nil
	}

	candidates, err := fefoCandidates(tx, businessId, req)
	if err != nil {
		return nil, err
	}

	remaining := qty
	plan := make([]Allocation, 0, len(candidates)+1)
	for _, c := range candidates {
		if !remaining.IsPositive() {
			break
		}
		available := c.OnHand
		if !available.IsPositive() {
			continue
		}
		take := available
		if take.GreaterThan(remaining) {
			take = remaining
		}
		plan = append(plan, Allocation{BatchId: c.BatchId, Qty: take})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		if req.AllowNegativeStock {
			plan = append(plan, Allocation{BatchId: nil, Qty: remaining})
			return plan, nil
		}
		if req.AllowUnbatchedRemainder {
			unbatched, err := models.UnbatchedOnHandTx(tx, businessId, req.ItemId, req.WarehouseId)
			if err != nil {
				return nil, err
			}
			if unbatched.GreaterThanOrEqual(remaining) {
				plan = append(plan, Allocation{BatchId: nil, Qty: remaining})
				return plan, nil
			}
			return nil, utils.NewConflictError("insufficient stock for allocation (negative stock disabled)")
		}
		return nil, utils.NewConflictError("insufficient eligible batch stock for allocation")
	}

	return plan, nil
}

func fefoCandidates(tx *gorm.DB, businessId string, req AllocationRequest) ([]batchCandidate, error) {
	query := `
		SELECT sm.batch_id AS batch_id,
		       b.expiry_date AS expiry_date,
		       SUM(sm.qty) AS on_hand
		FROM stock_moves sm
		JOIN item_batches b ON b.id = sm.batch_id
		WHERE sm.business_id = ?
		  AND sm.item_id = ?
		  AND sm.warehouse_id = ?
		  AND b.status = ?`
	args := []interface{}{businessId, req.ItemId, req.WarehouseId, models.BatchStatusAvailable}

	if req.StrictLocation && req.LocationId != nil {
		query += `
		  AND sm.location_id = ?`
		args = append(args, *req.LocationId)
	}
	if req.MinExpiry != nil {
		query += `
		  AND (b.expiry_date IS NULL OR b.expiry_date >= ?)`
		args = append(args, *req.MinExpiry)
	}
	query += `
		GROUP BY sm.batch_id, b.expiry_date
		HAVING SUM(sm.qty) > 0
		ORDER BY (b.expiry_date IS NULL) ASC, b.expiry_date ASC, sm.batch_id ASC`

	var candidates []batchCandidate
	if err := tx.Raw(query, args...).Scan(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}
