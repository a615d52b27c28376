package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/cedarpos/pos_backend/workflow"
	"github.com/gin-gonic/gin"
)

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	c.JSON(utils.HTTPStatus(err), gin.H{"error": err.Error()})
}

// deviceScope reads the identity pinned by DeviceAuthMiddleware.
func deviceScope(c *gin.Context) (businessId string, deviceId string, branchId string) {
	businessId, _ = utils.GetBusinessIdFromContext(c.Request.Context())
	deviceId, _ = utils.GetDeviceIdFromContext(c.Request.Context())
	branchId, _ = utils.GetBranchIdFromContext(c.Request.Context())
	return
}

type outboxSubmitRequest struct {
	Events []*models.NewOutboxEvent `json:"events" binding:"required"`
}

// posSubmitOutboxHandler admits a device batch. Items are independent: the
// batch responds 200 with per-event results and rejections unless the request
// itself cannot be parsed.
func posSubmitOutboxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req outboxSubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if len(req.Events) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "events are required"})
			return
		}

		businessId, deviceId, _ := deviceScope(c)
		results, rejected := models.SubmitOutboxEvents(c.Request.Context(), businessId, deviceId, req.Events)
		c.JSON(http.StatusOK, gin.H{"results": results, "rejected": rejected})
	}
}

// posProcessOutboxHandler runs one event on demand. Domain failures have
// their bookkeeping committed before the status is surfaced.
func posProcessOutboxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, deviceId, _ := deviceScope(c)
		force := strings.EqualFold(c.Query("force"), "true")

		result, err := workflow.ProcessOutboxEvent(c.Request.Context(), businessId, &deviceId, c.Param("id"), force)
		if err != nil {
			respondError(c, err)
			return
		}
		if result.ProcErr != nil {
			c.JSON(utils.HTTPStatus(result.ProcErr), gin.H{
				"status":        result.Event.Status,
				"attempt_count": result.Event.AttemptCount,
				"error":         result.ProcErr.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": models.OutboxEventStatusProcessed, "doc": result.Ref})
	}
}

func posListOutboxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, deviceId, _ := deviceScope(c)
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		events, err := models.ListOutboxEvents(c.Request.Context(), businessId, deviceId, c.Query("status"), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}

type eventIdsRequest struct {
	EventIds []string `json:"event_ids" binding:"required"`
}

func posRequeueOutboxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req eventIdsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		businessId, deviceId, _ := deviceScope(c)
		count, err := models.RequeueOutboxEvents(c.Request.Context(), businessId, req.EventIds, &deviceId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requeued": count})
	}
}

func posInboxPullHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, deviceId, _ := deviceScope(c)
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		events, err := models.PullInboxEvents(c.Request.Context(), businessId, deviceId, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}

func posInboxAckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req eventIdsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		businessId, deviceId, _ := deviceScope(c)
		count, err := models.AckInboxEvents(c.Request.Context(), businessId, deviceId, req.EventIds)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"acknowledged": count})
	}
}

func posShiftOpenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewShiftOpen
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		businessId, deviceId, _ := deviceScope(c)
		shift, err := models.OpenShift(c.Request.Context(), businessId, deviceId, input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, shift)
	}
}

func posShiftCloseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewShiftClose
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		businessId, deviceId, _ := deviceScope(c)
		shift, err := workflow.CloseShift(c.Request.Context(), businessId, deviceId, input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, shift)
	}
}

func posShiftCurrentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, deviceId, _ := deviceScope(c)

		shift, err := models.GetOpenShiftTx(config.GetDB().WithContext(c.Request.Context()), businessId, deviceId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, shift)
	}
}

func posCashMovementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewCashMovement
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		businessId, deviceId, _ := deviceScope(c)
		movement, err := models.RecordCashMovement(c.Request.Context(), businessId, deviceId, input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, movement)
	}
}

type heartbeatRequest struct {
	Status string `json:"status" binding:"required"`
}

var heartbeatStatuses = map[string]bool{
	"online":      true,
	"offline":     true,
	"shift_open":  true,
	"shift_close": true,
}

func posHeartbeatHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req heartbeatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !heartbeatStatuses[req.Status] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + req.Status})
			return
		}

		businessId, deviceId, _ := deviceScope(c)
		if err := models.TouchDeviceHeartbeat(c.Request.Context(), businessId, deviceId, req.Status); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// posConfigHandler is the register bootstrap: everything a device needs to
// ring sales offline.
func posConfigHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, _, branchId := deviceScope(c)
		ctx := c.Request.Context()
		db := config.GetDB().WithContext(ctx)

		business, err := models.GetBusinessById(ctx, businessId)
		if err != nil {
			respondError(c, err)
			return
		}

		var branch *models.Branch
		warehouseQuery := db.Where("business_id = ?", businessId)
		if branchId != "" {
			if b, err := utils.FetchModel[models.Branch](ctx, businessId, branchId); err == nil {
				branch = b
			}
			warehouseQuery = warehouseQuery.Where("branch_id = ?", branchId)
		}

		var warehouses []models.Warehouse
		if err := warehouseQuery.Order("name ASC").Find(&warehouses).Error; err != nil {
			respondError(c, err)
			return
		}

		var methods []models.PaymentMethod
		if err := db.Where("business_id = ?", businessId).Order("name ASC").Find(&methods).Error; err != nil {
			respondError(c, err)
			return
		}

		rate, err := models.LatestRateTx(db, businessId, time.Now().UTC())
		if err != nil && err != utils.ErrorRecordNotFound {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"business":        business,
			"branch":          branch,
			"warehouses":      warehouses,
			"payment_methods": methods,
			"exchange_rate":   rate,
		})
	}
}

func posExchangeRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, _, _ := deviceScope(c)

		asOf := time.Now().UTC()
		if raw := c.Query("date"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				parsed, err = time.Parse("2006-01-02", raw)
			}
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be RFC3339 or YYYY-MM-DD"})
				return
			}
			asOf = parsed.UTC()
		}

		rate, err := models.LatestRateTx(config.GetDB().WithContext(c.Request.Context()), businessId, asOf)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"usd_to_lbp": rate, "as_of": asOf})
	}
}
