package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cedarpos/pos_backend/edgesync"
	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/gin-gonic/gin"
)

// edgeScope reads the identity pinned by EdgeAuthMiddleware.
func edgeScope(c *gin.Context) (businessId string, nodeId string) {
	businessId, _ = utils.GetBusinessIdFromContext(c.Request.Context())
	nodeId, _ = utils.GetNodeIdFromContext(c.Request.Context())
	return
}

// edgeMasterdataHandler serves one keyset page of a replicated entity.
func edgeMasterdataHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, nodeId := edgeScope(c)

		var sinceTs *time.Time
		if raw := c.Query("since_ts"); raw != "" {
			parsed, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "since_ts must be RFC3339"})
				return
			}
			sinceTs = &parsed
		}
		limit, _ := strconv.Atoi(c.Query("limit"))

		page, err := edgesync.ExportMasterdata(c.Request.Context(), businessId, c.Param("entity"), sinceTs, c.Query("since_id"), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		edgesync.Touch(c.Request.Context(), businessId, nodeId, models.EdgeTouchExport)
		c.JSON(http.StatusOK, page)
	}
}

func edgeImportBundleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var bundle edgesync.SalesBundle
		if err := c.ShouldBindJSON(&bundle); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		businessId, nodeId := edgeScope(c)
		receipt, err := edgesync.ImportSalesBundle(c.Request.Context(), businessId, &bundle)
		if err != nil {
			respondError(c, err)
			return
		}
		if nodeId == "" {
			nodeId = bundle.SourceNodeId
		}
		edgesync.Touch(c.Request.Context(), businessId, nodeId, models.EdgeTouchImport)
		c.JSON(http.StatusOK, receipt)
	}
}

func edgeImportCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var incoming models.Customer
		if err := c.ShouldBindJSON(&incoming); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		businessId, nodeId := edgeScope(c)
		customer, err := edgesync.ImportCustomer(c.Request.Context(), businessId, &incoming)
		if err != nil {
			respondError(c, err)
			return
		}
		edgesync.Touch(c.Request.Context(), businessId, nodeId, models.EdgeTouchImport)
		c.JSON(http.StatusOK, customer)
	}
}

func edgePingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, nodeId := edgeScope(c)
		c.JSON(http.StatusOK, edgesync.Ping(c.Request.Context(), businessId, nodeId))
	}
}
