package main

import (
	"net/http"
	"strconv"

	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/gin-gonic/gin"
)

type opsLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func opsLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req opsLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		user, err := models.VerifyOpsLogin(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		token, err := utils.JwtGenerate(user.ID, user.Username, user.Role)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "role": user.Role})
	}
}

type opsReplayRequest struct {
	BusinessId string   `json:"business_id" binding:"required"`
	EventIds   []string `json:"event_ids"`
	AllDead    bool     `json:"all_dead"`
}

// opsOutboxReplayHandler requeues dead events back to pending. Support can
// name events or sweep the whole dead queue for a tenant.
func opsOutboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req opsReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !req.AllDead && len(req.EventIds) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_ids or all_dead is required"})
			return
		}
		if err := utils.ValidateResourceId[models.Business](c.Request.Context(), "", req.BusinessId); err != nil {
			respondError(c, utils.NewNotFoundError("business not found: %s", req.BusinessId))
			return
		}

		var count int64
		var err error
		if req.AllDead {
			count, err = models.RequeueAllDead(c.Request.Context(), req.BusinessId)
		} else {
			count, err = models.RequeueOutboxEvents(c.Request.Context(), req.BusinessId, req.EventIds, nil)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requeued": count})
	}
}

func opsDeadOutboxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if businessId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "business_id is required"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

		events, err := models.ListDeadOutboxEvents(c.Request.Context(), businessId, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}

func opsEdgeNodesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if businessId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "business_id is required"})
			return
		}

		nodes, err := models.ListEdgeNodes(c.Request.Context(), businessId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"nodes": nodes})
	}
}

func opsListDevicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if businessId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "business_id is required"})
			return
		}

		devices, err := models.ListDevices(c.Request.Context(), businessId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"devices": devices})
	}
}

// opsRegisterDeviceHandler returns the token exactly once; only the hash is
// stored.
func opsRegisterDeviceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPosDevice
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		device, token, err := models.RegisterDevice(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"device": device, "token": token})
	}
}

func opsResetDeviceTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Query("business_id")
		if businessId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "business_id is required"})
			return
		}

		device, token, err := models.ResetDeviceToken(c.Request.Context(), businessId, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"device": device, "token": token})
	}
}
