package middlewares

import (
	"github.com/cedarpos/pos_backend/edgesync"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/gin-gonic/gin"
)

// EdgeAuthMiddleware authenticates edge sync nodes by their per-tenant key.
// Bad or missing keys map to 401, node binding violations to 403, both
// straight from the error kind.
func EdgeAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Request.Header.Get(edgesync.HeaderBusinessId)
		nodeId := c.Request.Header.Get(edgesync.HeaderNodeId)
		key := c.Request.Header.Get(edgesync.HeaderSyncKey)

		if err := edgesync.Authorize(businessId, nodeId, key); err != nil {
			c.JSON(utils.HTTPStatus(err), gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		ctx = utils.SetNodeIdInContext(ctx, nodeId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
