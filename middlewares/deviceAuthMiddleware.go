package middlewares

import (
	"net/http"
	"strings"

	"github.com/cedarpos/pos_backend/models"
	"github.com/cedarpos/pos_backend/utils"
	"github.com/gin-gonic/gin"
)

// DeviceAuthMiddleware authenticates POS registers by their opaque bearer
// token. The matched device pins business, branch and device ids into the
// request context; handlers and the tenant guard trust those, never payload
// fields.
func DeviceAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing device token"})
			c.Abort()
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		device, err := models.FindDeviceByToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid device token"})
			c.Abort()
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), device.BusinessId)
		ctx = utils.SetBranchIdInContext(ctx, device.BranchId)
		ctx = utils.SetDeviceIdInContext(ctx, device.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
