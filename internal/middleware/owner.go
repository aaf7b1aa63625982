package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	OwnerHeader = "X-User-ID"
	ownerKey    = "owner_id"
)

// OwnerMiddleware scopes the request to the user named by the gateway in
// X-User-ID. The header only identifies the owner; it is not authentication.
func OwnerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(OwnerHeader)
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header required"})
			c.Abort()
			return
		}

		ownerID, err := uuid.Parse(raw)
		if err != nil || ownerID == uuid.Nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid X-User-ID"})
			c.Abort()
			return
		}

		c.Set(ownerKey, ownerID)
		c.Next()
	}
}

// OwnerID returns the owner set by OwnerMiddleware, or uuid.Nil.
func OwnerID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(ownerKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
