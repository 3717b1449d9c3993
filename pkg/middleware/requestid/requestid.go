// Package requestid tags every request with an ID echoed in the X-Request-ID header.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the request ID in both directions.
const Header = "X-Request-ID"

const (
	ctxKey = "request_id"
	maxLen = 128
)

// Middleware keeps a well-formed inbound ID and otherwise generates a UUID.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if !acceptable(id) {
			id = uuid.NewString()
		}
		c.Set(ctxKey, id)
		c.Header(Header, id)
		c.Next()
	}
}

// Value returns the current request's ID, or "" outside the middleware.
func Value(c *gin.Context) string {
	if id, ok := c.Get(ctxKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// acceptable allows IDs of letters, digits and -_.: up to maxLen bytes, so
// caller-supplied values are safe to log and echo.
func acceptable(id string) bool {
	if id == "" || len(id) > maxLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}
