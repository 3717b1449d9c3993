// Package cors answers browser preflights and sets CORS headers for the API.
package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classbook-api/pkg/middleware/requestid"
)

var (
	allowedHeaders = strings.Join([]string{"Authorization", "Content-Type", "X-Requested-With", requestid.Header}, ", ")
	allowedMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}, ", ")
	// Content-Disposition carries the report download filename.
	exposedHeaders = strings.Join([]string{"Content-Disposition", requestid.Header}, ", ")
)

type policy map[string]struct{}

func (p policy) allows(origin string) bool {
	if len(p) == 0 {
		return true
	}
	_, ok := p[normalize(origin)]
	return ok
}

// New returns the middleware. With no allowed origins every origin is accepted.
func New(allowedOrigins []string) gin.HandlerFunc {
	p := make(policy, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		p[normalize(origin)] = struct{}{}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Headers", allowedHeaders)
		h.Set("Access-Control-Allow-Methods", allowedMethods)
		h.Set("Access-Control-Expose-Headers", exposedHeaders)
		h.Set("Access-Control-Max-Age", "600")

		switch origin := c.GetHeader("Origin"); {
		case origin == "" && len(p) == 0:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && p.allows(origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(origin, "/"))
}
