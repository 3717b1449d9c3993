package response

import (
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/classbook-api/pkg/errors"
	"github.com/noah-isme/classbook-api/pkg/middleware/requestid"
)

const (
	metaKey      = "response_meta"
	startedAtKey = "response_started_at"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data  interface{}            `json:"data,omitempty"`
	Error *appErrors.Error       `json:"error,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// Timed marks the request start so envelopes can report processing time.
func Timed() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(startedAtKey, time.Now())
		c.Next()
	}
}

// SetMeta stores a value that is merged into the meta block of the next envelope.
func SetMeta(c *gin.Context, key string, value interface{}) {
	meta, _ := c.Get(metaKey)
	typed, ok := meta.(map[string]interface{})
	if !ok {
		typed = map[string]interface{}{}
		c.Set(metaKey, typed)
	}
	typed[key] = value
}

// JSON sends a success response. Explicit meta entries win over values set with SetMeta.
func JSON(c *gin.Context, status int, data interface{}, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data, Meta: collectMeta(c, meta...)}
	c.JSON(status, envelope)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr, Meta: collectMeta(c)})
}

func collectMeta(c *gin.Context, extra ...map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	if stored, ok := c.Get(metaKey); ok {
		if typed, ok := stored.(map[string]interface{}); ok {
			for k, v := range typed {
				out[k] = v
			}
		}
	}
	for _, m := range extra {
		for k, v := range m {
			out[k] = v
		}
	}
	if id := requestid.Value(c); id != "" {
		out["request_id"] = id
	}
	if started, ok := c.Get(startedAtKey); ok {
		if at, ok := started.(time.Time); ok {
			out["processing_time_ms"] = time.Since(at).Milliseconds()
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
