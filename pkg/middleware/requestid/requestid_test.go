package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func serve(t *testing.T, inbound string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, Value(c)) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(Header, inbound)
	}
	router.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareKeepsInboundID(t *testing.T) {
	rec := serve(t, "gw-7f3a:12")
	assert.Equal(t, "gw-7f3a:12", rec.Body.String())
	assert.Equal(t, "gw-7f3a:12", rec.Header().Get(Header))
}

func TestMiddlewareReplacesUnusableIDs(t *testing.T) {
	for _, inbound := range []string{"", strings.Repeat("x", maxLen+1), "id with spaces", "bad\nline"} {
		rec := serve(t, inbound)
		_, err := uuid.Parse(rec.Body.String())
		assert.NoError(t, err, "inbound %q", inbound)
		assert.Equal(t, rec.Body.String(), rec.Header().Get(Header))
	}
}

func TestValueOutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, Value(c))
}
