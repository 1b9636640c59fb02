package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r *gin.Engine, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(rate.NewLimiter(rate.Limit(0.001), 2), zap.NewNop()))
	r.GET("/api/v1/geo/sensors", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/geo/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, "/api/v1/geo/sensors", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, "/api/v1/geo/sensors", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, "/api/v1/geo/sensors", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, "/api/v1/geo/health", nil).Code)
}

func TestIPRateLimiter_PerClient(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(0.001), 1)

	a := limiter.GetLimiter("10.0.0.1")
	assert.Same(t, a, limiter.GetLimiter("10.0.0.1"))
	assert.NotSame(t, a, limiter.GetLimiter("10.0.0.2"))

	r := gin.New()
	r.Use(IPRateLimitMiddleware(limiter))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := http.Header{"X-Forwarded-For": []string{"10.0.0.3"}}
	second := http.Header{"X-Forwarded-For": []string{"10.0.0.4"}}
	assert.Equal(t, http.StatusOK, perform(r, "/x", first).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, "/x", first).Code)
	assert.Equal(t, http.StatusOK, perform(r, "/x", second).Code)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := perform(r, "/ok", nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = perform(r, "/missing", http.Header{RequestIDHeader: []string{"abc"}})
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "request handled", entries[0].Message)
	assert.Equal(t, "request rejected", entries[1].Message)
	assert.Equal(t, "abc", entries[1].ContextMap()["request_id"])
}
