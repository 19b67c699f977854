package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	t.Run("blocks requests over the burst", func(t *testing.T) {
		rl := NewRateLimiter(60, 3)
		now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
		rl.now = func() time.Time { return now }

		for i := 0; i < 3; i++ {
			assert.True(t, rl.Allow("client"), "request %d", i+1)
		}
		assert.False(t, rl.Allow("client"))
		assert.True(t, rl.Allow("other"), "separate bucket per client")

		now = now.Add(time.Second)
		assert.True(t, rl.Allow("client"), "one token per second refills")
	})

	t.Run("evicts idle clients", func(t *testing.T) {
		rl := NewRateLimiter(60, 1)
		now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
		rl.now = func() time.Time { return now }

		rl.Allow("a")
		now = now.Add(time.Minute)
		rl.Allow("b")
		now = now.Add(10 * time.Minute)

		assert.Equal(t, 1, rl.evictIdle())
		assert.Len(t, rl.clients, 1)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(2, 2).Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ping", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ping", nil).Code)
	w := perform(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))

	open := gin.New()
	open.Use(NewRateLimiter(0, 0).Middleware())
	open.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, perform(open, http.MethodGet, "/ping", nil).Code)
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := perform(r, http.MethodGet, "/ok?x=1", map[string]string{RequestIDHeader: "req-1"})
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	w = perform(r, http.MethodGet, "/fail", nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zap.InfoLevel, entries[0].Level)
		assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
		assert.Equal(t, "x=1", entries[0].ContextMap()["query"])
		assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := perform(r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("https://seller.example.com/, https://admin.example.com"))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodOptions, "/ping", map[string]string{
		"Origin":                        "https://seller.example.com",
		"Access-Control-Request-Method": http.MethodGet,
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://seller.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	origins, all := splitOrigins(" *, https://a.example.com")
	assert.True(t, all)
	assert.Nil(t, origins)
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
