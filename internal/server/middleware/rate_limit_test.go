package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/todohub/internal/objects"
)

func TestWithRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(WithRateLimit(RateLimitConfig{
		Enabled:     true,
		Window:      time.Hour,
		Max:         5,
		StrictPaths: []string{"/sign-in/email"},
		StrictMax:   2,
	}))
	engine.POST("/api/auth/sign-in/email", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/api/auth/get-session", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve := func(method, path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = ip + ":1234"

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		return w
	}

	for range 2 {
		assert.Equal(t, http.StatusOK, serve(http.MethodPost, "/api/auth/sign-in/email", "10.0.0.1").Code)
	}

	w := serve(http.MethodPost, "/api/auth/sign-in/email", "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))

	var resp objects.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Too many requests. Please try again later.", resp.Error.Message)

	// Other clients and other paths have their own budget.
	assert.Equal(t, http.StatusOK, serve(http.MethodPost, "/api/auth/sign-in/email", "10.0.0.2").Code)

	for range 5 {
		assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/auth/get-session", "10.0.0.1").Code)
	}

	assert.Equal(t, http.StatusTooManyRequests, serve(http.MethodGet, "/api/auth/get-session", "10.0.0.1").Code)
}

func TestWithRateLimit_RouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(WithRateLimit(RateLimitConfig{
		Enabled:     true,
		Window:      time.Hour,
		Max:         100,
		StrictPaths: []string{"/reset-password"},
		StrictMax:   2,
	}))
	engine.GET("/api/auth/reset-password/:token", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.POST("/api/auth/reset-password", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve := func(method, path string) int {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))

		return w.Code
	}

	// Each token is a new url but the same route.
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/auth/reset-password/token-1"))
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/auth/reset-password/token-2"))
	assert.Equal(t, http.StatusTooManyRequests, serve(http.MethodGet, "/api/auth/reset-password/token-3"))

	assert.Equal(t, http.StatusOK, serve(http.MethodPost, "/api/auth/reset-password"))
	assert.Equal(t, http.StatusOK, serve(http.MethodPost, "/api/auth/reset-password"))
	assert.Equal(t, http.StatusTooManyRequests, serve(http.MethodPost, "/api/auth/reset-password"))
}

func TestWithRateLimit_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(WithRateLimit(RateLimitConfig{Max: 1}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 3 {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestWithTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.GET("/bounded", WithTimeout(time.Minute), func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
		c.Status(http.StatusOK)
	})
	engine.GET("/unbounded", WithTimeout(0), func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		assert.False(t, ok)
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/bounded", "/unbounded"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
