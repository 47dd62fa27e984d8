package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	Enabled bool `conf:"enabled" yaml:"enabled" json:"enabled"`

	// Window and Max allow Max requests per Window for one client and path.
	Window time.Duration `conf:"window" yaml:"window" json:"window"`
	Max    int           `conf:"max" yaml:"max" json:"max"`

	// StrictPaths are route suffixes limited to StrictMax requests per Window.
	StrictPaths []string `conf:"strict_paths" yaml:"strict_paths" json:"strict_paths"`
	StrictMax   int      `conf:"strict_max" yaml:"strict_max" json:"strict_max"`
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:     true,
		Window:      10 * time.Second,
		Max:         100,
		StrictPaths: []string{"/sign-in/email", "/sign-up/email", "/change-password", "/forget-password", "/reset-password"},
		StrictMax:   3,
	}
}

type rateLimiter struct {
	config   RateLimitConfig
	mu       sync.Mutex
	limiters *cache.Cache
}

func (l *rateLimiter) allow(key string, limit int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.limiters.Get(key); ok {
		return v.(*rate.Limiter).Allow()
	}

	limiter := rate.NewLimiter(rate.Every(l.config.Window/time.Duration(limit)), limit)
	l.limiters.SetDefault(key, limiter)

	return limiter.Allow()
}

// limitFor matches the strict paths against the route template, so "/reset-password"
// also covers "/reset-password/:token".
func (l *rateLimiter) limitFor(route string) int {
	strict := slices.ContainsFunc(l.config.StrictPaths, func(p string) bool {
		return strings.HasSuffix(route, p) || strings.Contains(route, p+"/:")
	})
	if strict {
		return l.config.StrictMax
	}

	return l.config.Max
}

// WithRateLimit limits requests per client ip and path with a token bucket refilled over the window.
func WithRateLimit(config RateLimitConfig) gin.HandlerFunc {
	if !config.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	def := DefaultRateLimitConfig()
	if config.Window <= 0 {
		config.Window = def.Window
	}

	if config.Max <= 0 {
		config.Max = def.Max
	}

	if config.StrictMax <= 0 {
		config.StrictMax = def.StrictMax
	}

	limiter := &rateLimiter{
		config:   config,
		limiters: cache.New(10*config.Window, 10*config.Window),
	}

	retryAfter := strconv.Itoa(max(1, int(config.Window.Seconds())))

	return func(c *gin.Context) {
		// Path parameters share the bucket of their route.
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		if !limiter.allow(c.ClientIP()+" "+route, limiter.limitFor(route)) {
			c.Header("Retry-After", retryAfter)
			AbortWithError(c, http.StatusTooManyRequests, ErrTooManyRequests)

			return
		}

		c.Next()
	}
}
