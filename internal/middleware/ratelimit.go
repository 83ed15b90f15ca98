package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/cleanly/booking-api/pkg/errors"
	"github.com/cleanly/booking-api/pkg/httputil"
	"github.com/cleanly/booking-api/pkg/metrics"
)

type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
	// ClientTTL evicts limiters of clients that have gone quiet.
	ClientTTL time.Duration
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	config   RateLimiterConfig
	limiters *cache.Cache
	metrics  *metrics.Metrics
}

func NewRateLimiter(config RateLimiterConfig, m *metrics.Metrics) *RateLimiter {
	if config.ClientTTL <= 0 {
		config.ClientTTL = 10 * time.Minute
	}
	return &RateLimiter{
		config:   config,
		limiters: cache.New(config.ClientTTL, 2*config.ClientTTL),
		metrics:  m,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	if l, ok := rl.limiters.Get(key); ok {
		rl.limiters.SetDefault(key, l)
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.config.Rate, rl.config.Burst)
	if err := rl.limiters.Add(key, l, cache.DefaultExpiration); err != nil {
		// another request created it first
		if existing, ok := rl.limiters.Get(key); ok {
			return existing.(*rate.Limiter)
		}
	}
	return l
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter(c.ClientIP()).Allow() {
			if rl.metrics != nil {
				rl.metrics.RateLimited.Inc()
			}
			c.Header("Retry-After", "1")
			httputil.AbortWithError(c, errors.RateLimited("rate limit exceeded"))
			return
		}
		c.Next()
	}
}
