package wildberries

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Known API path prefixes.
const (
	StatisticsPathPrefix = "/api/v1/supplier/"
	FinancePathPrefix    = "/api/v5/supplier/"
	AdvertPathPrefix     = "/adv/"
)

// RateLimiter throttles Wildberries API calls per path prefix. The statistics
// endpoints allow roughly one call every two seconds per key, so limits are
// expressed as minimum intervals rather than requests per second.
type RateLimiter struct {
	mu       sync.Mutex
	config   RateLimitConfig
	prefixes []string
	limiters map[string]*rate.Limiter
	paused   map[string]time.Time
	now      func() time.Time
}

// RateLimitConfig holds rate limit configuration.
type RateLimitConfig struct {
	DefaultInterval time.Duration
	DefaultBurst    int
	PathLimits      map[string]PathLimit
}

// PathLimit defines the limit for one path prefix.
type PathLimit struct {
	Interval time.Duration
	Burst    int
}

// DefaultRateLimitConfig returns the limits published for seller API keys.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		DefaultInterval: 2 * time.Second,
		DefaultBurst:    1,
		PathLimits: map[string]PathLimit{
			StatisticsPathPrefix: {Interval: 2 * time.Second, Burst: 1},
			FinancePathPrefix:    {Interval: 2 * time.Second, Burst: 1},
			AdvertPathPrefix:     {Interval: 200 * time.Millisecond, Burst: 5},
		},
	}
}

// NewRateLimiter creates a rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	prefixes := make([]string, 0, len(config.PathLimits))
	for p := range config.PathLimits {
		prefixes = append(prefixes, p)
	}
	// longest prefix wins
	sort.Slice(prefixes, func(i, j int) bool {
		if len(prefixes[i]) != len(prefixes[j]) {
			return len(prefixes[i]) > len(prefixes[j])
		}
		return prefixes[i] < prefixes[j]
	})

	return &RateLimiter{
		config:   config,
		prefixes: prefixes,
		limiters: make(map[string]*rate.Limiter),
		paused:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// Wait blocks until a request for path may be sent or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, path string) error {
	key := rl.bucketKey(path)

	rl.mu.Lock()
	until := rl.paused[key]
	limiter := rl.limiterLocked(key)
	rl.mu.Unlock()

	if d := until.Sub(rl.now()); d > 0 {
		if err := sleepContext(ctx, d); err != nil {
			return err
		}
	}
	return limiter.Wait(ctx)
}

// TryAcquire takes a slot for path without waiting.
func (rl *RateLimiter) TryAcquire(path string) bool {
	key := rl.bucketKey(path)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.now().Before(rl.paused[key]) {
		return false
	}
	return rl.limiterLocked(key).Allow()
}

// Pause blocks every request under path's prefix for d. It is used when the
// API answers 429 with an X-Ratelimit-Retry header.
func (rl *RateLimiter) Pause(path string, d time.Duration) {
	if d <= 0 {
		return
	}
	key := rl.bucketKey(path)
	until := rl.now().Add(d)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if until.After(rl.paused[key]) {
		rl.paused[key] = until
	}
}

func (rl *RateLimiter) limiterLocked(key string) *rate.Limiter {
	if l, ok := rl.limiters[key]; ok {
		return l
	}
	interval, burst := rl.config.DefaultInterval, rl.config.DefaultBurst
	if pl, ok := rl.config.PathLimits[key]; ok {
		interval, burst = pl.Interval, pl.Burst
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	l := rate.NewLimiter(limit, burst)
	rl.limiters[key] = l
	return l
}

func (rl *RateLimiter) bucketKey(path string) string {
	for _, p := range rl.prefixes {
		if strings.HasPrefix(path, p) {
			return p
		}
	}
	return "default"
}

// BucketStatus represents the current state of a rate limit bucket.
type BucketStatus struct {
	AvailableTokens float64
	Burst           int
	Interval        time.Duration
	PausedUntil     time.Time
}

// GetStatus returns the state of every bucket that has been used.
func (rl *RateLimiter) GetStatus() map[string]BucketStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	status := make(map[string]BucketStatus, len(rl.limiters))
	for key, l := range rl.limiters {
		var interval time.Duration
		if l.Limit() != rate.Inf && l.Limit() > 0 {
			interval = time.Duration(float64(time.Second) / float64(l.Limit()))
		}
		status[key] = BucketStatus{
			AvailableTokens: l.Tokens(),
			Burst:           l.Burst(),
			Interval:        interval,
			PausedUntil:     rl.paused[key],
		}
	}
	return status
}
