package wildberries

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines how failed report requests are retried.
type RetryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitterFactor float64
}

// DefaultRetryPolicy makes three attempts with exponential backoff starting at two seconds,
// which matches the statistics API cool-down.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		maxAttempts:  3,
		initialDelay: 2 * time.Second,
		maxDelay:     time.Minute,
		multiplier:   2.0,
		jitterFactor: 0.1,
	}
}

// NoRetryPolicy returns a policy that never retries.
func NoRetryPolicy() *RetryPolicy {
	return &RetryPolicy{maxAttempts: 1}
}

// WithMaxAttempts sets the maximum number of attempts, including the first one.
func (p *RetryPolicy) WithMaxAttempts(n int) *RetryPolicy {
	if n < 1 {
		n = 1
	}
	p.maxAttempts = n
	return p
}

// WithInitialDelay sets the delay before the first retry.
func (p *RetryPolicy) WithInitialDelay(d time.Duration) *RetryPolicy {
	p.initialDelay = d
	return p
}

// WithMaxDelay caps the backoff delay.
func (p *RetryPolicy) WithMaxDelay(d time.Duration) *RetryPolicy {
	p.maxDelay = d
	return p
}

// WithJitter sets the jitter factor (0.0 to 1.0).
func (p *RetryPolicy) WithJitter(j float64) *RetryPolicy {
	p.jitterFactor = j
	return p
}

// MaxAttempts returns the maximum number of attempts.
func (p *RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry reports whether err after the given attempt warrants another try.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.maxAttempts {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return false
}

// DelayFor returns the wait before the next attempt. A server supplied
// X-Ratelimit-Retry value takes precedence over the computed backoff.
func (p *RetryPolicy) DelayFor(err error, attempt int) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfterSeconds > 0 {
		return time.Duration(apiErr.RetryAfterSeconds) * time.Second
	}
	return p.backoff(attempt)
}

func (p *RetryPolicy) backoff(attempt int) time.Duration {
	if attempt <= 0 || p.initialDelay <= 0 {
		return 0
	}

	delay := float64(p.initialDelay) * math.Pow(p.multiplier, float64(attempt-1))
	if p.jitterFactor > 0 {
		delay += delay * p.jitterFactor * (rand.Float64()*2 - 1)
	}
	if p.maxDelay > 0 && delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay)
}

// RetryResult holds the outcome of a retried operation.
type RetryResult struct {
	Attempts  int
	LastError error
	Duration  time.Duration
}

// Executor runs operations under a retry policy.
type Executor struct {
	policy *RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a retry executor for the given policy.
func NewExecutor(policy *RetryPolicy) *Executor {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	return &Executor{policy: policy, sleep: sleepContext}
}

// Execute runs operation until it succeeds, returns a permanent error, the
// attempts are exhausted or ctx is done.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) *RetryResult {
	start := time.Now()
	result := &RetryResult{}

	for attempt := 1; attempt <= e.policy.maxAttempts; attempt++ {
		result.Attempts = attempt

		err := operation(ctx)
		if err == nil {
			result.LastError = nil
			break
		}
		result.LastError = err

		if !e.policy.ShouldRetry(err, attempt) {
			break
		}
		if serr := e.sleep(ctx, e.policy.DelayFor(err, attempt)); serr != nil {
			result.LastError = serr
			break
		}
	}

	result.Duration = time.Since(start)
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
