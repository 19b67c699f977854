package wildberries

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
	wbdomain "github.com/niaga-platform/service-seller-analytics/internal/domain/wildberries"
)

const (
	StatisticsBaseURL = "https://statistics-api.wildberries.ru"
	AdvertBaseURL     = "https://advert-api.wildberries.ru"

	SandboxStatisticsBaseURL = "https://statistics-api-sandbox.wildberries.ru"
	SandboxAdvertBaseURL     = "https://advert-api-sandbox.wildberries.ru"

	DefaultCacheTTL = 60 * time.Second

	retryAfterHeader = "X-Ratelimit-Retry"
	maxErrorBody     = 500
)

// Client is a Wildberries seller API client with rate limiting, retries and
// a short-lived response cache.
type Client struct {
	apiKey        *wbdomain.APIKey
	statisticsURL string
	advertURL     string
	httpClient    *http.Client
	logger        *zap.Logger
	retryPolicy   *wbdomain.RetryPolicy
	limiter       *wbdomain.RateLimiter
	cache         *responseCache
}

// ClientConfig holds configuration for the Wildberries client.
type ClientConfig struct {
	APIKey            string
	StatisticsBaseURL string
	AdvertBaseURL     string
	RequestTimeout    time.Duration
	CacheTTL          time.Duration
	RetryPolicy       *wbdomain.RetryPolicy
	RateLimits        *wbdomain.RateLimitConfig
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// NewClient creates a Wildberries API client for one API key.
func NewClient(cfg *ClientConfig) (*Client, error) {
	key, err := wbdomain.NewAPIKey(cfg.APIKey)
	if err != nil {
		return nil, err
	}

	statisticsURL := cfg.StatisticsBaseURL
	if statisticsURL == "" {
		statisticsURL = StatisticsBaseURL
	}
	advertURL := cfg.AdvertBaseURL
	if advertURL == "" {
		advertURL = AdvertBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	retryPolicy := cfg.RetryPolicy
	if retryPolicy == nil {
		retryPolicy = wbdomain.DefaultRetryPolicy()
	}

	limits := wbdomain.DefaultRateLimitConfig()
	if cfg.RateLimits != nil {
		limits = *cfg.RateLimits
	}

	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:        key,
		statisticsURL: statisticsURL,
		advertURL:     advertURL,
		httpClient:    httpClient,
		logger:        logger.With(zap.String("api_key", key.Masked())),
		retryPolicy:   retryPolicy,
		limiter:       wbdomain.NewRateLimiter(limits),
		cache:         newResponseCache(ttl),
	}, nil
}

// APIKey returns the key the client authenticates with.
func (c *Client) APIKey() *wbdomain.APIKey {
	return c.apiKey
}

// Request is a single report request.
type Request struct {
	BaseURL string
	Path    string
	Query   url.Values
	// NoCache bypasses the response cache.
	NoCache bool
	// Discard skips decoding the body, for endpoints that do not return reports.
	Discard bool
}

func (r *Request) cacheKey() string {
	return r.BaseURL + r.Path + "?" + r.Query.Encode()
}

// Do fetches a report, serving it from cache when a fresh copy exists.
func (c *Client) Do(ctx context.Context, req *Request) (analytics.RawReport, error) {
	key := req.cacheKey()
	if !req.NoCache {
		if report, ok := c.cache.get(key); ok {
			c.logger.Debug("Wildberries report served from cache", zap.String("path", req.Path))
			return report, nil
		}
	}

	var report analytics.RawReport
	executor := wbdomain.NewExecutor(c.retryPolicy)
	result := executor.Execute(ctx, func(ctx context.Context) error {
		var err error
		report, err = c.doRequest(ctx, req)
		return err
	})

	if result.LastError != nil {
		c.logger.Error("Wildberries API request failed after retries",
			zap.String("path", req.Path),
			zap.Int("attempts", result.Attempts),
			zap.Duration("duration", result.Duration),
			zap.Error(result.LastError),
		)
		return nil, result.LastError
	}

	if !req.NoCache {
		c.cache.set(key, report)
	}
	return report, nil
}

// doRequest performs one HTTP round trip without retry.
func (c *Client) doRequest(ctx context.Context, req *Request) (analytics.RawReport, error) {
	if err := c.limiter.Wait(ctx, req.Path); err != nil {
		return nil, err
	}

	target := req.BaseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.apiKey.Value())
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Wildberries API request completed",
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.Int("bytes", len(body)),
	)

	if resp.StatusCode >= 400 {
		apiErr := parseAPIError(resp, body)
		if apiErr.Code == wbdomain.CodeRateLimited && apiErr.RetryAfterSeconds > 0 {
			c.limiter.Pause(req.Path, time.Duration(apiErr.RetryAfterSeconds)*time.Second)
		}
		c.logger.Warn("Wildberries API error",
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("title", apiErr.Title),
			zap.String("request_id", apiErr.RequestID),
			zap.Int("retry_after", apiErr.RetryAfterSeconds),
		)
		return nil, apiErr
	}

	if req.Discard {
		return analytics.RawReport{}, nil
	}
	return decodeReport(body)
}

// decodeReport decodes a JSON array response, keeping numbers exact.
// An empty body or a JSON null is an empty report.
func decodeReport(body []byte) (analytics.RawReport, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return analytics.RawReport{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var report analytics.RawReport
	if err := dec.Decode(&report); err != nil {
		return nil, &wbdomain.APIError{
			Code:       wbdomain.CodeDecodeError,
			Title:      "unexpected report payload",
			Detail:     err.Error(),
			StatusCode: http.StatusOK,
		}
	}
	if report == nil {
		report = analytics.RawReport{}
	}
	return report, nil
}

func parseAPIError(resp *http.Response, body []byte) *wbdomain.APIError {
	apiErr := wbdomain.NewAPIError(resp.StatusCode, http.StatusText(resp.StatusCode))

	var payload struct {
		Title     string   `json:"title"`
		Detail    string   `json:"detail"`
		RequestID string   `json:"requestId"`
		Message   string   `json:"message"`
		Errors    []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Title != "":
			apiErr.Title = payload.Title
		case payload.Message != "":
			apiErr.Title = payload.Message
		case len(payload.Errors) > 0:
			apiErr.Title = payload.Errors[0]
		}
		apiErr.Detail = payload.Detail
		apiErr.RequestID = payload.RequestID
	} else if len(body) > 0 {
		apiErr.Detail = truncateString(string(body), maxErrorBody)
	}

	if v := resp.Header.Get(retryAfterHeader); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			apiErr.RetryAfterSeconds = secs
		}
	}
	return apiErr
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// IsAuthError reports whether err means the API key was rejected.
func IsAuthError(err error) bool {
	return errors.Is(err, wbdomain.ErrUnauthorized) || errors.Is(err, wbdomain.ErrForbidden)
}

type cacheEntry struct {
	report    analytics.RawReport
	expiresAt time.Time
}

// responseCache is a per-client TTL cache of decoded reports.
type responseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{ttl: ttl, entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *responseCache) get(key string) (analytics.RawReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.report, true
}

func (c *responseCache) set(key string, report analytics.RawReport) {
	if c.ttl < 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{report: report, expiresAt: now.Add(c.ttl)}
}

// Purge drops every cached report.
func (c *Client) Purge() {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	c.cache.entries = make(map[string]cacheEntry)
}
