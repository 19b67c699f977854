// Package monitoring reports errors to Sentry.
package monitoring

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-seller-analytics/internal/config"
)

// SentryMonitor owns the Sentry client of the process. A monitor created
// without a DSN is disabled and every method is a no-op.
type SentryMonitor struct {
	enabled bool
	logger  *zap.Logger
}

// NewSentryMonitor initializes the Sentry SDK.
func NewSentryMonitor(cfg config.SentryConfig, serviceName string, logger *zap.Logger) (*SentryMonitor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &SentryMonitor{logger: logger}
	if cfg.DSN == "" {
		logger.Info("Sentry DSN not set, error tracking disabled")
		return m, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       serviceName,
		AttachStacktrace: true,
		TracesSampleRate: 0.1,
	})
	if err != nil {
		return m, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	m.enabled = true
	logger.Info("Sentry initialized", zap.String("environment", cfg.Environment))
	return m, nil
}

// Enabled reports whether events are sent.
func (m *SentryMonitor) Enabled() bool {
	return m != nil && m.enabled
}

// GinMiddleware attaches a request-scoped hub and reports panics. Panics are
// re-raised for the recovery middleware that follows.
func (m *SentryMonitor) GinMiddleware() gin.HandlerFunc {
	if !m.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return sentrygin.New(sentrygin.Options{
		Repanic: true,
		Timeout: 2 * time.Second,
	})
}

// Flush waits for buffered events to be sent.
func (m *SentryMonitor) Flush(timeout time.Duration) {
	if !m.Enabled() {
		return
	}
	if !sentry.Flush(timeout) {
		m.logger.Warn("Sentry flush timed out", zap.Duration("timeout", timeout))
	}
}

// CaptureError reports err on the hub of the request, falling back to the
// global hub outside a request.
func CaptureError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	if c != nil {
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
			return
		}
	}
	sentry.CaptureException(err)
}
