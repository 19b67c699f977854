package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
	"github.com/niaga-platform/service-seller-analytics/internal/clients"
	"github.com/niaga-platform/service-seller-analytics/internal/monitoring"
	wbdomain "github.com/niaga-platform/service-seller-analytics/internal/domain/wildberries"
	"github.com/niaga-platform/service-seller-analytics/internal/providers/wildberries"
	"github.com/niaga-platform/service-seller-analytics/internal/services"
)

const dateLayout = "2006-01-02"

// WindowResolver turns optional request bounds into a validated window.
type WindowResolver interface {
	Window(start, end time.Time) (analytics.Window, error)
}

// parseSellerID reads the seller_id path parameter. It writes a 400 response
// and returns false when the value is not a UUID.
func parseSellerID(c *gin.Context) (uuid.UUID, bool) {
	sellerID, err := uuid.Parse(c.Param("seller_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid seller ID"})
		return uuid.Nil, false
	}
	return sellerID, true
}

// parseWindow reads date_from and date_to (YYYY-MM-DD, both inclusive).
// Missing bounds are filled by the resolver defaults.
func parseWindow(c *gin.Context, resolver WindowResolver) (analytics.Window, bool) {
	var start, end time.Time

	if s := c.Query("date_from"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date_from format, use YYYY-MM-DD"})
			return analytics.Window{}, false
		}
		start = t
	}
	if s := c.Query("date_to"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date_to format, use YYYY-MM-DD"})
			return analytics.Window{}, false
		}
		end = t.AddDate(0, 0, 1)
	}

	w, err := resolver.Window(start, end)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return analytics.Window{}, false
	}
	return w, true
}

// errorStatus maps a service error to an HTTP status and a client message.
func errorStatus(err error) (int, string) {
	switch {
	case analytics.IsConfigError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, wbdomain.ErrAPIKeyEmpty), errors.Is(err, wbdomain.ErrAPIKeyExpired):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrCredentialsMissing):
		return http.StatusNotFound, "Seller has no Wildberries API key"
	case errors.Is(err, clients.ErrProductNotFound):
		return http.StatusNotFound, "Product not found in catalog"
	case errors.Is(err, services.ErrInvalidAPIKey), wildberries.IsAuthError(err):
		return http.StatusUnprocessableEntity, "Wildberries rejected the API key"
	case errors.Is(err, wbdomain.ErrRateLimited):
		return http.StatusTooManyRequests, "Wildberries rate limit exceeded, retry later"
	case errors.Is(err, wbdomain.ErrServiceUnavailable):
		return http.StatusBadGateway, "Wildberries is temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondError writes the mapped error response. Server-side failures are
// logged and reported to Sentry.
func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status, clientMsg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		monitoring.CaptureError(c, err)
	} else {
		logger.Debug(msg, zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": clientMsg})
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
