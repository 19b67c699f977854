package providers

import (
	"context"
	"time"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
)

// ReportQuery bounds a report request.
type ReportQuery struct {
	DateFrom time.Time `json:"date_from"`
	DateTo   time.Time `json:"date_to"`
}

// Window converts the query into an analytics window.
func (q ReportQuery) Window() analytics.Window {
	return analytics.Window{Start: q.DateFrom, End: q.DateTo}
}

// ReportProvider fetches raw seller reports from a marketplace. Every method
// returns the records exactly as the marketplace sent them; interpretation is
// left to the analytics package.
type ReportProvider interface {
	GetPlatform() string

	GetSales(ctx context.Context, q ReportQuery) (analytics.RawReport, error)
	GetOrders(ctx context.Context, q ReportQuery) (analytics.RawReport, error)
	// GetStocks returns the current warehouse stock; only DateFrom is used.
	GetStocks(ctx context.Context, q ReportQuery) (analytics.RawReport, error)
	GetFinance(ctx context.Context, q ReportQuery) (analytics.RawReport, error)
	GetAdvertSpend(ctx context.Context, q ReportQuery) (analytics.RawReport, error)

	HealthCheck(ctx context.Context) error
}
