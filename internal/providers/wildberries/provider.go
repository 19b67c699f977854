package wildberries

import (
	"context"
	"time"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
	wbdomain "github.com/niaga-platform/service-seller-analytics/internal/domain/wildberries"
	"github.com/niaga-platform/service-seller-analytics/internal/providers"
)

const (
	PlatformName = "wildberries"
)

// Provider implements providers.ReportProvider for Wildberries.
type Provider struct {
	client  *Client
	reports *ReportClient
}

// NewProvider creates a provider authenticated with the connection's API key.
func NewProvider(conn *providers.ConnectionInfo, opts providers.ClientOptions) (providers.ReportProvider, error) {
	cfg := &ClientConfig{
		APIKey:            conn.APIKey,
		StatisticsBaseURL: opts.StatisticsBaseURL,
		AdvertBaseURL:     opts.AdvertBaseURL,
		RequestTimeout:    opts.RequestTimeout,
		CacheTTL:          opts.CacheTTL,
		Logger:            opts.Logger,
	}
	if opts.MaxRetries > 0 {
		cfg.RetryPolicy = wbdomain.DefaultRetryPolicy().WithMaxAttempts(opts.MaxRetries)
	}

	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Provider{client: client, reports: NewReportClient(client)}, nil
}

// Register adds the Wildberries constructor to a factory.
func Register(f *providers.ProviderFactory) {
	f.Register(PlatformName, NewProvider)
}

// GetPlatform returns the platform identifier.
func (p *Provider) GetPlatform() string {
	return PlatformName
}

// GetSales returns sale and return lines since the query start.
func (p *Provider) GetSales(ctx context.Context, q providers.ReportQuery) (analytics.RawReport, error) {
	return p.reports.Sales(ctx, q.DateFrom)
}

// GetOrders returns order lines since the query start.
func (p *Provider) GetOrders(ctx context.Context, q providers.ReportQuery) (analytics.RawReport, error) {
	return p.reports.Orders(ctx, q.DateFrom)
}

// GetStocks returns current stock. The statistics API needs a dateFrom; a
// zero query start asks for everything changed in the last year.
func (p *Provider) GetStocks(ctx context.Context, q providers.ReportQuery) (analytics.RawReport, error) {
	from := q.DateFrom
	if from.IsZero() {
		from = time.Now().AddDate(-1, 0, 0)
	}
	return p.reports.Stocks(ctx, from)
}

// GetFinance returns the realization report. The API treats dateTo as
// inclusive, so the exclusive query end is moved back one day.
func (p *Provider) GetFinance(ctx context.Context, q providers.ReportQuery) (analytics.RawReport, error) {
	return p.reports.Finance(ctx, q.DateFrom, inclusiveEnd(q))
}

// GetAdvertSpend returns campaign spend lines for the period.
func (p *Provider) GetAdvertSpend(ctx context.Context, q providers.ReportQuery) (analytics.RawReport, error) {
	return p.reports.AdvertSpend(ctx, q.DateFrom, inclusiveEnd(q))
}

// HealthCheck verifies the API key against the statistics API.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if err := p.client.APIKey().Validate(); err != nil {
		return err
	}
	return p.reports.Ping(ctx)
}

// GetClient returns the underlying client.
func (p *Provider) GetClient() *Client {
	return p.client
}

func inclusiveEnd(q providers.ReportQuery) time.Time {
	end := q.DateTo.Add(-time.Nanosecond)
	if end.Before(q.DateFrom) {
		return q.DateFrom
	}
	return end
}

var _ providers.ReportProvider = (*Provider)(nil)
