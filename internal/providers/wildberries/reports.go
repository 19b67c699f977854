package wildberries

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
)

const (
	SalesPath   = "/api/v1/supplier/sales"
	OrdersPath  = "/api/v1/supplier/orders"
	StocksPath  = "/api/v1/supplier/stocks"
	FinancePath = "/api/v5/supplier/reportDetailByPeriod"
	AdvertPath  = "/adv/v1/upd"
	PingPath    = "/ping"

	dateLayout = "2006-01-02"

	// DefaultFinancePageSize is the largest page the finance report accepts.
	DefaultFinancePageSize = 100000
	// maxFinancePages bounds pagination in case the API keeps echoing the same cursor.
	maxFinancePages = 100
)

// ReportClient fetches the individual Wildberries reports.
type ReportClient struct {
	client          *Client
	financePageSize int
}

// NewReportClient wraps a client with report specific requests.
func NewReportClient(client *Client) *ReportClient {
	return &ReportClient{client: client, financePageSize: DefaultFinancePageSize}
}

func (r *ReportClient) statistics(ctx context.Context, path string, dateFrom time.Time, extra url.Values) (analytics.RawReport, error) {
	q := url.Values{}
	q.Set("dateFrom", dateFrom.Format(dateLayout))
	for k, v := range extra {
		q[k] = v
	}
	report, err := r.client.Do(ctx, &Request{BaseURL: r.client.statisticsURL, Path: path, Query: q})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	return report, nil
}

// Sales returns sale and return lines changed since dateFrom.
func (r *ReportClient) Sales(ctx context.Context, dateFrom time.Time) (analytics.RawReport, error) {
	return r.statistics(ctx, SalesPath, dateFrom, url.Values{"flag": {"0"}})
}

// Orders returns order lines changed since dateFrom.
func (r *ReportClient) Orders(ctx context.Context, dateFrom time.Time) (analytics.RawReport, error) {
	return r.statistics(ctx, OrdersPath, dateFrom, url.Values{"flag": {"0"}})
}

// Stocks returns the current warehouse stock rows changed since dateFrom.
func (r *ReportClient) Stocks(ctx context.Context, dateFrom time.Time) (analytics.RawReport, error) {
	return r.statistics(ctx, StocksPath, dateFrom, nil)
}

// Finance returns the realization report for the period, following the
// rrd_id cursor until a short page is returned.
func (r *ReportClient) Finance(ctx context.Context, dateFrom, dateTo time.Time) (analytics.RawReport, error) {
	var (
		all    analytics.RawReport
		cursor int64
	)

	for page := 0; page < maxFinancePages; page++ {
		q := url.Values{}
		q.Set("dateFrom", dateFrom.Format(dateLayout))
		q.Set("dateTo", dateTo.Format(dateLayout))
		q.Set("limit", strconv.Itoa(r.financePageSize))
		q.Set("rrdid", strconv.FormatInt(cursor, 10))

		rows, err := r.client.Do(ctx, &Request{BaseURL: r.client.statisticsURL, Path: FinancePath, Query: q})
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", FinancePath, err)
		}
		all = append(all, rows...)

		next := lastRrdID(rows)
		if len(rows) < r.financePageSize || next <= cursor {
			return all, nil
		}
		cursor = next
	}

	r.client.logger.Warn("finance report pagination stopped at page limit",
		zap.Int("pages", maxFinancePages),
		zap.Int("rows", len(all)),
	)
	return all, nil
}

func lastRrdID(rows analytics.RawReport) int64 {
	if len(rows) == 0 {
		return 0
	}
	rec, ok := rows[len(rows)-1].(map[string]any)
	if !ok {
		return 0
	}
	id, _ := analytics.Record(rec).Number("rrd_id")
	return int64(id)
}

// AdvertSpend returns campaign spend lines for the period.
func (r *ReportClient) AdvertSpend(ctx context.Context, dateFrom, dateTo time.Time) (analytics.RawReport, error) {
	q := url.Values{}
	q.Set("from", dateFrom.Format(dateLayout))
	q.Set("to", dateTo.Format(dateLayout))

	report, err := r.client.Do(ctx, &Request{BaseURL: r.client.advertURL, Path: AdvertPath, Query: q})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", AdvertPath, err)
	}
	return report, nil
}

// Ping checks that the statistics API accepts the key.
func (r *ReportClient) Ping(ctx context.Context) error {
	_, err := r.client.Do(ctx, &Request{BaseURL: r.client.statisticsURL, Path: PingPath, NoCache: true, Discard: true})
	return err
}
