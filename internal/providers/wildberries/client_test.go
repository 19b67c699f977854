package wildberries

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
	wbdomain "github.com/niaga-platform/service-seller-analytics/internal/domain/wildberries"
	"github.com/niaga-platform/service-seller-analytics/internal/providers"
)

const testKey = "test-api-key"

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(&ClientConfig{
		APIKey:            testKey,
		StatisticsBaseURL: srv.URL,
		AdvertBaseURL:     srv.URL,
		RetryPolicy:       wbdomain.DefaultRetryPolicy().WithInitialDelay(0),
		RateLimits:        &wbdomain.RateLimitConfig{},
	})
	require.NoError(t, err)
	return client
}

func TestClientDo(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, testKey, r.Header.Get("Authorization"), "key is sent without a scheme")
		assert.Equal(t, "2024-06-03", r.URL.Query().Get("dateFrom"))
		w.Write([]byte(`[{"supplierArticle":"A","forPay":1234.56,"nmId":98765432101}]`))
	}))
	defer srv.Close()

	reports := NewReportClient(newTestClient(t, srv))
	from := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	report, err := reports.Sales(context.Background(), from)
	require.NoError(t, err)
	require.Len(t, report, 1)

	rec := report[0].(map[string]any)
	assert.Equal(t, json.Number("98765432101"), rec["nmId"], "numbers are decoded exactly")
	assert.Equal(t, 1234.56, analytics.Record(rec).Float("forPay"))

	_, err = reports.Sales(context.Background(), from)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "second call is served from cache")
}

func TestClientCacheExpiry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	now := time.Now()
	client.cache.now = func() time.Time { return now }

	req := &Request{BaseURL: srv.URL, Path: StocksPath}
	_, err := client.Do(context.Background(), req)
	require.NoError(t, err)

	now = now.Add(DefaultCacheTTL + time.Second)
	_, err = client.Do(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	client.Purge()
	_, err = client.Do(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`null`))
	}))
	defer srv.Close()

	report, err := newTestClient(t, srv).Do(context.Background(), &Request{BaseURL: srv.URL, Path: OrdersPath})
	require.NoError(t, err)
	assert.Empty(t, report)
	assert.NotNil(t, report)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClientAuthError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"title":"unauthorized","detail":"token is malformed","requestId":"req-1","status":401}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Do(context.Background(), &Request{BaseURL: srv.URL, Path: SalesPath})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "auth errors are not retried")

	var apiErr *wbdomain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "unauthorized", apiErr.Title)
	assert.Equal(t, "token is malformed", apiErr.Detail)
	assert.Equal(t, "req-1", apiErr.RequestID)
}

func TestClientDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Do(context.Background(), &Request{BaseURL: srv.URL, Path: SalesPath})
	var apiErr *wbdomain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, wbdomain.CodeDecodeError, apiErr.Code)
}

func TestParseAPIErrorRetryHeader(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("X-Ratelimit-Retry", "12")

	apiErr := parseAPIError(resp, []byte(`{"errors":["limit exceeded"]}`))
	assert.Equal(t, wbdomain.CodeRateLimited, apiErr.Code)
	assert.Equal(t, 12, apiErr.RetryAfterSeconds)
	assert.Equal(t, "limit exceeded", apiErr.Title)

	apiErr = parseAPIError(&http.Response{StatusCode: 502, Header: http.Header{}}, []byte("<html>bad gateway</html>"))
	assert.Equal(t, "Bad Gateway", apiErr.Title)
	assert.Equal(t, "<html>bad gateway</html>", apiErr.Detail)
}

func TestFinancePagination(t *testing.T) {
	var cursors []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, FinancePath, r.URL.Path)
		assert.Equal(t, "2024-06-09", r.URL.Query().Get("dateTo"))
		cursors = append(cursors, r.URL.Query().Get("rrdid"))
		switch r.URL.Query().Get("rrdid") {
		case "0":
			w.Write([]byte(`[{"rrd_id":1},{"rrd_id":2}]`))
		case "2":
			w.Write([]byte(`[{"rrd_id":3}]`))
		default:
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	conn := &providers.ConnectionInfo{Platform: PlatformName, APIKey: testKey}
	p, err := NewProvider(conn, providers.ClientOptions{StatisticsBaseURL: srv.URL, AdvertBaseURL: srv.URL})
	require.NoError(t, err)
	provider := p.(*Provider)
	provider.reports.financePageSize = 2
	provider.client.limiter = wbdomain.NewRateLimiter(wbdomain.RateLimitConfig{})

	q := providers.ReportQuery{
		DateFrom: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
	}
	report, err := provider.GetFinance(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, report, 3)
	assert.Equal(t, []string{"0", "2"}, cursors)
}

func TestProviderHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PingPath, r.URL.Path)
		w.Write([]byte(`{"TS":"2024-06-03T10:00:00Z","Status":"OK"}`))
	}))
	defer srv.Close()

	factory := providers.NewProviderFactory(providers.ClientOptions{StatisticsBaseURL: srv.URL, AdvertBaseURL: srv.URL})
	Register(factory)
	assert.True(t, factory.IsSupported(PlatformName))

	p, err := factory.CreateProvider(&providers.ConnectionInfo{Platform: PlatformName, APIKey: testKey})
	require.NoError(t, err)
	assert.Equal(t, PlatformName, p.GetPlatform())
	assert.NoError(t, p.HealthCheck(context.Background()))

	_, err = factory.CreateProvider(&providers.ConnectionInfo{Platform: "ozon", APIKey: testKey})
	assert.ErrorIs(t, err, providers.ErrUnsupportedPlatform)

	_, err = factory.CreateProvider(&providers.ConnectionInfo{Platform: PlatformName})
	assert.ErrorIs(t, err, wbdomain.ErrAPIKeyEmpty)
}
