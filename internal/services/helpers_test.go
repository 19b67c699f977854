package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
	"github.com/niaga-platform/service-seller-analytics/internal/clients"
	"github.com/niaga-platform/service-seller-analytics/internal/config"
	"github.com/niaga-platform/service-seller-analytics/internal/events"
	"github.com/niaga-platform/service-seller-analytics/internal/models"
	"github.com/niaga-platform/service-seller-analytics/internal/providers"
)

func day(d int) time.Time {
	return time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func testWindow() analytics.Window {
	return analytics.Window{Start: day(0), End: day(14)}
}

func testAnalyticsConfig() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		Thresholds: analytics.DefaultThresholds(),
		Weekly:     analytics.DefaultWeeklyConfig(),
		Supply:     analytics.DefaultSupplyConfig(),
		Promotions: analytics.DefaultPromotionConfig(),
		Logistics: analytics.LogisticsRates{
			FirstLiterRate:       38,
			PerLiterRate:         9.5,
			WarehouseCoefficient: 1,
			LocalizationIndex:    1,
			StorageRatePerLiter:  analytics.DefaultStorageRatePerLiter,
		},
		DefaultPeriod: 30 * 24 * time.Hour,
		MaxPeriod:     180 * 24 * time.Hour,
	}
}

// fakeProvider serves canned reports; errs is keyed by report name.
type fakeProvider struct {
	sales, orders, stocks, finance, advert analytics.RawReport
	errs                                   map[string]error
	calls                                  atomic.Int32
}

func (p *fakeProvider) serve(name string, report analytics.RawReport) (analytics.RawReport, error) {
	p.calls.Add(1)
	if err := p.errs[name]; err != nil {
		return nil, err
	}
	return report, nil
}

func (p *fakeProvider) GetPlatform() string { return "fake" }

func (p *fakeProvider) GetSales(context.Context, providers.ReportQuery) (analytics.RawReport, error) {
	return p.serve(fetchSales, p.sales)
}

func (p *fakeProvider) GetOrders(context.Context, providers.ReportQuery) (analytics.RawReport, error) {
	return p.serve(fetchOrders, p.orders)
}

func (p *fakeProvider) GetStocks(context.Context, providers.ReportQuery) (analytics.RawReport, error) {
	return p.serve(fetchStocks, p.stocks)
}

func (p *fakeProvider) GetFinance(context.Context, providers.ReportQuery) (analytics.RawReport, error) {
	return p.serve(fetchFinance, p.finance)
}

func (p *fakeProvider) GetAdvertSpend(context.Context, providers.ReportQuery) (analytics.RawReport, error) {
	return p.serve(fetchAdvert, p.advert)
}

func (p *fakeProvider) HealthCheck(context.Context) error { return nil }

type fakeSource struct {
	provider providers.ReportProvider
	err      error
}

func (s fakeSource) ProviderForSeller(context.Context, uuid.UUID) (providers.ReportProvider, error) {
	return s.provider, s.err
}

type fakeCosts map[analytics.ProductKey]float64

func (c fakeCosts) UnitCosts(context.Context) (map[analytics.ProductKey]float64, error) {
	return c, nil
}

type fakeCatalog map[string]*clients.Product

func (c fakeCatalog) GetProduct(_ context.Context, sku string) (*clients.Product, error) {
	if p, ok := c[sku]; ok {
		return p, nil
	}
	return nil, clients.ErrProductNotFound
}

type fakePublisher struct {
	connected bool
	requested []*events.SyncRequestedEvent
	computed  []*events.ReportComputedEvent
	failed    []*events.ReportFailedEvent
}

func (p *fakePublisher) Connected() bool { return p.connected }

func (p *fakePublisher) PublishSyncRequested(e *events.SyncRequestedEvent) error {
	if !p.connected {
		return events.ErrNotConnected
	}
	p.requested = append(p.requested, e)
	return nil
}

func (p *fakePublisher) PublishReportComputed(e *events.ReportComputedEvent) error {
	p.computed = append(p.computed, e)
	return nil
}

func (p *fakePublisher) PublishReportFailed(e *events.ReportFailedEvent) error {
	p.failed = append(p.failed, e)
	return nil
}

func sellerFixture() *fakeProvider {
	return &fakeProvider{
		sales: analytics.RawReport{
			map[string]any{"supplierArticle": "A", "subject": "Dresses", "saleID": "S1", "forPay": 700.0, "finishedPrice": 1000.0, "date": "2024-06-03T09:00:00"},
			map[string]any{"supplierArticle": "A", "saleID": "S2", "forPay": 700.0, "finishedPrice": 1000.0, "date": "2024-06-10T09:00:00"},
			map[string]any{"supplierArticle": "B", "subject": "Shirts", "saleID": "S3", "forPay": 300.0, "finishedPrice": 400.0, "date": "2024-06-11T09:00:00"},
			map[string]any{"supplierArticle": "C", "saleID": "S4", "forPay": 100.0, "date": "2024-06-12T09:00:00"},
			map[string]any{"supplierArticle": "A", "saleID": "S5", "forPay": 9999.0, "date": "2024-08-01T09:00:00"},
			"broken",
		},
		orders: analytics.RawReport{
			map[string]any{"supplierArticle": "A", "date": "2024-06-03T08:00:00"},
			map[string]any{"supplierArticle": "A", "date": "2024-06-09T08:00:00"},
			map[string]any{"supplierArticle": "B", "date": "2024-06-10T08:00:00"},
		},
		stocks: analytics.RawReport{
			map[string]any{"supplierArticle": "A", "quantity": 10.0, "inWayToClient": 1.0},
			map[string]any{"supplierArticle": "B", "quantity": 50.0},
		},
		advert: analytics.RawReport{
			map[string]any{"advertId": 7.0, "campName": "Dresses auto", "updSum": 300.0, "updTime": "2024-06-04T10:00:00Z"},
		},
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.SellerCredential{}, &models.ReportSnapshot{}))
	return db
}
