package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
	"github.com/niaga-platform/service-seller-analytics/internal/clients"
	wbdomain "github.com/niaga-platform/service-seller-analytics/internal/domain/wildberries"
	"github.com/niaga-platform/service-seller-analytics/internal/models"
)

func newTestReportService(p *fakeProvider) *ReportService {
	return NewReportService(fakeSource{provider: p}, nil, nil, nil, testAnalyticsConfig(), nil)
}

func TestReportServiceFinanceFromSales(t *testing.T) {
	svc := newTestReportService(sellerFixture())

	res, err := svc.Finance(context.Background(), uuid.New(), testWindow())
	require.NoError(t, err)

	s := res.Data.Summary
	assert.Equal(t, SourceStatistics, res.Meta.Source)
	assert.Equal(t, SourceStatistics, s.Source)
	assert.Equal(t, 1800.0, s.TotalRevenue, "sale outside the window is dropped")
	assert.Equal(t, 4, s.TotalSales)
	assert.Equal(t, 3, s.ProductCount)
	assert.Equal(t, 1, s.MalformedRecords)
	assert.Equal(t, 450.0, s.AverageOrderValue)
	assert.False(t, res.Meta.Placeholder)
	assert.False(t, res.Meta.Cached)
	assert.Empty(t, res.Meta.Failures)

	require.Len(t, res.Data.Products, 3)
	assert.Equal(t, analytics.ProductKey("A"), res.Data.Products[0].Key)
}

func TestReportServiceFinancePrefersFinanceReport(t *testing.T) {
	p := sellerFixture()
	p.finance = analytics.RawReport{
		map[string]any{"sa_name": "A", "doc_type_name": "Продажа", "ppvz_for_pay": 900.0, "delivery_rub": 50.0, "sale_dt": "2024-06-05"},
		map[string]any{"sa_name": "B", "doc_type_name": "Продажа", "ppvz_for_pay": 100.0, "sale_dt": "2024-06-06"},
	}
	svc := newTestReportService(p)

	res, err := svc.Finance(context.Background(), uuid.New(), testWindow())
	require.NoError(t, err)
	assert.Equal(t, SourceFinance, res.Meta.Source)
	assert.Equal(t, 1000.0, res.Data.Summary.TotalRevenue)
	assert.Equal(t, 50.0, res.Data.Summary.TotalLogistics)
	assert.Equal(t, 950.0, res.Data.Summary.NetProfit)
}

func TestReportServiceEmptyReports(t *testing.T) {
	svc := newTestReportService(&fakeProvider{})

	res, err := svc.Finance(context.Background(), uuid.New(), testWindow())
	require.NoError(t, err)
	assert.Zero(t, res.Data.Summary.TotalRevenue)
	assert.Empty(t, res.Data.Products)
	assert.False(t, res.Meta.Placeholder)

	weekly, err := svc.Weekly(context.Background(), uuid.New(), testWindow())
	require.NoError(t, err)
	assert.Len(t, weekly.Data.Lines, 2)
	assert.Zero(t, weekly.Data.Summary.TotalNetProfit)
}

func TestReportServiceFetchFailures(t *testing.T) {
	t.Run("non auth failures leave the report empty", func(t *testing.T) {
		p := sellerFixture()
		p.errs = map[string]error{fetchAdvert: wbdomain.NewAPIError(503, "unavailable")}
		svc := newTestReportService(p)

		res, err := svc.AdSpend(context.Background(), uuid.New(), testWindow())
		require.NoError(t, err)
		assert.Contains(t, res.Meta.Failures, fetchAdvert)
		assert.Empty(t, res.Data.Campaigns)
	})

	t.Run("auth failure aborts", func(t *testing.T) {
		p := sellerFixture()
		p.errs = map[string]error{fetchSales: wbdomain.NewAPIError(401, "unauthorized")}
		svc := newTestReportService(p)

		_, err := svc.Finance(context.Background(), uuid.New(), testWindow())
		require.Error(t, err)
		assert.ErrorIs(t, err, wbdomain.ErrUnauthorized)
	})

	t.Run("missing credentials", func(t *testing.T) {
		svc := NewReportService(fakeSource{err: ErrCredentialsMissing}, nil, nil, nil, testAnalyticsConfig(), nil)
		_, err := svc.ABC(context.Background(), uuid.New(), testWindow())
		assert.ErrorIs(t, err, ErrCredentialsMissing)
	})
}

func TestReportServiceABC(t *testing.T) {
	svc := newTestReportService(sellerFixture())

	res, err := svc.ABC(context.Background(), uuid.New(), testWindow())
	require.NoError(t, err)
	require.Len(t, res.Data.Rows, 3)
	assert.Equal(t, analytics.BandA, res.Data.Rows[0].Band)
	assert.Equal(t, analytics.BandB, res.Data.Rows[1].Band)
	assert.Equal(t, analytics.BandC, res.Data.Rows[2].Band)

	clusters, err := svc.ABCClusters(context.Background(), uuid.New(), testWindow())
	require.NoError(t, err)
	require.Len(t, clusters.Data, 3)
	assert.Equal(t, "Dresses", clusters.Data[0].Group)
}

func TestReportServiceSupplyAndPromotions(t *testing.T) {
	svc := newTestReportService(sellerFixture())

	supply, err := svc.Supply(context.Background(), uuid.New(), testWindow())
	require.NoError(t, err)
	row, ok := supply.Data.RowFor("A")
	require.True(t, ok)
	assert.Equal(t, 10.0, row.OnSale)
	assert.Equal(t, 70.0, row.DaysOfStock, "two orders over a fourteen day history")

	promos, err := svc.Promotions(context.Background(), uuid.New(), testWindow())
	require.NoError(t, err)
	byKey := map[analytics.ProductKey]analytics.PromotionRow{}
	for _, r := range promos.Data.Rows {
		byKey[r.Key] = r
	}
	assert.Equal(t, analytics.SubgroupPrepare, byKey["A"].Subgroup)
	assert.Equal(t, analytics.SubgroupLiquidate, byKey["B"].Subgroup)
	assert.Equal(t, analytics.SubgroupLiquidate, byKey["C"].Subgroup)
}

func TestReportServiceWeeklyUsesUnitCosts(t *testing.T) {
	svc := NewReportService(fakeSource{provider: sellerFixture()}, fakeCosts{"A": 200}, nil, nil, testAnalyticsConfig(), nil)

	res, err := svc.Weekly(context.Background(), uuid.New(), testWindow())
	require.NoError(t, err)
	require.Len(t, res.Data.Lines, 2)
	assert.Equal(t, 200.0, res.Data.Lines[0].CostOfGoodsSold)
}

func TestReportServiceComputeAll(t *testing.T) {
	p := sellerFixture()
	svc := newTestReportService(p)

	set, err := svc.ComputeAll(context.Background(), uuid.New(), testWindow())
	require.NoError(t, err)
	assert.Equal(t, int32(5), p.calls.Load(), "each report is fetched once")

	payloads := set.Payloads()
	for _, name := range models.ReportNames {
		assert.NotNil(t, payloads[name], name)
	}
	assert.Equal(t, 1, set.AdSpend.Summary.TotalCampaigns)
	assert.Equal(t, SourceStatistics, set.Meta.Source)
}

func TestReportServiceWindow(t *testing.T) {
	svc := newTestReportService(&fakeProvider{})
	svc.now = func() time.Time { return time.Date(2024, 6, 20, 15, 30, 0, 0, time.UTC) }

	w, err := svc.Window(time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC), w.End)
	assert.Equal(t, 30, w.Days())

	_, err = svc.Window(day(0), day(0))
	assert.True(t, analytics.IsConfigError(err))

	_, err = svc.Window(day(0), day(365))
	var cfgErr *analytics.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "date_from", cfgErr.Field)
}

func TestReportServiceAnalyzeImported(t *testing.T) {
	svc := newTestReportService(&fakeProvider{})

	raw := analytics.RawReport{
		map[string]any{"sa_name": "A", "doc_type_name": "Продажа", "ppvz_for_pay": "900,5", "sale_dt": "2024-06-05"},
		map[string]any{"sa_name": "B", "doc_type_name": "Продажа", "ppvz_for_pay": 100.0, "sale_dt": "2024-06-12"},
		42,
	}
	out, err := svc.AnalyzeImported(raw, analytics.KindFinance)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Records)
	assert.Equal(t, 1, out.Malformed)
	assert.Equal(t, SourceImport, out.Finance.Summary.Source)
	assert.Equal(t, 1000.5, out.Finance.Summary.TotalRevenue)
	require.NotNil(t, out.Weekly)
	assert.Len(t, out.Weekly.Lines, 2)

	_, err = svc.AnalyzeImported(raw, analytics.ReportKind("bogus"))
	assert.True(t, analytics.IsConfigError(err))
}

func TestReportServiceUnitEconomics(t *testing.T) {
	catalog := fakeCatalog{"DRESS-1": {
		SKU:        "DRESS-1",
		CostPrice:  700,
		BasePrice:  2000,
		Dimensions: &clients.ProductDimension{Length: 20, Width: 10, Height: 15},
	}}
	svc := NewReportService(fakeSource{}, nil, catalog, nil, testAnalyticsConfig(), nil)

	in := analytics.UnitEconomicsInputs{BuyoutPercent: 85, CommissionPercent: 10, TaxRate: 0.07}
	rec, err := svc.UnitEconomics(context.Background(), in, "DRESS-1")
	require.NoError(t, err)
	assert.Equal(t, analytics.ProductKey("DRESS-1"), rec.Inputs.Key)
	assert.Equal(t, 700.0, rec.Inputs.CostPrice)
	assert.Equal(t, 2000.0, rec.FinalPrice)
	assert.Equal(t, 15.0, rec.Inputs.Height)
	assert.Equal(t, testAnalyticsConfig().Logistics, rec.Inputs.LogisticsRates)
	assert.Equal(t, 3.0, rec.VolumeLiters)

	_, err = svc.UnitEconomics(context.Background(), in, "missing")
	assert.ErrorIs(t, err, clients.ErrProductNotFound)

	in.TaxRate = 7
	_, err = svc.UnitEconomics(context.Background(), in, "")
	assert.True(t, analytics.IsConfigError(err))
}
