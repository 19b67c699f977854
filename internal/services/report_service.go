package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
	"github.com/niaga-platform/service-seller-analytics/internal/clients"
	"github.com/niaga-platform/service-seller-analytics/internal/config"
	"github.com/niaga-platform/service-seller-analytics/internal/models"
	"github.com/niaga-platform/service-seller-analytics/internal/providers"
	"github.com/niaga-platform/service-seller-analytics/internal/providers/wildberries"
)

// Data sources a finance-derived report can be computed from.
const (
	SourceFinance    = "finance"
	SourceStatistics = "statistics"
	SourceImport     = "import"
)

// Names of the fetched marketplace reports, used in fetch failure maps.
const (
	fetchSales   = "sales"
	fetchOrders  = "orders"
	fetchStocks  = "stocks"
	fetchFinance = "finance"
	fetchAdvert  = "advert"
	fetchCosts   = "unit_costs"
)

// CostSource supplies the cost of goods per product.
type CostSource interface {
	UnitCosts(ctx context.Context) (map[analytics.ProductKey]float64, error)
}

// ProductLookup returns catalog data for one SKU.
type ProductLookup interface {
	GetProduct(ctx context.Context, sku string) (*clients.Product, error)
}

// ReportMeta describes how a report was produced.
type ReportMeta struct {
	Report      string            `json:"report"`
	DateFrom    time.Time         `json:"date_from"`
	DateTo      time.Time         `json:"date_to"`
	Source      string            `json:"source,omitempty"`
	Malformed   int               `json:"malformed_records"`
	Failures    map[string]string `json:"failures,omitempty"`
	Placeholder bool              `json:"placeholder"`
	Cached      bool              `json:"cached"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Result pairs a computed report with its metadata.
type Result[T any] struct {
	Meta ReportMeta `json:"meta"`
	Data T          `json:"data"`
}

// ReportBundle holds the normalized marketplace reports of one window.
type ReportBundle struct {
	Window    analytics.Window
	Sales     []analytics.NormalizedRecord
	Orders    []analytics.NormalizedRecord
	Stocks    []analytics.NormalizedRecord
	Finance   []analytics.NormalizedRecord
	Advert    []analytics.AdSpendRecord
	UnitCosts map[analytics.ProductKey]float64
	Malformed int
	Failures  map[string]string
}

// revenueRecords returns the finance report lines, or the sales report when
// the finance report is empty.
func (b *ReportBundle) revenueRecords() ([]analytics.NormalizedRecord, string) {
	if len(b.Finance) > 0 {
		return b.Finance, SourceFinance
	}
	return b.Sales, SourceStatistics
}

// ReportService computes seller analytics from marketplace reports.
type ReportService struct {
	providers ProviderSource
	costs     CostSource
	catalog   ProductLookup
	cache     *AnalyticsCacheService
	cfg       config.AnalyticsConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService creates a report service. costs, catalog and cache may be nil.
func NewReportService(
	source ProviderSource,
	costs CostSource,
	catalog ProductLookup,
	cache *AnalyticsCacheService,
	cfg config.AnalyticsConfig,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		providers: source,
		costs:     costs,
		catalog:   catalog,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Window resolves a requested range. A zero start defaults to the configured
// period ending at end; a zero end means the start of tomorrow (UTC).
func (s *ReportService) Window(start, end time.Time) (analytics.Window, error) {
	if end.IsZero() {
		today := s.now().UTC().Truncate(24 * time.Hour)
		end = today.AddDate(0, 0, 1)
	}
	if start.IsZero() {
		start = end.Add(-s.cfg.DefaultPeriod)
	}

	w := analytics.Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return w, err
	}
	if s.cfg.MaxPeriod > 0 && w.End.Sub(w.Start) > s.cfg.MaxPeriod {
		return w, &analytics.ConfigError{
			Field:  "date_from",
			Reason: fmt.Sprintf("period must not exceed %d days", int(s.cfg.MaxPeriod.Hours()/24)),
		}
	}
	return w, nil
}

// FetchReports loads and normalizes every report of a seller for the window.
// Reports are fetched concurrently. A failing report is logged and left empty,
// except for authentication failures which abort the fetch.
func (s *ReportService) FetchReports(ctx context.Context, sellerID uuid.UUID, w analytics.Window) (*ReportBundle, error) {
	provider, err := s.providers.ProviderForSeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	bundle := &ReportBundle{Window: w, Failures: make(map[string]string)}
	query := providers.ReportQuery{DateFrom: w.Start, DateTo: w.End}

	var mu sync.Mutex
	fail := func(name string, err error) error {
		if wildberries.IsAuthError(err) {
			return err
		}
		s.logger.Warn("report fetch failed, continuing with empty data",
			zap.String("seller_id", sellerID.String()),
			zap.String("report", name),
			zap.Error(err),
		)
		mu.Lock()
		bundle.Failures[name] = err.Error()
		mu.Unlock()
		return nil
	}

	normalize := func(name string, kind analytics.ReportKind, fetch func(context.Context, providers.ReportQuery) (analytics.RawReport, error), q providers.ReportQuery, dst *[]analytics.NormalizedRecord) func() error {
		return func() error {
			raw, err := fetch(ctx, q)
			if err != nil {
				return fail(name, err)
			}
			res, err := analytics.NormalizeBatch(raw, kind)
			if err != nil {
				return err
			}
			*dst = res.Records
			mu.Lock()
			bundle.Malformed += res.Malformed
			mu.Unlock()
			return nil
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(normalize(fetchSales, analytics.KindSale, provider.GetSales, query, &bundle.Sales))
	g.Go(normalize(fetchOrders, analytics.KindOrder, provider.GetOrders, query, &bundle.Orders))
	// stocks are a current snapshot, not bounded by the window
	g.Go(normalize(fetchStocks, analytics.KindStock, provider.GetStocks, providers.ReportQuery{}, &bundle.Stocks))
	g.Go(normalize(fetchFinance, analytics.KindFinance, provider.GetFinance, query, &bundle.Finance))
	g.Go(func() error {
		raw, err := provider.GetAdvertSpend(ctx, query)
		if err != nil {
			return fail(fetchAdvert, err)
		}
		records, malformed := analytics.NormalizeAdSpendBatch(raw)
		bundle.Advert = records
		mu.Lock()
		bundle.Malformed += malformed
		mu.Unlock()
		return nil
	})
	if s.costs != nil {
		g.Go(func() error {
			costs, err := s.costs.UnitCosts(ctx)
			if err != nil {
				return fail(fetchCosts, err)
			}
			bundle.UnitCosts = costs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	bundle.Sales = filterWindow(bundle.Sales, w)
	bundle.Orders = filterWindow(bundle.Orders, w)
	bundle.Finance = filterWindow(bundle.Finance, w)

	s.logger.Debug("reports fetched",
		zap.String("seller_id", sellerID.String()),
		zap.Int("sales", len(bundle.Sales)),
		zap.Int("orders", len(bundle.Orders)),
		zap.Int("stocks", len(bundle.Stocks)),
		zap.Int("finance", len(bundle.Finance)),
		zap.Int("advert", len(bundle.Advert)),
		zap.Int("malformed", bundle.Malformed),
	)
	return bundle, nil
}

// filterWindow drops dated records outside w. Undated records are kept.
func filterWindow(records []analytics.NormalizedRecord, w analytics.Window) []analytics.NormalizedRecord {
	out := make([]analytics.NormalizedRecord, 0, len(records))
	for _, r := range records {
		if r.Fields.HasDate && !w.Contains(r.Fields.Date) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *ReportService) meta(report string, b *ReportBundle, source string) ReportMeta {
	m := ReportMeta{
		Report:      report,
		DateFrom:    b.Window.Start,
		DateTo:      b.Window.End,
		Source:      source,
		Malformed:   b.Malformed,
		GeneratedAt: s.now().UTC(),
	}
	if len(b.Failures) > 0 {
		m.Failures = b.Failures
	}
	return m
}

// loadReport serves a report from the cache or computes and caches it.
func loadReport[T any](
	ctx context.Context,
	s *ReportService,
	sellerID uuid.UUID,
	report string,
	w analytics.Window,
	compute func(*ReportBundle) (T, string, error),
) (*Result[T], error) {
	var cached Result[T]
	if s.cache.Get(ctx, sellerID, report, w, &cached) {
		cached.Meta.Cached = true
		return &cached, nil
	}

	bundle, err := s.FetchReports(ctx, sellerID, w)
	if err != nil {
		return nil, err
	}
	data, source, err := compute(bundle)
	if err != nil {
		return nil, err
	}

	result := &Result[T]{Meta: s.meta(report, bundle, source), Data: data}
	// partial results are not cached so a retry can pick up the missing report
	if len(bundle.Failures) == 0 {
		_ = s.cache.Set(ctx, sellerID, report, w, result)
	}
	return result, nil
}

// Finance returns the finance summary and per-product table.
func (s *ReportService) Finance(ctx context.Context, sellerID uuid.UUID, w analytics.Window) (*Result[*analytics.FinanceReport], error) {
	return loadReport(ctx, s, sellerID, models.ReportFinance, w, s.computeFinance)
}

// ABC returns the revenue ABC classification.
func (s *ReportService) ABC(ctx context.Context, sellerID uuid.UUID, w analytics.Window) (*Result[*analytics.AbcResult], error) {
	return loadReport(ctx, s, sellerID, models.ReportABC, w, s.computeABC)
}

// ABCClusters returns the ABC classification within each subject.
func (s *ReportService) ABCClusters(ctx context.Context, sellerID uuid.UUID, w analytics.Window) (*Result[[]*analytics.AbcResult], error) {
	return loadReport(ctx, s, sellerID, models.ReportABCClusters, w, s.computeABCClusters)
}

// Weekly returns the weekly financial rollup.
func (s *ReportService) Weekly(ctx context.Context, sellerID uuid.UUID, w analytics.Window) (*Result[*analytics.WeeklyReport], error) {
	return loadReport(ctx, s, sellerID, models.ReportWeekly, w, s.computeWeekly)
}

// Supply returns the supply plan.
func (s *ReportService) Supply(ctx context.Context, sellerID uuid.UUID, w analytics.Window) (*Result[*analytics.SupplyPlan], error) {
	return loadReport(ctx, s, sellerID, models.ReportSupply, w, s.computeSupply)
}

// AdSpend returns the weekly advertising spend per campaign.
func (s *ReportService) AdSpend(ctx context.Context, sellerID uuid.UUID, w analytics.Window) (*Result[*analytics.AdSpendTable], error) {
	return loadReport(ctx, s, sellerID, models.ReportAdSpend, w, s.computeAdSpend)
}

// Promotions returns the promotion preparation and liquidation table.
func (s *ReportService) Promotions(ctx context.Context, sellerID uuid.UUID, w analytics.Window) (*Result[*analytics.PromotionTable], error) {
	return loadReport(ctx, s, sellerID, models.ReportPromotions, w, s.computePromotions)
}

func (s *ReportService) revenueProducts(b *ReportBundle) (map[analytics.ProductKey]*analytics.AggregatedProduct, string) {
	records, source := b.revenueRecords()
	return analytics.Aggregate(records), source
}

func (s *ReportService) computeFinance(b *ReportBundle) (*analytics.FinanceReport, string, error) {
	products, source := s.revenueProducts(b)
	report := analytics.BuildFinanceReport(products)
	report.Summary.MalformedRecords = b.Malformed
	report.Summary.Source = source
	return report, source, nil
}

func (s *ReportService) computeABC(b *ReportBundle) (*analytics.AbcResult, string, error) {
	products, source := s.revenueProducts(b)
	res, err := analytics.Classify(analytics.SortedProducts(products), s.cfg.Thresholds)
	if err != nil {
		return nil, source, err
	}
	return res.Rounded(), source, nil
}

func (s *ReportService) computeABCClusters(b *ReportBundle) ([]*analytics.AbcResult, string, error) {
	products, source := s.revenueProducts(b)
	groups, err := analytics.ClassifyByGroup(analytics.SortedProducts(products), s.cfg.Thresholds)
	if err != nil {
		return nil, source, err
	}
	out := make([]*analytics.AbcResult, len(groups))
	for i, g := range groups {
		out[i] = g.Rounded()
	}
	return out, source, nil
}

func (s *ReportService) computeWeekly(b *ReportBundle) (*analytics.WeeklyReport, string, error) {
	records, source := b.revenueRecords()
	cfg := s.cfg.Weekly
	cfg.UnitCosts = b.UnitCosts
	report, err := analytics.Rollup(records, b.Window, cfg)
	if err != nil {
		return nil, source, err
	}
	return report.Rounded(), source, nil
}

func (s *ReportService) supplyPlan(b *ReportBundle) (*analytics.SupplyPlan, error) {
	records := make([]analytics.NormalizedRecord, 0, len(b.Stocks)+len(b.Orders))
	records = append(records, b.Stocks...)
	records = append(records, b.Orders...)

	cfg := s.cfg.Supply
	cfg.HistoryDays = b.Window.Days()
	return analytics.PlanSupplyFromAggregates(analytics.Aggregate(records), cfg)
}

func (s *ReportService) computeSupply(b *ReportBundle) (*analytics.SupplyPlan, string, error) {
	plan, err := s.supplyPlan(b)
	if err != nil {
		return nil, SourceStatistics, err
	}
	return plan.Rounded(), SourceStatistics, nil
}

func (s *ReportService) computeAdSpend(b *ReportBundle) (*analytics.AdSpendTable, string, error) {
	table, err := analytics.BuildAdSpendTable(b.Advert, b.Window, s.cfg.Weekly.WeekSizeDays)
	if err != nil {
		return nil, fetchAdvert, err
	}
	return table.Rounded(), fetchAdvert, nil
}

func (s *ReportService) computePromotions(b *ReportBundle) (*analytics.PromotionTable, string, error) {
	products, source := s.revenueProducts(b)
	abc, err := analytics.Classify(analytics.SortedProducts(products), s.cfg.Thresholds)
	if err != nil {
		return nil, source, err
	}
	plan, err := s.supplyPlan(b)
	if err != nil {
		return nil, source, err
	}
	table, err := analytics.BuildPromotions(abc, products, plan, s.cfg.Promotions)
	if err != nil {
		return nil, source, err
	}
	return table.Rounded(), source, nil
}

// ReportSet holds every report computed from one fetch.
type ReportSet struct {
	SellerID    uuid.UUID
	Meta        ReportMeta
	Finance     *analytics.FinanceReport
	ABC         *analytics.AbcResult
	ABCClusters []*analytics.AbcResult
	Weekly      *analytics.WeeklyReport
	Supply      *analytics.SupplyPlan
	AdSpend     *analytics.AdSpendTable
	Promotions  *analytics.PromotionTable
}

// Payloads returns the reports keyed by report name.
func (r *ReportSet) Payloads() map[string]any {
	return map[string]any{
		models.ReportFinance:     r.Finance,
		models.ReportABC:         r.ABC,
		models.ReportABCClusters: r.ABCClusters,
		models.ReportWeekly:      r.Weekly,
		models.ReportSupply:      r.Supply,
		models.ReportAdSpend:     r.AdSpend,
		models.ReportPromotions:  r.Promotions,
	}
}

// ComputeAll fetches the reports once and computes every table.
func (s *ReportService) ComputeAll(ctx context.Context, sellerID uuid.UUID, w analytics.Window) (*ReportSet, error) {
	bundle, err := s.FetchReports(ctx, sellerID, w)
	if err != nil {
		return nil, err
	}

	set := &ReportSet{SellerID: sellerID}
	var source string
	if set.Finance, source, err = s.computeFinance(bundle); err != nil {
		return nil, err
	}
	if set.ABC, _, err = s.computeABC(bundle); err != nil {
		return nil, err
	}
	if set.ABCClusters, _, err = s.computeABCClusters(bundle); err != nil {
		return nil, err
	}
	if set.Weekly, _, err = s.computeWeekly(bundle); err != nil {
		return nil, err
	}
	if set.Supply, _, err = s.computeSupply(bundle); err != nil {
		return nil, err
	}
	if set.AdSpend, _, err = s.computeAdSpend(bundle); err != nil {
		return nil, err
	}
	if set.Promotions, _, err = s.computePromotions(bundle); err != nil {
		return nil, err
	}
	set.Meta = s.meta("all", bundle, source)

	if len(bundle.Failures) == 0 {
		for name, payload := range set.Payloads() {
			_ = s.cache.Set(ctx, sellerID, name, w, &Result[any]{Meta: s.meta(name, bundle, source), Data: payload})
		}
	}
	return set, nil
}

// ImportAnalysis is the outcome of analyzing an uploaded report.
type ImportAnalysis struct {
	Kind      analytics.ReportKind     `json:"kind"`
	Records   int                      `json:"records"`
	Malformed int                      `json:"malformed_records"`
	Finance   *analytics.FinanceReport `json:"finance"`
	ABC       *analytics.AbcResult     `json:"abc"`
	Weekly    *analytics.WeeklyReport  `json:"weekly,omitempty"`
}

// AnalyzeImported computes the finance summary and ABC classification of an
// uploaded report. The weekly rollup is added when the records carry dates.
func (s *ReportService) AnalyzeImported(raw analytics.RawReport, kind analytics.ReportKind) (*ImportAnalysis, error) {
	batch, err := analytics.NormalizeBatch(raw, kind)
	if err != nil {
		return nil, err
	}

	products := analytics.Aggregate(batch.Records)
	finance := analytics.BuildFinanceReport(products)
	finance.Summary.MalformedRecords = batch.Malformed
	finance.Summary.Source = SourceImport

	abc, err := analytics.Classify(analytics.SortedProducts(products), s.cfg.Thresholds)
	if err != nil {
		return nil, err
	}

	out := &ImportAnalysis{
		Kind:      kind,
		Records:   len(batch.Records),
		Malformed: batch.Malformed,
		Finance:   finance,
		ABC:       abc.Rounded(),
	}

	if w, ok := datedWindow(batch.Records); ok {
		weekly, err := analytics.Rollup(batch.Records, w, s.cfg.Weekly)
		if err != nil {
			return nil, err
		}
		out.Weekly = weekly.Rounded()
	}
	return out, nil
}

// datedWindow spans whole days from the earliest to the latest dated record.
func datedWindow(records []analytics.NormalizedRecord) (analytics.Window, bool) {
	var first, last time.Time
	for _, r := range records {
		if !r.Fields.HasDate {
			continue
		}
		d := r.Fields.Date.UTC()
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	if first.IsZero() {
		return analytics.Window{}, false
	}
	return analytics.Window{
		Start: first.Truncate(24 * time.Hour),
		End:   last.Truncate(24 * time.Hour).AddDate(0, 0, 1),
	}, true
}

// UnitEconomics computes the per-unit profitability of one product. When sku
// is set, missing cost and dimensions are filled from the catalog; zero
// logistics rates fall back to the configured tariff.
func (s *ReportService) UnitEconomics(ctx context.Context, in analytics.UnitEconomicsInputs, sku string) (analytics.UnitEconomicsRecord, error) {
	if sku != "" && s.catalog != nil {
		product, err := s.catalog.GetProduct(ctx, sku)
		if err != nil {
			return analytics.UnitEconomicsRecord{}, err
		}
		in.Key = analytics.ProductKey(sku)
		if in.CostPrice == 0 {
			in.CostPrice = product.CostPrice
		}
		if in.DeliveryToWarehouse == 0 {
			in.DeliveryToWarehouse = product.DeliveryToWarehouse
		}
		if in.BasePrice == 0 {
			in.BasePrice = product.BasePrice
		}
		if d := product.Dimensions; d != nil && in.Height == 0 && in.Width == 0 && in.Length == 0 {
			in.Height, in.Width, in.Length = d.Height, d.Width, d.Length
		}
	}
	if in.LogisticsRates == (analytics.LogisticsRates{}) {
		in.LogisticsRates = s.cfg.Logistics
	}

	rec, err := analytics.ComputeUnitEconomics(in)
	if err != nil {
		return rec, err
	}
	return rec.Rounded(), nil
}
