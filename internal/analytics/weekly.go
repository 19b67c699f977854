package analytics

import (
	"math"
	"sort"
	"time"
)

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate requires End after Start.
func (w Window) Validate() error {
	if !w.End.After(w.Start) {
		return configErrorf("window", "end %s must be after start %s", w.End.Format(time.DateOnly), w.Start.Format(time.DateOnly))
	}
	return nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Days is the window length in days, rounded up.
func (w Window) Days() int {
	d := w.End.Sub(w.Start)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// Split partitions the window into consecutive buckets of sizeDays; the last
// bucket may be shorter.
func (w Window) Split(sizeDays int) []Window {
	if sizeDays <= 0 || !w.End.After(w.Start) {
		return nil
	}
	var out []Window
	for start := w.Start; start.Before(w.End); {
		end := start.AddDate(0, 0, sizeDays)
		if end.After(w.End) {
			end = w.End
		}
		out = append(out, Window{Start: start, End: end})
		start = end
	}
	return out
}

// bucketIndex returns the index of the bucket containing t, or -1.
func bucketIndex(buckets []Window, t time.Time) int {
	i := sort.Search(len(buckets), func(i int) bool { return t.Before(buckets[i].End) })
	if i < len(buckets) && buckets[i].Contains(t) {
		return i
	}
	return -1
}

// WeeklyConfig holds the bucket size and the estimation ratios applied when a
// report does not carry the real cost breakdown.
type WeeklyConfig struct {
	WeekSizeDays       int     `json:"weekSizeDays" mapstructure:"week_size_days"`
	PaymentRatio       float64 `json:"paymentRatio" mapstructure:"payment_ratio"`
	LogisticsPerUnit   float64 `json:"logisticsPerUnit" mapstructure:"logistics_per_unit"`
	StoragePerUnit     float64 `json:"storagePerUnit" mapstructure:"storage_per_unit"`
	AcceptancePerUnit  float64 `json:"acceptancePerUnit" mapstructure:"acceptance_per_unit"`
	AdSpendRatio       float64 `json:"adSpendRatio" mapstructure:"ad_spend_ratio"`
	TaxRate            float64 `json:"taxRate" mapstructure:"tax_rate"`
	OtherExpensesRatio float64 `json:"otherExpensesRatio" mapstructure:"other_expenses_ratio"`
	CostPerUnit        float64 `json:"costPerUnit" mapstructure:"cost_per_unit"`

	// UnitCosts overrides CostPerUnit per product.
	UnitCosts map[ProductKey]float64 `json:"-" mapstructure:"-"`
}

// DefaultWeeklyConfig returns the estimation ratios used by the seller cabinet.
func DefaultWeeklyConfig() WeeklyConfig {
	return WeeklyConfig{
		WeekSizeDays:       7,
		PaymentRatio:       0.85,
		LogisticsPerUnit:   120,
		StoragePerUnit:     25,
		AcceptancePerUnit:  15,
		AdSpendRatio:       0.12,
		TaxRate:            0.07,
		OtherExpensesRatio: 0.03,
	}
}

// Validate rejects a non-positive week size and negative or out-of-range ratios.
func (c WeeklyConfig) Validate() error {
	if c.WeekSizeDays <= 0 {
		return configErrorf("weekSizeDays", "must be positive, got %d", c.WeekSizeDays)
	}
	for _, f := range []struct {
		field string
		v     float64
	}{
		{"paymentRatio", c.PaymentRatio},
		{"logisticsPerUnit", c.LogisticsPerUnit},
		{"storagePerUnit", c.StoragePerUnit},
		{"acceptancePerUnit", c.AcceptancePerUnit},
		{"adSpendRatio", c.AdSpendRatio},
		{"taxRate", c.TaxRate},
		{"otherExpensesRatio", c.OtherExpensesRatio},
		{"costPerUnit", c.CostPerUnit},
	} {
		if err := requireNonNegative(f.field, f.v); err != nil {
			return err
		}
	}
	if c.TaxRate >= 1 {
		return configErrorf("taxRate", "must be a fraction below 1, got %v", c.TaxRate)
	}
	for key, cost := range c.UnitCosts {
		if err := requireNonNegative("unitCosts."+string(key), cost); err != nil {
			return err
		}
	}
	return nil
}

func (c WeeklyConfig) unitCost(key ProductKey) float64 {
	if cost, ok := c.UnitCosts[key]; ok {
		return cost
	}
	return c.CostPerUnit
}

// WeeklyFinancialLine is the P&L of one week bucket.
type WeeklyFinancialLine struct {
	Week            int        `json:"week"`
	Key             ProductKey `json:"key,omitempty"`
	PeriodStart     time.Time  `json:"periodStart"`
	PeriodEnd       time.Time  `json:"periodEnd"`
	BuyoutQuantity  float64    `json:"buyoutQuantity"`
	GrossSales      float64    `json:"grossSales"`
	PaymentForGoods float64    `json:"paymentForGoods"`
	Logistics       float64    `json:"logistics"`
	Storage         float64    `json:"storage"`
	Acceptance      float64    `json:"acceptance"`
	Penalty         float64    `json:"penalty"`
	Advertising     float64    `json:"advertising"`
	Payout          float64    `json:"payout"`
	Tax             float64    `json:"tax"`
	OtherExpenses   float64    `json:"otherExpenses"`
	CostOfGoodsSold float64    `json:"costOfGoodsSold"`
	NetProfit       float64    `json:"netProfit"`
	Estimated       bool       `json:"estimated"`
}

// weekAccumulator collects the raw sums of one bucket before derivation.
type weekAccumulator struct {
	quantity    float64
	sales       float64
	payment     float64
	cogs        float64
	logistics   float64
	storage     float64
	acceptance  float64
	penalty     float64
	advertising float64
	actualCosts bool
}

func (a *weekAccumulator) add(key ProductKey, f NormalizedFields, cfg WeeklyConfig) {
	if f.Kind == KindFinance {
		a.actualCosts = true
		a.logistics += f.Logistics
		a.storage += f.Storage
		a.acceptance += f.Acceptance
		a.penalty += f.Penalty
		a.advertising += f.Advertising
	}

	var sign float64
	switch f.Class {
	case ClassSale:
		sign = 1
	case ClassReturn:
		sign = -1
	default:
		return
	}

	qty := math.Abs(f.Quantity)
	gross := math.Abs(f.Retail)
	if gross == 0 {
		gross = math.Abs(f.Revenue)
	}
	payment := gross * cfg.PaymentRatio
	if f.HasPayout {
		payment = math.Abs(f.Payout)
	}

	a.quantity += sign * qty
	a.sales += sign * gross
	a.payment += sign * payment
	a.cogs += sign * qty * cfg.unitCost(key)
}

// line derives the P&L fields of a bucket. Missing cost breakdowns are estimated
// from the configured per-unit and ratio tariffs.
func (a *weekAccumulator) line(week int, w Window, cfg WeeklyConfig) WeeklyFinancialLine {
	l := WeeklyFinancialLine{
		Week:            week,
		PeriodStart:     w.Start,
		PeriodEnd:       w.End,
		BuyoutQuantity:  a.quantity,
		GrossSales:      a.sales,
		PaymentForGoods: a.payment,
		CostOfGoodsSold: a.cogs,
	}
	if a.actualCosts {
		l.Logistics = a.logistics
		l.Storage = a.storage
		l.Acceptance = a.acceptance
		l.Penalty = a.penalty
		l.Advertising = a.advertising
	} else {
		units := max(a.quantity, 0)
		l.Estimated = units > 0 || a.sales > 0
		l.Logistics = units * cfg.LogisticsPerUnit
		l.Storage = units * cfg.StoragePerUnit
		l.Acceptance = units * cfg.AcceptancePerUnit
		l.Advertising = max(a.sales, 0) * cfg.AdSpendRatio
	}

	l.Payout = l.PaymentForGoods - l.Logistics - l.Storage - l.Acceptance - l.Penalty - l.Advertising
	if l.Payout > 0 {
		l.Tax = l.Payout * cfg.TaxRate
	}
	l.OtherExpenses = max(l.GrossSales, 0) * cfg.OtherExpensesRatio
	l.recompute()
	return l
}

// recompute derives net profit from its components.
func (l *WeeklyFinancialLine) recompute() {
	l.NetProfit = l.Payout - l.Tax - l.OtherExpenses - l.CostOfGoodsSold
}

// WeeklySummary totals a rollup.
type WeeklySummary struct {
	TotalWeeks      int     `json:"totalWeeks"`
	TotalQuantity   float64 `json:"totalQuantity"`
	TotalSales      float64 `json:"totalSales"`
	TotalPayout     float64 `json:"totalPayout"`
	TotalNetProfit  float64 `json:"totalNetProfit"`
	AvgWeeklyProfit float64 `json:"avgWeeklyProfit"`
}

// WeeklyReport is a rollup with its summary.
type WeeklyReport struct {
	Window  Window                `json:"window"`
	Lines   []WeeklyFinancialLine `json:"lines"`
	Summary WeeklySummary         `json:"summary"`
}

// Rollup partitions the window into week buckets and computes one P&L line per
// bucket from the records dated inside it. Records without a date or outside
// the window are ignored.
func Rollup(records []NormalizedRecord, window Window, cfg WeeklyConfig) (*WeeklyReport, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return rollup("", records, window, cfg), nil
}

func rollup(key ProductKey, records []NormalizedRecord, window Window, cfg WeeklyConfig) *WeeklyReport {
	buckets := window.Split(cfg.WeekSizeDays)
	acc := make([]weekAccumulator, len(buckets))
	for _, r := range records {
		if !r.Fields.HasDate {
			continue
		}
		i := bucketIndex(buckets, r.Fields.Date)
		if i < 0 {
			continue
		}
		acc[i].add(r.Key, r.Fields, cfg)
	}

	report := &WeeklyReport{Window: window, Lines: make([]WeeklyFinancialLine, len(buckets))}
	for i, w := range buckets {
		l := acc[i].line(i+1, w, cfg)
		l.Key = key
		report.Lines[i] = l

		report.Summary.TotalQuantity += l.BuyoutQuantity
		report.Summary.TotalSales += l.GrossSales
		report.Summary.TotalPayout += l.Payout
		report.Summary.TotalNetProfit += l.NetProfit
	}
	report.Summary.TotalWeeks = len(buckets)
	report.Summary.AvgWeeklyProfit = safeDiv(report.Summary.TotalNetProfit, float64(len(buckets)))
	return report
}

// RollupByProduct produces one weekly report per product key, ordered by key.
func RollupByProduct(records []NormalizedRecord, window Window, cfg WeeklyConfig) ([]*WeeklyReport, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	byKey := map[ProductKey][]NormalizedRecord{}
	for _, r := range records {
		byKey[r.Key] = append(byKey[r.Key], r)
	}
	keys := make([]ProductKey, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]*WeeklyReport, 0, len(keys))
	for _, k := range keys {
		out = append(out, rollup(k, byKey[k], window, cfg))
	}
	return out, nil
}

// Rounded returns a copy with every amount rounded for output. Net profit is
// recomputed from the rounded components so the row stays consistent.
func (r *WeeklyReport) Rounded() *WeeklyReport {
	out := &WeeklyReport{Window: r.Window, Lines: make([]WeeklyFinancialLine, len(r.Lines))}
	for i, l := range r.Lines {
		for _, v := range []*float64{
			&l.BuyoutQuantity, &l.GrossSales, &l.PaymentForGoods, &l.Logistics,
			&l.Storage, &l.Acceptance, &l.Penalty, &l.Advertising, &l.Payout,
			&l.Tax, &l.OtherExpenses, &l.CostOfGoodsSold,
		} {
			*v = Round2(*v)
		}
		l.recompute()
		l.NetProfit = Round2(l.NetProfit)
		out.Lines[i] = l
	}
	out.Summary = WeeklySummary{
		TotalWeeks:      r.Summary.TotalWeeks,
		TotalQuantity:   Round2(r.Summary.TotalQuantity),
		TotalSales:      Round2(r.Summary.TotalSales),
		TotalPayout:     Round2(r.Summary.TotalPayout),
		TotalNetProfit:  Round2(r.Summary.TotalNetProfit),
		AvgWeeklyProfit: Round2(r.Summary.AvgWeeklyProfit),
	}
	return out
}
