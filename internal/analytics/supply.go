package analytics

import (
	"math"
	"sort"
)

// InfiniteDays is reported as days of stock when there is no demand.
// SupplyPlanRow.Infinite carries the same information explicitly.
const InfiniteDays = 999999

// SupplyInputs is the per-product input of the planner.
type SupplyInputs struct {
	Key                    ProductKey `json:"key"`
	CurrentStock           float64    `json:"currentStock"`
	InTransit              float64    `json:"inTransit"`
	TotalOrders            float64    `json:"totalOrders"`
	HistoryDays            int        `json:"historyDays"`
	PlanWindowDays         int        `json:"planWindowDays"`
	SeasonalityCoefficient float64    `json:"seasonalityCoefficient"`
}

// Validate rejects negative quantities, windows and coefficients.
func (in SupplyInputs) Validate() error {
	if in.HistoryDays < 0 {
		return configErrorf("historyDays", "must not be negative, got %d", in.HistoryDays)
	}
	if in.PlanWindowDays < 0 {
		return configErrorf("planWindowDays", "must not be negative, got %d", in.PlanWindowDays)
	}
	if err := requireNonNegative("seasonalityCoefficient", in.SeasonalityCoefficient); err != nil {
		return err
	}
	if err := requireNonNegative("currentStock", in.CurrentStock); err != nil {
		return err
	}
	if err := requireNonNegative("inTransit", in.InTransit); err != nil {
		return err
	}
	return requireNonNegative("totalOrders", in.TotalOrders)
}

// SupplyPlanRow is the replenishment projection for one product.
type SupplyPlanRow struct {
	Key                         ProductKey `json:"key"`
	NmID                        string     `json:"nmId,omitempty"`
	Brand                       string     `json:"brand,omitempty"`
	Subject                     string     `json:"subject,omitempty"`
	InTransit                   float64    `json:"inTransit"`
	OnSale                      float64    `json:"onSale"`
	DailyOrderRate              float64    `json:"dailyOrderRate"`
	DaysOfStock                 float64    `json:"daysOfStock"`
	Infinite                    bool       `json:"infinite"`
	PlanWindowDays              int        `json:"planWindowDays"`
	RecommendedQuantity         float64    `json:"recommendedQuantity"`
	SeasonalityCoefficient      float64    `json:"seasonalityCoefficient"`
	SeasonalityAdjustedQuantity float64    `json:"seasonalityAdjustedQuantity"`
}

// PlanSupply projects stock coverage and the replenishment quantity for one product.
func PlanSupply(in SupplyInputs) (SupplyPlanRow, error) {
	if err := in.Validate(); err != nil {
		return SupplyPlanRow{}, err
	}
	return planSupply(in), nil
}

func planSupply(in SupplyInputs) SupplyPlanRow {
	row := SupplyPlanRow{
		Key:                    in.Key,
		InTransit:              in.InTransit,
		OnSale:                 in.CurrentStock,
		PlanWindowDays:         in.PlanWindowDays,
		SeasonalityCoefficient: in.SeasonalityCoefficient,
	}

	// 1. Average daily orders over the history window
	if in.HistoryDays > 0 {
		row.DailyOrderRate = in.TotalOrders / float64(in.HistoryDays)
	}

	// 2. Days the current stock lasts at that rate
	if row.DailyOrderRate > 0 {
		row.DaysOfStock = in.CurrentStock / row.DailyOrderRate
	} else {
		row.DaysOfStock = InfiniteDays
		row.Infinite = true
	}

	// 3. Quantity needed to cover the plan window
	row.RecommendedQuantity = math.Max(0, row.DailyOrderRate*float64(in.PlanWindowDays)-in.CurrentStock)

	// 4. Seasonal adjustment
	row.SeasonalityAdjustedQuantity = row.RecommendedQuantity * in.SeasonalityCoefficient
	return row
}

// SupplyConfig parameterizes planning over aggregated reports.
type SupplyConfig struct {
	HistoryDays    int     `json:"historyDays" mapstructure:"history_days"`
	PlanWindowDays int     `json:"planWindowDays" mapstructure:"plan_window_days"`
	Seasonality    float64 `json:"seasonality" mapstructure:"seasonality"`

	// SubjectSeasonality overrides Seasonality per subject.
	SubjectSeasonality map[string]float64 `json:"subjectSeasonality,omitempty" mapstructure:"subject_seasonality"`
}

// DefaultSupplyConfig plans 30 days ahead from 30 days of history.
func DefaultSupplyConfig() SupplyConfig {
	return SupplyConfig{HistoryDays: 30, PlanWindowDays: 30, Seasonality: 1}
}

// Validate rejects negative windows and coefficients.
func (c SupplyConfig) Validate() error {
	if c.HistoryDays < 0 {
		return configErrorf("historyDays", "must not be negative, got %d", c.HistoryDays)
	}
	if c.PlanWindowDays < 0 {
		return configErrorf("planWindowDays", "must not be negative, got %d", c.PlanWindowDays)
	}
	if err := requireNonNegative("seasonality", c.Seasonality); err != nil {
		return err
	}
	for subject, coef := range c.SubjectSeasonality {
		if err := requireNonNegative("subjectSeasonality."+subject, coef); err != nil {
			return err
		}
	}
	return nil
}

func (c SupplyConfig) seasonalityFor(subject string) float64 {
	if coef, ok := c.SubjectSeasonality[subject]; ok {
		return coef
	}
	return c.Seasonality
}

// SupplySummary totals a supply plan.
type SupplySummary struct {
	TotalProducts    int     `json:"totalProducts"`
	TotalInTransit   float64 `json:"totalInTransit"`
	TotalOnSale      float64 `json:"totalOnSale"`
	TotalRecommended float64 `json:"totalRecommended"`
	TotalDemand      float64 `json:"totalDemand"`
	OutOfStockSoon   int     `json:"outOfStockSoon"`
}

// SupplyPlan is the plan for every product with stock or order history.
type SupplyPlan struct {
	Rows    []SupplyPlanRow `json:"rows"`
	Summary SupplySummary   `json:"summary"`
}

// PlanSupplyFromAggregates plans every product of an aggregation built from
// stock and order records. Rows are ordered most urgent first; products with
// no demand come last.
func PlanSupplyFromAggregates(products map[ProductKey]*AggregatedProduct, cfg SupplyConfig) (*SupplyPlan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plan := &SupplyPlan{Rows: make([]SupplyPlanRow, 0, len(products))}
	for _, p := range SortedProducts(products) {
		row := planSupply(SupplyInputs{
			Key:                    p.Key,
			CurrentStock:           math.Max(p.StockQuantity, 0),
			InTransit:              math.Max(p.InWayToClient+p.InWayFromClient, 0),
			TotalOrders:            math.Max(p.Quantity, 0),
			HistoryDays:            cfg.HistoryDays,
			PlanWindowDays:         cfg.PlanWindowDays,
			SeasonalityCoefficient: cfg.seasonalityFor(p.Subject),
		})
		row.NmID, row.Brand, row.Subject = p.NmID, p.Brand, p.Subject
		plan.Rows = append(plan.Rows, row)

		plan.Summary.TotalInTransit += row.InTransit
		plan.Summary.TotalOnSale += row.OnSale
		plan.Summary.TotalRecommended += row.RecommendedQuantity
		plan.Summary.TotalDemand += row.SeasonalityAdjustedQuantity
		if !row.Infinite && row.DaysOfStock < float64(cfg.PlanWindowDays) {
			plan.Summary.OutOfStockSoon++
		}
	}
	plan.Summary.TotalProducts = len(plan.Rows)

	sort.SliceStable(plan.Rows, func(i, j int) bool {
		a, b := plan.Rows[i], plan.Rows[j]
		if a.Infinite != b.Infinite {
			return !a.Infinite
		}
		if a.DaysOfStock != b.DaysOfStock {
			return a.DaysOfStock < b.DaysOfStock
		}
		return a.Key < b.Key
	})
	return plan, nil
}

// RowFor returns the plan row of key.
func (p *SupplyPlan) RowFor(key ProductKey) (SupplyPlanRow, bool) {
	for _, row := range p.Rows {
		if row.Key == key {
			return row, true
		}
	}
	return SupplyPlanRow{}, false
}

// Rounded returns a copy with quantities and rates rounded for output.
func (p *SupplyPlan) Rounded() *SupplyPlan {
	out := &SupplyPlan{Rows: make([]SupplyPlanRow, len(p.Rows))}
	for i, r := range p.Rows {
		r.DailyOrderRate = Round2(r.DailyOrderRate)
		if !r.Infinite {
			r.DaysOfStock = Round2(r.DaysOfStock)
		}
		r.RecommendedQuantity = Round2(r.RecommendedQuantity)
		r.SeasonalityAdjustedQuantity = Round2(r.SeasonalityAdjustedQuantity)
		out.Rows[i] = r
	}
	out.Summary = p.Summary
	out.Summary.TotalRecommended = Round2(p.Summary.TotalRecommended)
	out.Summary.TotalDemand = Round2(p.Summary.TotalDemand)
	return out
}
