package analytics

// Promotion subgroups.
const (
	SubgroupPrepare   = "F"
	SubgroupLiquidate = "D"
)

// PromotionConfig controls how products are split between raising the price
// ahead of a marketplace promotion and selling off.
type PromotionConfig struct {
	PrepareMultiplier   float64 `json:"prepareMultiplier" mapstructure:"prepare_multiplier"`
	LiquidateMultiplier float64 `json:"liquidateMultiplier" mapstructure:"liquidate_multiplier"`
	MaxTurnoverDays     float64 `json:"maxTurnoverDays" mapstructure:"max_turnover_days"`
}

// DefaultPromotionConfig raises prices by 15% or cuts them by 15%.
func DefaultPromotionConfig() PromotionConfig {
	return PromotionConfig{PrepareMultiplier: 1.15, LiquidateMultiplier: 0.85, MaxTurnoverDays: 90}
}

// Validate requires positive multipliers and turnover limit.
func (c PromotionConfig) Validate() error {
	if c.PrepareMultiplier <= 0 {
		return configErrorf("prepareMultiplier", "must be positive, got %v", c.PrepareMultiplier)
	}
	if c.LiquidateMultiplier <= 0 {
		return configErrorf("liquidateMultiplier", "must be positive, got %v", c.LiquidateMultiplier)
	}
	if c.MaxTurnoverDays <= 0 {
		return configErrorf("maxTurnoverDays", "must be positive, got %v", c.MaxTurnoverDays)
	}
	return nil
}

// PromotionRow is the promotion decision for one product.
type PromotionRow struct {
	Key                  ProductKey `json:"key"`
	NmID                 string     `json:"nmId,omitempty"`
	Band                 Band       `json:"band"`
	Subgroup             string     `json:"subgroup"`
	CurrentPrice         float64    `json:"currentPrice"`
	PromotionPrice       float64    `json:"promotionPrice"`
	UnitGrossProfit      float64    `json:"unitGrossProfit"`
	PromotionGrossProfit float64    `json:"promotionGrossProfit"`
	TurnoverDays         float64    `json:"turnoverDays"`
	TurnoverKnown        bool       `json:"turnoverKnown"`
	Stock                float64    `json:"stock"`
}

// PromotionSummary totals the tracking table.
type PromotionSummary struct {
	TotalProducts       int     `json:"totalProducts"`
	PreparationProducts int     `json:"preparationProducts"`
	LiquidationProducts int     `json:"liquidationProducts"`
	AvgTurnover         float64 `json:"avgTurnover"`
}

// PromotionTable is the promotions tracking table.
type PromotionTable struct {
	Rows    []PromotionRow   `json:"rows"`
	Summary PromotionSummary `json:"summary"`
}

// BuildPromotions assigns each ranked product to a subgroup. Band A and B
// products that turn over within MaxTurnoverDays are prepared for a promotion
// (price raised); everything else is liquidated. Rows follow the ABC ranking.
// Without a supply plan row turnover is unknown and only the band decides;
// products with no demand never count as fast moving.
func BuildPromotions(abc *AbcResult, products map[ProductKey]*AggregatedProduct, supply *SupplyPlan, cfg PromotionConfig) (*PromotionTable, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	table := &PromotionTable{Rows: make([]PromotionRow, 0, len(abc.Rows))}
	var turnoverSum float64
	var turnoverCount int
	for _, ranked := range abc.Rows {
		p, ok := products[ranked.Key]
		if !ok {
			continue
		}
		row := PromotionRow{
			Key:             p.Key,
			NmID:            p.NmID,
			Band:            ranked.Band,
			CurrentPrice:    safeDiv(p.Retail, p.Quantity),
			UnitGrossProfit: safeDiv(p.Profit(), p.Quantity),
			Stock:           p.StockQuantity,
		}
		fastMoving := true
		if supply != nil {
			if plan, found := supply.RowFor(p.Key); found {
				row.TurnoverKnown = !plan.Infinite
				row.TurnoverDays = plan.DaysOfStock
				row.Stock = plan.OnSale
				fastMoving = !plan.Infinite && plan.DaysOfStock <= cfg.MaxTurnoverDays
			}
		}
		multiplier := cfg.LiquidateMultiplier
		row.Subgroup = SubgroupLiquidate
		if (row.Band == BandA || row.Band == BandB) && fastMoving {
			multiplier = cfg.PrepareMultiplier
			row.Subgroup = SubgroupPrepare
		}
		row.PromotionPrice = row.CurrentPrice * multiplier
		row.PromotionGrossProfit = row.UnitGrossProfit + (row.PromotionPrice - row.CurrentPrice)

		if row.Subgroup == SubgroupPrepare {
			table.Summary.PreparationProducts++
		} else {
			table.Summary.LiquidationProducts++
		}
		if row.TurnoverKnown {
			turnoverSum += row.TurnoverDays
			turnoverCount++
		}
		table.Rows = append(table.Rows, row)
	}
	table.Summary.TotalProducts = len(table.Rows)
	table.Summary.AvgTurnover = safeDiv(turnoverSum, float64(turnoverCount))
	return table, nil
}

// Rounded returns a copy with prices rounded for output.
func (t *PromotionTable) Rounded() *PromotionTable {
	out := &PromotionTable{Rows: make([]PromotionRow, len(t.Rows)), Summary: t.Summary}
	for i, r := range t.Rows {
		r.CurrentPrice = Round2(r.CurrentPrice)
		r.PromotionPrice = Round2(r.PromotionPrice)
		r.UnitGrossProfit = Round2(r.UnitGrossProfit)
		r.PromotionGrossProfit = Round2(r.PromotionGrossProfit)
		r.TurnoverDays = Round2(r.TurnoverDays)
		out.Rows[i] = r
	}
	out.Summary.AvgTurnover = Round2(t.Summary.AvgTurnover)
	return out
}
