package analytics

import (
	"math"
	"sort"
)

// Band is an ABC classification band.
type Band string

const (
	BandA Band = "A"
	BandB Band = "B"
	BandC Band = "C"
)

// Bands lists the bands in display order.
var Bands = []Band{BandA, BandB, BandC}

// Thresholds are the cumulative revenue percentages closing bands A and B.
type Thresholds struct {
	A float64 `json:"a" mapstructure:"a"`
	B float64 `json:"b" mapstructure:"b"`
}

// DefaultThresholds returns the classic 80/95 Pareto split.
func DefaultThresholds() Thresholds {
	return Thresholds{A: 80, B: 95}
}

// Validate checks 0 < A <= B <= 100.
func (t Thresholds) Validate() error {
	if t.A <= 0 || t.A > 100 {
		return configErrorf("thresholds.a", "must be in (0, 100], got %v", t.A)
	}
	if t.B <= 0 || t.B > 100 {
		return configErrorf("thresholds.b", "must be in (0, 100], got %v", t.B)
	}
	if t.A > t.B {
		return configErrorf("thresholds", "A (%v) must not exceed B (%v)", t.A, t.B)
	}
	return nil
}

// bandFor returns the first band whose threshold the cumulative percent falls at or below.
func (t Thresholds) bandFor(cumulative float64) Band {
	switch {
	case cumulative <= t.A:
		return BandA
	case cumulative <= t.B:
		return BandB
	default:
		return BandC
	}
}

// Deviation coefficient cut points used by the per-group classification.
const (
	deviationBandA = 1.5
	deviationBandB = 1.0
)

func deviationBand(coeff float64) Band {
	switch {
	case coeff > deviationBandA:
		return BandA
	case coeff >= deviationBandB:
		return BandB
	default:
		return BandC
	}
}

// AbcRow is one ranked product.
type AbcRow struct {
	Rank              int        `json:"rank"`
	Key               ProductKey `json:"key"`
	NmID              string     `json:"nmId,omitempty"`
	Brand             string     `json:"brand"`
	Subject           string     `json:"subject"`
	Revenue           float64    `json:"revenue"`
	Quantity          float64    `json:"quantity"`
	Profit            float64    `json:"profit"`
	RevenuePercent    float64    `json:"revenuePercent"`
	CumulativePercent float64    `json:"cumulativePercent"`
	DeviationCoeff    float64    `json:"deviationCoeff"`
	Band              Band       `json:"band"`
	DeviationBand     Band       `json:"deviationBand,omitempty"`
}

// BandTotal summarizes one band.
type BandTotal struct {
	Band           Band    `json:"band"`
	Count          int     `json:"count"`
	Revenue        float64 `json:"revenue"`
	RevenuePercent float64 `json:"revenuePercent"`
}

// AbcResult is the ranked classification plus per-band totals.
type AbcResult struct {
	Group        string      `json:"group,omitempty"`
	TotalRevenue float64     `json:"totalRevenue"`
	Rows         []AbcRow    `json:"rows"`
	Bands        []BandTotal `json:"bands"`
}

// Classify ranks products by revenue descending (ties by key), computes the
// cumulative revenue share and assigns bands. With zero total revenue every
// product is band C at 0%.
func Classify(products []*AggregatedProduct, thresholds Thresholds) (*AbcResult, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return classify(products, thresholds), nil
}

func classify(products []*AggregatedProduct, thresholds Thresholds) *AbcResult {
	ranked := make([]*AggregatedProduct, len(products))
	copy(ranked, products)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Revenue != ranked[j].Revenue {
			return ranked[i].Revenue > ranked[j].Revenue
		}
		return ranked[i].Key < ranked[j].Key
	})

	// negative net revenue (returns exceeding sales) carries no share
	var total float64
	for _, p := range ranked {
		total += math.Max(p.Revenue, 0)
	}
	mean := safeDiv(total, float64(len(ranked)))

	result := &AbcResult{
		TotalRevenue: total,
		Rows:         make([]AbcRow, 0, len(ranked)),
	}
	totals := map[Band]*BandTotal{}
	for _, b := range Bands {
		totals[b] = &BandTotal{Band: b}
	}

	var cumulative float64
	for i, p := range ranked {
		row := AbcRow{
			Rank:           i + 1,
			Key:            p.Key,
			NmID:           p.NmID,
			Brand:          p.Brand,
			Subject:        p.Subject,
			Revenue:        p.Revenue,
			Quantity:       p.Quantity,
			Profit:         p.Profit(),
			DeviationCoeff: safeDiv(p.Revenue, mean),
			Band:           BandC,
		}
		if total > 0 {
			share := math.Max(p.Revenue, 0)
			cumulative += share
			row.RevenuePercent = share / total * 100
			row.CumulativePercent = cumulative / total * 100
			row.Band = thresholds.bandFor(row.CumulativePercent)
		}
		result.Rows = append(result.Rows, row)

		bt := totals[row.Band]
		bt.Count++
		bt.Revenue += p.Revenue
	}

	for _, b := range Bands {
		bt := totals[b]
		bt.RevenuePercent = safeDiv(math.Max(bt.Revenue, 0), total) * 100
		result.Bands = append(result.Bands, *bt)
	}
	return result
}

// UncategorizedGroup is the group name for products without a subject.
const UncategorizedGroup = "uncategorized"

// ClassifyByGroup runs the classification independently within each subject
// group. Rows additionally carry a band derived from the deviation of their
// revenue against the group mean. Groups are returned by descending revenue.
func ClassifyByGroup(products []*AggregatedProduct, thresholds Thresholds) ([]*AbcResult, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	groups := map[string][]*AggregatedProduct{}
	for _, p := range products {
		g := p.Subject
		if g == "" {
			g = UncategorizedGroup
		}
		groups[g] = append(groups[g], p)
	}

	out := make([]*AbcResult, 0, len(groups))
	for name, members := range groups {
		res := classify(members, thresholds)
		res.Group = name
		for i := range res.Rows {
			res.Rows[i].DeviationBand = deviationBand(res.Rows[i].DeviationCoeff)
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalRevenue != out[j].TotalRevenue {
			return out[i].TotalRevenue > out[j].TotalRevenue
		}
		return out[i].Group < out[j].Group
	})
	return out, nil
}

// Rounded returns a copy with monetary and percentage values rounded for output.
func (r *AbcResult) Rounded() *AbcResult {
	out := &AbcResult{
		Group:        r.Group,
		TotalRevenue: Round2(r.TotalRevenue),
		Rows:         make([]AbcRow, len(r.Rows)),
		Bands:        make([]BandTotal, len(r.Bands)),
	}
	for i, row := range r.Rows {
		row.Revenue = Round2(row.Revenue)
		row.Quantity = Round2(row.Quantity)
		row.Profit = Round2(row.Profit)
		row.RevenuePercent = Round2(row.RevenuePercent)
		row.CumulativePercent = Round2(row.CumulativePercent)
		row.DeviationCoeff = Round2(row.DeviationCoeff)
		out.Rows[i] = row
	}
	for i, b := range r.Bands {
		b.Revenue = Round2(b.Revenue)
		b.RevenuePercent = Round2(b.RevenuePercent)
		out.Bands[i] = b
	}
	return out
}

// BandOf returns the band assigned to key, if ranked.
func (r *AbcResult) BandOf(key ProductKey) (Band, bool) {
	for _, row := range r.Rows {
		if row.Key == key {
			return row.Band, true
		}
	}
	return "", false
}
