package analytics

import (
	"math"
	"sort"
)

// AggregatedProduct holds running totals for one product within a reporting window.
type AggregatedProduct struct {
	Key     ProductKey
	Brand   string
	Subject string
	NmID    string

	Revenue    float64
	Retail     float64
	Quantity   float64
	Commission float64
	Logistics  float64
	Storage    float64
	Acceptance float64
	Penalty    float64
	Bonus      float64

	Sales   int
	Orders  int
	Returns int

	StockQuantity   float64
	InWayToClient   float64
	InWayFromClient float64
}

// TotalCosts is commission plus logistics plus penalty.
func (p *AggregatedProduct) TotalCosts() float64 {
	return p.Commission + p.Logistics + p.Penalty
}

// Profit is always derived from the component totals.
func (p *AggregatedProduct) Profit() float64 {
	return p.Revenue - p.TotalCosts() + p.Bonus
}

// add folds one normalized record into the totals. Display fields keep the
// first non-empty value seen.
func (p *AggregatedProduct) add(f NormalizedFields) {
	if p.Brand == "" {
		p.Brand = f.Brand
	}
	if p.Subject == "" {
		p.Subject = f.Subject
	}
	if p.NmID == "" {
		p.NmID = f.NmID
	}

	revenue, retail, quantity := f.Revenue, f.Retail, f.Quantity
	switch f.Class {
	case ClassSale:
		p.Sales++
	case ClassOrder:
		p.Orders++
	case ClassReturn:
		p.Returns++
		// returns arrive with either sign depending on the report
		revenue, retail, quantity = -math.Abs(revenue), -math.Abs(retail), -math.Abs(quantity)
	}

	p.Revenue += revenue
	p.Retail += retail
	if f.Kind != KindStock {
		p.Quantity += quantity
	}
	p.Commission += f.Commission
	p.Logistics += f.Logistics
	p.Storage += f.Storage
	p.Acceptance += f.Acceptance
	p.Penalty += f.Penalty
	p.Bonus += f.Bonus

	p.StockQuantity += f.StockQuantity
	p.InWayToClient += f.InWayToClient
	p.InWayFromClient += f.InWayFromClient
}

// Aggregate folds normalized records into per-product totals. Totals do not
// depend on record order; display fields take the first non-empty value in
// arrival order.
func Aggregate(records []NormalizedRecord) map[ProductKey]*AggregatedProduct {
	products := make(map[ProductKey]*AggregatedProduct)
	for _, r := range records {
		p, ok := products[r.Key]
		if !ok {
			p = &AggregatedProduct{Key: r.Key}
			products[r.Key] = p
		}
		p.add(r.Fields)
	}
	return products
}

// Merge folds the totals of other into dst, used to combine per-partition aggregates.
func Merge(dst, other map[ProductKey]*AggregatedProduct) {
	for key, o := range other {
		p, ok := dst[key]
		if !ok {
			cp := *o
			dst[key] = &cp
			continue
		}
		if p.Brand == "" {
			p.Brand = o.Brand
		}
		if p.Subject == "" {
			p.Subject = o.Subject
		}
		if p.NmID == "" {
			p.NmID = o.NmID
		}
		p.Revenue += o.Revenue
		p.Retail += o.Retail
		p.Quantity += o.Quantity
		p.Commission += o.Commission
		p.Logistics += o.Logistics
		p.Storage += o.Storage
		p.Acceptance += o.Acceptance
		p.Penalty += o.Penalty
		p.Bonus += o.Bonus
		p.Sales += o.Sales
		p.Orders += o.Orders
		p.Returns += o.Returns
		p.StockQuantity += o.StockQuantity
		p.InWayToClient += o.InWayToClient
		p.InWayFromClient += o.InWayFromClient
	}
}

// SortedProducts returns the aggregated products ordered by key.
func SortedProducts(products map[ProductKey]*AggregatedProduct) []*AggregatedProduct {
	out := make([]*AggregatedProduct, 0, len(products))
	for _, p := range products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ProductSummary is the output shape of an aggregated product.
type ProductSummary struct {
	Key        ProductKey `json:"key"`
	NmID       string     `json:"nmId,omitempty"`
	Brand      string     `json:"brand"`
	Subject    string     `json:"subject"`
	Revenue    float64    `json:"revenue"`
	Quantity   float64    `json:"quantity"`
	Commission float64    `json:"commission"`
	Logistics  float64    `json:"logistics"`
	Penalty    float64    `json:"penalty"`
	Bonus      float64    `json:"bonus"`
	Profit     float64    `json:"profit"`
	Sales      int        `json:"sales"`
	Orders     int        `json:"orders"`
	Returns    int        `json:"returns"`
}

// Summary converts the totals into a rounded output row.
func (p *AggregatedProduct) Summary() ProductSummary {
	return ProductSummary{
		Key:        p.Key,
		NmID:       p.NmID,
		Brand:      p.Brand,
		Subject:    p.Subject,
		Revenue:    Round2(p.Revenue),
		Quantity:   Round2(p.Quantity),
		Commission: Round2(p.Commission),
		Logistics:  Round2(p.Logistics),
		Penalty:    Round2(p.Penalty),
		Bonus:      Round2(p.Bonus),
		Profit:     Round2(p.Profit()),
		Sales:      p.Sales,
		Orders:     p.Orders,
		Returns:    p.Returns,
	}
}
