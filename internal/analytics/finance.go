package analytics

import "sort"

// FinanceSummary is the seller-level financial overview of a reporting window.
type FinanceSummary struct {
	TotalRevenue      float64 `json:"totalRevenue"`
	TotalCommission   float64 `json:"totalCommission"`
	TotalLogistics    float64 `json:"totalLogistics"`
	TotalPenalty      float64 `json:"totalPenalty"`
	TotalBonus        float64 `json:"totalBonus"`
	NetProfit         float64 `json:"netProfit"`
	ProfitMargin      float64 `json:"profitMargin"`
	AverageOrderValue float64 `json:"averageOrderValue"`
	ReturnRate        float64 `json:"returnRate"`
	TotalQuantity     float64 `json:"totalQuantity"`
	TotalSales        int     `json:"totalSales"`
	TotalOrders       int     `json:"totalOrders"`
	TotalReturns      int     `json:"totalReturns"`
	ProductCount      int     `json:"productCount"`
	MalformedRecords  int     `json:"malformedRecords"`
	Source            string  `json:"source"`
}

// FinanceReport is the summary together with the per-product rows.
type FinanceReport struct {
	Summary  FinanceSummary   `json:"summary"`
	Products []ProductSummary `json:"products"`
}

// Summarize totals aggregated products into the seller overview. Average order
// value divides by orders, or by sales when the source carries no order lines.
func Summarize(products map[ProductKey]*AggregatedProduct) FinanceSummary {
	var s FinanceSummary
	for _, p := range products {
		s.TotalRevenue += p.Revenue
		s.TotalCommission += p.Commission
		s.TotalLogistics += p.Logistics
		s.TotalPenalty += p.Penalty
		s.TotalBonus += p.Bonus
		s.NetProfit += p.Profit()
		s.TotalQuantity += p.Quantity
		s.TotalSales += p.Sales
		s.TotalOrders += p.Orders
		s.TotalReturns += p.Returns
	}
	s.ProductCount = len(products)

	s.ProfitMargin = safeDiv(s.NetProfit, s.TotalRevenue) * 100
	orders := s.TotalOrders
	if orders == 0 {
		orders = s.TotalSales
	}
	s.AverageOrderValue = safeDiv(s.TotalRevenue, float64(orders))
	s.ReturnRate = safeDiv(float64(s.TotalReturns), float64(s.TotalOrders+s.TotalSales)) * 100
	return s
}

// BuildFinanceReport summarizes products and lists them by descending revenue,
// rounded for output.
func BuildFinanceReport(products map[ProductKey]*AggregatedProduct) *FinanceReport {
	report := &FinanceReport{
		Summary:  Summarize(products).Rounded(),
		Products: make([]ProductSummary, 0, len(products)),
	}
	rows := SortedProducts(products)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Revenue > rows[j].Revenue })
	for _, p := range rows {
		report.Products = append(report.Products, p.Summary())
	}
	return report
}

// Rounded returns a copy with amounts and ratios rounded for output.
func (s FinanceSummary) Rounded() FinanceSummary {
	out := s
	for _, v := range []*float64{
		&out.TotalRevenue, &out.TotalCommission, &out.TotalLogistics, &out.TotalPenalty,
		&out.TotalBonus, &out.NetProfit, &out.ProfitMargin, &out.AverageOrderValue,
		&out.ReturnRate, &out.TotalQuantity,
	} {
		*v = Round2(*v)
	}
	return out
}
