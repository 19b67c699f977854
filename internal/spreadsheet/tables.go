package spreadsheet

import (
	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
)

const dateLayout = "2006-01-02"

// ABCTable lays out a classification, one row per ranked product.
func ABCTable(r *analytics.AbcResult) Table {
	t := Table{
		Sheet: "ABC",
		Headers: []string{
			"Rank", "Article", "nmId", "Brand", "Subject", "Revenue", "Quantity", "Profit",
			"Revenue %", "Cumulative %", "Deviation", "Band", "Deviation band",
		},
	}
	if r == nil {
		return t
	}
	for _, row := range r.Rows {
		t.Rows = append(t.Rows, []any{
			row.Rank, string(row.Key), row.NmID, row.Brand, row.Subject,
			row.Revenue, row.Quantity, row.Profit,
			row.RevenuePercent, row.CumulativePercent, row.DeviationCoeff,
			string(row.Band), string(row.DeviationBand),
		})
	}
	return t
}

// ABCBandsTable lays out the per-band totals of a classification.
func ABCBandsTable(r *analytics.AbcResult) Table {
	t := Table{Sheet: "Bands", Headers: []string{"Band", "Products", "Revenue", "Revenue %"}}
	if r == nil {
		return t
	}
	for _, b := range r.Bands {
		t.Rows = append(t.Rows, []any{string(b.Band), b.Count, b.Revenue, b.RevenuePercent})
	}
	return t
}

// WeeklyTable lays out a weekly rollup followed by a totals row.
func WeeklyTable(r *analytics.WeeklyReport) Table {
	t := Table{
		Sheet: "Weekly",
		Headers: []string{
			"Week", "From", "To", "Buyouts", "Gross sales", "Payment for goods",
			"Logistics", "Storage", "Acceptance", "Penalty", "Advertising",
			"Payout", "Tax", "Other expenses", "COGS", "Net profit", "Estimated",
		},
	}
	if r == nil {
		return t
	}
	for _, l := range r.Lines {
		t.Rows = append(t.Rows, []any{
			l.Week, l.PeriodStart.Format(dateLayout), l.PeriodEnd.Format(dateLayout),
			l.BuyoutQuantity, l.GrossSales, l.PaymentForGoods,
			l.Logistics, l.Storage, l.Acceptance, l.Penalty, l.Advertising,
			l.Payout, l.Tax, l.OtherExpenses, l.CostOfGoodsSold, l.NetProfit, l.Estimated,
		})
	}
	s := r.Summary
	t.Rows = append(t.Rows, []any{
		"Total", "", "", s.TotalQuantity, s.TotalSales, "",
		"", "", "", "", "",
		s.TotalPayout, "", "", "", s.TotalNetProfit, "",
	})
	return t
}

// SupplyTable lays out a supply plan, most urgent product first.
func SupplyTable(p *analytics.SupplyPlan) Table {
	t := Table{
		Sheet: "Supply",
		Headers: []string{
			"Article", "nmId", "Brand", "Subject", "In transit", "On sale",
			"Orders per day", "Days of stock", "Plan days", "Recommended",
			"Seasonality", "Adjusted recommended",
		},
	}
	if p == nil {
		return t
	}
	for _, r := range p.Rows {
		var days any = r.DaysOfStock
		if r.Infinite {
			days = "∞"
		}
		t.Rows = append(t.Rows, []any{
			string(r.Key), r.NmID, r.Brand, r.Subject, r.InTransit, r.OnSale,
			r.DailyOrderRate, days, r.PlanWindowDays, r.RecommendedQuantity,
			r.SeasonalityCoefficient, r.SeasonalityAdjustedQuantity,
		})
	}
	return t
}
