package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func TestWindowSplit(t *testing.T) {
	t.Run("whole weeks", func(t *testing.T) {
		for n := 1; n <= 6; n++ {
			w := Window{Start: day(0), End: day(7 * n)}
			buckets := w.Split(7)
			require.Len(t, buckets, n)
			assert.Equal(t, w.Start, buckets[0].Start)
			assert.Equal(t, w.End, buckets[n-1].End)
			for i := 1; i < n; i++ {
				assert.Equal(t, buckets[i-1].End, buckets[i].Start, "no gaps or overlaps")
				assert.Equal(t, 7*24*time.Hour, buckets[i].End.Sub(buckets[i].Start))
			}
		}
	})

	t.Run("short last bucket", func(t *testing.T) {
		buckets := Window{Start: day(0), End: day(10)}.Split(7)
		require.Len(t, buckets, 2)
		assert.Equal(t, day(7), buckets[1].Start)
		assert.Equal(t, day(10), buckets[1].End)
	})

	t.Run("empty window", func(t *testing.T) {
		assert.Empty(t, Window{Start: day(3), End: day(3)}.Split(7))
		assert.Empty(t, Window{Start: day(0), End: day(7)}.Split(0))
	})

	t.Run("days rounds up", func(t *testing.T) {
		assert.Equal(t, 10, Window{Start: day(0), End: day(10)}.Days())
		assert.Equal(t, 1, Window{Start: day(0), End: day(0).Add(time.Hour)}.Days())
	})
}

func salesRecords(t *testing.T) []NormalizedRecord {
	return normalizeAll(t, KindSale,
		Record{"supplierArticle": "A", "saleID": "S1", "finishedPrice": 1000.0, "forPay": 800.0, "date": "2024-06-03T09:00:00"},
		Record{"supplierArticle": "A", "saleID": "S2", "finishedPrice": 1000.0, "date": "2024-06-05T09:00:00"},
		Record{"supplierArticle": "B", "saleID": "S3", "finishedPrice": 500.0, "forPay": 400.0, "date": "2024-06-11T12:00:00"},
		Record{"supplierArticle": "B", "saleID": "R4", "finishedPrice": -500.0, "forPay": -400.0, "date": "2024-06-12T12:00:00"},
		Record{"supplierArticle": "A", "saleID": "S5", "finishedPrice": 1000.0, "date": "2024-07-30T09:00:00"},
		Record{"supplierArticle": "A", "saleID": "S6", "finishedPrice": 1000.0},
	)
}

func TestRollup(t *testing.T) {
	cfg := DefaultWeeklyConfig()
	cfg.CostPerUnit = 300

	report, err := Rollup(salesRecords(t), Window{Start: day(0), End: day(14)}, cfg)
	require.NoError(t, err)
	require.Len(t, report.Lines, 2)

	w1 := report.Lines[0]
	assert.Equal(t, 1, w1.Week)
	assert.Equal(t, 2.0, w1.BuyoutQuantity)
	assert.Equal(t, 2000.0, w1.GrossSales)
	assert.InDelta(t, 800+850, w1.PaymentForGoods, 1e-9, "real payout where present, ratio otherwise")
	assert.InDelta(t, 240, w1.Logistics, 1e-9)
	assert.InDelta(t, 50, w1.Storage, 1e-9)
	assert.InDelta(t, 30, w1.Acceptance, 1e-9)
	assert.InDelta(t, 240, w1.Advertising, 1e-9)
	assert.InDelta(t, 1650-240-50-30-240, w1.Payout, 1e-9)
	assert.InDelta(t, 1090*0.07, w1.Tax, 1e-9)
	assert.InDelta(t, 60, w1.OtherExpenses, 1e-9)
	assert.InDelta(t, 600, w1.CostOfGoodsSold, 1e-9)
	assert.InDelta(t, w1.Payout-w1.Tax-w1.OtherExpenses-w1.CostOfGoodsSold, w1.NetProfit, 1e-9)
	assert.True(t, w1.Estimated)

	w2 := report.Lines[1]
	assert.Zero(t, w2.BuyoutQuantity, "return cancels the sale")
	assert.Zero(t, w2.GrossSales)
	assert.Zero(t, w2.Tax)
	assert.InDelta(t, 0, w2.NetProfit, 1e-9)

	assert.Equal(t, 2, report.Summary.TotalWeeks)
	assert.InDelta(t, w1.NetProfit+w2.NetProfit, report.Summary.TotalNetProfit, 1e-9)
	assert.InDelta(t, (w1.NetProfit+w2.NetProfit)/2, report.Summary.AvgWeeklyProfit, 1e-9)
}

func TestRollupCompleteness(t *testing.T) {
	for n := 1; n <= 5; n++ {
		report, err := Rollup(nil, Window{Start: day(0), End: day(7 * n)}, DefaultWeeklyConfig())
		require.NoError(t, err)
		require.Len(t, report.Lines, n)
		for i, l := range report.Lines {
			assert.Equal(t, i+1, l.Week)
			assert.Equal(t, day(7*i), l.PeriodStart)
			assert.Equal(t, day(7*(i+1)), l.PeriodEnd)
			assert.Zero(t, l.NetProfit)
			assert.False(t, l.Estimated)
		}
	}
}

func TestRollupUsesFinanceCosts(t *testing.T) {
	records := normalizeAll(t, KindFinance,
		Record{"sa_name": "A", "doc_type_name": "Продажа", "quantity": 2.0, "retail_amount": 3000.0, "ppvz_for_pay": 2500.0, "sale_dt": "2024-06-04"},
		Record{"sa_name": "A", "supplier_oper_name": "Логистика", "delivery_rub": 180.0, "sale_dt": "2024-06-04"},
		Record{"sa_name": "A", "supplier_oper_name": "Хранение", "storage_fee": 12.0, "acceptance": 8.0, "penalty": 100.0, "deduction": 50.0, "sale_dt": "2024-06-05"},
	)
	cfg := DefaultWeeklyConfig()
	cfg.UnitCosts = map[ProductKey]float64{"A": 700}

	report, err := Rollup(records, Window{Start: day(0), End: day(7)}, cfg)
	require.NoError(t, err)
	require.Len(t, report.Lines, 1)

	l := report.Lines[0]
	assert.False(t, l.Estimated)
	assert.Equal(t, 3000.0, l.GrossSales)
	assert.Equal(t, 2500.0, l.PaymentForGoods)
	assert.Equal(t, 180.0, l.Logistics)
	assert.Equal(t, 12.0, l.Storage)
	assert.Equal(t, 8.0, l.Acceptance)
	assert.Equal(t, 100.0, l.Penalty)
	assert.Equal(t, 50.0, l.Advertising)
	assert.InDelta(t, 2500-180-12-8-100-50, l.Payout, 1e-9)
	assert.InDelta(t, 1400, l.CostOfGoodsSold, 1e-9)
}

func TestRollupByProduct(t *testing.T) {
	reports, err := RollupByProduct(salesRecords(t), Window{Start: day(0), End: day(14)}, DefaultWeeklyConfig())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, ProductKey("A"), reports[0].Lines[0].Key)
	assert.Equal(t, 2.0, reports[0].Lines[0].BuyoutQuantity)
	assert.Equal(t, ProductKey("B"), reports[1].Lines[1].Key)
	assert.Zero(t, reports[1].Lines[1].BuyoutQuantity)
}

func TestRollupValidation(t *testing.T) {
	_, err := Rollup(nil, Window{Start: day(7), End: day(0)}, DefaultWeeklyConfig())
	assert.True(t, IsConfigError(err))

	cfg := DefaultWeeklyConfig()
	cfg.WeekSizeDays = 0
	_, err = Rollup(nil, Window{Start: day(0), End: day(7)}, cfg)
	assert.True(t, IsConfigError(err))

	cfg = DefaultWeeklyConfig()
	cfg.AdSpendRatio = -0.1
	_, err = Rollup(nil, Window{Start: day(0), End: day(7)}, cfg)
	assert.True(t, IsConfigError(err))
}

func TestWeeklyReportRounded(t *testing.T) {
	report := &WeeklyReport{Lines: []WeeklyFinancialLine{{
		Payout: 100.004, Tax: 7.0003, OtherExpenses: 3.333, CostOfGoodsSold: 10,
	}}}
	report.Lines[0].recompute()

	out := report.Rounded()
	l := out.Lines[0]
	assert.Equal(t, 100.0, l.Payout)
	assert.Equal(t, 7.0, l.Tax)
	assert.Equal(t, 3.33, l.OtherExpenses)
	assert.Equal(t, 79.67, l.NetProfit)
}
