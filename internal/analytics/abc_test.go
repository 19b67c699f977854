package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func products(revenues map[ProductKey]float64) []*AggregatedProduct {
	out := make([]*AggregatedProduct, 0, len(revenues))
	for k, r := range revenues {
		out = append(out, &AggregatedProduct{Key: k, Revenue: r})
	}
	return out
}

func TestClassify(t *testing.T) {
	t.Run("pareto bands", func(t *testing.T) {
		res, err := Classify(products(map[ProductKey]float64{"p3": 200, "p1": 1000, "p2": 300}), DefaultThresholds())
		require.NoError(t, err)
		require.Len(t, res.Rows, 3)
		assert.Equal(t, 1500.0, res.TotalRevenue)

		assert.Equal(t, ProductKey("p1"), res.Rows[0].Key)
		assert.Equal(t, BandA, res.Rows[0].Band)
		assert.InDelta(t, 66.67, res.Rows[0].CumulativePercent, 0.01)

		assert.Equal(t, ProductKey("p2"), res.Rows[1].Key)
		assert.Equal(t, BandB, res.Rows[1].Band)
		assert.InDelta(t, 86.67, res.Rows[1].CumulativePercent, 0.01)

		assert.Equal(t, ProductKey("p3"), res.Rows[2].Key)
		assert.Equal(t, BandC, res.Rows[2].Band)
		assert.Equal(t, 100.0, res.Rows[2].CumulativePercent)

		rounded := res.Rounded()
		assert.Equal(t, 66.67, rounded.Rows[0].CumulativePercent)
		assert.Equal(t, 86.67, rounded.Rows[1].CumulativePercent)
		assert.Equal(t, 13.33, rounded.Rows[2].RevenuePercent)
	})

	t.Run("band totals", func(t *testing.T) {
		res, err := Classify(products(map[ProductKey]float64{"p1": 1000, "p2": 300, "p3": 200}), DefaultThresholds())
		require.NoError(t, err)
		require.Len(t, res.Bands, 3)
		for i, b := range Bands {
			assert.Equal(t, b, res.Bands[i].Band)
			assert.Equal(t, 1, res.Bands[i].Count)
		}
		assert.Equal(t, 1000.0, res.Bands[0].Revenue)
		assert.InDelta(t, 66.667, res.Bands[0].RevenuePercent, 0.001)

		var pct float64
		for _, b := range res.Bands {
			pct += b.RevenuePercent
		}
		assert.InDelta(t, 100, pct, 1e-9)
	})

	t.Run("ties are broken by key", func(t *testing.T) {
		res, err := Classify(products(map[ProductKey]float64{"b": 100, "c": 100, "a": 100}), DefaultThresholds())
		require.NoError(t, err)
		assert.Equal(t, ProductKey("a"), res.Rows[0].Key)
		assert.Equal(t, ProductKey("b"), res.Rows[1].Key)
		assert.Equal(t, ProductKey("c"), res.Rows[2].Key)
		for i, row := range res.Rows {
			assert.Equal(t, i+1, row.Rank)
		}
	})

	t.Run("cumulative percent is monotonic and ends at 100", func(t *testing.T) {
		revenues := map[ProductKey]float64{}
		for i, r := range []float64{13.7, 999.1, 0.3, 45, 45, 250.25, 1, 77.7, 3000, 12} {
			revenues[ProductKey(rune('a'+i))] = r
		}
		res, err := Classify(products(revenues), DefaultThresholds())
		require.NoError(t, err)

		prevCum, prevRev := 0.0, res.Rows[0].Revenue
		for _, row := range res.Rows {
			assert.GreaterOrEqual(t, row.CumulativePercent, prevCum)
			assert.LessOrEqual(t, row.Revenue, prevRev)
			prevCum, prevRev = row.CumulativePercent, row.Revenue
		}
		assert.InDelta(t, 100, res.Rows[len(res.Rows)-1].CumulativePercent, 1e-9)
	})

	t.Run("zero revenue puts everything in C", func(t *testing.T) {
		res, err := Classify(products(map[ProductKey]float64{"a": 0, "b": 0}), DefaultThresholds())
		require.NoError(t, err)
		for _, row := range res.Rows {
			assert.Equal(t, BandC, row.Band)
			assert.Zero(t, row.CumulativePercent)
			assert.Zero(t, row.RevenuePercent)
			assert.Zero(t, row.DeviationCoeff)
		}
		assert.Equal(t, 2, res.Bands[2].Count)
		assert.Zero(t, res.Bands[2].RevenuePercent)
	})

	t.Run("negative revenue carries no share", func(t *testing.T) {
		res, err := Classify(products(map[ProductKey]float64{"a": 100, "b": -50}), DefaultThresholds())
		require.NoError(t, err)
		assert.Equal(t, 100.0, res.Rows[0].CumulativePercent)
		assert.Equal(t, 100.0, res.Rows[1].CumulativePercent)
		assert.Equal(t, BandC, res.Rows[1].Band)
	})

	t.Run("empty input", func(t *testing.T) {
		res, err := Classify(nil, DefaultThresholds())
		require.NoError(t, err)
		assert.Empty(t, res.Rows)
		assert.Len(t, res.Bands, 3)
	})

	t.Run("custom thresholds", func(t *testing.T) {
		res, err := Classify(products(map[ProductKey]float64{"p1": 1000, "p2": 300, "p3": 200}), Thresholds{A: 50, B: 90})
		require.NoError(t, err)
		assert.Equal(t, BandB, res.Rows[0].Band)
		assert.Equal(t, BandB, res.Rows[1].Band)
		assert.Equal(t, BandC, res.Rows[2].Band)
	})
}

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		name       string
		thresholds Thresholds
		wantErr    bool
	}{
		{"default", DefaultThresholds(), false},
		{"equal", Thresholds{A: 90, B: 90}, false},
		{"a above b", Thresholds{A: 96, B: 95}, true},
		{"zero a", Thresholds{A: 0, B: 95}, true},
		{"negative b", Thresholds{A: 10, B: -1}, true},
		{"above hundred", Thresholds{A: 80, B: 101}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.thresholds.Validate()
			if tt.wantErr {
				assert.True(t, IsConfigError(err))
				return
			}
			assert.NoError(t, err)
		})
	}

	_, err := Classify(nil, Thresholds{A: 96, B: 95})
	assert.True(t, IsConfigError(err))
}

func TestClassifyByGroup(t *testing.T) {
	items := []*AggregatedProduct{
		{Key: "d1", Subject: "Dresses", Revenue: 900},
		{Key: "d2", Subject: "Dresses", Revenue: 300},
		{Key: "d3", Subject: "Dresses", Revenue: 0},
		{Key: "s1", Subject: "Shirts", Revenue: 100},
		{Key: "x", Revenue: 50},
	}
	groups, err := ClassifyByGroup(items, DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, groups, 3)

	dresses := groups[0]
	assert.Equal(t, "Dresses", dresses.Group)
	assert.Equal(t, 1200.0, dresses.TotalRevenue)
	require.Len(t, dresses.Rows, 3)
	// mean 400: 900/400 = 2.25, 300/400 = 0.75
	assert.Equal(t, BandA, dresses.Rows[0].DeviationBand)
	assert.InDelta(t, 2.25, dresses.Rows[0].DeviationCoeff, 1e-9)
	assert.Equal(t, BandC, dresses.Rows[1].DeviationBand)
	assert.Equal(t, BandC, dresses.Rows[2].DeviationBand)
	assert.Equal(t, 75.0, dresses.Rows[0].CumulativePercent)

	assert.Equal(t, "Shirts", groups[1].Group)
	assert.Equal(t, BandB, groups[1].Rows[0].DeviationBand, "single product sits at the mean")
	assert.Equal(t, UncategorizedGroup, groups[2].Group)
}

func TestAbcResultBandOf(t *testing.T) {
	res, err := Classify(products(map[ProductKey]float64{"p1": 1000, "p2": 300}), DefaultThresholds())
	require.NoError(t, err)

	band, ok := res.BandOf("p1")
	assert.True(t, ok)
	assert.Equal(t, BandA, band)

	band, ok = res.BandOf("p2")
	assert.True(t, ok)
	assert.Equal(t, BandC, band)

	_, ok = res.BandOf("missing")
	assert.False(t, ok)
}
