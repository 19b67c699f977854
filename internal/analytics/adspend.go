package analytics

import (
	"sort"
	"time"
)

// AdSpendRecord is one advertising charge.
type AdSpendRecord struct {
	CampaignID string
	Name       string
	Amount     float64
	Date       time.Time
	HasDate    bool
}

// NormalizeAdSpend extracts a charge from a raw advertising expense record.
func NormalizeAdSpend(raw any) (AdSpendRecord, error) {
	rec, ok := asRecord(raw)
	if !ok {
		return AdSpendRecord{}, ErrMalformedRecord
	}
	r := AdSpendRecord{
		CampaignID: rec.String("advertId", "advertID", "campaignId"),
		Name:       rec.String("campName", "name"),
		Amount:     rec.Float("updSum", "sum", "amount"),
	}
	if r.CampaignID == "" {
		r.CampaignID = "unknown"
	}
	r.Date, r.HasDate = rec.Time("updTime", "date")
	return r, nil
}

// NormalizeAdSpendBatch normalizes a report, counting malformed items.
func NormalizeAdSpendBatch(report RawReport) ([]AdSpendRecord, int) {
	out := make([]AdSpendRecord, 0, len(report))
	malformed := 0
	for _, raw := range report {
		r, err := NormalizeAdSpend(raw)
		if err != nil {
			malformed++
			continue
		}
		out = append(out, r)
	}
	return out, malformed
}

// CampaignSpend is one row of the ad-spend table.
type CampaignSpend struct {
	CampaignID string    `json:"campaignId"`
	Name       string    `json:"name"`
	Weekly     []float64 `json:"weekly"`
	Total      float64   `json:"total"`
}

// AdSpendSummary totals the table.
type AdSpendSummary struct {
	TotalCampaigns int     `json:"totalCampaigns"`
	TotalSpent     float64 `json:"totalSpent"`
	AvgWeeklySpent float64 `json:"avgWeeklySpent"`
	MaxSpent       float64 `json:"maxSpent"`
}

// AdSpendTable has one column per week bucket and one row per campaign.
type AdSpendTable struct {
	Weeks     []Window        `json:"weeks"`
	Campaigns []CampaignSpend `json:"campaigns"`
	Summary   AdSpendSummary  `json:"summary"`
}

// BuildAdSpendTable spreads charges over week columns. Campaigns are ordered by
// descending total spend. Average weekly spend is the mean campaign total per week.
func BuildAdSpendTable(records []AdSpendRecord, window Window, weekSizeDays int) (*AdSpendTable, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if weekSizeDays <= 0 {
		return nil, configErrorf("weekSizeDays", "must be positive, got %d", weekSizeDays)
	}

	weeks := window.Split(weekSizeDays)
	byCampaign := map[string]*CampaignSpend{}
	for _, r := range records {
		if !r.HasDate {
			continue
		}
		i := bucketIndex(weeks, r.Date)
		if i < 0 {
			continue
		}
		c, ok := byCampaign[r.CampaignID]
		if !ok {
			c = &CampaignSpend{CampaignID: r.CampaignID, Weekly: make([]float64, len(weeks))}
			byCampaign[r.CampaignID] = c
		}
		if c.Name == "" {
			c.Name = r.Name
		}
		c.Weekly[i] += r.Amount
		c.Total += r.Amount
	}

	table := &AdSpendTable{Weeks: weeks, Campaigns: make([]CampaignSpend, 0, len(byCampaign))}
	for _, c := range byCampaign {
		table.Campaigns = append(table.Campaigns, *c)
		table.Summary.TotalSpent += c.Total
		if c.Total > table.Summary.MaxSpent {
			table.Summary.MaxSpent = c.Total
		}
	}
	sort.Slice(table.Campaigns, func(i, j int) bool {
		a, b := table.Campaigns[i], table.Campaigns[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.CampaignID < b.CampaignID
	})

	table.Summary.TotalCampaigns = len(table.Campaigns)
	avgCampaign := safeDiv(table.Summary.TotalSpent, float64(len(table.Campaigns)))
	table.Summary.AvgWeeklySpent = safeDiv(avgCampaign, float64(len(weeks)))
	return table, nil
}

// Rounded returns a copy with amounts rounded for output.
func (t *AdSpendTable) Rounded() *AdSpendTable {
	out := &AdSpendTable{Weeks: t.Weeks, Campaigns: make([]CampaignSpend, len(t.Campaigns))}
	for i, c := range t.Campaigns {
		weekly := make([]float64, len(c.Weekly))
		for j, v := range c.Weekly {
			weekly[j] = Round2(v)
		}
		c.Weekly = weekly
		c.Total = Round2(c.Total)
		out.Campaigns[i] = c
	}
	out.Summary = AdSpendSummary{
		TotalCampaigns: t.Summary.TotalCampaigns,
		TotalSpent:     Round2(t.Summary.TotalSpent),
		AvgWeeklySpent: Round2(t.Summary.AvgWeeklySpent),
		MaxSpent:       Round2(t.Summary.MaxSpent),
	}
	return out
}
