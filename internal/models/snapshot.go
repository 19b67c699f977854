package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Report names used for snapshots, cache keys and routes.
const (
	ReportFinance     = "finance"
	ReportABC         = "abc"
	ReportABCClusters = "abc_clusters"
	ReportWeekly      = "weekly"
	ReportSupply      = "supply"
	ReportAdSpend     = "ad_spend"
	ReportPromotions  = "promotions"
)

// ReportNames lists every report in computation order.
var ReportNames = []string{
	ReportFinance,
	ReportABC,
	ReportABCClusters,
	ReportWeekly,
	ReportSupply,
	ReportAdSpend,
	ReportPromotions,
}

// IsReportName reports whether name is a known report.
func IsReportName(name string) bool {
	for _, r := range ReportNames {
		if r == name {
			return true
		}
	}
	return false
}

// ReportSnapshot is a computed report persisted for history.
type ReportSnapshot struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_snapshot_seller_report" json:"seller_id"`
	Report    string         `gorm:"size:32;not null;index:idx_snapshot_seller_report" json:"report"`
	DateFrom  time.Time      `gorm:"not null" json:"date_from"`
	DateTo    time.Time      `gorm:"not null" json:"date_to"`
	Source    string         `gorm:"size:32" json:"source"`
	Payload   datatypes.JSON `json:"payload"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

// TableName overrides the table name.
func (ReportSnapshot) TableName() string {
	return "report_snapshots"
}

// BeforeCreate assigns an ID when none is set.
func (s *ReportSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
