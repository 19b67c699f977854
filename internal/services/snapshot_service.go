package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/niaga-platform/service-seller-analytics/internal/models"
	"github.com/niaga-platform/service-seller-analytics/internal/repository"
)

// SnapshotService persists computed reports for history.
type SnapshotService struct {
	repo   *repository.SnapshotRepository
	logger *zap.Logger
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(repo *repository.SnapshotRepository, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{repo: repo, logger: logger}
}

// SaveReportSet stores one snapshot per report of the set in a single transaction.
func (s *SnapshotService) SaveReportSet(ctx context.Context, set *ReportSet) ([]*models.ReportSnapshot, error) {
	payloads := set.Payloads()
	snapshots := make([]*models.ReportSnapshot, 0, len(payloads))

	for _, name := range models.ReportNames {
		data, err := json.Marshal(payloads[name])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s snapshot: %w", name, err)
		}
		snapshots = append(snapshots, &models.ReportSnapshot{
			SellerID: set.SellerID,
			Report:   name,
			DateFrom: set.Meta.DateFrom,
			DateTo:   set.Meta.DateTo,
			Source:   set.Meta.Source,
			Payload:  datatypes.JSON(data),
		})
	}

	if err := s.repo.CreateBatch(ctx, snapshots); err != nil {
		return nil, fmt.Errorf("failed to save snapshots: %w", err)
	}

	s.logger.Info("report snapshots saved",
		zap.String("seller_id", set.SellerID.String()),
		zap.Int("count", len(snapshots)),
	)
	return snapshots, nil
}

// List returns the newest snapshots of a seller, optionally of one report.
func (s *SnapshotService) List(ctx context.Context, sellerID uuid.UUID, report string, limit int) ([]models.ReportSnapshot, error) {
	return s.repo.List(ctx, sellerID, report, limit)
}

// Latest returns the newest snapshot of a report.
func (s *SnapshotService) Latest(ctx context.Context, sellerID uuid.UUID, report string) (*models.ReportSnapshot, error) {
	return s.repo.Latest(ctx, sellerID, report)
}

// Purge removes every snapshot of a seller.
func (s *SnapshotService) Purge(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	n, err := s.repo.DeleteBySeller(ctx, sellerID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("report snapshots purged", zap.String("seller_id", sellerID.String()), zap.Int64("count", n))
	return n, nil
}
