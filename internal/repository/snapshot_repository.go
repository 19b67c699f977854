package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/niaga-platform/service-seller-analytics/internal/models"
)

// DefaultSnapshotLimit caps snapshot listings.
const DefaultSnapshotLimit = 50

// SnapshotRepository persists computed report snapshots.
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// CreateBatch stores snapshots in one transaction.
func (r *SnapshotRepository) CreateBatch(ctx context.Context, snapshots []*models.ReportSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range snapshots {
			if err := tx.Create(s).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns a seller's snapshots, newest first. An empty report matches all.
func (r *SnapshotRepository) List(ctx context.Context, sellerID uuid.UUID, report string, limit int) ([]models.ReportSnapshot, error) {
	if limit <= 0 || limit > DefaultSnapshotLimit {
		limit = DefaultSnapshotLimit
	}

	q := r.db.WithContext(ctx).Where("seller_id = ?", sellerID)
	if report != "" {
		q = q.Where("report = ?", report)
	}

	var snapshots []models.ReportSnapshot
	if err := q.Order("created_at DESC").Limit(limit).Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

// Latest returns the newest snapshot of a report.
func (r *SnapshotRepository) Latest(ctx context.Context, sellerID uuid.UUID, report string) (*models.ReportSnapshot, error) {
	var s models.ReportSnapshot
	if err := r.db.WithContext(ctx).
		Where("seller_id = ? AND report = ?", sellerID, report).
		Order("created_at DESC").
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// DeleteBySeller removes every snapshot of a seller.
func (r *SnapshotRepository) DeleteBySeller(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).Delete(&models.ReportSnapshot{})
	return res.RowsAffected, res.Error
}
