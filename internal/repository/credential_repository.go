package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/niaga-platform/service-seller-analytics/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// CredentialRepository persists seller API keys.
type CredentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Upsert inserts the credential or replaces the key of an existing one for
// the same seller and platform.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *models.SellerCredential) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "seller_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"encrypted_api_key", "key_fingerprint", "masked_key",
			"key_expires_at", "last_validated_at", "updated_at",
		}),
	}).Create(cred).Error
}

// GetBySeller finds the credential of a seller on a platform.
func (r *CredentialRepository) GetBySeller(ctx context.Context, sellerID uuid.UUID, platform string) (*models.SellerCredential, error) {
	var cred models.SellerCredential
	if err := r.db.WithContext(ctx).
		Where("seller_id = ? AND platform = ?", sellerID, platform).
		First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// ListByPlatform returns every credential for a platform, oldest sync first.
func (r *CredentialRepository) ListByPlatform(ctx context.Context, platform string) ([]models.SellerCredential, error) {
	var creds []models.SellerCredential
	if err := r.db.WithContext(ctx).
		Where("platform = ?", platform).
		Order("last_sync_at ASC").
		Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

// MarkSynced records the time of the last successful sync.
func (r *CredentialRepository) MarkSynced(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerCredential{}).
		Where("id = ?", id).
		Update("last_sync_at", at).Error
}

// Delete removes the credential of a seller on a platform.
func (r *CredentialRepository) Delete(ctx context.Context, sellerID uuid.UUID, platform string) error {
	res := r.db.WithContext(ctx).
		Where("seller_id = ? AND platform = ?", sellerID, platform).
		Delete(&models.SellerCredential{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
