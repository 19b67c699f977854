package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SellerCredential stores a seller's marketplace API key, encrypted at rest.
type SellerCredential struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_seller_platform" json:"seller_id"`
	Platform        string     `gorm:"size:32;not null;uniqueIndex:idx_seller_platform" json:"platform"`
	EncryptedAPIKey string     `gorm:"type:text;not null" json:"-"`
	KeyFingerprint  string     `gorm:"size:32" json:"key_fingerprint"`
	MaskedKey       string     `gorm:"size:16" json:"masked_key"`
	KeyExpiresAt    *time.Time `json:"key_expires_at,omitempty"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName overrides the table name.
func (SellerCredential) TableName() string {
	return "seller_credentials"
}

// BeforeCreate assigns an ID when none is set.
func (c *SellerCredential) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
