package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	wbdomain "github.com/niaga-platform/service-seller-analytics/internal/domain/wildberries"
	"github.com/niaga-platform/service-seller-analytics/internal/models"
	"github.com/niaga-platform/service-seller-analytics/internal/providers"
	"github.com/niaga-platform/service-seller-analytics/internal/providers/wildberries"
	"github.com/niaga-platform/service-seller-analytics/internal/repository"
	"github.com/niaga-platform/service-seller-analytics/internal/utils"
)

var (
	// ErrCredentialsMissing is returned when a seller has no stored API key.
	ErrCredentialsMissing = errors.New("seller has no marketplace credentials")
	// ErrInvalidAPIKey is returned when the marketplace rejects a key.
	ErrInvalidAPIKey = errors.New("marketplace rejected the API key")
)

// CredentialChangeFunc is called after a seller's key is replaced or removed.
type CredentialChangeFunc func(ctx context.Context, sellerID uuid.UUID)

// CredentialService stores seller API keys encrypted at rest.
type CredentialService struct {
	repo      *repository.CredentialRepository
	factory   *providers.ProviderFactory
	encryptor *utils.Encryptor
	platform  string
	logger    *zap.Logger

	mu       sync.RWMutex
	onChange []CredentialChangeFunc
	now      func() time.Time
}

// NewCredentialService creates a credential service. An empty encryption key
// stores keys as given.
func NewCredentialService(
	repo *repository.CredentialRepository,
	factory *providers.ProviderFactory,
	encryptionKey string,
	logger *zap.Logger,
) (*CredentialService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var encryptor *utils.Encryptor
	if encryptionKey != "" {
		var err error
		encryptor, err = utils.NewEncryptor(encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
	} else {
		logger.Warn("API key encryption is disabled, keys are stored in plain text")
	}

	return &CredentialService{
		repo:      repo,
		factory:   factory,
		encryptor: encryptor,
		platform:  wildberries.PlatformName,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// OnChange registers a callback run after SetAPIKey and DeleteAPIKey.
func (s *CredentialService) OnChange(fn CredentialChangeFunc) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *CredentialService) notify(ctx context.Context, sellerID uuid.UUID) {
	s.mu.RLock()
	callbacks := append([]CredentialChangeFunc(nil), s.onChange...)
	s.mu.RUnlock()
	for _, fn := range callbacks {
		fn(ctx, sellerID)
	}
}

// SetAPIKey validates the key format, optionally checks it against the
// marketplace, and stores it for the seller.
func (s *CredentialService) SetAPIKey(ctx context.Context, sellerID uuid.UUID, rawKey string, validate bool) (*models.SellerCredential, error) {
	key, err := wbdomain.NewAPIKey(rawKey)
	if err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	cred := &models.SellerCredential{
		SellerID:       sellerID,
		Platform:       s.platform,
		KeyFingerprint: key.Fingerprint(),
		MaskedKey:      key.Masked(),
	}
	if exp := key.ExpiresAt(); !exp.IsZero() {
		cred.KeyExpiresAt = &exp
	}

	if validate {
		if err := s.checkKey(ctx, sellerID, key.Value()); err != nil {
			return nil, err
		}
		cred.LastValidatedAt = &now
	}

	cred.EncryptedAPIKey, err = s.encrypt(key.Value())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}

	s.logger.Info("seller API key stored",
		zap.String("seller_id", sellerID.String()),
		zap.String("fingerprint", cred.KeyFingerprint),
		zap.Bool("validated", validate),
	)
	s.notify(ctx, sellerID)

	return s.repo.GetBySeller(ctx, sellerID, s.platform)
}

func (s *CredentialService) checkKey(ctx context.Context, sellerID uuid.UUID, apiKey string) error {
	provider, err := s.factory.CreateProvider(&providers.ConnectionInfo{
		SellerID: sellerID,
		Platform: s.platform,
		APIKey:   apiKey,
	})
	if err != nil {
		return err
	}

	if err := provider.HealthCheck(ctx); err != nil {
		if wildberries.IsAuthError(err) {
			return fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
		}
		return fmt.Errorf("failed to validate API key: %w", err)
	}
	return nil
}

// GetCredential returns the stored credential record without the key.
func (s *CredentialService) GetCredential(ctx context.Context, sellerID uuid.UUID) (*models.SellerCredential, error) {
	cred, err := s.repo.GetBySeller(ctx, sellerID, s.platform)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCredentialsMissing
		}
		return nil, err
	}
	return cred, nil
}

// GetAPIKey returns the decrypted API key of a seller.
func (s *CredentialService) GetAPIKey(ctx context.Context, sellerID uuid.UUID) (string, *models.SellerCredential, error) {
	cred, err := s.GetCredential(ctx, sellerID)
	if err != nil {
		return "", nil, err
	}

	apiKey, err := s.decrypt(cred.EncryptedAPIKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decrypt API key: %w", err)
	}
	return apiKey, cred, nil
}

// DeleteAPIKey removes the seller's key.
func (s *CredentialService) DeleteAPIKey(ctx context.Context, sellerID uuid.UUID) error {
	if err := s.repo.Delete(ctx, sellerID, s.platform); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCredentialsMissing
		}
		return err
	}

	s.logger.Info("seller API key removed", zap.String("seller_id", sellerID.String()))
	s.notify(ctx, sellerID)
	return nil
}

// ListCredentials returns every stored credential of the platform.
func (s *CredentialService) ListCredentials(ctx context.Context) ([]models.SellerCredential, error) {
	return s.repo.ListByPlatform(ctx, s.platform)
}

// MarkSynced records a successful report sync.
func (s *CredentialService) MarkSynced(ctx context.Context, cred *models.SellerCredential) error {
	return s.repo.MarkSynced(ctx, cred.ID, s.now())
}

func (s *CredentialService) encrypt(value string) (string, error) {
	if s.encryptor == nil {
		return value, nil
	}
	enc, err := s.encryptor.Encrypt(value)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt API key: %w", err)
	}
	return enc, nil
}

func (s *CredentialService) decrypt(value string) (string, error) {
	if s.encryptor == nil || value == "" {
		return value, nil
	}
	return s.encryptor.Decrypt(value)
}
