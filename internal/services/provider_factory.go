package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-seller-analytics/internal/providers"
)

// ProviderSource resolves the report provider of a seller.
type ProviderSource interface {
	ProviderForSeller(ctx context.Context, sellerID uuid.UUID) (providers.ReportProvider, error)
}

type cachedProvider struct {
	fingerprint string
	provider    providers.ReportProvider
}

// ProviderFactoryService keeps one provider per seller so the client's rate
// limiter and response cache survive between requests. An entry is rebuilt
// when the stored key fingerprint changes.
type ProviderFactoryService struct {
	credentials *CredentialService
	factory     *providers.ProviderFactory
	logger      *zap.Logger

	mu        sync.Mutex
	providers map[uuid.UUID]cachedProvider
}

// NewProviderFactoryService creates a new provider factory service.
func NewProviderFactoryService(credentials *CredentialService, factory *providers.ProviderFactory, logger *zap.Logger) *ProviderFactoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderFactoryService{
		credentials: credentials,
		factory:     factory,
		logger:      logger,
		providers:   make(map[uuid.UUID]cachedProvider),
	}
}

// ProviderForSeller returns the cached provider of a seller, building it from
// the stored key when missing or stale.
func (f *ProviderFactoryService) ProviderForSeller(ctx context.Context, sellerID uuid.UUID) (providers.ReportProvider, error) {
	apiKey, cred, err := f.credentials.GetAPIKey(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.providers[sellerID]; ok && cached.fingerprint == cred.KeyFingerprint {
		return cached.provider, nil
	}

	provider, err := f.factory.CreateProvider(&providers.ConnectionInfo{
		SellerID: sellerID,
		Platform: cred.Platform,
		APIKey:   apiKey,
	})
	if err != nil {
		return nil, err
	}

	f.providers[sellerID] = cachedProvider{fingerprint: cred.KeyFingerprint, provider: provider}
	f.logger.Debug("provider created",
		zap.String("seller_id", sellerID.String()),
		zap.String("platform", cred.Platform),
	)
	return provider, nil
}

// Invalidate drops the cached provider of a seller.
func (f *ProviderFactoryService) Invalidate(_ context.Context, sellerID uuid.UUID) {
	f.mu.Lock()
	delete(f.providers, sellerID)
	f.mu.Unlock()
}

// Size returns the number of cached providers.
func (f *ProviderFactoryService) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.providers)
}
