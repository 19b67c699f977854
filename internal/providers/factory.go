package providers

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnsupportedPlatform is returned for platforms without a registered constructor.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// ConnectionInfo contains what is needed to build a provider for one seller.
type ConnectionInfo struct {
	SellerID uuid.UUID
	Platform string
	APIKey   string
}

// ClientOptions holds transport settings shared by every provider.
type ClientOptions struct {
	StatisticsBaseURL string
	AdvertBaseURL     string
	RequestTimeout    time.Duration
	CacheTTL          time.Duration
	MaxRetries        int
	Logger            *zap.Logger
}

// Constructor builds a provider for a connection.
type Constructor func(conn *ConnectionInfo, opts ClientOptions) (ReportProvider, error)

// ProviderFactory creates report providers by platform name.
type ProviderFactory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	options      ClientOptions
	logger       *zap.Logger
}

// NewProviderFactory creates a new provider factory.
func NewProviderFactory(opts ClientOptions) *ProviderFactory {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
		opts.Logger = logger
	}

	return &ProviderFactory{
		constructors: make(map[string]Constructor),
		options:      opts,
		logger:       logger,
	}
}

// Register adds a constructor for platform, replacing any previous one.
func (f *ProviderFactory) Register(platform string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[platform] = ctor
}

// CreateProvider builds a provider for the given connection.
func (f *ProviderFactory) CreateProvider(conn *ConnectionInfo) (ReportProvider, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[conn.Platform]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, conn.Platform)
	}

	provider, err := ctor(conn, f.options)
	if err != nil {
		return nil, fmt.Errorf("create %s provider for seller %s: %w", conn.Platform, conn.SellerID, err)
	}

	f.logger.Debug("provider created",
		zap.String("platform", conn.Platform),
		zap.String("seller_id", conn.SellerID.String()),
	)
	return provider, nil
}

// IsSupported reports whether platform has a registered constructor.
func (f *ProviderFactory) IsSupported(platform string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.constructors[platform]
	return ok
}
