package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/niaga-platform/service-seller-analytics/internal/models"
)

// SyncSchedulerConfig holds configuration for the sync scheduler.
type SyncSchedulerConfig struct {
	Interval      time.Duration // minimum time between two syncs of a seller
	CheckInterval time.Duration // how often to look for due sellers
	ExpiryWarning time.Duration // warn when a key expires within this period
}

// SyncScheduler periodically requests report syncs for every seller with a
// stored key and warns about keys close to expiry.
type SyncScheduler struct {
	credentials *CredentialService
	syncer      *ReportSyncHandler
	reports     *ReportService
	config      SyncSchedulerConfig
	logger      *zap.Logger
	now         func() time.Time

	// Lifecycle management
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// NewSyncScheduler creates a new sync scheduler.
func NewSyncScheduler(
	credentials *CredentialService,
	syncer *ReportSyncHandler,
	reports *ReportService,
	cfg SyncSchedulerConfig,
	logger *zap.Logger,
) *SyncScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval == 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 10 * time.Minute
	}
	if cfg.ExpiryWarning == 0 {
		cfg.ExpiryWarning = 72 * time.Hour
	}

	return &SyncScheduler{
		credentials: credentials,
		syncer:      syncer,
		reports:     reports,
		config:      cfg,
		logger:      logger,
		now:         time.Now,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background sync loop.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sync scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("sync scheduler started",
		zap.Duration("check_interval", s.config.CheckInterval),
		zap.Duration("sync_interval", s.config.Interval),
	)
	return nil
}

// Stop gracefully stops the scheduler and waits for the running check.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()

	s.logger.Info("sync scheduler stopped")
}

func (s *SyncScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.checkSellers(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.checkSellers(ctx)
		}
	}
}

// checkSellers requests a sync for every due seller. It returns the number
// of sellers a sync was requested for.
func (s *SyncScheduler) checkSellers(ctx context.Context) int {
	creds, err := s.credentials.ListCredentials(ctx)
	if err != nil {
		s.logger.Error("failed to list seller credentials", zap.Error(err))
		return 0
	}

	now := s.now()
	requested := 0
	for i := range creds {
		cred := &creds[i]
		s.warnExpiring(cred, now)

		if !s.isDue(cred, now) {
			continue
		}

		w, err := s.reports.Window(time.Time{}, time.Time{})
		if err != nil {
			s.logger.Error("failed to resolve sync window", zap.Error(err))
			return requested
		}

		queued, _, err := s.syncer.RequestSync(ctx, cred.SellerID, w, "scheduled")
		if err != nil {
			s.logger.Error("scheduled sync failed",
				zap.String("seller_id", cred.SellerID.String()),
				zap.Error(err),
			)
			continue
		}
		requested++
		s.logger.Debug("scheduled sync requested",
			zap.String("seller_id", cred.SellerID.String()),
			zap.Bool("queued", queued),
		)
	}
	return requested
}

func (s *SyncScheduler) isDue(cred *models.SellerCredential, now time.Time) bool {
	if cred.KeyExpiresAt != nil && !cred.KeyExpiresAt.After(now) {
		return false
	}
	return cred.LastSyncAt == nil || now.Sub(*cred.LastSyncAt) >= s.config.Interval
}

func (s *SyncScheduler) warnExpiring(cred *models.SellerCredential, now time.Time) {
	if cred.KeyExpiresAt == nil {
		return
	}
	left := cred.KeyExpiresAt.Sub(now)
	switch {
	case left <= 0:
		s.logger.Warn("seller API key has expired",
			zap.String("seller_id", cred.SellerID.String()),
			zap.Time("expired_at", *cred.KeyExpiresAt),
		)
	case left <= s.config.ExpiryWarning:
		s.logger.Warn("seller API key expires soon",
			zap.String("seller_id", cred.SellerID.String()),
			zap.Duration("remaining", left),
		)
	}
}
