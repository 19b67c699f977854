package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
	"github.com/niaga-platform/service-seller-analytics/internal/events"
	"github.com/niaga-platform/service-seller-analytics/internal/models"
)

// EventPublisher publishes sync lifecycle events.
type EventPublisher interface {
	Connected() bool
	PublishSyncRequested(event *events.SyncRequestedEvent) error
	PublishReportComputed(event *events.ReportComputedEvent) error
	PublishReportFailed(event *events.ReportFailedEvent) error
}

// SyncResult summarizes one completed sync.
type SyncResult struct {
	SellerID  uuid.UUID         `json:"seller_id"`
	DateFrom  time.Time         `json:"date_from"`
	DateTo    time.Time         `json:"date_to"`
	Reports   []string          `json:"reports"`
	Source    string            `json:"source"`
	Failures  map[string]string `json:"failures,omitempty"`
	Snapshots []uuid.UUID       `json:"snapshot_ids"`
}

// ReportSyncHandler recomputes every report of a seller and stores the
// result as snapshots. It handles sync requests arriving over NATS.
type ReportSyncHandler struct {
	reports     *ReportService
	snapshots   *SnapshotService
	credentials *CredentialService
	publisher   EventPublisher
	timeout     time.Duration
	logger      *zap.Logger
}

// NewReportSyncHandler creates a new report sync handler
func NewReportSyncHandler(
	reports *ReportService,
	snapshots *SnapshotService,
	credentials *CredentialService,
	publisher EventPublisher,
	timeout time.Duration,
	logger *zap.Logger,
) *ReportSyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ReportSyncHandler{
		reports:     reports,
		snapshots:   snapshots,
		credentials: credentials,
		publisher:   publisher,
		timeout:     timeout,
		logger:      logger,
	}
}

// HandleSyncRequested implements events.EventHandler.
func (h *ReportSyncHandler) HandleSyncRequested(event *events.SyncRequestedEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	w, err := h.reports.Window(event.DateFrom, event.DateTo)
	if err != nil {
		return err
	}
	_, err = h.Sync(ctx, event.SellerID, w)
	return err
}

// Sync computes, stores and announces every report of a seller.
func (h *ReportSyncHandler) Sync(ctx context.Context, sellerID uuid.UUID, w analytics.Window) (*SyncResult, error) {
	start := time.Now()

	set, err := h.reports.ComputeAll(ctx, sellerID, w)
	if err != nil {
		h.fail(sellerID, w, err)
		return nil, err
	}

	snapshots, err := h.snapshots.SaveReportSet(ctx, set)
	if err != nil {
		h.fail(sellerID, w, err)
		return nil, err
	}

	if cred, err := h.credentials.GetCredential(ctx, sellerID); err == nil {
		if err := h.credentials.MarkSynced(ctx, cred); err != nil {
			h.logger.Warn("failed to record sync time", zap.String("seller_id", sellerID.String()), zap.Error(err))
		}
	}

	result := &SyncResult{
		SellerID: sellerID,
		DateFrom: w.Start,
		DateTo:   w.End,
		Reports:  append([]string(nil), models.ReportNames...),
		Source:   set.Meta.Source,
		Failures: set.Meta.Failures,
	}
	for _, s := range snapshots {
		result.Snapshots = append(result.Snapshots, s.ID)
	}

	h.publish(func() error {
		return h.publisher.PublishReportComputed(&events.ReportComputedEvent{
			EventID:   uuid.New(),
			SellerID:  sellerID,
			Reports:   result.Reports,
			DateFrom:  w.Start,
			DateTo:    w.End,
			Source:    result.Source,
			Failures:  result.Failures,
			Timestamp: time.Now().UTC(),
		})
	})

	h.logger.Info("seller reports synced",
		zap.String("seller_id", sellerID.String()),
		zap.Int("snapshots", len(snapshots)),
		zap.Int("failed_reports", len(result.Failures)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// RequestSync queues a sync over NATS. Without a connection the sync runs
// inline and its result is returned.
func (h *ReportSyncHandler) RequestSync(ctx context.Context, sellerID uuid.UUID, w analytics.Window, reason string) (bool, *SyncResult, error) {
	if _, err := h.credentials.GetCredential(ctx, sellerID); err != nil {
		return false, nil, err
	}

	if h.publisher != nil && h.publisher.Connected() {
		err := h.publisher.PublishSyncRequested(&events.SyncRequestedEvent{
			EventID:     uuid.New(),
			SellerID:    sellerID,
			DateFrom:    w.Start,
			DateTo:      w.End,
			Reason:      reason,
			RequestedAt: time.Now().UTC(),
		})
		if err == nil {
			return true, nil, nil
		}
		h.logger.Warn("failed to queue sync request, running inline", zap.String("seller_id", sellerID.String()), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	result, err := h.Sync(ctx, sellerID, w)
	return false, result, err
}

func (h *ReportSyncHandler) fail(sellerID uuid.UUID, w analytics.Window, cause error) {
	h.logger.Error("seller report sync failed", zap.String("seller_id", sellerID.String()), zap.Error(cause))
	h.publish(func() error {
		return h.publisher.PublishReportFailed(&events.ReportFailedEvent{
			EventID:   uuid.New(),
			SellerID:  sellerID,
			DateFrom:  w.Start,
			DateTo:    w.End,
			Error:     cause.Error(),
			Timestamp: time.Now().UTC(),
		})
	})
}

func (h *ReportSyncHandler) publish(fn func() error) {
	if h.publisher == nil {
		return
	}
	if err := fn(); err != nil && !errors.Is(err, events.ErrNotConnected) {
		h.logger.Warn("failed to publish sync event", zap.Error(err))
	}
}
