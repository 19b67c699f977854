package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
	wbdomain "github.com/niaga-platform/service-seller-analytics/internal/domain/wildberries"
	"github.com/niaga-platform/service-seller-analytics/internal/events"
	"github.com/niaga-platform/service-seller-analytics/internal/models"
	"github.com/niaga-platform/service-seller-analytics/internal/repository"
)

type syncFixture struct {
	creds     *CredentialService
	snapshots *SnapshotService
	reports   *ReportService
	publisher *fakePublisher
	handler   *ReportSyncHandler
}

func newSyncFixture(t *testing.T, p *fakeProvider, connected bool) *syncFixture {
	t.Helper()
	db := setupTestDB(t)

	creds, err := NewCredentialService(repository.NewCredentialRepository(db), nil, "test-passphrase", nil)
	require.NoError(t, err)

	f := &syncFixture{
		creds:     creds,
		snapshots: NewSnapshotService(repository.NewSnapshotRepository(db), nil),
		reports:   newTestReportService(p),
		publisher: &fakePublisher{connected: connected},
	}
	f.handler = NewReportSyncHandler(f.reports, f.snapshots, f.creds, f.publisher, time.Minute, nil)
	return f
}

func TestReportSyncHandlerSync(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t, sellerFixture(), true)
	sellerID := uuid.New()
	_, err := f.creds.SetAPIKey(ctx, sellerID, testAPIKey, false)
	require.NoError(t, err)

	result, err := f.handler.Sync(ctx, sellerID, testWindow())
	require.NoError(t, err)
	assert.Len(t, result.Snapshots, len(models.ReportNames))
	assert.Equal(t, SourceStatistics, result.Source)

	latest, err := f.snapshots.Latest(ctx, sellerID, models.ReportFinance)
	require.NoError(t, err)
	var finance analytics.FinanceReport
	require.NoError(t, json.Unmarshal(latest.Payload, &finance))
	assert.Equal(t, 1800.0, finance.Summary.TotalRevenue)
	assert.True(t, testWindow().Start.Equal(latest.DateFrom))

	cred, err := f.creds.GetCredential(ctx, sellerID)
	require.NoError(t, err)
	assert.NotNil(t, cred.LastSyncAt)

	require.Len(t, f.publisher.computed, 1)
	assert.Equal(t, sellerID, f.publisher.computed[0].SellerID)
	assert.Empty(t, f.publisher.failed)
}

func TestReportSyncHandlerFailure(t *testing.T) {
	ctx := context.Background()
	p := sellerFixture()
	p.errs = map[string]error{fetchFinance: wbdomain.NewAPIError(403, "forbidden")}
	f := newSyncFixture(t, p, true)

	_, err := f.handler.Sync(ctx, uuid.New(), testWindow())
	require.Error(t, err)
	require.Len(t, f.publisher.failed, 1)
	assert.Contains(t, f.publisher.failed[0].Error, "403")
	assert.Empty(t, f.publisher.computed)
}

func TestReportSyncHandlerRequestSync(t *testing.T) {
	ctx := context.Background()

	t.Run("queued over nats", func(t *testing.T) {
		f := newSyncFixture(t, sellerFixture(), true)
		sellerID := uuid.New()
		_, err := f.creds.SetAPIKey(ctx, sellerID, testAPIKey, false)
		require.NoError(t, err)

		queued, result, err := f.handler.RequestSync(ctx, sellerID, testWindow(), "manual")
		require.NoError(t, err)
		assert.True(t, queued)
		assert.Nil(t, result)
		require.Len(t, f.publisher.requested, 1)
		assert.Equal(t, "manual", f.publisher.requested[0].Reason)
	})

	t.Run("inline without nats", func(t *testing.T) {
		f := newSyncFixture(t, sellerFixture(), false)
		sellerID := uuid.New()
		_, err := f.creds.SetAPIKey(ctx, sellerID, testAPIKey, false)
		require.NoError(t, err)

		queued, result, err := f.handler.RequestSync(ctx, sellerID, testWindow(), "manual")
		require.NoError(t, err)
		assert.False(t, queued)
		require.NotNil(t, result)
		assert.Len(t, result.Snapshots, len(models.ReportNames))
	})

	t.Run("unknown seller", func(t *testing.T) {
		f := newSyncFixture(t, sellerFixture(), true)
		_, _, err := f.handler.RequestSync(ctx, uuid.New(), testWindow(), "manual")
		assert.ErrorIs(t, err, ErrCredentialsMissing)
	})
}

func TestReportSyncHandlerHandleSyncRequested(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t, sellerFixture(), false)
	sellerID := uuid.New()
	_, err := f.creds.SetAPIKey(ctx, sellerID, testAPIKey, false)
	require.NoError(t, err)

	var handler events.EventHandler = f.handler
	require.NoError(t, handler.HandleSyncRequested(&events.SyncRequestedEvent{
		SellerID: sellerID,
		DateFrom: day(0),
		DateTo:   day(14),
	}))

	list, err := f.snapshots.List(ctx, sellerID, "", 0)
	require.NoError(t, err)
	assert.Len(t, list, len(models.ReportNames))

	assert.Error(t, handler.HandleSyncRequested(&events.SyncRequestedEvent{SellerID: sellerID, DateFrom: day(7), DateTo: day(1)}))
}
