package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-platform/service-seller-analytics/internal/models"
)

func TestSyncSchedulerCheckSellers(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t, sellerFixture(), true)
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

	due := uuid.New()
	_, err := f.creds.SetAPIKey(ctx, due, testAPIKey, false)
	require.NoError(t, err)

	recent := uuid.New()
	cred, err := f.creds.SetAPIKey(ctx, recent, testAPIKey, false)
	require.NoError(t, err)
	f.creds.now = func() time.Time { return now.Add(-time.Hour) }
	require.NoError(t, f.creds.MarkSynced(ctx, cred))

	scheduler := NewSyncScheduler(f.creds, f.handler, f.reports, SyncSchedulerConfig{Interval: 6 * time.Hour}, nil)
	scheduler.now = func() time.Time { return now }

	assert.Equal(t, 1, scheduler.checkSellers(ctx))
	require.Len(t, f.publisher.requested, 1)
	assert.Equal(t, due, f.publisher.requested[0].SellerID)
	assert.Equal(t, "scheduled", f.publisher.requested[0].Reason)
}

func TestSyncSchedulerIsDue(t *testing.T) {
	s := NewSyncScheduler(nil, nil, nil, SyncSchedulerConfig{Interval: time.Hour}, nil)
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	past := now.Add(-2 * time.Hour)
	recent := now.Add(-time.Minute)

	assert.True(t, s.isDue(&models.SellerCredential{}, now))
	assert.True(t, s.isDue(&models.SellerCredential{LastSyncAt: &past}, now))
	assert.False(t, s.isDue(&models.SellerCredential{LastSyncAt: &recent}, now))
	assert.False(t, s.isDue(&models.SellerCredential{KeyExpiresAt: &past}, now), "expired keys are skipped")
}

func TestSyncSchedulerStartStop(t *testing.T) {
	f := newSyncFixture(t, &fakeProvider{}, true)
	s := NewSyncScheduler(f.creds, f.handler, f.reports, SyncSchedulerConfig{CheckInterval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	assert.Error(t, s.Start(ctx))
	s.Stop()
	s.Stop()
}
