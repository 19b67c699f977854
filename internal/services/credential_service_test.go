package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-platform/service-seller-analytics/internal/providers"
	"github.com/niaga-platform/service-seller-analytics/internal/providers/wildberries"
	"github.com/niaga-platform/service-seller-analytics/internal/repository"
)

const testAPIKey = "wb-test-key-0123456789abcdef"

func newTestCredentialService(t *testing.T, baseURL, encryptionKey string) *CredentialService {
	t.Helper()
	factory := providers.NewProviderFactory(providers.ClientOptions{
		StatisticsBaseURL: baseURL,
		AdvertBaseURL:     baseURL,
		MaxRetries:        1,
	})
	wildberries.Register(factory)

	svc, err := NewCredentialService(repository.NewCredentialRepository(setupTestDB(t)), factory, encryptionKey, nil)
	require.NoError(t, err)
	return svc
}

func TestCredentialServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestCredentialService(t, "http://127.0.0.1:1", "test-passphrase")
	sellerID := uuid.New()

	var changed []uuid.UUID
	svc.OnChange(func(_ context.Context, id uuid.UUID) { changed = append(changed, id) })

	cred, err := svc.SetAPIKey(ctx, sellerID, "  "+testAPIKey+"  ", false)
	require.NoError(t, err)
	assert.Equal(t, wildberries.PlatformName, cred.Platform)
	assert.Equal(t, "****cdef", cred.MaskedKey)
	assert.NotEmpty(t, cred.KeyFingerprint)
	assert.NotEqual(t, testAPIKey, cred.EncryptedAPIKey, "stored encrypted")
	assert.Nil(t, cred.LastValidatedAt)
	assert.Equal(t, []uuid.UUID{sellerID}, changed)

	key, _, err := svc.GetAPIKey(ctx, sellerID)
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, key)

	require.NoError(t, svc.DeleteAPIKey(ctx, sellerID))
	assert.Len(t, changed, 2)

	_, err = svc.GetCredential(ctx, sellerID)
	assert.ErrorIs(t, err, ErrCredentialsMissing)
	assert.ErrorIs(t, svc.DeleteAPIKey(ctx, sellerID), ErrCredentialsMissing)
}

func TestCredentialServiceRejectsEmptyKey(t *testing.T) {
	svc := newTestCredentialService(t, "http://127.0.0.1:1", "")
	_, err := svc.SetAPIKey(context.Background(), uuid.New(), "   ", false)
	require.Error(t, err)
}

func TestCredentialServiceValidation(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wildberries.PingPath, r.URL.Path)
		assert.Equal(t, testAPIKey, r.Header.Get("Authorization"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"TS":"2024-06-03T10:00:00Z","Status":"OK"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	svc := newTestCredentialService(t, srv.URL, "")

	t.Run("accepted key", func(t *testing.T) {
		cred, err := svc.SetAPIKey(ctx, uuid.New(), testAPIKey, true)
		require.NoError(t, err)
		assert.NotNil(t, cred.LastValidatedAt)
		assert.Equal(t, testAPIKey, cred.EncryptedAPIKey, "plain text without an encryption key")
	})

	t.Run("rejected key", func(t *testing.T) {
		status = http.StatusUnauthorized
		sellerID := uuid.New()
		_, err := svc.SetAPIKey(ctx, sellerID, testAPIKey, true)
		assert.ErrorIs(t, err, ErrInvalidAPIKey)

		_, err = svc.GetCredential(ctx, sellerID)
		assert.ErrorIs(t, err, ErrCredentialsMissing, "nothing stored")
	})
}

func TestProviderFactoryServiceCachesPerFingerprint(t *testing.T) {
	ctx := context.Background()
	creds := newTestCredentialService(t, "http://127.0.0.1:1", "test-passphrase")
	factory := providers.NewProviderFactory(providers.ClientOptions{StatisticsBaseURL: "http://127.0.0.1:1", AdvertBaseURL: "http://127.0.0.1:1"})
	wildberries.Register(factory)
	svc := NewProviderFactoryService(creds, factory, nil)
	creds.OnChange(svc.Invalidate)

	sellerID := uuid.New()
	_, err := svc.ProviderForSeller(ctx, sellerID)
	assert.ErrorIs(t, err, ErrCredentialsMissing)

	_, err = creds.SetAPIKey(ctx, sellerID, testAPIKey, false)
	require.NoError(t, err)

	first, err := svc.ProviderForSeller(ctx, sellerID)
	require.NoError(t, err)
	second, err := svc.ProviderForSeller(ctx, sellerID)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, svc.Size())

	_, err = creds.SetAPIKey(ctx, sellerID, testAPIKey+"-rotated", false)
	require.NoError(t, err)
	assert.Zero(t, svc.Size(), "key change drops the cached provider")

	third, err := svc.ProviderForSeller(ctx, sellerID)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestAnalyticsCacheDisabled(t *testing.T) {
	cache := NewAnalyticsCacheService(nil, 0, nil)
	assert.False(t, cache.Enabled())

	var dest map[string]any
	assert.False(t, cache.Get(context.Background(), uuid.New(), "finance", testWindow(), &dest))
	assert.NoError(t, cache.Set(context.Background(), uuid.New(), "finance", testWindow(), map[string]any{"a": 1}))
	assert.NoError(t, cache.Invalidate(context.Background(), uuid.New()))
	cache.InvalidateSeller(context.Background(), uuid.New())

	var nilCache *AnalyticsCacheService
	assert.False(t, nilCache.Enabled())
	assert.Equal(t, "seller-analytics:00000000-0000-0000-0000-000000000000:abc:20240603_20240617",
		cache.cacheKey(uuid.Nil, "abc", testWindow()))
}
