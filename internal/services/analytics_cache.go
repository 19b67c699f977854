package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
)

const cacheKeyPrefix = "seller-analytics"

// AnalyticsCacheService caches computed reports in Redis. A nil client
// disables caching.
type AnalyticsCacheService struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// cachedReport wraps a cached payload with the time it was computed.
type cachedReport struct {
	Payload  json.RawMessage `json:"payload"`
	CachedAt time.Time       `json:"cached_at"`
}

// NewAnalyticsCacheService creates a new analytics cache service
func NewAnalyticsCacheService(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *AnalyticsCacheService {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsCacheService{
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

// Enabled reports whether a Redis client is configured.
func (s *AnalyticsCacheService) Enabled() bool {
	return s != nil && s.redis != nil
}

func (s *AnalyticsCacheService) cacheKey(sellerID uuid.UUID, report string, window analytics.Window) string {
	return fmt.Sprintf("%s:%s:%s:%s_%s", cacheKeyPrefix, sellerID, report,
		window.Start.UTC().Format("20060102"), window.End.UTC().Format("20060102"))
}

// Get decodes a cached report into dest. It returns false on a miss or when
// the cache is unavailable; cache failures are logged, never returned.
func (s *AnalyticsCacheService) Get(ctx context.Context, sellerID uuid.UUID, report string, window analytics.Window, dest any) bool {
	if !s.Enabled() {
		return false
	}

	key := s.cacheKey(sellerID, report, window)
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("failed to get report from cache", zap.Error(err), zap.String("key", key))
		}
		return false
	}

	var cached cachedReport
	if err := json.Unmarshal(data, &cached); err != nil {
		s.logger.Warn("failed to unmarshal cached report", zap.Error(err), zap.String("key", key))
		return false
	}
	if err := json.Unmarshal(cached.Payload, dest); err != nil {
		s.logger.Warn("failed to decode cached report payload", zap.Error(err), zap.String("key", key))
		return false
	}

	s.logger.Debug("cache hit for report", zap.String("seller_id", sellerID.String()), zap.String("report", report))
	return true
}

// Set stores a computed report.
func (s *AnalyticsCacheService) Set(ctx context.Context, sellerID uuid.UUID, report string, window analytics.Window, value any) error {
	if !s.Enabled() {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal report for cache: %w", err)
	}
	data, err := json.Marshal(cachedReport{Payload: payload, CachedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal report for cache: %w", err)
	}

	key := s.cacheKey(sellerID, report, window)
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to set report in cache", zap.Error(err), zap.String("key", key))
		return err
	}

	s.logger.Debug("cached report", zap.String("seller_id", sellerID.String()), zap.String("report", report), zap.Duration("ttl", s.ttl))
	return nil
}

// Invalidate removes every cached report of a seller.
func (s *AnalyticsCacheService) Invalidate(ctx context.Context, sellerID uuid.UUID) error {
	if !s.Enabled() {
		return nil
	}

	pattern := fmt.Sprintf("%s:%s:*", cacheKeyPrefix, sellerID)
	var keys []string
	iter := s.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("failed to find cache keys to invalidate", zap.Error(err))
		return err
	}

	if len(keys) > 0 {
		if err := s.redis.Del(ctx, keys...).Err(); err != nil {
			s.logger.Warn("failed to invalidate report cache", zap.Error(err))
			return err
		}
		s.logger.Debug("invalidated report cache", zap.String("seller_id", sellerID.String()), zap.Int("keys_removed", len(keys)))
	}
	return nil
}

// InvalidateSeller adapts Invalidate to a credential change callback.
func (s *AnalyticsCacheService) InvalidateSeller(ctx context.Context, sellerID uuid.UUID) {
	_ = s.Invalidate(ctx, sellerID)
}
