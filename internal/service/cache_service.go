package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sos-dispatch-api/pkg/errors"
)

const defaultCacheTTL = 15 * time.Second

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type cacheMetrics interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveCacheWrite(duration time.Duration)
}

// CacheServiceOption customises a CacheService.
type CacheServiceOption func(*CacheService)

// WithCacheMetrics records hit ratio and latency.
func WithCacheMetrics(m cacheMetrics) CacheServiceOption {
	return func(s *CacheService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// CacheService is the read-through layer in front of the pending list. Cache
// errors are logged and reported but never block the caller from the store.
type CacheService struct {
	repo    CacheRepository
	metrics cacheMetrics
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCacheService wraps repo. A nil repo disables caching.
func NewCacheService(repo CacheRepository, ttl time.Duration, logger *zap.Logger, opts ...CacheServiceOption) *CacheService {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CacheService{repo: repo, metrics: noopRecorder{}, ttl: ttl, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether a backend is configured.
func (s *CacheService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Get loads key into dest and reports whether it was a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores value under key. A non-positive ttl uses the service default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate drops keys after a write.
func (s *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
		return err
	}
	return nil
}
