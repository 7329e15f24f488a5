package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sos-dispatch-api/internal/models"
	appErrors "github.com/noah-isme/sos-dispatch-api/pkg/errors"
)

type cacheRepoStub struct {
	values  map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	deleted []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	raw, ok := s.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.values[key] = raw
	s.ttls[key] = ttl
	return nil
}

func (s *cacheRepoStub) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	s.deleted = append(s.deleted, keys...)
	return nil
}

func TestCacheServiceRoundTripRecordsHitsAndMisses(t *testing.T) {
	repo := newCacheRepoStub()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, 0, zap.NewNop(), WithCacheMetrics(metrics))
	ctx := context.Background()

	var out []models.HelpRequest
	hit, err := svc.Get(ctx, pendingCacheKey, &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, pendingCacheKey, []models.HelpRequest{{ID: "hr-1", Status: models.HelpRequestStatusPending}}, 0))
	assert.Equal(t, 15*time.Second, repo.ttls[pendingCacheKey])

	hit, err = svc.Get(ctx, pendingCacheKey, &out)
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, out, 1)
	assert.Equal(t, "hr-1", out[0].ID)

	require.NoError(t, svc.Invalidate(ctx, pendingCacheKey))
	assert.Equal(t, []string{pendingCacheKey}, repo.deleted)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.0001)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	svc := NewCacheService(nil, time.Minute, nil)
	ctx := context.Background()

	assert.False(t, svc.Enabled())
	require.NoError(t, svc.Set(ctx, "k", 1, 0))

	var out int
	hit, err := svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, svc.Invalidate(ctx, "k"))
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := newCacheRepoStub()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, time.Minute, zap.NewNop())

	var out int
	hit, err := svc.Get(context.Background(), "k", &out)
	require.Error(t, err)
	assert.False(t, hit)
}

func TestMetricsServiceTransitionsAndExposition(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveTransition(OperationDecline, OutcomeSuccess)
	metrics.ObserveTransition(OperationDecline, OutcomeSuccess)
	metrics.ObserveTransition(OperationAccept, OutcomeConflict)
	metrics.ObserveAutoCancel()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/help-requests/pending", http.StatusOK, 2*time.Millisecond)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(2), snap.Transitions[OperationDecline+":"+OutcomeSuccess])
	assert.Equal(t, int64(1), snap.Transitions[OperationAccept+":"+OutcomeConflict])
	assert.Equal(t, uint64(1), snap.RequestsTotal)

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "help_request_transitions_total")
	assert.Contains(t, w.Body.String(), "help_request_auto_cancellations_total 1")

	var nilMetrics *MetricsService
	assert.NotPanics(t, func() { nilMetrics.ObserveTransition(OperationAccept, OutcomeSuccess) })
	assert.Equal(t, models.SystemMetrics{}, nilMetrics.Snapshot())
}
