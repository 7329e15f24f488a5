package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sos-dispatch-api/internal/models"
	"github.com/noah-isme/sos-dispatch-api/internal/repository"
)

func TestInstrumentedStoreRecordsQueries(t *testing.T) {
	metrics := NewMetricsService()
	store := NewInstrumentedHelpRequestStore(repository.NewMemoryHelpRequestRepository(), metrics)
	ctx := context.Background()

	req := &models.HelpRequest{RequesterID: "req-1", Location: &models.Location{Lat: 1, Lng: 2}}
	require.NoError(t, store.Create(ctx, req))
	_, err := store.GetByID(ctx, req.ID)
	require.NoError(t, err)
	_, err = store.List(ctx, models.HelpRequestFilter{})
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, req))

	assert.Equal(t, uint64(4), metrics.Snapshot().DBQueryCount)
}
