package service

import (
	"context"
	"time"

	"github.com/noah-isme/sos-dispatch-api/internal/models"
)

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// InstrumentedHelpRequestStore times every call against the wrapped store.
type InstrumentedHelpRequestStore struct {
	next     helpRequestStore
	observer queryObserver
}

// NewInstrumentedHelpRequestStore wraps next. A nil observer disables timing.
func NewInstrumentedHelpRequestStore(next helpRequestStore, observer queryObserver) *InstrumentedHelpRequestStore {
	return &InstrumentedHelpRequestStore{next: next, observer: observer}
}

func (s *InstrumentedHelpRequestStore) observe(label string, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveDBQuery(label, time.Since(start))
	}
}

// Create implements helpRequestStore.
func (s *InstrumentedHelpRequestStore) Create(ctx context.Context, req *models.HelpRequest) error {
	defer s.observe("help_requests.create", time.Now())
	return s.next.Create(ctx, req)
}

// GetByID implements helpRequestStore.
func (s *InstrumentedHelpRequestStore) GetByID(ctx context.Context, id string) (*models.HelpRequest, error) {
	defer s.observe("help_requests.get", time.Now())
	return s.next.GetByID(ctx, id)
}

// List implements helpRequestStore.
func (s *InstrumentedHelpRequestStore) List(ctx context.Context, filter models.HelpRequestFilter) ([]models.HelpRequest, error) {
	defer s.observe("help_requests.list", time.Now())
	return s.next.List(ctx, filter)
}

// Update implements helpRequestStore.
func (s *InstrumentedHelpRequestStore) Update(ctx context.Context, req *models.HelpRequest) error {
	defer s.observe("help_requests.update", time.Now())
	return s.next.Update(ctx, req)
}
