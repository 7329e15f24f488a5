package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/sos-dispatch-api/internal/models"
)

// MemoryHelpRequestRepository keeps help requests in process memory. It honours the same
// compare-and-swap contract as HelpRequestRepository and hands out copies only.
type MemoryHelpRequestRepository struct {
	mu       sync.RWMutex
	requests map[string]*models.HelpRequest
}

// NewMemoryHelpRequestRepository constructs an empty repository.
func NewMemoryHelpRequestRepository() *MemoryHelpRequestRepository {
	return &MemoryHelpRequestRepository{requests: make(map[string]*models.HelpRequest)}
}

// Create stores a copy of req.
func (r *MemoryHelpRequestRepository) Create(ctx context.Context, req *models.HelpRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.HelpRequestStatusPending
	}
	if req.DeclinedBy == nil {
		req.DeclinedBy = models.VolunteerSet{}
	}
	if req.Version == 0 {
		req.Version = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[req.ID]; exists {
		return fmt.Errorf("create help request: duplicate id %s", req.ID)
	}
	r.requests[req.ID] = req.Clone()
	return nil
}

// GetByID returns a copy of the stored request or sql.ErrNoRows.
func (r *MemoryHelpRequestRepository) GetByID(ctx context.Context, id string) (*models.HelpRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored.Clone(), nil
}

// List returns copies of matching requests, oldest first.
func (r *MemoryHelpRequestRepository) List(ctx context.Context, filter models.HelpRequestFilter) ([]models.HelpRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	statuses := make(map[models.HelpRequestStatus]struct{}, len(filter.Status))
	for _, status := range filter.Status {
		statuses[status] = struct{}{}
	}

	r.mu.RLock()
	result := make([]models.HelpRequest, 0, len(r.requests))
	for _, stored := range r.requests {
		if len(statuses) > 0 {
			if _, ok := statuses[stored.Status]; !ok {
				continue
			}
		}
		if filter.RequesterID != "" && stored.RequesterID != filter.RequesterID {
			continue
		}
		if filter.VolunteerID != "" && (stored.AssignedVolunteer == nil || *stored.AssignedVolunteer != filter.VolunteerID) {
			continue
		}
		result = append(result, *stored.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Update replaces the stored request when versions match.
func (r *MemoryHelpRequestRepository) Update(ctx context.Context, req *models.HelpRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[req.ID]
	if !ok || stored.Version != req.Version {
		return ErrVersionConflict
	}
	next := req.Clone()
	next.Version = req.Version + 1
	r.requests[req.ID] = next
	req.Version = next.Version
	return nil
}
