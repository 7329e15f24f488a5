package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sos-dispatch-api/internal/models"
)

// MemoryUserRepository is the in-process user directory used by the memory store driver.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

// NewMemoryUserRepository constructs an empty directory.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*models.User)}
}

// FindByEmail returns a user by email address.
func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u.Clone(), nil
		}
	}
	return nil, sql.ErrNoRows
}

// FindByID returns a user by identifier.
func (r *MemoryUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u.Clone(), nil
}

// List returns users matching the filter ordered by creation time.
func (r *MemoryUserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	r.mu.RLock()
	result := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Verified != nil && u.Verified != *filter.Verified {
			continue
		}
		result = append(result, *u.Clone())
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

// ListVerifiedAvailable returns ids of dispatchable volunteers in id order.
func (r *MemoryUserRepository) ListVerifiedAvailable(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	ids := make([]string, 0, len(r.users))
	for _, u := range r.users {
		if u.Dispatchable() {
			ids = append(ids, u.ID)
		}
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

// Create stores a copy of user.
func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.ID]; exists {
		return fmt.Errorf("create user: duplicate id %s", user.ID)
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("create user: duplicate email %s", user.Email)
		}
	}
	r.users[user.ID] = user.Clone()
	return nil
}

// UpdateLocation stores the user's latest position.
func (r *MemoryUserRepository) UpdateLocation(ctx context.Context, id string, location models.Location, updatedAt time.Time) error {
	return r.mutate(id, updatedAt, func(u *models.User) { u.Location = &location })
}

// SetVerified flips the verified flag.
func (r *MemoryUserRepository) SetVerified(ctx context.Context, id string, verified bool, updatedAt time.Time) error {
	return r.mutate(id, updatedAt, func(u *models.User) { u.Verified = verified })
}

// SetAvailability stores the volunteer availability flag.
func (r *MemoryUserRepository) SetAvailability(ctx context.Context, id string, available bool, updatedAt time.Time) error {
	return r.mutate(id, updatedAt, func(u *models.User) { u.Available = &available })
}

func (r *MemoryUserRepository) mutate(id string, updatedAt time.Time, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	fn(u)
	u.UpdatedAt = updatedAt
	return nil
}
