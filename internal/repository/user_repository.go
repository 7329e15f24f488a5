package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sos-dispatch-api/internal/models"
)

const userColumns = `id, name, email, phone, role, verified, available, rating, location, created_at, updated_at`

// UserRepository provides database access for the user directory.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER(?) LIMIT 1`)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ? LIMIT 1`)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// List returns users matching the filter ordered by creation time.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	var conditions []string
	var args []interface{}
	if filter.Role != nil {
		conditions = append(conditions, "role = ?")
		args = append(args, *filter.Role)
	}
	if filter.Verified != nil {
		conditions = append(conditions, "verified = ?")
		args = append(args, *filter.Verified)
	}
	query := `SELECT ` + userColumns + ` FROM users`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ListVerifiedAvailable returns the ids of verified volunteers whose availability is unset or true.
func (r *UserRepository) ListVerifiedAvailable(ctx context.Context) ([]string, error) {
	query := r.db.Rebind(`SELECT id FROM users WHERE role = ? AND verified = ? AND (available IS NULL OR available = ?) ORDER BY id`)
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, models.RoleVolunteer, true, true); err != nil {
		return nil, fmt.Errorf("list verified available volunteers: %w", err)
	}
	return ids, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, name, email, phone, role, verified, available, rating, location, created_at, updated_at)
	VALUES (:id, :name, :email, :phone, :role, :verified, :available, :rating, :location, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateLocation stores the user's latest position.
func (r *UserRepository) UpdateLocation(ctx context.Context, id string, location models.Location, updatedAt time.Time) error {
	query := r.db.Rebind(`UPDATE users SET location = ?, updated_at = ? WHERE id = ?`)
	return r.execAffecting(ctx, "update user location", query, location, updatedAt, id)
}

// SetVerified flips the verified flag.
func (r *UserRepository) SetVerified(ctx context.Context, id string, verified bool, updatedAt time.Time) error {
	query := r.db.Rebind(`UPDATE users SET verified = ?, updated_at = ? WHERE id = ?`)
	return r.execAffecting(ctx, "set user verified", query, verified, updatedAt, id)
}

// SetAvailability stores the volunteer availability flag.
func (r *UserRepository) SetAvailability(ctx context.Context, id string, available bool, updatedAt time.Time) error {
	query := r.db.Rebind(`UPDATE users SET available = ?, updated_at = ? WHERE id = ?`)
	return r.execAffecting(ctx, "set user availability", query, available, updatedAt, id)
}

func (r *UserRepository) execAffecting(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
