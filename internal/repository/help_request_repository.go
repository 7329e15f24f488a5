package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sos-dispatch-api/internal/models"
)

// ErrVersionConflict is returned when a compare-and-swap update finds a newer version stored.
var ErrVersionConflict = errors.New("help request version conflict")

const helpRequestColumns = `id, requester_id, location, status, assigned_volunteer, declined_by, cancel_reason,
       created_at, accepted_at, completed_at, cancelled_at, version`

// HelpRequestRepository persists help requests in PostgreSQL or SQLite.
type HelpRequestRepository struct {
	db *sqlx.DB
}

// NewHelpRequestRepository constructs the repository.
func NewHelpRequestRepository(db *sqlx.DB) *HelpRequestRepository {
	return &HelpRequestRepository{db: db}
}

// Create inserts a new help request row.
func (r *HelpRequestRepository) Create(ctx context.Context, req *models.HelpRequest) error {
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
	const query = `INSERT INTO help_requests
	(id, requester_id, location, status, assigned_volunteer, declined_by, cancel_reason, created_at, accepted_at, completed_at, cancelled_at, version)
	VALUES (:id, :requester_id, :location, :status, :assigned_volunteer, :declined_by, :cancel_reason, :created_at, :accepted_at, :completed_at, :cancelled_at, :version)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create help request: %w", err)
	}
	return nil
}

// GetByID fetches a help request by identifier. Missing rows surface as sql.ErrNoRows.
func (r *HelpRequestRepository) GetByID(ctx context.Context, id string) (*models.HelpRequest, error) {
	query := r.db.Rebind(`SELECT ` + helpRequestColumns + ` FROM help_requests WHERE id = ?`)
	var req models.HelpRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get help request: %w", err)
	}
	return &req, nil
}

// List returns help requests matching the filter, oldest first.
func (r *HelpRequestRepository) List(ctx context.Context, filter models.HelpRequestFilter) ([]models.HelpRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + helpRequestColumns + ` FROM help_requests`)

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = "?"
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		conditions = append(conditions, "requester_id = ?")
	}
	if filter.VolunteerID != "" {
		args = append(args, filter.VolunteerID)
		conditions = append(conditions, "assigned_volunteer = ?")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at ASC, id ASC")

	var requests []models.HelpRequest
	if err := r.db.SelectContext(ctx, &requests, r.db.Rebind(builder.String()), args...); err != nil {
		return nil, fmt.Errorf("list help requests: %w", err)
	}
	return requests, nil
}

// Update writes the mutable columns when the stored version still matches req.Version.
// On success req.Version is advanced; a stale version yields ErrVersionConflict.
func (r *HelpRequestRepository) Update(ctx context.Context, req *models.HelpRequest) error {
	const query = `UPDATE help_requests SET
	status = :status,
	assigned_volunteer = :assigned_volunteer,
	declined_by = :declined_by,
	cancel_reason = :cancel_reason,
	accepted_at = :accepted_at,
	completed_at = :completed_at,
	cancelled_at = :cancelled_at,
	version = :next_version
	WHERE id = :id AND version = :version`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                 req.ID,
		"status":             req.Status,
		"assigned_volunteer": req.AssignedVolunteer,
		"declined_by":        req.DeclinedBy,
		"cancel_reason":      req.CancelReason,
		"accepted_at":        req.AcceptedAt,
		"completed_at":       req.CompletedAt,
		"cancelled_at":       req.CancelledAt,
		"version":            req.Version,
		"next_version":       req.Version + 1,
	})
	if err != nil {
		return fmt.Errorf("update help request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check help request update rows: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	req.Version++
	return nil
}
