package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sos-dispatch-api/internal/dto"
	"github.com/noah-isme/sos-dispatch-api/internal/models"
	appErrors "github.com/noah-isme/sos-dispatch-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateLocation(ctx context.Context, id string, location models.Location, updatedAt time.Time) error
	SetVerified(ctx context.Context, id string, verified bool, updatedAt time.Time) error
	SetAvailability(ctx context.Context, id string, available bool, updatedAt time.Time) error
}

// UserService handles the user directory.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	audit     auditRecorder
	logger    *zap.Logger
	now       func() time.Time
}

// UserServiceOption configures the service.
type UserServiceOption func(*UserService)

// WithUserAudit emits audit entries for directory changes.
func WithUserAudit(audit auditRecorder) UserServiceOption {
	return func(s *UserService) {
		s.audit = audit
	}
}

// WithUserClock overrides the timestamp source.
func WithUserClock(clock func() time.Time) UserServiceOption {
	return func(s *UserService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger, opts ...UserServiceOption) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &UserService{repo: repo, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Register adds a user to the directory. Volunteers start unverified.
func (s *UserService) Register(ctx context.Context, req dto.RegisterUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid register payload")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "role must be one of ADMIN, VOLUNTEER, REQUESTER")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, storeError(err, "failed to check email uniqueness")
	}

	now := s.now()
	user := &models.User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Role:      req.Role,
		Verified:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Role == models.RoleVolunteer {
		available := true
		rating := 0.0
		user.Verified = false
		user.Available = &available
		user.Rating = &rating
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, storeError(err, "failed to create user")
	}

	s.record(ctx, models.AuditActionUserCreate, user.ID, nil, map[string]interface{}{"id": user.ID, "email": user.Email, "role": user.Role})
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// ListVolunteers returns verified volunteers.
func (s *UserService) ListVolunteers(ctx context.Context) ([]models.User, error) {
	role := models.RoleVolunteer
	verified := true
	return s.list(ctx, models.UserFilter{Role: &role, Verified: &verified})
}

// ListRequesters returns all requesters.
func (s *UserService) ListRequesters(ctx context.Context) ([]models.User, error) {
	role := models.RoleRequester
	return s.list(ctx, models.UserFilter{Role: &role})
}

// ListAdmins returns all admins.
func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	role := models.RoleAdmin
	return s.list(ctx, models.UserFilter{Role: &role})
}

func (s *UserService) list(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "failed to list users")
	}
	return users, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, storeError(err, "failed to load user")
	}
	return user, nil
}

// UpdateLocation stores the user's current position.
func (s *UserService) UpdateLocation(ctx context.Context, id string, req dto.UpdateLocationRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid location payload")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	location := models.Location{Lat: *req.Lat, Lng: *req.Lng, Address: strings.TrimSpace(req.Address), LastUpdated: &now}
	if err := s.repo.UpdateLocation(ctx, id, location, now); err != nil {
		return nil, s.updateError(err)
	}

	old := user.Location
	user.Location = &location
	user.UpdatedAt = now
	s.record(ctx, models.AuditActionUserUpdate, id, map[string]interface{}{"location": old}, map[string]interface{}{"location": location})
	return user, nil
}

// Verify marks a volunteer as verified.
func (s *UserService) Verify(ctx context.Context, id string) (*models.User, error) {
	user, err := s.volunteer(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Verified {
		return user, nil
	}

	now := s.now()
	if err := s.repo.SetVerified(ctx, id, true, now); err != nil {
		return nil, s.updateError(err)
	}
	user.Verified = true
	user.UpdatedAt = now
	s.record(ctx, models.AuditActionUserUpdate, id, map[string]interface{}{"verified": false}, map[string]interface{}{"verified": true})
	return user, nil
}

// SetAvailability toggles whether a volunteer counts as available.
func (s *UserService) SetAvailability(ctx context.Context, id string, req dto.SetAvailabilityRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	user, err := s.volunteer(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	previous := user.IsAvailable()
	if err := s.repo.SetAvailability(ctx, id, *req.Available, now); err != nil {
		return nil, s.updateError(err)
	}
	available := *req.Available
	user.Available = &available
	user.UpdatedAt = now
	s.record(ctx, models.AuditActionUserUpdate, id, map[string]interface{}{"available": previous}, map[string]interface{}{"available": available})
	return user, nil
}

func (s *UserService) volunteer(ctx context.Context, id string) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleVolunteer {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a volunteer")
	}
	return user, nil
}

func (s *UserService) updateError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return storeError(err, "failed to update user")
}

func (s *UserService) record(ctx context.Context, action, userID string, oldValues, newValues map[string]interface{}) {
	if s.audit == nil {
		return
	}
	entry := models.AuditLog{
		Action:     action,
		Resource:   "users",
		ResourceID: &userID,
		CreatedAt:  s.now(),
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	entry.NewValues, _ = json.Marshal(newValues)
	s.audit.Record(ctx, entry)
}
