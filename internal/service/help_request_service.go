package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sos-dispatch-api/internal/dto"
	"github.com/noah-isme/sos-dispatch-api/internal/models"
	"github.com/noah-isme/sos-dispatch-api/internal/repository"
	appErrors "github.com/noah-isme/sos-dispatch-api/pkg/errors"
)

const (
	// ReasonAllDeclined is stored when the last available volunteer declines.
	ReasonAllDeclined = "All volunteers declined"
	// ReasonCancelledByUser is stored when Cancel is called without a reason.
	ReasonCancelledByUser = "Cancelled by user"

	pendingCacheKey = "help_requests:pending"
)

// Lifecycle operation labels used for metrics and logs.
const (
	OperationCreate   = "create"
	OperationAccept   = "accept"
	OperationDecline  = "decline"
	OperationComplete = "complete"
	OperationCancel   = "cancel"
)

type helpRequestStore interface {
	Create(ctx context.Context, req *models.HelpRequest) error
	GetByID(ctx context.Context, id string) (*models.HelpRequest, error)
	List(ctx context.Context, filter models.HelpRequestFilter) ([]models.HelpRequest, error)
	Update(ctx context.Context, req *models.HelpRequest) error
}

type volunteerDirectory interface {
	ListVerifiedAvailable(ctx context.Context) ([]string, error)
}

type identityStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type transitionRecorder interface {
	ObserveTransition(operation, outcome string)
	ObserveAutoCancel()
}

type pendingCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry models.AuditLog)
}

type noopRecorder struct{}

func (noopRecorder) ObserveTransition(string, string)         {}
func (noopRecorder) ObserveAutoCancel()                       {}
func (noopRecorder) RecordCacheOperation(bool, time.Duration) {}
func (noopRecorder) ObserveCacheWrite(time.Duration)          {}

// HelpRequestService owns the help request state machine.
type HelpRequestService struct {
	store     helpRequestStore
	directory volunteerDirectory
	identity  identityStore
	cache     pendingCache
	audit     auditRecorder
	metrics   transitionRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	locks     *keyedMutex

	// cacheGen counts pending-list invalidations. A fill is dropped when a
	// write landed between the store read and the cache write.
	cacheMu  sync.Mutex
	cacheGen uint64
}

// HelpRequestServiceOption configures the service.
type HelpRequestServiceOption func(*HelpRequestService)

// WithHelpRequestClock overrides the timestamp source.
func WithHelpRequestClock(clock func() time.Time) HelpRequestServiceOption {
	return func(s *HelpRequestService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithIdentityStore enables existence checks for requester and volunteer ids.
func WithIdentityStore(identity identityStore) HelpRequestServiceOption {
	return func(s *HelpRequestService) {
		s.identity = identity
	}
}

// WithPendingCache serves ListPending from cache and invalidates it on writes.
func WithPendingCache(cache pendingCache) HelpRequestServiceOption {
	return func(s *HelpRequestService) {
		s.cache = cache
	}
}

// WithAuditRecorder emits an audit entry for every successful transition.
func WithAuditRecorder(audit auditRecorder) HelpRequestServiceOption {
	return func(s *HelpRequestService) {
		s.audit = audit
	}
}

// WithTransitionMetrics records operation outcomes.
func WithTransitionMetrics(metrics transitionRecorder) HelpRequestServiceOption {
	return func(s *HelpRequestService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithHelpRequestValidator overrides the payload validator.
func WithHelpRequestValidator(validate *validator.Validate) HelpRequestServiceOption {
	return func(s *HelpRequestService) {
		if validate != nil {
			s.validator = validate
		}
	}
}

// NewHelpRequestService constructs the lifecycle engine.
func NewHelpRequestService(store helpRequestStore, directory volunteerDirectory, logger *zap.Logger, opts ...HelpRequestServiceOption) *HelpRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &HelpRequestService{
		store:     store,
		directory: directory,
		metrics:   noopRecorder{},
		validator: validator.New(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create records a new pending help request.
func (s *HelpRequestService) Create(ctx context.Context, req dto.CreateHelpRequest) (result *models.HelpRequest, err error) {
	defer s.observe(OperationCreate, &err)

	req.RequesterID = strings.TrimSpace(req.RequesterID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "requester_id and location are required")
	}
	if err := s.ensureUser(ctx, req.RequesterID, "requester not found"); err != nil {
		return nil, err
	}

	location := *req.Location
	request := &models.HelpRequest{
		ID:          uuid.NewString(),
		RequesterID: req.RequesterID,
		Location:    &location,
		Status:      models.HelpRequestStatusPending,
		DeclinedBy:  models.VolunteerSet{},
		CreatedAt:   s.now(),
	}
	if err := s.store.Create(ctx, request); err != nil {
		return nil, storeError(err, "failed to create help request")
	}

	s.afterWrite(ctx, models.AuditActionHelpRequestCreate, req.RequesterID, nil, request)
	s.logger.Info("help request created", zap.String("request_id", request.ID), zap.String("requester_id", request.RequesterID))
	return request, nil
}

// Accept assigns a pending request to the volunteer.
func (s *HelpRequestService) Accept(ctx context.Context, requestID, volunteerID string) (result *models.HelpRequest, err error) {
	defer s.observe(OperationAccept, &err)

	requestID, volunteerID, err = s.volunteerAction(ctx, requestID, volunteerID)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, requestID, models.AuditActionHelpRequestAccept, volunteerID, func(req *models.HelpRequest) (bool, error) {
		if req.Status != models.HelpRequestStatusPending {
			return false, appErrors.Clone(appErrors.ErrConflict, "request already handled")
		}
		now := s.now()
		req.Status = models.HelpRequestStatusAccepted
		req.AssignedVolunteer = &volunteerID
		req.AcceptedAt = &now
		return true, nil
	})
}

// Decline records that the volunteer passed on the request. When every
// verified and available volunteer has declined, the request is cancelled.
func (s *HelpRequestService) Decline(ctx context.Context, requestID, volunteerID string) (result *models.HelpRequest, err error) {
	defer s.observe(OperationDecline, &err)

	requestID, volunteerID, err = s.volunteerAction(ctx, requestID, volunteerID)
	if err != nil {
		return nil, err
	}

	autoCancelled := false
	result, err = s.transition(ctx, requestID, models.AuditActionHelpRequestDecline, volunteerID, func(req *models.HelpRequest) (bool, error) {
		if req.Status != models.HelpRequestStatusPending {
			return false, appErrors.Clone(appErrors.ErrConflict, "request already handled")
		}
		added := req.DeclinedBy.Add(volunteerID)

		available, err := s.directory.ListVerifiedAvailable(ctx)
		if err != nil {
			return false, storeError(err, "failed to load available volunteers")
		}
		if req.DeclinedBy.ContainsAll(available) {
			now := s.now()
			reason := ReasonAllDeclined
			req.Status = models.HelpRequestStatusCancelled
			req.CancelReason = &reason
			req.CancelledAt = &now
			autoCancelled = true
			return true, nil
		}
		return added, nil
	})
	if err == nil && autoCancelled {
		s.metrics.ObserveAutoCancel()
		s.logger.Info("help request cancelled after all volunteers declined", zap.String("request_id", requestID))
	}
	return result, err
}

// Complete closes an accepted request.
func (s *HelpRequestService) Complete(ctx context.Context, requestID string) (result *models.HelpRequest, err error) {
	defer s.observe(OperationComplete, &err)

	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request id is required")
	}

	return s.transition(ctx, requestID, models.AuditActionHelpRequestComplete, "", func(req *models.HelpRequest) (bool, error) {
		if req.Status != models.HelpRequestStatusAccepted {
			return false, appErrors.Clone(appErrors.ErrConflict, "request not accepted yet")
		}
		now := s.now()
		req.Status = models.HelpRequestStatusCompleted
		req.CompletedAt = &now
		return true, nil
	})
}

// Cancel moves the request to cancelled from any state. A request that is
// already cancelled is returned as stored.
func (s *HelpRequestService) Cancel(ctx context.Context, requestID, reason string) (result *models.HelpRequest, err error) {
	defer s.observe(OperationCancel, &err)

	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ReasonCancelledByUser
	}

	return s.transition(ctx, requestID, models.AuditActionHelpRequestCancel, "", func(req *models.HelpRequest) (bool, error) {
		if req.Status == models.HelpRequestStatusCancelled {
			return false, nil
		}
		now := s.now()
		req.Status = models.HelpRequestStatusCancelled
		req.CancelReason = &reason
		req.CancelledAt = &now
		return true, nil
	})
}

// ListPending returns pending requests, oldest first.
func (s *HelpRequestService) ListPending(ctx context.Context) ([]models.HelpRequest, error) {
	if s.cache != nil {
		var cached []models.HelpRequest
		if hit, err := s.cache.Get(ctx, pendingCacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	gen := s.pendingGeneration()
	items, err := s.store.List(ctx, models.HelpRequestFilter{Status: []models.HelpRequestStatus{models.HelpRequestStatusPending}})
	if err != nil {
		return nil, storeError(err, "failed to list pending help requests")
	}
	sortByCreation(items)

	s.fillPendingCache(ctx, gen, items)
	return items, nil
}

func (s *HelpRequestService) pendingGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cacheGen
}

// fillPendingCache stores items read at generation gen unless a write has
// invalidated the list since.
func (s *HelpRequestService) fillPendingCache(ctx context.Context, gen uint64, items []models.HelpRequest) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheGen != gen {
		s.logger.Debug("pending cache fill skipped after concurrent write")
		return
	}
	if err := s.cache.Set(ctx, pendingCacheKey, items, 0); err != nil {
		s.logger.Debug("pending cache not refreshed", zap.Error(err))
	}
}

func (s *HelpRequestService) invalidatePending(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen++
	if err := s.cache.Invalidate(ctx, pendingCacheKey); err != nil {
		s.logger.Warn("failed to invalidate pending cache", zap.Error(err))
	}
}

// Get returns a single help request.
func (s *HelpRequestService) Get(ctx context.Context, requestID string) (*models.HelpRequest, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request id is required")
	}
	req, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, loadError(err)
	}
	return req, nil
}

// List returns help requests matching filter.
func (s *HelpRequestService) List(ctx context.Context, filter models.HelpRequestFilter) ([]models.HelpRequest, error) {
	for _, status := range filter.Status {
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter: "+string(status))
		}
	}
	items, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "failed to list help requests")
	}
	sortByCreation(items)
	return items, nil
}

func (s *HelpRequestService) volunteerAction(ctx context.Context, requestID, volunteerID string) (string, string, error) {
	requestID = strings.TrimSpace(requestID)
	volunteerID = strings.TrimSpace(volunteerID)
	if requestID == "" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "request id is required")
	}
	if volunteerID == "" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "volunteer_id is required")
	}
	if err := s.ensureUser(ctx, volunteerID, "volunteer not found"); err != nil {
		return "", "", err
	}
	return requestID, volunteerID, nil
}

// transition runs mutate under the request's lock and persists the result with
// a version check. mutate reports whether anything changed; an unchanged
// request is returned without a write.
func (s *HelpRequestService) transition(ctx context.Context, requestID, action, actorID string, mutate func(*models.HelpRequest) (bool, error)) (*models.HelpRequest, error) {
	unlock := s.locks.Lock(requestID)
	defer unlock()

	current, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, loadError(err)
	}

	before := current.Clone()
	changed, err := mutate(current)
	if err != nil {
		return nil, err
	}
	if !changed {
		return before, nil
	}

	if err := s.store.Update(ctx, current); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "request modified concurrently")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "help request not found")
		}
		return nil, storeError(err, "failed to update help request")
	}

	s.afterWrite(ctx, action, actorID, before, current)
	s.logger.Info("help request transitioned",
		zap.String("request_id", current.ID),
		zap.String("from", string(before.Status)),
		zap.String("to", string(current.Status)),
	)
	return current, nil
}

func (s *HelpRequestService) ensureUser(ctx context.Context, id, notFound string) error {
	if s.identity == nil {
		return nil
	}
	if _, err := s.identity.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, notFound)
		}
		return storeError(err, "failed to resolve user")
	}
	return nil
}

func (s *HelpRequestService) afterWrite(ctx context.Context, action, actorID string, before, after *models.HelpRequest) {
	s.invalidatePending(ctx)
	if s.audit == nil {
		return
	}

	entry := models.AuditLog{
		Action:     action,
		Resource:   "help_requests",
		ResourceID: &after.ID,
		CreatedAt:  s.now(),
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	var err error
	if before != nil {
		if entry.OldValues, err = json.Marshal(before); err != nil {
			s.logger.Warn("audit snapshot encode failed", zap.String("request_id", after.ID), zap.String("side", "old"), zap.Error(err))
		}
	}
	if entry.NewValues, err = json.Marshal(after); err != nil {
		s.logger.Warn("audit snapshot encode failed", zap.String("request_id", after.ID), zap.String("side", "new"), zap.Error(err))
	}
	s.audit.Record(ctx, entry)
}

func (s *HelpRequestService) observe(operation string, err *error) {
	s.metrics.ObserveTransition(operation, outcomeOf(*err))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case appErrors.Is(err, appErrors.ErrConflict):
		return OutcomeConflict
	case appErrors.Is(err, appErrors.ErrNotFound):
		return OutcomeNotFound
	case appErrors.Is(err, appErrors.ErrValidation):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

func loadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "help request not found")
	}
	return storeError(err, "failed to load help request")
}

func storeError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, message)
}

func sortByCreation(items []models.HelpRequest) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
