package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sos-dispatch-api/internal/models"
	"github.com/noah-isme/sos-dispatch-api/pkg/jobs"
	"github.com/noah-isme/sos-dispatch-api/pkg/middleware/requestid"
)

const auditJobType = "audit_log"

type auditQueue interface {
	Enqueue(job jobs.Job) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService hands audit entries to a background queue so transitions never
// wait on the audit table.
type AuditService struct {
	queue  auditQueue
	logger *zap.Logger
}

// NewAuditService constructs the service. A nil queue logs entries instead.
func NewAuditService(queue auditQueue, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{queue: queue, logger: logger}
}

// Record enqueues entry. Failures are logged and never surface to callers.
func (s *AuditService) Record(ctx context.Context, entry models.AuditLog) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if s.queue == nil {
		s.logEntry(ctx, entry)
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: entry.ID, Type: auditJobType, Payload: entry}); err != nil {
		s.logger.Warn("audit entry not queued", zap.String("audit_id", entry.ID), zap.Error(err))
		s.logEntry(ctx, entry)
	}
}

func (s *AuditService) logEntry(ctx context.Context, entry models.AuditLog) {
	fields := []zap.Field{
		zap.String("audit_id", entry.ID),
		zap.String("action", entry.Action),
		zap.String("resource", entry.Resource),
	}
	if entry.ResourceID != nil {
		fields = append(fields, zap.String("resource_id", *entry.ResourceID))
	}
	if entry.UserID != nil {
		fields = append(fields, zap.String("actor_id", *entry.UserID))
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	s.logger.Info("audit", fields...)
}

// AuditWorker persists queued audit entries.
type AuditWorker struct {
	repo   auditWriter
	logger *zap.Logger
}

// NewAuditWorker constructs the worker.
func NewAuditWorker(repo auditWriter, logger *zap.Logger) *AuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditWorker{repo: repo, logger: logger}
}

// Handle implements jobs.Handler.
func (w *AuditWorker) Handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.AuditLog)
	if !ok {
		w.logger.Error("unexpected audit payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	if err := w.repo.CreateAuditLog(ctx, &entry); err != nil {
		return fmt.Errorf("persist audit entry %s: %w", entry.ID, err)
	}
	return nil
}
