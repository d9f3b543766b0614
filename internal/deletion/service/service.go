package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"custodian/internal/audit"
	"custodian/internal/category"
	"custodian/internal/category/registry"
	"custodian/internal/deletion/metrics"
	"custodian/internal/deletion/models"
	"custodian/internal/deletion/store"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
	"custodian/pkg/platform/sentinel"
)

const defaultQueueSize = 64

// Scope describes what a deletion request covers.
type Scope struct {
	WorkspaceID    id.WorkspaceID
	RequestType    models.RequestType
	DataCategories []category.Category
	SubjectID      string
	DateFrom       *time.Time
	DateTo         *time.Time
	Conditions     map[string]string
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditor sets the audit publisher for workflow events.
func WithAuditor(auditor *audit.Publisher) Option {
	return func(s *Service) { s.auditor = auditor }
}

// WithQueueSize overrides the execution queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queue = make(chan id.DeletionRequestID, size)
		}
	}
}

// Service runs the approval-gated deletion workflow: request intake, the
// approve/reject decision, and best-effort per-category bulk execution.
type Service struct {
	store    store.Store
	registry *registry.Registry
	auditor  *audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	queue    chan id.DeletionRequestID
}

// NewService constructs the deletion service.
func NewService(requestStore store.Store, reg *registry.Registry, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:    requestStore,
		registry: reg,
		logger:   logger,
		queue:    make(chan id.DeletionRequestID, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create validates and persists a new deletion request. With approval
// required the request waits in PendingApproval; otherwise it is Scheduled
// and the next sweep (or the worker, when already due) executes it.
func (s *Service) Create(ctx context.Context, scope Scope, requiresApproval bool, scheduledFor *time.Time) (*models.Request, error) {
	now := time.Now().UTC()
	request, err := models.New(scope.WorkspaceID, scope.RequestType, scope.DataCategories, requiresApproval, scheduledFor, now)
	if err != nil {
		return nil, err
	}
	if scope.DateFrom != nil && scope.DateTo != nil && scope.DateFrom.After(*scope.DateTo) {
		return nil, dErrors.New(dErrors.CodeValidation, "date window start must not be after its end")
	}
	request.SubjectID = scope.SubjectID
	request.DateFrom = scope.DateFrom
	request.DateTo = scope.DateTo
	request.Conditions = scope.Conditions

	if err := s.store.Create(ctx, request); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to save deletion request")
	}
	if s.metrics != nil {
		s.metrics.RequestsCreated.WithLabelValues(string(request.RequestType)).Inc()
	}
	if request.Status == models.StatusScheduled && request.IsDue(now) {
		s.enqueue(request.ID)
	}
	return request, nil
}

// GetRequest returns one deletion request scoped by workspace.
func (s *Service) GetRequest(ctx context.Context, workspaceID id.WorkspaceID, requestID id.DeletionRequestID) (*models.Request, error) {
	request, err := s.store.Get(ctx, workspaceID, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "deletion request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to read deletion request")
	}
	return request, nil
}

// ListRequests returns all deletion requests for a workspace.
func (s *Service) ListRequests(ctx context.Context, workspaceID id.WorkspaceID) ([]*models.Request, error) {
	requests, err := s.store.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to list deletion requests")
	}
	return requests, nil
}

// Approve moves a PendingApproval request to Approved, recording the
// approver. A request already due is enqueued for immediate execution.
func (s *Service) Approve(ctx context.Context, workspaceID id.WorkspaceID, requestID id.DeletionRequestID, approverID string) (*models.Request, error) {
	if approverID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "approver ID required")
	}
	request, err := s.GetRequest(ctx, workspaceID, requestID)
	if err != nil {
		return nil, err
	}
	if err := request.TransitionTo(models.StatusApproved); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	request.ApproverID = &approverID
	request.ApprovedAt = &now
	if err := s.store.Update(ctx, request); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to approve deletion request")
	}

	if s.metrics != nil {
		s.metrics.RequestsApproved.Inc()
	}
	s.emitAudit(ctx, request, audit.ActionDeletionApproved, audit.OutcomeSucceeded, "")
	if request.IsDue(now) {
		s.enqueue(request.ID)
	}
	return request, nil
}

// Reject terminally declines a PendingApproval request. The reason is
// mandatory: every rejected request must be inspectable.
func (s *Service) Reject(ctx context.Context, workspaceID id.WorkspaceID, requestID id.DeletionRequestID, rejecterID, reason string) (*models.Request, error) {
	if rejecterID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejecter ID required")
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejection reason required")
	}
	request, err := s.GetRequest(ctx, workspaceID, requestID)
	if err != nil {
		return nil, err
	}
	if err := request.TransitionTo(models.StatusRejected); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	request.RejecterID = &rejecterID
	request.RejectedAt = &now
	request.RejectionReason = &reason
	if err := s.store.Update(ctx, request); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to reject deletion request")
	}

	if s.metrics != nil {
		s.metrics.RequestsRejected.Inc()
	}
	s.emitAudit(ctx, request, audit.ActionDeletionRejected, audit.OutcomeFailed, reason)
	return request, nil
}

// StartWorker consumes the execution queue until ctx is cancelled.
func (s *Service) StartWorker(ctx context.Context) error {
	for {
		select {
		case requestID := <-s.queue:
			if err := s.Execute(ctx, requestID); err != nil {
				s.logger.ErrorContext(ctx, "deletion execution failed",
					"request_id", requestID.String(),
					"error", err,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ProcessDue executes every Approved or Scheduled request whose ScheduledFor
// has passed. Failures are isolated per request.
func (s *Service) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to list due deletion requests")
	}
	executed := 0
	for _, request := range due {
		if err := s.Execute(ctx, request.ID); err != nil {
			// Already-picked-up requests surface as illegal transitions;
			// they are not failures of this sweep.
			if dErrors.HasCode(err, dErrors.CodeIllegalTransition) {
				continue
			}
			s.logger.ErrorContext(ctx, "deletion execution failed during sweep",
				"request_id", request.ID.String(),
				"error", err,
			)
			continue
		}
		executed++
	}
	return executed, nil
}

// Execute runs the bulk deletion for one request. Processing is persisted
// before any category work so a crash leaves an inspectable state. Each
// category is attempted regardless of earlier failures; outcomes land on the
// audit log in attempt order. The request ends Completed only when every
// category succeeded, otherwise Failed with partial counts.
func (s *Service) Execute(ctx context.Context, requestID id.DeletionRequestID) error {
	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ExecuteDuration.Observe(time.Since(started).Seconds())
		}
	}()

	request, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "deletion request not found")
		}
		return dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to read deletion request")
	}

	if err := request.TransitionTo(models.StatusProcessing); err != nil {
		return err
	}
	if err := s.store.Update(ctx, request); err != nil {
		return dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to mark deletion request processing")
	}

	scope := registry.Scope{
		Workspace:  request.WorkspaceID,
		SubjectID:  request.SubjectID,
		From:       request.DateFrom,
		To:         request.DateTo,
		Conditions: request.Conditions,
	}

	for _, cat := range request.DataCategories {
		s.executeCategory(ctx, request, cat, scope)
	}

	now := time.Now().UTC()
	request.ExecutedAt = &now
	outcome := audit.OutcomeSucceeded
	next := models.StatusCompleted
	if request.ItemsFailed > 0 {
		next = models.StatusFailed
		outcome = audit.OutcomePartial
		if request.ItemsDeleted == 0 {
			outcome = audit.OutcomeFailed
		}
	}
	if err := request.TransitionTo(next); err != nil {
		return err
	}
	if err := s.store.Update(ctx, request); err != nil {
		return dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to finalize deletion request")
	}

	if s.metrics != nil {
		s.metrics.RequestsExecuted.WithLabelValues(string(next)).Inc()
	}
	s.emitAudit(ctx, request, audit.ActionDeletionExecuted, outcome, "")
	s.logger.Info("deletion request executed",
		"request_id", request.ID.String(),
		"workspace_id", request.WorkspaceID.String(),
		"status", string(next),
		"categories_deleted", request.ItemsDeleted,
		"categories_failed", request.ItemsFailed,
		"records_deleted", request.RecordsDeleted(),
	)
	return nil
}

// executeCategory attempts one category and appends its audit entry. A
// category failure never aborts the remaining categories: deletion is a
// best-effort bulk operation, unlike export.
func (s *Service) executeCategory(ctx context.Context, request *models.Request, cat category.Category, scope registry.Scope) {
	now := time.Now().UTC()
	handler, ok := s.registry.Lookup(cat)
	if !ok {
		request.ItemsFailed++
		request.AuditLog = append(request.AuditLog, models.AuditEntry{
			Category:  cat,
			Error:     "no handler registered for category",
			Timestamp: now,
		})
		if s.metrics != nil {
			s.metrics.CategoriesFailed.WithLabelValues(cat.String()).Inc()
		}
		return
	}

	deleted, err := handler.Delete(ctx, scope)
	if err != nil {
		request.ItemsFailed++
		request.AuditLog = append(request.AuditLog, models.AuditEntry{
			Category:  cat,
			Error:     err.Error(),
			Timestamp: now,
		})
		if s.metrics != nil {
			s.metrics.CategoriesFailed.WithLabelValues(cat.String()).Inc()
		}
		s.logger.Warn("category deletion failed",
			"request_id", request.ID.String(),
			"category", cat.String(),
			"error", err,
		)
		return
	}

	request.ItemsDeleted++
	request.AuditLog = append(request.AuditLog, models.AuditEntry{
		Category:     cat,
		DeletedCount: deleted,
		Timestamp:    now,
	})
	if s.metrics != nil {
		s.metrics.RecordsDeleted.WithLabelValues(cat.String()).Add(float64(deleted))
	}
}

func (s *Service) enqueue(requestID id.DeletionRequestID) {
	select {
	case s.queue <- requestID:
	default:
		s.logger.Warn("deletion queue full, deferring to scheduled sweep",
			"request_id", requestID.String(),
		)
	}
}

func (s *Service) emitAudit(ctx context.Context, request *models.Request, action, outcome, reason string) {
	if s.auditor == nil {
		return
	}
	actor := ""
	if request.ApproverID != nil {
		actor = *request.ApproverID
	}
	if action == audit.ActionDeletionRejected && request.RejecterID != nil {
		actor = *request.RejecterID
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		WorkspaceID: request.WorkspaceID.String(),
		SubjectID:   request.SubjectID,
		Actor:       actor,
		Action:      action,
		Outcome:     outcome,
		Reason:      reason,
	})
}
