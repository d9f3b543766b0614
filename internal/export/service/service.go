package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"custodian/internal/artifacts"
	"custodian/internal/audit"
	"custodian/internal/category"
	"custodian/internal/category/registry"
	"custodian/internal/export/metrics"
	"custodian/internal/export/models"
	"custodian/internal/export/serializer"
	"custodian/internal/export/store"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
	"custodian/pkg/platform/sentinel"
)

const (
	defaultExportTTL = 7 * 24 * time.Hour
	defaultStaleness = time.Hour
	defaultQueueSize = 64
)

// Scope describes what an export request covers.
type Scope struct {
	WorkspaceID    id.WorkspaceID
	RequestType    models.RequestType
	Format         models.Format
	DataCategories []category.Category
	SubjectID      string
	DateFrom       *time.Time
	DateTo         *time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditor sets the audit publisher for export lifecycle events.
func WithAuditor(auditor *audit.Publisher) Option {
	return func(s *Service) { s.auditor = auditor }
}

// WithExportTTL overrides how long completed artifacts remain downloadable.
func WithExportTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.exportTTL = ttl
		}
	}
}

// WithStaleness overrides the window after which Pending requests are
// re-enqueued and Processing requests are considered stuck.
func WithStaleness(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.staleness = window
		}
	}
}

// WithQueueSize overrides the processing queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queue = make(chan id.ExportRequestID, size)
		}
	}
}

// Service runs the export pipeline: request intake, asynchronous
// materialization into an artifact, and artifact expiry.
type Service struct {
	store     store.Store
	artifacts artifacts.Store
	registry  *registry.Registry
	auditor   *audit.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	exportTTL time.Duration
	staleness time.Duration
	queue     chan id.ExportRequestID
}

// NewService constructs the export service.
func NewService(requestStore store.Store, artifactStore artifacts.Store, reg *registry.Registry, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:     requestStore,
		artifacts: artifactStore,
		registry:  reg,
		logger:    logger,
		tracer:    otel.Tracer("custodian/export"),
		exportTTL: defaultExportTTL,
		staleness: defaultStaleness,
		queue:     make(chan id.ExportRequestID, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create validates and persists a new export request in Pending, then hands
// it to the worker. A full queue is not an error: the pending re-enqueue
// sweep picks the request up on a later tick.
func (s *Service) Create(ctx context.Context, scope Scope) (*models.Request, error) {
	request, err := models.New(scope.WorkspaceID, scope.RequestType, scope.Format, scope.DataCategories, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if scope.DateFrom != nil && scope.DateTo != nil && scope.DateFrom.After(*scope.DateTo) {
		return nil, dErrors.New(dErrors.CodeValidation, "date window start must not be after its end")
	}
	request.SubjectID = scope.SubjectID
	request.DateFrom = scope.DateFrom
	request.DateTo = scope.DateTo

	if err := s.store.Create(ctx, request); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to save export request")
	}
	if s.metrics != nil {
		s.metrics.RequestsCreated.WithLabelValues(string(request.Format)).Inc()
	}
	s.enqueue(request.ID)
	return request, nil
}

// GetRequest returns one export request scoped by workspace.
func (s *Service) GetRequest(ctx context.Context, workspaceID id.WorkspaceID, requestID id.ExportRequestID) (*models.Request, error) {
	request, err := s.store.Get(ctx, workspaceID, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "export request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to read export request")
	}
	return request, nil
}

// ListRequests returns all export requests for a workspace.
func (s *Service) ListRequests(ctx context.Context, workspaceID id.WorkspaceID) ([]*models.Request, error) {
	requests, err := s.store.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to list export requests")
	}
	return requests, nil
}

// ReadArtifact streams back a completed export's artifact.
func (s *Service) ReadArtifact(ctx context.Context, workspaceID id.WorkspaceID, requestID id.ExportRequestID) ([]byte, models.Format, error) {
	request, err := s.GetRequest(ctx, workspaceID, requestID)
	if err != nil {
		return nil, "", err
	}
	if request.Status != models.StatusCompleted || request.FileLocator == nil {
		return nil, "", dErrors.New(dErrors.CodeIllegalTransition, "export artifact is not available")
	}
	data, err := s.artifacts.Read(ctx, *request.FileLocator)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, "", dErrors.New(dErrors.CodeNotFound, "export artifact no longer exists")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to read export artifact")
	}
	return data, request.Format, nil
}

// StartWorker consumes the processing queue until ctx is cancelled.
func (s *Service) StartWorker(ctx context.Context) error {
	for {
		select {
		case requestID := <-s.queue:
			if err := s.Process(ctx, requestID); err != nil {
				s.logger.ErrorContext(ctx, "export processing failed",
					"request_id", requestID.String(),
					"error", err,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Process materializes one export request. The Processing status is
// persisted before any fetch so a crash mid-flight leaves an inspectable
// state instead of a silently half-done request. A fetch or write failure
// marks the request Failed with the reason; the export is all-or-nothing.
func (s *Service) Process(ctx context.Context, requestID id.ExportRequestID) error {
	ctx, span := s.tracer.Start(ctx, "export.Process",
		trace.WithAttributes(attribute.String("request_id", requestID.String())))
	var spanErr error
	defer func() {
		if spanErr != nil {
			span.RecordError(spanErr)
			span.SetStatus(codes.Error, spanErr.Error())
		}
		span.End()
	}()

	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ProcessDuration.Observe(time.Since(started).Seconds())
		}
	}()

	request, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			spanErr = dErrors.New(dErrors.CodeNotFound, "export request not found")
			return spanErr
		}
		spanErr = dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to read export request")
		return spanErr
	}

	if err := request.TransitionTo(models.StatusProcessing); err != nil {
		spanErr = err
		return err
	}
	now := time.Now().UTC()
	request.StartedAt = &now
	if err := s.store.Update(ctx, request); err != nil {
		spanErr = dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to mark export request processing")
		return spanErr
	}

	sections, err := s.fetchSections(ctx, request)
	if err != nil {
		spanErr = s.fail(ctx, request, err)
		return spanErr
	}

	payload, err := serializer.Serialize(request.Format, sections)
	if err != nil {
		spanErr = s.fail(ctx, request, err)
		return spanErr
	}

	locator, err := s.artifacts.Write(ctx, payload)
	if err != nil {
		spanErr = s.fail(ctx, request, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to write export artifact"))
		return spanErr
	}

	completed := time.Now().UTC()
	size := int64(len(payload))
	expires := completed.Add(s.exportTTL)
	request.FileLocator = &locator
	request.FileSizeBytes = &size
	request.CompletedAt = &completed
	request.ExpiresAt = &expires
	if err := request.TransitionTo(models.StatusCompleted); err != nil {
		spanErr = err
		return err
	}
	if err := s.store.Update(ctx, request); err != nil {
		spanErr = dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to mark export request completed")
		return spanErr
	}

	if s.metrics != nil {
		s.metrics.RequestsCompleted.Inc()
		s.metrics.ArtifactBytes.Observe(float64(size))
	}
	s.emitAudit(ctx, request, audit.ActionExportCompleted, audit.OutcomeSucceeded, "")
	s.logger.Info("export request completed",
		"request_id", request.ID.String(),
		"workspace_id", request.WorkspaceID.String(),
		"format", string(request.Format),
		"bytes", size,
	)
	return nil
}

// fetchSections gathers every requested category concurrently. Any category
// failure aborts the whole fetch: a partial export would misrepresent the
// subject's data.
func (s *Service) fetchSections(ctx context.Context, request *models.Request) ([]serializer.Section, error) {
	sections := make([]serializer.Section, len(request.DataCategories))
	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range request.DataCategories {
		handler, ok := s.registry.Lookup(cat)
		if !ok {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("no handler registered for category %s", cat))
		}
		g.Go(func() error {
			fetched, err := handler.Fetch(gctx, registry.Scope{
				Workspace: request.WorkspaceID,
				SubjectID: request.SubjectID,
				From:      request.DateFrom,
				To:        request.DateTo,
			})
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeAdapterFailure, fmt.Sprintf("failed to fetch category %s", cat))
			}
			sections[i] = serializer.Section{Category: cat, Records: fetched}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sections, nil
}

// fail records the terminal failure on the request. Every Failed request
// carries a human-readable reason.
func (s *Service) fail(ctx context.Context, request *models.Request, reason error) error {
	message := reason.Error()
	request.Error = &message
	if err := request.TransitionTo(models.StatusFailed); err != nil {
		return err
	}
	if err := s.store.Update(ctx, request); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist export failure",
			"request_id", request.ID.String(),
			"error", err,
		)
	}
	if s.metrics != nil {
		s.metrics.RequestsFailed.Inc()
	}
	s.emitAudit(ctx, request, audit.ActionExportFailed, audit.OutcomeFailed, message)
	return reason
}

// CleanupExpired destroys the artifacts of completed requests whose TTL has
// lapsed and transitions the records to Expired. Safe to re-run: an already
// cleared locator is skipped and Expired requests are never selected again.
func (s *Service) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to list expired export requests")
	}

	cleaned := 0
	var errs []error
	for _, request := range expired {
		if request.FileLocator != nil {
			if err := s.artifacts.Delete(ctx, *request.FileLocator); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
				errs = append(errs, fmt.Errorf("delete artifact for request %s: %w", request.ID, err))
				continue
			}
			request.FileLocator = nil
		}
		if err := request.TransitionTo(models.StatusExpired); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.store.Update(ctx, request); err != nil {
			errs = append(errs, fmt.Errorf("persist expiry for request %s: %w", request.ID, err))
			continue
		}
		cleaned++
		if s.metrics != nil {
			s.metrics.RequestsExpired.Inc()
		}
		s.emitAudit(ctx, request, audit.ActionExportExpired, audit.OutcomeSucceeded, "")
	}
	if len(errs) > 0 {
		return cleaned, errors.Join(errs...)
	}
	return cleaned, nil
}

// RequeueStalePending re-enqueues Pending requests that never reached the
// worker, recovering from crashes between creation and processing.
func (s *Service) RequeueStalePending(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.store.ListStatusOlderThan(ctx, models.StatusPending, now.Add(-s.staleness))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to list stale pending export requests")
	}
	for _, request := range stale {
		s.enqueue(request.ID)
	}
	if len(stale) > 0 && s.metrics != nil {
		s.metrics.RequestsRequeued.Add(float64(len(stale)))
	}
	return len(stale), nil
}

// ListStuck surfaces requests sitting in Processing past the staleness
// window. They are never auto-retried: re-processing could double-write
// artifacts, so an operator decides via Redrive.
func (s *Service) ListStuck(ctx context.Context, now time.Time) ([]*models.Request, error) {
	stuck, err := s.store.ListStatusOlderThan(ctx, models.StatusProcessing, now.Add(-s.staleness))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to list stuck export requests")
	}
	return stuck, nil
}

// Redrive returns a stuck Processing request to Pending and re-enqueues it.
// Rejected while the request is younger than the staleness window.
func (s *Service) Redrive(ctx context.Context, workspaceID id.WorkspaceID, requestID id.ExportRequestID) (*models.Request, error) {
	request, err := s.GetRequest(ctx, workspaceID, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.StatusProcessing {
		return nil, dErrors.New(dErrors.CodeIllegalTransition, "only processing requests can be re-driven")
	}
	if request.StartedAt != nil && time.Since(*request.StartedAt) < s.staleness {
		return nil, dErrors.New(dErrors.CodeConflict, "request is still within the staleness window")
	}
	if err := request.TransitionTo(models.StatusPending); err != nil {
		return nil, err
	}
	request.Error = nil
	request.StartedAt = nil
	if err := s.store.Update(ctx, request); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to re-drive export request")
	}
	s.enqueue(request.ID)
	return request, nil
}

func (s *Service) enqueue(requestID id.ExportRequestID) {
	select {
	case s.queue <- requestID:
	default:
		s.logger.Warn("export queue full, deferring to requeue sweep",
			"request_id", requestID.String(),
		)
	}
}

func (s *Service) emitAudit(ctx context.Context, request *models.Request, action, outcome, reason string) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		WorkspaceID: request.WorkspaceID.String(),
		SubjectID:   request.SubjectID,
		Action:      action,
		Outcome:     outcome,
		Reason:      reason,
	})
}
