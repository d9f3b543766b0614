package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"custodian/internal/audit"
	"custodian/internal/category"
	"custodian/internal/category/registry"
	"custodian/internal/retention/metrics"
	"custodian/internal/retention/models"
	"custodian/internal/retention/store"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
	"custodian/pkg/platform/sentinel"
)

// executionCadence is the fixed daily rhythm a policy advances by after a
// successful run.
const executionCadence = 24 * time.Hour

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditor sets the audit publisher for execution events.
func WithAuditor(auditor *audit.Publisher) Option {
	return func(s *Service) { s.auditor = auditor }
}

// Service owns the retention policy lifecycle: administrator CRUD plus the
// scheduled executor that applies due policies to category records.
type Service struct {
	store    store.Store
	registry *registry.Registry
	auditor  *audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService constructs the retention service.
func NewService(policyStore store.Store, reg *registry.Registry, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:    policyStore,
		registry: reg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreatePolicy validates and persists a new retention policy. The policy is
// due immediately; the first scheduled run picks it up.
func (s *Service) CreatePolicy(ctx context.Context, workspaceID id.WorkspaceID, cat category.Category, retentionDays int, action models.Action, conditions map[string]string) (*models.Policy, error) {
	policy, err := models.New(workspaceID, cat, retentionDays, action, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	policy.Conditions = conditions
	if err := s.store.Create(ctx, policy); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to save retention policy")
	}
	return policy, nil
}

// GetPolicy returns one policy scoped by workspace.
func (s *Service) GetPolicy(ctx context.Context, workspaceID id.WorkspaceID, policyID id.PolicyID) (*models.Policy, error) {
	policy, err := s.store.Get(ctx, workspaceID, policyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "retention policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to read retention policy")
	}
	return policy, nil
}

// ListPolicies returns all policies for a workspace.
func (s *Service) ListPolicies(ctx context.Context, workspaceID id.WorkspaceID) ([]*models.Policy, error) {
	policies, err := s.store.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to list retention policies")
	}
	return policies, nil
}

// UpdatePolicy applies administrator edits to retention settings. Execution
// timestamps are owned by the executor and cannot be edited here.
func (s *Service) UpdatePolicy(ctx context.Context, workspaceID id.WorkspaceID, policyID id.PolicyID, retentionDays int, action models.Action, isActive bool) (*models.Policy, error) {
	if retentionDays < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "retention days must be at least 1")
	}
	if !action.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid retention action")
	}
	policy, err := s.GetPolicy(ctx, workspaceID, policyID)
	if err != nil {
		return nil, err
	}
	policy.RetentionDays = retentionDays
	policy.Action = action
	policy.IsActive = isActive
	if err := s.store.Update(ctx, policy); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to update retention policy")
	}
	return policy, nil
}

// Summary reports one ExecuteDuePolicies run.
type Summary struct {
	Executed        int
	Failed          int
	Skipped         int
	RecordsDeleted  int
	RecordsArchived int
}

// ExecuteDuePolicies applies every active policy whose NextExecutionAt has
// passed. Failures are isolated per policy: a failing policy is logged,
// keeps its schedule so the next tick retries it, and never blocks other
// policies. Only a store failure listing due policies is returned.
func (s *Service) ExecuteDuePolicies(ctx context.Context, now time.Time) (Summary, error) {
	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RunDuration.Observe(time.Since(started).Seconds())
		}
	}()

	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeAdapterFailure, "failed to list due retention policies")
	}

	var summary Summary
	for _, policy := range due {
		affected, err := s.executePolicy(ctx, policy, now)
		switch {
		case err == nil:
			summary.Executed++
			if policy.Action == models.ActionArchive {
				summary.RecordsArchived += affected
			} else {
				summary.RecordsDeleted += affected
			}
		case errors.Is(err, sentinel.ErrConflict):
			// Another executor advanced the schedule between read and
			// update; the policy already ran this tick.
			summary.Skipped++
		case errors.Is(err, errUnsupportedCategory):
			summary.Skipped++
			s.logger.Warn("skipping retention policy with unsupported category",
				"policy_id", policy.ID.String(),
				"category", policy.DataCategory.String(),
			)
		default:
			summary.Failed++
			if s.metrics != nil {
				s.metrics.PoliciesFailed.WithLabelValues(policy.DataCategory.String()).Inc()
			}
			s.logger.Error("retention policy execution failed",
				"policy_id", policy.ID.String(),
				"workspace_id", policy.WorkspaceID.String(),
				"category", policy.DataCategory.String(),
				"error", err,
			)
		}
	}
	return summary, nil
}

var errUnsupportedCategory = errors.New("unsupported data category")

// executePolicy applies one policy and, on success, advances its schedule
// conditionally on the NextExecutionAt value read with the policy.
func (s *Service) executePolicy(ctx context.Context, policy *models.Policy, now time.Time) (int, error) {
	handler, ok := s.registry.Lookup(policy.DataCategory)
	if !ok {
		return 0, errUnsupportedCategory
	}

	cutoff := policy.Cutoff(now)
	scope := registry.Scope{
		Workspace:  policy.WorkspaceID,
		OlderThan:  &cutoff,
		Conditions: policy.Conditions,
	}

	var (
		affected int
		err      error
	)
	if policy.Action == models.ActionArchive {
		affected, err = handler.Archive(ctx, scope)
	} else {
		affected, err = handler.Delete(ctx, scope)
	}
	if err != nil {
		return 0, err
	}

	if err := s.store.AdvanceSchedule(ctx, policy.ID, policy.NextExecutionAt, now, now.Add(executionCadence)); err != nil {
		return affected, err
	}

	if s.metrics != nil {
		s.metrics.PoliciesExecuted.WithLabelValues(policy.DataCategory.String(), string(policy.Action)).Inc()
		if policy.Action == models.ActionArchive {
			s.metrics.RecordsArchived.WithLabelValues(policy.DataCategory.String()).Add(float64(affected))
		} else {
			s.metrics.RecordsDeleted.WithLabelValues(policy.DataCategory.String()).Add(float64(affected))
		}
	}
	s.emitAudit(ctx, policy, affected, now)

	s.logger.Info("retention policy executed",
		"policy_id", policy.ID.String(),
		"category", policy.DataCategory.String(),
		"action", string(policy.Action),
		"affected", affected,
	)
	return affected, nil
}

func (s *Service) emitAudit(ctx context.Context, policy *models.Policy, affected int, now time.Time) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		Timestamp:   now,
		WorkspaceID: policy.WorkspaceID.String(),
		Action:      audit.ActionRetentionExecuted,
		Category:    policy.DataCategory.String(),
		Outcome:     audit.OutcomeSucceeded,
	})
}
