package store

import (
	"context"
	"time"

	"custodian/internal/retention/models"
	id "custodian/pkg/domain"
)

// Error Contract:
// - Get and AdvanceSchedule return sentinel.ErrNotFound when no policy matches
// - AdvanceSchedule returns sentinel.ErrConflict when the observed
//   NextExecutionAt no longer matches, meaning another executor got there first
type Store interface {
	Create(ctx context.Context, policy *models.Policy) error
	Get(ctx context.Context, workspaceID id.WorkspaceID, policyID id.PolicyID) (*models.Policy, error)
	ListByWorkspace(ctx context.Context, workspaceID id.WorkspaceID) ([]*models.Policy, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Policy, error)
	Update(ctx context.Context, policy *models.Policy) error

	// AdvanceSchedule is the concurrency guard against duplicate same-tick
	// execution: it updates the execution timestamps only if NextExecutionAt
	// still equals the value the executor read.
	AdvanceSchedule(ctx context.Context, policyID id.PolicyID, observedNext time.Time, lastExecuted time.Time, nextExecution time.Time) error
}
