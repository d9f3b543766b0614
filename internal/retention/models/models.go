package models

import (
	"time"

	"custodian/internal/category"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// Action is what a retention policy does to records past the cutoff.
type Action string

const (
	ActionDelete  Action = "delete"
	ActionArchive Action = "archive"
)

// IsValid checks if the action is one of the supported enum values.
func (a Action) IsValid() bool {
	return a == ActionDelete || a == ActionArchive
}

// Policy is one workspace-scoped retention rule. Administrators create and
// edit policies; only the retention executor touches the execution
// timestamps. Policies are never auto-deleted.
type Policy struct {
	ID              id.PolicyID
	WorkspaceID     id.WorkspaceID
	DataCategory    category.Category
	RetentionDays   int
	Action          Action
	IsActive        bool
	Conditions      map[string]string
	NextExecutionAt time.Time
	LastExecutedAt  *time.Time
	CreatedAt       time.Time
}

// New creates a Policy with domain invariant checks.
func New(workspaceID id.WorkspaceID, cat category.Category, retentionDays int, action Action, now time.Time) (*Policy, error) {
	if workspaceID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "workspace ID required")
	}
	if !cat.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid data category")
	}
	if retentionDays < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "retention days must be at least 1")
	}
	if !action.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid retention action")
	}
	return &Policy{
		ID:              id.NewPolicyID(),
		WorkspaceID:     workspaceID,
		DataCategory:    cat,
		RetentionDays:   retentionDays,
		Action:          action,
		IsActive:        true,
		NextExecutionAt: now,
		CreatedAt:       now,
	}, nil
}

// Cutoff is the boundary before which records are subject to the policy's
// action.
func (p Policy) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(p.RetentionDays) * 24 * time.Hour)
}

// IsDue reports whether the policy should execute at the given instant.
func (p Policy) IsDue(now time.Time) bool {
	return p.IsActive && !p.NextExecutionAt.After(now)
}
