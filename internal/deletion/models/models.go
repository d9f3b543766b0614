package models

import (
	"fmt"
	"time"

	"custodian/internal/category"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// RequestType is the legal basis under which a deletion is requested.
type RequestType string

const (
	TypeErasure      RequestType = "erasure"
	TypeCCPADeletion RequestType = "ccpa_deletion"
	TypeRetention    RequestType = "retention_request"
)

// IsValid checks if the request type is one of the supported enum values.
func (t RequestType) IsValid() bool {
	return t == TypeErasure || t == TypeCCPADeletion || t == TypeRetention
}

// Status is the deletion request lifecycle state.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusScheduled       Status = "scheduled"
	StatusProcessing      Status = "processing"
	StatusCompleted       Status = "completed"
	StatusRejected        Status = "rejected"
	StatusFailed          Status = "failed"
)

// transitions is the closed transition table; status writes outside it are
// rejected with CodeIllegalTransition. Rejected, Completed and Failed are
// terminal.
var transitions = map[Status][]Status{
	StatusPendingApproval: {StatusApproved, StatusRejected},
	StatusApproved:        {StatusProcessing},
	StatusScheduled:       {StatusProcessing},
	StatusProcessing:      {StatusCompleted, StatusFailed},
}

// AuditEntry is one per-category outcome appended during execution, in the
// order categories were attempted.
type AuditEntry struct {
	Category     category.Category
	DeletedCount int
	Error        string
	Timestamp    time.Time
}

// Request is one right-to-erasure request. It is never physically deleted:
// the request record is itself part of the compliance audit trail.
type Request struct {
	ID               id.DeletionRequestID
	WorkspaceID      id.WorkspaceID
	RequestType      RequestType
	DataCategories   []category.Category
	SubjectID        string
	DateFrom         *time.Time
	DateTo           *time.Time
	Conditions       map[string]string
	RequiresApproval bool
	Status           Status
	ApproverID       *string
	ApprovedAt       *time.Time
	RejecterID       *string
	RejectedAt       *time.Time
	RejectionReason  *string
	ScheduledFor     *time.Time
	ExecutedAt       *time.Time

	// ItemsDeleted and ItemsFailed count category outcomes; once every
	// category has an audit entry their sum equals the number of requested
	// categories. Per-record counts live on the audit entries.
	ItemsDeleted int
	ItemsFailed  int
	AuditLog     []AuditEntry

	CreatedAt time.Time
}

// New creates a deletion Request with domain invariant checks. Approval-free
// requests start Scheduled; scheduledFor defaults to immediately.
func New(workspaceID id.WorkspaceID, requestType RequestType, categories []category.Category, requiresApproval bool, scheduledFor *time.Time, now time.Time) (*Request, error) {
	if workspaceID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "workspace ID required")
	}
	if !requestType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid deletion request type")
	}
	if len(categories) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "data categories must not be empty")
	}
	for _, cat := range categories {
		if !cat.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid data category: %s", cat))
		}
	}

	status := StatusScheduled
	if requiresApproval {
		status = StatusPendingApproval
	}
	if scheduledFor == nil {
		scheduledFor = &now
	}
	return &Request{
		ID:               id.NewDeletionRequestID(),
		WorkspaceID:      workspaceID,
		RequestType:      requestType,
		DataCategories:   categories,
		RequiresApproval: requiresApproval,
		Status:           status,
		ScheduledFor:     scheduledFor,
		CreatedAt:        now,
	}, nil
}

// TransitionTo moves the request to the next status, rejecting transitions
// outside the closed table.
func (r *Request) TransitionTo(next Status) error {
	for _, allowed := range transitions[r.Status] {
		if next == allowed {
			r.Status = next
			return nil
		}
	}
	return dErrors.New(dErrors.CodeIllegalTransition,
		fmt.Sprintf("cannot transition deletion request from %s to %s", r.Status, next))
}

// IsDue reports whether the request is eligible for execution.
func (r *Request) IsDue(now time.Time) bool {
	if r.Status != StatusApproved && r.Status != StatusScheduled {
		return false
	}
	return r.ScheduledFor == nil || !r.ScheduledFor.After(now)
}

// RecordsDeleted sums the per-record deletion counts across audit entries.
func (r *Request) RecordsDeleted() int {
	total := 0
	for _, entry := range r.AuditLog {
		total += entry.DeletedCount
	}
	return total
}
