package models

import (
	"fmt"
	"time"

	"custodian/internal/category"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// RequestType is the legal basis under which an export is requested.
type RequestType string

const (
	TypeSubjectAccess RequestType = "subject_access"
	TypeCCPAAccess    RequestType = "ccpa_access"
	TypePortability   RequestType = "portability"
)

// IsValid checks if the request type is one of the supported enum values.
func (t RequestType) IsValid() bool {
	return t == TypeSubjectAccess || t == TypeCCPAAccess || t == TypePortability
}

// Format selects the artifact serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// IsValid checks if the format is one of the supported enum values.
func (f Format) IsValid() bool {
	return f == FormatJSON || f == FormatCSV
}

// Status is the export request lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// transitions is the closed transition table; status writes outside it are
// rejected with CodeIllegalTransition. Processing back to Pending is the
// operator re-drive path for requests stuck past the staleness window.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusPending},
	StatusCompleted:  {StatusExpired},
}

// Request is one data-subject export. The record survives artifact expiry;
// only the artifact itself is destroyed.
type Request struct {
	ID             id.ExportRequestID
	WorkspaceID    id.WorkspaceID
	RequestType    RequestType
	Format         Format
	DataCategories []category.Category
	SubjectID      string
	DateFrom       *time.Time
	DateTo         *time.Time
	Status         Status
	FileLocator    *string
	FileSizeBytes  *int64
	ExpiresAt      *time.Time
	Error          *string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// New creates an export Request with domain invariant checks.
func New(workspaceID id.WorkspaceID, requestType RequestType, format Format, categories []category.Category, now time.Time) (*Request, error) {
	if workspaceID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "workspace ID required")
	}
	if !requestType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid export request type")
	}
	if !format.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid export format")
	}
	if len(categories) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "data categories must not be empty")
	}
	for _, cat := range categories {
		if !cat.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid data category: %s", cat))
		}
	}
	return &Request{
		ID:             id.NewExportRequestID(),
		WorkspaceID:    workspaceID,
		RequestType:    requestType,
		Format:         format,
		DataCategories: categories,
		Status:         StatusPending,
		CreatedAt:      now,
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
		fmt.Sprintf("cannot transition export request from %s to %s", r.Status, next))
}

// IsTerminal reports whether the request can no longer progress.
func (r *Request) IsTerminal() bool {
	return r.Status == StatusFailed || r.Status == StatusExpired
}
