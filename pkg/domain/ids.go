// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "custodian/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a PolicyID where an
// ExportRequestID is expected.
type (
	WorkspaceID       uuid.UUID
	PolicyID          uuid.UUID
	ExportRequestID   uuid.UUID
	DeletionRequestID uuid.UUID
	ConsentID         uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseWorkspaceID(s string) (WorkspaceID, error) {
	id, err := parseUUID(s, "workspace ID")
	return WorkspaceID(id), err
}

func ParsePolicyID(s string) (PolicyID, error) {
	id, err := parseUUID(s, "policy ID")
	return PolicyID(id), err
}

func ParseExportRequestID(s string) (ExportRequestID, error) {
	id, err := parseUUID(s, "export request ID")
	return ExportRequestID(id), err
}

func ParseDeletionRequestID(s string) (DeletionRequestID, error) {
	id, err := parseUUID(s, "deletion request ID")
	return DeletionRequestID(id), err
}

func ParseConsentID(s string) (ConsentID, error) {
	id, err := parseUUID(s, "consent ID")
	return ConsentID(id), err
}

// New functions - use when minting identifiers at creation time.

func NewPolicyID() PolicyID                   { return PolicyID(uuid.New()) }
func NewExportRequestID() ExportRequestID     { return ExportRequestID(uuid.New()) }
func NewDeletionRequestID() DeletionRequestID { return DeletionRequestID(uuid.New()) }
func NewConsentID() ConsentID                 { return ConsentID(uuid.New()) }

// String methods - for logging and debugging.

func (id WorkspaceID) String() string       { return uuid.UUID(id).String() }
func (id PolicyID) String() string          { return uuid.UUID(id).String() }
func (id ExportRequestID) String() string   { return uuid.UUID(id).String() }
func (id DeletionRequestID) String() string { return uuid.UUID(id).String() }
func (id ConsentID) String() string         { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id WorkspaceID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id ExportRequestID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id DeletionRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ConsentID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic. Nil UUIDs pass parsing so store
// lookups can return proper "not found" errors; use IsNil() at the service
// layer for business validation.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is not a valid UUID")
	}
	return parsed, nil
}
