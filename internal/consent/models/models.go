package models

import (
	"time"

	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// LegalBasis is the justification code for processing personal data.
type LegalBasis string

const (
	BasisConsent            LegalBasis = "consent"
	BasisContract           LegalBasis = "contract"
	BasisLegalObligation    LegalBasis = "legal_obligation"
	BasisVitalInterests     LegalBasis = "vital_interests"
	BasisPublicTask         LegalBasis = "public_task"
	BasisLegitimateInterest LegalBasis = "legitimate_interest"
)

// ValidBases is the single source of truth for supported legal bases.
var ValidBases = map[LegalBasis]bool{
	BasisConsent:            true,
	BasisContract:           true,
	BasisLegalObligation:    true,
	BasisVitalInterests:     true,
	BasisPublicTask:         true,
	BasisLegitimateInterest: true,
}

// IsValid checks if the legal basis is one of the supported enum values.
func (b LegalBasis) IsValid() bool {
	return ValidBases[b]
}

// Subject identifies a data subject by exactly one of a user ID, an external
// system ID or an email address.
type Subject struct {
	UserID     string
	ExternalID string
	Email      string
}

// IsZero reports whether no identity field is set.
func (s Subject) IsZero() bool {
	return s.UserID == "" && s.ExternalID == "" && s.Email == ""
}

// Matches reports whether two subjects refer to the same identity: any
// shared non-empty field must be equal, and at least one must match.
func (s Subject) Matches(other Subject) bool {
	if s.UserID != "" && other.UserID != "" {
		return s.UserID == other.UserID
	}
	if s.ExternalID != "" && other.ExternalID != "" {
		return s.ExternalID == other.ExternalID
	}
	if s.Email != "" && other.Email != "" {
		return s.Email == other.Email
	}
	return false
}

// Record captures one consent decision. Records are append-only history:
// withdrawal mutates the record once, and nothing ever deletes it. The
// current consent is the most recent granted, non-withdrawn, non-expired
// record for the (subject, type) pair.
type Record struct {
	ID          id.ConsentID
	WorkspaceID id.WorkspaceID
	Subject     Subject
	ConsentType string
	Purpose     string
	Granted     bool
	GrantedAt   *time.Time
	Withdrawn   bool
	WithdrawnAt *time.Time
	LegalBasis  LegalBasis
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// New creates a consent Record with domain invariant checks. A granted
// record is stamped with its grant time.
func New(workspaceID id.WorkspaceID, subject Subject, consentType, purpose string, granted bool, basis LegalBasis, expiresAt *time.Time, now time.Time) (*Record, error) {
	if workspaceID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "workspace ID required")
	}
	if subject.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "subject identity required")
	}
	if consentType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "consent type required")
	}
	if purpose == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "purpose required")
	}
	if !basis.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid legal basis")
	}
	if expiresAt != nil && expiresAt.Before(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "expiry must be in the future")
	}
	record := &Record{
		ID:          id.NewConsentID(),
		WorkspaceID: workspaceID,
		Subject:     subject,
		ConsentType: consentType,
		Purpose:     purpose,
		Granted:     granted,
		LegalBasis:  basis,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
	}
	if granted {
		grantedAt := now
		record.GrantedAt = &grantedAt
	}
	return record, nil
}

// IsActive returns true when the consent currently authorizes processing.
func (r Record) IsActive(now time.Time) bool {
	if !r.Granted || r.Withdrawn {
		return false
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		return false
	}
	return true
}
