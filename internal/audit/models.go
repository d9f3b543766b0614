package audit

import "time"

// Event is emitted from domain logic to capture key compliance actions. Keep
// it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp   time.Time
	WorkspaceID string
	SubjectID   string
	Actor       string
	Action      string
	Category    string
	Outcome     string
	Reason      string
}

// Audit event actions.
const (
	ActionRetentionExecuted = "retention_executed"
	ActionExportCompleted   = "export_completed"
	ActionExportFailed      = "export_failed"
	ActionExportExpired     = "export_expired"
	ActionDeletionApproved  = "deletion_approved"
	ActionDeletionRejected  = "deletion_rejected"
	ActionDeletionExecuted  = "deletion_executed"
	ActionConsentGranted    = "consent_granted"
	ActionConsentWithdrawn  = "consent_withdrawn"
	ActionConsentExpired    = "consent_expired"
)

// Audit event outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomePartial   = "partial"
)
