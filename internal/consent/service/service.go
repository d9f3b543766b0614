package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"custodian/internal/audit"
	"custodian/internal/consent/metrics"
	"custodian/internal/consent/models"
	"custodian/internal/consent/store"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
	"custodian/pkg/platform/sentinel"
)

// Service manages the consent ledger: recording decisions, withdrawing
// them, answering processing checks and sweeping expired grants.
type Service struct {
	store   store.Store
	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

// WithMetrics attaches Prometheus collectors to the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditor attaches an audit event publisher to the service.
func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

// New constructs a consent service.
func New(st store.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: logger.With(slog.String("component", "consent-service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordParams carries a consent decision to be appended to the ledger.
type RecordParams struct {
	Subject     models.Subject
	ConsentType string
	Purpose     string
	Granted     bool
	LegalBasis  models.LegalBasis
	ExpiresAt   *time.Time
}

// Record appends a consent decision. Decisions never overwrite each other;
// the newest record for a (subject, type) pair wins at check time.
func (s *Service) Record(ctx context.Context, workspaceID id.WorkspaceID, params RecordParams) (*models.Record, error) {
	record, err := models.New(workspaceID, params.Subject, params.ConsentType, params.Purpose, params.Granted, params.LegalBasis, params.ExpiresAt, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store consent record")
	}

	if s.metrics != nil {
		granted := "false"
		if record.Granted {
			granted = "true"
		}
		s.metrics.ConsentsRecorded.WithLabelValues(record.ConsentType, granted).Inc()
	}
	action := audit.ActionConsentGranted
	if !record.Granted {
		action = audit.ActionConsentWithdrawn
	}
	s.emitAudit(ctx, record, action, audit.OutcomeSucceeded, record.Purpose)

	s.logger.Info("consent recorded",
		slog.String("consent_id", record.ID.String()),
		slog.String("type", record.ConsentType),
		slog.Bool("granted", record.Granted))
	return record, nil
}

// Get returns a single consent record.
func (s *Service) Get(ctx context.Context, workspaceID id.WorkspaceID, consentID id.ConsentID) (*models.Record, error) {
	record, err := s.store.Get(ctx, workspaceID, consentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "consent record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consent record")
	}
	return record, nil
}

// List returns the consent history of a workspace, newest first.
func (s *Service) List(ctx context.Context, workspaceID id.WorkspaceID) ([]*models.Record, error) {
	records, err := s.store.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consent records")
	}
	return records, nil
}

// Withdraw marks a granted consent as withdrawn. Withdrawing an already
// withdrawn consent is a no-op, not an error.
func (s *Service) Withdraw(ctx context.Context, workspaceID id.WorkspaceID, consentID id.ConsentID) (*models.Record, error) {
	record, err := s.Get(ctx, workspaceID, consentID)
	if err != nil {
		return nil, err
	}
	if record.Withdrawn {
		return record, nil
	}

	now := time.Now().UTC()
	record.Withdrawn = true
	record.WithdrawnAt = &now
	if err := s.store.Update(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to withdraw consent")
	}

	if s.metrics != nil {
		s.metrics.ConsentsWithdrawn.WithLabelValues(record.ConsentType).Inc()
	}
	s.emitAudit(ctx, record, audit.ActionConsentWithdrawn, audit.OutcomeSucceeded, "withdrawn by subject")

	s.logger.Info("consent withdrawn",
		slog.String("consent_id", record.ID.String()),
		slog.String("type", record.ConsentType))
	return record, nil
}

// Check reports whether the subject currently has an active consent of the
// given type. The most recent record for the subject decides: a newer
// denial or withdrawal overrides an older grant.
func (s *Service) Check(ctx context.Context, workspaceID id.WorkspaceID, subject models.Subject, consentType string) (bool, error) {
	if subject.IsZero() {
		return false, dErrors.New(dErrors.CodeValidation, "subject identity required")
	}
	if consentType == "" {
		return false, dErrors.New(dErrors.CodeValidation, "consent type required")
	}

	records, err := s.store.ListBySubject(ctx, workspaceID, subject, consentType)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query consent records")
	}

	allowed := false
	if len(records) > 0 {
		// Records are sorted newest first; the latest decision wins.
		allowed = records[0].IsActive(time.Now().UTC())
	}
	if s.metrics != nil {
		if allowed {
			s.metrics.ChecksPassed.WithLabelValues(consentType).Inc()
		} else {
			s.metrics.ChecksFailed.WithLabelValues(consentType).Inc()
		}
	}
	return allowed, nil
}

// Require is Check with an error contract: it fails with a missing-consent
// code when the subject has no active consent of the given type.
func (s *Service) Require(ctx context.Context, workspaceID id.WorkspaceID, subject models.Subject, consentType string) error {
	allowed, err := s.Check(ctx, workspaceID, subject, consentType)
	if err != nil {
		return err
	}
	if !allowed {
		return dErrors.New(dErrors.CodeMissingConsent, "no active consent for "+consentType)
	}
	return nil
}

// CleanupExpired withdraws granted consents whose expiry has passed.
// Expiry behaves exactly like a withdrawal so that checks and audit trails
// see a single consistent state.
func (s *Service) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.store.ListExpiredGranted(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list expired consents")
	}

	withdrawn := 0
	var errs []error
	for _, record := range expired {
		record.Withdrawn = true
		withdrawnAt := *record.ExpiresAt
		record.WithdrawnAt = &withdrawnAt
		if err := s.store.Update(ctx, record); err != nil {
			errs = append(errs, err)
			continue
		}
		withdrawn++
		if s.metrics != nil {
			s.metrics.ConsentsExpired.Inc()
		}
		s.emitAudit(ctx, record, audit.ActionConsentExpired, audit.OutcomeSucceeded, "consent expired")
	}

	if withdrawn > 0 {
		s.logger.Info("expired consents withdrawn", slog.Int("count", withdrawn))
	}
	return withdrawn, errors.Join(errs...)
}

func (s *Service) emitAudit(ctx context.Context, record *models.Record, action string, outcome string, reason string) {
	if s.auditor == nil {
		return
	}
	subject := record.Subject.UserID
	if subject == "" {
		subject = record.Subject.ExternalID
	}
	if subject == "" {
		subject = record.Subject.Email
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		WorkspaceID: record.WorkspaceID.String(),
		SubjectID:   subject,
		Actor:       "consent-service",
		Action:      action,
		Outcome:     outcome,
		Reason:      reason,
	})
}
