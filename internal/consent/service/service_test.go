package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"custodian/internal/consent/models"
	"custodian/internal/consent/store"
	"custodian/internal/platform/logger"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// ConsentServiceSuite exercises the consent ledger: recording decisions,
// the newest-decision-wins check, withdrawal and expiry sweeps.
type ConsentServiceSuite struct {
	suite.Suite

	ctx         context.Context
	workspaceID id.WorkspaceID
	subject     models.Subject
	store       *store.InMemoryStore
	svc         *Service
}

func TestConsentServiceSuite(t *testing.T) {
	suite.Run(t, new(ConsentServiceSuite))
}

func (s *ConsentServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.workspaceID = id.WorkspaceID(uuid.New())
	s.subject = models.Subject{UserID: "user-1"}
	s.store = store.New()
	s.svc = New(s.store, logger.New())
}

func (s *ConsentServiceSuite) record(granted bool, expiresAt *time.Time) *models.Record {
	record, err := s.svc.Record(s.ctx, s.workspaceID, RecordParams{
		Subject:     s.subject,
		ConsentType: "marketing",
		Purpose:     "newsletter",
		Granted:     granted,
		LegalBasis:  models.BasisConsent,
		ExpiresAt:   expiresAt,
	})
	s.Require().NoError(err)
	return record
}

func (s *ConsentServiceSuite) TestRecordValidation() {
	_, err := s.svc.Record(s.ctx, s.workspaceID, RecordParams{
		ConsentType: "marketing",
		Granted:     true,
		LegalBasis:  models.BasisConsent,
	})
	s.Require().Error(err, "a record without any subject identifier is useless")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Record(s.ctx, s.workspaceID, RecordParams{
		Subject:    s.subject,
		Purpose:    "newsletter",
		Granted:    true,
		LegalBasis: models.BasisConsent,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Record(s.ctx, s.workspaceID, RecordParams{
		Subject:     s.subject,
		ConsentType: "marketing",
		Purpose:     "newsletter",
		Granted:     true,
		LegalBasis:  models.LegalBasis("curiosity"),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	past := time.Now().UTC().Add(-time.Hour)
	_, err = s.svc.Record(s.ctx, s.workspaceID, RecordParams{
		Subject:     s.subject,
		ConsentType: "marketing",
		Purpose:     "newsletter",
		Granted:     true,
		LegalBasis:  models.BasisConsent,
		ExpiresAt:   &past,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

// The latest decision is authoritative: a newer denial or withdrawal
// overrides any older active grant still sitting on the append-only ledger.
func (s *ConsentServiceSuite) TestCheckNewestDecisionWins() {
	allowed, err := s.svc.Check(s.ctx, s.workspaceID, s.subject, "marketing")
	s.Require().NoError(err)
	s.False(allowed, "no record means no consent")

	s.record(true, nil)
	allowed, err = s.svc.Check(s.ctx, s.workspaceID, s.subject, "marketing")
	s.Require().NoError(err)
	s.True(allowed)

	// A newer denial overrides the earlier grant.
	s.record(false, nil)
	allowed, err = s.svc.Check(s.ctx, s.workspaceID, s.subject, "marketing")
	s.Require().NoError(err)
	s.False(allowed)

	// The history is append-only: both decisions remain on the ledger.
	history, err := s.svc.List(s.ctx, s.workspaceID)
	s.Require().NoError(err)
	s.Len(history, 2)
}

func (s *ConsentServiceSuite) TestCheckRequiresSubjectAndType() {
	_, err := s.svc.Check(s.ctx, s.workspaceID, models.Subject{}, "marketing")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Check(s.ctx, s.workspaceID, s.subject, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ConsentServiceSuite) TestCheckMatchesAnySharedIdentifier() {
	record, err := s.svc.Record(s.ctx, s.workspaceID, RecordParams{
		Subject:     models.Subject{UserID: "user-1", Email: "ada@example.com"},
		ConsentType: "analytics",
		Purpose:     "usage analytics",
		Granted:     true,
		LegalBasis:  models.BasisLegitimateInterest,
	})
	s.Require().NoError(err)
	s.NotNil(record)

	allowed, err := s.svc.Check(s.ctx, s.workspaceID, models.Subject{Email: "ada@example.com"}, "analytics")
	s.Require().NoError(err)
	s.True(allowed, "matching on a shared identifier must find the grant")

	allowed, err = s.svc.Check(s.ctx, s.workspaceID, models.Subject{Email: "other@example.com"}, "analytics")
	s.Require().NoError(err)
	s.False(allowed)
}

func (s *ConsentServiceSuite) TestWithdrawIsIdempotent() {
	record := s.record(true, nil)

	withdrawn, err := s.svc.Withdraw(s.ctx, s.workspaceID, record.ID)
	s.Require().NoError(err)
	s.True(withdrawn.Withdrawn)
	s.Require().NotNil(withdrawn.WithdrawnAt)
	firstWithdrawnAt := *withdrawn.WithdrawnAt

	again, err := s.svc.Withdraw(s.ctx, s.workspaceID, record.ID)
	s.Require().NoError(err)
	s.Equal(firstWithdrawnAt, *again.WithdrawnAt, "re-withdrawing must not move the timestamp")

	allowed, err := s.svc.Check(s.ctx, s.workspaceID, s.subject, "marketing")
	s.Require().NoError(err)
	s.False(allowed)
}

func (s *ConsentServiceSuite) TestWithdrawUnknownConsent() {
	_, err := s.svc.Withdraw(s.ctx, s.workspaceID, id.NewConsentID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ConsentServiceSuite) TestRequire() {
	err := s.svc.Require(s.ctx, s.workspaceID, s.subject, "marketing")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeMissingConsent))

	s.record(true, nil)
	s.Require().NoError(s.svc.Require(s.ctx, s.workspaceID, s.subject, "marketing"))
}

func (s *ConsentServiceSuite) TestCheckFalseOnceExpiryPasses() {
	expiry := time.Now().UTC().Add(time.Hour)
	record := s.record(true, &expiry)

	allowed, err := s.svc.Check(s.ctx, s.workspaceID, s.subject, "marketing")
	s.Require().NoError(err)
	s.True(allowed)

	// Backdate the expiry so the grant lapses with no sweep involved.
	past := time.Now().UTC().Add(-time.Minute)
	record.ExpiresAt = &past
	s.Require().NoError(s.store.Update(s.ctx, record))

	allowed, err = s.svc.Check(s.ctx, s.workspaceID, s.subject, "marketing")
	s.Require().NoError(err)
	s.False(allowed, "a lapsed grant must stop authorizing before any cleanup runs")

	// The record itself is untouched: lapsed, not withdrawn.
	stored, err := s.svc.Get(s.ctx, s.workspaceID, record.ID)
	s.Require().NoError(err)
	s.False(stored.Withdrawn)
	s.Nil(stored.WithdrawnAt)
}

func (s *ConsentServiceSuite) TestCleanupExpired() {
	expiry := time.Now().UTC().Add(time.Hour)
	record := s.record(true, &expiry)

	// Nothing has expired yet.
	withdrawn, err := s.svc.CleanupExpired(s.ctx, time.Now().UTC())
	s.Require().NoError(err)
	s.Equal(0, withdrawn)

	withdrawn, err = s.svc.CleanupExpired(s.ctx, expiry.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(1, withdrawn)

	updated, err := s.svc.Get(s.ctx, s.workspaceID, record.ID)
	s.Require().NoError(err)
	s.True(updated.Withdrawn)
	s.Require().NotNil(updated.WithdrawnAt)
	s.Equal(expiry, *updated.WithdrawnAt, "expiry withdrawal is dated at the expiry instant")

	allowed, err := s.svc.Check(s.ctx, s.workspaceID, s.subject, "marketing")
	s.Require().NoError(err)
	s.False(allowed)

	// The sweep is idempotent.
	withdrawn, err = s.svc.CleanupExpired(s.ctx, expiry.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(0, withdrawn)
}
