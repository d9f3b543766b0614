package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"custodian/internal/category"
	"custodian/internal/category/registry"
	"custodian/internal/platform/logger"
	"custodian/internal/records"
	"custodian/internal/retention/models"
	"custodian/internal/retention/store"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// RetentionServiceSuite exercises policy CRUD and the scheduled executor
// against in-memory stores.
type RetentionServiceSuite struct {
	suite.Suite

	ctx         context.Context
	workspaceID id.WorkspaceID
	recordStore *records.InMemoryStore
	policyStore *store.InMemoryStore
	svc         *Service
	now         time.Time
}

func TestRetentionServiceSuite(t *testing.T) {
	suite.Run(t, new(RetentionServiceSuite))
}

func (s *RetentionServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.workspaceID = id.WorkspaceID(uuid.New())
	s.recordStore = records.NewInMemory()
	s.policyStore = store.New()
	s.svc = NewService(s.policyStore, registry.NewDefault(s.recordStore, []string{"name", "email"}), logger.New())
	s.now = time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
}

func (s *RetentionServiceSuite) seedPost(age time.Duration, data map[string]any) {
	_, err := s.recordStore.Upsert(s.ctx, records.Record{
		WorkspaceID: s.workspaceID,
		Category:    category.Posts,
		SubjectID:   "user-1",
		CreatedAt:   s.now.Add(-age),
		Data:        data,
	})
	s.Require().NoError(err)
}

func (s *RetentionServiceSuite) countPosts(includeArchived bool) int {
	found, err := s.recordStore.Find(s.ctx, s.workspaceID, category.Posts, records.Filter{IncludeArchived: includeArchived})
	s.Require().NoError(err)
	return len(found)
}

func (s *RetentionServiceSuite) TestCreatePolicyValidation() {
	_, err := s.svc.CreatePolicy(s.ctx, s.workspaceID, category.Category("documents"), 30, models.ActionDelete, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.CreatePolicy(s.ctx, s.workspaceID, category.Posts, 0, models.ActionDelete, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RetentionServiceSuite) TestExecuteDeletesOnlyExpiredRecords() {
	s.seedPost(45*24*time.Hour, map[string]any{"title": "old"})
	s.seedPost(31*24*time.Hour, map[string]any{"title": "older than cutoff"})
	s.seedPost(5*24*time.Hour, map[string]any{"title": "fresh"})

	_, err := s.svc.CreatePolicy(s.ctx, s.workspaceID, category.Posts, 30, models.ActionDelete, nil)
	s.Require().NoError(err)

	summary, err := s.svc.ExecuteDuePolicies(s.ctx, s.now)
	s.Require().NoError(err)

	s.Equal(1, summary.Executed)
	s.Equal(0, summary.Failed)
	s.Equal(2, summary.RecordsDeleted)
	s.Equal(1, s.countPosts(true), "records younger than the cutoff must survive")
}

func (s *RetentionServiceSuite) TestExecuteAdvancesSchedule() {
	policy, err := s.svc.CreatePolicy(s.ctx, s.workspaceID, category.Posts, 30, models.ActionDelete, nil)
	s.Require().NoError(err)

	_, err = s.svc.ExecuteDuePolicies(s.ctx, s.now)
	s.Require().NoError(err)

	updated, err := s.svc.GetPolicy(s.ctx, s.workspaceID, policy.ID)
	s.Require().NoError(err)
	s.Require().NotNil(updated.LastExecutedAt)
	s.Equal(s.now, *updated.LastExecutedAt)
	s.Equal(s.now.Add(24*time.Hour), updated.NextExecutionAt)

	// The advanced schedule keeps the policy quiet until the next day.
	summary, err := s.svc.ExecuteDuePolicies(s.ctx, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(0, summary.Executed)

	summary, err = s.svc.ExecuteDuePolicies(s.ctx, s.now.Add(25*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, summary.Executed)
}

func (s *RetentionServiceSuite) TestExecuteArchivesInsteadOfDeleting() {
	s.seedPost(40*24*time.Hour, map[string]any{"title": "stale"})

	_, err := s.svc.CreatePolicy(s.ctx, s.workspaceID, category.Posts, 30, models.ActionArchive, nil)
	s.Require().NoError(err)

	summary, err := s.svc.ExecuteDuePolicies(s.ctx, s.now)
	s.Require().NoError(err)

	s.Equal(1, summary.Executed)
	s.Equal(1, summary.RecordsArchived)
	s.Equal(0, summary.RecordsDeleted)
	s.Equal(0, s.countPosts(false), "archived records leave the default view")
	s.Equal(1, s.countPosts(true), "archiving must not destroy the record")
}

func (s *RetentionServiceSuite) TestExecuteHonorsConditions() {
	s.seedPost(40*24*time.Hour, map[string]any{"status": "draft"})
	s.seedPost(40*24*time.Hour, map[string]any{"status": "published"})

	_, err := s.svc.CreatePolicy(s.ctx, s.workspaceID, category.Posts, 30, models.ActionDelete, map[string]string{"status": "draft"})
	s.Require().NoError(err)

	summary, err := s.svc.ExecuteDuePolicies(s.ctx, s.now)
	s.Require().NoError(err)

	s.Equal(1, summary.RecordsDeleted)
	s.Equal(1, s.countPosts(true))
}

func (s *RetentionServiceSuite) TestInactivePolicyNeverRuns() {
	s.seedPost(40*24*time.Hour, nil)

	policy, err := s.svc.CreatePolicy(s.ctx, s.workspaceID, category.Posts, 30, models.ActionDelete, nil)
	s.Require().NoError(err)
	_, err = s.svc.UpdatePolicy(s.ctx, s.workspaceID, policy.ID, 30, models.ActionDelete, false)
	s.Require().NoError(err)

	summary, err := s.svc.ExecuteDuePolicies(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(0, summary.Executed)
	s.Equal(1, s.countPosts(true))
}

func (s *RetentionServiceSuite) TestConcurrentScheduleAdvanceSkips() {
	s.seedPost(40*24*time.Hour, nil)

	policy, err := s.svc.CreatePolicy(s.ctx, s.workspaceID, category.Posts, 30, models.ActionDelete, nil)
	s.Require().NoError(err)

	// Simulate another executor advancing the schedule mid-run.
	s.Require().NoError(s.policyStore.AdvanceSchedule(s.ctx, policy.ID, policy.NextExecutionAt, s.now, s.now.Add(24*time.Hour)))

	_, err = s.svc.executePolicy(s.ctx, policy, s.now)
	s.Require().Error(err)

	summary, err := s.svc.ExecuteDuePolicies(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(0, summary.Executed, "policy already ran this tick")
}
