package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"custodian/internal/artifacts"
	"custodian/internal/artifacts/mocks"
	"custodian/internal/category"
	"custodian/internal/category/registry"
	"custodian/internal/export/models"
	"custodian/internal/export/store"
	"custodian/internal/platform/logger"
	"custodian/internal/records"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// ExportServiceSuite exercises the export pipeline end to end against
// in-memory stores, driving the worker step manually via Process.
type ExportServiceSuite struct {
	suite.Suite

	ctx           context.Context
	workspaceID   id.WorkspaceID
	recordStore   *records.InMemoryStore
	requestStore  *store.InMemoryStore
	artifactStore *artifacts.InMemoryStore
	svc           *Service
}

func TestExportServiceSuite(t *testing.T) {
	suite.Run(t, new(ExportServiceSuite))
}

func (s *ExportServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.workspaceID = id.WorkspaceID(uuid.New())
	s.recordStore = records.NewInMemory()
	s.requestStore = store.New()
	s.artifactStore = artifacts.NewInMemory()
	s.svc = NewService(s.requestStore, s.artifactStore, registry.NewDefault(s.recordStore, nil), logger.New())
}

func (s *ExportServiceSuite) seedRecord(cat category.Category, subjectID string, data map[string]any) {
	_, err := s.recordStore.Upsert(s.ctx, records.Record{
		WorkspaceID: s.workspaceID,
		Category:    cat,
		SubjectID:   subjectID,
		CreatedAt:   time.Now().UTC().Add(-time.Hour),
		Data:        data,
	})
	s.Require().NoError(err)
}

func (s *ExportServiceSuite) createRequest(format models.Format, cats ...category.Category) *models.Request {
	request, err := s.svc.Create(s.ctx, Scope{
		WorkspaceID:    s.workspaceID,
		RequestType:    models.TypeSubjectAccess,
		Format:         format,
		DataCategories: cats,
		SubjectID:      "user-1",
	})
	s.Require().NoError(err)
	return request
}

func (s *ExportServiceSuite) TestCreateValidation() {
	_, err := s.svc.Create(s.ctx, Scope{
		WorkspaceID:    s.workspaceID,
		RequestType:    models.TypeSubjectAccess,
		Format:         models.Format("xml"),
		DataCategories: []category.Category{category.Posts},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Create(s.ctx, Scope{
		WorkspaceID: s.workspaceID,
		RequestType: models.TypeSubjectAccess,
		Format:      models.FormatJSON,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	from := time.Now().UTC()
	to := from.Add(-time.Hour)
	_, err = s.svc.Create(s.ctx, Scope{
		WorkspaceID:    s.workspaceID,
		RequestType:    models.TypeSubjectAccess,
		Format:         models.FormatJSON,
		DataCategories: []category.Category{category.Posts},
		DateFrom:       &from,
		DateTo:         &to,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ExportServiceSuite) TestProcessJSONHappyPath() {
	s.seedRecord(category.Posts, "user-1", map[string]any{"title": "first"})
	s.seedRecord(category.Messages, "user-1", map[string]any{"body": "hi"})
	s.seedRecord(category.Posts, "user-2", map[string]any{"title": "not exported"})

	request := s.createRequest(models.FormatJSON, category.Posts, category.Messages)
	s.Require().NoError(s.svc.Process(s.ctx, request.ID))

	completed, err := s.svc.GetRequest(s.ctx, s.workspaceID, request.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, completed.Status)
	s.Require().NotNil(completed.CompletedAt)
	s.Require().NotNil(completed.ExpiresAt)
	s.Equal(completed.CompletedAt.Add(7*24*time.Hour), *completed.ExpiresAt,
		"artifact must expire exactly seven days after completion")
	s.Require().NotNil(completed.FileSizeBytes)
	s.Positive(*completed.FileSizeBytes)
	s.Equal(1, s.artifactStore.Len())

	payload, format, err := s.svc.ReadArtifact(s.ctx, s.workspaceID, request.ID)
	s.Require().NoError(err)
	s.Equal(models.FormatJSON, format)

	var document map[string][]map[string]any
	s.Require().NoError(json.Unmarshal(payload, &document))
	s.Len(document["posts"], 1, "only the requested subject's records belong in the export")
	s.Len(document["messages"], 1)
}

func (s *ExportServiceSuite) TestProcessCSV() {
	s.seedRecord(category.Posts, "user-1", map[string]any{"title": "a,b"})

	request := s.createRequest(models.FormatCSV, category.Posts)
	s.Require().NoError(s.svc.Process(s.ctx, request.ID))

	payload, format, err := s.svc.ReadArtifact(s.ctx, s.workspaceID, request.ID)
	s.Require().NoError(err)
	s.Equal(models.FormatCSV, format)

	text := string(payload)
	s.True(strings.HasPrefix(text, "# category: posts\n"))
	s.Contains(text, "id,subject_id,created_at,title")
	s.Contains(text, "a;b")
}

func (s *ExportServiceSuite) TestProcessArtifactWriteFailure() {
	ctrl := gomock.NewController(s.T())
	failing := mocks.NewMockStore(ctrl)
	failing.EXPECT().Write(gomock.Any(), gomock.Any()).Return("", errors.New("disk full"))

	svc := NewService(s.requestStore, failing, registry.NewDefault(s.recordStore, nil), logger.New())
	request := s.createRequest(models.FormatJSON, category.Posts)

	err := svc.Process(s.ctx, request.ID)
	s.Require().Error(err)

	failed, getErr := svc.GetRequest(s.ctx, s.workspaceID, request.ID)
	s.Require().NoError(getErr)
	s.Equal(models.StatusFailed, failed.Status)
	s.Require().NotNil(failed.Error)
	s.Contains(*failed.Error, "disk full")
}

func (s *ExportServiceSuite) TestReadArtifactBeforeCompletion() {
	request := s.createRequest(models.FormatJSON, category.Posts)

	_, _, err := s.svc.ReadArtifact(s.ctx, s.workspaceID, request.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
}

func (s *ExportServiceSuite) TestCleanupExpiredIsIdempotent() {
	request := s.createRequest(models.FormatJSON, category.Posts)
	s.Require().NoError(s.svc.Process(s.ctx, request.ID))

	// Backdate expiry so the sweep selects the request.
	completed, err := s.requestStore.GetByID(s.ctx, request.ID)
	s.Require().NoError(err)
	past := time.Now().UTC().Add(-time.Minute)
	completed.ExpiresAt = &past
	s.Require().NoError(s.requestStore.Update(s.ctx, completed))

	cleaned, err := s.svc.CleanupExpired(s.ctx, time.Now().UTC())
	s.Require().NoError(err)
	s.Equal(1, cleaned)
	s.Equal(0, s.artifactStore.Len(), "expired artifacts must be destroyed")

	expired, err := s.svc.GetRequest(s.ctx, s.workspaceID, request.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, expired.Status)
	s.Nil(expired.FileLocator)

	cleaned, err = s.svc.CleanupExpired(s.ctx, time.Now().UTC())
	s.Require().NoError(err)
	s.Equal(0, cleaned, "a second sweep must find nothing")
}

func (s *ExportServiceSuite) TestRedriveStuckRequest() {
	request := s.createRequest(models.FormatJSON, category.Posts)

	// Redrive only applies to Processing requests.
	_, err := s.svc.Redrive(s.ctx, s.workspaceID, request.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))

	// Simulate a worker that died mid-flight over an hour ago.
	stuck, err := s.requestStore.GetByID(s.ctx, request.ID)
	s.Require().NoError(err)
	s.Require().NoError(stuck.TransitionTo(models.StatusProcessing))
	startedAt := time.Now().UTC().Add(-2 * time.Hour)
	stuck.StartedAt = &startedAt
	s.Require().NoError(s.requestStore.Update(s.ctx, stuck))

	listed, err := s.svc.ListStuck(s.ctx, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(request.ID, listed[0].ID)

	redriven, err := s.svc.Redrive(s.ctx, s.workspaceID, request.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, redriven.Status)
	s.Nil(redriven.StartedAt)
}

func (s *ExportServiceSuite) TestRequeueStalePending() {
	request := s.createRequest(models.FormatJSON, category.Posts)

	// Fresh requests are not yet stale.
	requeued, err := s.svc.RequeueStalePending(s.ctx, time.Now().UTC())
	s.Require().NoError(err)
	s.Equal(0, requeued)

	stale, err := s.requestStore.GetByID(s.ctx, request.ID)
	s.Require().NoError(err)
	stale.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	s.Require().NoError(s.requestStore.Update(s.ctx, stale))

	requeued, err = s.svc.RequeueStalePending(s.ctx, time.Now().UTC())
	s.Require().NoError(err)
	s.Equal(1, requeued)
}
