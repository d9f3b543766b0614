package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"custodian/internal/category"
	id "custodian/pkg/domain"
	dErrors "custodian/pkg/domain-errors"
)

// DeletionModelSuite tests the deletion Request state machine and invariants.
type DeletionModelSuite struct {
	suite.Suite
	now time.Time
}

func TestDeletionModelSuite(t *testing.T) {
	suite.Run(t, new(DeletionModelSuite))
}

func (s *DeletionModelSuite) SetupTest() {
	s.now = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
}

func (s *DeletionModelSuite) newRequest(requiresApproval bool) *Request {
	request, err := New(id.WorkspaceID(uuid.New()), TypeErasure, []category.Category{category.Posts}, requiresApproval, nil, s.now)
	s.Require().NoError(err)
	return request
}

func (s *DeletionModelSuite) TestNewValidation() {
	workspaceID := id.WorkspaceID(uuid.New())

	s.Run("approval-gated request starts pending approval", func() {
		request := s.newRequest(true)
		s.Equal(StatusPendingApproval, request.Status)
		s.False(request.IsDue(s.now), "unapproved requests are never due")
	})

	s.Run("approval-free request starts scheduled and due immediately", func() {
		request := s.newRequest(false)
		s.Equal(StatusScheduled, request.Status)
		s.True(request.IsDue(s.now))
	})

	s.Run("future schedule defers execution", func() {
		later := s.now.Add(48 * time.Hour)
		request, err := New(workspaceID, TypeCCPADeletion, []category.Category{category.Media}, false, &later, s.now)
		s.Require().NoError(err)
		s.False(request.IsDue(s.now))
		s.True(request.IsDue(later))
	})

	s.Run("empty categories are rejected", func() {
		_, err := New(workspaceID, TypeErasure, nil, false, nil, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown request type is rejected", func() {
		_, err := New(workspaceID, RequestType("gdpr"), []category.Category{category.Posts}, false, nil, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *DeletionModelSuite) TestTransitions() {
	s.Run("approval path", func() {
		request := s.newRequest(true)
		s.Require().NoError(request.TransitionTo(StatusApproved))
		s.Require().NoError(request.TransitionTo(StatusProcessing))
		s.Require().NoError(request.TransitionTo(StatusCompleted))
	})

	s.Run("rejection is terminal", func() {
		request := s.newRequest(true)
		s.Require().NoError(request.TransitionTo(StatusRejected))

		err := request.TransitionTo(StatusApproved)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	})

	s.Run("scheduled request cannot be approved", func() {
		request := s.newRequest(false)
		err := request.TransitionTo(StatusApproved)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	})

	s.Run("completed request cannot re-enter processing", func() {
		request := s.newRequest(false)
		s.Require().NoError(request.TransitionTo(StatusProcessing))
		s.Require().NoError(request.TransitionTo(StatusCompleted))

		err := request.TransitionTo(StatusProcessing)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	})
}

func (s *DeletionModelSuite) TestRecordsDeleted() {
	request := s.newRequest(false)
	request.AuditLog = []AuditEntry{
		{Category: category.Posts, DeletedCount: 3},
		{Category: category.Media, DeletedCount: 2},
		{Category: category.Messages, Error: "boom"},
	}
	s.Equal(5, request.RecordsDeleted())
}
