package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"custodian/internal/retention/models"
	id "custodian/pkg/domain"
	"custodian/pkg/platform/sentinel"
)

// InMemoryStore stores retention policies in memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	policies map[id.PolicyID]*models.Policy
}

// New constructs an empty in-memory policy store.
func New() *InMemoryStore {
	return &InMemoryStore{policies: make(map[id.PolicyID]*models.Policy)}
}

func (s *InMemoryStore) Create(_ context.Context, policy *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[policy.ID]; ok {
		return sentinel.ErrConflict
	}
	copyPolicy := *policy
	s.policies[policy.ID] = &copyPolicy
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, workspaceID id.WorkspaceID, policyID id.PolicyID) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policy, ok := s.policies[policyID]
	if !ok || policy.WorkspaceID != workspaceID {
		return nil, sentinel.ErrNotFound
	}
	copyPolicy := *policy
	return &copyPolicy, nil
}

func (s *InMemoryStore) ListByWorkspace(_ context.Context, workspaceID id.WorkspaceID) ([]*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var listed []*models.Policy
	for _, policy := range s.policies {
		if policy.WorkspaceID != workspaceID {
			continue
		}
		copyPolicy := *policy
		listed = append(listed, &copyPolicy)
	}
	sortByCreation(listed)
	return listed, nil
}

func (s *InMemoryStore) ListDue(_ context.Context, now time.Time) ([]*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []*models.Policy
	for _, policy := range s.policies {
		if !policy.IsDue(now) {
			continue
		}
		copyPolicy := *policy
		due = append(due, &copyPolicy)
	}
	sortByCreation(due)
	return due, nil
}

func (s *InMemoryStore) Update(_ context.Context, policy *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.policies[policy.ID]
	if !ok || existing.WorkspaceID != policy.WorkspaceID {
		return sentinel.ErrNotFound
	}
	copyPolicy := *policy
	s.policies[policy.ID] = &copyPolicy
	return nil
}

func (s *InMemoryStore) AdvanceSchedule(_ context.Context, policyID id.PolicyID, observedNext, lastExecuted, nextExecution time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	policy, ok := s.policies[policyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !policy.NextExecutionAt.Equal(observedNext) {
		return sentinel.ErrConflict
	}
	executed := lastExecuted
	policy.LastExecutedAt = &executed
	policy.NextExecutionAt = nextExecution
	return nil
}

func sortByCreation(policies []*models.Policy) {
	sort.Slice(policies, func(i, j int) bool {
		return policies[i].CreatedAt.Before(policies[j].CreatedAt)
	})
}
