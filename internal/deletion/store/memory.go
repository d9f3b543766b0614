package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"custodian/internal/category"
	"custodian/internal/deletion/models"
	id "custodian/pkg/domain"
	"custodian/pkg/platform/sentinel"
)

// InMemoryStore stores deletion requests in memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.DeletionRequestID]*models.Request
}

// New constructs an empty in-memory deletion request store.
func New() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.DeletionRequestID]*models.Request)}
}

func (s *InMemoryStore) Create(_ context.Context, request *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[request.ID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[request.ID] = cloneRequest(request)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, workspaceID id.WorkspaceID, requestID id.DeletionRequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[requestID]
	if !ok || request.WorkspaceID != workspaceID {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(request), nil
}

func (s *InMemoryStore) GetByID(_ context.Context, requestID id.DeletionRequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(request), nil
}

func (s *InMemoryStore) ListByWorkspace(_ context.Context, workspaceID id.WorkspaceID) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var listed []*models.Request
	for _, request := range s.requests {
		if request.WorkspaceID != workspaceID {
			continue
		}
		listed = append(listed, cloneRequest(request))
	}
	sortByCreation(listed)
	return listed, nil
}

func (s *InMemoryStore) Update(_ context.Context, request *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.requests[request.ID]
	if !ok || existing.WorkspaceID != request.WorkspaceID {
		return sentinel.ErrNotFound
	}
	s.requests[request.ID] = cloneRequest(request)
	return nil
}

func (s *InMemoryStore) ListDue(_ context.Context, now time.Time) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []*models.Request
	for _, request := range s.requests {
		if !request.IsDue(now) {
			continue
		}
		due = append(due, cloneRequest(request))
	}
	sortByCreation(due)
	return due, nil
}

// cloneRequest deep-copies the request, including the audit log, so callers
// never share mutable state with the store.
func cloneRequest(r *models.Request) *models.Request {
	copyRequest := *r
	copyRequest.DataCategories = append([]category.Category(nil), r.DataCategories...)
	copyRequest.AuditLog = append([]models.AuditEntry(nil), r.AuditLog...)
	if r.Conditions != nil {
		conditions := make(map[string]string, len(r.Conditions))
		for k, v := range r.Conditions {
			conditions[k] = v
		}
		copyRequest.Conditions = conditions
	}
	return &copyRequest
}

func sortByCreation(requests []*models.Request) {
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
}
