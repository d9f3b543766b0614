package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"custodian/internal/category"
	"custodian/internal/export/models"
	id "custodian/pkg/domain"
	"custodian/pkg/platform/sentinel"
)

// InMemoryStore stores export requests in memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.ExportRequestID]*models.Request
}

// New constructs an empty in-memory export request store.
func New() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.ExportRequestID]*models.Request)}
}

func (s *InMemoryStore) Create(_ context.Context, request *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[request.ID]; ok {
		return sentinel.ErrConflict
	}
	copyRequest := cloneRequest(request)
	s.requests[request.ID] = copyRequest
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, workspaceID id.WorkspaceID, requestID id.ExportRequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[requestID]
	if !ok || request.WorkspaceID != workspaceID {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(request), nil
}

func (s *InMemoryStore) GetByID(_ context.Context, requestID id.ExportRequestID) (*models.Request, error) {
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

func (s *InMemoryStore) ListExpired(_ context.Context, now time.Time) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var expired []*models.Request
	for _, request := range s.requests {
		if request.Status != models.StatusCompleted || request.ExpiresAt == nil {
			continue
		}
		if request.ExpiresAt.After(now) {
			continue
		}
		expired = append(expired, cloneRequest(request))
	}
	sortByCreation(expired)
	return expired, nil
}

func (s *InMemoryStore) ListStatusOlderThan(_ context.Context, status models.Status, cutoff time.Time) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.Request
	for _, request := range s.requests {
		if request.Status != status {
			continue
		}
		reference := request.CreatedAt
		if status == models.StatusProcessing && request.StartedAt != nil {
			reference = *request.StartedAt
		}
		if !reference.Before(cutoff) {
			continue
		}
		matched = append(matched, cloneRequest(request))
	}
	sortByCreation(matched)
	return matched, nil
}

// cloneRequest deep-copies the request so callers never share mutable state
// with the store.
func cloneRequest(r *models.Request) *models.Request {
	copyRequest := *r
	copyRequest.DataCategories = append([]category.Category(nil), r.DataCategories...)
	return &copyRequest
}

func sortByCreation(requests []*models.Request) {
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
}
