package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"custodian/internal/consent/models"
	id "custodian/pkg/domain"
	"custodian/pkg/platform/sentinel"
)

// InMemoryStore stores consent records in memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.ConsentID]*models.Record
}

// New constructs an empty in-memory consent store.
func New() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.ConsentID]*models.Record)}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; ok {
		return sentinel.ErrConflict
	}
	copyRecord := *record
	s.records[record.ID] = &copyRecord
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, workspaceID id.WorkspaceID, consentID id.ConsentID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[consentID]
	if !ok || record.WorkspaceID != workspaceID {
		return nil, sentinel.ErrNotFound
	}
	copyRecord := *record
	return &copyRecord, nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, workspaceID id.WorkspaceID, subject models.Subject, consentType string) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.Record
	for _, record := range s.records {
		if record.WorkspaceID != workspaceID {
			continue
		}
		if consentType != "" && record.ConsentType != consentType {
			continue
		}
		if !record.Subject.Matches(subject) {
			continue
		}
		copyRecord := *record
		matched = append(matched, &copyRecord)
	}
	sortNewestFirst(matched)
	return matched, nil
}

func (s *InMemoryStore) ListByWorkspace(_ context.Context, workspaceID id.WorkspaceID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var listed []*models.Record
	for _, record := range s.records {
		if record.WorkspaceID != workspaceID {
			continue
		}
		copyRecord := *record
		listed = append(listed, &copyRecord)
	}
	sortNewestFirst(listed)
	return listed, nil
}

func (s *InMemoryStore) Update(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[record.ID]
	if !ok || existing.WorkspaceID != record.WorkspaceID {
		return sentinel.ErrNotFound
	}
	copyRecord := *record
	s.records[record.ID] = &copyRecord
	return nil
}

func (s *InMemoryStore) ListExpiredGranted(_ context.Context, now time.Time) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var expired []*models.Record
	for _, record := range s.records {
		if !record.Granted || record.Withdrawn || record.ExpiresAt == nil {
			continue
		}
		if record.ExpiresAt.After(now) {
			continue
		}
		copyRecord := *record
		expired = append(expired, &copyRecord)
	}
	sortNewestFirst(expired)
	return expired, nil
}

func sortNewestFirst(records []*models.Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
