package records

import (
	"context"
	"sync"

	"custodian/internal/category"
	id "custodian/pkg/domain"
	"custodian/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// InMemoryStore keeps category records in memory. Used in tests and for
// single-process deployments without durability requirements.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.WorkspaceID]map[category.Category]map[string]*Record
}

// NewInMemory constructs an empty in-memory record store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.WorkspaceID]map[category.Category]map[string]*Record)}
}

func (s *InMemoryStore) Find(_ context.Context, workspace id.WorkspaceID, cat category.Category, filter Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []Record
	for _, record := range s.records[workspace][cat] {
		if record.Archived && !filter.IncludeArchived {
			continue
		}
		if !filter.Matches(*record) {
			continue
		}
		found = append(found, cloneRecord(*record))
	}
	return found, nil
}

func (s *InMemoryStore) BulkDelete(_ context.Context, workspace id.WorkspaceID, cat category.Category, filter Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.records[workspace][cat]
	deleted := 0
	for recordID, record := range byID {
		if !filter.Matches(*record) {
			continue
		}
		delete(byID, recordID)
		deleted++
	}
	return deleted, nil
}

func (s *InMemoryStore) BulkArchive(_ context.Context, workspace id.WorkspaceID, cat category.Category, filter Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archived := 0
	for _, record := range s.records[workspace][cat] {
		if record.Archived || !filter.Matches(*record) {
			continue
		}
		record.Archived = true
		archived++
	}
	return archived, nil
}

func (s *InMemoryStore) Anonymize(_ context.Context, workspace id.WorkspaceID, cat category.Category, recordID string, fields []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[workspace][cat][recordID]
	if !ok {
		return sentinel.ErrNotFound
	}
	for _, field := range fields {
		if _, ok := record.Data[field]; ok {
			record.Data[field] = AnonymizedPlaceholder
		}
	}
	record.Data["deactivated"] = true
	record.SubjectID = AnonymizedPlaceholder
	return nil
}

func (s *InMemoryStore) Upsert(_ context.Context, record Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	workspaces, ok := s.records[record.WorkspaceID]
	if !ok {
		workspaces = make(map[category.Category]map[string]*Record)
		s.records[record.WorkspaceID] = workspaces
	}
	byID, ok := workspaces[record.Category]
	if !ok {
		byID = make(map[string]*Record)
		workspaces[record.Category] = byID
	}
	stored := cloneRecord(record)
	byID[record.ID] = &stored
	return cloneRecord(stored), nil
}

func (s *InMemoryStore) CountGroupedBy(_ context.Context, workspace id.WorkspaceID) (map[category.Category]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[category.Category]int)
	for cat, byID := range s.records[workspace] {
		counts[cat] = len(byID)
	}
	return counts, nil
}

// cloneRecord copies the record including its data map to prevent external
// modification of stored state.
func cloneRecord(r Record) Record {
	data := make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		data[k] = v
	}
	r.Data = data
	return r
}
