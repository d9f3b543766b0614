// Package records defines the record store adapter consumed by the lifecycle
// components. The engine never owns category data; it reads, deletes,
// archives and anonymizes records through this boundary.
package records

import (
	"context"
	"fmt"
	"time"

	"custodian/internal/category"
	id "custodian/pkg/domain"
)

// Record is one stored item of a data category. Data holds the
// category-specific payload as a flat-ish document.
type Record struct {
	ID          string
	WorkspaceID id.WorkspaceID
	Category    category.Category
	SubjectID   string
	CreatedAt   time.Time
	Archived    bool
	Data        map[string]any
}

// Filter scopes record operations. Zero-value fields are ignored.
type Filter struct {
	SubjectID     string
	CreatedBefore *time.Time
	CreatedFrom   *time.Time
	CreatedTo     *time.Time

	// Conditions is an opaque equality filter against Data values,
	// compared by their string form.
	Conditions map[string]string

	// IncludeArchived widens Find to archived records. Bulk mutations
	// always honor it implicitly: deletion removes archived records too.
	IncludeArchived bool
}

// Matches reports whether the record satisfies the filter.
func (f Filter) Matches(r Record) bool {
	if f.SubjectID != "" && r.SubjectID != f.SubjectID {
		return false
	}
	if f.CreatedBefore != nil && !r.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if f.CreatedFrom != nil && r.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && r.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	for key, want := range f.Conditions {
		got, ok := r.Data[key]
		if !ok || stringify(got) != want {
			return false
		}
	}
	return true
}

// Error Contract:
// - Find returns an empty slice, never an error, when nothing matches
// - Anonymize returns sentinel.ErrNotFound when the record does not exist
// - Infrastructure failures are returned wrapped with context
type Store interface {
	Find(ctx context.Context, workspace id.WorkspaceID, cat category.Category, filter Filter) ([]Record, error)
	BulkDelete(ctx context.Context, workspace id.WorkspaceID, cat category.Category, filter Filter) (int, error)
	BulkArchive(ctx context.Context, workspace id.WorkspaceID, cat category.Category, filter Filter) (int, error)
	Anonymize(ctx context.Context, workspace id.WorkspaceID, cat category.Category, recordID string, fields []string) error
	Upsert(ctx context.Context, record Record) (Record, error)
	CountGroupedBy(ctx context.Context, workspace id.WorkspaceID) (map[category.Category]int, error)
}

// AnonymizedPlaceholder replaces identifying field values during anonymization.
const AnonymizedPlaceholder = "[redacted]"

func stringify(v any) string {
	return fmt.Sprint(v)
}
