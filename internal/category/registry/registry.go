// Package registry maps data categories to the handlers that fetch, delete,
// archive and anonymize their records. New categories plug in here without
// touching the export or deletion state machines.
package registry

import (
	"context"
	"time"

	"custodian/internal/category"
	"custodian/internal/records"
	id "custodian/pkg/domain"
)

// Scope narrows a category operation to a subject, a time window and an
// optional opaque condition set. Zero-value fields are ignored.
type Scope struct {
	Workspace  id.WorkspaceID
	SubjectID  string
	From       *time.Time
	To         *time.Time
	OlderThan  *time.Time
	Conditions map[string]string
}

func (s Scope) filter() records.Filter {
	return records.Filter{
		SubjectID:     s.SubjectID,
		CreatedFrom:   s.From,
		CreatedTo:     s.To,
		CreatedBefore: s.OlderThan,
		Conditions:    s.Conditions,
	}
}

// Handler is the capability interface every data category implements.
type Handler interface {
	Fetch(ctx context.Context, scope Scope) ([]records.Record, error)
	Delete(ctx context.Context, scope Scope) (int, error)
	Archive(ctx context.Context, scope Scope) (int, error)
}

// Registry resolves a category to its handler.
type Registry struct {
	handlers map[category.Category]Handler
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[category.Category]Handler)}
}

// Register binds a handler to a category, replacing any previous binding.
func (r *Registry) Register(cat category.Category, h Handler) {
	r.handlers[cat] = h
}

// Lookup returns the handler for a category, or false when the category has
// no binding. Callers treat a missing binding as a skippable condition, not
// a fatal error.
func (r *Registry) Lookup(cat category.Category) (Handler, bool) {
	h, ok := r.handlers[cat]
	return h, ok
}

// NewDefault wires every supported category against the record store. The
// user-profile category anonymizes instead of deleting: profile rows are
// referenced across the system, so identifying fields are replaced and the
// profile deactivated rather than removed.
func NewDefault(store records.Store, anonymizeFields []string) *Registry {
	r := New()
	for _, cat := range category.All {
		if cat == category.UserProfile {
			r.Register(cat, NewAnonymizing(store, cat, anonymizeFields))
			continue
		}
		r.Register(cat, NewStoreBacked(store, cat))
	}
	return r
}

// StoreBacked is the general-purpose handler: every operation maps directly
// onto the record store for one category.
type StoreBacked struct {
	store records.Store
	cat   category.Category
}

// NewStoreBacked constructs a handler that operates on store records of the
// given category.
func NewStoreBacked(store records.Store, cat category.Category) *StoreBacked {
	return &StoreBacked{store: store, cat: cat}
}

func (h *StoreBacked) Fetch(ctx context.Context, scope Scope) ([]records.Record, error) {
	return h.store.Find(ctx, scope.Workspace, h.cat, scope.filter())
}

func (h *StoreBacked) Delete(ctx context.Context, scope Scope) (int, error) {
	return h.store.BulkDelete(ctx, scope.Workspace, h.cat, scope.filter())
}

func (h *StoreBacked) Archive(ctx context.Context, scope Scope) (int, error) {
	return h.store.BulkArchive(ctx, scope.Workspace, h.cat, scope.filter())
}

// Anonymizing handles categories whose records must never be removed
// outright. Delete replaces identifying fields and deactivates each matching
// record, preserving referential integrity elsewhere in the system.
type Anonymizing struct {
	StoreBacked
	fields []string
}

// NewAnonymizing constructs an anonymizing handler with the configured
// redaction field set.
func NewAnonymizing(store records.Store, cat category.Category, fields []string) *Anonymizing {
	return &Anonymizing{
		StoreBacked: StoreBacked{store: store, cat: cat},
		fields:      fields,
	}
}

func (h *Anonymizing) Delete(ctx context.Context, scope Scope) (int, error) {
	matched, err := h.store.Find(ctx, scope.Workspace, h.cat, scope.filter())
	if err != nil {
		return 0, err
	}
	anonymized := 0
	for _, record := range matched {
		if err := h.store.Anonymize(ctx, scope.Workspace, h.cat, record.ID, h.fields); err != nil {
			return anonymized, err
		}
		anonymized++
	}
	return anonymized, nil
}
