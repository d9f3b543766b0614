package registry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"custodian/internal/category"
	"custodian/internal/records"
	id "custodian/pkg/domain"
)

func TestNewDefaultCoversAllCategories(t *testing.T) {
	reg := NewDefault(records.NewInMemory(), nil)

	for _, cat := range category.All {
		_, ok := reg.Lookup(cat)
		require.True(t, ok, "category %s must have a handler", cat)
	}

	_, ok := reg.Lookup(category.Category("telemetry"))
	require.False(t, ok)
}

func TestScopeFilterMapping(t *testing.T) {
	ctx := context.Background()
	workspace := id.WorkspaceID(uuid.New())
	store := records.NewInMemory()
	reg := NewDefault(store, nil)

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, record := range []records.Record{
		{ID: "a", WorkspaceID: workspace, Category: category.Posts, SubjectID: "user-1", CreatedAt: old},
		{ID: "b", WorkspaceID: workspace, Category: category.Posts, SubjectID: "user-1", CreatedAt: recent},
		{ID: "c", WorkspaceID: workspace, Category: category.Posts, SubjectID: "user-2", CreatedAt: recent},
	} {
		_, err := store.Upsert(ctx, record)
		require.NoError(t, err)
	}

	handler, ok := reg.Lookup(category.Posts)
	require.True(t, ok)

	fetched, err := handler.Fetch(ctx, Scope{Workspace: workspace, SubjectID: "user-1"})
	require.NoError(t, err)
	require.Len(t, fetched, 2)

	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	deleted, err := handler.Delete(ctx, Scope{Workspace: workspace, OlderThan: &cutoff})
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	archived, err := handler.Archive(ctx, Scope{Workspace: workspace, SubjectID: "user-2"})
	require.NoError(t, err)
	require.Equal(t, 1, archived)
}

func TestAnonymizingDeleteRedactsInsteadOfRemoving(t *testing.T) {
	ctx := context.Background()
	workspace := id.WorkspaceID(uuid.New())
	store := records.NewInMemory()
	reg := NewDefault(store, []string{"name", "email"})

	_, err := store.Upsert(ctx, records.Record{
		ID:          "profile-1",
		WorkspaceID: workspace,
		Category:    category.UserProfile,
		SubjectID:   "user-1",
		CreatedAt:   time.Now().UTC(),
		Data:        map[string]any{"name": "Ada", "email": "ada@example.com", "plan": "pro"},
	})
	require.NoError(t, err)

	handler, ok := reg.Lookup(category.UserProfile)
	require.True(t, ok)

	count, err := handler.Delete(ctx, Scope{Workspace: workspace, SubjectID: "user-1"})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	found, err := store.Find(ctx, workspace, category.UserProfile, records.Filter{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, found, 1, "profiles are redacted, never removed")
	require.Equal(t, records.AnonymizedPlaceholder, found[0].SubjectID)
	require.Equal(t, records.AnonymizedPlaceholder, found[0].Data["name"])
	require.Equal(t, "pro", found[0].Data["plan"])
}
