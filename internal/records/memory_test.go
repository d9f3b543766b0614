package records

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"custodian/internal/category"
	id "custodian/pkg/domain"
	"custodian/pkg/platform/sentinel"
	"custodian/pkg/testutil"
)

func seedStore(t *testing.T, store *InMemoryStore, workspace id.WorkspaceID) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := store.Upsert(ctx, Record{
			ID:          fmt.Sprintf("post-%d", i),
			WorkspaceID: workspace,
			Category:    category.Posts,
			SubjectID:   "user-1",
			CreatedAt:   base.AddDate(0, 0, i),
			Data:        map[string]any{"title": fmt.Sprintf("post %d", i), "status": "published"},
		})
		require.NoError(t, err)
	}
	_, err := store.Upsert(ctx, Record{
		ID:          "msg-1",
		WorkspaceID: workspace,
		Category:    category.Messages,
		SubjectID:   "user-2",
		CreatedAt:   base,
		Data:        map[string]any{"body": "hi"},
	})
	require.NoError(t, err)
}

func TestInMemoryFindFilters(t *testing.T) {
	ctx := context.Background()
	workspace := id.WorkspaceID(uuid.New())
	store := NewInMemory()
	seedStore(t, store, workspace)

	found, err := store.Find(ctx, workspace, category.Posts, Filter{})
	require.NoError(t, err)
	require.Len(t, found, 3)

	found, err = store.Find(ctx, workspace, category.Posts, Filter{SubjectID: "user-2"})
	require.NoError(t, err)
	require.Empty(t, found)

	cutoff := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	found, err = store.Find(ctx, workspace, category.Posts, Filter{CreatedBefore: &cutoff})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "post-0", found[0].ID)

	found, err = store.Find(ctx, workspace, category.Posts, Filter{Conditions: map[string]string{"status": "draft"}})
	require.NoError(t, err)
	require.Empty(t, found)

	// Other workspaces never see these records.
	found, err = store.Find(ctx, id.WorkspaceID(uuid.New()), category.Posts, Filter{})
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestInMemoryBulkDelete(t *testing.T) {
	ctx := context.Background()
	workspace := id.WorkspaceID(uuid.New())
	store := NewInMemory()
	seedStore(t, store, workspace)

	deleted, err := store.BulkDelete(ctx, workspace, category.Posts, Filter{SubjectID: "user-1"})
	require.NoError(t, err)
	require.Equal(t, 3, deleted)

	found, err := store.Find(ctx, workspace, category.Posts, Filter{IncludeArchived: true})
	require.NoError(t, err)
	require.Empty(t, found)

	// The other category is untouched.
	found, err = store.Find(ctx, workspace, category.Messages, Filter{})
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestInMemoryBulkArchive(t *testing.T) {
	ctx := context.Background()
	workspace := id.WorkspaceID(uuid.New())
	store := NewInMemory()
	seedStore(t, store, workspace)

	archived, err := store.BulkArchive(ctx, workspace, category.Posts, Filter{})
	require.NoError(t, err)
	require.Equal(t, 3, archived)

	// Archiving again is a no-op.
	archived, err = store.BulkArchive(ctx, workspace, category.Posts, Filter{})
	require.NoError(t, err)
	require.Equal(t, 0, archived)

	found, err := store.Find(ctx, workspace, category.Posts, Filter{})
	require.NoError(t, err)
	require.Empty(t, found, "archived records leave the default view")

	found, err = store.Find(ctx, workspace, category.Posts, Filter{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, found, 3)
}

func TestInMemoryAnonymize(t *testing.T) {
	ctx := context.Background()
	workspace := id.WorkspaceID(uuid.New())
	store := NewInMemory()
	seedStore(t, store, workspace)

	err := store.Anonymize(ctx, workspace, category.Posts, "post-0", []string{"title", "missing"})
	require.NoError(t, err)

	found, err := store.Find(ctx, workspace, category.Posts, Filter{})
	require.NoError(t, err)
	for _, record := range found {
		if record.ID != "post-0" {
			continue
		}
		require.Equal(t, AnonymizedPlaceholder, record.SubjectID)
		require.Equal(t, AnonymizedPlaceholder, record.Data["title"])
		require.Equal(t, "published", record.Data["status"])
		require.Equal(t, true, record.Data["deactivated"])
	}

	err = store.Anonymize(ctx, workspace, category.Posts, "no-such-record", nil)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryCountGroupedBy(t *testing.T) {
	ctx := context.Background()
	workspace := id.WorkspaceID(uuid.New())
	store := NewInMemory()
	seedStore(t, store, workspace)

	counts, err := store.CountGroupedBy(ctx, workspace)
	require.NoError(t, err)
	require.Equal(t, map[category.Category]int{
		category.Posts:    3,
		category.Messages: 1,
	}, counts)
}

func TestInMemoryUpsertReturnsCopy(t *testing.T) {
	ctx := context.Background()
	workspace := id.WorkspaceID(uuid.New())
	store := NewInMemory()

	stored, err := store.Upsert(ctx, Record{
		WorkspaceID: workspace,
		Category:    category.Posts,
		SubjectID:   "user-1",
		Data:        map[string]any{"title": "original"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID, "an ID is generated when none is given")

	// Mutating the returned copy must not leak into the store.
	stored.Data["title"] = "mutated"

	found, err := store.Find(ctx, workspace, category.Posts, Filter{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "original", found[0].Data["title"])
}

func TestInMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	workspace := id.WorkspaceID(uuid.New())
	store := NewInMemory()

	result := testutil.RunConcurrent(32, func(idx int) error {
		_, err := store.Upsert(ctx, Record{
			ID:          fmt.Sprintf("rec-%d", idx),
			WorkspaceID: workspace,
			Category:    category.Posts,
			SubjectID:   "user-1",
			CreatedAt:   time.Now().UTC(),
			Data:        map[string]any{"n": idx},
		})
		if err != nil {
			return err
		}
		_, err = store.Find(ctx, workspace, category.Posts, Filter{})
		return err
	})
	require.Equal(t, int32(32), result.Successes)
	require.Equal(t, int32(0), result.Errors)

	counts, err := store.CountGroupedBy(ctx, workspace)
	require.NoError(t, err)
	require.Equal(t, 32, counts[category.Posts])
}
