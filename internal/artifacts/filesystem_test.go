package artifacts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"custodian/pkg/platform/sentinel"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	locator, err := store.Write(ctx, []byte(`{"posts":[]}`))
	require.NoError(t, err)
	require.True(t, len(locator) > len("file://"))

	data, err := store.Read(ctx, locator)
	require.NoError(t, err)
	require.Equal(t, `{"posts":[]}`, string(data))

	require.NoError(t, store.Delete(ctx, locator))

	_, err = store.Read(ctx, locator)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	err = store.Delete(ctx, locator)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestFilesystemStoreRejectsBadLocators(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	for _, locator := range []string{
		"",
		"file://",
		"not-a-locator",
		"file://../escape",
		"file://nested/name",
	} {
		_, err := store.Read(ctx, locator)
		require.ErrorIs(t, err, sentinel.ErrInvalidInput, "locator %q", locator)
	}
}

func TestFilesystemStoreNeverLeavesPartials(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFilesystem(dir)
	require.NoError(t, err)

	locator, err := store.Write(ctx, []byte("payload"))
	require.NoError(t, err)

	// The temp file used during write must be gone after a successful write.
	_, err = store.Read(ctx, locator+".tmp")
	require.Error(t, err)
}
