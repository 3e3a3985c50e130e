package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDuplicatesKeepsFirstSeen(t *testing.T) {
	dir := t.TempDir()
	moviePath := filepath.Join(dir, "dupe.mp4")
	require.NoError(t, os.WriteFile(moviePath, make([]byte, 2048), 0644))

	scenes := []Scene{
		{ID: 1, ForeignID: "X1", Title: "Pilot", LocalPath: moviePath},
		{ID: 2, ForeignID: "X1", Title: "Pilot (copy)", LocalPath: moviePath},
		{ID: 3, ForeignID: "X2", Title: "Finale"},
	}

	result := ResolveDuplicates(scenes)

	require.Len(t, result.Survivors, 2)
	assert.Equal(t, int64(1), result.Survivors[0].ID)
	assert.Equal(t, int64(3), result.Survivors[1].ID)

	require.Len(t, result.Removed, 1)
	assert.Equal(t, int64(2), result.Removed[0].Scene.ID)
	assert.Equal(t, int64(2048), result.Removed[0].Size)
	assert.Equal(t, int64(2048), result.Reclaimed)
}

func TestResolveDuplicatesMissingFileReportsZero(t *testing.T) {
	scenes := []Scene{
		{ID: 1, ForeignID: "X1", Title: "Pilot", LocalPath: "/stash/Acme/pilot.mp4"},
		{ID: 2, ForeignID: "X1", Title: "Pilot"},
	}

	result := ResolveDuplicates(scenes)

	require.Len(t, result.Removed, 1)
	assert.Equal(t, int64(0), result.Removed[0].Size)
	assert.Equal(t, int64(0), result.Reclaimed)
}

func TestResolveDuplicatesIdempotent(t *testing.T) {
	scenes := []Scene{
		{ID: 1, ForeignID: "X1", Title: "Pilot"},
		{ID: 2, ForeignID: "X1", Title: "Pilot"},
		{ID: 3, ForeignID: "X2", Title: "Finale"},
	}

	first := ResolveDuplicates(scenes)
	second := ResolveDuplicates(first.Survivors)

	assert.Empty(t, second.Removed)
	assert.Equal(t, first.Survivors, second.Survivors)
}

func TestStoreResolveDuplicates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, scene := range []Scene{
		{ForeignID: "X1", Title: "Pilot"},
		{ForeignID: "X1", Title: "Pilot again"},
		{ForeignID: "X2", Title: "Finale"},
	} {
		_, err := store.InsertScene(ctx, scene)
		require.NoError(t, err)
	}

	result, err := store.ResolveDuplicates(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Removed, 1)

	require.NoError(t, store.VerifyUnique(ctx))

	count, err := store.SceneCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Second pass is a no-op
	result, err = store.ResolveDuplicates(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Removed)
}

func TestVerifyUniqueFailsOnDuplicates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.InsertScene(ctx, Scene{ForeignID: "X1", Title: "Pilot"})
		require.NoError(t, err)
	}

	assert.Error(t, store.VerifyUnique(ctx))
}
