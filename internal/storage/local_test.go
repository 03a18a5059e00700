package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key, err := store.Save(context.Background(), "asaired.csv", strings.NewReader("spots\n3\n"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".csv"))

	f, err := store.Open(context.Background(), key)
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "spots\n3\n", string(data))
}

func TestLocalStoreKeysAreUnique(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	first, err := store.Save(context.Background(), "asaired.csv", strings.NewReader("a"))
	require.NoError(t, err)
	second, err := store.Save(context.Background(), "asaired.csv", strings.NewReader("b"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestLocalStoreRejectsPathLikeKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../escape.csv", "a/b.csv", `a\b.csv`} {
		_, err := store.Open(context.Background(), key)
		assert.Error(t, err, "key %q", key)
	}
}

func TestLocalStoreOpenMissingKey(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "does-not-exist.csv")
	assert.Error(t, err)
}

func TestNewLocalStoreRequiresDir(t *testing.T) {
	_, err := NewLocalStore("  ")
	assert.Error(t, err)
}
