package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGet(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put("gpt-4o-mini", "prompt text", "def test_x():\n    pass"))

	got, hit, err := store.Get("gpt-4o-mini", "prompt text")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "def test_x():\n    pass", got)
}

func TestGet_Miss(t *testing.T) {
	store := openTestStore(t)

	_, hit, err := store.Get("gpt-4o-mini", "never stored")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestPut_Overwrite(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put("m", "p", "first"))
	require.NoError(t, store.Put("m", "p", "second"))

	got, hit, err := store.Get("m", "p")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "second", got)
}

func TestKey_ModelPartitions(t *testing.T) {
	// The same prompt under different models must not collide.
	assert.NotEqual(t, Key("model-a", "prompt"), Key("model-b", "prompt"))
	assert.Equal(t, Key("m", "p"), Key("m", "p"))
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.db")

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("m", "p", "r"))
}
