package promptcache_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/inkwell-ai/inkwell/internal/promptcache"
)

// failingStorage is a BlobStorage double whose operations all fail.
type failingStorage struct{}

func (failingStorage) Load() ([]byte, error) { return nil, errors.New("disk on fire") }
func (failingStorage) Save([]byte) error     { return errors.New("disk on fire") }
func (failingStorage) Delete() error         { return errors.New("disk on fire") }

func newFileStore(t *testing.T, path string, ttl time.Duration) *promptcache.Store {
	t.Helper()

	return promptcache.NewStore(promptcache.NewFileStorage(path), ttl, zaptest.NewLogger(t))
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := newFileStore(t, path, time.Hour)

	store.Put("key-1", "a cached completion")

	content, ok := store.Get("key-1")
	require.True(t, ok)
	assert.Equal(t, "a cached completion", content)
	assert.Equal(t, 1, store.Size())
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	first := newFileStore(t, path, time.Hour)
	first.Put("key-1", "persisted")

	second := newFileStore(t, path, time.Hour)
	content, ok := second.Get("key-1")
	require.True(t, ok)
	assert.Equal(t, "persisted", content)
}

func TestStore_StaleEntryReportsMissButIsNotDeleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	// Persist a blob whose entry is already past the freshness window.
	blob, err := json.Marshal(map[string]promptcache.Entry{
		"stale-key": {Content: "old answer", Timestamp: time.Now().Add(-25 * time.Hour)},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, blob, 0o644))

	store := newFileStore(t, path, 24*time.Hour)

	_, ok := store.Get("stale-key")
	assert.False(t, ok, "stale entries must report a miss")
	assert.Equal(t, 1, store.Size(), "stale entries are never deleted proactively")
}

func TestStore_OverwriteReplacesEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := newFileStore(t, path, time.Hour)

	store.Put("key", "first")
	store.Put("key", "second")

	content, ok := store.Get("key")
	require.True(t, ok)
	assert.Equal(t, "second", content)
	assert.Equal(t, 1, store.Size())
}

func TestStore_CorruptBlobLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("%% not json %%"), 0o644))

	store := newFileStore(t, path, time.Hour)
	assert.Equal(t, 0, store.Size())

	// Normal operation continues after the bad load.
	store.Put("key", "fresh")
	content, ok := store.Get("key")
	require.True(t, ok)
	assert.Equal(t, "fresh", content)
}

func TestStore_FailingStorageNeverSurfaces(t *testing.T) {
	store := promptcache.NewStore(failingStorage{}, time.Hour, zaptest.NewLogger(t))
	assert.Equal(t, 0, store.Size())

	// Put swallows the flush failure; the in-memory entry stays valid.
	store.Put("key", "in memory only")
	content, ok := store.Get("key")
	require.True(t, ok)
	assert.Equal(t, "in memory only", content)

	store.Clear()
	assert.Equal(t, 0, store.Size())
}

func TestStore_ClearEmptiesTableAndRemovesBlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := newFileStore(t, path, time.Hour)

	store.Put("key", "value")
	require.FileExists(t, path)

	store.Clear()
	assert.Equal(t, 0, store.Size())
	assert.NoFileExists(t, path)

	_, ok := store.Get("key")
	assert.False(t, ok)
}
