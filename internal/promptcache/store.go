// Package promptcache provides the persistent fingerprint-keyed cache of
// completion results.
package promptcache

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is the freshness window honored when none is configured.
const DefaultTTL = 24 * time.Hour

// Entry is one cached completion. Entries are immutable once written; a
// new Put for the same key fully replaces the entry.
type Entry struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is a TTL'd fingerprint→entry table. The whole table is loaded
// once at construction and flushed synchronously on every write; storage
// failures degrade the store, they never surface to callers.
type Store struct {
	logger  *zap.Logger
	storage BlobStorage
	ttl     time.Duration

	mu      sync.Mutex
	entries map[string]Entry
}

// NewStore creates a Store over the given storage. Unreadable or
// structurally incompatible blobs load as an empty table.
func NewStore(storage BlobStorage, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		logger:  logger.Named("prompt_cache"),
		storage: storage,
		ttl:     ttl,
		entries: make(map[string]Entry),
	}
	s.load()

	return s
}

func (s *Store) load() {
	data, err := s.storage.Load()
	if err != nil {
		s.logger.Warn("failed to load prompt cache, starting empty", zap.Error(err))

		return
	}
	if len(data) == 0 {
		return
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("prompt cache blob is corrupt, starting empty", zap.Error(err))

		return
	}

	s.entries = entries
	s.logger.Info("loaded prompt cache", zap.Int("entries", len(entries)))
}

// Get returns the cached content for key if an entry exists and is still
// within the freshness window. Stale entries report a miss; they are
// never deleted proactively, only overwritten by later writes.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if time.Since(entry.Timestamp) >= s.ttl {
		s.logger.Debug("ignoring stale cache entry", zap.String("fingerprint", key))

		return "", false
	}

	return entry.Content, true
}

// Put inserts or replaces the entry for key with the current timestamp
// and flushes the whole table. A flush failure is logged and swallowed;
// the in-memory entry stays valid for the rest of the session.
func (s *Store) Put(key, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = Entry{Content: content, Timestamp: time.Now()}
	s.flushLocked()
}

// Clear empties the table and removes the persisted blob.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Entry)
	if err := s.storage.Delete(); err != nil {
		s.logger.Warn("failed to remove persisted prompt cache", zap.Error(err))
	}
}

// Size reports the number of entries, fresh or stale. Diagnostics only.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

func (s *Store) flushLocked() {
	data, err := json.Marshal(s.entries)
	if err != nil {
		s.logger.Warn("failed to encode prompt cache", zap.Error(err))

		return
	}
	if err := s.storage.Save(data); err != nil {
		s.logger.Warn("failed to persist prompt cache", zap.Error(err))
	}
}
