// Package story provides caching utilities for story sessions and the
// multi-step writing workflow built on the completion client.
package story

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/inkwell-ai/inkwell/internal/completion"
)

// Session is one story-writing conversation. Messages is guarded by the
// session mutex; mutate it only through the workflow service.
type Session struct {
	ID        string
	Title     string
	Model     string
	CreatedAt time.Time

	mu       sync.Mutex
	Messages []completion.Message
}

// History returns a copy of the conversation so far.
func (s *Session) History() []completion.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]completion.Message(nil), s.Messages...)
}

// SessionStore holds the LRU cache for story sessions.
type SessionStore struct {
	*lru.Cache[string, *Session]
}

// NewSessionStore creates a new SessionStore with the given size.
// The size parameter determines the maximum number of sessions the cache can hold.
func NewSessionStore(size int) *SessionStore {
	lruCache, err := lru.New[string, *Session](size)
	if err != nil {
		// This should never happen with a valid size, but we'll panic if it does
		// since this is a programming error
		panic(err)
	}

	return &SessionStore{Cache: lruCache}
}

// NegativeSessionCache holds the LRU cache for session IDs that should be ignored.
type NegativeSessionCache struct {
	*lru.Cache[string, bool]
}

// NewNegativeSessionCache creates a new NegativeSessionCache with the given size.
func NewNegativeSessionCache(size int) *NegativeSessionCache {
	lruCache, err := lru.New[string, bool](size)
	if err != nil {
		// This should never happen with a valid size, but we'll panic if it does
		// since this is a programming error
		panic(err)
	}

	return &NegativeSessionCache{Cache: lruCache}
}

// Add adds a session ID to the cache.
func (nc *NegativeSessionCache) Add(sessionID string) {
	nc.Cache.Add(sessionID, true)
}

// Contains checks if a session ID is in the cache.
func (nc *NegativeSessionCache) Contains(sessionID string) bool {
	_, ok := nc.Get(sessionID)

	return ok
}
