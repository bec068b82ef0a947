// Package correlation implements the stream correlation table: a bounded,
// TTL-pruned record of chat request ids whose assistant text was already
// streamed as speech segments, so a later SAY effect for the same id does
// not speak it twice.
package correlation

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCapacity = 64
	defaultTTL      = 5 * time.Minute
)

// Table is safe for concurrent use; the executor's streaming goroutines and
// its SAY-effect handler touch it from different goroutines.
type Table struct {
	mu    sync.Mutex
	cache *lru.LRU[string, int64]
	ttlMs int64
}

// New builds a table with the default capacity (64) and TTL (5 minutes).
func New() *Table {
	return NewWithLimits(defaultCapacity, defaultTTL)
}

// NewWithLimits builds a table with an explicit capacity and TTL, mainly for
// tests that want to exercise eviction without waiting five minutes.
func NewWithLimits(capacity int, ttl time.Duration) *Table {
	return &Table{
		cache: lru.NewLRU[string, int64](capacity, nil, ttl),
		ttlMs: ttl.Milliseconds(),
	}
}

// Set records that chatRequestID's assistant text has been streamed as of
// nowMs.
func (t *Table) Set(chatRequestID string, nowMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache.Add(chatRequestID, nowMs)
}

// Delete removes chatRequestID and reports whether it was present and
// unexpired. The underlying LRU already expires entries lazily on lookup, so
// a post-TTL Get simply misses.
func (t *Table) Delete(chatRequestID string, nowMs int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	recordedAt, ok := t.cache.Get(chatRequestID)
	if !ok {
		return false
	}
	if nowMs-recordedAt >= t.ttlMs {
		t.cache.Remove(chatRequestID)
		return false
	}
	t.cache.Remove(chatRequestID)
	return true
}

// Len reports the number of live entries, for tests and metrics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cache.Len()
}
