package vaultcache

import (
	"sync"
	"time"
)

// entryStore is the mutable map of cache entries. All methods are safe for
// concurrent use; no method blocks on anything but the mutex, so callers
// must perform remote fetches before calling in, never while holding a
// reference into the store.
type entryStore struct {
	mu sync.RWMutex
	m  map[string]CacheEntry
}

func newEntryStore() *entryStore {
	return &entryStore{m: make(map[string]CacheEntry)}
}

func (s *entryStore) get(path string) (CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[path]
	return e, ok
}

// put upserts e unconditionally, except that FetchedAt never moves backward
// for a path. Used for single-path invalidation updates, whose data comes
// from a fetch that just completed.
func (s *entryStore) put(e CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.m[e.Path]; ok && e.FetchedAt.Before(cur.FetchedAt) {
		e.FetchedAt = cur.FetchedAt
	}
	s.m[e.Path] = e
}

// putIfFresher applies e only when it is at least as fresh as the current
// entry, by remote timestamp first and FetchedAt second. A listed-only
// candidate never downgrades a content-loaded entry with the same remote
// timestamp; it just confirms the metadata. The return value reports
// whether searchable fields (title, tags, content) changed.
func (s *entryStore) putIfFresher(e CacheEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.m[e.Path]
	if !ok {
		s.m[e.Path] = e
		return true
	}
	if e.LastModified.Before(cur.LastModified) || e.FetchedAt.Before(cur.FetchedAt) {
		return false
	}
	if e.State == StateListed && cur.State != StateListed && !e.LastModified.After(cur.LastModified) {
		cur.FetchedAt = e.FetchedAt
		cur.Size = e.Size
		s.m[e.Path] = cur
		return false
	}
	s.m[e.Path] = e
	return e.Digest != cur.Digest || e.State != cur.State
}

// markStale flags path as having a newer remote version that could not be
// fetched. Existing data is retained as last known good.
func (s *entryStore) markStale(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.m[path]; ok {
		cur.State = StateStalePending
		s.m[path] = cur
	}
}

func (s *entryStore) delete(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[path]; !ok {
		return false
	}
	delete(s.m, path)
	return true
}

// deleteIfOlder removes path only when its FetchedAt is not after cutoff.
// The refresh deletion pass uses it with the listing snapshot time, so an
// entry written by a newer invalidation is never removed because a stale
// listing did not know about it yet.
func (s *entryStore) deleteIfOlder(path string, cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.m[path]
	if !ok || cur.FetchedAt.After(cutoff) {
		return false
	}
	delete(s.m, path)
	return true
}

func (s *entryStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// paths returns a snapshot of all cached paths.
func (s *entryStore) paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.m))
	for p := range s.m {
		out = append(out, p)
	}
	return out
}

func (s *entryStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[string]CacheEntry)
}
