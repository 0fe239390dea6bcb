package vaultcache

import (
	"testing"
	"time"
)

func TestPutIfFresherRejectsOlderTimestamp(t *testing.T) {
	s := newEntryStore()
	now := time.Now()

	s.put(CacheEntry{Path: "a.md", Content: "new", LastModified: now, FetchedAt: now, State: StateLoaded})

	applied := s.putIfFresher(CacheEntry{
		Path:         "a.md",
		LastModified: now.Add(-time.Minute),
		FetchedAt:    now.Add(time.Second),
		State:        StateListed,
	})
	if applied {
		t.Error("older remote timestamp must not be applied")
	}
	e, _ := s.get("a.md")
	if e.Content != "new" {
		t.Errorf("content = %q, want new", e.Content)
	}
}

func TestPutIfFresherAppliesNewerTimestamp(t *testing.T) {
	s := newEntryStore()
	now := time.Now()

	s.put(CacheEntry{Path: "a.md", Content: "old", Digest: "1", LastModified: now.Add(-time.Minute), FetchedAt: now.Add(-time.Minute), State: StateLoaded})

	applied := s.putIfFresher(CacheEntry{
		Path:         "a.md",
		Content:      "new",
		Digest:       "2",
		LastModified: now,
		FetchedAt:    now,
		State:        StateLoaded,
	})
	if !applied {
		t.Fatal("newer entry should be applied")
	}
	e, _ := s.get("a.md")
	if e.Content != "new" {
		t.Errorf("content = %q, want new", e.Content)
	}
}

func TestListedCandidateDoesNotDowngradeLoaded(t *testing.T) {
	s := newEntryStore()
	mtime := time.Now().Add(-time.Minute)

	s.put(CacheEntry{Path: "a.md", Content: "body", Digest: "1", LastModified: mtime, FetchedAt: mtime, State: StateLoaded})

	confirmed := time.Now()
	s.putIfFresher(CacheEntry{
		Path:         "a.md",
		Size:         42,
		LastModified: mtime,
		FetchedAt:    confirmed,
		State:        StateListed,
	})

	e, _ := s.get("a.md")
	if e.State != StateLoaded || e.Content != "body" {
		t.Fatalf("loaded entry downgraded: state=%v content=%q", e.State, e.Content)
	}
	if e.Size != 42 {
		t.Errorf("size = %d, metadata confirmation should still apply", e.Size)
	}
	if !e.FetchedAt.Equal(confirmed) {
		t.Errorf("fetchedAt not advanced by metadata confirmation")
	}
}

func TestPutNeverMovesFetchedAtBackward(t *testing.T) {
	s := newEntryStore()
	now := time.Now()

	s.put(CacheEntry{Path: "a.md", FetchedAt: now, LastModified: now})
	s.put(CacheEntry{Path: "a.md", Content: "x", FetchedAt: now.Add(-time.Second), LastModified: now})

	e, _ := s.get("a.md")
	if e.FetchedAt.Before(now) {
		t.Errorf("fetchedAt moved backward: %v < %v", e.FetchedAt, now)
	}
	if e.Content != "x" {
		t.Errorf("upsert body should still apply, got %q", e.Content)
	}
}

func TestMarkStaleKeepsData(t *testing.T) {
	s := newEntryStore()
	now := time.Now()
	s.put(CacheEntry{Path: "a.md", Content: "body", LastModified: now, FetchedAt: now, State: StateLoaded})

	s.markStale("a.md")

	e, _ := s.get("a.md")
	if e.State != StateStalePending {
		t.Errorf("state = %v, want stale-pending-refresh", e.State)
	}
	if e.Content != "body" {
		t.Errorf("content lost on markStale")
	}
}

func TestDeleteIfOlderSparesNewerEntry(t *testing.T) {
	s := newEntryStore()
	cutoff := time.Now()

	s.put(CacheEntry{Path: "old.md", FetchedAt: cutoff.Add(-time.Second)})
	s.put(CacheEntry{Path: "new.md", FetchedAt: cutoff.Add(time.Second)})

	if !s.deleteIfOlder("old.md", cutoff) {
		t.Error("entry fetched before the cutoff should be deleted")
	}
	if s.deleteIfOlder("new.md", cutoff) {
		t.Error("entry fetched after the cutoff must survive")
	}
	if _, ok := s.get("new.md"); !ok {
		t.Error("new.md vanished")
	}
	if s.deleteIfOlder("missing.md", cutoff) {
		t.Error("unknown path should be a no-op")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	s := newEntryStore()
	s.put(CacheEntry{Path: "a.md", FetchedAt: time.Now()})

	if !s.delete("a.md") {
		t.Fatal("delete should report removal")
	}
	if s.delete("a.md") {
		t.Error("second delete should be a no-op")
	}
	if _, ok := s.get("a.md"); ok {
		t.Error("entry still present after delete")
	}
}
