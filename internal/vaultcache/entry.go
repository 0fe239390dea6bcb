// Package vaultcache maintains a background, self-refreshing, in-memory
// mirror of the remote vault. It accelerates listing and search and serves
// as a fallback data source while the Obsidian REST API is unreachable.
//
// The cache is not a source of truth: the remote vault always wins on
// conflict, and nothing here is persisted across restarts.
package vaultcache

import "time"

// EntryState describes how much of a cache entry has been populated.
type EntryState int

const (
	// StateListed means the entry was populated from a listing pass and
	// carries metadata only, no content.
	StateListed EntryState = iota
	// StateLoaded means content and full metadata are cached.
	StateLoaded
	// StateStalePending means a newer remote version is known to exist but
	// re-fetching it failed; the cached data is the last known good copy.
	StateStalePending
)

func (s EntryState) String() string {
	switch s {
	case StateListed:
		return "listed"
	case StateLoaded:
		return "loaded"
	case StateStalePending:
		return "stale-pending-refresh"
	default:
		return "unknown"
	}
}

// CacheEntry is the cached view of one vault file, keyed by its
// vault-relative path (case-preserving).
type CacheEntry struct {
	Path    string
	Content string // empty for listed-only entries
	Title   string
	Tags    []string
	Digest  string // sha256 of Content, empty for listed-only entries

	Size         int64
	LastModified time.Time // as reported by the remote vault
	FetchedAt    time.Time // local time this entry was last confirmed accurate
	State        EntryState
}
