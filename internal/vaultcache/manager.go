package vaultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/DasScrumTeam/obsidian-mcp-server/internal/apperr"
	"github.com/DasScrumTeam/obsidian-mcp-server/internal/obsidian"
	"github.com/DasScrumTeam/obsidian-mcp-server/internal/parser"
)

// RemoteStore is the slice of the Obsidian API the cache needs. The remote
// client applies its own per-call timeout and retry policy; the cache does
// not retry on top of it.
type RemoteStore interface {
	ListAll(ctx context.Context) ([]obsidian.FileStat, error)
	Fetch(ctx context.Context, path string) (*obsidian.Note, error)
}

// Manager owns the cache entries, the search index, and the lifecycle
// state machine. Get, Search, Invalidate, and UpdateCacheForFile are safe
// to call concurrently with an in-progress build or refresh; at most one
// build/refresh runs at a time.
type Manager struct {
	remote RemoteStore
	store  *entryStore
	idx    *searchIndex
	lc     *lifecycle
	logger *slog.Logger

	// opMu serializes build/refresh. TryLock so an overlapping call is
	// skipped instead of queued.
	opMu sync.Mutex
}

// NewManager creates an empty cache around remote.
func NewManager(remote RemoteStore, logger *slog.Logger) (*Manager, error) {
	idx, err := openSearchIndex()
	if err != nil {
		return nil, err
	}
	return &Manager{
		remote: remote,
		store:  newEntryStore(),
		idx:    idx,
		lc:     &lifecycle{},
		logger: logger,
	}, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() LifecycleState {
	return m.lc.current()
}

// Status returns a snapshot of the cache for observability.
func (m *Manager) Status() Status {
	return m.lc.snapshot(m.store.len())
}

// Len returns the number of cached entries.
func (m *Manager) Len() int {
	return m.store.len()
}

// Paths returns the paths of all cached entries, in no particular order.
func (m *Manager) Paths() []string {
	return m.store.paths()
}

// Close clears the entries and tears down the search index.
func (m *Manager) Close() error {
	m.store.clear()
	return m.idx.close()
}

// Build performs the full listing pass: one listed-only entry per vault
// file, metadata only. On success the cache transitions to ready; on
// failure it returns to idle and the next scheduler tick retries a full
// build. Build never blocks readers.
func (m *Manager) Build(ctx context.Context) error {
	if !m.opMu.TryLock() {
		return nil
	}
	defer m.opMu.Unlock()

	m.lc.set(StateBuilding)
	m.logger.Info("vaultcache: build started")

	stats, err := m.remote.ListAll(ctx)
	if err != nil {
		m.lc.buildFailed(err)
		m.logger.Warn("vaultcache: build failed",
			slog.Int("entries", m.store.len()),
			slog.String("error", err.Error()))
		return err
	}

	now := time.Now()
	for _, st := range stats {
		e := CacheEntry{
			Path:         st.Path,
			Size:         st.Size,
			LastModified: st.LastModified,
			FetchedAt:    now,
			State:        StateListed,
		}
		if m.store.putIfFresher(e) {
			m.indexEntry(e)
		}
	}

	m.lc.buildDone()
	m.logger.Info("vaultcache: build completed", slog.Int("entries", len(stats)))
	return nil
}

// Refresh re-lists the vault and reconciles the cache against it:
//   - new paths are inserted listed-only
//   - paths with a newer remote timestamp get their metadata refreshed
//     eagerly; content is re-fetched eagerly only for entries that already
//     carry content, and marked stale-pending if that fetch fails
//   - paths missing from the listing are deleted
//
// A listing failure leaves every entry untouched (last known good) and is
// not fatal; the next tick fires on schedule.
func (m *Manager) Refresh(ctx context.Context) error {
	if !m.opMu.TryLock() {
		return nil
	}
	defer m.opMu.Unlock()

	m.lc.set(StateRefreshing)

	// Entries written after this point are newer than the listing about to
	// be taken; the deletion pass must leave them alone.
	refreshStart := time.Now()

	stats, err := m.remote.ListAll(ctx)
	if err != nil {
		m.lc.refreshFailed(err)
		m.logger.Warn("vaultcache: refresh failed, keeping entries",
			slog.Int("entries", m.store.len()),
			slog.String("error", err.Error()))
		return err
	}

	seen := make(map[string]struct{}, len(stats))
	var added, updated, stale int

	for _, st := range stats {
		if ctx.Err() != nil {
			m.lc.refreshFailed(ctx.Err())
			return ctx.Err()
		}
		seen[st.Path] = struct{}{}

		cur, ok := m.store.get(st.Path)
		if !ok {
			e := CacheEntry{
				Path:         st.Path,
				Size:         st.Size,
				LastModified: st.LastModified,
				FetchedAt:    time.Now(),
				State:        StateListed,
			}
			if m.store.putIfFresher(e) {
				m.indexEntry(e)
				added++
			}
			continue
		}
		if !st.LastModified.After(cur.LastModified) {
			continue
		}

		if cur.State == StateListed {
			// Eager metadata refresh, content stays unloaded.
			cur.Size = st.Size
			cur.LastModified = st.LastModified
			cur.FetchedAt = time.Now()
			m.store.putIfFresher(cur)
			updated++
			continue
		}

		// Entry carries content: re-fetch it eagerly so fallback search
		// stays accurate.
		note, ferr := m.remote.Fetch(ctx, st.Path)
		if ferr != nil {
			if errors.Is(ferr, apperr.ErrNotFound) {
				m.remove(st.Path)
				delete(seen, st.Path)
				continue
			}
			m.store.markStale(st.Path)
			stale++
			m.logger.Warn("vaultcache: refresh fetch failed",
				slog.String("path", st.Path),
				slog.String("error", ferr.Error()))
			continue
		}
		e := m.entryFromNote(note)
		if m.store.putIfFresher(e) {
			m.indexEntry(e)
			updated++
		}
	}

	var removed int
	for _, p := range m.store.paths() {
		if _, ok := seen[p]; !ok {
			if m.removeIfOlder(p, refreshStart) {
				removed++
			}
		}
	}

	m.lc.refreshDone()
	m.logger.Debug("vaultcache: refresh completed",
		slog.Int("entries", m.store.len()),
		slog.Int("added", added),
		slog.Int("updated", updated),
		slog.Int("removed", removed),
		slog.Int("stale", stale))
	return nil
}

// Get returns the cached entry for path, best-effort and possibly stale,
// regardless of lifecycle state. A miss is not an error; callers decide
// whether it means "does not exist" or "not yet cached".
func (m *Manager) Get(path string) (CacheEntry, bool) {
	return m.store.get(path)
}

// Search matches query against cached paths, titles, tags, and content.
// The second return value reports whether the result may be partial
// because the cache has not completed a build yet. Search never fails:
// an index error degrades to an empty result.
func (m *Manager) Search(query string, limit int) ([]CacheEntry, bool) {
	partial := m.lc.current() == StateIdle || m.lc.current() == StateBuilding

	paths, err := m.idx.search(query, limit)
	if err != nil {
		m.logger.Warn("vaultcache: search failed", slog.String("error", err.Error()))
		return nil, partial
	}

	out := make([]CacheEntry, 0, len(paths))
	for _, p := range paths {
		if e, ok := m.store.get(p); ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, partial
}

// Invalidate removes the entry for path. Consumers call it right after a
// delete succeeds against the remote vault.
func (m *Manager) Invalidate(path string) {
	if m.remove(path) {
		m.logger.Debug("vaultcache: invalidated", slog.String("path", path))
	}
}

// UpdateCacheForFile re-fetches a single path and upserts it with content,
// keeping the cache consistent with adapter-originated writes without a
// full rebuild. A transient fetch failure is logged and left to self-heal
// on the next refresh; a not-found response removes the entry.
func (m *Manager) UpdateCacheForFile(ctx context.Context, path string) error {
	note, err := m.remote.Fetch(ctx, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			m.remove(path)
			return nil
		}
		m.logger.Warn("vaultcache: update after write failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return err
	}

	e := m.entryFromNote(note)
	m.store.put(e)
	m.indexEntry(e)
	return nil
}

// entryFromNote converts a fetched note into a content-loaded entry,
// deriving title and tags from the content when the API did not supply them.
func (m *Manager) entryFromNote(note *obsidian.Note) CacheEntry {
	e := CacheEntry{
		Path:         note.Path,
		Content:      note.Content,
		Tags:         note.Tags,
		Digest:       digest(note.Content),
		Size:         note.Stat.Size,
		LastModified: note.Stat.LastModified,
		FetchedAt:    time.Now(),
		State:        StateLoaded,
	}
	if res, err := parser.Parse([]byte(note.Content)); err == nil {
		e.Title = res.Title
		if len(e.Tags) == 0 {
			e.Tags = res.Tags
		}
	}
	return e
}

func (m *Manager) indexEntry(e CacheEntry) {
	if err := m.idx.upsert(e); err != nil {
		m.logger.Warn("vaultcache: index entry failed",
			slog.String("path", e.Path),
			slog.String("error", err.Error()))
	}
}

// removeIfOlder deletes path unless a concurrent invalidation confirmed it
// after cutoff (last-writer-wins by freshness, not arrival order).
func (m *Manager) removeIfOlder(path string, cutoff time.Time) bool {
	ok := m.store.deleteIfOlder(path, cutoff)
	if ok {
		if err := m.idx.delete(path); err != nil {
			m.logger.Warn("vaultcache: index delete failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
	return ok
}

func (m *Manager) remove(path string) bool {
	ok := m.store.delete(path)
	if ok {
		if err := m.idx.delete(path); err != nil {
			m.logger.Warn("vaultcache: index delete failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
	return ok
}

// digest returns the hex-encoded SHA-256 of content.
func digest(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}
