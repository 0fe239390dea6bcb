package vaultcache

import (
	"sync"
	"time"
)

// LifecycleState is the process-wide cache state, answering "is the cache
// usable at all". Per-entry freshness is tracked separately on each
// CacheEntry.
type LifecycleState int

const (
	// StateIdle means no successful build has completed yet.
	StateIdle LifecycleState = iota
	// StateBuilding means the initial full listing pass is in progress.
	StateBuilding
	// StateReady means the cache holds a complete listing and fallback
	// answers are trustworthy.
	StateReady
	// StateRefreshing means a periodic refresh is in progress; reads stay
	// fully usable.
	StateRefreshing
)

func (s LifecycleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// lifecycle tracks the cache state machine and completion bookkeeping.
type lifecycle struct {
	mu          sync.Mutex
	state       LifecycleState
	lastBuild   time.Time
	lastRefresh time.Time
	lastErr     error
}

func (l *lifecycle) current() LifecycleState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *lifecycle) set(s LifecycleState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
}

// buildDone records a successful build and transitions to ready.
func (l *lifecycle) buildDone() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateReady
	l.lastBuild = time.Now()
	l.lastErr = nil
}

// buildFailed returns the machine to idle; the next tick retries a full build.
func (l *lifecycle) buildFailed(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateIdle
	l.lastErr = err
}

// refreshDone transitions back to ready whether or not entries changed.
func (l *lifecycle) refreshDone() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateReady
	l.lastRefresh = time.Now()
	l.lastErr = nil
}

// refreshFailed keeps the cache ready on last-known-good data.
func (l *lifecycle) refreshFailed(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateReady
	l.lastErr = err
}

// Status is a point-in-time snapshot of the cache for observability.
type Status struct {
	State       string    `json:"state"`
	Entries     int       `json:"entries"`
	LastBuild   time.Time `json:"last_build,omitzero"`
	LastRefresh time.Time `json:"last_refresh,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
}

func (l *lifecycle) snapshot(entries int) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := Status{
		State:       l.state.String(),
		Entries:     entries,
		LastBuild:   l.lastBuild,
		LastRefresh: l.lastRefresh,
	}
	if l.lastErr != nil {
		st.LastError = l.lastErr.Error()
	}
	return st
}
