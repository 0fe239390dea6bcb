package vaultcache

import (
	"context"
	"testing"
	"time"

	"github.com/DasScrumTeam/obsidian-mcp-server/internal/apperr"
)

func testScheduler(t *testing.T, remote RemoteStore) (*Scheduler, *Manager) {
	t.Helper()
	m := testManager(t, remote)
	return NewScheduler(m, time.Minute, m.logger), m
}

func TestRunCycleBuildsWhileIdle(t *testing.T) {
	remote := newFakeRemote()
	remote.set("a.md", "x", time.Now())

	s, m := testScheduler(t, remote)
	s.RunCycle(context.Background())

	if m.State() != StateReady {
		t.Errorf("state = %v, want ready after first cycle", m.State())
	}
	if m.Len() != 1 {
		t.Errorf("len = %d, want 1", m.Len())
	}
}

func TestRunCycleRetriesFullBuildAfterFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.set("a.md", "x", time.Now())
	remote.fail(apperr.ErrRemoteUnavailable, nil)

	s, m := testScheduler(t, remote)
	s.RunCycle(context.Background())
	if m.State() != StateIdle {
		t.Fatalf("state = %v, want idle after failed build", m.State())
	}

	remote.fail(nil, nil)
	s.RunCycle(context.Background())
	if m.State() != StateReady {
		t.Errorf("state = %v, want ready after retried build", m.State())
	}
	if m.Len() != 1 {
		t.Errorf("len = %d, want 1", m.Len())
	}
}

func TestRunCycleRefreshesWhenReady(t *testing.T) {
	remote := newFakeRemote()
	remote.set("a.md", "x", time.Now())

	s, m := testScheduler(t, remote)
	s.RunCycle(context.Background())

	remote.set("b.md", "y", time.Now())
	s.RunCycle(context.Background())

	if m.Len() != 2 {
		t.Errorf("len = %d, want 2 after refresh picked up the new path", m.Len())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	remote := newFakeRemote()
	s, _ := testScheduler(t, remote)
	s.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
