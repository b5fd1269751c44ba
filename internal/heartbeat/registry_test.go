package heartbeat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	registry := NewRegistry()
	registry.now = clock.Now
	return registry, clock
}

func TestSnapshotMarksStaleComponent(t *testing.T) {
	registry, clock := newTestRegistry()
	registry.Beat("scanner", "users=1 sites=2 failures=0 alerts=0")
	clock.now = clock.now.Add(3 * time.Minute)

	snapshot := registry.Snapshot(60 * time.Second)
	if snapshot.Overall != StateDegraded {
		t.Fatalf("expected degraded overall state, got %s", snapshot.Overall)
	}
	status, ok := snapshot.Component("Scanner")
	if !ok {
		t.Fatal("expected scanner component")
	}
	if status.State != StateStale || status.BaseState != StateHealthy || !status.Stale {
		t.Fatalf("unexpected scanner status: %+v", status)
	}
}

func TestSnapshotDegradeKeepsLastBeat(t *testing.T) {
	registry, clock := newTestRegistry()
	registry.Beat("connector:slack", "connected")
	beatAt := clock.now.Unix()
	clock.now = clock.now.Add(time.Minute)
	registry.Degrade("connector:slack", "socket closed", errors.New("eof"))

	status, _ := registry.Snapshot(0).Component("connector:slack")
	if status.State != StateDegraded || status.Error != "eof" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.LastBeatAtUnix != beatAt {
		t.Fatalf("expected last beat %d, got %d", beatAt, status.LastBeatAtUnix)
	}
}

func TestSnapshotOverall(t *testing.T) {
	registry, _ := newTestRegistry()
	if overall := registry.Snapshot(0).Overall; overall != OverallUnknown {
		t.Fatalf("expected unknown for empty registry, got %s", overall)
	}
	registry.Disabled("connector:telegram", "token missing")
	registry.Disabled("connector:twilio", "credentials missing")
	if overall := registry.Snapshot(0).Overall; overall != OverallIdle {
		t.Fatalf("expected idle overall state, got %s", overall)
	}
	registry.Starting("scanner", "started")
	if overall := registry.Snapshot(0).Overall; overall != StateStarting {
		t.Fatalf("expected starting overall state, got %s", overall)
	}
	registry.Beat("scanner", "ok")
	if overall := registry.Snapshot(0).Overall; overall != StateHealthy {
		t.Fatalf("expected healthy overall state, got %s", overall)
	}
}

func TestMonitorReportsTransitions(t *testing.T) {
	registry, _ := newTestRegistry()
	var received []Transition
	monitor := NewMonitor(registry, MonitorConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnTransition: func(ctx context.Context, transition Transition, snapshot Snapshot) {
			received = append(received, transition)
		},
	})
	ctx := context.Background()

	registry.Beat("scanner", "ok")
	if got := monitor.Check(ctx); len(got) != 0 {
		t.Fatalf("first observation must not be a transition: %+v", got)
	}
	registry.Degrade("scanner", "every site query failed", context.DeadlineExceeded)
	degraded := monitor.Check(ctx)
	if len(degraded) != 1 || !degraded[0].Degraded() || degraded[0].Recovered() {
		t.Fatalf("expected degraded transition, got %+v", degraded)
	}
	registry.Beat("scanner", "recovered")
	recovered := monitor.Check(ctx)
	if len(recovered) != 1 || !recovered[0].Recovered() {
		t.Fatalf("expected recovered transition, got %+v", recovered)
	}
	if got := monitor.Check(ctx); len(got) != 0 {
		t.Fatalf("expected no transition without change, got %+v", got)
	}
	if len(received) != 2 {
		t.Fatalf("expected two callbacks, got %d", len(received))
	}
}
