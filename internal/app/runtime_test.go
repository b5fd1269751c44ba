package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dwizi/permit-tracker/internal/config"
	"github.com/dwizi/permit-tracker/internal/dialogue"
	"github.com/dwizi/permit-tracker/internal/heartbeat"
	"github.com/dwizi/permit-tracker/internal/tracking"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, driver string) config.Config {
	t.Helper()
	dataDir := t.TempDir()
	return config.Config{
		Environment:          "test",
		HTTPAddr:             "127.0.0.1:0",
		DataDir:              dataDir,
		StoreDriver:          driver,
		DBPath:               filepath.Join(dataDir, "nested", "permit-tracker.sqlite"),
		BadgerDir:            filepath.Join(dataDir, "badger"),
		ScanSchedule:         "@every 1h",
		RecreationAPIBase:    "http://127.0.0.1:1",
		RecreationTimeoutSec: 1,
		PublishTimeoutSec:    1,
		HeartbeatEnabled:     true,
		HeartbeatIntervalSec: 1,
		HeartbeatStaleSec:    60,
	}
}

func TestOpenStoreByDriver(t *testing.T) {
	area := tracking.PermitArea{
		ID:   "p1",
		Name: "Zion",
		StartingAreas: []tracking.StartingArea{
			{Name: "West Rim", Sites: []tracking.Site{{ID: "s1", Name: "Site 1"}}},
		},
	}
	for _, driver := range []string{config.StoreDriverSQLite, config.StoreDriverBadger} {
		t.Run(driver, func(t *testing.T) {
			trackingStore, err := OpenStore(context.Background(), testConfig(t, driver), discardLogger())
			if err != nil {
				t.Fatalf("open store: %v", err)
			}
			defer trackingStore.Close()

			if err := trackingStore.Ping(context.Background()); err != nil {
				t.Fatalf("ping: %v", err)
			}
			if _, err := trackingStore.UpsertMerge(context.Background(), "telegram:42", "telegram:42", area); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			lists, err := trackingStore.ListTrackingLists(context.Background())
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(lists) != 1 || lists[0].UserID != "telegram:42" {
				t.Fatalf("unexpected lists: %+v", lists)
			}
		})
	}
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), testConfig(t, "postgres"), discardLogger())
	if err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestNewWiresChatAndScanner(t *testing.T) {
	runtime, err := New(testConfig(t, config.StoreDriverSQLite), "test", discardLogger())
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer runtime.Close()

	if got := runtime.sender.Connectors(); len(got) != 1 || got[0] != "api" {
		t.Fatalf("expected only the api connector without credentials, got %v", got)
	}

	err = runtime.engine.HandleMessage(context.Background(), dialogue.Event{
		UserID:      "api:cli",
		Destination: "api:cli",
		Text:        "help",
	})
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}
	replies := runtime.inbox.Drain("cli")
	if len(replies) != 1 || !strings.HasPrefix(replies[0], "Options:") {
		t.Fatalf("expected help reply, got %v", replies)
	}

	report, err := runtime.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan once: %v", err)
	}
	if report.Users != 0 || report.AlertsSent != 0 {
		t.Fatalf("unexpected empty scan report: %+v", report)
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t, config.StoreDriverSQLite)
	cfg.ScanSchedule = "every now and then"
	if _, err := New(cfg, "test", discardLogger()); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	runtime, err := New(testConfig(t, config.StoreDriverSQLite), "test", discardLogger())
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer runtime.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runtime.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}
}

func TestRunMonitoredReportsFailure(t *testing.T) {
	registry := heartbeat.NewRegistry()
	boom := errors.New("listen failed")
	err := runMonitored(context.Background(), registry, "api", 0, func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected run error, got %v", err)
	}
	status, ok := registry.Snapshot(time.Minute).Component("api")
	if !ok || status.State != heartbeat.StateDegraded || status.Error != "listen failed" {
		t.Fatalf("unexpected status: %+v", status)
	}

	err = runMonitored(context.Background(), registry, "worker", 0, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, _ = registry.Snapshot(time.Minute).Component("worker")
	if status.State != heartbeat.StateStopped {
		t.Fatalf("expected stopped, got %+v", status)
	}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	dest []string
	err  error
}

func (s *recordingSender) Send(ctx context.Context, destination, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dest = append(s.dest, destination)
	s.sent = append(s.sent, text)
	return s.err
}

func TestHeartbeatNotifierSendsDegradedAndRecovered(t *testing.T) {
	sender := &recordingSender{}
	notifier := newHeartbeatNotifier(sender, " slack:C1 ", discardLogger())
	notifier.now = func() time.Time { return time.Date(2026, 5, 1, 7, 0, 0, 0, time.UTC) }
	snapshot := heartbeat.Snapshot{Overall: heartbeat.StateDegraded}

	notifier.HandleTransition(context.Background(), heartbeat.Transition{
		Component: "scanner",
		FromState: heartbeat.StateHealthy,
		ToState:   heartbeat.StateDegraded,
		Error:     "store   unavailable\nretrying",
	}, snapshot)
	notifier.HandleTransition(context.Background(), heartbeat.Transition{
		Component: "scanner",
		FromState: heartbeat.StateStarting,
		ToState:   heartbeat.StateHealthy,
	}, snapshot)
	notifier.HandleTransition(context.Background(), heartbeat.Transition{
		Component: "scanner",
		FromState: heartbeat.StateDegraded,
		ToState:   heartbeat.StateHealthy,
	}, heartbeat.Snapshot{Overall: heartbeat.StateHealthy})

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d: %v", len(sender.sent), sender.sent)
	}
	if sender.dest[0] != "slack:C1" {
		t.Fatalf("unexpected destination %q", sender.dest[0])
	}
	if !strings.HasPrefix(sender.sent[0], "Heartbeat degraded") || !strings.Contains(sender.sent[0], "- error: store unavailable retrying") {
		t.Fatalf("unexpected degraded message: %q", sender.sent[0])
	}
	if !strings.Contains(sender.sent[0], "- at: 2026-05-01T07:00:00Z") {
		t.Fatalf("missing timestamp: %q", sender.sent[0])
	}
	if !strings.HasPrefix(sender.sent[1], "Heartbeat recovered") {
		t.Fatalf("unexpected recovered message: %q", sender.sent[1])
	}
}

func TestHeartbeatNotifierWithoutDestinationIsSilent(t *testing.T) {
	sender := &recordingSender{}
	notifier := newHeartbeatNotifier(sender, "", discardLogger())
	notifier.HandleTransition(context.Background(), heartbeat.Transition{
		Component: "scanner",
		FromState: heartbeat.StateHealthy,
		ToState:   heartbeat.StateDegraded,
	}, heartbeat.Snapshot{})
	if len(sender.sent) != 0 {
		t.Fatalf("expected no notifications, got %v", sender.sent)
	}
}
