package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"PERMIT_TRACKER_ENV",
		"PERMIT_TRACKER_HTTP_ADDR",
		"PERMIT_TRACKER_DATA_DIR",
		"PERMIT_TRACKER_STORE_DRIVER",
		"PERMIT_TRACKER_DB_PATH",
		"PERMIT_TRACKER_BADGER_DIR",
		"PERMIT_TRACKER_SCAN_SCHEDULE",
		"PERMIT_TRACKER_SCAN_ON_START",
		"PERMIT_TRACKER_SCAN_CONCURRENCY",
		"PERMIT_TRACKER_SCAN_SITE_TIMEOUT_SECONDS",
		"PERMIT_TRACKER_SCAN_LOOKAHEAD_MONTHS",
		"PERMIT_TRACKER_ALERT_DESTINATION",
		"PERMIT_TRACKER_SESSION_IDLE_TTL_SECONDS",
		"PERMIT_TRACKER_SESSION_MAX_ENTRIES",
		"PERMIT_TRACKER_RECREATION_API_BASE",
		"PERMIT_TRACKER_HEARTBEAT_ENABLED",
		"PERMIT_TRACKER_TELEGRAM_POLL_SECONDS",
		"PERMIT_TRACKER_SLACK_BOT_TOKEN",
		"PERMIT_TRACKER_TWILIO_ACCOUNT_SID",
	} {
		t.Setenv(name, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr %s", cfg.HTTPAddr)
	}
	if cfg.StoreDriver != StoreDriverSQLite {
		t.Fatalf("expected sqlite driver, got %s", cfg.StoreDriver)
	}
	if cfg.DBPath != filepath.Join("./data", "permit-tracker.sqlite") {
		t.Fatalf("unexpected db path %s", cfg.DBPath)
	}
	if cfg.BadgerDir != filepath.Join("./data", "badger") {
		t.Fatalf("unexpected badger dir %s", cfg.BadgerDir)
	}
	if cfg.ScanSchedule != "@every 15m" || cfg.ScanOnStart {
		t.Fatalf("unexpected scan schedule %q on_start=%v", cfg.ScanSchedule, cfg.ScanOnStart)
	}
	if cfg.ScanConcurrency != 4 || cfg.ScanSiteTimeoutSec != 20 || cfg.ScanLookaheadMonths != 2 {
		t.Fatalf("unexpected scan defaults: %+v", cfg)
	}
	if cfg.SessionIdleTTLSec != 86400 || cfg.SessionMaxEntries != 10000 {
		t.Fatalf("unexpected session defaults: %+v", cfg)
	}
	if cfg.RecreationAPIBase != "https://www.recreation.gov" {
		t.Fatalf("unexpected recreation base %s", cfg.RecreationAPIBase)
	}
	if !cfg.HeartbeatEnabled {
		t.Fatal("expected heartbeat enabled by default")
	}
	if cfg.TelegramPoll != 25 {
		t.Fatalf("unexpected telegram poll %d", cfg.TelegramPoll)
	}
	if cfg.AlertDestination != "" || cfg.SlackBotToken != "" || cfg.TwilioAccountSID != "" {
		t.Fatalf("expected empty credentials and destination: %+v", cfg)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PERMIT_TRACKER_DATA_DIR", "/var/lib/permits")
	t.Setenv("PERMIT_TRACKER_STORE_DRIVER", "Badger")
	t.Setenv("PERMIT_TRACKER_SCAN_SCHEDULE", "*/20 * * * *")
	t.Setenv("PERMIT_TRACKER_SCAN_ON_START", "yes")
	t.Setenv("PERMIT_TRACKER_SCAN_CONCURRENCY", "0")
	t.Setenv("PERMIT_TRACKER_SCAN_LOOKAHEAD_MONTHS", "4")
	t.Setenv("PERMIT_TRACKER_ALERT_DESTINATION", " slack:C-alerts ")
	t.Setenv("PERMIT_TRACKER_HEARTBEAT_ENABLED", "off")

	cfg := FromEnv()
	if cfg.StoreDriver != StoreDriverBadger {
		t.Fatalf("expected badger driver, got %s", cfg.StoreDriver)
	}
	if cfg.BadgerDir != filepath.Join("/var/lib/permits", "badger") {
		t.Fatalf("badger dir must follow data dir, got %s", cfg.BadgerDir)
	}
	if cfg.ScanSchedule != "*/20 * * * *" || !cfg.ScanOnStart {
		t.Fatalf("unexpected scan settings %q %v", cfg.ScanSchedule, cfg.ScanOnStart)
	}
	if cfg.ScanConcurrency != 4 {
		t.Fatalf("non-positive concurrency must fall back, got %d", cfg.ScanConcurrency)
	}
	if cfg.ScanLookaheadMonths != 4 {
		t.Fatalf("unexpected lookahead %d", cfg.ScanLookaheadMonths)
	}
	if cfg.AlertDestination != "slack:C-alerts" {
		t.Fatalf("unexpected alert destination %q", cfg.AlertDestination)
	}
	if cfg.HeartbeatEnabled {
		t.Fatal("expected heartbeat disabled")
	}
}

func TestFromEnvUnknownStoreDriverFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PERMIT_TRACKER_STORE_DRIVER", "mongo")
	if cfg := FromEnv(); cfg.StoreDriver != StoreDriverSQLite {
		t.Fatalf("expected sqlite fallback, got %s", cfg.StoreDriver)
	}
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	clearEnv(t)
	t.Setenv("PERMIT_TRACKER_HTTP_ADDR", ":9000")
	path := filepath.Join(t.TempDir(), "test.env")
	content := "PERMIT_TRACKER_HTTP_ADDR=:7000\nPERMIT_TRACKER_PUBLISH_TIMEOUT_SECONDS=9\n"
	t.Cleanup(func() { _ = os.Unsetenv("PERMIT_TRACKER_PUBLISH_TIMEOUT_SECONDS") })
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" {
		t.Fatalf("environment must win over .env, got %s", cfg.HTTPAddr)
	}
	if cfg.PublishTimeoutSec != 9 {
		t.Fatalf("expected publish timeout from .env, got %d", cfg.PublishTimeoutSec)
	}
}
