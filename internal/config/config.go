package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreDriverSQLite = "sqlite"
	StoreDriverBadger = "badger"
)

type Config struct {
	Environment string
	HTTPAddr    string
	DataDir     string
	StoreDriver string
	DBPath      string
	BadgerDir   string

	ScanSchedule           string
	ScanOnStart            bool
	ScanConcurrency        int
	ScanSiteTimeoutSec     int
	ScanLookaheadMonths    int
	AlertDestination       string
	SessionIdleTTLSec      int
	SessionMaxEntries      int
	RecreationAPIBase      string
	RecreationTimeoutSec   int
	PublishTimeoutSec      int
	HeartbeatEnabled       bool
	HeartbeatIntervalSec   int
	HeartbeatStaleSec      int
	HeartbeatNotifyAddress string

	SlackBotToken      string
	SlackAppToken      string
	SlackSigningSecret string
	SlackAPIBase       string
	TelegramToken      string
	TelegramAPI        string
	TelegramPoll       int
	TelegramSync       bool
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioFrom         string
	TwilioAPIBase      string
	TwilioWebhookURL   string

	AdminAPIURL string
}

// Load reads an optional .env file (the first existing path wins, default
// ".env") into the process environment and then builds the config. Variables
// already set in the environment take precedence over the file.
func Load(paths ...string) (Config, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		err := godotenv.Load(path)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	return FromEnv(), nil
}

func FromEnv() Config {
	dataDir := stringOrDefault("PERMIT_TRACKER_DATA_DIR", "./data")
	return Config{
		Environment: stringOrDefault("PERMIT_TRACKER_ENV", "development"),
		HTTPAddr:    stringOrDefault("PERMIT_TRACKER_HTTP_ADDR", ":8080"),
		DataDir:     dataDir,
		StoreDriver: storeDriverOrDefault("PERMIT_TRACKER_STORE_DRIVER", StoreDriverSQLite),
		DBPath:      stringOrDefault("PERMIT_TRACKER_DB_PATH", filepath.Join(dataDir, "permit-tracker.sqlite")),
		BadgerDir:   stringOrDefault("PERMIT_TRACKER_BADGER_DIR", filepath.Join(dataDir, "badger")),

		ScanSchedule:           stringOrDefault("PERMIT_TRACKER_SCAN_SCHEDULE", "@every 15m"),
		ScanOnStart:            boolOrDefault("PERMIT_TRACKER_SCAN_ON_START", false),
		ScanConcurrency:        intOrDefault("PERMIT_TRACKER_SCAN_CONCURRENCY", 4),
		ScanSiteTimeoutSec:     intOrDefault("PERMIT_TRACKER_SCAN_SITE_TIMEOUT_SECONDS", 20),
		ScanLookaheadMonths:    intOrDefault("PERMIT_TRACKER_SCAN_LOOKAHEAD_MONTHS", 2),
		AlertDestination:       strings.TrimSpace(os.Getenv("PERMIT_TRACKER_ALERT_DESTINATION")),
		SessionIdleTTLSec:      intOrDefault("PERMIT_TRACKER_SESSION_IDLE_TTL_SECONDS", 86400),
		SessionMaxEntries:      intOrDefault("PERMIT_TRACKER_SESSION_MAX_ENTRIES", 10000),
		RecreationAPIBase:      stringOrDefault("PERMIT_TRACKER_RECREATION_API_BASE", "https://www.recreation.gov"),
		RecreationTimeoutSec:   intOrDefault("PERMIT_TRACKER_RECREATION_TIMEOUT_SECONDS", 15),
		PublishTimeoutSec:      intOrDefault("PERMIT_TRACKER_PUBLISH_TIMEOUT_SECONDS", 10),
		HeartbeatEnabled:       boolOrDefault("PERMIT_TRACKER_HEARTBEAT_ENABLED", true),
		HeartbeatIntervalSec:   intOrDefault("PERMIT_TRACKER_HEARTBEAT_INTERVAL_SECONDS", 30),
		HeartbeatStaleSec:      intOrDefault("PERMIT_TRACKER_HEARTBEAT_STALE_SECONDS", 3600),
		HeartbeatNotifyAddress: strings.TrimSpace(os.Getenv("PERMIT_TRACKER_HEARTBEAT_NOTIFY_DESTINATION")),

		SlackBotToken:      strings.TrimSpace(os.Getenv("PERMIT_TRACKER_SLACK_BOT_TOKEN")),
		SlackAppToken:      strings.TrimSpace(os.Getenv("PERMIT_TRACKER_SLACK_APP_TOKEN")),
		SlackSigningSecret: strings.TrimSpace(os.Getenv("PERMIT_TRACKER_SLACK_SIGNING_SECRET")),
		SlackAPIBase:       stringOrDefault("PERMIT_TRACKER_SLACK_API_BASE", "https://slack.com/api"),
		TelegramToken:      strings.TrimSpace(os.Getenv("PERMIT_TRACKER_TELEGRAM_TOKEN")),
		TelegramAPI:        stringOrDefault("PERMIT_TRACKER_TELEGRAM_API_BASE", "https://api.telegram.org"),
		TelegramPoll:       intOrDefault("PERMIT_TRACKER_TELEGRAM_POLL_SECONDS", 25),
		TelegramSync:       boolOrDefault("PERMIT_TRACKER_TELEGRAM_COMMAND_SYNC", true),
		TwilioAccountSID:   strings.TrimSpace(os.Getenv("PERMIT_TRACKER_TWILIO_ACCOUNT_SID")),
		TwilioAuthToken:    strings.TrimSpace(os.Getenv("PERMIT_TRACKER_TWILIO_AUTH_TOKEN")),
		TwilioFrom:         strings.TrimSpace(os.Getenv("PERMIT_TRACKER_TWILIO_FROM")),
		TwilioAPIBase:      stringOrDefault("PERMIT_TRACKER_TWILIO_API_BASE", "https://api.twilio.com"),
		TwilioWebhookURL:   strings.TrimSpace(os.Getenv("PERMIT_TRACKER_TWILIO_WEBHOOK_URL")),

		AdminAPIURL: stringOrDefault("PERMIT_TRACKER_ADMIN_API_URL", "http://localhost:8080"),
	}
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func storeDriverOrDefault(name, fallback string) string {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch value {
	case StoreDriverSQLite, StoreDriverBadger:
		return value
	default:
		return fallback
	}
}
