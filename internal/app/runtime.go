package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dwizi/permit-tracker/internal/config"
	"github.com/dwizi/permit-tracker/internal/connectors"
	"github.com/dwizi/permit-tracker/internal/connectors/slack"
	"github.com/dwizi/permit-tracker/internal/connectors/telegram"
	"github.com/dwizi/permit-tracker/internal/connectors/twilio"
	"github.com/dwizi/permit-tracker/internal/dialogue"
	"github.com/dwizi/permit-tracker/internal/heartbeat"
	"github.com/dwizi/permit-tracker/internal/httpapi"
	"github.com/dwizi/permit-tracker/internal/notify"
	"github.com/dwizi/permit-tracker/internal/recreation"
	"github.com/dwizi/permit-tracker/internal/scanner"
	"github.com/dwizi/permit-tracker/internal/session"
	"github.com/dwizi/permit-tracker/internal/store"
	"github.com/dwizi/permit-tracker/internal/store/badgerdb"
)

func New(cfg config.Config, version string, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	trackingStore, err := OpenStore(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	var registry *heartbeat.Registry
	if cfg.HeartbeatEnabled {
		registry = heartbeat.NewRegistry()
	}

	inbox := notify.NewInbox()
	publishers := map[string]connectors.Publisher{httpapi.ChatConnector: inbox}
	// The dialogue engine is the inbound handler for every connector, but the
	// engine needs the sender first; inbound is bound once both exist.
	inbound := &inboundRelay{}

	slackConnector := slack.New(slack.Config{
		BotToken:      cfg.SlackBotToken,
		AppToken:      cfg.SlackAppToken,
		SigningSecret: cfg.SlackSigningSecret,
		APIBase:       cfg.SlackAPIBase,
	}, inbound, logger.With("connector", "slack"))
	telegramConnector := telegram.New(
		cfg.TelegramToken,
		cfg.TelegramAPI,
		cfg.TelegramPoll,
		inbound,
		logger.With("connector", "telegram"),
		telegram.WithCommandSync(cfg.TelegramSync),
	)
	twilioConnector := twilio.New(twilio.Config{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioFrom,
		APIBase:    cfg.TwilioAPIBase,
		WebhookURL: cfg.TwilioWebhookURL,
	}, inbound, logger.With("connector", "twilio"))

	var runnable []connectors.Connector
	for _, connector := range []enabledConnector{slackConnector, telegramConnector, twilioConnector} {
		if connector.Enabled() {
			publishers[connector.Name()] = connector
		}
		if registry != nil {
			if aware, ok := connector.(heartbeatAware); ok {
				aware.SetHeartbeatReporter(registry)
			}
		}
		runnable = append(runnable, connector)
	}

	sender := notify.NewRouter(publishers, time.Duration(cfg.PublishTimeoutSec)*time.Second, logger.With("component", "notify"))
	permits := recreation.New(cfg.RecreationAPIBase, time.Duration(cfg.RecreationTimeoutSec)*time.Second)
	engine := dialogue.New(permits, sender, trackingStore, session.Config{
		IdleTTL:    time.Duration(cfg.SessionIdleTTLSec) * time.Second,
		MaxEntries: cfg.SessionMaxEntries,
	}, logger.With("component", "dialogue"))
	inbound.bind(engine)

	scanService, err := scanner.New(trackingStore, permits, sender, scanner.Config{
		Schedule:            cfg.ScanSchedule,
		RunOnStart:          cfg.ScanOnStart,
		Concurrency:         cfg.ScanConcurrency,
		SiteTimeout:         time.Duration(cfg.ScanSiteTimeoutSec) * time.Second,
		LookaheadMonths:     cfg.ScanLookaheadMonths,
		FallbackDestination: cfg.AlertDestination,
	}, logger.With("component", "scanner"))
	if err != nil {
		trackingStore.Close()
		return nil, err
	}
	if registry != nil {
		scanService.SetHeartbeatReporter(registry)
	}

	staleAfter := time.Duration(cfg.HeartbeatStaleSec) * time.Second
	deps := httpapi.Dependencies{
		Config:              cfg,
		Version:             version,
		Store:               trackingStore,
		Chat:                engine,
		Inbox:               inbox,
		Connectors:          sender.Connectors(),
		Logger:              logger.With("component", "api"),
		Heartbeat:           registry,
		HeartbeatStaleAfter: staleAfter,
	}
	if slackConnector.Enabled() {
		deps.SlackEvents = slackConnector.EventsHandler()
	}
	if twilioConnector.Enabled() {
		deps.TwilioMessages = twilioConnector.WebhookHandler()
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var monitor *heartbeat.Monitor
	if registry != nil {
		notifier := newHeartbeatNotifier(sender, cfg.HeartbeatNotifyAddress, logger.With("component", "heartbeat-notifier"))
		monitor = heartbeat.NewMonitor(registry, heartbeat.MonitorConfig{
			Interval:     time.Duration(cfg.HeartbeatIntervalSec) * time.Second,
			StaleAfter:   staleAfter,
			Logger:       logger.With("component", "heartbeat"),
			OnTransition: notifier.HandleTransition,
		})
	}

	return &Runtime{
		cfg:              cfg,
		version:          version,
		logger:           logger,
		store:            trackingStore,
		sender:           sender,
		inbox:            inbox,
		engine:           engine,
		scanner:          scanService,
		httpServer:       httpServer,
		connectors:       runnable,
		heartbeat:        registry,
		heartbeatMonitor: monitor,
	}, nil
}

// OpenStore opens and migrates the tracking store selected by
// cfg.StoreDriver, creating its directory when needed.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (TrackingStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverBadger:
		if err := os.MkdirAll(cfg.BadgerDir, 0o755); err != nil {
			return nil, fmt.Errorf("create badger directory: %w", err)
		}
		badgerStore, err := badgerdb.Open(badgerdb.Options{Dir: cfg.BadgerDir, Logger: logger})
		if err != nil {
			return nil, err
		}
		return badgerStore, nil
	case config.StoreDriverSQLite, "":
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		sqlStore, err := store.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if err := sqlStore.AutoMigrate(ctx); err != nil {
			sqlStore.Close()
			return nil, err
		}
		return sqlStore, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// ScanOnce runs a single availability scan outside the schedule.
func (r *Runtime) ScanOnce(ctx context.Context) (scanner.Report, error) {
	return r.scanner.ScanOnce(ctx)
}

// inboundRelay forwards connector messages to a handler bound after
// construction.
type inboundRelay struct {
	handler connectors.InboundHandler
}

func (r *inboundRelay) bind(handler connectors.InboundHandler) {
	r.handler = handler
}

func (r *inboundRelay) HandleMessage(ctx context.Context, event dialogue.Event) error {
	if r.handler == nil {
		return fmt.Errorf("inbound handler is not ready")
	}
	return r.handler.HandleMessage(ctx, event)
}
