package slack

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/permit-tracker/internal/connectors"
	"github.com/dwizi/permit-tracker/internal/heartbeat"
)

const (
	connectorName = "slack"
	componentName = "connector:slack"
)

type Config struct {
	BotToken      string
	AppToken      string
	SigningSecret string
	APIBase       string
}

// Connector receives Slack messages either over Socket Mode (when an app
// token is configured) or through the Events API webhook, and posts replies
// with chat.postMessage.
type Connector struct {
	botToken      string
	appToken      string
	signingSecret string
	apiBase       string
	inbound       connectors.InboundHandler
	httpClient    *http.Client
	logger        *slog.Logger
	reporter      heartbeat.Reporter
	now           func() time.Time
	dispatch      func(envelope eventCallback)
}

func New(cfg Config, inbound connectors.InboundHandler, logger *slog.Logger) *Connector {
	apiBase := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if apiBase == "" {
		apiBase = "https://slack.com/api"
	}
	if logger == nil {
		logger = slog.Default()
	}
	connector := &Connector{
		botToken:      strings.TrimSpace(cfg.BotToken),
		appToken:      strings.TrimSpace(cfg.AppToken),
		signingSecret: strings.TrimSpace(cfg.SigningSecret),
		apiBase:       apiBase,
		inbound:       inbound,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		logger:        logger,
		now:           time.Now,
	}
	connector.dispatch = connector.forwardAsync
	return connector
}

func (c *Connector) Name() string {
	return connectorName
}

// Enabled reports whether a bot token is configured.
func (c *Connector) Enabled() bool {
	return c.botToken != ""
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}
