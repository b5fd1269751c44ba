package telegram

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/permit-tracker/internal/connectors"
	"github.com/dwizi/permit-tracker/internal/heartbeat"
)

const (
	connectorName = "telegram"
	componentName = "connector:telegram"
)

type Connector struct {
	token       string
	apiBase     string
	pollSeconds int
	commandSync bool
	inbound     connectors.InboundHandler
	httpClient  *http.Client
	logger      *slog.Logger
	botUsername string
	offset      int64
	reporter    heartbeat.Reporter
	dispatch    func(batch []telegramMessage)
}

type Option func(*Connector)

func WithCommandSync(enabled bool) Option {
	return func(connector *Connector) {
		connector.commandSync = enabled
	}
}

func New(token, apiBase string, pollSeconds int, inbound connectors.InboundHandler, logger *slog.Logger, opts ...Option) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://api.telegram.org"
	}
	if pollSeconds < 1 {
		pollSeconds = 25
	}
	if logger == nil {
		logger = slog.Default()
	}
	connector := &Connector{
		token:       strings.TrimSpace(token),
		apiBase:     strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		pollSeconds: pollSeconds,
		commandSync: true,
		inbound:     inbound,
		httpClient: &http.Client{
			Timeout: time.Duration(pollSeconds+10) * time.Second,
		},
		logger: logger,
	}
	connector.dispatch = connector.handleAsync
	for _, opt := range opts {
		if opt != nil {
			opt(connector)
		}
	}
	return connector
}

func (c *Connector) Name() string {
	return connectorName
}

// Enabled reports whether a bot token is configured.
func (c *Connector) Enabled() bool {
	return c.token != ""
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}
