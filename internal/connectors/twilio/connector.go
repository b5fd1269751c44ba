package twilio

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/permit-tracker/internal/connectors"
	"github.com/dwizi/permit-tracker/internal/heartbeat"
)

const (
	connectorName = "twilio"
	componentName = "connector:twilio"

	whatsappPrefix = "whatsapp:"
)

type Config struct {
	AccountSID string
	AuthToken  string
	// From is the sending number, e.g. "+15550001111". WhatsApp recipients
	// get it with the "whatsapp:" prefix added.
	From    string
	APIBase string
	// WebhookURL is the public URL Twilio signs requests against. When empty
	// the URL is rebuilt from the incoming request.
	WebhookURL string
}

// Connector handles SMS and WhatsApp through Twilio: inbound messages arrive
// on a signed form webhook, outbound messages go through the Messages API.
type Connector struct {
	accountSID string
	authToken  string
	from       string
	apiBase    string
	webhookURL string
	inbound    connectors.InboundHandler
	httpClient *http.Client
	logger     *slog.Logger
	reporter   heartbeat.Reporter
	dispatch   func(from, body string)
}

func New(cfg Config, inbound connectors.InboundHandler, logger *slog.Logger) *Connector {
	apiBase := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if apiBase == "" {
		apiBase = "https://api.twilio.com"
	}
	if logger == nil {
		logger = slog.Default()
	}
	connector := &Connector{
		accountSID: strings.TrimSpace(cfg.AccountSID),
		authToken:  strings.TrimSpace(cfg.AuthToken),
		from:       strings.TrimSpace(cfg.From),
		apiBase:    apiBase,
		webhookURL: strings.TrimSpace(cfg.WebhookURL),
		inbound:    inbound,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
	connector.dispatch = connector.forwardAsync
	return connector
}

func (c *Connector) Name() string {
	return connectorName
}

// Enabled reports whether account credentials are configured.
func (c *Connector) Enabled() bool {
	return c.accountSID != "" && c.authToken != ""
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}

// Start only reports health; inbound traffic arrives through
// WebhookHandler.
func (c *Connector) Start(ctx context.Context) error {
	if c.reporter != nil {
		c.reporter.Starting(componentName, "starting")
	}
	if !c.Enabled() {
		if c.reporter != nil {
			c.reporter.Disabled(componentName, "credentials missing")
		}
		c.logger.Info("connector disabled", "reason", "credentials missing")
		<-ctx.Done()
		return nil
	}
	if c.reporter != nil {
		c.reporter.Beat(componentName, "webhook mode")
	}
	c.logger.Info("connector started", "mode", "webhook")
	<-ctx.Done()
	if c.reporter != nil {
		c.reporter.Stopped(componentName, "stopped")
	}
	c.logger.Info("connector stopped")
	return nil
}
