package connectors

import (
	"context"
	"strings"

	"github.com/dwizi/permit-tracker/internal/dialogue"
)

type Connector interface {
	Name() string
	Start(ctx context.Context) error
}

// Publisher delivers text to a connector-local id such as a Slack channel
// or a Telegram chat id.
type Publisher interface {
	Publish(ctx context.Context, externalID, text string) error
}

// InboundHandler receives every chat message a connector accepts.
type InboundHandler interface {
	HandleMessage(ctx context.Context, event dialogue.Event) error
}

// Address joins a connector name and a connector-local id into the
// namespaced form used for user ids and destinations ("telegram:42").
func Address(connector, externalID string) string {
	return strings.ToLower(strings.TrimSpace(connector)) + ":" + strings.TrimSpace(externalID)
}

// SplitAddress is the inverse of Address. Only the first colon separates, so
// "twilio:whatsapp:+1555" yields ("twilio", "whatsapp:+1555").
func SplitAddress(address string) (string, string, bool) {
	connector, externalID, ok := strings.Cut(strings.TrimSpace(address), ":")
	connector = strings.ToLower(strings.TrimSpace(connector))
	externalID = strings.TrimSpace(externalID)
	if !ok || connector == "" || externalID == "" {
		return "", "", false
	}
	return connector, externalID, true
}
