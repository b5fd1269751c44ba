package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dwizi/permit-tracker/internal/connectors"
)

var (
	ErrInvalidDestination = errors.New("destination must look like connector:id")
	ErrUnknownConnector   = errors.New("no publisher for connector")
)

const defaultPublishTimeout = 10 * time.Second

// Router sends text to namespaced destinations ("slack:C123") through the
// publisher registered for the connector prefix.
type Router struct {
	publishers map[string]connectors.Publisher
	timeout    time.Duration
	logger     *slog.Logger
}

func NewRouter(publishers map[string]connectors.Publisher, timeout time.Duration, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	clean := map[string]connectors.Publisher{}
	for key, publisher := range publishers {
		name := strings.ToLower(strings.TrimSpace(key))
		if name == "" || publisher == nil {
			continue
		}
		clean[name] = publisher
	}
	return &Router{
		publishers: clean,
		timeout:    timeout,
		logger:     logger,
	}
}

func (r *Router) Send(ctx context.Context, destination, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	connector, externalID, ok := connectors.SplitAddress(destination)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDestination, destination)
	}
	publisher := r.publishers[connector]
	if publisher == nil {
		return fmt.Errorf("%w %q", ErrUnknownConnector, connector)
	}
	publishCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := publisher.Publish(publishCtx, externalID, text); err != nil {
		return fmt.Errorf("publish to %s: %w", connector, err)
	}
	r.logger.Debug("message published", "connector", connector, "external_id", externalID, "chars", len(text))
	return nil
}

// Connectors lists the registered connector names in order.
func (r *Router) Connectors() []string {
	names := make([]string, 0, len(r.publishers))
	for name := range r.publishers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
