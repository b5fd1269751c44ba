package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dwizi/permit-tracker/internal/config"
	"github.com/dwizi/permit-tracker/internal/connectors"
	"github.com/dwizi/permit-tracker/internal/dialogue"
	"github.com/dwizi/permit-tracker/internal/heartbeat"
	"github.com/dwizi/permit-tracker/internal/notify"
	"github.com/dwizi/permit-tracker/internal/scanner"
	"github.com/dwizi/permit-tracker/internal/tracking"
)

// TrackingStore is implemented by both storage drivers.
type TrackingStore interface {
	GetTrackingList(ctx context.Context, userID string) (tracking.List, error)
	ListTrackingLists(ctx context.Context) ([]tracking.List, error)
	UpsertMerge(ctx context.Context, userID, destination string, area tracking.PermitArea) (tracking.List, error)
	Ping(ctx context.Context) error
	Close() error
}

type Runtime struct {
	cfg              config.Config
	version          string
	logger           *slog.Logger
	store            TrackingStore
	sender           *notify.Router
	inbox            *notify.Inbox
	engine           *dialogue.Engine
	scanner          *scanner.Service
	httpServer       *http.Server
	connectors       []connectors.Connector
	heartbeat        *heartbeat.Registry
	heartbeatMonitor *heartbeat.Monitor
}

type heartbeatAware interface {
	SetHeartbeatReporter(reporter heartbeat.Reporter)
}

type enabledConnector interface {
	connectors.Connector
	connectors.Publisher
	Enabled() bool
}
