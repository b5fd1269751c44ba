package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dwizi/permit-tracker/internal/config"
	"github.com/dwizi/permit-tracker/internal/dialogue"
	"github.com/dwizi/permit-tracker/internal/heartbeat"
	"github.com/dwizi/permit-tracker/internal/tracking"
)

type ChatEngine interface {
	HandleMessage(ctx context.Context, event dialogue.Event) error
	Conversation(ctx context.Context, userID string) (dialogue.Conversation, error)
}

type ReplyInbox interface {
	Drain(externalID string) []string
}

type TrackingReader interface {
	GetTrackingList(ctx context.Context, userID string) (tracking.List, error)
	ListTrackingLists(ctx context.Context) ([]tracking.List, error)
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Config              config.Config
	Version             string
	Store               TrackingReader
	Chat                ChatEngine
	Inbox               ReplyInbox
	Connectors          []string
	SlackEvents         http.Handler
	TwilioMessages      http.Handler
	Logger              *slog.Logger
	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/heartbeat", rt.handleHeartbeat)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/chat", rt.handleChat)
	mux.HandleFunc("/api/v1/tracking", rt.handleTracking)
	if deps.SlackEvents != nil {
		mux.Handle("/slack/events", deps.SlackEvents)
	}
	if deps.TwilioMessages != nil {
		mux.Handle("/twilio/messages", deps.TwilioMessages)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
