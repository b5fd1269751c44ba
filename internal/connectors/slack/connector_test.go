package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dwizi/permit-tracker/internal/dialogue"
)

type fakeInbound struct {
	events chan dialogue.Event
}

func newFakeInbound() *fakeInbound {
	return &fakeInbound{events: make(chan dialogue.Event, 8)}
}

func (f *fakeInbound) HandleMessage(ctx context.Context, event dialogue.Event) error {
	f.events <- event
	return nil
}

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestConnector(cfg Config, inbound *fakeInbound) (*Connector, chan eventCallback) {
	connector := New(cfg, inbound, slog.New(slog.NewTextHandler(io.Discard, nil)))
	connector.now = func() time.Time { return fixedNow }
	dispatched := make(chan eventCallback, 8)
	connector.dispatch = func(envelope eventCallback) { dispatched <- envelope }
	return connector, dispatched
}

func signedRequest(t *testing.T, secret string, at time.Time, body string) *http.Request {
	t.Helper()
	timestamp := strconv.FormatInt(at.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", Sign(secret, timestamp, []byte(body)))
	return req
}

func TestEventsHandlerURLVerification(t *testing.T) {
	connector, _ := newTestConnector(Config{BotToken: "xoxb", SigningSecret: "secret"}, newFakeInbound())
	recorder := httptest.NewRecorder()
	connector.EventsHandler().ServeHTTP(recorder, signedRequest(t, "secret", fixedNow, `{"type":"url_verification","challenge":"abc123"}`))
	if recorder.Code != http.StatusOK || recorder.Body.String() != "abc123" {
		t.Fatalf("unexpected response %d %q", recorder.Code, recorder.Body.String())
	}
}

func TestEventsHandlerRejectsBadRequests(t *testing.T) {
	connector, dispatched := newTestConnector(Config{BotToken: "xoxb", SigningSecret: "secret"}, newFakeInbound())
	body := `{"type":"event_callback","event":{"type":"message","channel_type":"im","user":"U1","channel":"D1","text":"list"}}`

	cases := map[string]*http.Request{
		"wrong secret": signedRequest(t, "other", fixedNow, body),
		"stale":        signedRequest(t, "secret", fixedNow.Add(-10*time.Minute), body),
		"unsigned":     httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body)),
	}
	for name, req := range cases {
		recorder := httptest.NewRecorder()
		connector.EventsHandler().ServeHTTP(recorder, req)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, recorder.Code)
		}
	}
	if len(dispatched) != 0 {
		t.Fatalf("expected no dispatched events, got %d", len(dispatched))
	}
}

func TestEventsHandlerDispatchesCallbacksAndSkipsRetries(t *testing.T) {
	connector, dispatched := newTestConnector(Config{BotToken: "xoxb", SigningSecret: "secret"}, newFakeInbound())
	body := `{"type":"event_callback","event_id":"Ev1","event":{"type":"message","channel_type":"im","user":"U1","channel":"D1","text":"list"}}`

	recorder := httptest.NewRecorder()
	connector.EventsHandler().ServeHTTP(recorder, signedRequest(t, "secret", fixedNow, body))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	retry := signedRequest(t, "secret", fixedNow, body)
	retry.Header.Set("X-Slack-Retry-Num", "1")
	connector.EventsHandler().ServeHTTP(httptest.NewRecorder(), retry)

	if len(dispatched) != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", len(dispatched))
	}
	envelope := <-dispatched
	if envelope.EventID != "Ev1" || envelope.Event.Text != "list" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestForwardFiltersAndAddresses(t *testing.T) {
	inbound := newFakeInbound()
	connector, _ := newTestConnector(Config{BotToken: "xoxb"}, inbound)
	ctx := context.Background()

	ignored := []messageEvent{
		{Type: "message", ChannelType: "im", BotID: "B1", User: "U1", Channel: "D1", Text: "echo"},
		{Type: "message", ChannelType: "im", Subtype: "message_changed", User: "U1", Channel: "D1", Text: "edit"},
		{Type: "message", ChannelType: "channel", User: "U1", Channel: "C1", Text: "chatter"},
		{Type: "app_mention", User: "U1", Channel: "C1", Text: "<@UBOT>"},
	}
	for _, event := range ignored {
		if err := connector.forward(ctx, eventCallback{Type: "event_callback", Event: event}); err != nil {
			t.Fatalf("forward: %v", err)
		}
	}
	if len(inbound.events) != 0 {
		t.Fatalf("expected ignored events, got %d", len(inbound.events))
	}

	if err := connector.forward(ctx, eventCallback{Event: messageEvent{Type: "app_mention", User: "U1", Channel: "C9", Text: "<@UBOT> add <https://www.recreation.gov/permits/1|link>"}}); err != nil {
		t.Fatalf("forward mention: %v", err)
	}
	event := <-inbound.events
	if event.UserID != "slack:U1" || event.Destination != "slack:C9" {
		t.Fatalf("unexpected addressing: %+v", event)
	}
	if event.Text != "add <https://www.recreation.gov/permits/1|link>" {
		t.Fatalf("unexpected text %q", event.Text)
	}
}

func TestPublishPostsMessage(t *testing.T) {
	var body map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/chat.postMessage" {
			http.NotFound(w, req)
			return
		}
		auth = req.Header.Get("Authorization")
		_ = json.NewDecoder(req.Body).Decode(&body)
		if body["channel"] == "C-missing" {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	connector, _ := newTestConnector(Config{BotToken: "xoxb-1", APIBase: server.URL}, newFakeInbound())
	if err := connector.Publish(context.Background(), "C1", "*Zion*"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if auth != "Bearer xoxb-1" || body["channel"] != "C1" || body["text"] != "*Zion*" {
		t.Fatalf("unexpected request auth=%q body=%v", auth, body)
	}
	err := connector.Publish(context.Background(), "C-missing", "hi")
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected channel_not_found error, got %v", err)
	}
}

func TestSocketSessionAcksAndDispatches(t *testing.T) {
	acks := make(chan string, 4)
	upgrader := websocket.Upgrader{}
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/apps.connections.open":
			if req.Header.Get("Authorization") != "Bearer xapp-1" {
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "invalid_auth"})
				return
			}
			url := "ws" + strings.TrimPrefix(server.URL, "http") + "/socket"
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "url": url})
		case "/socket":
			conn, err := upgrader.Upgrade(w, req, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			_ = conn.WriteJSON(map[string]any{"type": "hello"})
			_ = conn.WriteJSON(map[string]any{
				"envelope_id": "env-1",
				"type":        "events_api",
				"payload": map[string]any{
					"type":     "event_callback",
					"event_id": "Ev9",
					"event":    map[string]any{"type": "message", "channel_type": "im", "user": "U1", "channel": "D1", "text": "help"},
				},
			})
			var ack map[string]string
			if err := conn.ReadJSON(&ack); err == nil {
				acks <- ack["envelope_id"]
			}
			_ = conn.WriteJSON(map[string]any{"type": "disconnect", "reason": "refresh_requested"})
			time.Sleep(50 * time.Millisecond)
		default:
			http.NotFound(w, req)
		}
	}))
	defer server.Close()

	connector, dispatched := newTestConnector(Config{BotToken: "xoxb-1", AppToken: "xapp-1", APIBase: server.URL}, newFakeInbound())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := connector.runSession(ctx)
	if err == nil || !strings.Contains(err.Error(), "reconnect") {
		t.Fatalf("expected reconnect error, got %v", err)
	}
	select {
	case id := <-acks:
		if id != "env-1" {
			t.Fatalf("unexpected ack %q", id)
		}
	default:
		t.Fatal("expected envelope ack")
	}
	select {
	case envelope := <-dispatched:
		if envelope.EventID != "Ev9" || envelope.Event.Text != "help" {
			t.Fatalf("unexpected envelope %+v", envelope)
		}
	default:
		t.Fatal("expected dispatched event")
	}
}
