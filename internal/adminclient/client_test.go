package adminclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dwizi/permit-tracker/internal/config"
)

func TestClientChat(t *testing.T) {
	t.Parallel()

	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/v1/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user_id":"api:cli","state":"awaiting_area_selection","replies":["Found: *Zion*"]}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	response, err := client.Chat(context.Background(), ChatRequest{UserID: " cli ", Text: " ADD https://www.recreation.gov/permits/1 "})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got.UserID != "cli" || got.Text != "ADD https://www.recreation.gov/permits/1" {
		t.Fatalf("unexpected request payload: %+v", got)
	}
	if response.State != "awaiting_area_selection" || len(response.Replies) != 1 {
		t.Fatalf("unexpected response payload: %+v", response)
	}

	if _, err := client.Chat(context.Background(), ChatRequest{Text: "  "}); err == nil {
		t.Fatal("expected blank text to be rejected")
	}
}

func TestClientTrackingListNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_id") != "slack:U1" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"tracking list not found"}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	_, err := client.TrackingList(context.Background(), "slack:U1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientTrackingListsAndInfo(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/tracking":
			_, _ = w.Write([]byte(`{"count":1,"lists":[{"user_id":"telegram:42","destination":"telegram:42","last_updated":"2026-05-01T12:00:00Z","permit_areas":[]}]}`))
		case "/api/v1/info":
			_, _ = w.Write([]byte(`{"name":"permit-tracker","version":"dev","store_driver":"badger","connectors":["api","telegram"]}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	lists, err := client.TrackingLists(context.Background())
	if err != nil {
		t.Fatalf("list tracking: %v", err)
	}
	if len(lists) != 1 || lists[0].UserID != "telegram:42" {
		t.Fatalf("unexpected lists: %+v", lists)
	}
	info, err := client.Info(context.Background())
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.StoreDriver != "badger" || len(info.Connectors) != 2 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestClientWithTimeoutClonesClient(t *testing.T) {
	t.Parallel()

	base := &Client{
		baseURL: "https://example.com",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	updated := base.WithTimeout(3 * time.Second)
	if updated == nil {
		t.Fatal("expected updated client")
	}
	if updated == base {
		t.Fatal("expected timeout update to clone client")
	}
	if updated.http == base.http {
		t.Fatal("expected timeout update to clone http client")
	}
	if updated.http.Timeout != 3*time.Second {
		t.Fatalf("expected timeout 3s, got %s", updated.http.Timeout)
	}
	if base.http.Timeout != 15*time.Second {
		t.Fatalf("expected original timeout unchanged, got %s", base.http.Timeout)
	}
}

func TestNewValidatesAdminURL(t *testing.T) {
	t.Parallel()

	if _, err := New(config.Config{AdminAPIURL: "not a url"}); err == nil {
		t.Fatal("expected invalid url error")
	}
	client, err := New(config.Config{AdminAPIURL: "http://localhost:8080/"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.baseURL != "http://localhost:8080" || client.http.Timeout != defaultTimeout {
		t.Fatalf("unexpected client: %+v", client)
	}
}
