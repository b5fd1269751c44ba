package slack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/permit-tracker/internal/connectors"
	"github.com/dwizi/permit-tracker/internal/dialogue"
)

const (
	maxEventBody    = 1 << 20
	maxRequestSkew  = 5 * time.Minute
	forwardDeadline = 2 * time.Minute
)

var (
	ErrMissingSignature = errors.New("slack signature headers missing")
	ErrStaleRequest     = errors.New("slack request timestamp outside allowed window")
	ErrBadSignature     = errors.New("slack signature mismatch")
)

// EventsHandler serves the Events API request URL. Requests are verified
// against the signing secret, acknowledged immediately and forwarded to the
// inbound handler in the background.
func (c *Connector) EventsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if err := c.VerifySignature(r.Header, body); err != nil {
			c.logger.Warn("slack event rejected", "error", err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		var envelope eventCallback
		if err := json.Unmarshal(body, &envelope); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if envelope.Type == "url_verification" {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(envelope.Challenge))
			return
		}
		w.WriteHeader(http.StatusOK)
		if r.Header.Get("X-Slack-Retry-Num") != "" {
			c.logger.Debug("slack retry ignored", "event_id", envelope.EventID, "reason", r.Header.Get("X-Slack-Retry-Reason"))
			return
		}
		if envelope.Type == "event_callback" {
			c.dispatch(envelope)
		}
	})
}

// VerifySignature checks X-Slack-Signature, an HMAC-SHA256 over
// "v0:<timestamp>:<body>" keyed by the signing secret.
func (c *Connector) VerifySignature(header http.Header, body []byte) error {
	if c.signingSecret == "" {
		return fmt.Errorf("%w: signing secret not configured", ErrMissingSignature)
	}
	timestamp := strings.TrimSpace(header.Get("X-Slack-Request-Timestamp"))
	signature := strings.TrimSpace(header.Get("X-Slack-Signature"))
	if timestamp == "" || signature == "" {
		return ErrMissingSignature
	}
	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStaleRequest, err)
	}
	skew := c.now().Sub(time.Unix(seconds, 0))
	if skew > maxRequestSkew || skew < -maxRequestSkew {
		return ErrStaleRequest
	}
	expected := Sign(c.signingSecret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// Sign returns the "v0=<hex>" signature Slack would send for body.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte("v0:" + timestamp + ":"))
	_, _ = mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func (c *Connector) forwardAsync(envelope eventCallback) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), forwardDeadline)
		defer cancel()
		if err := c.forward(ctx, envelope); err != nil {
			c.logger.Error("handle slack event failed", "event_id", envelope.EventID, "error", err)
		}
	}()
}

func (c *Connector) forward(ctx context.Context, envelope eventCallback) error {
	event := envelope.Event
	if !acceptsEvent(event) {
		return nil
	}
	text := strings.TrimSpace(stripMentions(event.Text))
	if text == "" {
		return nil
	}
	if c.inbound == nil {
		return fmt.Errorf("slack inbound handler missing")
	}
	c.logger.Info("slack message received", "channel", event.Channel, "user", event.User, "event_id", envelope.EventID)
	return c.inbound.HandleMessage(ctx, dialogue.Event{
		UserID:      connectors.Address(connectorName, event.User),
		Destination: connectors.Address(connectorName, event.Channel),
		Text:        text,
	})
}
