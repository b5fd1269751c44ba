package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dwizi/permit-tracker/internal/connectors"
	"github.com/dwizi/permit-tracker/internal/dialogue"
)

const (
	maxWebhookBody  = 64 << 10
	forwardDeadline = 2 * time.Minute
	emptyTwiML      = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

var ErrBadSignature = errors.New("twilio signature mismatch")

// WebhookHandler serves the incoming-message webhook configured on the
// Twilio number. Replies are sent later through the Messages API, so the
// TwiML response is always empty.
func (c *Connector) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		if err := c.VerifySignature(c.signedURL(r), r.PostForm, r.Header.Get("X-Twilio-Signature")); err != nil {
			c.logger.Warn("twilio webhook rejected", "error", err)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
		from := strings.TrimSpace(r.PostForm.Get("From"))
		body := strings.TrimSpace(r.PostForm.Get("Body"))
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(emptyTwiML))
		if from == "" || body == "" {
			return
		}
		c.dispatch(from, body)
	})
}

// VerifySignature checks X-Twilio-Signature: base64 HMAC-SHA1 keyed by the
// auth token over the URL followed by every POST parameter name and value,
// sorted by name.
func (c *Connector) VerifySignature(fullURL string, form url.Values, signature string) error {
	if c.authToken == "" || strings.TrimSpace(signature) == "" {
		return ErrBadSignature
	}
	expected := Sign(c.authToken, fullURL, form)
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
		return ErrBadSignature
	}
	return nil
}

func Sign(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for key := range form {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, key := range keys {
		for _, value := range form[key] {
			b.WriteString(key)
			b.WriteString(value)
		}
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	_, _ = mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Connector) signedURL(r *http.Request) string {
	if c.webhookURL != "" {
		return c.webhookURL
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func (c *Connector) forwardAsync(from, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), forwardDeadline)
		defer cancel()
		if err := c.forward(ctx, from, body); err != nil {
			c.logger.Error("handle twilio message failed", "error", err)
		}
	}()
}

// forward addresses both the user and the reply destination by the sender,
// e.g. "twilio:whatsapp:+15550001111".
func (c *Connector) forward(ctx context.Context, from, body string) error {
	if c.inbound == nil {
		return errors.New("twilio inbound handler missing")
	}
	address := connectors.Address(connectorName, from)
	c.logger.Info("twilio message received", "user_id", address)
	return c.inbound.HandleMessage(ctx, dialogue.Event{
		UserID:      address,
		Destination: address,
		Text:        body,
	})
}
