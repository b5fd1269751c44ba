package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

func (c *Connector) Start(ctx context.Context) error {
	if c.reporter != nil {
		c.reporter.Starting(componentName, "starting")
	}
	if c.botToken == "" {
		c.disable(ctx, "bot token missing")
		return nil
	}
	if c.inbound == nil {
		c.disable(ctx, "inbound handler missing")
		return nil
	}
	if c.appToken == "" {
		if c.reporter != nil {
			c.reporter.Beat(componentName, "events api webhook mode")
		}
		c.logger.Info("connector started", "mode", "events_api")
		<-ctx.Done()
		c.stop()
		return nil
	}

	c.logger.Info("connector started", "mode", "socket")
	for {
		if ctx.Err() != nil {
			c.stop()
			return nil
		}
		err := c.runSession(ctx)
		if ctx.Err() != nil {
			c.stop()
			return nil
		}
		if c.reporter != nil {
			c.reporter.Degrade(componentName, "socket session error", err)
		}
		c.logger.Error("slack socket session ended, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			c.stop()
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *Connector) disable(ctx context.Context, reason string) {
	if c.reporter != nil {
		c.reporter.Disabled(componentName, reason)
	}
	c.logger.Info("connector disabled", "reason", reason)
	<-ctx.Done()
}

func (c *Connector) stop() {
	if c.reporter != nil {
		c.reporter.Stopped(componentName, "stopped")
	}
	c.logger.Info("connector stopped")
}

// runSession holds one Socket Mode websocket until it fails or Slack asks
// for a reconnect.
func (c *Connector) runSession(ctx context.Context) error {
	socketURL, err := c.openConnection(ctx)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		return fmt.Errorf("dial slack socket: %w", err)
	}
	defer conn.Close()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessionCtx.Done()
		_ = conn.Close()
	}()

	var writeMu sync.Mutex
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read slack socket: %w", err)
		}
		var envelope socketEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.logger.Error("decode slack envelope failed", "error", err)
			continue
		}
		if envelope.EnvelopeID != "" {
			if err := c.ack(conn, &writeMu, envelope.EnvelopeID); err != nil {
				return err
			}
		}
		switch envelope.Type {
		case "hello":
			if c.reporter != nil {
				c.reporter.Beat(componentName, "socket session established")
			}
		case "disconnect":
			return fmt.Errorf("slack requested reconnect: %s", envelope.Reason)
		case "events_api":
			var callback eventCallback
			if err := json.Unmarshal(envelope.Payload, &callback); err != nil {
				c.logger.Error("decode slack event payload failed", "error", err)
				continue
			}
			if c.reporter != nil {
				c.reporter.Beat(componentName, "socket event received")
			}
			c.dispatch(callback)
		}
	}
}

func (c *Connector) ack(conn *websocket.Conn, writeMu *sync.Mutex, envelopeID string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(map[string]string{"envelope_id": envelopeID}); err != nil {
		return fmt.Errorf("ack slack envelope: %w", err)
	}
	return nil
}

func (c *Connector) openConnection(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/apps.connections.open", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.appToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("open slack socket: %w", err)
	}
	defer res.Body.Close()

	var payload struct {
		OK    bool   `json:"ok"`
		URL   string `json:"url"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode apps.connections.open: %w", err)
	}
	if !payload.OK || strings.TrimSpace(payload.URL) == "" {
		return "", fmt.Errorf("slack apps.connections.open failed: status=%d error=%s", res.StatusCode, payload.Error)
	}
	return payload.URL, nil
}
