package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type botCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

var botCommands = []botCommand{
	{Command: "add", Description: "Track a permit: /add <permit url>"},
	{Command: "list", Description: "Show the sites you are tracking"},
	{Command: "cancel", Description: "Drop the current question"},
	{Command: "help", Description: "Show usage"},
}

// apiEnvelope is the wrapper every Bot API method answers with.
type apiEnvelope struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// callAPI invokes a Bot API method, POSTing payload as JSON or issuing a GET
// when payload is nil, and decodes the result into out when out is non-nil.
func (c *Connector) callAPI(ctx context.Context, method string, payload any, out any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	name, _, _ := strings.Cut(method, "?")

	httpMethod := http.MethodGet
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		httpMethod = http.MethodPost
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", name, err)
	}
	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode %s: status=%d body=%q err=%w", name, res.StatusCode, snippet(raw), err)
	}
	if !envelope.OK || res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		description := strings.TrimSpace(envelope.Description)
		if description == "" {
			description = snippet(raw)
		}
		if envelope.ErrorCode > 0 {
			return fmt.Errorf("telegram %s failed: status=%d error_code=%d description=%s", name, res.StatusCode, envelope.ErrorCode, description)
		}
		return fmt.Errorf("telegram %s failed: status=%d description=%s", name, res.StatusCode, description)
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", name, err)
	}
	return nil
}

func snippet(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > 512 {
		return text[:512]
	}
	return text
}

func (c *Connector) syncCommands(ctx context.Context) error {
	return c.callAPI(ctx, "setMyCommands", map[string]any{"commands": botCommands}, nil)
}

func (c *Connector) fetchBotUsername(ctx context.Context) (string, error) {
	var me struct {
		Username string `json:"username"`
	}
	if err := c.callAPI(ctx, "getMe", nil, &me); err != nil {
		return "", err
	}
	return strings.TrimSpace(me.Username), nil
}

func (c *Connector) sendMessage(ctx context.Context, chatID int64, text string) error {
	return c.callAPI(ctx, "sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}, nil)
}
