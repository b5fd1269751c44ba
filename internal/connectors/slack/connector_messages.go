package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func (c *Connector) Publish(ctx context.Context, externalID, text string) error {
	channel := strings.TrimSpace(externalID)
	if channel == "" {
		return fmt.Errorf("slack external id is required")
	}
	message := strings.TrimSpace(text)
	if message == "" {
		return nil
	}
	return c.postMessage(ctx, channel, message)
}

func (c *Connector) postMessage(ctx context.Context, channel, text string) error {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    text,
		"mrkdwn":  true,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/chat.postMessage", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(res.Body, 8192))
	if err != nil {
		return fmt.Errorf("read chat.postMessage response: %w", err)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("slack chat.postMessage failed: status=%d body=%q", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	var response struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(bodyBytes, &response); err != nil {
		return fmt.Errorf("decode chat.postMessage: %w", err)
	}
	if !response.OK {
		return fmt.Errorf("slack chat.postMessage failed: error=%s", response.Error)
	}
	return nil
}
