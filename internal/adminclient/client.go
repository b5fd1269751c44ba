package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dwizi/permit-tracker/internal/config"
	"github.com/dwizi/permit-tracker/internal/tracking"
)

const defaultTimeout = 30 * time.Second

// ErrNotFound is returned when the server has no tracking list for a user.
var ErrNotFound = errors.New("not found")

type Client struct {
	baseURL string
	http    *http.Client
}

type ChatRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type ChatResponse struct {
	UserID  string   `json:"user_id"`
	State   string   `json:"state"`
	Replies []string `json:"replies"`
}

type ListTrackingResponse struct {
	Count int             `json:"count"`
	Lists []tracking.List `json:"lists"`
}

type Info struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Environment  string   `json:"environment"`
	StoreDriver  string   `json:"store_driver"`
	ScanSchedule string   `json:"scan_schedule"`
	Connectors   []string `json:"connectors"`
}

func New(cfg config.Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.AdminAPIURL), "/")
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid admin api url %q", cfg.AdminAPIURL)
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if c == nil {
		return nil
	}
	if timeout < time.Second {
		return c
	}
	clone := *c
	if c.http == nil {
		clone.http = &http.Client{Timeout: timeout}
		return &clone
	}
	httpClone := *c.http
	httpClone.Timeout = timeout
	clone.http = &httpClone
	return &clone
}

func (c *Client) Chat(ctx context.Context, input ChatRequest) (ChatResponse, error) {
	input.Text = strings.TrimSpace(input.Text)
	input.UserID = strings.TrimSpace(input.UserID)
	if input.Text == "" {
		return ChatResponse{}, fmt.Errorf("text is required")
	}
	requestBody, err := json.Marshal(input)
	if err != nil {
		return ChatResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/chat", bytes.NewReader(requestBody))
	if err != nil {
		return ChatResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var response ChatResponse
	if err := c.doJSON(req, &response); err != nil {
		return ChatResponse{}, err
	}
	return response, nil
}

// TrackingList fetches the list stored for a namespaced user id such as
// "slack:U123".
func (c *Client) TrackingList(ctx context.Context, userID string) (tracking.List, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return tracking.List{}, fmt.Errorf("user id is required")
	}
	endpoint := c.baseURL + "/api/v1/tracking?user_id=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return tracking.List{}, err
	}
	var list tracking.List
	if err := c.doJSON(req, &list); err != nil {
		return tracking.List{}, err
	}
	return list, nil
}

func (c *Client) TrackingLists(ctx context.Context) ([]tracking.List, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/tracking", nil)
	if err != nil {
		return nil, err
	}
	var response ListTrackingResponse
	if err := c.doJSON(req, &response); err != nil {
		return nil, err
	}
	return response.Lists, nil
}

func (c *Client) Info(ctx context.Context) (Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/info", nil)
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := c.doJSON(req, &info); err != nil {
		return Info{}, err
	}
	return info, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var apiError struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiError)
		if strings.TrimSpace(apiError.Error) == "" {
			apiError.Error = res.Status
		}
		if res.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", apiError.Error, ErrNotFound)
		}
		return errors.New(apiError.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
