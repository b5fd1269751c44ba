package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Publish sends an SMS, or a WhatsApp message when externalID carries the
// "whatsapp:" prefix.
func (c *Connector) Publish(ctx context.Context, externalID, text string) error {
	to := strings.TrimSpace(externalID)
	if to == "" {
		return fmt.Errorf("twilio external id is required")
	}
	message := strings.TrimSpace(text)
	if message == "" {
		return nil
	}
	if !c.Enabled() || c.from == "" {
		return fmt.Errorf("twilio sender not configured")
	}
	from := c.from
	if strings.HasPrefix(to, whatsappPrefix) && !strings.HasPrefix(from, whatsappPrefix) {
		from = whatsappPrefix + from
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", message)
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.apiBase, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusOK && res.StatusCode < http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 8192))
		return nil
	}
	bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 8192))
	var apiError struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(bodyBytes, &apiError); err == nil && apiError.Message != "" {
		return fmt.Errorf("twilio send failed: status=%d code=%d message=%s", res.StatusCode, apiError.Code, apiError.Message)
	}
	return fmt.Errorf("twilio send failed: status=%d body=%q", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
}
