package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// WebhookSender posts {"title", "content"} JSON to a webhook URL.
type WebhookSender struct {
	url  string
	http *resty.Client
}

type webhookPayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()
	if code >= 500 && code <= 599 {
		return true
	}
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func NewWebhookSender(cfg Config) *WebhookSender {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(isRetryableResp)

	return &WebhookSender{url: cfg.WebhookURL, http: client}
}

func (s *WebhookSender) Send(ctx context.Context, title, message string) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookPayload{Title: title, Content: message}).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("webhook: send request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook: unexpected status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

func (s *WebhookSender) Name() string { return "webhook" }
