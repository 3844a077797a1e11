package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sentinel-logs/sentinel/internal/config"
	"github.com/sentinel-logs/sentinel/internal/logging"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookSink POSTs each update to an HTTP endpoint as a JSON object.
type WebhookSink struct {
	client  *http.Client
	url     string
	headers map[string]string
	logger  *logging.Logger
}

// NewWebhookSink creates a webhook sink targeting cfg.URL.
func NewWebhookSink(cfg config.WebhookNotifyConfig, logger *logging.Logger) *WebhookSink {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultWebhookTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &WebhookSink{
		client:  &http.Client{Timeout: timeout},
		url:     cfg.URL,
		headers: cfg.Headers,
		logger:  logger.WithComponent("notify-webhook"),
	}
}

// Publish delivers one update. Non-2xx responses are errors; the caller
// decides whether to count or ignore them.
func (w *WebhookSink) Publish(ctx context.Context, update Update) error {
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: HTTP %d", resp.StatusCode)
	}
	return nil
}

// Close is a no-op; the sink holds no persistent connection.
func (w *WebhookSink) Close() error { return nil }
