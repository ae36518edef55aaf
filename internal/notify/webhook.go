package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// DefaultWebhookBaseURL is the IFTTT maker endpoint.
const DefaultWebhookBaseURL = "https://maker.ifttt.com"

// ErrMissingCredentials is returned by Post when the webhook key or event
// was not configured. It is checked at send time, not at construction.
var ErrMissingCredentials = errors.New("notification event and key not provided")

// Sink delivers a status message.
type Sink interface {
	Post(ctx context.Context, message string) error
}

// NotificationError reports a failed delivery.
type NotificationError struct {
	Sink       string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *NotificationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("notify %s: HTTP %d: %v", e.Sink, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("notify %s: %v", e.Sink, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// Webhook posts messages to an IFTTT-style maker webhook as {"value1": msg}.
type Webhook struct {
	baseURL    string
	event      string
	key        string
	httpClient *http.Client
}

func NewWebhook(baseURL, event, key string, timeout time.Duration) *Webhook {
	if baseURL == "" {
		baseURL = DefaultWebhookBaseURL
	}
	return &Webhook{
		baseURL:    baseURL,
		event:      event,
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	Value1 string `json:"value1"`
}

func (w *Webhook) Post(ctx context.Context, message string) error {
	if w.event == "" || w.key == "" {
		return ErrMissingCredentials
	}
	endpoint, err := url.JoinPath(w.baseURL, "trigger", w.event, "with", "key", w.key)
	if err != nil {
		return &NotificationError{Sink: "webhook", Err: err}
	}
	body, err := json.Marshal(webhookPayload{Value1: message})
	if err != nil {
		return &NotificationError{Sink: "webhook", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &NotificationError{Sink: "webhook", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("posting status to webhook event %q", w.event)
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return &NotificationError{Sink: "webhook", Err: redact(err)}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &NotificationError{
			Sink:       "webhook",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", bytes.TrimSpace(snippet)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// redact keeps the webhook key out of transport errors, which embed the URL.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s webhook: %w", uerr.Op, uerr.Err)
	}
	return err
}
