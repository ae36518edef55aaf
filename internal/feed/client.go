package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the provider's train status service.
const DefaultBaseURL = "https://www.acerail.com/CMSWebParts/ACERail/TrainStatusService.aspx"

// Source fetches one named feed snapshot.
type Source interface {
	Fetch(ctx context.Context, service string) (Records, error)
}

// Client fetches feeds from the provider over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a feed client for baseURL. A zero timeout leaves the
// request bounded only by the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch issues GET {base}?service={service}. The response body is an object
// whose {service} member holds the record list.
func (c *Client) Fetch(ctx context.Context, service string) (Records, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url: %w", err)
	}
	q := u.Query()
	q.Set("service", service)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, u.Redacted())
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", service, err)
	}
	raw, ok := body[service]
	if !ok {
		return nil, fmt.Errorf("response has no %q member", service)
	}
	var recs Records
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("%s is not a record list: %w", service, err)
	}
	return recs, nil
}
