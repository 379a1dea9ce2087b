// Package dataaxle is a client for the Data Axle records API: scan and
// scroll pagination over the places and people datasets, plus insights
// aggregations.
package dataaxle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/areascope/internal/resilience"
)

const defaultBaseURL = "https://api.data-axle.com/v1"

// Provider default: 150 requests per 10 second window.
const (
	defaultRateRequests = 150
	defaultRateWindow   = 10 * time.Second
)

// Client queries the records provider.
type Client interface {
	// Scan opens a scroll over every record matching the filter and
	// returns the match count plus the scroll token.
	Scan(ctx context.Context, dataset Dataset, filter Filter) (*ScanResult, error)

	// Scroll fetches the next page of an open scroll. An empty page
	// marks the end.
	Scroll(ctx context.Context, dataset Dataset, scrollID string) (*ScrollPage, error)

	// Insights runs one aggregate calculation over records matching the
	// filter.
	Insights(ctx context.Context, dataset Dataset, filter Filter, calc InsightCalc) (*InsightResult, error)
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the request budget per window.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

type client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a provider client authenticating with the given
// token.
func NewClient(token string, opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
		limiter:    rate.NewLimiter(rate.Every(defaultRateWindow/defaultRateRequests), defaultRateRequests),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doJSON performs one rate-limited, retried API call and decodes the
// response into out.
func (c *client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "dataaxle: marshal request body")
		}
	}

	raw, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.roundTrip(ctx, method, url, payload)
	})
	if err != nil {
		return resilience.Classify(err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return resilience.NewFetchError(resilience.Permanent, 0,
			eris.Wrap(err, "dataaxle: decode response body"))
	}
	return nil
}

func (c *client) roundTrip(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, eris.Wrap(err, "dataaxle: build request")
	}
	req.Header.Set("X-AUTH-TOKEN", c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(raw), 512),
		}
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
