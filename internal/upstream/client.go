package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/angeloszaimis/workload-cache/internal/workload"
)

const DefaultTimeout = 3 * time.Second

// Client fetches workload statuses from the upstream API.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a client for the API rooted at baseURL.
// A non-positive timeout falls back to DefaultTimeout.
func New(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream url %q must use http or https", baseURL)
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: u,
		apiKey:  apiKey,
		timeout: timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 100,
				DialContext: (&net.Dialer{
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
		logger: logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// URL returns the upstream base URL.
func (c *Client) URL() *url.URL {
	return c.baseURL
}

// Fetch asks the upstream API for the workloads matching q.
func (c *Client) Fetch(ctx context.Context, q workload.Query) ([]workload.Item, error) {
	q = q.Normalize()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.workloadURL(q), nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			c.logger.Warn("Cannot close upstream response body", slog.Any("err", err))
		}
	}()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, c.classify(ctx, err)
	}

	c.logger.Debug("Upstream responded",
		slog.String("query", q.Key()),
		slog.Int("status", res.StatusCode),
		slog.Duration("took", time.Since(start)))

	if res.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: res.StatusCode, Body: body}
	}

	var items []workload.Item
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}

	if items == nil {
		items = []workload.Item{}
	}

	return items, nil
}

func (c *Client) workloadURL(q workload.Query) string {
	u := c.baseURL.JoinPath("workload")

	values := url.Values{}
	values.Set("workload_name", q.Name)
	values.Set("workload_namespace", q.Namespace)
	values.Set("workload_uuid", q.UUID)
	u.RawQuery = values.Encode()

	return u.String()
}

func (c *Client) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Timeout: c.timeout, Err: err}
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("upstream request cancelled: %w", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Timeout: c.timeout, Err: err}
	}

	return &NetworkError{Err: err}
}
