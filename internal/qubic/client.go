// Package qubic is a client for the Qubic public RPC endpoint.
package qubic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stywzn/qdashboard/pkg/resilience"
)

const DefaultBaseURL = "https://rpc.qubic.org/v1"

const maxErrorBody = 4 << 10

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("qubic rpc %s: status %d: %s", e.Path, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("qubic rpc %s: status %d", e.Path, e.StatusCode)
}

// Temporary reports whether the status is worth retrying.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// API is what the dashboard needs from the RPC endpoint.
type API interface {
	LatestTick(ctx context.Context) (uint64, error)
	TickInfo(ctx context.Context) (TickInfo, error)
	LatestStats(ctx context.Context) (Stats, error)
	Status(ctx context.Context) (Status, error)
}

type Client struct {
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithRetry(cfg resilience.RetryConfig) Option { return func(c *Client) { c.retry = cfg } }

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) LatestTick(ctx context.Context) (uint64, error) {
	var out struct {
		LatestTick uint64 `json:"latestTick"`
	}
	if err := c.get(ctx, "/latest-tick", &out); err != nil {
		return 0, err
	}
	return out.LatestTick, nil
}

func (c *Client) TickInfo(ctx context.Context) (TickInfo, error) {
	var out struct {
		TickInfo TickInfo `json:"tickInfo"`
	}
	if err := c.get(ctx, "/tick-info", &out); err != nil {
		return TickInfo{}, err
	}
	return out.TickInfo, nil
}

func (c *Client) LatestStats(ctx context.Context) (Stats, error) {
	var out struct {
		Data Stats `json:"data"`
	}
	if err := c.get(ctx, "/latest-stats", &out); err != nil {
		return Stats{}, err
	}
	return out.Data, nil
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	if err := c.get(ctx, "/status", &out); err != nil {
		return Status{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	return resilience.Retry(ctx, c.retry, func() error {
		return c.getOnce(ctx, path, dst)
	})
}

func (c *Client) getOnce(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("qubic rpc %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{StatusCode: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("qubic rpc %s: empty body", path)
		}
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
