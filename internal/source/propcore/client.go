// Package propcore is the low-level client for the PropCore
// property-management REST API.
package propcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"propsync/internal/domain"
)

const defaultRetryDelay = 2 * time.Second

// APIError is a non-200 response from the remote API. 429 and 5xx are
// retried; every other status is fatal for the current resource.
type APIError struct {
	StatusCode int
	Resource   string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("propcore: %s returned HTTP %d", e.Resource, e.StatusCode)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// CredentialProvider injects auth material into an outbound request. The
// default implementation decrypts the connection secret per request so
// plaintext never outlives the request being built.
type CredentialProvider interface {
	Apply(req *http.Request) error
}

// Config holds client tuning knobs.
type Config struct {
	PageSize   int
	Timeout    time.Duration
	MaxRetries int
}

// Client issues authenticated, paginated requests against one PropCore
// connection. It has no side effects beyond outbound HTTP.
type Client struct {
	httpClient *http.Client
	conn       *domain.Connection
	creds      CredentialProvider
	pageSize   int
	maxRetries int
	logger     *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func New(conn *domain.Connection, creds CredentialProvider, cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		conn:       conn,
		creds:      creds,
		pageSize:   cfg.PageSize,
		maxRetries: cfg.MaxRetries,
		logger:     logger.With("connection", conn.Name),
		sleep:      sleepContext,
	}
}

func (c *Client) IsConfigured() bool {
	return c.conn.IsConfigured()
}

// TestConnection issues a lightweight probe request. It returns false on any
// failure and never returns an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	if !c.IsConfigured() {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.conn.BaseURL+"/v1/ping", nil)
	if err != nil {
		return false
	}
	if err := c.creds.Apply(req); err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// FetchPage fetches one page of the given resource. A nil modifiedSince
// requests the full dataset; otherwise only records modified since that
// instant are returned.
func (c *Client) FetchPage(ctx context.Context, resource domain.ResourceType, page int, modifiedSince *time.Time) (*Page, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(c.pageSize))
	if modifiedSince != nil {
		params.Set("modified_since", modifiedSince.UTC().Format(time.RFC3339))
	}

	endpoint := fmt.Sprintf("%s/v1/%s?%s", c.conn.BaseURL, resource, params.Encode())

	attempts := c.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := c.doRequest(ctx, endpoint, string(resource))
		if err == nil {
			return result, nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return nil, err
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		delay := retryDelay(err)
		metrics.requestRetries.Inc()
		c.logger.Warn("request failed, retrying",
			"resource", resource,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("fetch %s: after %d attempts: %w", resource, attempts, lastErr)
}

func (c *Client) FetchProperties(ctx context.Context, page int, modifiedSince *time.Time) (*Page, error) {
	return c.FetchPage(ctx, domain.ResourceProperties, page, modifiedSince)
}

func (c *Client) FetchUnits(ctx context.Context, page int, modifiedSince *time.Time) (*Page, error) {
	return c.FetchPage(ctx, domain.ResourceUnits, page, modifiedSince)
}

func (c *Client) FetchLeases(ctx context.Context, page int, modifiedSince *time.Time) (*Page, error) {
	return c.FetchPage(ctx, domain.ResourceLeases, page, modifiedSince)
}

func (c *Client) FetchWorkOrders(ctx context.Context, page int, modifiedSince *time.Time) (*Page, error) {
	return c.FetchPage(ctx, domain.ResourceWorkOrders, page, modifiedSince)
}

func (c *Client) FetchExpenses(ctx context.Context, page int, modifiedSince *time.Time) (*Page, error) {
	return c.FetchPage(ctx, domain.ResourceExpenses, page, modifiedSince)
}

func (c *Client) doRequest(ctx context.Context, endpoint, resource string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "propsync/1.0")

	if err := c.creds.Apply(req); err != nil {
		return nil, fmt.Errorf("apply credentials: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Resource: resource}
		if resp.StatusCode == http.StatusTooManyRequests {
			apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return nil, apiErr
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &page, nil
}

// retryDelay prefers the server's Retry-After hint over the default delay.
func retryDelay(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	return defaultRetryDelay
}

// parseRetryAfter handles both forms of the header: delay seconds and an
// HTTP date. Zero means no usable hint.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}

	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
