package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prisvakt/compliance-service/internal/http/ratelimit"
)

const userAgent = "Prisvakt-ComplianceService/1.0"

// Client is an HTTP client with rate limiting and retry logic
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.RateLimiter
	config      ratelimit.Config
	onRetry     func(reason string)
}

// NewClient creates a new HTTP client with rate limiting
func NewClient(config ratelimit.Config, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	config = config.WithDefaults()
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: ratelimit.NewRateLimiter(config),
		config:      config,
	}
}

// NewClientDefault creates a new HTTP client with default rate limiting
func NewClientDefault() *Client {
	return NewClient(ratelimit.DefaultConfig(), 0)
}

// OnRetry registers fn to be called before every retry with the reason:
// "network", "rate_limited" or "server_error"
func (c *Client) OnRetry(fn func(reason string)) {
	c.onRetry = fn
}

func (c *Client) retrying(reason string) {
	if c.onRetry != nil {
		c.onRetry(reason)
	}
}

// Get performs a GET request with the given headers. The caller closes the
// response body.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	var lastStatus int
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		// Apply rate limiting
		if err := c.rateLimiter.Throttle(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for k, v := range header {
			req.Header[k] = v
		}
		req.Header.Set("User-Agent", userAgent)
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}

		// Execute request
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil || attempt == c.config.MaxRetries {
				break
			}
			c.retrying("network")
			if err := ratelimit.Sleep(ctx, ratelimit.CalculateBackoff(attempt, c.config)); err != nil {
				return nil, err
			}
			continue
		}

		// Success
		lastStatus = resp.StatusCode
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		// Drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if !ratelimit.IsRetryableStatus(resp.StatusCode) || attempt == c.config.MaxRetries {
			return nil, &ratelimit.FetchRetryError{
				URL:        url,
				Attempts:   attempt + 1,
				LastStatus: resp.StatusCode,
			}
		}

		// Rate limited responses honor Retry-After
		var wait time.Duration
		if resp.StatusCode == http.StatusTooManyRequests {
			c.retrying("rate_limited")
			wait = ratelimit.CalculateRateLimitBackoff(attempt, c.config, resp.Header.Get("Retry-After"))
		} else {
			c.retrying("server_error")
			wait = ratelimit.CalculateBackoff(attempt, c.config)
		}
		if err := ratelimit.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	// All retries exhausted
	return nil, &ratelimit.FetchRetryError{
		URL:        url,
		Attempts:   c.config.MaxRetries + 1,
		LastStatus: lastStatus,
		LastError:  lastErr,
	}
}

// Config returns the rate limit config
func (c *Client) Config() ratelimit.Config {
	return c.config
}
