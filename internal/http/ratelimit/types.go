package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiting and retry configuration
type Config struct {
	RequestsPerSecond float64       `json:"requestsPerSecond"`
	MaxRetries        int           `json:"maxRetries"`
	InitialBackoff    time.Duration `json:"initialBackoff"`
	MaxBackoff        time.Duration `json:"maxBackoff"`
}

// DefaultConfig returns the default configuration, which stays under the
// commerce platform's leaky-bucket limit of two requests per second
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 2,
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultConfig
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = d.RequestsPerSecond
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	return c
}

// RateLimiter throttles outgoing requests with a token bucket
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing config.RequestsPerSecond with a
// burst of one
func NewRateLimiter(config Config) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(config.WithDefaults().RequestsPerSecond), 1)}
}

// Throttle blocks until a request may be sent or ctx is done
func (r *RateLimiter) Throttle(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
