package ratelimit

import (
	"context"
	"math"
	"math/rand/v2"
	"strconv"
	"time"
)

// FetchRetryError represents an error when all retry attempts are exhausted
type FetchRetryError struct {
	URL        string
	Attempts   int
	LastStatus int
	LastError  error
}

func (e *FetchRetryError) Error() string {
	msg := "failed to fetch " + e.URL + " after " + strconv.Itoa(e.Attempts) + " attempts"
	if e.LastStatus != 0 {
		msg += " (HTTP " + strconv.Itoa(e.LastStatus) + ")"
	}
	if e.LastError != nil {
		msg += ": " + e.LastError.Error()
	}
	return msg
}

func (e *FetchRetryError) Unwrap() error {
	return e.LastError
}

// IsRetryableStatus checks if an HTTP status code is retryable (429, 5xx)
func IsRetryableStatus(status int) bool {
	return status == 429 || (status >= 500 && status < 600)
}

// CalculateBackoff returns initialBackoff * 2^attempt capped at maxBackoff,
// plus 0-25% jitter
func CalculateBackoff(attempt int, config Config) time.Duration {
	return backoff(attempt, 2.0, config)
}

// CalculateRateLimitBackoff calculates backoff for HTTP 429 responses. A
// Retry-After header in seconds wins; otherwise the base grows 3x per attempt.
func CalculateRateLimitBackoff(attempt int, config Config, retryAfter string) time.Duration {
	if seconds, err := strconv.ParseFloat(retryAfter, 64); err == nil && seconds > 0 {
		return time.Duration(seconds*float64(time.Second)) + time.Duration(rand.Int64N(int64(time.Second)))
	}
	return backoff(attempt, 3.0, config)
}

func backoff(attempt int, factor float64, config Config) time.Duration {
	config = config.WithDefaults()
	delay := float64(config.InitialBackoff) * math.Pow(factor, float64(attempt))
	delay = math.Min(delay, float64(config.MaxBackoff))
	jitter := rand.Float64() * 0.25 * delay
	return time.Duration(delay + jitter)
}

// Sleep blocks for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
