// Package httpx builds the outbound HTTP clients shared by every service
// integration. All downstream calls go through a resty client configured
// with bounded exponential-backoff retry on transient failures.
package httpx

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
)

const (
	backoffBase  = time.Second
	jitterBound  = 500 * time.Millisecond
	defaultCap   = 30 * time.Second
	defaultTries = 3
)

// NewClient returns a resty client with transient-failure retry applied.
// Responses with status 429 or in [500,599] are retried up to the
// configured count, sleeping min(cap, 2^attempt*1s) plus up to 500ms of
// jitter between attempts. Any other status, including non-retryable 4xx,
// is returned immediately. After exhausting retries the last attempt's
// response is returned as-is; callers turn a non-2xx into an error.
func NewClient(cfg config.HTTPConfig) *resty.Client {
	retries := cfg.Retries
	if retries <= 0 {
		retries = defaultTries
	}
	cap := cfg.BackoffCap
	if cap <= 0 {
		cap = defaultCap
	}
	client := resty.New().
		SetRetryCount(retries).
		SetTimeout(cfg.Timeout).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return false
			}
			return IsRetryable(r.StatusCode())
		}).
		SetRetryAfter(func(_ *resty.Client, r *resty.Response) (time.Duration, error) {
			return Backoff(r.Request.Attempt, cap), nil
		})
	return client
}

// IsRetryable reports whether an HTTP status indicates a transient failure.
func IsRetryable(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status <= 599
}

// Backoff computes the sleep before the given retry attempt (1-based).
func Backoff(attempt int, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := backoffBase << (attempt - 1)
	if d > cap || d <= 0 {
		d = cap
	}
	return d + time.Duration(rand.Int63n(int64(jitterBound)))
}
