package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// retryPolicy repeats requests that failed with 429 or a 5xx status, with
// exponential backoff capped at max.
type retryPolicy struct {
	maxRetries int
	base       time.Duration
	max        time.Duration
}

var defaultRetry = retryPolicy{maxRetries: 4, base: 500 * time.Millisecond, max: 8 * time.Second}

func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.base << attempt
	if d <= 0 || d > p.max {
		d = p.max
	}
	return d
}

// do runs fn until it succeeds, fails permanently or the retries are used
// up. The last error is returned as-is so callers still see the status.
func (p retryPolicy) do(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		retry, after := retryable(err)
		if !retry || attempt >= p.maxRetries {
			if attempt > 0 {
				return fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
			}
			return err
		}
		wait := p.delay(attempt)
		if after > 0 {
			wait = min(after, p.max)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// statusError is a non-2xx response from an embedding endpoint.
type statusError struct {
	provider   string
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s embeddings: status %d: %s", e.provider, e.code, e.body)
}

func newStatusError(provider string, resp *http.Response, body []byte) *statusError {
	return &statusError{
		provider:   provider,
		code:       resp.StatusCode,
		body:       string(body),
		retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// retryable reports whether err is worth another attempt and how long the
// server asked us to wait.
func retryable(err error) (bool, time.Duration) {
	var se *statusError
	if errors.As(err, &se) {
		return retryableStatus(se.code), se.retryAfter
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode), 0
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode), 0
	}
	return false, 0
}
