package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/codyseavey/ir-tracker/internal/metrics"
)

const (
	defaultUpstreamTimeout = 15 * time.Second
	initialBackoff         = 500 * time.Millisecond
	maxBackoff             = 8 * time.Second
)

// UpstreamOptions tunes an upstream API client
type UpstreamOptions struct {
	Timeout    time.Duration
	Retries    int
	RatePerSec float64
}

// upstream performs rate-limited JSON GETs with bounded retry. It is shared by the
// catalog and marketplace clients.
type upstream struct {
	provider       string
	client         *http.Client
	limiter        *rate.Limiter
	retries        int
	initialBackoff time.Duration

	// beforeAttempt runs ahead of every request sent, retries included;
	// an error aborts the call as is
	beforeAttempt func() error
}

func newUpstream(provider string, opts UpstreamOptions) *upstream {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	return &upstream{
		provider:       provider,
		client:         &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(limit, 1),
		retries:        max(opts.Retries, 0),
		initialBackoff: initialBackoff,
	}
}

// statusError is returned for non-2xx responses
type statusError struct {
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.StatusCode)
}

// getJSON fetches reqURL into out. A 404 returns found=false with no error.
// Network errors, 429 and 5xx are retried with exponential backoff; everything
// else fails immediately. Failures wrap ErrUpstream.
func (u *upstream) getJSON(ctx context.Context, reqURL string, headers map[string]string, out any) (found bool, err error) {
	backoff := u.initialBackoff
	var lastErr error

	for attempt := 0; attempt <= u.retries; attempt++ {
		if attempt > 0 {
			metrics.UpstreamRequestsTotal.WithLabelValues(u.provider, "retry").Inc()
			select {
			case <-ctx.Done():
				return false, fmt.Errorf("%w: %s: %v", ErrUpstream, u.provider, ctx.Err())
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
		}

		if err := u.limiter.Wait(ctx); err != nil {
			return false, fmt.Errorf("%w: %s rate limiter: %v", ErrUpstream, u.provider, err)
		}
		if u.beforeAttempt != nil {
			if err := u.beforeAttempt(); err != nil {
				return false, err
			}
		}

		retryAfter, found, err := u.do(ctx, reqURL, headers, out)
		if err == nil {
			metrics.UpstreamRequestsTotal.WithLabelValues(u.provider, "ok").Inc()
			return found, nil
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
		if retryAfter > 0 {
			backoff = min(retryAfter, maxBackoff)
		}
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(u.provider, "error").Inc()
	return false, fmt.Errorf("%w: %s: %v", ErrUpstream, u.provider, lastErr)
}

func (u *upstream) do(ctx context.Context, reqURL string, headers map[string]string, out any) (retryAfter time.Duration, found bool, err error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamLatency.WithLabelValues(u.provider).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, convErr := strconv.Atoi(s); convErr == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return retryAfter, false, &statusError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, false, &decodeError{err: err}
	}
	return 0, true, nil
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "failed to decode response: " + e.err.Error() }

func isRetryable(err error) bool {
	switch e := err.(type) {
	case *statusError:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	case *decodeError:
		return false
	default:
		return true
	}
}
