// Package provider holds the upstream adapters. Each adapter owns one
// endpoint and one field mapping; all share Fetcher for retries, circuit
// breaking, and metrics. Adapters never swallow upstream errors.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/location-gateway/internal/observability"
)

// DefaultMaxRecords caps how many records an adapter returns per fetch.
const DefaultMaxRecords = 20

const maxBodyBytes = 4 << 20

// Options configures a Fetcher. Zero values fall back to defaults.
type Options struct {
	Name                    string
	Client                  *http.Client
	Timeout                 time.Duration
	RetryAttempts           int
	RetryBaseDelay          time.Duration
	RetryMaxDelay           time.Duration
	BreakerFailureThreshold uint32
	BreakerTimeout          time.Duration
}

// Fetcher performs JSON GETs against one upstream with per-attempt timeout,
// exponential backoff with jitter, and a circuit breaker.
type Fetcher struct {
	name           string
	client         *http.Client
	timeout        time.Duration
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *gobreaker.CircuitBreaker
}

// NewFetcher builds a Fetcher for the named provider.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 2 * time.Second
	}
	if opts.BreakerFailureThreshold == 0 {
		opts.BreakerFailureThreshold = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}

	name := opts.Name
	threshold := opts.BreakerFailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			observability.CircuitBreakerTransitionsTotal.WithLabelValues(name, from.String(), to.String()).Inc()
			observability.CircuitBreakerState.WithLabelValues(name).Set(observability.BreakerStateValue(to.String()))
		},
	})
	observability.CircuitBreakerState.WithLabelValues(name).Set(0)

	return &Fetcher{
		name:           name,
		client:         opts.Client,
		timeout:        opts.Timeout,
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		breaker:        breaker,
	}
}

// Name returns the provider name used in metrics and errors.
func (f *Fetcher) Name() string { return f.name }

// RequestBuilder creates the upstream request bound to ctx.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// GetJSON executes the request built by build and decodes a 2xx JSON body into out.
func (f *Fetcher) GetJSON(ctx context.Context, build RequestBuilder, out any) error {
	var lastErr error
	for attempt := 0; attempt < f.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.ProviderRetriesTotal.WithLabelValues(f.name).Inc()
			timer := time.NewTimer(f.backoff(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: %w", f.name, ctx.Err())
			case <-timer.C:
			}
		}

		err := f.callThroughBreaker(ctx, build, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) {
			f.recordError(err)
			return err
		}
	}
	f.recordError(lastErr)
	return fmt.Errorf("%s: exhausted retries: %w", f.name, lastErr)
}

func (f *Fetcher) recordError(err error) {
	observability.ProviderErrorsTotal.WithLabelValues(f.name, string(CategorizeError(err))).Inc()
}

// callThroughBreaker runs one attempt. Client errors (4xx other than 429) and
// callers that gave up do not count against the breaker.
func (f *Fetcher) callThroughBreaker(ctx context.Context, build RequestBuilder, out any) error {
	var callErr error
	_, err := f.breaker.Execute(func() (interface{}, error) {
		callErr = f.call(ctx, build, out)
		if callErr == nil || ctx.Err() != nil || errors.Is(callErr, context.Canceled) {
			return nil, nil
		}
		if countsAsFailure(callErr) {
			return nil, callErr
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, f.name)
	}
	return callErr
}

func (f *Fetcher) call(ctx context.Context, build RequestBuilder, out any) error {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := build(reqCtx)
	if err != nil {
		observability.ProviderCallsTotal.WithLabelValues(f.name, "error").Inc()
		return fmt.Errorf("build %s request: %w", f.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		observability.ProviderCallsTotal.WithLabelValues(f.name, "error").Inc()
		observability.ProviderDuration.WithLabelValues(f.name, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("%s request failed: %w", f.name, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.ProviderCallsTotal.WithLabelValues(f.name, status).Inc()
	observability.ProviderDuration.WithLabelValues(f.name, status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return newStatusError(f.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read %s response body: %w", f.name, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &parseError{provider: f.name, err: err}
	}
	return nil
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := float64(f.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(f.retryMaxDelay) {
		delay = float64(f.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func countsAsFailure(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var pe *parseError
	return !errors.As(err, &pe)
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}

// truncate returns at most max leading items. max <= 0 means DefaultMaxRecords.
func truncate[R any](raw []R, max int) []R {
	if max <= 0 {
		max = DefaultMaxRecords
	}
	if len(raw) > max {
		return raw[:max]
	}
	return raw
}

// normalizeAll truncates raw and maps every item through normalize. The
// result is never nil so an empty upstream answer serializes as [].
func normalizeAll[R, T any](raw []R, max int, normalize func(R) T) []T {
	raw = truncate(raw, max)
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		out = append(out, normalize(r))
	}
	return out
}
