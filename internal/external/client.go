// Package external is the anti-corruption layer between SkyRisk and the
// Open-Meteo forecast and geocoding APIs. All outbound HTTP calls go through
// BaseClient, which applies circuit breaking, client-side rate limiting,
// retries with exponential backoff, request-ID propagation and error mapping.
package external

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"skyrisk/internal/types"
)

// RetryPolicy configures the retry behavior for the BaseClient.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns the defaults used against Open-Meteo.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    250 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// BaseClient wraps an *http.Client with a circuit breaker and a token-bucket
// limiter. The forecast and geocoding clients embed it.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	limiter     *rate.Limiter
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(time.Duration)
	name        string
	onFailure   FailureObserver
}

// FailureObserver is told about every request that ends in an error after
// retries. service is the client's breaker name.
type FailureObserver func(ctx context.Context, service string, code types.ErrorCode)

// WithFailureObserver installs fn as the client's failure observer.
func WithFailureObserver(fn FailureObserver) BaseClientOption {
	return func(c *BaseClient) {
		c.onFailure = fn
	}
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep function used between retries.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// WithRateLimit caps outbound requests at rps with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) BaseClientOption {
	return WithLimiter(NewLimiter(rps, burst))
}

// WithLimiter installs a limiter that may be shared between clients.
func WithLimiter(l *rate.Limiter) BaseClientOption {
	return func(c *BaseClient) {
		c.limiter = l
	}
}

// NewLimiter returns a token bucket of rps with the given burst, or nil when
// rps is not positive.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// WithBreaker replaces the default circuit breaker, e.g. to share one across
// clients or to tune it in tests.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) BaseClientOption {
	return func(c *BaseClient) {
		c.breaker = cb
	}
}

// NewBaseClient creates a BaseClient with a breaker named breakerName.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	retryPolicy RetryPolicy,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	bc := &BaseClient{
		client:      httpClient,
		breaker:     newBreaker(breakerName),
		retryPolicy: retryPolicy,
		userAgent:   userAgent,
		sleepFn:     time.Sleep,
		name:        breakerName,
	}

	for _, opt := range opts {
		opt(bc)
	}

	return bc
}

func newBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

// Do executes a body-less request (all Open-Meteo calls are GETs) with:
//  1. X-Request-Id and User-Agent injection
//  2. rate limiter wait (honours ctx cancellation)
//  3. circuit breaker wrapping
//  4. retry on 429/5xx, respecting Retry-After
//  5. error mapping to types.AppError
//
// Responses other than 429/5xx are returned as-is; the caller closes the body.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if reqID := types.GetRequestID(req.Context()); reqID != "" {
		req.Header.Set("X-Request-Id", reqID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(req.Context()); err != nil {
				return nil, c.failed(req.Context(), types.NewAppError(types.ErrCodeUpstreamNetwork, "rate limit wait canceled", err))
			}
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			if r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned 429")
			}
			return r, nil
		})

		if err == nil {
			return resp, nil
		}

		lastErr = err
		lastResp = nil
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		// Transport errors on a cancelled context will not get better.
		if req.Context().Err() != nil {
			break
		}

		if attempt < maxAttempts-1 {
			c.sleepFn(c.computeBackoff(attempt, resp))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}

	return nil, c.failed(req.Context(), c.mapError(lastResp, lastErr))
}

func (c *BaseClient) failed(ctx context.Context, err *types.AppError) error {
	if c.onFailure != nil {
		c.onFailure(ctx, c.name, err.Code)
	}
	return err
}

// computeBackoff honours Retry-After when present, otherwise uses exponential
// backoff with jitter clamped to [MinWait, MaxWait].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				return min(time.Duration(seconds)*time.Second, c.retryPolicy.MaxWait)
			}
			if t, err := http.ParseTime(retryAfter); err == nil {
				wait := time.Until(t)
				if wait <= 0 {
					return c.retryPolicy.MinWait
				}
				return min(wait, c.retryPolicy.MaxWait)
			}
		}
	}

	base := float64(c.retryPolicy.MinWait) * math.Pow(2, float64(attempt))
	base = math.Min(base, float64(c.retryPolicy.MaxWait))

	minWait := float64(c.retryPolicy.MinWait)
	if base <= minWait {
		return c.retryPolicy.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

// mapError translates HTTP-level failures into AppErrors.
func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; upstream service unavailable",
			err,
		)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", err)
		case resp.StatusCode >= 500:
			return types.NewAppError(
				types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("upstream returned %d after retries", resp.StatusCode),
				err,
			)
		}
	}

	// Transport, DNS and timeout failures.
	return types.NewAppError(types.ErrCodeUpstreamNetwork, "upstream request failed", err)
}
