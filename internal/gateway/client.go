// Package gateway is the boundary between the dispatcher and the push
// gateway. Outbound HTTP goes through BaseClient, which injects trace and
// user-agent headers. An optional circuit breaker guards whole dispatch
// batches rather than single calls. Calls are never retried here: a failed send is reported to the
// caller as a failed outcome.
package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"campuspush/internal/types"
)

// BaseClient wraps an *http.Client and an optional circuit breaker.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[struct{}]
	userAgent string
}

// BreakerSettings configures the circuit breaker. A zero
// ConsecutiveFailures disables the breaker entirely.
type BreakerSettings struct {
	Name string
	// ConsecutiveFailures is the number of consecutive failed batches
	// that opens the circuit.
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// NewBaseClient creates a BaseClient. When settings.ConsecutiveFailures is
// zero Guard always runs its function.
func NewBaseClient(httpClient *http.Client, settings BreakerSettings, userAgent string) *BaseClient {
	bc := &BaseClient{
		client:    httpClient,
		userAgent: userAgent,
	}

	if settings.ConsecutiveFailures > 0 {
		openTimeout := settings.OpenTimeout
		if openTimeout <= 0 {
			openTimeout = 30 * time.Second
		}
		threshold := settings.ConsecutiveFailures
		bc.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        settings.Name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		})
	}

	return bc
}

// Do executes the request after injecting X-B3-TraceId (from the request
// id in context) and User-Agent. Any HTTP status is returned as a response;
// the caller decides what a non-2xx means. The error is non-nil only for
// transport failures. The caller closes the body.
//
// Do never consults the breaker, so every call that reaches it goes out.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.client.Do(req)
}

// Guard runs one batch of calls under the circuit breaker. The breaker
// counts whole batches: fn's error marks the batch as failed. While the
// breaker is open fn is not run and an upstream_gateway_failure AppError
// is returned. Without a breaker fn always runs.
func (c *BaseClient) Guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}

	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamGateway,
			"circuit breaker is open; push gateway unavailable",
			err,
		)
	}
	return err
}

// BreakerState reports the breaker state for diagnostics. It returns
// "disabled" when no breaker is configured.
func (c *BaseClient) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}
