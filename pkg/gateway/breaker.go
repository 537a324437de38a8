package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"sales-offers-billing/internal/pkg/apperror"

	"github.com/sony/gobreaker/v2"
)

// BreakerClient sends gateway requests through a circuit breaker.
// There is no retry loop; callers retry with the same payment reference.
type BreakerClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func NewBreakerClient(httpClient *http.Client, name string) *BreakerClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
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
	return &BreakerClient{client: httpClient, breaker: cb}
}

// Do returns the response for 2xx-4xx statuses. Network failures, 5xx, 429
// and an open breaker are reported as apperror.ErrGatewayUnavailable.
func (c *BreakerClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			r.Body.Close()
			return nil, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open", apperror.ErrGatewayUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", apperror.ErrGatewayUnavailable, err)
	}
	return resp, nil
}

// State exposes the breaker state for health reporting.
func (c *BreakerClient) State() string {
	return c.breaker.State().String()
}
