package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwv2/weather-fusion/internal/weather"
)

const (
	defaultTimeout    = 3 * time.Second
	defaultTTL        = 10 * time.Minute
	defaultConfidence = 0.8
)

// Config bundles the per-adapter settings every provider shares.
type Config struct {
	APIKey string

	// BaseURL overrides the provider endpoint; empty means the provider
	// default. Used by tests.
	BaseURL string

	// Timeout bounds a single outbound call. Adapters never retry; failover
	// lives in the bridge.
	Timeout time.Duration

	// TTL is the provider-declared freshness of a reading.
	TTL time.Duration

	// Confidence is attached to every reading from this provider, 0..1.
	Confidence float64
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.Confidence <= 0 || c.Confidence > 1 {
		c.Confidence = defaultConfidence
	}
	return c
}

func newCircuit(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequest executes one HTTP GET through the adapter's circuit breaker and
// classifies failures into the provider error taxonomy.
func doRequest(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrProviderUnavailable, err)
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, fmt.Errorf("%w: %v", weather.ErrProviderUnavailable, execErr)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			return nil, fmt.Errorf("%w: status %d", weather.ErrProviderUnavailable, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			resp.Body.Close()
			return nil, fmt.Errorf("%w: status %d", weather.ErrProviderRejected, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open: %v", weather.ErrProviderUnavailable, err)
		}
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected circuit breaker result", weather.ErrProviderUnavailable)
	}
	return resp, nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", weather.ErrProviderMalformed, err)
}

// containsAny reports whether s contains any of the substrings.
func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
