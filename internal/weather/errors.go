package weather

import "errors"

var (
	// ErrInvalidCoordinate is returned for latitude/longitude out of range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrProviderUnavailable covers network failures, timeouts, rate limits
	// and open circuit breakers. Recovered by the bridge's failover.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderRejected covers 4xx-class responses, e.g. a coordinate the
	// provider refuses to serve.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrProviderMalformed covers responses that could not be decoded.
	ErrProviderMalformed = errors.New("malformed provider response")

	// ErrNoProviderAvailable means every registered adapter failed. The
	// bridge does not retry; the cache layer owns retry/backoff policy.
	ErrNoProviderAvailable = errors.New("no weather provider available")

	// ErrNoDataAvailable means neither providers nor stations produced any
	// reading for the coordinate.
	ErrNoDataAvailable = errors.New("no weather data available")
)
