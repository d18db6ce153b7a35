package weather

import (
	"context"
	"time"
)

// Adapter abstracts a single external weather API. Adapters are stateless
// beyond their HTTP client: constructed once at startup, reused for the
// process lifetime. An adapter enforces its own request timeout and never
// retries internally; failover policy lives in the Bridge.
type Adapter interface {
	Name() string

	// Fetch issues one outbound call and converts the response into a
	// NormalizedReading. Failures wrap exactly one of
	// ErrProviderUnavailable, ErrProviderRejected or ErrProviderMalformed.
	Fetch(ctx context.Context, coord Coordinate) (NormalizedReading, error)

	// TTL is the provider-declared freshness of its readings, used by the
	// cache layer to derive entry expiry.
	TTL() time.Duration
}

// StationSource is what the fusion engine needs from the station store:
// recent readings near a coordinate. Never fails; an empty slice means no
// qualifying station data.
type StationSource interface {
	Nearby(center Coordinate, radiusKM float64, window time.Duration) []NormalizedReading
}
