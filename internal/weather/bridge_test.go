package weather

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	name    string
	reading NormalizedReading
	err     error
	ttl     time.Duration
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) TTL() time.Duration { return a.ttl }

func (a *stubAdapter) Fetch(ctx context.Context, coord Coordinate) (NormalizedReading, error) {
	if a.err != nil {
		return NormalizedReading{}, a.err
	}
	return a.reading, nil
}

func providerReading(source string, tempC float64, observedAt time.Time, confidence float64) NormalizedReading {
	return NormalizedReading{
		SourceID:     source,
		SourceKind:   SourceProvider,
		ObservedAt:   observedAt,
		TemperatureC: Float(tempC),
		Condition:    ConditionClear,
		Confidence:   confidence,
	}
}

func TestFetchBestPrefersHigherPriorityWhenBothFresh(t *testing.T) {
	now := time.Now().UTC()

	// Provider A outranks B by configured order even though B reads warmer.
	a := &stubAdapter{name: "a", reading: providerReading("a", 10, now, 0.6)}
	b := &stubAdapter{name: "b", reading: providerReading("b", 12, now, 0.9)}

	bridge := NewBridge([]Adapter{a, b}, 10*time.Minute)
	bridge.now = func() time.Time { return now }

	res, err := bridge.FetchBest(context.Background(), Coordinate{Lat: 1, Lon: 1})
	require.NoError(t, err)
	assert.Equal(t, "a", res.Reading.SourceID)
	assert.Equal(t, 10.0, *res.Reading.TemperatureC)
	assert.False(t, res.Stale)
}

func TestFetchBestFailsOverToLowerPriority(t *testing.T) {
	now := time.Now().UTC()

	a := &stubAdapter{name: "a", err: ErrProviderUnavailable}
	b := &stubAdapter{name: "b", reading: providerReading("b", 12, now, 0.9)}

	bridge := NewBridge([]Adapter{a, b}, 10*time.Minute)
	bridge.now = func() time.Time { return now }

	res, err := bridge.FetchBest(context.Background(), Coordinate{Lat: 1, Lon: 1})
	require.NoError(t, err)
	assert.Equal(t, "b", res.Reading.SourceID)
}

func TestFetchBestAllFail(t *testing.T) {
	bridge := NewBridge([]Adapter{
		&stubAdapter{name: "a", err: ErrProviderUnavailable},
		&stubAdapter{name: "b", err: ErrProviderMalformed},
	}, 10*time.Minute)

	_, err := bridge.FetchBest(context.Background(), Coordinate{Lat: 1, Lon: 1})
	assert.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestFetchBestNoAdapters(t *testing.T) {
	bridge := NewBridge(nil, 10*time.Minute)

	_, err := bridge.FetchBest(context.Background(), Coordinate{Lat: 1, Lon: 1})
	assert.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestFetchBestStaleFallbackReducesConfidence(t *testing.T) {
	now := time.Now().UTC()

	// The only successful reading is 12 minutes old against a 10 minute
	// threshold: usable, but degraded.
	a := &stubAdapter{name: "a", reading: providerReading("a", 11, now.Add(-12*time.Minute), 0.8)}
	b := &stubAdapter{name: "b", err: ErrProviderUnavailable}

	bridge := NewBridge([]Adapter{a, b}, 10*time.Minute)
	bridge.now = func() time.Time { return now }

	res, err := bridge.FetchBest(context.Background(), Coordinate{Lat: 1, Lon: 1})
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.InDelta(t, 0.4, res.Reading.Confidence, 1e-9)
}

func TestFetchBestFreshBeatsHigherPriorityStale(t *testing.T) {
	now := time.Now().UTC()

	a := &stubAdapter{name: "a", reading: providerReading("a", 11, now.Add(-20*time.Minute), 0.8)}
	b := &stubAdapter{name: "b", reading: providerReading("b", 12, now, 0.7)}

	bridge := NewBridge([]Adapter{a, b}, 10*time.Minute)
	bridge.now = func() time.Time { return now }

	res, err := bridge.FetchBest(context.Background(), Coordinate{Lat: 1, Lon: 1})
	require.NoError(t, err)
	assert.Equal(t, "b", res.Reading.SourceID)
	assert.False(t, res.Stale)
}
