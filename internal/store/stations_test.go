package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwv2/weather-fusion/internal/weather"
)

func reading(stationID string, coord weather.Coordinate, observedAt time.Time, tempC float64) weather.NormalizedReading {
	return weather.NormalizedReading{
		SourceID:     stationID,
		SourceKind:   weather.SourceStation,
		Coordinate:   coord,
		ObservedAt:   observedAt,
		TemperatureC: weather.Float(tempC),
		Condition:    weather.ConditionUnknown,
		Confidence:   0.95,
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	st := NewStationStore(8, 30*time.Minute)
	coord := weather.Coordinate{Lat: 59.94, Lon: 30.31}

	r := reading("st-1", coord, now, 9)
	assert.True(t, st.Upsert(r))
	// Replaying the identical message must not create a second entry.
	assert.False(t, st.Upsert(r))

	got := st.Nearby(coord, 10, 30*time.Minute)
	require.Len(t, got, 1)
	assert.Equal(t, "st-1", got[0].SourceID)
}

func TestNearbyFiltersByRadius(t *testing.T) {
	now := time.Now().UTC()
	st := NewStationStore(8, 30*time.Minute)

	near := weather.Coordinate{Lat: 59.9386, Lon: 30.3141}
	far := weather.Coordinate{Lat: 55.7558, Lon: 37.6173}

	st.Upsert(reading("near", near, now, 9))
	st.Upsert(reading("far", far, now, 15))

	got := st.Nearby(weather.Coordinate{Lat: 59.94, Lon: 30.31}, 10, 30*time.Minute)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].SourceID)
}

func TestNearbyFiltersByFreshness(t *testing.T) {
	now := time.Now().UTC()
	st := NewStationStore(8, time.Hour)
	coord := weather.Coordinate{Lat: 59.94, Lon: 30.31}

	st.Upsert(reading("st-1", coord, now.Add(-45*time.Minute), 7))
	st.Upsert(reading("st-1", coord, now.Add(-5*time.Minute), 9))

	got := st.Nearby(coord, 10, 30*time.Minute)
	require.Len(t, got, 1)
	assert.Equal(t, 9.0, *got[0].TemperatureC)
}

func TestUpsertTrimsHistory(t *testing.T) {
	now := time.Now().UTC()
	st := NewStationStore(3, time.Hour)
	coord := weather.Coordinate{Lat: 59.94, Lon: 30.31}

	for i := 0; i < 6; i++ {
		st.Upsert(reading("st-1", coord, now.Add(time.Duration(i)*time.Minute), float64(i)))
	}

	got := st.Nearby(coord, 10, time.Hour)
	require.Len(t, got, 3)
	// Oldest entries were trimmed first.
	for _, r := range got {
		assert.GreaterOrEqual(t, *r.TemperatureC, 3.0)
	}
}

func TestSweepEvictsAgedReadings(t *testing.T) {
	base := time.Now().UTC()
	st := NewStationStore(8, 30*time.Minute)
	coord := weather.Coordinate{Lat: 59.94, Lon: 30.31}

	st.Upsert(reading("st-1", coord, base, 9))

	st.now = func() time.Time { return base.Add(45 * time.Minute) }
	evicted := st.Sweep()
	assert.Equal(t, 1, evicted)
	assert.Empty(t, st.Nearby(coord, 10, time.Hour))
}

func TestConcurrentUpsertsAcrossBuckets(t *testing.T) {
	now := time.Now().UTC()
	st := NewStationStore(8, 30*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			coord := weather.Coordinate{Lat: float64(i % 10), Lon: float64(i / 10)}
			st.Upsert(reading(fmt.Sprintf("st-%d", i), coord, now.Add(time.Duration(i)*time.Second), 9))
		}()
	}
	wg.Wait()

	got := st.Nearby(weather.Coordinate{Lat: 0, Lon: 0}, 5, time.Hour)
	assert.NotEmpty(t, got)
}
