package store

import (
	"sync"
	"time"

	"github.com/dwv2/weather-fusion/internal/weather"
)

// StationStore holds the most recent readings per station, grouped by
// coordinate bucket. It is the only shared state between the ingestion
// pipeline and the request path; each bucket carries its own lock so
// refreshes for different coordinates proceed fully in parallel.
type StationStore struct {
	mu      sync.RWMutex // guards the bucket map only, never held across bucket work
	buckets map[string]*stationBucket

	maxPerStation int
	window        time.Duration

	now func() time.Time
}

type stationBucket struct {
	mu     sync.RWMutex
	center weather.Coordinate
	// station id -> readings ordered by ObservedAt ascending, bounded.
	readings map[string][]weather.NormalizedReading
}

// NewStationStore creates a store keeping at most maxPerStation readings per
// station, evicting anything older than window.
func NewStationStore(maxPerStation int, window time.Duration) *StationStore {
	if maxPerStation <= 0 {
		maxPerStation = 8
	}
	return &StationStore{
		buckets:       make(map[string]*stationBucket),
		maxPerStation: maxPerStation,
		window:        window,
		now:           time.Now,
	}
}

// Upsert inserts a station reading, deduplicating on
// (station id, observed at) so replayed messages are idempotent. Returns
// false for a duplicate.
func (s *StationStore) Upsert(r weather.NormalizedReading) bool {
	b := s.bucketFor(r.Coordinate)

	b.mu.Lock()
	defer b.mu.Unlock()

	existing := b.readings[r.SourceID]
	for _, prev := range existing {
		if prev.ObservedAt.Equal(r.ObservedAt) {
			return false
		}
	}

	// Insert keeping ascending ObservedAt order; messages arrive roughly in
	// order, so walk back from the end.
	idx := len(existing)
	for idx > 0 && existing[idx-1].ObservedAt.After(r.ObservedAt) {
		idx--
	}
	existing = append(existing, weather.NormalizedReading{})
	copy(existing[idx+1:], existing[idx:])
	existing[idx] = r

	existing = s.trim(existing)
	b.readings[r.SourceID] = existing
	return true
}

// Nearby returns readings within radiusKM of center and younger than window.
// Never fails; an empty result means no qualifying station data.
func (s *StationStore) Nearby(center weather.Coordinate, radiusKM float64, window time.Duration) []weather.NormalizedReading {
	now := s.now()
	cutoff := now.Add(-window)

	// Bucket centers can sit up to ~1km from their readings at 2-decimal
	// precision; scan with slack and filter per reading.
	const bucketSlackKM = 2.0

	s.mu.RLock()
	candidates := make([]*stationBucket, 0, 4)
	for _, b := range s.buckets {
		if center.DistanceKM(b.center) <= radiusKM+bucketSlackKM {
			candidates = append(candidates, b)
		}
	}
	s.mu.RUnlock()

	var result []weather.NormalizedReading
	for _, b := range candidates {
		b.mu.RLock()
		for _, readings := range b.readings {
			for _, r := range readings {
				if r.ObservedAt.Before(cutoff) {
					continue
				}
				if center.DistanceKM(r.Coordinate) > radiusKM {
					continue
				}
				result = append(result, r)
			}
		}
		b.mu.RUnlock()
	}
	return result
}

// Sweep drops readings older than the store window and removes emptied
// buckets. Returns the number of readings evicted. Intended to run from the
// background scheduler; reads also trim lazily via Upsert.
func (s *StationStore) Sweep() int {
	cutoff := s.now().Add(-s.window)

	s.mu.Lock()
	buckets := make(map[string]*stationBucket, len(s.buckets))
	for k, b := range s.buckets {
		buckets[k] = b
	}
	s.mu.Unlock()

	evicted := 0
	for key, b := range buckets {
		b.mu.Lock()
		for id, readings := range b.readings {
			kept := readings[:0]
			for _, r := range readings {
				if r.ObservedAt.Before(cutoff) {
					evicted++
					continue
				}
				kept = append(kept, r)
			}
			if len(kept) == 0 {
				delete(b.readings, id)
			} else {
				b.readings[id] = kept
			}
		}
		empty := len(b.readings) == 0
		b.mu.Unlock()

		if empty {
			s.mu.Lock()
			if cur, ok := s.buckets[key]; ok && cur == b {
				delete(s.buckets, key)
			}
			s.mu.Unlock()
		}
	}
	return evicted
}

func (s *StationStore) bucketFor(coord weather.Coordinate) *stationBucket {
	key := coord.Bucket()

	s.mu.RLock()
	b, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buckets[key]; ok {
		return b
	}
	b = &stationBucket{
		center:   coord.Bucketed(),
		readings: make(map[string][]weather.NormalizedReading),
	}
	s.buckets[key] = b
	return b
}

// trim enforces the per-station count bound and the freshness window.
func (s *StationStore) trim(readings []weather.NormalizedReading) []weather.NormalizedReading {
	if len(readings) > s.maxPerStation {
		readings = readings[len(readings)-s.maxPerStation:]
	}
	if s.window > 0 {
		cutoff := s.now().Add(-s.window)
		i := 0
		for ; i < len(readings); i++ {
			if !readings[i].ObservedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			readings = readings[i:]
		}
	}
	return readings
}
