package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dwv2/weather-fusion/internal/weather"
)

// Reconciler is the slice of the fusion engine the cache consumes.
type Reconciler interface {
	Reconcile(ctx context.Context, coord weather.Coordinate) (weather.ReconciledReading, error)
}

// Config bounds entry lifetimes.
type Config struct {
	// TTLFloor/TTLCeil clamp the derived entry TTL.
	TTLFloor time.Duration
	TTLCeil  time.Duration

	// StationWindow caps the TTL at the station freshness window, so cached
	// results never outlive the station data that fed them.
	StationWindow time.Duration

	// HardStaleCeiling is the oldest an expired entry may be and still be
	// served as a degraded stale-while-error result.
	HardStaleCeiling time.Duration

	// RefreshTimeout bounds one fusion refresh. Refreshes run detached from
	// the caller so a completed fetch still lands in the cache even when
	// every waiter has given up.
	RefreshTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.TTLFloor <= 0 {
		c.TTLFloor = 5 * time.Minute
	}
	if c.TTLCeil < c.TTLFloor {
		c.TTLCeil = 15 * time.Minute
	}
	if c.StationWindow <= 0 {
		c.StationWindow = 30 * time.Minute
	}
	if c.HardStaleCeiling <= 0 {
		c.HardStaleCeiling = 1 * time.Hour
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = 15 * time.Second
	}
	return c
}

type entry struct {
	reading   weather.ReconciledReading
	expiresAt time.Time
}

// Cache serves reconciled readings keyed by coordinate bucket. Exactly one
// refresh runs per bucket at a time; concurrent callers for the same bucket
// share the in-flight result instead of issuing duplicate provider calls.
type Cache struct {
	mu      sync.RWMutex // short critical sections only, never held across I/O
	entries map[string]entry

	group  singleflight.Group
	fusion Reconciler
	cfg    Config

	now func() time.Time
}

// New creates a cache over the fusion engine.
func New(fusion Reconciler, cfg Config) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		fusion:  fusion,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

// Get returns the reconciled reading for the coordinate's bucket, refreshing
// through the fusion engine on miss or expiry. On refresh failure an
// expired-but-present entry younger than the hard staleness ceiling is served
// as a degraded result; otherwise the failure propagates.
func (c *Cache) Get(ctx context.Context, coord weather.Coordinate) (weather.ReconciledReading, error) {
	bucket := coord.Bucket()

	if e, ok := c.lookup(bucket); ok && c.now().Before(e.expiresAt) {
		return e.reading, nil
	}

	ch := c.group.DoChan(bucket, func() (interface{}, error) {
		// Detached from the caller: an abandoned refresh still completes and
		// is written for the next caller.
		rctx, cancel := context.WithTimeout(context.Background(), c.cfg.RefreshTimeout)
		defer cancel()

		reading, err := c.fusion.Reconcile(rctx, coord)
		if err != nil {
			return nil, err
		}

		e := entry{reading: reading, expiresAt: reading.ReconciledAt.Add(c.ttlFor(reading))}
		c.replace(bucket, e)
		return e, nil
	})

	select {
	case <-ctx.Done():
		return weather.ReconciledReading{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if stale, ok := c.staleFallback(bucket); ok {
				return stale, nil
			}
			return weather.ReconciledReading{}, res.Err
		}
		return res.Val.(entry).reading, nil
	}
}

// Sweep removes entries too old even for stale-while-error serving. Returns
// the number evicted.
func (c *Cache) Sweep() int {
	cutoff := c.now().Add(-c.cfg.HardStaleCeiling)

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, e := range c.entries {
		if e.reading.ReconciledAt.Before(cutoff) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}

func (c *Cache) lookup(bucket string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[bucket]
	return e, ok
}

// replace swaps the whole entry; entries are never partially updated, so a
// concurrent reader sees either the old or the new value.
func (c *Cache) replace(bucket string, e entry) {
	c.mu.Lock()
	c.entries[bucket] = e
	c.mu.Unlock()
}

func (c *Cache) staleFallback(bucket string) (weather.ReconciledReading, bool) {
	e, ok := c.lookup(bucket)
	if !ok {
		return weather.ReconciledReading{}, false
	}
	if c.now().Sub(e.reading.ReconciledAt) >= c.cfg.HardStaleCeiling {
		return weather.ReconciledReading{}, false
	}
	stale := e.reading
	stale.Degraded = true
	return stale, true
}

// ttlFor derives the entry TTL from the reading's own freshness:
// min(provider-declared TTL, station freshness window), clamped to
// [floor, ceil]. Always positive, so expiry is strictly after ReconciledAt.
func (c *Cache) ttlFor(r weather.ReconciledReading) time.Duration {
	ttl := c.cfg.StationWindow
	if r.TTLHint > 0 && r.TTLHint < ttl {
		ttl = r.TTLHint
	}
	if ttl < c.cfg.TTLFloor {
		ttl = c.cfg.TTLFloor
	}
	if ttl > c.cfg.TTLCeil {
		ttl = c.cfg.TTLCeil
	}
	return ttl
}
