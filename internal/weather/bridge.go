package weather

import (
	"context"
	"log"
	"sync"
	"time"
)

// staleConfidenceFactor is applied to a stale reading promoted to a degraded
// fallback result.
const staleConfidenceFactor = 0.5

// BridgeResult is a successful bridge selection. Stale marks a degraded
// fallback: the reading was older than the staleness threshold but no adapter
// returned a fresh one.
type BridgeResult struct {
	Reading NormalizedReading
	TTL     time.Duration
	Stale   bool
}

// Bridge holds the registered adapters and selects the best available reading
// for a coordinate. Adapter order is priority order and comes from
// configuration, not code.
type Bridge struct {
	adapters  []Adapter
	staleness time.Duration

	now func() time.Time
}

// NewBridge creates a Bridge over adapters in priority order. staleness is
// the threshold past which a successful reading only qualifies as a degraded
// fallback.
func NewBridge(adapters []Adapter, staleness time.Duration) *Bridge {
	return &Bridge{
		adapters:  adapters,
		staleness: staleness,
		now:       time.Now,
	}
}

// FetchBest queries all adapters concurrently and selects per policy:
// the highest-priority fresh result wins; if no adapter returned a fresh
// reading, the highest-priority stale one is returned as a degraded fallback
// with reduced confidence; if every adapter failed, ErrNoProviderAvailable.
//
// Each adapter bounds its own call with its configured timeout, so the wait
// here is bounded by the slowest adapter timeout, not a global deadline. The
// bridge never retries.
func (b *Bridge) FetchBest(ctx context.Context, coord Coordinate) (BridgeResult, error) {
	if len(b.adapters) == 0 {
		return BridgeResult{}, ErrNoProviderAvailable
	}

	type outcome struct {
		reading NormalizedReading
		ttl     time.Duration
		err     error
	}

	outcomes := make([]outcome, len(b.adapters))

	var wg sync.WaitGroup
	for i, a := range b.adapters {
		i, a := i, a
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := a.Fetch(ctx, coord)
			outcomes[i] = outcome{reading: r, ttl: a.TTL(), err: err}
		}()
	}
	wg.Wait()

	now := b.now()
	staleIdx := -1

	for i, out := range outcomes {
		if out.err != nil {
			log.Printf("bridge: adapter %s failed for %s: %v", b.adapters[i].Name(), coord.Bucket(), out.err)
			continue
		}
		if out.reading.Age(now) <= b.staleness {
			return BridgeResult{Reading: out.reading, TTL: out.ttl}, nil
		}
		if staleIdx == -1 {
			staleIdx = i
		}
	}

	if staleIdx >= 0 {
		r := outcomes[staleIdx].reading
		r.Confidence *= staleConfidenceFactor
		log.Printf("bridge: serving stale reading from %s for %s", r.SourceID, coord.Bucket())
		return BridgeResult{Reading: r, TTL: outcomes[staleIdx].ttl, Stale: true}, nil
	}

	return BridgeResult{}, ErrNoProviderAvailable
}
