package weather

import (
	"context"
	"time"
)

// providerSource is the slice of the Bridge the fusion engine consumes.
type providerSource interface {
	FetchBest(ctx context.Context, coord Coordinate) (BridgeResult, error)
}

// FusionConfig bounds the station lookup around a queried coordinate.
type FusionConfig struct {
	// RadiusKM is how far from the coordinate a station may sit and still
	// qualify as ground truth for it.
	RadiusKM float64

	// FreshnessWindow is the maximum station reading age considered.
	FreshnessWindow time.Duration
}

// Fusion merges provider bridge output and recent station readings for a
// coordinate into one reconciled reading. Reconciliation itself is a pure
// function of its two inputs; Fusion only gathers them.
type Fusion struct {
	bridge   providerSource
	stations StationSource
	cfg      FusionConfig

	now func() time.Time
}

// NewFusion creates a fusion engine over the bridge and station source.
func NewFusion(bridge *Bridge, stations StationSource, cfg FusionConfig) *Fusion {
	return &Fusion{
		bridge:   bridge,
		stations: stations,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Reconcile obtains the best provider reading and the freshest nearby station
// reading concurrently, then merges them. Fails with ErrNoDataAvailable only
// when both sides yield nothing.
func (f *Fusion) Reconcile(ctx context.Context, coord Coordinate) (ReconciledReading, error) {
	type bridgeOutcome struct {
		res BridgeResult
		err error
	}

	bridgeCh := make(chan bridgeOutcome, 1)
	go func() {
		res, err := f.bridge.FetchBest(ctx, coord)
		bridgeCh <- bridgeOutcome{res: res, err: err}
	}()

	// Station lookup is local and never fails.
	nearby := f.stations.Nearby(coord, f.cfg.RadiusKM, f.cfg.FreshnessWindow)
	station := newestReading(nearby)

	out := <-bridgeCh

	var provider *NormalizedReading
	var ttl time.Duration
	providerFresh := false
	if out.err == nil {
		r := out.res.Reading
		provider = &r
		ttl = out.res.TTL
		providerFresh = !out.res.Stale
	}

	rec, err := merge(coord, provider, providerFresh, station, f.now())
	if err != nil {
		return ReconciledReading{}, err
	}
	rec.TTLHint = ttl
	return rec, nil
}

// newestReading picks the reading with the greatest ObservedAt, nil for an
// empty slice.
func newestReading(readings []NormalizedReading) *NormalizedReading {
	var newest *NormalizedReading
	for i := range readings {
		if newest == nil || readings[i].ObservedAt.After(newest.ObservedAt) {
			newest = &readings[i]
		}
	}
	return newest
}

// merge reconciles a provider reading (possibly stale, possibly absent) with
// the freshest qualifying station reading. Pure: same inputs always produce
// the same contributing sources and values.
//
// Stations are higher-fidelity ground truth than remote APIs, so when both
// sides are usable the station leads and numeric fields both report are
// combined with a confidence-weighted average rather than a silent
// overwrite. A stale provider reading contributes nothing once a fresh
// station reading exists; it only ever surfaces when it is literally the
// only data available.
func merge(coord Coordinate, provider *NormalizedReading, providerFresh bool, station *NormalizedReading, now time.Time) (ReconciledReading, error) {
	switch {
	case provider == nil && station == nil:
		return ReconciledReading{}, ErrNoDataAvailable

	case station == nil:
		rec := ReconciledReading{
			NormalizedReading:   *provider,
			ContributingSources: []string{provider.SourceID},
			ReconciledAt:        now,
			Degraded:            !providerFresh,
		}
		rec.Coordinate = coord.Bucketed()
		return rec, nil

	case provider == nil || !providerFresh:
		rec := ReconciledReading{
			NormalizedReading:   *station,
			ContributingSources: []string{station.SourceID},
			ReconciledAt:        now,
		}
		rec.Coordinate = coord.Bucketed()
		return rec, nil
	}

	// Both usable: station-led confidence-weighted merge.
	merged := NormalizedReading{
		SourceID:   station.SourceID,
		SourceKind: SourceStation,
		Coordinate: coord.Bucketed(),
		ObservedAt: laterTime(station.ObservedAt, provider.ObservedAt),
		Confidence: maxFloat(station.Confidence, provider.Confidence),
	}

	merged.TemperatureC = weightedField(station.TemperatureC, station.Confidence, provider.TemperatureC, provider.Confidence)
	merged.HumidityPct = weightedField(station.HumidityPct, station.Confidence, provider.HumidityPct, provider.Confidence)
	merged.WindSpeedMS = weightedField(station.WindSpeedMS, station.Confidence, provider.WindSpeedMS, provider.Confidence)

	// Stations typically lack precipitation and condition sensors; the
	// provider fills those in when it can.
	merged.PrecipitationMM = provider.PrecipitationMM
	if merged.PrecipitationMM == nil {
		merged.PrecipitationMM = station.PrecipitationMM
	}
	merged.Condition = provider.Condition
	if merged.Condition == "" || merged.Condition == ConditionUnknown {
		if station.Condition != "" {
			merged.Condition = station.Condition
		} else {
			merged.Condition = ConditionUnknown
		}
	}

	return ReconciledReading{
		NormalizedReading:   merged,
		ContributingSources: []string{station.SourceID, provider.SourceID},
		ReconciledAt:        now,
	}, nil
}

// weightedField averages two optional values by source confidence. A value
// only one side reports is taken verbatim.
func weightedField(a *float64, wa float64, b *float64, wb float64) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case b == nil:
		v := *a
		return &v
	case a == nil:
		v := *b
		return &v
	}
	total := wa + wb
	if total <= 0 {
		v := (*a + *b) / 2
		return &v
	}
	v := (*a*wa + *b*wb) / total
	return &v
}

func laterTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func maxFloat(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}
