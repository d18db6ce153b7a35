package weather

import (
	"fmt"
	"math"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// SourceKind distinguishes remote API providers from physical sensor stations.
type SourceKind string

const (
	SourceProvider SourceKind = "provider"
	SourceStation  SourceKind = "station"
)

// bucketPrecision is the number of decimal places coordinates are rounded to
// when forming a cache/store bucket. Two coordinates in the same bucket share
// one cache entry.
const bucketPrecision = 2

// Coordinate is an immutable geographic point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate validates the latitude/longitude ranges.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	if lat < -90 || lat > 90 {
		return Coordinate{}, fmt.Errorf("%w: latitude %v out of range [-90,90]", ErrInvalidCoordinate, lat)
	}
	if lon < -180 || lon > 180 {
		return Coordinate{}, fmt.Errorf("%w: longitude %v out of range [-180,180]", ErrInvalidCoordinate, lon)
	}
	return Coordinate{Lat: lat, Lon: lon}, nil
}

// Bucket returns the canonical string key for indexing this coordinate in
// stores and caches.
func (c Coordinate) Bucket() string {
	b := c.Bucketed()
	return fmt.Sprintf("%.2f:%.2f", b.Lat, b.Lon)
}

// Bucketed returns the coordinate rounded to the bucket precision.
func (c Coordinate) Bucketed() Coordinate {
	scale := math.Pow(10, bucketPrecision)
	return Coordinate{
		Lat: math.Round(c.Lat*scale) / scale,
		Lon: math.Round(c.Lon*scale) / scale,
	}
}

const earthRadiusKM = 6371.0

// DistanceKM returns the haversine great-circle distance to other, in km.
func (c Coordinate) DistanceKM(other Coordinate) float64 {
	lat1 := c.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - c.Lat) * math.Pi / 180
	dLon := (other.Lon - c.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// NormalizedReading is the canonical observation all sources are converted
// into. Values use SI-like units so sources stay interchangeable: Celsius,
// percent, m/s, millimetres. Immutable once constructed.
//
// Optional numeric fields are pointers; a nil field means the source does not
// report that metric (station hardware typically lacks precipitation and
// condition sensors).
type NormalizedReading struct {
	SourceID   string     `json:"sourceId"`
	SourceKind SourceKind `json:"sourceKind"`
	Coordinate Coordinate `json:"coordinate"`
	ObservedAt time.Time  `json:"observedAt"` // always UTC

	TemperatureC    *float64 `json:"temperatureC,omitempty"`
	HumidityPct     *float64 `json:"humidityPercent,omitempty"`
	WindSpeedMS     *float64 `json:"windSpeedMs,omitempty"`
	PrecipitationMM *float64 `json:"precipitationMm,omitempty"`

	Condition  Condition `json:"condition"`
	Confidence float64   `json:"confidence"`
}

// Age returns how old the reading is relative to now.
func (r NormalizedReading) Age(now time.Time) time.Duration {
	return now.Sub(r.ObservedAt)
}

// Float returns a pointer to v. Convenience for optional reading fields.
func Float(v float64) *float64 { return &v }

// ReconciledReading is the fusion engine's output: a normalized reading plus
// the ordered source ids that fed it. Immutable once produced.
type ReconciledReading struct {
	NormalizedReading

	ContributingSources []string  `json:"contributingSources"`
	ReconciledAt        time.Time `json:"reconciledAt"`

	// Degraded marks results served despite missing or stale underlying
	// sources.
	Degraded bool `json:"degraded,omitempty"`

	// TTLHint carries the contributing provider's declared freshness so the
	// cache layer can derive an expiry. Zero when no provider contributed.
	TTLHint time.Duration `json:"-"`
}
