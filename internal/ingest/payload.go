package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dwv2/weather-fusion/internal/weather"
)

// TelemetryVersion is the wire schema version this decoder understands.
// Unknown versions are rejected cleanly instead of being guessed at.
const TelemetryVersion = 1

var (
	// ErrBadPayload covers JSON decode failures and missing required fields.
	// Ingestion-local: logged and dropped, never fatal.
	ErrBadPayload = errors.New("bad telemetry payload")

	// ErrUnknownVersion is returned for payload versions the decoder does
	// not understand.
	ErrUnknownVersion = errors.New("unknown telemetry version")

	// ErrFutureObservation is returned when observed_at is further in the
	// future than the clock skew tolerance.
	ErrFutureObservation = errors.New("observation timestamp in the future")
)

// telemetryPayload is the versioned wire record stations publish.
type telemetryPayload struct {
	Version   int       `json:"version"`
	StationID string    `json:"station_id"`
	TsUTC     time.Time `json:"ts_utc"`

	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`

	TemperatureC    *float64 `json:"temperature_c"`
	HumidityPercent *float64 `json:"humidity_percent"`
	WindSpeedMS     *float64 `json:"wind_speed_ms"`
	RainfallMM      *float64 `json:"rainfall_mm"`

	Confidence *float64 `json:"confidence"`
}

// stationIDFromTopic extracts the station id from a
// stations/{station_id}/telemetry topic.
func stationIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) >= 3 && parts[0] == "stations" && parts[2] == "telemetry" && parts[1] != "" {
		return parts[1], nil
	}
	return "", fmt.Errorf("%w: unsupported topic format %q", ErrBadPayload, topic)
}

// decodeReading validates a raw telemetry payload and converts it into a
// NormalizedReading. stationID comes from the topic; a station_id embedded in
// the payload is ignored when it disagrees, the topic is authoritative.
func decodeReading(stationID string, payload []byte, now time.Time, skew time.Duration, defaultConfidence float64) (weather.NormalizedReading, error) {
	var msg telemetryPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return weather.NormalizedReading{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	if msg.Version != TelemetryVersion {
		return weather.NormalizedReading{}, fmt.Errorf("%w: %d", ErrUnknownVersion, msg.Version)
	}
	if msg.TsUTC.IsZero() {
		return weather.NormalizedReading{}, fmt.Errorf("%w: ts_utc is required", ErrBadPayload)
	}
	if msg.Lat == nil || msg.Lon == nil {
		return weather.NormalizedReading{}, fmt.Errorf("%w: lat/lon are required", ErrBadPayload)
	}

	coord, err := weather.NewCoordinate(*msg.Lat, *msg.Lon)
	if err != nil {
		return weather.NormalizedReading{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	observed := msg.TsUTC.UTC()
	if observed.After(now.Add(skew)) {
		return weather.NormalizedReading{}, fmt.Errorf("%w: %s", ErrFutureObservation, observed.Format(time.RFC3339))
	}

	confidence := defaultConfidence
	if msg.Confidence != nil && *msg.Confidence > 0 && *msg.Confidence <= 1 {
		confidence = *msg.Confidence
	}

	return weather.NormalizedReading{
		SourceID:        stationID,
		SourceKind:      weather.SourceStation,
		Coordinate:      coord,
		ObservedAt:      observed,
		TemperatureC:    msg.TemperatureC,
		HumidityPct:     msg.HumidityPercent,
		WindSpeedMS:     msg.WindSpeedMS,
		PrecipitationMM: msg.RainfallMM,
		Condition:       weather.ConditionUnknown,
		Confidence:      confidence,
	}, nil
}
