package ingest

import (
	"testing"
	"time"

	"github.com/dwv2/weather-fusion/internal/store"
	"github.com/dwv2/weather-fusion/internal/weather"
)

func TestHandleMessageStoresReading(t *testing.T) {
	st := store.NewStationStore(8, 30*time.Minute)
	p := NewPipeline(Config{BrokerURL: "tcp://localhost:1883"}, st)

	now := time.Now().UTC()
	p.handleMessage("stations/st-42/telemetry", validPayload(now.Add(-1*time.Minute)))

	got := st.Nearby(weather.Coordinate{Lat: 59.94, Lon: 30.31}, 10, 30*time.Minute)
	if len(got) != 1 {
		t.Fatalf("expected 1 stored reading, got %d", len(got))
	}
	if got[0].SourceID != "st-42" {
		t.Fatalf("unexpected source %q", got[0].SourceID)
	}
}

func TestHandleMessageDuplicateIsIdempotent(t *testing.T) {
	st := store.NewStationStore(8, 30*time.Minute)
	p := NewPipeline(Config{BrokerURL: "tcp://localhost:1883"}, st)

	payload := validPayload(time.Now().UTC().Add(-1 * time.Minute))
	p.handleMessage("stations/st-42/telemetry", payload)
	p.handleMessage("stations/st-42/telemetry", payload)

	got := st.Nearby(weather.Coordinate{Lat: 59.94, Lon: 30.31}, 10, 30*time.Minute)
	if len(got) != 1 {
		t.Fatalf("expected 1 stored reading after replay, got %d", len(got))
	}
}

func TestHandleMessageDropsBadPayload(t *testing.T) {
	st := store.NewStationStore(8, 30*time.Minute)
	p := NewPipeline(Config{BrokerURL: "tcp://localhost:1883"}, st)

	// None of these may panic or store anything.
	p.handleMessage("stations/st-42/telemetry", []byte(`not json`))
	p.handleMessage("stations/st-42/telemetry", []byte(`{"version":9,"ts_utc":"2026-08-30T12:00:00Z","lat":1,"lon":1}`))
	p.handleMessage("bogus/topic", validPayload(time.Now().UTC()))

	got := st.Nearby(weather.Coordinate{Lat: 59.94, Lon: 30.31}, 10, 30*time.Minute)
	if len(got) != 0 {
		t.Fatalf("expected nothing stored, got %d readings", len(got))
	}
}

func TestBackoffProgression(t *testing.T) {
	if next := nextBackoff(time.Second, time.Minute); next != 2*time.Second {
		t.Fatalf("expected 2s, got %v", next)
	}
	if next := nextBackoff(40*time.Second, time.Minute); next != time.Minute {
		t.Fatalf("expected cap at 1m, got %v", next)
	}
}
