package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Providers) != 1 || cfg.Providers[0].Name != "openmeteo" {
		t.Fatalf("expected default openmeteo provider, got %+v", cfg.Providers)
	}
	if cfg.ProviderTimeout != 3*time.Second {
		t.Errorf("expected 3s provider timeout, got %v", cfg.ProviderTimeout)
	}
	if cfg.ProviderStaleness != 10*time.Minute {
		t.Errorf("expected 10m staleness, got %v", cfg.ProviderStaleness)
	}
	if cfg.StationFreshnessWindow != 30*time.Minute {
		t.Errorf("expected 30m freshness window, got %v", cfg.StationFreshnessWindow)
	}
	if cfg.CacheTTLFloor != 5*time.Minute || cfg.CacheTTLCeil != 15*time.Minute {
		t.Errorf("unexpected TTL bounds: %v / %v", cfg.CacheTTLFloor, cfg.CacheTTLCeil)
	}
	if cfg.MQTTTopic != "stations/+/telemetry" {
		t.Errorf("unexpected topic %q", cfg.MQTTTopic)
	}
}

func TestLoadProviderPriorityOrder(t *testing.T) {
	t.Setenv("PROVIDERS", "openweather, openmeteo")
	t.Setenv("OPENWEATHER_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(cfg.Providers))
	}
	if cfg.Providers[0].Name != "openweather" || cfg.Providers[1].Name != "openmeteo" {
		t.Fatalf("provider order not preserved: %+v", cfg.Providers)
	}
}

func TestLoadRejectsKeyedProviderWithoutKey(t *testing.T) {
	t.Setenv("PROVIDERS", "weatherapi")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "WEATHERAPI_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("CACHE_TTL_FLOOR", "five minutes")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestLoadRejectsInvertedTTLBounds(t *testing.T) {
	t.Setenv("CACHE_TTL_FLOOR", "20m")
	t.Setenv("CACHE_TTL_CEIL", "10m")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when ceiling is below floor")
	}
}

func TestLoadWarmCoordinates(t *testing.T) {
	t.Setenv("WARM_COORDINATES", "59.94:30.31, 55.75:37.62")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.WarmCoordinates) != 2 {
		t.Fatalf("expected 2 warm coordinates, got %d", len(cfg.WarmCoordinates))
	}
	if cfg.WarmCoordinates[0].Lat != 59.94 {
		t.Fatalf("unexpected coordinate %+v", cfg.WarmCoordinates[0])
	}
}

func TestLoadRejectsBadWarmCoordinates(t *testing.T) {
	cases := []string{"59.94", "95:30.31", "a:b"}
	for _, v := range cases {
		t.Setenv("WARM_COORDINATES", v)
		if _, err := Load(); err == nil {
			t.Errorf("value %q: expected error", v)
		}
	}
}

func TestLoadRejectsBadQoS(t *testing.T) {
	t.Setenv("MQTT_QOS", "3")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for QoS out of range")
	}
}
