package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/dwv2/weather-fusion/internal/weather"
)

var validate = validator.New()

// ProviderConfig describes one enabled provider adapter. Order in
// AppConfig.Providers is priority order.
type ProviderConfig struct {
	Name       string  `validate:"required,oneof=openweather weatherapi openmeteo"`
	APIKey     string
	Confidence float64 `validate:"gt=0,lte=1"`
}

// AppConfig is the full validated configuration surface. Malformed values
// are a fatal startup error, never a runtime one.
type AppConfig struct {
	Providers         []ProviderConfig `validate:"min=1,dive"`
	ProviderTimeout   time.Duration    `validate:"gt=0"`
	ProviderTTL       time.Duration    `validate:"gt=0"`
	ProviderStaleness time.Duration    `validate:"gt=0"`

	StationFreshnessWindow time.Duration `validate:"gt=0"`
	StationRadiusKM        float64       `validate:"gt=0"`
	StationMaxHistory      int           `validate:"gt=0"`
	StationConfidence      float64       `validate:"gt=0,lte=1"`
	ClockSkewTolerance     time.Duration `validate:"gt=0"`

	CacheTTLFloor     time.Duration `validate:"gt=0"`
	CacheTTLCeil      time.Duration `validate:"gtefield=CacheTTLFloor"`
	CacheStaleCeiling time.Duration `validate:"gt=0"`
	RefreshTimeout    time.Duration `validate:"gt=0"`

	MQTTBrokerURL      string `validate:"required"`
	MQTTUsername       string
	MQTTPassword       string
	MQTTClientIDPrefix string
	MQTTTopic          string
	MQTTQoS            byte `validate:"lte=2"`
	MQTTReconnectMin   time.Duration
	MQTTReconnectMax   time.Duration

	SweepInterval   time.Duration `validate:"gt=0"`
	WarmCoordinates []weather.Coordinate

	GeocoderAPIKey string
	Port           string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}
	var err error

	if cfg.Providers, err = loadProviders(); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = getenvDuration("PROVIDER_TIMEOUT", "3s"); err != nil {
		return nil, err
	}
	if cfg.ProviderTTL, err = getenvDuration("PROVIDER_TTL", "10m"); err != nil {
		return nil, err
	}
	if cfg.ProviderStaleness, err = getenvDuration("PROVIDER_STALENESS", "10m"); err != nil {
		return nil, err
	}

	if cfg.StationFreshnessWindow, err = getenvDuration("STATION_FRESHNESS_WINDOW", "30m"); err != nil {
		return nil, err
	}
	if cfg.StationRadiusKM, err = getenvFloat("STATION_RADIUS_KM", 10); err != nil {
		return nil, err
	}
	if cfg.StationMaxHistory, err = getenvInt("STATION_MAX_HISTORY", 8); err != nil {
		return nil, err
	}
	if cfg.StationConfidence, err = getenvFloat("STATION_CONFIDENCE", 0.95); err != nil {
		return nil, err
	}
	if cfg.ClockSkewTolerance, err = getenvDuration("CLOCK_SKEW_TOLERANCE", "2m"); err != nil {
		return nil, err
	}

	if cfg.CacheTTLFloor, err = getenvDuration("CACHE_TTL_FLOOR", "5m"); err != nil {
		return nil, err
	}
	if cfg.CacheTTLCeil, err = getenvDuration("CACHE_TTL_CEIL", "15m"); err != nil {
		return nil, err
	}
	if cfg.CacheStaleCeiling, err = getenvDuration("CACHE_STALE_CEILING", "1h"); err != nil {
		return nil, err
	}
	if cfg.RefreshTimeout, err = getenvDuration("REFRESH_TIMEOUT", "15s"); err != nil {
		return nil, err
	}

	cfg.MQTTBrokerURL = getenvDefault("MQTT_BROKER_URL", "tcp://localhost:1883")
	cfg.MQTTUsername = os.Getenv("MQTT_USERNAME")
	cfg.MQTTPassword = os.Getenv("MQTT_PASSWORD")
	cfg.MQTTClientIDPrefix = getenvDefault("MQTT_CLIENT_ID_PREFIX", "weather-fusion-consumer")
	cfg.MQTTTopic = getenvDefault("MQTT_TOPIC", "stations/+/telemetry")

	qos, err := getenvInt("MQTT_QOS", 1)
	if err != nil {
		return nil, err
	}
	if qos < 0 || qos > 2 {
		return nil, fmt.Errorf("invalid MQTT_QOS: %d", qos)
	}
	cfg.MQTTQoS = byte(qos)

	if cfg.MQTTReconnectMin, err = getenvDuration("MQTT_RECONNECT_MIN", "1s"); err != nil {
		return nil, err
	}
	if cfg.MQTTReconnectMax, err = getenvDuration("MQTT_RECONNECT_MAX", "1m"); err != nil {
		return nil, err
	}

	if cfg.SweepInterval, err = getenvDuration("SWEEP_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	if cfg.WarmCoordinates, err = parseCoordinates(os.Getenv("WARM_COORDINATES")); err != nil {
		return nil, err
	}

	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadProviders parses the PROVIDERS list. Order is priority order. Keyed
// providers refuse to start without their API key.
func loadProviders() ([]ProviderConfig, error) {
	names := strings.Split(getenvDefault("PROVIDERS", "openmeteo"), ",")

	keyEnv := map[string]string{
		"openweather": "OPENWEATHER_API_KEY",
		"weatherapi":  "WEATHERAPI_API_KEY",
	}

	var providers []ProviderConfig
	for _, raw := range names {
		name := strings.TrimSpace(strings.ToLower(raw))
		if name == "" {
			continue
		}

		p := ProviderConfig{Name: name}
		if env, needsKey := keyEnv[name]; needsKey {
			p.APIKey = os.Getenv(env)
			if p.APIKey == "" {
				return nil, fmt.Errorf("provider %s enabled but %s is not set", name, env)
			}
		}

		conf, err := getenvFloat(strings.ToUpper(name)+"_CONFIDENCE", 0.8)
		if err != nil {
			return nil, err
		}
		p.Confidence = conf

		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("PROVIDERS must name at least one provider")
	}
	return providers, nil
}

// parseCoordinates parses "lat:lon,lat:lon" pairs.
func parseCoordinates(s string) ([]weather.Coordinate, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var coords []weather.Coordinate
	for _, pair := range strings.Split(s, ",") {
		parts := strings.Split(strings.TrimSpace(pair), ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid WARM_COORDINATES entry %q; want lat:lon", pair)
		}
		lat, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in %q: %w", pair, err)
		}
		lon, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in %q: %w", pair, err)
		}
		coord, err := weather.NewCoordinate(lat, lon)
		if err != nil {
			return nil, err
		}
		coords = append(coords, coord)
	}
	return coords, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
