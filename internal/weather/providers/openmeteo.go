package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwv2/weather-fusion/internal/weather"
)

// OpenMeteo implements the weather.Adapter interface for Open-Meteo, which
// is keyless and coordinate-native.
type OpenMeteo struct {
	name    string
	baseURL string
	cfg     Config
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteo(client *http.Client, cfg Config) *OpenMeteo {
	cfg = cfg.withDefaults()
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.open-meteo.com/v1/forecast"
	}
	return &OpenMeteo{
		name:    "openmeteo",
		baseURL: base,
		cfg:     cfg,
		client:  client,
		circuit: newCircuit("openmeteo"),
	}
}

func (p *OpenMeteo) Name() string { return p.name }

func (p *OpenMeteo) TTL() time.Duration { return p.cfg.TTL }

func (p *OpenMeteo) Fetch(ctx context.Context, coord weather.Coordinate) (weather.NormalizedReading, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", coord.Lat))
	values.Set("longitude", fmt.Sprintf("%f", coord.Lon))
	values.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,precipitation,weather_code")
	values.Set("wind_speed_unit", "ms")
	values.Set("timezone", "UTC")

	resp, err := doRequest(ctx, p.client, p.circuit, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()))
	if err != nil {
		return weather.NormalizedReading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current struct {
			Time             string  `json:"time"`
			Temperature2m    float64 `json:"temperature_2m"`
			RelativeHumidity float64 `json:"relative_humidity_2m"`
			WindSpeed10m     float64 `json:"wind_speed_10m"`
			Precipitation    float64 `json:"precipitation"`
			WeatherCode      int     `json:"weather_code"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.NormalizedReading{}, malformed(err)
	}

	// Open-Meteo reports minute-precision local time; with timezone=UTC the
	// value is already UTC.
	observed, err := time.Parse("2006-01-02T15:04", payload.Current.Time)
	if err != nil {
		return weather.NormalizedReading{}, malformed(fmt.Errorf("bad observation time %q: %v", payload.Current.Time, err))
	}

	return weather.NormalizedReading{
		SourceID:        p.name,
		SourceKind:      weather.SourceProvider,
		Coordinate:      coord.Bucketed(),
		ObservedAt:      observed.UTC(),
		TemperatureC:    weather.Float(payload.Current.Temperature2m),
		HumidityPct:     weather.Float(payload.Current.RelativeHumidity),
		WindSpeedMS:     weather.Float(payload.Current.WindSpeed10m),
		PrecipitationMM: weather.Float(payload.Current.Precipitation),
		Condition:       mapWMOCode(payload.Current.WeatherCode),
		Confidence:      p.cfg.Confidence,
	}, nil
}

// mapWMOCode translates WMO weather interpretation codes into the normalized
// condition enum.
func mapWMOCode(code int) weather.Condition {
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95 && code <= 99:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}
