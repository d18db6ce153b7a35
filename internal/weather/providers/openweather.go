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

// OpenWeather implements the weather.Adapter interface for OpenWeatherMap.
type OpenWeather struct {
	name    string
	baseURL string
	cfg     Config
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeather(client *http.Client, cfg Config) *OpenWeather {
	cfg = cfg.withDefaults()
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.openweathermap.org/data/2.5/weather"
	}
	return &OpenWeather{
		name:    "openweathermap",
		baseURL: base,
		cfg:     cfg,
		client:  client,
		circuit: newCircuit("openweather"),
	}
}

func (p *OpenWeather) Name() string { return p.name }

func (p *OpenWeather) TTL() time.Duration { return p.cfg.TTL }

func (p *OpenWeather) Fetch(ctx context.Context, coord weather.Coordinate) (weather.NormalizedReading, error) {
	if p.cfg.APIKey == "" {
		return weather.NormalizedReading{}, fmt.Errorf("%w: openweather api key is not configured", weather.ErrProviderUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	values := url.Values{}
	values.Set("appid", p.cfg.APIKey)
	values.Set("units", "metric")
	values.Set("lat", fmt.Sprintf("%f", coord.Lat))
	values.Set("lon", fmt.Sprintf("%f", coord.Lon))

	resp, err := doRequest(ctx, p.client, p.circuit, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()))
	if err != nil {
		return weather.NormalizedReading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Rain struct {
			OneH   float64 `json:"1h"`
			ThreeH float64 `json:"3h"`
		} `json:"rain"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.NormalizedReading{}, malformed(err)
	}
	if payload.Dt == 0 {
		return weather.NormalizedReading{}, malformed(fmt.Errorf("missing observation timestamp"))
	}

	precip := payload.Rain.OneH
	if precip == 0 {
		precip = payload.Rain.ThreeH
	}

	return weather.NormalizedReading{
		SourceID:        p.name,
		SourceKind:      weather.SourceProvider,
		Coordinate:      coord.Bucketed(),
		ObservedAt:      time.Unix(payload.Dt, 0).UTC(),
		TemperatureC:    weather.Float(payload.Main.Temp),
		HumidityPct:     weather.Float(payload.Main.Humidity),
		WindSpeedMS:     weather.Float(payload.Wind.Speed),
		PrecipitationMM: weather.Float(precip),
		Condition:       mapOpenWeatherCondition(payload.Weather),
		Confidence:      p.cfg.Confidence,
	}, nil
}

func mapOpenWeatherCondition(items []struct {
	Main string `json:"main"`
}) weather.Condition {
	if len(items) == 0 {
		return weather.ConditionUnknown
	}
	switch items[0].Main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		return weather.ConditionRain
	case "Snow":
		return weather.ConditionSnow
	case "Thunderstorm":
		return weather.ConditionStorm
	case "Mist", "Fog", "Haze":
		return weather.ConditionMist
	default:
		return weather.ConditionUnknown
	}
}
