package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwv2/weather-fusion/internal/weather"
)

// WeatherAPI implements the weather.Adapter interface for WeatherAPI.com.
type WeatherAPI struct {
	name    string
	baseURL string
	cfg     Config
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPI(client *http.Client, cfg Config) *WeatherAPI {
	cfg = cfg.withDefaults()
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.weatherapi.com/v1/current.json"
	}
	return &WeatherAPI{
		name:    "weatherapi",
		baseURL: base,
		cfg:     cfg,
		client:  client,
		circuit: newCircuit("weatherapi"),
	}
}

func (p *WeatherAPI) Name() string { return p.name }

func (p *WeatherAPI) TTL() time.Duration { return p.cfg.TTL }

func (p *WeatherAPI) Fetch(ctx context.Context, coord weather.Coordinate) (weather.NormalizedReading, error) {
	if p.cfg.APIKey == "" {
		return weather.NormalizedReading{}, fmt.Errorf("%w: weatherapi api key is not configured", weather.ErrProviderUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	values := url.Values{}
	values.Set("key", p.cfg.APIKey)
	// WeatherAPI uses "q" for location and accepts "lat,lon".
	values.Set("q", fmt.Sprintf("%f,%f", coord.Lat, coord.Lon))

	resp, err := doRequest(ctx, p.client, p.circuit, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()))
	if err != nil {
		return weather.NormalizedReading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current struct {
			LastUpdatedEpoch int64   `json:"last_updated_epoch"`
			TempC            float64 `json:"temp_c"`
			Humidity         float64 `json:"humidity"`
			WindKph          float64 `json:"wind_kph"`
			PrecipMm         float64 `json:"precip_mm"`
			Condition        struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.NormalizedReading{}, malformed(err)
	}
	if payload.Current.LastUpdatedEpoch == 0 {
		return weather.NormalizedReading{}, malformed(fmt.Errorf("missing observation timestamp"))
	}

	return weather.NormalizedReading{
		SourceID:        p.name,
		SourceKind:      weather.SourceProvider,
		Coordinate:      coord.Bucketed(),
		ObservedAt:      time.Unix(payload.Current.LastUpdatedEpoch, 0).UTC(),
		TemperatureC:    weather.Float(payload.Current.TempC),
		HumidityPct:     weather.Float(payload.Current.Humidity),
		WindSpeedMS:     weather.Float(payload.Current.WindKph / 3.6),
		PrecipitationMM: weather.Float(payload.Current.PrecipMm),
		Condition:       mapWeatherAPICondition(payload.Current.Condition.Text),
		Confidence:      p.cfg.Confidence,
	}, nil
}

func mapWeatherAPICondition(text string) weather.Condition {
	t := strings.ToLower(text)
	switch {
	case containsAny(t, "thunder"):
		return weather.ConditionStorm
	case containsAny(t, "snow", "sleet", "blizzard", "ice"):
		return weather.ConditionSnow
	case containsAny(t, "rain", "drizzle", "shower"):
		return weather.ConditionRain
	case containsAny(t, "mist", "fog", "haze"):
		return weather.ConditionMist
	case containsAny(t, "cloud", "overcast"):
		return weather.ConditionCloudy
	case containsAny(t, "clear", "sunny"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
