package geo

import (
	"errors"
	"fmt"

	"github.com/kelvins/geocoder"

	"github.com/dwv2/weather-fusion/internal/weather"
)

// ErrDisabled is returned when no geocoder API key is configured.
var ErrDisabled = errors.New("geocoding is not configured")

// Locator resolves a city/country pair into a coordinate so by-city queries
// can reuse the coordinate-keyed pipeline.
type Locator struct {
	enabled bool
}

// NewLocator configures the geocoder. An empty key disables the locator
// rather than failing: by-city lookup is optional.
func NewLocator(apiKey string) *Locator {
	if apiKey != "" {
		geocoder.ApiKey = apiKey
	}
	return &Locator{enabled: apiKey != ""}
}

// Enabled reports whether by-city lookup is available.
func (l *Locator) Enabled() bool { return l.enabled }

// Locate resolves city/country to a validated coordinate.
func (l *Locator) Locate(city, country string) (weather.Coordinate, error) {
	if !l.enabled {
		return weather.Coordinate{}, ErrDisabled
	}

	loc, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
	if err != nil {
		return weather.Coordinate{}, fmt.Errorf("geocoding %s,%s: %w", city, country, err)
	}
	return weather.NewCoordinate(loc.Latitude, loc.Longitude)
}
