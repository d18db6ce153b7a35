package httpapi

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/dwv2/weather-fusion/internal/weather"
)

var validate = validator.New()

// WeatherSource is the cache layer's read contract consumed by the handlers.
type WeatherSource interface {
	Get(ctx context.Context, coord weather.Coordinate) (weather.ReconciledReading, error)
}

// CityLocator resolves city/country to a coordinate for the optional by-city
// endpoint.
type CityLocator interface {
	Enabled() bool
	Locate(city, country string) (weather.Coordinate, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, source WeatherSource, locator CityLocator) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		coord, err := parseCoordinateQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return respondWeather(c, source, coord)
	})

	v1.Get("/weather/by-city", func(c *fiber.Ctx) error {
		if locator == nil || !locator.Enabled() {
			return fiber.NewError(fiber.StatusNotFound, "by-city lookup is not configured")
		}

		var q cityQuery
		q.City = c.Query("city")
		q.Country = c.Query("country")
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		coord, err := locator.Locate(q.City, q.Country)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "failed to resolve location")
		}
		return respondWeather(c, source, coord)
	})
}

// respondWeather serves one reconciled reading, translating the core error
// taxonomy into HTTP classes: no data / no provider are service degradation,
// not client errors.
func respondWeather(c *fiber.Ctx, source WeatherSource, coord weather.Coordinate) error {
	reading, err := source.Get(c.UserContext(), coord)
	if err != nil {
		if errors.Is(err, weather.ErrNoDataAvailable) || errors.Is(err, weather.ErrNoProviderAvailable) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}
	return c.JSON(reading)
}

type cityQuery struct {
	City    string `validate:"required"`
	Country string `validate:"required"`
}

func parseCoordinateQuery(c *fiber.Ctx) (weather.Coordinate, error) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" || lonStr == "" {
		return weather.Coordinate{}, errors.New("lat and lon query parameters are required")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return weather.Coordinate{}, errors.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return weather.Coordinate{}, errors.New("lon must be a number")
	}

	return weather.NewCoordinate(lat, lon)
}
