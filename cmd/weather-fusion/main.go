package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/dwv2/weather-fusion/internal/api/http"
	"github.com/dwv2/weather-fusion/internal/cache"
	"github.com/dwv2/weather-fusion/internal/config"
	"github.com/dwv2/weather-fusion/internal/geo"
	"github.com/dwv2/weather-fusion/internal/ingest"
	"github.com/dwv2/weather-fusion/internal/scheduler"
	"github.com/dwv2/weather-fusion/internal/store"
	"github.com/dwv2/weather-fusion/internal/weather"
	"github.com/dwv2/weather-fusion/internal/weather/providers"
)

func main() {
	// Malformed configuration is fatal here and only here.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls. Per-call timeouts are
	// enforced by each adapter; the client timeout is only a backstop.
	httpClient := &http.Client{
		Timeout: cfg.ProviderTimeout + 2*time.Second,
	}

	adapters := buildAdapters(cfg, httpClient)
	bridge := weather.NewBridge(adapters, cfg.ProviderStaleness)

	stations := store.NewStationStore(cfg.StationMaxHistory, cfg.StationFreshnessWindow)

	fusion := weather.NewFusion(bridge, stations, weather.FusionConfig{
		RadiusKM:        cfg.StationRadiusKM,
		FreshnessWindow: cfg.StationFreshnessWindow,
	})

	weatherCache := cache.New(fusion, cache.Config{
		TTLFloor:         cfg.CacheTTLFloor,
		TTLCeil:          cfg.CacheTTLCeil,
		StationWindow:    cfg.StationFreshnessWindow,
		HardStaleCeiling: cfg.CacheStaleCeiling,
		RefreshTimeout:   cfg.RefreshTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Station ingestion runs decoupled from request serving; broker outages
	// only affect this goroutine.
	pipeline := ingest.NewPipeline(ingest.Config{
		BrokerURL:         cfg.MQTTBrokerURL,
		Username:          cfg.MQTTUsername,
		Password:          cfg.MQTTPassword,
		ClientIDPrefix:    cfg.MQTTClientIDPrefix,
		Topic:             cfg.MQTTTopic,
		QoS:               cfg.MQTTQoS,
		SkewTolerance:     cfg.ClockSkewTolerance,
		StationConfidence: cfg.StationConfidence,
		ReconnectMin:      cfg.MQTTReconnectMin,
		ReconnectMax:      cfg.MQTTReconnectMax,
	}, stations)
	go pipeline.Run(ctx)

	sched := scheduler.New(stations, weatherCache, cfg.WarmCoordinates, cfg.SweepInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-fusion",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-fusion",
		})
	})

	httpapi.RegisterRoutes(app, weatherCache, geo.NewLocator(cfg.GeocoderAPIKey))

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

// buildAdapters instantiates the configured providers preserving the
// configured priority order.
func buildAdapters(cfg *config.AppConfig, client *http.Client) []weather.Adapter {
	var adapters []weather.Adapter
	for _, p := range cfg.Providers {
		pc := providers.Config{
			APIKey:     p.APIKey,
			Timeout:    cfg.ProviderTimeout,
			TTL:        cfg.ProviderTTL,
			Confidence: p.Confidence,
		}
		switch p.Name {
		case "openweather":
			adapters = append(adapters, providers.NewOpenWeather(client, pc))
		case "weatherapi":
			adapters = append(adapters, providers.NewWeatherAPI(client, pc))
		case "openmeteo":
			adapters = append(adapters, providers.NewOpenMeteo(client, pc))
		}
	}
	return adapters
}
