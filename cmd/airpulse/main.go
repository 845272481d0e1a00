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
	"github.com/kelvins/geocoder"

	httpapi "github.com/gothamair/airpulse/internal/api/http"
	"github.com/gothamair/airpulse/internal/aq"
	"github.com/gothamair/airpulse/internal/aq/openaq"
	"github.com/gothamair/airpulse/internal/config"
	"github.com/gothamair/airpulse/internal/insights"
	"github.com/gothamair/airpulse/internal/report"
	"github.com/gothamair/airpulse/internal/scheduler"
	"github.com/gothamair/airpulse/internal/store"
)

func main() {
	// Load configuration (reads .env and the environment once).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Upstream client and the enrichment pipeline over it.
	client := openaq.NewClient(httpClient, cfg.OpenAQAPIKey)
	pipeline := aq.NewPipeline(client)

	// In-memory snapshot store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// Optional LLM advisor.
	var advisor insights.Advisor
	switch cfg.AIBackend {
	case "ollama":
		advisor = insights.NewOllamaAdvisor(httpClient, cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaAPIKey)
	case "ollama-cloud":
		advisor = insights.NewCloudAdvisor(httpClient, cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaAPIKey)
	}

	// City geocoding uses the same key as the map embed.
	if cfg.GoogleMapsAPIKey != "" {
		geocoder.ApiKey = cfg.GoogleMapsAPIKey
	}

	// Scheduler that periodically refreshes watch-area snapshots.
	sched := scheduler.New(cfg.WatchAreas, cfg.FetchInterval, pipeline, memStore)

	if cfg.ReportDir != "" {
		writer, err := report.NewWriter(cfg.ReportDir)
		if err != nil {
			log.Fatalf("failed to set up report writer: %v", err)
		}
		sched.OnSnapshot = func(snap aq.Snapshot) {
			var insight *insights.Insight
			if advisor != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				in, err := advisor.Analyze(ctx, snap.Request.Pollutant, snap.Result)
				cancel()
				if err != nil {
					log.Printf("report: analysis skipped for %s: %v", snap.Area, err)
				} else {
					insight = &in
				}
			}
			if err := writer.WriteSnapshot(snap, insight); err != nil {
				log.Printf("report: write failed for %s: %v", snap.Area, err)
			}
		}
	}

	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "airpulse",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          45 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
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

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "airpulse",
		})
	})

	// API and dashboard routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Pipeline:        pipeline,
		Client:          client,
		Store:           memStore,
		Advisor:         advisor,
		MapsAPIKey:      cfg.GoogleMapsAPIKey,
		GeocoderEnabled: cfg.GoogleMapsAPIKey != "",
	})

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
