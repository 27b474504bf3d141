package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/suncheck/suncheck/internal/cache"
	"github.com/suncheck/suncheck/internal/calibrate"
	"github.com/suncheck/suncheck/internal/config"
	"github.com/suncheck/suncheck/internal/db"
	"github.com/suncheck/suncheck/internal/finance"
	"github.com/suncheck/suncheck/internal/httpapi"
	"github.com/suncheck/suncheck/internal/pipeline"
	"github.com/suncheck/suncheck/internal/providers"
	"github.com/suncheck/suncheck/internal/summary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var history pipeline.HistoryStore = pipeline.NoopHistory{}
	dbConnected := false
	if cfg.DatabaseURL != "" {
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connection error: %v", err)
		}
		defer store.Close()
		history = store
		dbConnected = true
	} else {
		log.Print("DATABASE_URL not set, running stateless")
	}

	fetcher, err := providers.NewFetcher(providers.FetcherConfig{
		SolarDailyURL:       cfg.SolarDailyURL,
		SolarClimatologyURL: cfg.SolarClimatologyURL,
		WeatherURL:          cfg.WeatherURL,
		GoogleElevationURL:  cfg.GoogleElevationURL,
		GoogleElevationKey:  cfg.GoogleElevationKey,
		OpenElevationURL:    cfg.OpenElevationURL,
		ProviderTimeout:     cfg.ProviderTimeout,
		CacheTTL:            cfg.CacheTTL,
	}, cache.New(cfg.RedisURL))
	if err != nil {
		log.Fatalf("provider config error: %v", err)
	}

	calibrator := calibrate.New()
	if dbConnected {
		warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
		if err := calibrator.WarmUp(warmCtx, history); err != nil {
			log.Printf("calibrator warm-up skipped: %v", err)
		}
		warmCancel()
	}

	var summarizer summary.Summarizer
	gemini := summary.NewGeminiClient(&http.Client{Timeout: 10 * time.Second}, cfg.GeminiBaseURL, cfg.GeminiAPIKey)
	if gemini.Configured() {
		summarizer = gemini
	} else {
		log.Print("GEMINI_API_KEY not set, using template summaries")
	}

	pipe := pipeline.New(fetcher, calibrator, finance.NewEngine(cfg.CostPerKW), summarizer, history)

	elevationProvider := "open-elevation"
	if cfg.GoogleElevationKey != "" {
		elevationProvider = "google"
	}
	srv := httpapi.New(cfg, pipe, httpapi.HealthInfo{
		SummarizerConfigured: gemini.Configured(),
		ElevationProvider:    elevationProvider,
		DatabaseConnected:    dbConnected,
	})

	log.Printf("analysis API listening on %s", cfg.ListenAddr())
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
