package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the analysis service.
type Config struct {
	DatabaseURL string // empty runs the service stateless
	RedisURL    string
	Port        int
	BearerToken string

	SolarDailyURL       string
	SolarClimatologyURL string
	WeatherURL          string
	GoogleElevationURL  string
	GoogleElevationKey  string
	OpenElevationURL    string

	GeminiBaseURL string
	GeminiAPIKey  string

	ProviderTimeout time.Duration
	RequestDeadline time.Duration
	HardDeadline    time.Duration
	CacheTTL        time.Duration

	CostPerKW    float64
	HistoryLimit int
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Port:                8080,
		SolarDailyURL:       "https://power.larc.nasa.gov/api/temporal/daily/point",
		SolarClimatologyURL: "https://power.larc.nasa.gov/api/temporal/climatology/point",
		WeatherURL:          "https://api.open-meteo.com/v1/forecast",
		GoogleElevationURL:  "https://maps.googleapis.com/maps/api/elevation/json",
		OpenElevationURL:    "https://api.open-elevation.com/api/v1/lookup",
		GeminiBaseURL:       "https://generativelanguage.googleapis.com/v1beta",
		ProviderTimeout:     8 * time.Second,
		RequestDeadline:     30 * time.Second,
		HardDeadline:        60 * time.Second,
		CacheTTL:            time.Hour,
		CostPerKW:           50_000,
		HistoryLimit:        20,
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GoogleElevationKey = os.Getenv("GOOGLE_ELEVATION_API_KEY")

	for env, dest := range map[string]*string{
		"SOLAR_DAILY_URL":       &cfg.SolarDailyURL,
		"SOLAR_CLIMATOLOGY_URL": &cfg.SolarClimatologyURL,
		"WEATHER_URL":           &cfg.WeatherURL,
		"GOOGLE_ELEVATION_URL":  &cfg.GoogleElevationURL,
		"OPEN_ELEVATION_URL":    &cfg.OpenElevationURL,
		"GEMINI_BASE_URL":       &cfg.GeminiBaseURL,
	} {
		if v := os.Getenv(env); v != "" {
			*dest = v
		}
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	}

	if v := os.Getenv("PROVIDER_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ProviderTimeout = time.Duration(secs) * time.Second
		} else {
			return cfg, fmt.Errorf("invalid PROVIDER_TIMEOUT_SECONDS: %s", v)
		}
	}

	if v := os.Getenv("CACHE_TTL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.CacheTTL = time.Duration(secs) * time.Second
		} else {
			return cfg, fmt.Errorf("invalid CACHE_TTL_SECONDS: %s", v)
		}
	}

	if v := os.Getenv("COST_PER_KW"); v != "" {
		if cost, err := strconv.ParseFloat(v, 64); err == nil && cost > 0 {
			cfg.CostPerKW = cost
		} else {
			return cfg, fmt.Errorf("invalid COST_PER_KW: %s", v)
		}
	}

	if v := os.Getenv("HISTORY_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			cfg.HistoryLimit = limit
		} else {
			return cfg, fmt.Errorf("invalid HISTORY_LIMIT: %s", v)
		}
	}

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
