package providers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/suncheck/suncheck/internal/cache"
	"github.com/suncheck/suncheck/internal/models"
)

// Fetcher assembles the full feature set for a site by running the three
// provider chains concurrently. Each chain has its own deadline and its own
// fallback, so a slow or failing provider never cancels its siblings and
// never fails the request.
type Fetcher struct {
	solar     *SolarClient
	weather   *WeatherClient
	elevation *ElevationClient

	cache    cache.Cache
	cacheTTL time.Duration
	timeout  time.Duration
}

// FetcherConfig carries the provider endpoints and knobs.
type FetcherConfig struct {
	SolarDailyURL       string
	SolarClimatologyURL string
	WeatherURL          string
	GoogleElevationURL  string
	GoogleElevationKey  string
	OpenElevationURL    string

	// ProviderTimeout bounds each individual provider chain.
	ProviderTimeout time.Duration
	CacheTTL        time.Duration
}

// NewFetcher wires the three provider clients over one pooled HTTP client.
// It returns an error only on misconfiguration (a blank endpoint); network
// availability is a runtime concern handled by fallbacks.
func NewFetcher(cfg FetcherConfig, c cache.Cache) (*Fetcher, error) {
	for name, u := range map[string]string{
		"solar daily":       cfg.SolarDailyURL,
		"solar climatology": cfg.SolarClimatologyURL,
		"weather":           cfg.WeatherURL,
		"open elevation":    cfg.OpenElevationURL,
	} {
		if u == "" {
			return nil, fmt.Errorf("provider configuration: %s URL is empty", name)
		}
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 8 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}

	hc := &http.Client{Timeout: cfg.ProviderTimeout}
	return &Fetcher{
		solar:     NewSolarClient(hc, cfg.SolarDailyURL, cfg.SolarClimatologyURL),
		weather:   NewWeatherClient(hc, cfg.WeatherURL),
		elevation: NewElevationClient(hc, cfg.GoogleElevationURL, cfg.GoogleElevationKey, cfg.OpenElevationURL),
		cache:     c,
		cacheTTL:  cfg.CacheTTL,
		timeout:   cfg.ProviderTimeout,
	}, nil
}

// cached provider results carry the live flag so a cache hit keeps the
// original provenance.
type cachedSolar struct {
	Value float64 `json:"value"`
	Live  bool    `json:"live"`
}

type cachedWeather struct {
	Bundle WeatherBundle `json:"bundle"`
	Live   bool          `json:"live"`
}

type cachedTerrain struct {
	Terrain Terrain `json:"terrain"`
	Live    bool    `json:"live"`
}

// Fetch produces a complete Features value for (lat, lng). gridDistanceKM
// is the caller-supplied override; nil selects the regional estimate.
func (f *Fetcher) Fetch(ctx context.Context, lat, lng float64, gridDistanceKM *float64) models.Features {
	var (
		wg sync.WaitGroup

		irradiance float64
		solarLive  bool

		bundle      WeatherBundle
		weatherLive bool

		terrain     Terrain
		terrainLive bool
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		irradiance, solarLive = f.fetchSolar(cctx, lat, lng)
	}()
	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		bundle, weatherLive = f.fetchWeather(cctx, lat, lng)
	}()
	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		terrain, terrainLive = f.fetchTerrain(cctx, lat, lng)
	}()
	wg.Wait()

	gridKM := EstimateGridDistance(lat, lng)
	gridLive := false
	if gridDistanceKM != nil {
		gridKM = *gridDistanceKM
		gridLive = true
	}

	sources := 0
	for _, live := range []bool{solarLive, weatherLive, terrainLive, gridLive} {
		if live {
			sources++
		}
	}

	return models.Features{
		SolarIrradiance: irradiance,
		WindSpeed:       bundle.WindSpeed,
		TemperatureC:    bundle.TemperatureC,
		HumidityPct:     bundle.HumidityPct,
		CloudCoverPct:   bundle.CloudCoverPct,
		ElevationM:      terrain.ElevationM,
		SlopeDegrees:    terrain.SlopeDegrees,
		GridDistanceKM:  gridKM,
		DataSources:     sources,
	}
}

func (f *Fetcher) fetchSolar(ctx context.Context, lat, lng float64) (float64, bool) {
	key := siteKey("solar", lat, lng)
	if b, ok := f.cache.Get(ctx, key); ok {
		var entry cachedSolar
		if cache.Unmarshal(b, &entry) == nil {
			return entry.Value, entry.Live
		}
	}

	value, live := f.solar.Fetch(ctx, lat, lng)
	if live {
		if b, err := cache.Marshal(cachedSolar{Value: value, Live: live}); err == nil {
			_ = f.cache.Set(ctx, key, b, f.cacheTTL)
		}
	}
	return value, live
}

func (f *Fetcher) fetchWeather(ctx context.Context, lat, lng float64) (WeatherBundle, bool) {
	key := siteKey("weather", lat, lng)
	if b, ok := f.cache.Get(ctx, key); ok {
		var entry cachedWeather
		if cache.Unmarshal(b, &entry) == nil {
			return entry.Bundle, entry.Live
		}
	}

	bundle, live := f.weather.Fetch(ctx, lat, lng)
	if live {
		if b, err := cache.Marshal(cachedWeather{Bundle: bundle, Live: live}); err == nil {
			_ = f.cache.Set(ctx, key, b, f.cacheTTL)
		}
	}
	return bundle, live
}

func (f *Fetcher) fetchTerrain(ctx context.Context, lat, lng float64) (Terrain, bool) {
	key := siteKey("terrain", lat, lng)
	if b, ok := f.cache.Get(ctx, key); ok {
		var entry cachedTerrain
		if cache.Unmarshal(b, &entry) == nil {
			return entry.Terrain, entry.Live
		}
	}

	terrain, live := f.elevation.Fetch(ctx, lat, lng)
	if live {
		if b, err := cache.Marshal(cachedTerrain{Terrain: terrain, Live: live}); err == nil {
			_ = f.cache.Set(ctx, key, b, f.cacheTTL)
		}
	}
	return terrain, live
}

func siteKey(kind string, lat, lng float64) string {
	return fmt.Sprintf("%s:%.4f:%.4f", kind, lat, lng)
}
