package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/montanaflynn/stats"
)

// WeatherBundle is the combined output of the single Open-Meteo call.
type WeatherBundle struct {
	WindSpeed     float64 `json:"wind_speed"`
	TemperatureC  float64 `json:"temperature_c"`
	HumidityPct   float64 `json:"humidity_pct"`
	CloudCoverPct float64 `json:"cloud_cover_pct"`
}

// WeatherClient fetches wind, temperature, humidity and cloud cover from
// Open-Meteo in one round-trip, averaging 7 days of hourly values.
type WeatherClient struct {
	hc      *http.Client
	baseURL string
}

func NewWeatherClient(hc *http.Client, baseURL string) *WeatherClient {
	return &WeatherClient{hc: hc, baseURL: baseURL}
}

type openMeteoResponse struct {
	Hourly struct {
		WindSpeed10M       []*float64 `json:"windspeed_10m"`
		Temperature2M      []*float64 `json:"temperature_2m"`
		RelativeHumidity2M []*float64 `json:"relative_humidity_2m"`
		CloudCover         []*float64 `json:"cloudcover"`
	} `json:"hourly"`
}

// Fetch returns the 7-day weather bundle and whether it came from the live
// endpoint. Failures degrade to latitude-band estimates.
func (c *WeatherClient) Fetch(ctx context.Context, lat, lng float64) (WeatherBundle, bool) {
	bundle, err := c.fetch(ctx, lat, lng)
	if err != nil {
		log.Printf("weather fetch failed (%v), using latitude estimates", err)
		return WeatherBundle{
			WindSpeed:     EstimateWindSpeed(lat),
			TemperatureC:  EstimateTemperature(lat),
			HumidityPct:   EstimateHumidity(lat),
			CloudCoverPct: EstimateCloudCover(lat),
		}, false
	}
	return bundle, true
}

func (c *WeatherClient) fetch(ctx context.Context, lat, lng float64) (WeatherBundle, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lng))
	q.Set("hourly", "windspeed_10m,temperature_2m,relative_humidity_2m,cloudcover")
	q.Set("wind_speed_unit", "ms")
	q.Set("forecast_days", "7")
	q.Set("timezone", "UTC")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return WeatherBundle{}, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return WeatherBundle{}, fmt.Errorf("request weather feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return WeatherBundle{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var payload openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return WeatherBundle{}, fmt.Errorf("decode payload: %w", err)
	}

	wind, err := hourlyMean(payload.Hourly.WindSpeed10M)
	if err != nil {
		return WeatherBundle{}, fmt.Errorf("windspeed_10m: %w", err)
	}
	temp, err := hourlyMean(payload.Hourly.Temperature2M)
	if err != nil {
		return WeatherBundle{}, fmt.Errorf("temperature_2m: %w", err)
	}
	humidity, err := hourlyMean(payload.Hourly.RelativeHumidity2M)
	if err != nil {
		return WeatherBundle{}, fmt.Errorf("relative_humidity_2m: %w", err)
	}
	cloud, err := hourlyMean(payload.Hourly.CloudCover)
	if err != nil {
		return WeatherBundle{}, fmt.Errorf("cloudcover: %w", err)
	}

	return WeatherBundle{
		WindSpeed:     wind,
		TemperatureC:  temp,
		HumidityPct:   humidity,
		CloudCoverPct: cloud,
	}, nil
}

// hourlyMean averages a series, skipping JSON nulls.
func hourlyMean(series []*float64) (float64, error) {
	vals := make([]float64, 0, len(series))
	for _, v := range series {
		if v != nil {
			vals = append(vals, *v)
		}
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("empty series")
	}
	return stats.Mean(vals)
}
