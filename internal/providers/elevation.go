package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
)

const (
	// Sample spacing for the slope stencil, metres from the center point.
	slopeOffsetM = 200.0
	// Metres per degree of latitude.
	metersPerDegree = 111320.0

	fallbackSlopeDegrees = 2.0
)

// Terrain is the combined elevation and slope result for a site.
type Terrain struct {
	ElevationM   float64 `json:"elevation_m"`
	SlopeDegrees float64 `json:"slope_degrees"`
}

// ElevationClient resolves elevation for a five-point cross centered on the
// site and derives terrain slope from the cardinal gradient. Priority:
// Google Elevation (when a key is configured), then Open-Elevation, then
// the regional table with a flat default slope.
type ElevationClient struct {
	hc           *http.Client
	googleURL    string
	googleAPIKey string
	openURL      string
}

func NewElevationClient(hc *http.Client, googleURL, googleAPIKey, openURL string) *ElevationClient {
	return &ElevationClient{hc: hc, googleURL: googleURL, googleAPIKey: googleAPIKey, openURL: openURL}
}

type latLng struct {
	Lat float64
	Lng float64
}

// stencil returns the five sample points in [center, north, south, east,
// west] order. The batch providers preserve input order, which the slope
// computation depends on.
func stencil(lat, lng float64) [5]latLng {
	dLat := slopeOffsetM / metersPerDegree
	dLng := slopeOffsetM / (metersPerDegree * math.Cos(lat*math.Pi/180))
	return [5]latLng{
		{lat, lng},
		{lat + dLat, lng},
		{lat - dLat, lng},
		{lat, lng + dLng},
		{lat, lng - dLng},
	}
}

// slopeFromStencil converts the five elevations (center, n, s, e, w) into a
// terrain slope in degrees. Samples are 400 m apart across the cross.
func slopeFromStencil(elev [5]float64) float64 {
	n, s, e, w := elev[1], elev[2], elev[3], elev[4]
	dzdx := (e - w) / (2 * slopeOffsetM)
	dzdy := (n - s) / (2 * slopeOffsetM)
	return math.Atan(math.Sqrt(dzdx*dzdx+dzdy*dzdy)) * 180 / math.Pi
}

// Fetch returns terrain data and whether it came from a live provider.
func (c *ElevationClient) Fetch(ctx context.Context, lat, lng float64) (Terrain, bool) {
	points := stencil(lat, lng)

	elevations, err := c.batch(ctx, points)
	if err != nil {
		log.Printf("elevation providers failed (%v), using regional estimate", err)
		return Terrain{
			ElevationM:   EstimateElevation(lat, lng),
			SlopeDegrees: fallbackSlopeDegrees,
		}, false
	}

	return Terrain{
		ElevationM:   elevations[0],
		SlopeDegrees: slopeFromStencil(elevations),
	}, true
}

func (c *ElevationClient) batch(ctx context.Context, points [5]latLng) ([5]float64, error) {
	if c.googleAPIKey != "" {
		elev, err := c.googleBatch(ctx, points)
		if err == nil {
			return elev, nil
		}
		log.Printf("google elevation failed (%v), trying open-elevation", err)
	}
	return c.openBatch(ctx, points)
}

func (c *ElevationClient) googleBatch(ctx context.Context, points [5]latLng) ([5]float64, error) {
	var out [5]float64

	locations := ""
	for i, p := range points {
		if i > 0 {
			locations += "|"
		}
		locations += fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
	}
	q := url.Values{}
	q.Set("locations", locations)
	q.Set("key", c.googleAPIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.googleURL+"?"+q.Encode(), nil)
	if err != nil {
		return out, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return out, fmt.Errorf("request elevation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var payload struct {
		Status  string `json:"status"`
		Results []struct {
			Elevation float64 `json:"elevation"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	if payload.Status != "OK" || len(payload.Results) != len(points) {
		return out, fmt.Errorf("status=%s results=%d", payload.Status, len(payload.Results))
	}
	for i, r := range payload.Results {
		out[i] = r.Elevation
	}
	return out, nil
}

func (c *ElevationClient) openBatch(ctx context.Context, points [5]latLng) ([5]float64, error) {
	var out [5]float64

	type loc struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	body := struct {
		Locations []loc `json:"locations"`
	}{}
	for _, p := range points {
		body.Locations = append(body.Locations, loc{Latitude: p.Lat, Longitude: p.Lng})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return out, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.openURL, bytes.NewReader(payload))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return out, fmt.Errorf("request elevation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var decoded struct {
		Results []struct {
			Elevation float64 `json:"elevation"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	if len(decoded.Results) != len(points) {
		return out, fmt.Errorf("expected %d results, got %d", len(points), len(decoded.Results))
	}
	for i, r := range decoded.Results {
		out[i] = r.Elevation
	}
	return out, nil
}
