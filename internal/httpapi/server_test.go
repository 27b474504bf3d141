package httpapi

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/suncheck/suncheck/internal/calibrate"
	"github.com/suncheck/suncheck/internal/config"
	"github.com/suncheck/suncheck/internal/finance"
	"github.com/suncheck/suncheck/internal/models"
	"github.com/suncheck/suncheck/internal/pipeline"
)

type stubFeatures struct{}

func (stubFeatures) Fetch(ctx context.Context, lat, lng float64, gridDistanceKM *float64) models.Features {
	return models.Features{
		SolarIrradiance: 6.5,
		WindSpeed:       3.5,
		TemperatureC:    34,
		HumidityPct:     35,
		CloudCoverPct:   20,
		ElevationM:      250,
		SlopeDegrees:    2,
		GridDistanceKM:  8,
		DataSources:     4,
	}
}

func testConfig() config.Config {
	return config.Config{
		Port:            8080,
		RequestDeadline: 5 * time.Second,
		HardDeadline:    10 * time.Second,
		HistoryLimit:    20,
	}
}

func newTestServer(cfg config.Config) *Server {
	pipe := pipeline.New(stubFeatures{}, calibrate.New(), finance.NewEngine(0), nil, nil)
	return New(cfg, pipe, HealthInfo{ElevationProvider: "open-elevation"})
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	srv.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "healthy" {
		t.Fatalf("status = %s, want healthy", body.Status)
	}
	if body.Services["scoring_engine"] != models.AlgorithmVersion {
		t.Fatalf("scoring engine = %s", body.Services["scoring_engine"])
	}
	if body.Services["summarizer"] != "fallback-template" {
		t.Fatalf("summarizer = %s", body.Services["summarizer"])
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv := newTestServer(testConfig())

	payload := `{"lat":26.92,"lng":70.90,"plant_size_kw":20,"electricity_rate":8.0}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	srv.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.AnalyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Score < 85 || !resp.IsSuitable {
		t.Fatalf("score = %d suitable=%v, want a strong verdict", resp.Score, resp.IsSuitable)
	}
	if math.Abs(resp.Financial.AnnualEnergyKWH-37_960) > 1e-6 {
		t.Fatalf("annual energy = %f, want 37960", resp.Financial.AnnualEnergyKWH)
	}
	if resp.AIProvider == "" || resp.AISummary == "" {
		t.Fatal("missing summary in response")
	}
}

func TestAnalyzeRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	srv.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "invalid_input" || body.Detail == "" {
		t.Fatalf("error body = %+v", body)
	}
}

func TestAnalyzeRejectsOutOfRangeCoordinates(t *testing.T) {
	srv := newTestServer(testConfig())

	payload := `{"lat":95,"lng":70.90,"plant_size_kw":20,"electricity_rate":8.0}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	srv.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_input") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv := newTestServer(testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	srv.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Count    int                     `json:"count"`
		Analyses []models.AnalysisRecord `json:"analyses"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 0 {
		t.Fatalf("count = %d, want 0 in stateless mode", body.Count)
	}
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	srv := newTestServer(testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=zero", nil)
	srv.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRegionsEndpoint(t *testing.T) {
	srv := newTestServer(testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/regions?lat=26.92&lng=70.90", nil)
	srv.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var stats calibrate.RegionStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if stats.Region != "25_70" {
		t.Fatalf("region = %s, want 25_70", stats.Region)
	}
}

func TestRegionsRejectsMissingCoordinates(t *testing.T) {
	srv := newTestServer(testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/regions", nil)
	srv.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BearerToken = "secret"
	srv := newTestServer(cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status with wrong token = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Authorization", "Bearer secret")
	srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status with token = %d, want 200", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	srv.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS origin header")
	}
}
