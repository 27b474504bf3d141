package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/suncheck/suncheck/internal/calibrate"
	"github.com/suncheck/suncheck/internal/finance"
	"github.com/suncheck/suncheck/internal/models"
	"github.com/suncheck/suncheck/internal/summary"
)

// stubFeatures returns a fixed feature set without touching the network.
type stubFeatures struct {
	features models.Features
}

func (s stubFeatures) Fetch(ctx context.Context, lat, lng float64, gridDistanceKM *float64) models.Features {
	return s.features
}

// memHistory collects appended records in memory.
type memHistory struct {
	mu         sync.Mutex
	records    []models.AnalysisRecord
	failAppend error
}

func (m *memHistory) Append(ctx context.Context, r models.AnalysisRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		return 0, m.failAppend
	}
	r.ID = int64(len(m.records) + 1)
	m.records = append(m.records, r)
	return r.ID, nil
}

func (m *memHistory) Replay(ctx context.Context, since time.Time) ([]models.AnalysisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AnalysisRecord(nil), m.records...), nil
}

func (m *memHistory) Recent(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.AnalysisRecord(nil), m.records...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memHistory) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// stubSummarizer returns canned output, optionally only after the context
// expires.
type stubSummarizer struct {
	text       string
	provider   string
	err        error
	waitForCtx bool
}

func (s stubSummarizer) Summarize(ctx context.Context, view summary.View) (string, string, error) {
	if s.waitForCtx {
		<-ctx.Done()
		return "", "", ctx.Err()
	}
	return s.text, s.provider, s.err
}

func desertFeatures() models.Features {
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

func desertRequest() models.AnalyzeRequest {
	return models.AnalyzeRequest{
		Lat:             26.92,
		Lng:             70.90,
		PlantSizeKW:     20,
		ElectricityRate: 8.0,
		AvailableAreaM2: 200,
	}
}

func newTestPipeline(features models.Features, summarizer summary.Summarizer, history HistoryStore) *Pipeline {
	return New(stubFeatures{features: features}, calibrate.New(), finance.NewEngine(0), summarizer, history)
}

func TestAnalyzeDesertSite(t *testing.T) {
	history := &memHistory{}
	summarizer := stubSummarizer{text: "A very strong site.", provider: "gemini-2.0-flash"}
	p := newTestPipeline(desertFeatures(), summarizer, history)

	resp, err := p.Analyze(context.Background(), desertRequest())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	if resp.Score < 85 {
		t.Fatalf("score = %d, want >= 85", resp.Score)
	}
	if !resp.IsSuitable || resp.SuitabilityClass != "Excellent" {
		t.Fatalf("verdict = %s suitable=%v, want Excellent/true", resp.SuitabilityClass, resp.IsSuitable)
	}
	if math.Abs(resp.Financial.AnnualEnergyKWH-37_960) > 1e-6 {
		t.Fatalf("annual energy = %f, want 37960", resp.Financial.AnnualEnergyKWH)
	}
	if pb := float64(resp.Financial.PaybackYears); pb < 3.2 || pb > 3.4 {
		t.Fatalf("payback = %f, want about 3.3", pb)
	}
	if resp.AIProvider != "gemini-2.0-flash" || resp.AISummary == "" {
		t.Fatalf("summary = %q from %q", resp.AISummary, resp.AIProvider)
	}
	if len(resp.TariffSensitivity) == 0 {
		t.Fatal("missing tariff sensitivity ladder")
	}

	if history.count() != 1 {
		t.Fatalf("persisted %d records, want 1", history.count())
	}
	rec := history.records[0]
	if rec.Score != resp.Score || rec.Grade != resp.Grade {
		t.Fatalf("record verdict %d/%s differs from response %d/%s",
			rec.Score, rec.Grade, resp.Score, resp.Grade)
	}

	// Every successful run feeds the calibrator.
	if stats := p.RegionStats(26.92, 70.90); stats.SampleCount != 1 {
		t.Fatalf("calibrator samples = %d, want 1", stats.SampleCount)
	}
}

func TestAnalyzeResidentialSubsidy(t *testing.T) {
	p := newTestPipeline(desertFeatures(), nil, nil)

	req := desertRequest()
	req.PlantSizeKW = 3
	req.AvailableAreaM2 = 0

	resp, err := p.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if resp.Financial.SubsidyAmount != 78_000 {
		t.Fatalf("subsidy = %f, want 78000", resp.Financial.SubsidyAmount)
	}
	if resp.Financial.NetCostAfterSubsidy != 72_000 {
		t.Fatalf("net cost = %f, want 72000", resp.Financial.NetCostAfterSubsidy)
	}
}

func TestAnalyzeRejectsArcticSite(t *testing.T) {
	history := &memHistory{}
	arctic := models.Features{
		SolarIrradiance: 1.4,
		WindSpeed:       7,
		TemperatureC:    4,
		HumidityPct:     75,
		CloudCoverPct:   80,
		ElevationM:      50,
		SlopeDegrees:    3,
		GridDistanceKM:  5,
		DataSources:     3,
	}
	p := newTestPipeline(arctic, nil, history)

	req := models.AnalyzeRequest{Lat: 69.0, Lng: 19.0, PlantSizeKW: 10, ElectricityRate: 6.0}
	resp, err := p.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if resp.IsSuitable || resp.SuitabilityClass != "Unsuitable" {
		t.Fatalf("verdict = %s suitable=%v, want Unsuitable/false", resp.SuitabilityClass, resp.IsSuitable)
	}
	if resp.Score > 34 {
		t.Fatalf("score = %d, want <= 34", resp.Score)
	}
	// Rejections are still recorded.
	if history.count() != 1 {
		t.Fatalf("persisted %d records, want 1", history.count())
	}
}

func TestSummarizerErrorFallsBackToTemplate(t *testing.T) {
	p := newTestPipeline(desertFeatures(), stubSummarizer{err: errors.New("quota exceeded")}, nil)

	resp, err := p.Analyze(context.Background(), desertRequest())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if resp.AIProvider != summary.FallbackProvider {
		t.Fatalf("provider = %s, want %s", resp.AIProvider, summary.FallbackProvider)
	}
	if resp.AISummary == "" {
		t.Fatal("template summary must not be empty")
	}
}

func TestSummarizerTimeoutFallsBackToTemplate(t *testing.T) {
	p := newTestPipeline(desertFeatures(), stubSummarizer{waitForCtx: true}, nil)
	p.summaryTimeout = 20 * time.Millisecond

	start := time.Now()
	resp, err := p.Analyze(context.Background(), desertRequest())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if resp.AIProvider != summary.FallbackProvider {
		t.Fatalf("provider = %s, want %s", resp.AIProvider, summary.FallbackProvider)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("analysis blocked %v on a hung summarizer", elapsed)
	}
}

func TestNilSummarizerUsesTemplate(t *testing.T) {
	p := newTestPipeline(desertFeatures(), nil, nil)

	resp, err := p.Analyze(context.Background(), desertRequest())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if resp.AIProvider != summary.FallbackProvider {
		t.Fatalf("provider = %s, want %s", resp.AIProvider, summary.FallbackProvider)
	}
}

func TestPersistFailureDoesNotFailAnalysis(t *testing.T) {
	history := &memHistory{failAppend: errors.New("connection reset")}
	p := newTestPipeline(desertFeatures(), nil, history)

	if _, err := p.Analyze(context.Background(), desertRequest()); err != nil {
		t.Fatalf("analyze must tolerate persistence failure, got %v", err)
	}
}

func TestAnalyzeHonoursCanceledContext(t *testing.T) {
	p := newTestPipeline(desertFeatures(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Analyze(ctx, desertRequest()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestValidateRejectsMalformedRequests(t *testing.T) {
	negGrid := -1.0
	cases := []struct {
		name string
		req  models.AnalyzeRequest
	}{
		{"lat high", models.AnalyzeRequest{Lat: 91, Lng: 0, PlantSizeKW: 5, ElectricityRate: 6}},
		{"lat low", models.AnalyzeRequest{Lat: -91, Lng: 0, PlantSizeKW: 5, ElectricityRate: 6}},
		{"lng high", models.AnalyzeRequest{Lat: 0, Lng: 181, PlantSizeKW: 5, ElectricityRate: 6}},
		{"zero plant", models.AnalyzeRequest{Lat: 0, Lng: 0, PlantSizeKW: 0, ElectricityRate: 6}},
		{"negative rate", models.AnalyzeRequest{Lat: 0, Lng: 0, PlantSizeKW: 5, ElectricityRate: -1}},
		{"negative area", models.AnalyzeRequest{Lat: 0, Lng: 0, PlantSizeKW: 5, ElectricityRate: 6, AvailableAreaM2: -10}},
		{"negative grid", models.AnalyzeRequest{Lat: 0, Lng: 0, PlantSizeKW: 5, ElectricityRate: 6, GridDistanceKM: &negGrid}},
		{"negative cost", models.AnalyzeRequest{Lat: 0, Lng: 0, PlantSizeKW: 5, ElectricityRate: 6, InstallationCost: -1}},
	}

	p := newTestPipeline(desertFeatures(), nil, nil)
	for _, tc := range cases {
		_, err := p.Analyze(context.Background(), tc.req)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: err = %v, want ValidationError", tc.name, err)
		}
	}
}

func TestBoundaryCoordinatesAreValid(t *testing.T) {
	for _, req := range []models.AnalyzeRequest{
		{Lat: 90, Lng: 180, PlantSizeKW: 5, ElectricityRate: 6},
		{Lat: -90, Lng: -180, PlantSizeKW: 5, ElectricityRate: 6},
	} {
		if err := Validate(req); err != nil {
			t.Fatalf("boundary coordinate rejected: %v", err)
		}
	}
}

func TestRecentDelegatesToHistory(t *testing.T) {
	history := &memHistory{}
	p := newTestPipeline(desertFeatures(), nil, history)

	for i := 0; i < 3; i++ {
		if _, err := p.Analyze(context.Background(), desertRequest()); err != nil {
			t.Fatalf("analyze failed: %v", err)
		}
	}

	records, err := p.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}
