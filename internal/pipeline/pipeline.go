package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/suncheck/suncheck/internal/calibrate"
	"github.com/suncheck/suncheck/internal/finance"
	"github.com/suncheck/suncheck/internal/models"
	"github.com/suncheck/suncheck/internal/scoring"
	"github.com/suncheck/suncheck/internal/summary"
)

// ValidationError rejects a malformed query at the boundary; it never
// reaches the engines.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return e.Detail }

// FeatureSource assembles the climate and terrain features for a site.
type FeatureSource interface {
	Fetch(ctx context.Context, lat, lng float64, gridDistanceKM *float64) models.Features
}

// HistoryStore persists analyses and replays them for the warm-up.
type HistoryStore interface {
	Append(ctx context.Context, r models.AnalysisRecord) (int64, error)
	Replay(ctx context.Context, since time.Time) ([]models.AnalysisRecord, error)
	Recent(ctx context.Context, limit int) ([]models.AnalysisRecord, error)
}

// NoopHistory is the stateless-mode store: appends are dropped and replay
// yields nothing.
type NoopHistory struct{}

func (NoopHistory) Append(context.Context, models.AnalysisRecord) (int64, error) {
	return 0, nil
}

func (NoopHistory) Replay(context.Context, time.Time) ([]models.AnalysisRecord, error) {
	return nil, nil
}

func (NoopHistory) Recent(context.Context, int) ([]models.AnalysisRecord, error) {
	return nil, nil
}

// Pipeline sequences one analysis request: fetch features, score, project
// finances, gather the summary, feed the calibrator and persist.
type Pipeline struct {
	features   FeatureSource
	scorer     *scoring.Engine
	calibrator *calibrate.Calibrator
	finance    *finance.Engine
	summarizer summary.Summarizer
	history    HistoryStore

	summaryTimeout time.Duration
	persistTimeout time.Duration
}

// New wires the pipeline. summarizer may be nil (template-only mode);
// history may be nil (stateless mode).
func New(
	features FeatureSource,
	cal *calibrate.Calibrator,
	fin *finance.Engine,
	summarizer summary.Summarizer,
	history HistoryStore,
) *Pipeline {
	if history == nil {
		history = NoopHistory{}
	}
	return &Pipeline{
		features:       features,
		scorer:         scoring.NewEngine(cal),
		calibrator:     cal,
		finance:        fin,
		summarizer:     summarizer,
		history:        history,
		summaryTimeout: 5 * time.Second,
		persistTimeout: 10 * time.Second,
	}
}

// Validate rejects malformed queries.
func Validate(req models.AnalyzeRequest) error {
	switch {
	case req.Lat < -90 || req.Lat > 90:
		return &ValidationError{Detail: fmt.Sprintf("lat %.4f out of range [-90,90]", req.Lat)}
	case req.Lng < -180 || req.Lng > 180:
		return &ValidationError{Detail: fmt.Sprintf("lng %.4f out of range [-180,180]", req.Lng)}
	case req.PlantSizeKW <= 0:
		return &ValidationError{Detail: "plant_size_kw must be positive"}
	case req.ElectricityRate <= 0:
		return &ValidationError{Detail: "electricity_rate must be positive"}
	case req.AvailableAreaM2 < 0:
		return &ValidationError{Detail: "available_area_m2 must not be negative"}
	case req.GridDistanceKM != nil && *req.GridDistanceKM < 0:
		return &ValidationError{Detail: "grid_distance_km must not be negative"}
	case req.InstallationCost < 0:
		return &ValidationError{Detail: "installation_cost must not be negative"}
	}
	return nil
}

type summaryResult struct {
	text     string
	provider string
	err      error
}

// Analyze runs the full pipeline for one validated request.
func (p *Pipeline) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalyzeResponse, error) {
	if err := Validate(req); err != nil {
		return models.AnalyzeResponse{}, err
	}

	features := p.features.Fetch(ctx, req.Lat, req.Lng, req.GridDistanceKM)
	if err := ctx.Err(); err != nil {
		return models.AnalyzeResponse{}, err
	}

	q := scoring.Query{
		Lat:             req.Lat,
		Lng:             req.Lng,
		PlantSizeKW:     req.PlantSizeKW,
		AvailableAreaM2: req.AvailableAreaM2,
	}
	verdict := p.scorer.Score(features, q)
	log.Print(scoring.SummaryLine(features, q, verdict))

	fin := p.finance.Project(features.SolarIrradiance, finance.Input{
		PlantSizeKW:      req.PlantSizeKW,
		ElectricityRate:  req.ElectricityRate,
		InstallationCost: req.InstallationCost,
		PanelArea:        req.PanelArea,
		Efficiency:       req.Efficiency,
	})
	tariffs := p.finance.TariffSensitivity(features.SolarIrradiance, req.PlantSizeKW, fin.InstallationCost)

	view := summary.View{
		Lat:      req.Lat,
		Lng:      req.Lng,
		Features: features,
		Verdict:  verdict,
		Finance:  fin,
	}

	// The summarizer runs concurrently with the calibrator feed. Its
	// failure or timeout substitutes the deterministic template.
	summaryCh := make(chan summaryResult, 1)
	go func() {
		if p.summarizer == nil {
			summaryCh <- summaryResult{err: fmt.Errorf("no summarizer configured")}
			return
		}
		sctx, cancel := context.WithTimeout(ctx, p.summaryTimeout)
		defer cancel()
		text, provider, err := p.summarizer.Summarize(sctx, view)
		summaryCh <- summaryResult{text: text, provider: provider, err: err}
	}()

	// The observation carries the calibrated score on purpose: the
	// calibrator tracks the distribution it is itself shaping. Ordered
	// before the response returns.
	p.calibrator.Observe(req.Lat, req.Lng, float64(verdict.Score))

	res := <-summaryCh
	aiSummary, aiProvider := res.text, res.provider
	if res.err != nil {
		aiSummary = summary.Template(view)
		aiProvider = summary.FallbackProvider
	}

	p.persist(ctx, req, features, verdict, fin, aiSummary, aiProvider)

	return models.AnalyzeResponse{
		Lat:               req.Lat,
		Lng:               req.Lng,
		Features:          features,
		Verdict:           verdict,
		Financial:         fin,
		TariffSensitivity: tariffs,
		AISummary:         aiSummary,
		AIProvider:        aiProvider,
	}, nil
}

// persist appends the analysis record. Failures are logged and dropped;
// the response is unaffected. The write is detached from the request
// context so a client disconnect cannot abort it mid-flight.
func (p *Pipeline) persist(
	ctx context.Context,
	req models.AnalyzeRequest,
	features models.Features,
	verdict models.Verdict,
	fin models.Financial,
	aiSummary, aiProvider string,
) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.persistTimeout)
	defer cancel()

	record := models.AnalysisRecord{
		Lat:             req.Lat,
		Lng:             req.Lng,
		SolarIrradiance: features.SolarIrradiance,
		WindSpeed:       features.WindSpeed,
		ElevationM:      features.ElevationM,
		Score:           verdict.Score,
		Grade:           verdict.Grade,
		SolarScore:      verdict.SubScores.Solar,
		WindScore:       verdict.SubScores.Wind,
		ElevationScore:  verdict.SubScores.Elevation,
		AnnualEnergyKWH: fin.AnnualEnergyKWH,
		AnnualSavings:   fin.AnnualSavings,
		PaybackYears:    fin.PaybackYears,
		LifetimeProfit:  fin.LifetimeProfit,
		AISummary:       aiSummary,
		AIProvider:      aiProvider,
	}
	if _, err := p.history.Append(pctx, record); err != nil {
		log.Printf("failed to persist analysis: %v", err)
	}
}

// Recent exposes the persisted history for the listing endpoint.
func (p *Pipeline) Recent(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	return p.history.Recent(ctx, limit)
}

// RegionStats exposes calibrator diagnostics for a coordinate.
func (p *Pipeline) RegionStats(lat, lng float64) calibrate.RegionStats {
	return p.calibrator.Stats(lat, lng)
}
