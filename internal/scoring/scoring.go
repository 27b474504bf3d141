package scoring

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/suncheck/suncheck/internal/models"
)

// Factor weights. They must sum to 1.0; the aggregation depends on it.
const (
	weightSolar       = 0.30
	weightTemperature = 0.10
	weightElevation   = 0.10
	weightWind        = 0.08
	weightCloud       = 0.10
	weightSlope       = 0.10
	weightGrid        = 0.12
	weightPlant       = 0.10
)

// Weights returns the factor weight table keyed by sub-score name.
func Weights() map[string]float64 {
	return map[string]float64{
		"solar":             weightSolar,
		"temperature":       weightTemperature,
		"elevation":         weightElevation,
		"wind":              weightWind,
		"cloud":             weightCloud,
		"slope":             weightSlope,
		"grid":              weightGrid,
		"plant_feasibility": weightPlant,
	}
}

// Hard constraint thresholds. Strict inequalities: a site at exactly the
// threshold passes.
const (
	minSolarIrradiance = 2.0
	maxSlopeDegrees    = 25.0
	maxCloudCoverPct   = 90.0
	maxGridDistanceKM  = 100.0
	minAreaRatio       = 0.4
)

// Land requirement for crystalline silicon, m² per kW.
const m2PerKW = 8.0

// Constraint violations force Unsuitable and cap the score here so the
// response still carries partial information.
const unsuitableScoreCap = 34

// headroomMultiplier lifts the weighted sum so near-ideal sites can reach
// the top of the scale despite Gaussian tails.
const headroomMultiplier = 1.05

// Calibrator supplies the regional adjustment applied to raw scores. The
// engine only reads; observations are fed back by the orchestrator.
type Calibrator interface {
	Adjustment(lat, lng float64) float64
}

// noCalibration satisfies Calibrator with a zero delta.
type noCalibration struct{}

func (noCalibration) Adjustment(float64, float64) float64 { return 0 }

// Engine computes placement verdicts. Pure given its inputs and the
// calibrator's current state.
type Engine struct {
	calibrator Calibrator
}

// NewEngine builds an engine over the given calibrator; nil disables
// regional adjustment.
func NewEngine(c Calibrator) *Engine {
	if c == nil {
		c = noCalibration{}
	}
	return &Engine{calibrator: c}
}

// Query carries the request parameters the scoring engine consumes.
type Query struct {
	Lat             float64
	Lng             float64
	PlantSizeKW     float64
	AvailableAreaM2 float64 // 0 means not supplied
}

// Score produces the verdict for one site.
func (e *Engine) Score(f models.Features, q Query) models.Verdict {
	subs := subScores(f, q)
	violations := checkConstraints(f, q)

	weighted := weightSolar*subs.Solar +
		weightTemperature*subs.Temperature +
		weightElevation*subs.Elevation +
		weightWind*subs.Wind +
		weightCloud*subs.Cloud +
		weightSlope*subs.Slope +
		weightGrid*subs.Grid +
		weightPlant*subs.PlantFeasibility

	raw := clamp(weighted/100*headroomMultiplier*100, 0, 100)

	adjustment := e.calibrator.Adjustment(q.Lat, q.Lng)
	final := int(math.Round(clamp(raw+adjustment, 0, 100)))

	suitable := len(violations) == 0
	if !suitable && final > unsuitableScoreCap {
		final = unsuitableScoreCap
	}

	grade := gradeFor(final)
	class := classFor(grade)
	if !suitable {
		class = "Unsuitable"
	}

	return models.Verdict{
		Score:                 final,
		Grade:                 grade,
		SuitabilityClass:      class,
		Confidence:            confidence(subs, f),
		Recommendation:        recommendationFor(grade),
		ConstraintViolations:  violations,
		IsSuitable:            suitable && final >= 50,
		CalibrationAdjustment: adjustment,
		SubScores:             subs,
		AlgorithmVersion:      models.AlgorithmVersion,
	}
}

// Normalization primitives.

// gaussian peaks at 1.0 when x equals mu and falls off symmetrically.
func gaussian(x, mu, sigma float64) float64 {
	d := (x - mu) / sigma
	return math.Exp(-0.5 * d * d)
}

// sigmoid is the logistic curve with midpoint m and steepness k.
func sigmoid(x, m, k float64) float64 {
	return 1.0 / (1.0 + math.Exp(-k*(x-m)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// stepSlope maps terrain slope to a fixed feasibility level.
func stepSlope(slopeDegrees float64) float64 {
	switch {
	case slopeDegrees < 5.0:
		return 1.00
	case slopeDegrees < 15.0:
		return 0.65
	case slopeDegrees < 25.0:
		return 0.30
	default:
		return 0.05
	}
}

// Sub-scores.

func subScores(f models.Features, q Query) models.SubScores {
	return models.SubScores{
		Solar:            100 * gaussian(f.SolarIrradiance, 5.5, 1.5),
		Temperature:      100 * gaussian(f.TemperatureC, 22.0, 8.0),
		Elevation:        100 * gaussian(f.ElevationM, 600.0, 800.0),
		Wind:             100 * gaussian(f.WindSpeed, 3.5, 2.0),
		Cloud:            100 * (1 - sigmoid(f.CloudCoverPct, 50.0, 0.06)),
		Slope:            100 * stepSlope(f.SlopeDegrees),
		Grid:             100 * (1 - sigmoid(f.GridDistanceKM, 25.0, 0.10)),
		PlantFeasibility: 100 * plantFeasibility(f.SolarIrradiance, q.PlantSizeKW, q.AvailableAreaM2),
	}
}

// plantFeasibility combines the land fit of the requested capacity with an
// irradiance viability factor. No supplied area means no area constraint.
func plantFeasibility(irradiance, plantKW, areaM2 float64) float64 {
	required := plantKW * m2PerKW
	ratio := 1.0
	if areaM2 > 0 && required > 0 {
		ratio = clamp(areaM2/required, 0, 1)
	}
	irrFactor := clamp(irradiance/5.5, 0, 1)
	return sigmoid(ratio*irrFactor, 0.5, 6.0)
}

// Hard constraints.

func checkConstraints(f models.Features, q Query) []string {
	violations := []string{}

	if f.SolarIrradiance < minSolarIrradiance {
		violations = append(violations, "Solar irradiance insufficient")
	}
	if f.SlopeDegrees > maxSlopeDegrees {
		violations = append(violations, "Terrain unsuitable")
	}
	if f.CloudCoverPct > maxCloudCoverPct {
		violations = append(violations, "Permanent overcast")
	}
	if f.GridDistanceKM > maxGridDistanceKM {
		violations = append(violations, "Grid connection unviable")
	}
	if q.AvailableAreaM2 > 0 && q.AvailableAreaM2 < minAreaRatio*q.PlantSizeKW*m2PerKW {
		violations = append(violations, "Insufficient land area")
	}

	return violations
}

// Confidence.

// Variance of sub-scores if they were evenly spread over 0..100.
const maxSubScoreVariance = 2500.0

// confidence combines factor agreement, source quality and input
// plausibility into a 0..100 self-estimate.
func confidence(subs models.SubScores, f models.Features) float64 {
	values := []float64{
		subs.Solar, subs.Temperature, subs.Elevation, subs.Wind,
		subs.Cloud, subs.Slope, subs.Grid, subs.PlantFeasibility,
	}
	variance, err := stats.PopulationVariance(values)
	if err != nil {
		variance = maxSubScoreVariance
	}
	agreement := clamp(1.0-variance/maxSubScoreVariance, 0, 1)

	sourceQuality := clamp(float64(f.DataSources)/4.0, 0, 1)

	penalty := 0.0
	if f.SolarIrradiance < 0 || f.SolarIrradiance > 10 {
		penalty += 0.25
	}
	if f.SlopeDegrees < 0 || f.SlopeDegrees > 90 {
		penalty += 0.25
	}
	if f.CloudCoverPct < 0 || f.CloudCoverPct > 100 {
		penalty += 0.25
	}
	if f.HumidityPct < 0 || f.HumidityPct > 100 {
		penalty += 0.25
	}
	plausibility := clamp(1.0-penalty, 0, 1)

	c := clamp(0.50*agreement+0.30*sourceQuality+0.20*plausibility, 0, 1)
	return math.Round(c*1000) / 10
}

// Grade and recommendation.

func gradeFor(score int) string {
	switch {
	case score >= 88:
		return "A+"
	case score >= 78:
		return "A"
	case score >= 68:
		return "B+"
	case score >= 58:
		return "B"
	case score >= 47:
		return "C"
	case score >= 35:
		return "D"
	default:
		return "F"
	}
}

func classFor(grade string) string {
	switch grade {
	case "A+", "A":
		return "Excellent"
	case "B+", "B":
		return "Good"
	case "C":
		return "Moderate"
	case "D":
		return "Poor"
	default:
		return "Unsuitable"
	}
}

func recommendationFor(grade string) string {
	switch grade {
	case "A+":
		return "Exceptional: top-tier solar site with maximum expected ROI and minimal risk."
	case "A":
		return "Highly recommended: excellent solar potential with fast payback and high lifetime returns."
	case "B+":
		return "Recommended: good conditions for solar installation with solid returns."
	case "B":
		return "Promising: above-average potential, a standard installation will be profitable."
	case "C":
		return "Moderate: acceptable conditions, consider premium panels for better yield."
	case "D":
		return "Marginal: limited potential, evaluate shading, orientation and hybrid options."
	default:
		return "Not recommended: poor solar resource and high investment risk."
	}
}

// SummaryLine renders the one-line log entry for a scored site.
func SummaryLine(f models.Features, q Query, v models.Verdict) string {
	return fmt.Sprintf(
		"score lat=%.2f lng=%.2f solar=%.2f slope=%.1f grid=%.0fkm -> score=%d grade=%s conf=%.1f adj=%+.1f violations=%d",
		q.Lat, q.Lng, f.SolarIrradiance, f.SlopeDegrees, f.GridDistanceKM,
		v.Score, v.Grade, v.Confidence, v.CalibrationAdjustment, len(v.ConstraintViolations),
	)
}
