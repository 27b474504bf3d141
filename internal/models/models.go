package models

import (
	"math"
	"strconv"
	"time"
)

// AlgorithmVersion identifies the scoring engine revision recorded with
// every verdict and persisted analysis.
const AlgorithmVersion = "v3-production"

// AnalyzeRequest is the JSON body accepted by POST /api/analyze.
type AnalyzeRequest struct {
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	PlantSizeKW     float64 `json:"plant_size_kw"`
	ElectricityRate float64 `json:"electricity_rate"`

	PanelArea        float64  `json:"panel_area,omitempty"`
	Efficiency       float64  `json:"efficiency,omitempty"`
	InstallationCost float64  `json:"installation_cost,omitempty"`
	GridDistanceKM   *float64 `json:"grid_distance_km,omitempty"`
	AvailableAreaM2  float64  `json:"available_area_m2,omitempty"`
}

// Features is the assembled climate and terrain input to the scoring engine.
// Every field is populated: providers degrade to fallback tables on failure.
type Features struct {
	SolarIrradiance float64 `json:"solar_irradiance"`
	WindSpeed       float64 `json:"wind_speed"`
	TemperatureC    float64 `json:"temperature_c"`
	HumidityPct     float64 `json:"humidity_pct"`
	CloudCoverPct   float64 `json:"cloud_cover_pct"`
	ElevationM      float64 `json:"elevation_m"`
	SlopeDegrees    float64 `json:"slope_degrees"`
	GridDistanceKM  float64 `json:"grid_distance_km"`

	// DataSources counts providers that returned live data (0..4). The
	// fourth source is a caller-supplied grid distance.
	DataSources int `json:"data_sources"`
}

// SubScores holds the eight normalized factor scores, each in [0,100].
type SubScores struct {
	Solar            float64 `json:"solar"`
	Temperature      float64 `json:"temperature"`
	Elevation        float64 `json:"elevation"`
	Wind             float64 `json:"wind"`
	Cloud            float64 `json:"cloud"`
	Slope            float64 `json:"slope"`
	Grid             float64 `json:"grid"`
	PlantFeasibility float64 `json:"plant_feasibility"`
}

// Verdict is the scoring engine output.
type Verdict struct {
	Score                 int       `json:"score"`
	Grade                 string    `json:"grade"`
	SuitabilityClass      string    `json:"suitability_class"`
	Confidence            float64   `json:"confidence"`
	Recommendation        string    `json:"recommendation"`
	ConstraintViolations  []string  `json:"constraint_violations"`
	IsSuitable            bool      `json:"is_suitable"`
	CalibrationAdjustment float64   `json:"calibration_adjustment"`
	SubScores             SubScores `json:"sub_scores"`
	AlgorithmVersion      string    `json:"algorithm_version"`
}

// Years is a duration in years that may be infinite (no payback). JSON has
// no representation for Inf, so non-finite values marshal as null.
type Years float64

// MarshalJSON renders finite values as numbers and Inf/NaN as null.
func (y Years) MarshalJSON() ([]byte, error) {
	v := float64(y)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
}

// UnmarshalJSON parses numbers and maps null to +Inf.
func (y *Years) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*y = Years(math.Inf(1))
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*y = Years(v)
	return nil
}

// IsFinite reports whether the value represents an actual payback horizon.
func (y Years) IsFinite() bool {
	v := float64(y)
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Financial is the capacity-first financial projection.
type Financial struct {
	AnnualEnergyKWH            float64 `json:"annual_energy_kwh"`
	AnnualSavings              float64 `json:"annual_savings"`
	InstallationCost           float64 `json:"installation_cost"`
	PaybackYears               Years   `json:"payback_years"`
	LifetimeProfit             float64 `json:"lifetime_profit"`
	SubsidyAmount              float64 `json:"subsidy_amount"`
	NetCostAfterSubsidy        float64 `json:"net_cost_after_subsidy"`
	PaybackYearsAfterSubsidy   Years   `json:"payback_years_after_subsidy"`
	LifetimeProfitAfterSubsidy float64 `json:"lifetime_profit_after_subsidy"`
	SystemSizeKWP              float64 `json:"system_size_kwp"`
	RequiredLandAreaM2         float64 `json:"required_land_area_m2"`
}

// TariffPoint is one row of the tariff sensitivity ladder.
type TariffPoint struct {
	TariffRate    float64 `json:"tariff_rate"`
	AnnualSavings float64 `json:"annual_savings"`
	PaybackYears  Years   `json:"payback_years"`
}

// AnalyzeResponse is the full pipeline output returned to the caller.
type AnalyzeResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	Features Features `json:"features"`

	Verdict
	Financial Financial `json:"financial"`

	TariffSensitivity []TariffPoint `json:"tariff_sensitivity"`

	AISummary  string `json:"ai_summary"`
	AIProvider string `json:"ai_provider"`
}

// AnalysisRecord is the persisted outcome of one successful pipeline run.
// Records are append-only and feed the calibrator warm-up at startup.
type AnalysisRecord struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	SolarIrradiance float64 `json:"solar_irradiance"`
	WindSpeed       float64 `json:"wind_speed"`
	ElevationM      float64 `json:"elevation_m"`

	Score int    `json:"score"`
	Grade string `json:"grade"`

	SolarScore     float64 `json:"solar_score"`
	WindScore      float64 `json:"wind_score"`
	ElevationScore float64 `json:"elevation_score"`

	AnnualEnergyKWH float64 `json:"annual_energy_kwh"`
	AnnualSavings   float64 `json:"annual_savings"`
	PaybackYears    Years   `json:"payback_years"`
	LifetimeProfit  float64 `json:"lifetime_profit"`

	AISummary  string `json:"ai_summary"`
	AIProvider string `json:"ai_provider"`
}
