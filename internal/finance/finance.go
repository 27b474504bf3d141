package finance

import (
	"math"

	"github.com/suncheck/suncheck/internal/models"
)

const (
	// SystemLifetimeYears is the modelled panel lifetime.
	SystemLifetimeYears = 25

	// DegradationRate is the annual fractional output loss.
	DegradationRate = 0.005

	daysPerYear = 365

	// M2PerKW is the land requirement for crystalline silicon.
	M2PerKW = 8.0

	// PerformanceRatio lumps inverter, wiring, soiling and temperature
	// derate into one multiplicative factor.
	PerformanceRatio = 0.80

	// DefaultCostPerKW is the benchmark installed cost per kW, used when
	// the caller does not supply an installation cost.
	DefaultCostPerKW = 50_000.0

	// Residential subsidy cap: systems above this size get nothing.
	subsidyMaxKWP = 10.0
)

// subsidyTier is one row of the piecewise-constant subsidy schedule,
// scanned in ascending upper-bound order.
type subsidyTier struct {
	upperKWP float64
	amount   float64
}

var subsidySchedule = []subsidyTier{
	{1.0, 30_000},
	{2.0, 60_000},
	{3.0, 78_000},
	{subsidyMaxKWP, 78_000}, // capped above 3 kWp
}

// Subsidy returns the tiered subsidy for a system size. Systems above the
// residential cap receive nothing.
func Subsidy(systemKWP float64) float64 {
	if systemKWP > subsidyMaxKWP {
		return 0
	}
	for _, tier := range subsidySchedule {
		if systemKWP <= tier.upperKWP {
			return tier.amount
		}
	}
	return 0
}

// Engine computes the financial projection. Pure given its inputs.
type Engine struct {
	costPerKW float64
}

// NewEngine builds an engine with the given benchmark cost per kW; zero or
// negative selects the default.
func NewEngine(costPerKW float64) *Engine {
	if costPerKW <= 0 {
		costPerKW = DefaultCostPerKW
	}
	return &Engine{costPerKW: costPerKW}
}

// Input carries the request parameters the financial engine consumes.
type Input struct {
	PlantSizeKW      float64
	ElectricityRate  float64
	InstallationCost float64 // 0 means derive from capacity
	PanelArea        float64 // legacy area-first sizing
	Efficiency       float64
}

// Project computes the capacity-first financial projection for a site.
func (e *Engine) Project(irradiance float64, in Input) models.Financial {
	var (
		installationCost float64
		systemKWP        float64
		requiredAreaM2   float64
	)

	if in.InstallationCost <= 0 {
		// Capacity-first sizing from the benchmark rate.
		installationCost = in.PlantSizeKW * e.costPerKW
		systemKWP = in.PlantSizeKW
		requiredAreaM2 = in.PlantSizeKW * M2PerKW
	} else {
		// Caller supplied a cost; honour it, and size from panel specs
		// when given (legacy area-first mode).
		installationCost = in.InstallationCost
		if in.PanelArea > 0 && in.Efficiency > 0 {
			systemKWP = in.PanelArea * in.Efficiency
			requiredAreaM2 = in.PanelArea
		} else {
			systemKWP = in.PlantSizeKW
			requiredAreaM2 = in.PlantSizeKW * M2PerKW
		}
	}

	annualKWH := in.PlantSizeKW * irradiance * daysPerYear * PerformanceRatio
	annualSavings := annualKWH * in.ElectricityRate

	lifetimeKWH := 0.0
	for year := 0; year < SystemLifetimeYears; year++ {
		lifetimeKWH += annualKWH * math.Pow(1-DegradationRate, float64(year))
	}
	lifetimeSavings := lifetimeKWH * in.ElectricityRate

	subsidy := Subsidy(systemKWP)
	netCost := math.Max(installationCost-subsidy, 0)

	return models.Financial{
		AnnualEnergyKWH:            annualKWH,
		AnnualSavings:              annualSavings,
		InstallationCost:           installationCost,
		PaybackYears:               payback(installationCost, annualSavings),
		LifetimeProfit:             lifetimeSavings - installationCost,
		SubsidyAmount:              subsidy,
		NetCostAfterSubsidy:        netCost,
		PaybackYearsAfterSubsidy:   payback(netCost, annualSavings),
		LifetimeProfitAfterSubsidy: lifetimeSavings - netCost,
		SystemSizeKWP:              systemKWP,
		RequiredLandAreaM2:         requiredAreaM2,
	}
}

// payback returns cost/savings, or +Inf when there are no savings to pay
// the cost back.
func payback(cost, annualSavings float64) models.Years {
	if annualSavings <= 0 {
		return models.Years(math.Inf(1))
	}
	return models.Years(cost / annualSavings)
}

// defaultTariffLadder is the rate ladder for the sensitivity table.
var defaultTariffLadder = []float64{4.0, 5.0, 6.0, 7.0, 8.0, 9.0, 10.0, 12.0, 15.0}

// TariffSensitivity computes annual savings and payback across a ladder of
// electricity rates for the sensitivity chart.
func (e *Engine) TariffSensitivity(irradiance, plantSizeKW, installationCost float64) []models.TariffPoint {
	annualKWH := plantSizeKW * irradiance * daysPerYear * PerformanceRatio

	points := make([]models.TariffPoint, 0, len(defaultTariffLadder))
	for _, rate := range defaultTariffLadder {
		savings := annualKWH * rate
		points = append(points, models.TariffPoint{
			TariffRate:    rate,
			AnnualSavings: savings,
			PaybackYears:  payback(installationCost, savings),
		})
	}
	return points
}
