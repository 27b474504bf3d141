package calibrate

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/suncheck/suncheck/internal/models"
)

const (
	// EMA learning rate. Slow on purpose: the regional signal should be
	// stable across bursts of queries in one area.
	alpha = 0.12

	// Cells with fewer samples than this return a zero adjustment.
	minSamples = 5

	// Bound on the applied adjustment, points.
	maxAdjustment = 10.0

	// Deltas inside this dead band are noise, not regional bias.
	deadBand = 1.0

	// Neutral score baseline seeding the global reference before any
	// observations arrive.
	neutralBaseline = 65.0

	// Grid cell size in degrees for the region key.
	cellSizeDegrees = 5.0

	// Warm-up replays history no older than this.
	WarmUpWindow = 180 * 24 * time.Hour
)

// cell tracks the per-region running state.
type cell struct {
	ema float64
	n   int
}

// Calibrator learns per-region score bias from observed analyses and pulls
// systematically hot or cold cells back toward the global reference. It is
// the only process-wide mutable state in the pipeline; a reader-writer lock
// serializes scoring reads against observation writes.
type Calibrator struct {
	mu        sync.RWMutex
	cells     map[string]*cell
	globalEMA float64
}

// New constructs an empty calibrator. Warm it with Replay before serving.
func New() *Calibrator {
	return &Calibrator{
		cells:     make(map[string]*cell),
		globalEMA: neutralBaseline,
	}
}

// CellKey returns the 5°×5° region key for a coordinate.
func CellKey(lat, lng float64) string {
	return fmt.Sprintf("%.0f_%.0f",
		math.Floor(lat/cellSizeDegrees)*cellSizeDegrees,
		math.Floor(lng/cellSizeDegrees)*cellSizeDegrees,
	)
}

// Observe feeds one scored analysis into the region and global EMAs. Called
// exactly once per successful pipeline run, with the calibrated score, so
// the calibrator tracks the distribution it is itself shaping.
func (c *Calibrator) Observe(lat, lng float64, score float64) {
	key := CellKey(lat, lng)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cells[key]
	if !ok {
		c.cells[key] = &cell{ema: score, n: 1}
	} else {
		entry.ema = alpha*score + (1-alpha)*entry.ema
		entry.n++
	}

	c.globalEMA = alpha*score + (1-alpha)*c.globalEMA
}

// Adjustment returns the score correction to apply for a site. Zero while
// the cell has too few samples or sits inside the dead band; otherwise the
// cell-versus-global delta, clamped to ±10 and negated so cells scoring
// above the global reference are pulled down.
func (c *Calibrator) Adjustment(lat, lng float64) float64 {
	key := CellKey(lat, lng)

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cells[key]
	if !ok || entry.n < minSamples {
		return 0
	}

	delta := entry.ema - c.globalEMA
	if math.Abs(delta) < deadBand {
		return 0
	}
	return -math.Max(-maxAdjustment, math.Min(maxAdjustment, delta))
}

// RegionStats describes one cell for the diagnostics endpoint.
type RegionStats struct {
	Region      string  `json:"region"`
	SampleCount int     `json:"sample_count"`
	CellEMA     float64 `json:"cell_ema"`
	Delta       float64 `json:"delta"`
}

// Stats reports the current state of the cell containing (lat, lng).
func (c *Calibrator) Stats(lat, lng float64) RegionStats {
	key := CellKey(lat, lng)

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := RegionStats{Region: key}
	if entry, ok := c.cells[key]; ok {
		out.SampleCount = entry.n
		out.CellEMA = math.Round(entry.ema*10) / 10
		out.Delta = math.Round((entry.ema-c.globalEMA)*100) / 100
	}
	return out
}

// History is the slice of the persistence layer the warm-up consumes.
type History interface {
	Replay(ctx context.Context, since time.Time) ([]models.AnalysisRecord, error)
}

// WarmUp replays persisted analyses from the warm-up window, oldest first,
// through the observation rule. Calibrator state is never persisted; it is
// rebuilt from history on every start.
func (c *Calibrator) WarmUp(ctx context.Context, h History) error {
	since := time.Now().UTC().Add(-WarmUpWindow)
	records, err := h.Replay(ctx, since)
	if err != nil {
		return fmt.Errorf("calibrator warm-up: %w", err)
	}
	for _, r := range records {
		c.Observe(r.Lat, r.Lng, float64(r.Score))
	}

	c.mu.RLock()
	regions := len(c.cells)
	c.mu.RUnlock()
	log.Printf("calibrator warmed with %d analyses over %d regions", len(records), regions)
	return nil
}
