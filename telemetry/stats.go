// Package telemetry aggregates per-tick simulation metrics into windowed
// statistics, CSV output, JSON snapshots, and step timing.
package telemetry

import (
	"log/slog"
	"sort"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	AgentCount int `csv:"agents"`

	// Events during window
	Collisions        int `csv:"collisions"`
	PredictorFailures int `csv:"predictor_failures"`
	NumericDiscards   int `csv:"numeric_discards"`
	GoalsReached      int `csv:"goals_reached"`

	// Perceptual uncertainty (sampled at window end)
	HazeMean float64 `csv:"haze_mean"`
	HazeP10  float64 `csv:"haze_p10"`
	HazeP50  float64 `csv:"haze_p50"`
	HazeP90  float64 `csv:"haze_p90"`

	EntropyMean float64 `csv:"entropy_mean"`
	CostMean    float64 `csv:"cost_mean"`
	SpeedMean   float64 `csv:"speed_mean"`

	// Exploration
	CoverageFraction float64 `csv:"coverage"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// DistStats calculates mean and percentiles of a sample.
func DistStats(values []float64) (mean, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, p10, p50, p90
}

// Mean returns the arithmetic mean, 0 for an empty sample.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("agents", s.AgentCount),
		slog.Int("collisions", s.Collisions),
		slog.Int("predictor_failures", s.PredictorFailures),
		slog.Int("numeric_discards", s.NumericDiscards),
		slog.Int("goals_reached", s.GoalsReached),
		slog.Float64("haze_mean", s.HazeMean),
		slog.Float64("haze_p10", s.HazeP10),
		slog.Float64("haze_p50", s.HazeP50),
		slog.Float64("haze_p90", s.HazeP90),
		slog.Float64("entropy_mean", s.EntropyMean),
		slog.Float64("cost_mean", s.CostMean),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("coverage", s.CoverageFraction),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"agents", s.AgentCount,
		"collisions", s.Collisions,
		"predictor_failures", s.PredictorFailures,
		"numeric_discards", s.NumericDiscards,
		"goals_reached", s.GoalsReached,
		"haze_mean", s.HazeMean,
		"haze_p10", s.HazeP10,
		"haze_p50", s.HazeP50,
		"haze_p90", s.HazeP90,
		"entropy_mean", s.EntropyMean,
		"cost_mean", s.CostMean,
		"speed_mean", s.SpeedMean,
		"coverage", s.CoverageFraction,
	)
}
