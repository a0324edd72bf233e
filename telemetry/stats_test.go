package telemetry

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{0.5, 3},
		{1, 5},
		{0.25, 2},
		{-0.1, 1},
		{1.5, 5},
	}
	for _, tt := range tests {
		if got := Percentile(sorted, tt.p); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Percentile(%g) = %g, want %g", tt.p, got, tt.want)
		}
	}

	if got := Percentile(nil, 0.5); got != 0 {
		t.Errorf("empty percentile = %g, want 0", got)
	}
}

func TestDistStats(t *testing.T) {
	mean, p10, p50, p90 := DistStats([]float64{2, 4, 6, 8, 10})
	if math.Abs(mean-6) > 1e-9 {
		t.Errorf("mean = %g, want 6", mean)
	}
	if p50 != 6 {
		t.Errorf("p50 = %g, want 6", p50)
	}
	if p10 >= p50 || p50 >= p90 {
		t.Errorf("percentiles not ordered: %g %g %g", p10, p50, p90)
	}

	mean, p10, p50, p90 = DistStats(nil)
	if mean != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty sample should yield zeros")
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector()

	c.AddCollision()
	c.AddCollision()
	c.AddPredictorFailure()
	c.AddGoalReached()

	c.BeginTick()
	c.Sample(0.8, 50, 1.5, 10)
	c.Sample(0.6, 40, 1.0, 20)

	stats := c.Flush(100, 10.0, 0.25)

	if stats.WindowEndTick != 100 || stats.SimTimeSec != 10.0 {
		t.Errorf("window bookkeeping wrong: %+v", stats)
	}
	if stats.AgentCount != 2 {
		t.Errorf("agent count = %d, want 2", stats.AgentCount)
	}
	if stats.Collisions != 2 || stats.PredictorFailures != 1 || stats.GoalsReached != 1 {
		t.Errorf("event counters wrong: %+v", stats)
	}
	if math.Abs(stats.HazeMean-0.7) > 1e-9 {
		t.Errorf("haze mean = %g, want 0.7", stats.HazeMean)
	}
	if math.Abs(stats.EntropyMean-45) > 1e-9 {
		t.Errorf("entropy mean = %g, want 45", stats.EntropyMean)
	}
	if math.Abs(stats.SpeedMean-15) > 1e-9 {
		t.Errorf("speed mean = %g, want 15", stats.SpeedMean)
	}
	if stats.CoverageFraction != 0.25 {
		t.Errorf("coverage = %g, want 0.25", stats.CoverageFraction)
	}

	// Counters reset, window start advances.
	next := c.Flush(200, 20.0, 0.3)
	if next.Collisions != 0 || next.WindowStartTick != 100 {
		t.Errorf("flush did not reset: %+v", next)
	}
}

func TestCoverage(t *testing.T) {
	c := NewCoverage(100, 100, 10)

	if c.Fraction() != 0 {
		t.Errorf("fresh coverage = %g, want 0", c.Fraction())
	}

	c.Visit(5, 5)
	c.Visit(5, 5) // repeat visits count once
	first := c.Fraction()
	if first <= 0 {
		t.Error("visit did not register")
	}

	c.Visit(95, 95)
	if c.Fraction() <= first {
		t.Error("second cell did not grow the fraction")
	}

	c.Reset()
	if c.Fraction() != 0 {
		t.Error("reset did not clear coverage")
	}
}
