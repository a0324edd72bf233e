package telemetry

// Collector accumulates events and per-agent samples between window flushes.
// It is written from the single-threaded apply phase only.
type Collector struct {
	windowStart int32

	collisions        int
	predictorFailures int
	numericDiscards   int
	goalsReached      int

	haze    []float64
	entropy []float64
	cost    []float64
	speed   []float64
}

// NewCollector returns an empty collector starting at tick 0.
func NewCollector() *Collector {
	return &Collector{}
}

// AddCollision counts one resolved agent overlap.
func (c *Collector) AddCollision() { c.collisions++ }

// AddPredictorFailure counts one decision whose prediction terms degraded.
func (c *Collector) AddPredictorFailure() { c.predictorFailures++ }

// AddNumericDiscard counts one discarded non-finite update.
func (c *Collector) AddNumericDiscard() { c.numericDiscards++ }

// AddGoalReached counts one goal arrival.
func (c *Collector) AddGoalReached() { c.goalsReached++ }

// Sample records one agent's per-tick observables. Only the latest tick's
// samples are kept; the flush reports the state at window end.
func (c *Collector) Sample(haze, entropy, cost, speed float64) {
	c.haze = append(c.haze, haze)
	c.entropy = append(c.entropy, entropy)
	c.cost = append(c.cost, cost)
	c.speed = append(c.speed, speed)
}

// BeginTick clears the per-tick samples so the window ends with fresh ones.
func (c *Collector) BeginTick() {
	c.haze = c.haze[:0]
	c.entropy = c.entropy[:0]
	c.cost = c.cost[:0]
	c.speed = c.speed[:0]
}

// Flush builds the window stats, resets the event counters, and advances the
// window start to endTick.
func (c *Collector) Flush(endTick int32, simTime float64, coverage float64) WindowStats {
	stats := WindowStats{
		WindowStartTick:   c.windowStart,
		WindowEndTick:     endTick,
		SimTimeSec:        simTime,
		AgentCount:        len(c.haze),
		Collisions:        c.collisions,
		PredictorFailures: c.predictorFailures,
		NumericDiscards:   c.numericDiscards,
		GoalsReached:      c.goalsReached,
		EntropyMean:       Mean(c.entropy),
		CostMean:          Mean(c.cost),
		SpeedMean:         Mean(c.speed),
		CoverageFraction:  coverage,
	}
	stats.HazeMean, stats.HazeP10, stats.HazeP50, stats.HazeP90 = DistStats(c.haze)

	c.windowStart = endTick
	c.collisions = 0
	c.predictorFailures = 0
	c.numericDiscards = 0
	c.goalsReached = 0

	return stats
}
