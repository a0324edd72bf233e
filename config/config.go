// Package config provides configuration loading and validation for the
// simulation. Parameters are loaded once before the first step and are
// treated as immutable for the rest of the run.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Agents     AgentsConfig     `yaml:"agents"`
	Perception PerceptionConfig `yaml:"perception"`
	Haze       HazeConfig       `yaml:"haze"`
	Cost       CostConfig       `yaml:"cost"`
	Descent    DescentConfig    `yaml:"descent"`
	Predictor  PredictorConfig  `yaml:"predictor"`
	HazeField  HazeFieldConfig  `yaml:"haze_field"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Viz        VizConfig        `yaml:"viz"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds toroidal world dimensions in world units.
type WorldConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PhysicsConfig holds integration parameters.
type PhysicsConfig struct {
	DT           float64 `yaml:"dt"`             // timestep duration in seconds
	GridCellSize float64 `yaml:"grid_cell_size"` // spatial hash cell size
}

// AgentsConfig holds agent creation parameters and physical limits.
type AgentsConfig struct {
	Count         int     `yaml:"count"`
	Radius        float64 `yaml:"radius"`         // collision radius
	PersonalSpace float64 `yaml:"personal_space"` // near-field saturation distance
	MaxSpeed      float64 `yaml:"max_speed"`
	MaxAccel      float64 `yaml:"max_accel"`
	GoalRadius    float64 `yaml:"goal_radius"` // goal counts as reached within this distance
}

// PerceptionConfig holds the log-polar encoder parameters.
type PerceptionConfig struct {
	RadialBins  int     `yaml:"radial_bins"`
	AngularBins int     `yaml:"angular_bins"`
	MaxRange    float64 `yaml:"max_range"`
	FOV         float64 `yaml:"fov"`         // field of view in radians; 2*pi = full circle
	SigmaR      float64 `yaml:"sigma_r"`     // radial splat softness in bin units
	SigmaTheta  float64 `yaml:"sigma_theta"` // angular splat softness in bin units
}

// HazeConfig holds the uncertainty modulator parameters.
type HazeConfig struct {
	Max                float64 `yaml:"max"`                 // upper bound of self-haze, must be < 1
	Sensitivity        float64 `yaml:"sensitivity"`         // sigmoid steepness over occupancy
	OccupancyThreshold float64 `yaml:"occupancy_threshold"` // sigmoid midpoint
	PrecisionDecay     float64 `yaml:"precision_decay"`     // radial exponential decay rate
	Gamma              float64 `yaml:"gamma"`               // haze attenuation exponent
	Epsilon            float64 `yaml:"epsilon"`             // precision floor
}

// CostConfig holds the expected-free-energy term weights.
type CostConfig struct {
	EntropyWeight    float64 `yaml:"entropy_weight"`    // beta: predicted entropy
	InfoWeight       float64 `yaml:"info_weight"`       // gamma_info: information gain reward
	PragmaticWeight  float64 `yaml:"pragmatic_weight"`  // lambda: goal / exploration term
	RiskGain         float64 `yaml:"risk_gain"`         // scale on the collision risk term
	RiskRadialBins   int     `yaml:"risk_radial_bins"`  // nearest radial bins considered risky
	ExplorationSpeed float64 `yaml:"exploration_speed"` // target speed when no goal exists
}

// DescentConfig holds the bounded gradient descent parameters.
type DescentConfig struct {
	StepSize   float64 `yaml:"step_size"`
	Iterations int     `yaml:"iterations"`
	GradClip   float64 `yaml:"grad_clip"` // max gradient magnitude
	Blend      float64 `yaml:"blend"`     // previous-velocity share in the final action
}

// Predictor variants.
const (
	PredictorKinematic = "kinematic"
	PredictorSequence  = "sequence"
)

// PredictorConfig selects and parameterizes the one-step predictor.
type PredictorConfig struct {
	Variant     string `yaml:"variant"`
	WeightsPath string `yaml:"weights_path"` // sequence variant only; empty = seeded random
	HiddenSize  int    `yaml:"hidden_size"`  // sequence variant only
}

// HazeFieldConfig holds the optional environmental haze grid parameters.
type HazeFieldConfig struct {
	Enabled  bool    `yaml:"enabled"`
	CellSize float64 `yaml:"cell_size"`
	Deposit  float64 `yaml:"deposit"` // haze added at an agent's cell per step
	Decay    float64 `yaml:"decay"`   // multiplicative decay per step
	Gamma    float64 `yaml:"gamma"`   // attenuation exponent for environmental haze
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow      float64 `yaml:"stats_window"` // seconds of sim time per stats window
	PerfWindow       int     `yaml:"perf_window"`  // ticks averaged by the perf collector
	CoverageCellSize float64 `yaml:"coverage_cell_size"`
}

// VizConfig holds the websocket frame publisher parameters.
type VizConfig struct {
	Addr          string `yaml:"addr"`           // listen address, empty = disabled
	IncludeTensor bool   `yaml:"include_tensor"` // attach per-agent SPM data to frames
}

// DerivedConfig holds values computed after loading.
type DerivedConfig struct {
	HalfFOV    float64 // Perception.FOV / 2
	FullCircle bool    // true when FOV covers the full circle
	TensorSize int     // 3 * RadialBins * AngularBins
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if
// path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults,
// then validates it. Invalid parameters fail here, before any step runs.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into the same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ComputeDerived()

	return cfg, nil
}

// Validate checks parameter ranges. Load calls it; callers that build a
// Config by hand (tests, tuning runs) should call it themselves.
func (c *Config) Validate() error {
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("config: world dimensions must be positive, got %gx%g", c.World.Width, c.World.Height)
	}
	if c.Physics.DT <= 0 {
		return fmt.Errorf("config: physics.dt must be positive, got %g", c.Physics.DT)
	}
	if c.Physics.GridCellSize <= 0 {
		return fmt.Errorf("config: physics.grid_cell_size must be positive, got %g", c.Physics.GridCellSize)
	}
	if c.Agents.Radius <= 0 {
		return fmt.Errorf("config: agents.radius must be positive, got %g", c.Agents.Radius)
	}
	if c.Agents.PersonalSpace <= 0 {
		return fmt.Errorf("config: agents.personal_space must be positive, got %g", c.Agents.PersonalSpace)
	}
	if c.Agents.MaxSpeed <= 0 {
		return fmt.Errorf("config: agents.max_speed must be positive, got %g", c.Agents.MaxSpeed)
	}
	if c.Perception.RadialBins < 2 {
		return fmt.Errorf("config: perception.radial_bins must be at least 2, got %d", c.Perception.RadialBins)
	}
	if c.Perception.AngularBins < 1 {
		return fmt.Errorf("config: perception.angular_bins must be at least 1, got %d", c.Perception.AngularBins)
	}
	if c.Perception.MaxRange <= c.Agents.PersonalSpace {
		return fmt.Errorf("config: perception.max_range (%g) must exceed agents.personal_space (%g)",
			c.Perception.MaxRange, c.Agents.PersonalSpace)
	}
	if c.Perception.FOV <= 0 || c.Perception.FOV > 2*math.Pi+1e-9 {
		return fmt.Errorf("config: perception.fov must be in (0, 2*pi], got %g", c.Perception.FOV)
	}
	if c.Perception.SigmaR <= 0 || c.Perception.SigmaTheta <= 0 {
		return fmt.Errorf("config: perception splat sigmas must be positive, got %g/%g",
			c.Perception.SigmaR, c.Perception.SigmaTheta)
	}
	if c.Haze.Max <= 0 || c.Haze.Max >= 1 {
		return fmt.Errorf("config: haze.max must lie in (0, 1), got %g", c.Haze.Max)
	}
	if c.Haze.Epsilon <= 0 {
		return fmt.Errorf("config: haze.epsilon must be positive, got %g", c.Haze.Epsilon)
	}
	if c.Haze.Gamma < 0 || c.Haze.PrecisionDecay < 0 {
		return fmt.Errorf("config: haze.gamma and haze.precision_decay must be non-negative")
	}
	if c.Cost.RiskRadialBins < 1 {
		return fmt.Errorf("config: cost.risk_radial_bins must be at least 1, got %d", c.Cost.RiskRadialBins)
	}
	if c.Descent.Iterations < 1 {
		return fmt.Errorf("config: descent.iterations must be at least 1, got %d", c.Descent.Iterations)
	}
	if c.Descent.StepSize <= 0 {
		return fmt.Errorf("config: descent.step_size must be positive, got %g", c.Descent.StepSize)
	}
	if c.Descent.GradClip <= 0 {
		return fmt.Errorf("config: descent.grad_clip must be positive, got %g", c.Descent.GradClip)
	}
	if c.Descent.Blend < 0 || c.Descent.Blend >= 1 {
		return fmt.Errorf("config: descent.blend must lie in [0, 1), got %g", c.Descent.Blend)
	}
	switch c.Predictor.Variant {
	case PredictorKinematic:
	case PredictorSequence:
		if c.Predictor.HiddenSize < 1 {
			return fmt.Errorf("config: predictor.hidden_size must be at least 1 for the sequence variant, got %d", c.Predictor.HiddenSize)
		}
	default:
		return fmt.Errorf("config: unknown predictor.variant %q", c.Predictor.Variant)
	}
	if c.HazeField.Enabled {
		if c.HazeField.CellSize <= 0 {
			return fmt.Errorf("config: haze_field.cell_size must be positive, got %g", c.HazeField.CellSize)
		}
		if c.HazeField.Decay <= 0 || c.HazeField.Decay > 1 {
			return fmt.Errorf("config: haze_field.decay must lie in (0, 1], got %g", c.HazeField.Decay)
		}
	}
	return nil
}

// ComputeDerived recalculates values derived from the loaded config. Load
// calls it; callers that mutate a Config copy before a run (the tuner does)
// must call it again.
func (c *Config) ComputeDerived() {
	c.Derived.HalfFOV = c.Perception.FOV / 2
	c.Derived.FullCircle = c.Perception.FOV >= 2*math.Pi-1e-9
	c.Derived.TensorSize = 3 * c.Perception.RadialBins * c.Perception.AngularBins
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
