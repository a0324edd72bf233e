// Package sim owns the simulation world: ECS storage, the per-tick step
// pipeline, spatial indexing, collision resolution, and the environmental
// haze field.
package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/haze/components"
	"github.com/pthm-cable/haze/config"
	"github.com/pthm-cable/haze/control"
	"github.com/pthm-cable/haze/geom"
	"github.com/pthm-cable/haze/perception"
	"github.com/pthm-cable/haze/telemetry"
)

// wanderRetarget is the number of ticks between random re-aims of a
// goalless agent's wander heading.
const wanderRetarget = 40

// headingEps is the minimum speed that updates the heading.
const headingEps = 1e-3

// Options configures world construction.
type Options struct {
	Config *config.Config // nil uses the global config
	Seed   int64

	// Predictor overrides the configured variant, mainly for tests.
	Predictor control.Predictor
}

// World holds the complete simulation state.
type World struct {
	cfg  *config.Config
	ecs  *ecs.World
	rng  *rand.Rand
	seed int64

	agentMapper *ecs.Map7[
		components.Position,
		components.Velocity,
		components.Rotation,
		components.Body,
		components.Agent,
		components.Goal,
		components.Perception,
	]
	agentFilter *ecs.Filter7[
		components.Position,
		components.Velocity,
		components.Rotation,
		components.Body,
		components.Agent,
		components.Goal,
		components.Perception,
	]
	obstacleMapper *ecs.Map2[components.Position, components.Obstacle]
	obstacleFilter *ecs.Filter2[components.Position, components.Obstacle]

	// Individual component mappers for lookups
	posMap   *ecs.Map1[components.Position]
	velMap   *ecs.Map1[components.Velocity]
	rotMap   *ecs.Map1[components.Rotation]
	bodyMap  *ecs.Map1[components.Body]
	agentMap *ecs.Map1[components.Agent]
	goalMap  *ecs.Map1[components.Goal]
	percMap  *ecs.Map1[components.Perception]

	controller *control.Controller

	grid      *SpatialGrid
	hazeField *HazeField

	// Static obstacle snapshots for the encoder, rebuilt on spawn.
	obstacles []perception.AgentState

	parallel  *parallelState
	collector *telemetry.Collector
	coverage  *telemetry.Coverage
	perf      *telemetry.PerfCollector

	tick   int32
	nextID uint32
}

// NewWorld creates a world with no agents. Call Populate or SpawnAgent to
// fill it.
func NewWorld(opts Options) (*World, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}

	pred := opts.Predictor
	if pred == nil {
		var err error
		pred, err = control.NewPredictor(&cfg.Predictor, &cfg.Perception)
		if err != nil {
			return nil, fmt.Errorf("sim: building predictor: %w", err)
		}
	}

	world := ecs.NewWorld()

	w := &World{
		cfg:  cfg,
		ecs:  world,
		rng:  rand.New(rand.NewSource(opts.Seed)),
		seed: opts.Seed,
		agentMapper: ecs.NewMap7[
			components.Position,
			components.Velocity,
			components.Rotation,
			components.Body,
			components.Agent,
			components.Goal,
			components.Perception,
		](world),
		agentFilter: ecs.NewFilter7[
			components.Position,
			components.Velocity,
			components.Rotation,
			components.Body,
			components.Agent,
			components.Goal,
			components.Perception,
		](world),
		obstacleMapper: ecs.NewMap2[components.Position, components.Obstacle](world),
		obstacleFilter: ecs.NewFilter2[components.Position, components.Obstacle](world),
		posMap:         ecs.NewMap1[components.Position](world),
		velMap:         ecs.NewMap1[components.Velocity](world),
		rotMap:         ecs.NewMap1[components.Rotation](world),
		bodyMap:        ecs.NewMap1[components.Body](world),
		agentMap:       ecs.NewMap1[components.Agent](world),
		goalMap:        ecs.NewMap1[components.Goal](world),
		percMap:        ecs.NewMap1[components.Perception](world),
		controller:     control.NewController(cfg, pred),
		grid:           NewSpatialGrid(cfg.World.Width, cfg.World.Height, cfg.Physics.GridCellSize),
		parallel:       newParallelState(opts.Seed),
		collector:      telemetry.NewCollector(),
		coverage:       telemetry.NewCoverage(cfg.World.Width, cfg.World.Height, cfg.Telemetry.CoverageCellSize),
		perf:           telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
	}

	if cfg.HazeField.Enabled {
		w.hazeField = NewHazeField(cfg.World.Width, cfg.World.Height, cfg.HazeField.CellSize, cfg.HazeField.Decay)
	}

	return w, nil
}

// SpawnAgent creates one agent at the given position and velocity.
func (w *World) SpawnAgent(pos, vel geom.Vec) ecs.Entity {
	cfg := w.cfg
	pos = geom.Wrap(pos, cfg.World.Width, cfg.World.Height)

	id := w.nextID
	w.nextID++

	heading := 0.0
	if vel.Norm() > headingEps {
		heading = vel.Angle()
	}

	p := components.Position{X: pos.X, Y: pos.Y}
	v := components.Velocity{X: vel.X, Y: vel.Y}
	r := components.Rotation{Heading: heading}
	b := components.Body{
		Radius:        cfg.Agents.Radius,
		PersonalSpace: cfg.Agents.PersonalSpace,
		MaxSpeed:      cfg.Agents.MaxSpeed,
	}
	a := components.Agent{
		ID:          id,
		WanderAngle: w.rng.Float64()*2*math.Pi - math.Pi,
		WanderTimer: wanderRetarget,
	}
	g := components.Goal{}
	perc := components.Perception{
		Tensor:    perception.NewTensor(cfg.Perception.RadialBins, cfg.Perception.AngularBins),
		Precision: perception.NewField(cfg.Perception.RadialBins, cfg.Perception.AngularBins),
	}

	return w.agentMapper.NewEntity(&p, &v, &r, &b, &a, &g, &perc)
}

// SpawnObstacle creates a static circular obstacle.
func (w *World) SpawnObstacle(pos geom.Vec, radius float64) ecs.Entity {
	pos = geom.Wrap(pos, w.cfg.World.Width, w.cfg.World.Height)
	p := components.Position{X: pos.X, Y: pos.Y}
	o := components.Obstacle{Radius: radius}
	e := w.obstacleMapper.NewEntity(&p, &o)
	w.rebuildObstacles()
	return e
}

// Populate spawns the configured agent count at uniformly random positions
// with random sub-maximal velocities.
func (w *World) Populate() {
	cfg := w.cfg
	for i := 0; i < cfg.Agents.Count; i++ {
		pos := geom.Vec{
			X: w.rng.Float64() * cfg.World.Width,
			Y: w.rng.Float64() * cfg.World.Height,
		}
		angle := w.rng.Float64()*2*math.Pi - math.Pi
		speed := w.rng.Float64() * 0.5 * cfg.Agents.MaxSpeed
		w.SpawnAgent(pos, geom.Unit(angle).Scale(speed))
	}
}

// SetGoal assigns a goal position to an agent.
func (w *World) SetGoal(e ecs.Entity, target geom.Vec) {
	g := w.goalMap.Get(e)
	if g == nil {
		return
	}
	target = geom.Wrap(target, w.cfg.World.Width, w.cfg.World.Height)
	g.X, g.Y = target.X, target.Y
	g.Active = true
}

// ClearGoal removes an agent's goal, switching it back to exploration.
func (w *World) ClearGoal(e ecs.Entity) {
	if g := w.goalMap.Get(e); g != nil {
		g.Active = false
	}
}

// rebuildObstacles refreshes the static obstacle snapshots used by the
// perception encoder. Obstacle IDs live above the agent ID range.
func (w *World) rebuildObstacles() {
	w.obstacles = w.obstacles[:0]
	id := uint32(1 << 30)
	query := w.obstacleFilter.Query()
	for query.Next() {
		pos, ob := query.Get()
		w.obstacles = append(w.obstacles, perception.AgentState{
			ID:     id,
			Pos:    geom.Vec{X: pos.X, Y: pos.Y},
			Radius: ob.Radius,
			Static: true,
		})
		id++
	}
}

// Tick returns the current tick count.
func (w *World) Tick() int32 { return w.tick }

// SimTime returns elapsed simulation time in seconds.
func (w *World) SimTime() float64 { return float64(w.tick) * w.cfg.Physics.DT }

// Config returns the world's configuration.
func (w *World) Config() *config.Config { return w.cfg }

// Perf returns the step timing collector.
func (w *World) Perf() *telemetry.PerfCollector { return w.perf }

// HazeFieldMean returns the mean environmental haze, 0 when disabled.
func (w *World) HazeFieldMean() float64 {
	if w.hazeField == nil {
		return 0
	}
	return w.hazeField.Mean()
}

// Close stops the worker pool. The world is unusable afterwards.
func (w *World) Close() {
	w.parallel.stopWorkers()
}

// FlushStats aggregates the collector into window stats.
func (w *World) FlushStats() telemetry.WindowStats {
	return w.collector.Flush(w.tick, w.SimTime(), w.coverage.Fraction())
}

// AgentView is a read-only projection of one agent for observers.
type AgentView struct {
	Entity  ecs.Entity
	ID      uint32
	Pos     geom.Vec
	Vel     geom.Vec
	Heading float64
	Haze    float64
	Entropy float64
	Cost    float64
	Tensor  perception.Tensor
}

// Agents returns a fresh slice of agent views in query order.
func (w *World) Agents() []AgentView {
	var views []AgentView
	query := w.agentFilter.Query()
	for query.Next() {
		pos, vel, rot, _, ag, _, perc := query.Get()
		views = append(views, AgentView{
			Entity:  query.Entity(),
			ID:      ag.ID,
			Pos:     geom.Vec{X: pos.X, Y: pos.Y},
			Vel:     geom.Vec{X: vel.X, Y: vel.Y},
			Heading: rot.Heading,
			Haze:    perc.Haze,
			Entropy: perc.LastEntropy,
			Cost:    perc.LastCost,
			Tensor:  perc.Tensor,
		})
	}
	return views
}

// Snapshot captures the replayable world state.
func (w *World) Snapshot() *telemetry.Snapshot {
	s := &telemetry.Snapshot{
		Version: telemetry.SnapshotVersion,
		Seed:    w.seed,
		Tick:    w.tick,
		WorldW:  w.cfg.World.Width,
		WorldH:  w.cfg.World.Height,
	}

	query := w.agentFilter.Query()
	for query.Next() {
		pos, vel, rot, _, ag, goal, perc := query.Get()
		s.Agents = append(s.Agents, telemetry.AgentSnapshot{
			ID:      ag.ID,
			X:       pos.X,
			Y:       pos.Y,
			VelX:    vel.X,
			VelY:    vel.Y,
			Heading: rot.Heading,
			Haze:    perc.Haze,
			GoalX:   goal.X,
			GoalY:   goal.Y,
			HasGoal: goal.Active,
		})
	}

	oq := w.obstacleFilter.Query()
	for oq.Next() {
		pos, ob := oq.Get()
		s.Obstacles = append(s.Obstacles, telemetry.ObstacleSnapshot{
			X: pos.X, Y: pos.Y, Radius: ob.Radius,
		})
	}

	return s
}

// Restore loads a snapshot into an empty world. Restoring into a populated
// world is an error. The snapshot's seed replaces the construction seed so
// the restored run draws the same random streams as the recorded one.
func (w *World) Restore(s *telemetry.Snapshot) error {
	if w.nextID != 0 || len(w.obstacles) != 0 {
		return fmt.Errorf("sim: restore requires an empty world")
	}
	if s.WorldW != w.cfg.World.Width || s.WorldH != w.cfg.World.Height {
		return fmt.Errorf("sim: snapshot world %gx%g does not match config %gx%g",
			s.WorldW, s.WorldH, w.cfg.World.Width, w.cfg.World.Height)
	}

	w.seed = s.Seed
	w.rng = rand.New(rand.NewSource(s.Seed))
	w.parallel.reseed(s.Seed)

	for _, ob := range s.Obstacles {
		w.SpawnObstacle(geom.Vec{X: ob.X, Y: ob.Y}, ob.Radius)
	}

	maxID := uint32(0)
	for _, a := range s.Agents {
		e := w.SpawnAgent(geom.Vec{X: a.X, Y: a.Y}, geom.Vec{X: a.VelX, Y: a.VelY})
		if rot := w.rotMap.Get(e); rot != nil {
			rot.Heading = a.Heading
		}
		if ag := w.agentMap.Get(e); ag != nil {
			ag.ID = a.ID
		}
		if perc := w.percMap.Get(e); perc != nil {
			perc.Haze = a.Haze
		}
		if a.HasGoal {
			w.SetGoal(e, geom.Vec{X: a.GoalX, Y: a.GoalY})
		}
		if a.ID > maxID {
			maxID = a.ID
		}
	}

	if len(s.Agents) > 0 {
		w.nextID = maxID + 1
	}
	w.tick = s.Tick
	return nil
}
