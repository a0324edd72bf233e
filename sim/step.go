package sim

import (
	"math"

	"github.com/pthm-cable/haze/control"
	"github.com/pthm-cable/haze/geom"
	"github.com/pthm-cable/haze/perception"
	"github.com/pthm-cable/haze/telemetry"
)

// Step advances the simulation by one tick.
//
// The pipeline is snapshot, decide, apply: decisions read only immutable
// snapshots of last tick's state, so agents within one tick never observe
// each other's same-tick updates, and the parallel phase needs no locks.
// Writes happen in the single-threaded apply phase, in snapshot order.
func (w *World) Step() {
	w.perf.StartTick()
	w.collector.BeginTick()

	w.perf.StartPhase(telemetry.PhaseSnapshot)
	w.buildSnapshots()

	w.perf.StartPhase(telemetry.PhaseSpatialGrid)
	w.grid.Clear()
	for i := range w.parallel.snapshots {
		snap := &w.parallel.snapshots[i]
		w.grid.Insert(i, snap.Pos.X, snap.Pos.Y)
	}

	w.perf.StartPhase(telemetry.PhaseDecide)
	n := len(w.parallel.snapshots)
	if n > 0 {
		if cap(w.parallel.intents) < n {
			w.parallel.intents = make([]intent, n)
		}
		w.parallel.intents = w.parallel.intents[:n]

		if n < parallelThreshold {
			w.computeChunk(0, n, &w.parallel.scratches[0])
		} else {
			w.computeParallel(n)
		}
	}

	w.perf.StartPhase(telemetry.PhaseIntegrate)
	w.applyIntents()

	w.perf.StartPhase(telemetry.PhaseResolve)
	w.resolveCollisions()

	if w.hazeField != nil {
		w.perf.StartPhase(telemetry.PhaseHazeField)
		w.hazeField.Step()
	}

	w.perf.StartPhase(telemetry.PhaseTelemetry)
	w.tick++
	w.perf.EndTick()
}

// buildSnapshots captures read-only agent state for the decision phase.
func (w *World) buildSnapshots() {
	w.parallel.snapshots = w.parallel.snapshots[:0]

	query := w.agentFilter.Query()
	for query.Next() {
		pos, vel, rot, body, ag, goal, perc := query.Get()

		w.parallel.snapshots = append(w.parallel.snapshots, agentSnapshot{
			Entity:      query.Entity(),
			ID:          ag.ID,
			Pos:         geom.Vec{X: pos.X, Y: pos.Y},
			Vel:         geom.Vec{X: vel.X, Y: vel.Y},
			Heading:     rot.Heading,
			Body:        *body,
			Goal:        *goal,
			WanderAngle: ag.WanderAngle,
			Prev:        perc.Tensor,
		})
	}
}

// computeChunk runs perception and action selection for a range of agents.
// It touches only snapshots, the read-only grid, and its own scratch.
func (w *World) computeChunk(i0, i1 int, scratch *workerScratch) {
	cfg := w.cfg
	width, height := cfg.World.Width, cfg.World.Height

	for i := i0; i < i1; i++ {
		snap := &w.parallel.snapshots[i]
		it := &w.parallel.intents[i]

		self := perception.AgentState{
			ID:            snap.ID,
			Pos:           snap.Pos,
			Vel:           snap.Vel,
			Heading:       snap.Heading,
			Radius:        snap.Body.Radius,
			PersonalSpace: snap.Body.PersonalSpace,
			MaxSpeed:      snap.Body.MaxSpeed,
		}

		// Gather neighbor snapshots within perceptual range.
		scratch.hits = w.grid.QueryRadiusInto(scratch.hits[:0], snap.Pos.X, snap.Pos.Y, cfg.Perception.MaxRange, i)
		scratch.neighbors = scratch.neighbors[:0]
		for _, hit := range scratch.hits {
			o := &w.parallel.snapshots[hit.Idx]
			scratch.neighbors = append(scratch.neighbors, perception.AgentState{
				ID:            o.ID,
				Pos:           o.Pos,
				Vel:           o.Vel,
				Heading:       o.Heading,
				Radius:        o.Body.Radius,
				PersonalSpace: o.Body.PersonalSpace,
				MaxSpeed:      o.Body.MaxSpeed,
			})
		}
		// Obstacles are few, a linear scan beats indexing them.
		for _, ob := range w.obstacles {
			d := geom.Delta(snap.Pos, ob.Pos, width, height)
			if d.Norm() <= cfg.Perception.MaxRange+ob.Radius {
				scratch.neighbors = append(scratch.neighbors, ob)
			}
		}

		tensor := perception.Encode(self, scratch.neighbors, width, height, &cfg.Perception)
		haze := perception.SelfHaze(tensor, &cfg.Haze)

		envHaze := 0.0
		if w.hazeField != nil {
			envHaze = w.hazeField.Sample(snap.Pos.X, snap.Pos.Y)
		}
		precision := perception.PrecisionFieldEnv(tensor, haze, envHaze, cfg.HazeField.Gamma, &cfg.Haze)

		preferred := w.preferredVelocity(snap)

		action, trace := w.controller.DecideAction(control.Input{
			Self:      self,
			Neighbors: scratch.neighbors,
			Tensor:    tensor,
			Prev:      snap.Prev,
			Precision: precision,
			Preferred: preferred,
			EnvHaze:   envHaze,
			WorldW:    width,
			WorldH:    height,
		}, scratch.rng)

		it.Action = action
		it.Tensor = tensor
		it.Precision = precision
		it.Haze = haze
		it.EnvHaze = envHaze
		it.Visible = perception.VisibleNeighbors(self, scratch.neighbors, width, height, &cfg.Perception)
		it.Trace = trace
	}
}

// preferredVelocity derives the pragmatic target: full speed toward an
// active goal, exploration speed along the wander heading otherwise.
func (w *World) preferredVelocity(snap *agentSnapshot) *geom.Vec {
	cfg := w.cfg
	if snap.Goal.Active {
		to := geom.Delta(snap.Pos, geom.Vec{X: snap.Goal.X, Y: snap.Goal.Y}, cfg.World.Width, cfg.World.Height)
		n := to.Norm()
		if n > 1e-9 {
			v := to.Scale(snap.Body.MaxSpeed / n)
			return &v
		}
		return &geom.Vec{}
	}
	v := geom.Unit(snap.WanderAngle).Scale(cfg.Cost.ExplorationSpeed)
	return &v
}

// applyIntents writes computed results back to ECS components. Runs
// single-threaded, in snapshot order, so results are reproducible for a
// given decision output.
func (w *World) applyIntents() {
	cfg := w.cfg
	dt := cfg.Physics.DT
	width, height := cfg.World.Width, cfg.World.Height

	for i := range w.parallel.snapshots {
		snap := &w.parallel.snapshots[i]
		it := &w.parallel.intents[i]

		pos := w.posMap.Get(snap.Entity)
		vel := w.velMap.Get(snap.Entity)
		rot := w.rotMap.Get(snap.Entity)
		perc := w.percMap.Get(snap.Entity)
		if pos == nil || vel == nil || rot == nil || perc == nil {
			continue
		}

		// A non-finite action never reaches the world; the last valid
		// velocity carries over and the event is counted.
		v := it.Action
		if !v.IsFinite() {
			v = snap.Vel
			w.collector.AddNumericDiscard()
		}

		vel.X, vel.Y = v.X, v.Y
		next := geom.Wrap(snap.Pos.Add(v.Scale(dt)), width, height)
		pos.X, pos.Y = next.X, next.Y

		if v.Norm() > headingEps {
			rot.Heading = v.Angle()
		}

		goal := w.goalMap.Get(snap.Entity)
		if goal != nil && goal.Active {
			if geom.Distance(next, geom.Vec{X: goal.X, Y: goal.Y}, width, height) <= cfg.Agents.GoalRadius {
				goal.Active = false
				w.collector.AddGoalReached()
			}
		}

		if ag := w.agentMap.Get(snap.Entity); ag != nil && (goal == nil || !goal.Active) {
			ag.WanderTimer--
			if ag.WanderTimer <= 0 {
				ag.WanderAngle = w.rng.Float64()*2*math.Pi - math.Pi
				ag.WanderTimer = wanderRetarget
			}
		}

		perc.Prev = perc.Tensor
		perc.Tensor = it.Tensor
		perc.Precision = it.Precision
		perc.Haze = it.Haze
		perc.Visible = it.Visible
		perc.LastGradX = it.Trace.Gradient.X
		perc.LastGradY = it.Trace.Gradient.Y
		perc.LastCost = it.Trace.Cost
		perc.LastEntropy = it.Trace.Entropy

		if it.Trace.PredictorFailed {
			w.collector.AddPredictorFailure()
		}

		if w.hazeField != nil {
			w.hazeField.Deposit(next.X, next.Y, cfg.HazeField.Deposit)
		}
		w.coverage.Visit(next.X, next.Y)
		w.collector.Sample(it.Haze, it.Trace.Entropy, it.Trace.Cost, v.Norm())
	}
}
