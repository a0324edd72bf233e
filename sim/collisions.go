package sim

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/haze/geom"
)

// collisionBody is the mutable working copy of one agent during resolution.
type collisionBody struct {
	entity ecs.Entity
	pos    geom.Vec
	vel    geom.Vec
	radius float64
	push   geom.Vec
}

// resolveCollisions separates overlapping agents symmetrically and pushes
// agents out of static obstacles. Pushes are accumulated against the
// pre-resolution positions and applied in one batch, so the outcome does
// not depend on pair order.
func (w *World) resolveCollisions() {
	width, height := w.cfg.World.Width, w.cfg.World.Height

	bodies := w.collectBodies()

	// Agent pairs: each one moves half the overlap apart.
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			d := geom.Delta(bodies[i].pos, bodies[j].pos, width, height)
			dist := d.Norm()
			minDist := bodies[i].radius + bodies[j].radius
			if dist >= minDist {
				continue
			}

			w.collector.AddCollision()

			// Coincident centers have no direction; separate along x.
			n := geom.Vec{X: 1}
			if dist > 1e-9 {
				n = d.Scale(1 / dist)
			}
			half := (minDist - dist) / 2
			bodies[i].push = bodies[i].push.Sub(n.Scale(half))
			bodies[j].push = bodies[j].push.Add(n.Scale(half))
		}
	}

	for i := range bodies {
		b := &bodies[i]
		b.pos = b.pos.Add(b.push)

		// Obstacles are immovable: full push-out, and the velocity
		// component into the obstacle is removed.
		for _, ob := range w.obstacles {
			d := geom.Delta(ob.Pos, b.pos, width, height)
			dist := d.Norm()
			minDist := ob.Radius + b.radius
			if dist >= minDist {
				continue
			}

			w.collector.AddCollision()

			n := geom.Vec{X: 1}
			if dist > 1e-9 {
				n = d.Scale(1 / dist)
			}
			b.pos = b.pos.Add(n.Scale(minDist - dist))
			if inward := b.vel.Dot(n); inward < 0 {
				b.vel = b.vel.Sub(n.Scale(inward))
			}
		}

		b.pos = geom.Wrap(b.pos, width, height)
	}

	w.writeBodies(bodies)
}

// collectBodies snapshots live agent state for resolution.
func (w *World) collectBodies() []collisionBody {
	var bodies []collisionBody
	query := w.agentFilter.Query()
	for query.Next() {
		pos, vel, _, body, _, _, _ := query.Get()
		bodies = append(bodies, collisionBody{
			entity: query.Entity(),
			pos:    geom.Vec{X: pos.X, Y: pos.Y},
			vel:    geom.Vec{X: vel.X, Y: vel.Y},
			radius: body.Radius,
		})
	}
	return bodies
}

// writeBodies stores resolved positions and velocities back into the ECS.
func (w *World) writeBodies(bodies []collisionBody) {
	for i := range bodies {
		b := &bodies[i]
		if pos := w.posMap.Get(b.entity); pos != nil {
			pos.X, pos.Y = b.pos.X, b.pos.Y
		}
		if vel := w.velMap.Get(b.entity); vel != nil {
			vel.X, vel.Y = b.vel.X, b.vel.Y
		}
	}
}
