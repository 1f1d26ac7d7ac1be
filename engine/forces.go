package engine

import (
	"math"

	"github.com/pthm-cable/flock/components"
)

// accumulateForces computes the net force on agents [start, end) and writes
// the mass-scaled acceleration into the arena scratch. The grid must be
// consistent with arena positions when this runs.
func (e *Engine) accumulateForces(start, end int, scratch *workerScratch) {
	p := &e.params
	a := e.arena

	for i := start; i < end; i++ {
		if !a.Alive[i] {
			a.Acc[i] = components.Vec3{}
			continue
		}

		prof := &e.profiles[a.Type[i]]
		var f components.Vec3

		scratch.Neighbors = e.grid.QueryRadiusInto(
			scratch.Neighbors[:0], a.Pos[i], p.Morse.Rc, int32(i), a.Pos, a.Alive)

		var sumVel components.Vec3
		visible := 0
		for _, nb := range scratch.Neighbors {
			r := float32(math.Sqrt(float64(nb.DistSq)))
			if r < 1e-6 {
				continue
			}
			unit := nb.Delta.Scale(1 / r)

			coeff := (p.Morse.Ca/p.Morse.La)*exp32(-r/p.Morse.La) -
				(p.Morse.Cr/p.Morse.Lr)*exp32(-r/p.Morse.Lr)
			f = f.Add(unit.Scale(coeff))

			if r < p.MinDist {
				f = f.Add(unit.Scale(-p.RepulsionK * (p.MinDist - r)))
			}

			if e.fov.InView(a.Type[i], a.Vel[i], nb.Delta) {
				sumVel = sumVel.Add(a.Vel[nb.Idx])
				visible++
			}
		}

		if beta := p.Beta * prof.BetaScale; visible > 0 && beta != 0 {
			mean := sumVel.Scale(1 / float32(visible))
			f = f.Add(mean.Sub(a.Vel[i]).Scale(beta))
		}

		if v0 := e.preferredSpeed(i); v0 > 0 {
			f = f.Add(a.Vel[i].Scale(p.Alpha * (1 - a.Vel[i].NormSq()/(v0*v0))))
		}

		if e.obstacles.Len() > 0 {
			f = f.Add(e.obstacles.Repulsion(a.Pos[i]))
		}
		if p.Boundary == BoundaryReflective {
			f = f.Add(e.wallForce(a.Pos[i]))
		}

		if a.HasGoal[i] && a.GoalStrength[i] > 0 {
			dir := e.grid.Delta(a.Pos[i], a.Goal[i]).Normalized()
			f = f.Add(dir.Scale(a.GoalStrength[i]))
		}

		if tr := a.TargetResource[i]; tr >= 0 && e.resources.Active[tr] {
			dir := e.grid.Delta(a.Pos[i], e.resources.Pos[tr]).Normalized()
			f = f.Add(dir.Scale(p.Foraging.PullStrength))
		}

		if a.Type[i].IsPredator() {
			if q := a.TargetPrey[i]; q >= 0 && a.Alive[q] {
				dir := e.grid.Delta(a.Pos[i], a.Pos[q]).Normalized()
				f = f.Add(dir.Scale(p.Predation.PullStrength))
			}
		} else {
			f = f.Add(e.escapeForce(i))
		}

		a.Acc[i] = f.Scale(1 / a.Mass[i])
	}
}

// preferredSpeed returns the effective v0 for agent i: the global reference
// scaled by the role profile and the health band.
func (e *Engine) preferredSpeed(i int) float32 {
	return e.params.V0 * e.profiles[e.arena.Type[i]].V0 * e.arena.Health[i].SpeedScale()
}

// escapeForce pushes prey away from every predator inside the escape range.
// The magnitude falls off as 1/(d+1) so close predators dominate.
func (e *Engine) escapeForce(i int) components.Vec3 {
	p := &e.params.Predation
	a := e.arena

	var f components.Vec3
	for _, pr := range e.predators {
		d := e.grid.Delta(a.Pos[pr], a.Pos[i])
		dist := d.Norm()
		if dist >= p.EscapeRange || dist < 1e-6 {
			continue
		}
		mag := p.EscapeStrength / (dist + 1)
		f = f.Add(d.Scale(mag / dist))
	}
	return f
}

// wallForce is the inward spring applied outside the box walls. It keeps
// reflective bounces from tunneling when the per-step displacement exceeds
// the overshoot.
func (e *Engine) wallForce(pos components.Vec3) components.Vec3 {
	half := e.params.BoxSize / 2
	k := e.params.WallStiffness

	var f components.Vec3
	if pos.X > half {
		f.X -= k * (pos.X - half)
	} else if pos.X < -half {
		f.X += k * (-half - pos.X)
	}
	if pos.Y > half {
		f.Y -= k * (pos.Y - half)
	} else if pos.Y < -half {
		f.Y += k * (-half - pos.Y)
	}
	if e.params.Dims == 3 {
		if pos.Z > half {
			f.Z -= k * (pos.Z - half)
		} else if pos.Z < -half {
			f.Z += k * (-half - pos.Z)
		}
	}
	return f
}

func exp32(x float32) float32 {
	return float32(math.Exp(float64(x)))
}
