package engine

import (
	"math"

	"github.com/pthm-cable/flock/components"
)

// driftHalfKick advances agents [start, end) through the first half of the
// velocity-Verlet step: a half velocity kick from the current acceleration,
// a full position drift, and boundary resolution. Velocities hold the
// half-step value until finishStep completes the kick.
func (e *Engine) driftHalfKick(start, end int, _ *workerScratch) {
	a := e.arena
	dt := e.dt
	half := e.params.BoxSize / 2

	for i := start; i < end; i++ {
		if !a.Alive[i] {
			continue
		}

		a.Vel[i] = a.Vel[i].Add(a.Acc[i].Scale(dt / 2))
		a.Pos[i] = a.Pos[i].Add(a.Vel[i].Scale(dt))

		switch e.params.Boundary {
		case BoundaryPeriodic:
			a.Pos[i] = wrap(a.Pos[i], e.params.BoxSize)
		case BoundaryReflective:
			a.Pos[i], a.Vel[i] = reflectBoundary(a.Pos[i], a.Vel[i], half)
		case BoundaryAbsorbing:
			if outside(a.Pos[i], half) {
				a.Kill(i)
			}
		}
	}
}

// finishStep completes the velocity kick from the recomputed acceleration,
// applies rotational noise, and caps the speed.
func (e *Engine) finishStep(start, end int, _ *workerScratch) {
	a := e.arena
	dt := e.dt

	for i := start; i < end; i++ {
		if !a.Alive[i] {
			continue
		}

		a.Vel[i] = a.Vel[i].Add(a.Acc[i].Scale(dt / 2))

		if eta := e.params.Eta * e.profiles[a.Type[i]].EtaNoise; eta > 0 {
			a.Vel[i] = e.rotateNoise(i, a.Vel[i], eta)
		}

		if cap := e.params.SpeedCapMult * e.preferredSpeed(i); cap > 0 {
			if speed := a.Vel[i].Norm(); speed > cap {
				a.Vel[i] = a.Vel[i].Scale(cap / speed)
			}
		}
	}
}

// rotateNoise turns the velocity by a uniform random angle in [-eta, eta]
// radians without changing its magnitude. In 2D the rotation is planar; in
// 3D the axis is drawn uniformly from the sphere and the rotation applied
// with the Rodrigues formula.
func (e *Engine) rotateNoise(i int, v components.Vec3, eta float32) components.Vec3 {
	a := e.arena

	u, s := components.Uniform(a.RNG[i])
	a.RNG[i] = s
	angle := (2*u - 1) * eta

	if e.params.Dims == 2 {
		sin, cos := math.Sincos(float64(angle))
		return components.Vec3{
			X: v.X*float32(cos) - v.Y*float32(sin),
			Y: v.X*float32(sin) + v.Y*float32(cos),
		}
	}

	axis, s := randomUnitVec3(a.RNG[i])
	a.RNG[i] = s
	return rodrigues(v, axis, angle)
}

// randomUnitVec3 draws a uniform direction on the unit sphere using
// Marsaglia's rejection method and returns the advanced generator state.
func randomUnitVec3(s uint32) (components.Vec3, uint32) {
	for {
		var u1, u2 float32
		u1, s = components.Uniform(s)
		u2, s = components.Uniform(s)
		x := 2*u1 - 1
		y := 2*u2 - 1
		sq := x*x + y*y
		if sq >= 1 {
			continue
		}
		root := float32(math.Sqrt(float64(1 - sq)))
		return components.Vec3{
			X: 2 * x * root,
			Y: 2 * y * root,
			Z: 1 - 2*sq,
		}, s
	}
}

// rodrigues rotates v around the unit axis k by angle radians.
func rodrigues(v, k components.Vec3, angle float32) components.Vec3 {
	sin64, cos64 := math.Sincos(float64(angle))
	sin := float32(sin64)
	cos := float32(cos64)

	term1 := v.Scale(cos)
	term2 := k.Cross(v).Scale(sin)
	term3 := k.Scale(k.Dot(v) * (1 - cos))
	return term1.Add(term2).Add(term3)
}

// wrap folds each coordinate into [-box/2, box/2).
func wrap(p components.Vec3, box float32) components.Vec3 {
	half := box / 2
	p.X = wrapAxis(p.X, half, box)
	p.Y = wrapAxis(p.Y, half, box)
	p.Z = wrapAxis(p.Z, half, box)
	return p
}

func wrapAxis(x, half, box float32) float32 {
	for x >= half {
		x -= box
	}
	for x < -half {
		x += box
	}
	return x
}

// reflectBoundary mirrors position overshoot back inside the box and flips the
// matching velocity component.
func reflectBoundary(p, v components.Vec3, half float32) (components.Vec3, components.Vec3) {
	if p.X > half {
		p.X = 2*half - p.X
		v.X = -v.X
	} else if p.X < -half {
		p.X = -2*half - p.X
		v.X = -v.X
	}
	if p.Y > half {
		p.Y = 2*half - p.Y
		v.Y = -v.Y
	} else if p.Y < -half {
		p.Y = -2*half - p.Y
		v.Y = -v.Y
	}
	if p.Z > half {
		p.Z = 2*half - p.Z
		v.Z = -v.Z
	} else if p.Z < -half {
		p.Z = -2*half - p.Z
		v.Z = -v.Z
	}
	return p, v
}

func outside(p components.Vec3, half float32) bool {
	return p.X > half || p.X < -half ||
		p.Y > half || p.Y < -half ||
		p.Z > half || p.Z < -half
}
