package systems

import (
	"errors"
	"math"

	"github.com/pthm-cable/flock/components"
)

// ErrObstacleCapacity is returned when the obstacle arena is full.
var ErrObstacleCapacity = errors.New("obstacle capacity exhausted")

// ObstacleKind selects the shape variant.
type ObstacleKind uint8

const (
	ObstacleSphere ObstacleKind = iota
	ObstacleBox
	ObstacleCylinder
)

// Obstacle is a signed-distance shape agents are pushed away from.
// Cylinders are capped and aligned to Axis (0=x, 1=y, 2=z).
type Obstacle struct {
	Kind        ObstacleKind
	Center      components.Vec3
	Radius      float32         // sphere, cylinder
	HalfExtents components.Vec3 // box
	Height      float32         // cylinder
	Axis        int             // cylinder
	Velocity    components.Vec3 // per-step drift; zero for static obstacles
}

// SDF returns the signed distance from p to the obstacle surface.
// Negative inside.
func (o *Obstacle) SDF(p components.Vec3) float32 {
	q := p.Sub(o.Center)
	switch o.Kind {
	case ObstacleSphere:
		return q.Norm() - o.Radius
	case ObstacleBox:
		return boxSDF(q, o.HalfExtents)
	case ObstacleCylinder:
		return cylinderSDF(q, o.Radius, o.Height, o.Axis)
	}
	return float32(math.Inf(1))
}

func boxSDF(q, half components.Vec3) float32 {
	dx := abs32(q.X) - half.X
	dy := abs32(q.Y) - half.Y
	dz := abs32(q.Z) - half.Z

	outside := components.Vec3{X: max32(dx, 0), Y: max32(dy, 0), Z: max32(dz, 0)}.Norm()
	inside := min32(max32(dx, max32(dy, dz)), 0)
	return outside + inside
}

func cylinderSDF(q components.Vec3, radius, height float32, axis int) float32 {
	var axial, r2 float32
	switch axis {
	case 0:
		axial, r2 = q.X, q.Y*q.Y+q.Z*q.Z
	case 1:
		axial, r2 = q.Y, q.X*q.X+q.Z*q.Z
	default:
		axial, r2 = q.Z, q.X*q.X+q.Y*q.Y
	}

	dr := float32(math.Sqrt(float64(r2))) - radius
	dh := abs32(axial) - height/2

	outside := components.Vec3{X: max32(dr, 0), Y: max32(dh, 0), Z: 0}.Norm()
	inside := min32(max32(dr, dh), 0)
	return outside + inside
}

// sdfEps is the central-difference step for the numerical gradient.
const sdfEps = 1e-3

// Gradient returns the normalized outward SDF gradient at p by central
// differences.
func (o *Obstacle) Gradient(p components.Vec3) components.Vec3 {
	g := components.Vec3{
		X: o.SDF(components.Vec3{X: p.X + sdfEps, Y: p.Y, Z: p.Z}) - o.SDF(components.Vec3{X: p.X - sdfEps, Y: p.Y, Z: p.Z}),
		Y: o.SDF(components.Vec3{X: p.X, Y: p.Y + sdfEps, Z: p.Z}) - o.SDF(components.Vec3{X: p.X, Y: p.Y - sdfEps, Z: p.Z}),
		Z: o.SDF(components.Vec3{X: p.X, Y: p.Y, Z: p.Z + sdfEps}) - o.SDF(components.Vec3{X: p.X, Y: p.Y, Z: p.Z - sdfEps}),
	}
	return g.Normalized()
}

// Obstacles is the fixed-capacity obstacle arena.
type Obstacles struct {
	items []Obstacle
	cap   int

	// Repulsion parameters shared by all obstacles.
	Strength float32
	Decay    float32
}

// NewObstacles allocates an arena with the given capacity.
func NewObstacles(capacity int, strength, decay float32) *Obstacles {
	return &Obstacles{
		items:    make([]Obstacle, 0, capacity),
		cap:      capacity,
		Strength: strength,
		Decay:    decay,
	}
}

// Len returns the obstacle count.
func (os *Obstacles) Len() int { return len(os.items) }

// Add appends an obstacle and returns its id.
func (os *Obstacles) Add(o Obstacle) (int, error) {
	if len(os.items) >= os.cap {
		return -1, ErrObstacleCapacity
	}
	os.items = append(os.items, o)
	return len(os.items) - 1, nil
}

// At returns the obstacle with the given id.
func (os *Obstacles) At(id int) *Obstacle {
	return &os.items[id]
}

// Advance drifts moving obstacles by their per-step velocity.
func (os *Obstacles) Advance() {
	for i := range os.items {
		if !os.items[i].Velocity.IsZero() {
			os.items[i].Center = os.items[i].Center.Add(os.items[i].Velocity)
		}
	}
}

// Repulsion accumulates the avoidance force at p: each obstacle whose
// surface is within three decay lengths contributes strength * exp(-d/decay)
// along the outward gradient.
func (os *Obstacles) Repulsion(p components.Vec3) components.Vec3 {
	var f components.Vec3
	for i := range os.items {
		o := &os.items[i]
		d := o.SDF(p)
		if d >= 3*os.Decay {
			continue
		}
		if d < 0 {
			d = 0
		}
		mag := os.Strength * float32(math.Exp(float64(-d/os.Decay)))
		f = f.Add(o.Gradient(p).Scale(mag))
	}
	return f
}
