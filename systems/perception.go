package systems

import (
	"math"

	"github.com/pthm-cable/flock/components"
)

// FOV filters neighbors to the vision cone in front of an agent. The cone
// is centered on the velocity direction; a stationary agent sees in all
// directions.
type FOV struct {
	cosHalf [components.NumAgentTypes]float32
	enabled [components.NumAgentTypes]bool
}

// NewFOV precomputes the cone half-angle cosines from the role profiles.
func NewFOV(profiles *[components.NumAgentTypes]components.Profile) *FOV {
	f := &FOV{}
	for t := 0; t < components.NumAgentTypes; t++ {
		half := float64(profiles[t].FOVAngle) / 2 * math.Pi / 180
		f.cosHalf[t] = float32(math.Cos(half))
		f.enabled[t] = profiles[t].FOVEnabled
	}
	return f
}

// InView reports whether a target at displacement delta is inside the
// vision cone of an agent of type t moving with velocity vel. Degenerate
// velocity or zero displacement counts as visible.
func (f *FOV) InView(t components.AgentType, vel, delta components.Vec3) bool {
	if !f.enabled[t] {
		return true
	}

	vn := vel.Norm()
	dn := delta.Norm()
	if vn < 1e-6 || dn < 1e-6 {
		return true
	}

	cosAngle := vel.Dot(delta) / (vn * dn)
	return cosAngle >= f.cosHalf[t]
}

// FilterVisible removes neighbors outside the agent's vision cone in place
// and returns the shortened slice.
func (f *FOV) FilterVisible(neighbors []Neighbor, t components.AgentType, vel components.Vec3) []Neighbor {
	if !f.enabled[t] {
		return neighbors
	}
	out := neighbors[:0]
	for _, n := range neighbors {
		if f.InView(t, vel, n.Delta) {
			out = append(out, n)
		}
	}
	return out
}
