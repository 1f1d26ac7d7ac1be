package systems

import (
	"math"

	"github.com/pthm-cable/flock/components"
)

// GroupParams tunes the label-propagation clustering pass.
type GroupParams struct {
	MaxGroups  int
	RCluster   float32 // spatial threshold
	ThetaDeg   float32 // directional threshold in degrees
	Iterations int
	Interval   int32 // run every this many steps
}

// Group is the aggregate of one detected cluster.
type Group struct {
	ID       int32
	Size     int32
	Centroid components.Vec3
	Velocity components.Vec3
	Radius   float32
}

// GroupDetector runs label propagation over spatial and directional
// similarity. Labels live in [0, MaxGroups); -1 marks predators, the dead,
// and the unclustered. Iterations read from one label buffer and write to
// the other, so the result does not depend on agent traversal order.
type GroupDetector struct {
	params   GroupParams
	cosTheta float32

	read  []int32
	write []int32

	counts  []int32 // per-label vote scratch
	touched []int32

	neighbors []Neighbor
	groups    []Group
	members   [][]int32 // per-label member lists for aggregates
}

// NewGroupDetector allocates buffers for n agents.
func NewGroupDetector(n int, params GroupParams) *GroupDetector {
	d := &GroupDetector{
		params:    params,
		cosTheta:  float32(math.Cos(float64(params.ThetaDeg) * math.Pi / 180)),
		read:      make([]int32, n),
		write:     make([]int32, n),
		counts:    make([]int32, params.MaxGroups),
		touched:   make([]int32, 0, 32),
		neighbors: make([]Neighbor, 0, 64),
		groups:    make([]Group, 0, params.MaxGroups),
		members:   make([][]int32, params.MaxGroups),
	}
	for i := range d.members {
		d.members[i] = make([]int32, 0, 8)
	}
	return d
}

// Detect reassigns group labels and recomputes aggregates. The grid must
// be consistent with arena positions.
func (d *GroupDetector) Detect(a *components.Arena, grid *SpatialGrid) {
	// Seed: every eligible agent starts with label i mod MaxGroups.
	for i := 0; i < a.N; i++ {
		if !a.Alive[i] || a.Type[i].IsPredator() {
			d.read[i] = -1
			continue
		}
		d.read[i] = int32(i % d.params.MaxGroups)
	}

	for it := 0; it < d.params.Iterations; it++ {
		d.propagate(a, grid)
		d.read, d.write = d.write, d.read
	}

	for i := 0; i < a.N; i++ {
		a.GroupID[i] = d.read[i]
	}

	d.aggregate(a, grid)
}

// propagate runs one voting round from the read buffer into the write
// buffer. Each agent adopts the most common label among its similar
// neighbors and itself, lowest label on ties.
func (d *GroupDetector) propagate(a *components.Arena, grid *SpatialGrid) {
	for i := 0; i < a.N; i++ {
		if d.read[i] < 0 {
			d.write[i] = -1
			continue
		}

		vi := a.Vel[i]
		viNorm := vi.Norm()

		d.touched = d.touched[:0]
		d.vote(d.read[i])

		if viNorm >= 1e-6 {
			d.neighbors = grid.QueryRadiusInto(d.neighbors[:0], a.Pos[i], d.params.RCluster, int32(i), a.Pos, a.Alive)
			for _, nb := range d.neighbors {
				j := nb.Idx
				if d.read[j] < 0 {
					continue
				}
				vj := a.Vel[j]
				vjNorm := vj.Norm()
				if vjNorm < 1e-6 {
					continue
				}
				if vi.Dot(vj)/(viNorm*vjNorm) < d.cosTheta {
					continue
				}
				d.vote(d.read[j])
			}
		}

		best := d.read[i]
		bestCount := int32(0)
		for _, label := range d.touched {
			c := d.counts[label]
			if c > bestCount || (c == bestCount && label < best) {
				best = label
				bestCount = c
			}
			d.counts[label] = 0
		}
		d.write[i] = best
	}
}

func (d *GroupDetector) vote(label int32) {
	if d.counts[label] == 0 {
		d.touched = append(d.touched, label)
	}
	d.counts[label]++
}

// aggregate rebuilds per-group statistics. Centroids are accumulated as
// boundary-aware deltas from the first member so clusters straddling a
// periodic wall average correctly.
func (d *GroupDetector) aggregate(a *components.Arena, grid *SpatialGrid) {
	for g := range d.members {
		d.members[g] = d.members[g][:0]
	}
	for i := 0; i < a.N; i++ {
		if label := a.GroupID[i]; label >= 0 {
			d.members[label] = append(d.members[label], int32(i))
		}
	}

	d.groups = d.groups[:0]
	for g, members := range d.members {
		if len(members) == 0 {
			continue
		}

		ref := a.Pos[members[0]]
		var sumDelta, sumVel components.Vec3
		for _, i := range members {
			sumDelta = sumDelta.Add(grid.Delta(ref, a.Pos[i]))
			sumVel = sumVel.Add(a.Vel[i])
		}
		inv := 1 / float32(len(members))
		centroid := ref.Add(sumDelta.Scale(inv))

		var maxDistSq float32
		for _, i := range members {
			if distSq := grid.Delta(centroid, a.Pos[i]).NormSq(); distSq > maxDistSq {
				maxDistSq = distSq
			}
		}

		d.groups = append(d.groups, Group{
			ID:       int32(g),
			Size:     int32(len(members)),
			Centroid: centroid,
			Velocity: sumVel.Scale(inv),
			Radius:   float32(math.Sqrt(float64(maxDistSq))),
		})
	}
}

// Groups returns the aggregates from the most recent detection pass. The
// slice is reused across passes; copy it to retain.
func (d *GroupDetector) Groups() []Group {
	return d.groups
}
