// Package systems provides the per-phase simulation systems: spatial
// indexing, perception, foraging, predation, resources, obstacles, and
// group detection. Systems operate on the shared agent arena; each phase
// writes only to its own index range.
package systems

import "github.com/pthm-cable/flock/components"

// Neighbor holds a nearby agent with precomputed spatial data.
// This avoids recomputing the boundary-aware delta and distance downstream.
type Neighbor struct {
	Idx    int32
	Delta  components.Vec3 // shortest-path delta from query origin
	DistSq float32
}

// SpatialGrid provides O(1) neighbor lookups over the simulation box using
// uniform cells. The grid is a pure index structure; it holds no ownership
// over agent data and is rebuilt every step.
type SpatialGrid struct {
	cellSize float32
	nx, ny, nz int
	box      float32
	periodic bool
	cells    [][]int32 // flat grid of agent index lists
}

// NewSpatialGrid creates a grid covering a cube of side box, centered on
// the origin. cellSize should be at least the interaction cutoff. dims
// selects 2D (single z layer) or 3D.
func NewSpatialGrid(box, cellSize float32, dims int, periodic bool) *SpatialGrid {
	n := int(box / cellSize)
	if float32(n)*cellSize < box {
		n++
	}
	if n < 1 {
		n = 1
	}
	nz := n
	if dims == 2 {
		nz = 1
	}

	cells := make([][]int32, n*n*nz)
	for i := range cells {
		cells[i] = make([]int32, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		nx:       n,
		ny:       n,
		nz:       nz,
		box:      box,
		periodic: periodic,
		cells:    cells,
	}
}

// Clear removes all agents from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Assign rebuilds the grid from arena positions and records each live
// agent's cell in cellID. Dead agents get cell -1 and are not inserted.
func (g *SpatialGrid) Assign(pos []components.Vec3, alive []bool, cellID []int32) {
	g.Clear()
	for i := range pos {
		if !alive[i] {
			cellID[i] = -1
			continue
		}
		idx := g.cellIndex(pos[i])
		cellID[i] = int32(idx)
		g.cells[idx] = append(g.cells[idx], int32(i))
	}
}

// Insert adds agent i at position p without touching cellID bookkeeping.
func (g *SpatialGrid) Insert(i int32, p components.Vec3) {
	g.cells[g.cellIndex(p)] = append(g.cells[g.cellIndex(p)], i)
}

// CellOf returns the flat cell index for a position.
func (g *SpatialGrid) CellOf(p components.Vec3) int32 {
	return int32(g.cellIndex(p))
}

// QueryRadiusInto finds live agents within radius of origin and appends
// them to dst. Returns the updated slice. Reuse dst across calls to avoid
// allocations. Each Neighbor includes the precomputed delta and squared
// distance.
func (g *SpatialGrid) QueryRadiusInto(dst []Neighbor, origin components.Vec3, radius float32, exclude int32, pos []components.Vec3, alive []bool) []Neighbor {
	cellRadius := int(radius/g.cellSize) + 1

	cx, cy, cz := g.cellCoords(origin)
	radiusSq := radius * radius

	zLo, zHi := -cellRadius, cellRadius
	if g.nz == 1 {
		zLo, zHi = 0, 0
	}

	for dz := zLo; dz <= zHi; dz++ {
		for dy := -cellRadius; dy <= cellRadius; dy++ {
			for dx := -cellRadius; dx <= cellRadius; dx++ {
				ix, iy, iz := cx+dx, cy+dy, cz+dz
				if g.periodic {
					ix = (ix%g.nx + g.nx) % g.nx
					iy = (iy%g.ny + g.ny) % g.ny
					iz = (iz%g.nz + g.nz) % g.nz
				} else if ix < 0 || ix >= g.nx || iy < 0 || iy >= g.ny || iz < 0 || iz >= g.nz {
					continue
				}
				idx := (iz*g.ny+iy)*g.nx + ix

				for _, j := range g.cells[idx] {
					if j == exclude || !alive[j] {
						continue
					}

					d := g.Delta(origin, pos[j])
					distSq := d.NormSq()
					if distSq <= radiusSq {
						dst = append(dst, Neighbor{Idx: j, Delta: d, DistSq: distSq})
					}
				}
			}
		}
	}

	return dst
}

// Delta returns the shortest-path displacement from a to b, wrapping each
// axis across the box when the boundary is periodic.
func (g *SpatialGrid) Delta(a, b components.Vec3) components.Vec3 {
	d := b.Sub(a)
	if !g.periodic {
		return d
	}
	return PBCDelta(d, g.box)
}

// PBCDelta applies the minimum-image convention to a displacement for a
// cubic box of side box.
func PBCDelta(d components.Vec3, box float32) components.Vec3 {
	half := box / 2
	if d.X > half {
		d.X -= box
	} else if d.X < -half {
		d.X += box
	}
	if d.Y > half {
		d.Y -= box
	} else if d.Y < -half {
		d.Y += box
	}
	if d.Z > half {
		d.Z -= box
	} else if d.Z < -half {
		d.Z += box
	}
	return d
}

// cellCoords maps a position to integer cell coordinates, clamped to the
// grid extent. Positions are in [-box/2, box/2]; the sentinel position of
// dead agents clamps to the last cell but dead agents are never inserted.
func (g *SpatialGrid) cellCoords(p components.Vec3) (int, int, int) {
	half := g.box / 2
	ix := int((p.X + half) / g.cellSize)
	iy := int((p.Y + half) / g.cellSize)
	iz := int((p.Z + half) / g.cellSize)

	ix = clampInt(ix, 0, g.nx-1)
	iy = clampInt(iy, 0, g.ny-1)
	iz = clampInt(iz, 0, g.nz-1)
	return ix, iy, iz
}

// cellIndex returns the flat index for a world position.
func (g *SpatialGrid) cellIndex(p components.Vec3) int {
	ix, iy, iz := g.cellCoords(p)
	return (iz*g.ny+iy)*g.nx + ix
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
