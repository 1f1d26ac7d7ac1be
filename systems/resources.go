package systems

import (
	"errors"
	"sort"

	"github.com/pthm-cable/flock/components"
)

var (
	// ErrResourceCapacity is returned when the resource arena is full.
	ErrResourceCapacity = errors.New("resource capacity exhausted")
	// ErrNoSuchResource is returned for operations on an unknown or
	// inactive resource id.
	ErrNoSuchResource = errors.New("no such resource")
)

// ResourceConfig describes a resource to add to the arena.
type ResourceConfig struct {
	Position      components.Vec3
	Amount        float32
	Radius        float32
	ReplenishRate float32 // 0 = depletable
	MaxAmount     float32 // cap for renewable resources; defaults to Amount
}

// Resources is the fixed-capacity arena of point resources. Slots are
// marked inactive rather than deallocated; ids stay stable for the run.
type Resources struct {
	Pos           []components.Vec3
	Amount        []float32
	MaxAmount     []float32
	Radius        []float32
	ReplenishRate []float32
	Active        []bool

	n   int // high-water mark of allocated slots
	cap int

	consumers []consumer // scratch for the arbitration pass
}

type consumer struct {
	agent int32
	dist  float32
}

// NewResources allocates an arena with the given capacity.
func NewResources(capacity int) *Resources {
	return &Resources{
		Pos:           make([]components.Vec3, capacity),
		Amount:        make([]float32, capacity),
		MaxAmount:     make([]float32, capacity),
		Radius:        make([]float32, capacity),
		ReplenishRate: make([]float32, capacity),
		Active:        make([]bool, capacity),
		cap:           capacity,
		consumers:     make([]consumer, 0, 64),
	}
}

// Len returns the number of allocated slots (active or not).
func (r *Resources) Len() int { return r.n }

// ActiveCount returns the number of active resources.
func (r *Resources) ActiveCount() int {
	count := 0
	for i := 0; i < r.n; i++ {
		if r.Active[i] {
			count++
		}
	}
	return count
}

// Add places a new resource and returns its id. The first inactive slot is
// reused before the arena grows toward capacity.
func (r *Resources) Add(cfg ResourceConfig) (int, error) {
	slot := -1
	for i := 0; i < r.n; i++ {
		if !r.Active[i] {
			slot = i
			break
		}
	}
	if slot == -1 {
		if r.n >= r.cap {
			return -1, ErrResourceCapacity
		}
		slot = r.n
		r.n++
	}

	maxAmount := cfg.MaxAmount
	if maxAmount <= 0 {
		maxAmount = cfg.Amount
	}

	r.Pos[slot] = cfg.Position
	r.Amount[slot] = cfg.Amount
	r.MaxAmount[slot] = maxAmount
	r.Radius[slot] = cfg.Radius
	r.ReplenishRate[slot] = cfg.ReplenishRate
	r.Active[slot] = true
	return slot, nil
}

// Remove deactivates the resource with the given id.
func (r *Resources) Remove(id int) error {
	if id < 0 || id >= r.n || !r.Active[id] {
		return ErrNoSuchResource
	}
	r.Active[id] = false
	r.Amount[id] = 0
	return nil
}

// Renewable reports whether resource id regenerates.
func (r *Resources) Renewable(id int) bool {
	return r.ReplenishRate[id] > 0
}

// Consume runs one arbitration pass. For every active resource the live
// agents inside its radius are served nearest first, ties broken by agent
// index; each takes up to perStep energy, bounded by what remains and by
// the agent's headroom below energyMax. A drained depletable resource is
// deactivated and any agents targeting it are released.
func (r *Resources) Consume(a *components.Arena, delta func(from, to components.Vec3) components.Vec3, perStep, energyMax float32) {
	for res := 0; res < r.n; res++ {
		if !r.Active[res] {
			continue
		}

		r.consumers = r.consumers[:0]
		radiusSq := r.Radius[res] * r.Radius[res]
		for i := 0; i < a.N; i++ {
			if !a.Alive[i] {
				continue
			}
			d := delta(a.Pos[i], r.Pos[res])
			if distSq := d.NormSq(); distSq <= radiusSq {
				r.consumers = append(r.consumers, consumer{agent: int32(i), dist: distSq})
			}
		}
		if len(r.consumers) == 0 {
			continue
		}

		// Nearest first; agent index breaks ties deterministically.
		sort.Slice(r.consumers, func(x, y int) bool {
			if r.consumers[x].dist != r.consumers[y].dist {
				return r.consumers[x].dist < r.consumers[y].dist
			}
			return r.consumers[x].agent < r.consumers[y].agent
		})

		for _, c := range r.consumers {
			if r.Amount[res] <= 0 {
				break
			}
			i := c.agent
			take := perStep
			if take > r.Amount[res] {
				take = r.Amount[res]
			}
			if headroom := energyMax - a.Energy[i]; take > headroom {
				take = headroom
			}
			if take <= 0 {
				continue
			}
			r.Amount[res] -= take
			a.Energy[i] += take

			if a.Energy[i] >= energyMax {
				a.HasTarget[i] = false
				a.TargetResource[i] = -1
			}
		}

		if r.Amount[res] <= 0 && !r.Renewable(res) {
			r.Active[res] = false
			releaseTargets(a, int32(res))
		}
	}
}

// Regenerate advances renewable resources by their replenish rate, capped
// at max amount.
func (r *Resources) Regenerate() {
	for i := 0; i < r.n; i++ {
		if !r.Active[i] || r.ReplenishRate[i] <= 0 {
			continue
		}
		r.Amount[i] += r.ReplenishRate[i]
		if r.Amount[i] > r.MaxAmount[i] {
			r.Amount[i] = r.MaxAmount[i]
		}
	}
}

// releaseTargets clears the foraging target of every agent locked onto a
// now-inactive resource.
func releaseTargets(a *components.Arena, res int32) {
	for i := 0; i < a.N; i++ {
		if a.TargetResource[i] == res {
			a.TargetResource[i] = -1
			a.HasTarget[i] = false
		}
	}
}
