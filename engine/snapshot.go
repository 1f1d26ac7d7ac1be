package engine

import (
	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/systems"
)

// ResourceView is the read-only projection of one active resource.
type ResourceView struct {
	ID        int32
	Pos       components.Vec3
	Amount    float32
	Radius    float32
	Renewable bool
}

// Snapshot is a deep copy of observable simulation state taken at a step
// boundary. Published snapshots are never written again, so holders may
// read them without coordination.
type Snapshot struct {
	Step int32
	N    int

	Pos    []components.Vec3
	Vel    []components.Vec3
	Type   []components.AgentType
	Energy []float32
	Alive  []bool
	Health []components.HealthBand

	TargetResource []int32
	TargetPrey     []int32
	GroupID        []int32

	Groups    []systems.Group
	Resources []ResourceView
	Obstacles []systems.Obstacle

	TotalKills       int
	TotalStarvations int
}

// publishSnapshot copies current state into a fresh snapshot and swaps it
// in as the latest. Callers hold the step mutex.
func (e *Engine) publishSnapshot() {
	a := e.arena
	s := &Snapshot{
		Step:             e.step,
		N:                a.N,
		Pos:              append([]components.Vec3(nil), a.Pos...),
		Vel:              append([]components.Vec3(nil), a.Vel...),
		Type:             append([]components.AgentType(nil), a.Type...),
		Energy:           append([]float32(nil), a.Energy...),
		Alive:            append([]bool(nil), a.Alive...),
		Health:           append([]components.HealthBand(nil), a.Health...),
		TargetResource:   append([]int32(nil), a.TargetResource...),
		TargetPrey:       append([]int32(nil), a.TargetPrey...),
		GroupID:          append([]int32(nil), a.GroupID...),
		Groups:           append([]systems.Group(nil), e.groups.Groups()...),
		TotalKills:       e.totalKills,
		TotalStarvations: e.totalStarvations,
	}

	for id := 0; id < e.resources.Len(); id++ {
		if !e.resources.Active[id] {
			continue
		}
		s.Resources = append(s.Resources, ResourceView{
			ID:        int32(id),
			Pos:       e.resources.Pos[id],
			Amount:    e.resources.Amount[id],
			Radius:    e.resources.Radius[id],
			Renewable: e.resources.Renewable(id),
		})
	}
	for id := 0; id < e.obstacles.Len(); id++ {
		s.Obstacles = append(s.Obstacles, *e.obstacles.At(id))
	}

	e.snapMu.Lock()
	e.snap = s
	e.snapMu.Unlock()
}

// Snapshot returns the latest published snapshot. It is nil before
// Initialize.
func (e *Engine) Snapshot() *Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snap
}
