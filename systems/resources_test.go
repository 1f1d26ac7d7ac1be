package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/flock/components"
)

// ---------- helpers ----------

func plainDelta(from, to components.Vec3) components.Vec3 {
	return to.Sub(from)
}

func newTestArena(types []components.AgentType) *components.Arena {
	profiles := components.DefaultProfiles()
	a := components.NewArena(types, &profiles)
	for i := 0; i < a.N; i++ {
		a.Alive[i] = true
		a.TargetResource[i] = -1
		a.TargetPrey[i] = -1
	}
	return a
}

// ---------- arena bookkeeping ----------

func TestResources_AddReusesInactiveSlot(t *testing.T) {
	r := NewResources(2)

	id0, err := r.Add(ResourceConfig{Amount: 10, Radius: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Add(ResourceConfig{Amount: 10, Radius: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Add(ResourceConfig{Amount: 10, Radius: 1}); err != ErrResourceCapacity {
		t.Errorf("expected ErrResourceCapacity, got %v", err)
	}

	if err := r.Remove(id0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, err := r.Add(ResourceConfig{Amount: 5, Radius: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != id0 {
		t.Errorf("expected reused slot %d, got %d", id0, id)
	}
	if got := r.ActiveCount(); got != 2 {
		t.Errorf("expected 2 active resources, got %d", got)
	}
}

func TestResources_RemoveUnknown(t *testing.T) {
	r := NewResources(2)
	if err := r.Remove(0); err != ErrNoSuchResource {
		t.Errorf("expected ErrNoSuchResource, got %v", err)
	}
	id, _ := r.Add(ResourceConfig{Amount: 1, Radius: 1})
	r.Remove(id)
	if err := r.Remove(id); err != ErrNoSuchResource {
		t.Errorf("expected ErrNoSuchResource on double remove, got %v", err)
	}
}

// ---------- consumption arbitration ----------

func TestConsume_NearestFirstSplitsScarceResource(t *testing.T) {
	a := newTestArena([]components.AgentType{components.Follower, components.Follower})
	a.Pos[0] = components.Vec3{X: -1}
	a.Pos[1] = components.Vec3{X: 0.5}

	r := NewResources(4)
	id, _ := r.Add(ResourceConfig{Position: components.Vec3{}, Amount: 1.0, Radius: 2.0})
	a.TargetResource[0] = int32(id)
	a.TargetResource[1] = int32(id)
	a.HasTarget[0] = true
	a.HasTarget[1] = true

	r.Consume(a, plainDelta, 0.6, 100)

	if math.Abs(float64(a.Energy[1]-0.6)) > 1e-6 {
		t.Errorf("closer agent: expected 0.6, got %g", a.Energy[1])
	}
	if math.Abs(float64(a.Energy[0]-0.4)) > 1e-6 {
		t.Errorf("farther agent: expected remainder 0.4, got %g", a.Energy[0])
	}
	if r.Active[id] {
		t.Error("drained depletable resource should be inactive")
	}
	for i := 0; i < a.N; i++ {
		if a.TargetResource[i] != -1 || a.HasTarget[i] {
			t.Errorf("agent %d: target not released after depletion", i)
		}
	}
}

func TestConsume_IndexBreaksDistanceTies(t *testing.T) {
	a := newTestArena([]components.AgentType{components.Follower, components.Follower})
	a.Pos[0] = components.Vec3{X: 1}
	a.Pos[1] = components.Vec3{X: -1}

	r := NewResources(1)
	r.Add(ResourceConfig{Amount: 0.5, Radius: 2})

	r.Consume(a, plainDelta, 0.5, 100)

	if a.Energy[0] != 0.5 {
		t.Errorf("lower index should win the tie: expected 0.5, got %g", a.Energy[0])
	}
	if a.Energy[1] != 0 {
		t.Errorf("higher index: expected 0, got %g", a.Energy[1])
	}
}

func TestConsume_HeadroomCapsIntake(t *testing.T) {
	a := newTestArena([]components.AgentType{components.Follower})
	a.Energy[0] = 99.8
	a.TargetResource[0] = 0
	a.HasTarget[0] = true

	r := NewResources(1)
	id, _ := r.Add(ResourceConfig{Amount: 10, Radius: 2})

	r.Consume(a, plainDelta, 3, 100)

	if a.Energy[0] != 100 {
		t.Errorf("expected energy capped at 100, got %g", a.Energy[0])
	}
	if math.Abs(float64(r.Amount[id]-9.8)) > 1e-4 {
		t.Errorf("expected 0.2 consumed, remaining 9.8, got %g", r.Amount[id])
	}
	if a.HasTarget[0] || a.TargetResource[0] != -1 {
		t.Error("sated agent should release its target")
	}
}

func TestConsume_SkipsDeadAndOutOfRange(t *testing.T) {
	a := newTestArena([]components.AgentType{components.Follower, components.Follower})
	a.Pos[1] = components.Vec3{X: 10}
	a.Alive[0] = false

	r := NewResources(1)
	id, _ := r.Add(ResourceConfig{Amount: 5, Radius: 2})

	r.Consume(a, plainDelta, 1, 100)

	if a.Energy[0] != 0 || a.Energy[1] != 0 {
		t.Errorf("no intake expected, got %g and %g", a.Energy[0], a.Energy[1])
	}
	if r.Amount[id] != 5 {
		t.Errorf("expected untouched amount 5, got %g", r.Amount[id])
	}
}

func TestConsume_RenewableStaysActiveWhenDrained(t *testing.T) {
	a := newTestArena([]components.AgentType{components.Follower})
	a.TargetResource[0] = 0
	a.HasTarget[0] = true

	r := NewResources(1)
	id, _ := r.Add(ResourceConfig{Amount: 0.5, Radius: 2, ReplenishRate: 0.1, MaxAmount: 10})

	r.Consume(a, plainDelta, 1, 100)

	if !r.Active[id] {
		t.Error("drained renewable resource should stay active")
	}
	if !a.HasTarget[0] {
		t.Error("target on a renewable resource should not be released")
	}
}

// ---------- regeneration ----------

func TestRegenerate_CapsAtMaxAmount(t *testing.T) {
	r := NewResources(2)
	renew, _ := r.Add(ResourceConfig{Amount: 9.5, Radius: 1, ReplenishRate: 1, MaxAmount: 10})
	fixed, _ := r.Add(ResourceConfig{Amount: 3, Radius: 1})

	r.Regenerate()
	r.Regenerate()

	if r.Amount[renew] != 10 {
		t.Errorf("renewable: expected cap at 10, got %g", r.Amount[renew])
	}
	if r.Amount[fixed] != 3 {
		t.Errorf("depletable: expected unchanged 3, got %g", r.Amount[fixed])
	}
}
