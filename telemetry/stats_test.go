package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/engine"
	"github.com/pthm-cable/flock/systems"
)

func snapshotOf(n int) *engine.Snapshot {
	s := &engine.Snapshot{
		N:      n,
		Pos:    make([]components.Vec3, n),
		Vel:    make([]components.Vec3, n),
		Type:   make([]components.AgentType, n),
		Energy: make([]float32, n),
		Alive:  make([]bool, n),
	}
	for i := range s.Alive {
		s.Alive[i] = true
	}
	return s
}

func TestCompute_CountsByRole(t *testing.T) {
	s := snapshotOf(5)
	s.Step = 42
	s.Type[3] = components.Predator
	s.Type[4] = components.Predator
	s.Alive[4] = false

	d := Compute(s)
	if d.Step != 42 {
		t.Errorf("expected step 42, got %d", d.Step)
	}
	if d.Alive != 4 {
		t.Errorf("expected 4 alive, got %d", d.Alive)
	}
	if d.Prey != 3 || d.Predators != 1 {
		t.Errorf("expected 3 prey 1 predator, got %d %d", d.Prey, d.Predators)
	}
}

func TestCompute_PolarizationAlignedVsOpposed(t *testing.T) {
	s := snapshotOf(4)
	for i := range s.Vel {
		s.Vel[i] = components.Vec3{X: 2}
	}
	if d := Compute(s); math.Abs(d.Polarization-1) > 1e-6 {
		t.Errorf("aligned flock: expected polarization 1, got %g", d.Polarization)
	}

	s.Vel[0] = components.Vec3{X: -2}
	s.Vel[1] = components.Vec3{X: -2}
	if d := Compute(s); math.Abs(d.Polarization) > 1e-6 {
		t.Errorf("opposed halves: expected polarization 0, got %g", d.Polarization)
	}
}

func TestCompute_NearStationarySkippedInPolarization(t *testing.T) {
	s := snapshotOf(2)
	s.Vel[0] = components.Vec3{X: 1}
	// Below the speed floor the agent contributes no direction but still
	// counts toward the denominator.
	s.Vel[1] = components.Vec3{X: 1e-9}

	d := Compute(s)
	if math.Abs(d.Polarization-0.5) > 1e-6 {
		t.Errorf("expected polarization 0.5, got %g", d.Polarization)
	}
}

func TestCompute_SpeedStatistics(t *testing.T) {
	s := snapshotOf(2)
	s.Vel[0] = components.Vec3{X: 1}
	s.Vel[1] = components.Vec3{Y: 3}

	d := Compute(s)
	if math.Abs(d.MeanSpeed-2) > 1e-6 {
		t.Errorf("expected mean speed 2, got %g", d.MeanSpeed)
	}
	// Sample standard deviation of {1, 3}.
	if math.Abs(d.StdSpeed-math.Sqrt2) > 1e-6 {
		t.Errorf("expected std %g, got %g", math.Sqrt2, d.StdSpeed)
	}
}

func TestCompute_SingleAgentZeroStd(t *testing.T) {
	s := snapshotOf(1)
	s.Vel[0] = components.Vec3{X: 1.5}

	d := Compute(s)
	if d.StdSpeed != 0 {
		t.Errorf("expected zero std for one sample, got %g", d.StdSpeed)
	}
	if math.Abs(d.MeanSpeed-1.5) > 1e-6 {
		t.Errorf("expected mean speed 1.5, got %g", d.MeanSpeed)
	}
}

func TestCompute_RadiusOfGyration(t *testing.T) {
	s := snapshotOf(2)
	s.Pos[0] = components.Vec3{X: -3}
	s.Pos[1] = components.Vec3{X: 3}

	d := Compute(s)
	if math.Abs(d.RadiusGyr-3) > 1e-6 {
		t.Errorf("expected rg 3, got %g", d.RadiusGyr)
	}
}

func TestCompute_MeanEnergyLiveOnly(t *testing.T) {
	s := snapshotOf(3)
	s.Energy[0] = 60
	s.Energy[1] = 40
	s.Energy[2] = 999
	s.Alive[2] = false

	d := Compute(s)
	if math.Abs(d.MeanEnergy-50) > 1e-6 {
		t.Errorf("expected mean energy 50, got %g", d.MeanEnergy)
	}
}

func TestCompute_AllDeadReturnsZeroes(t *testing.T) {
	s := snapshotOf(2)
	s.Alive[0] = false
	s.Alive[1] = false
	s.Step = 7
	s.TotalKills = 3

	d := Compute(s)
	if d.Alive != 0 || d.MeanSpeed != 0 || d.Polarization != 0 || d.RadiusGyr != 0 {
		t.Errorf("expected zeroed diagnostics, got %+v", d)
	}
	if d.Step != 7 || d.TotalKills != 3 {
		t.Errorf("header fields must survive: %+v", d)
	}
}

func TestCompute_GroupAndEventCounters(t *testing.T) {
	s := snapshotOf(2)
	s.Groups = []systems.Group{{ID: 0, Size: 2}, {ID: 3, Size: 1}}
	s.TotalKills = 4
	s.TotalStarvations = 2

	d := Compute(s)
	if d.NGroups != 2 {
		t.Errorf("expected 2 groups, got %d", d.NGroups)
	}
	if d.TotalKills != 4 || d.TotalStarvations != 2 {
		t.Errorf("event counters mangled: %+v", d)
	}
}

func TestRow_FieldMapping(t *testing.T) {
	d := Diagnostics{
		Step:             10,
		Alive:            8,
		Prey:             6,
		Predators:        2,
		MeanSpeed:        1.1,
		StdSpeed:         0.2,
		RadiusGyr:        5.5,
		Polarization:     0.9,
		NGroups:          3,
		MeanEnergy:       72,
		TotalKills:       1,
		TotalStarvations: 4,
	}
	row := d.Row()
	want := StepRow{
		Step: 10, Alive: 8, Prey: 6, Predators: 2,
		MeanSpeed: 1.1, StdSpeed: 0.2, RadiusGyr: 5.5, Polarization: 0.9,
		NGroups: 3, MeanEnergy: 72, Kills: 1, Starvations: 4,
	}
	if row != want {
		t.Errorf("expected %+v, got %+v", want, row)
	}
}
