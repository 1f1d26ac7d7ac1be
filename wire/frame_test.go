package wire

import (
	"testing"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/engine"
	"github.com/pthm-cable/flock/systems"
)

func sampleSnapshot() *engine.Snapshot {
	return &engine.Snapshot{
		Step: 120,
		N:    3,
		Pos: []components.Vec3{
			{X: 1, Y: 2, Z: 3}, {X: -4, Y: 0.5}, {Z: 9},
		},
		Vel: []components.Vec3{
			{X: 0.1}, {Y: -0.2}, {Z: 0.3},
		},
		Type:           []components.AgentType{components.Follower, components.Predator, components.Leader},
		Energy:         []float32{80, 55.5, 12},
		Alive:          []bool{true, true, true},
		Health:         []components.HealthBand{components.Healthy, components.Tired, components.Dying},
		TargetResource: []int32{2, -1, 0},
		TargetPrey:     []int32{-1, 2, -1},
		GroupID:        []int32{0, -1, 0},
	}
}

func sampleStats() Stats {
	return Stats{
		MeanSpeed:    0.95,
		StdSpeed:     0.1,
		RadiusGyr:    7.5,
		Polarization: 0.88,
		NGroups:      2,
	}
}

// ---------- round trips ----------

func TestRoundTrip_AgentColumns(t *testing.T) {
	s := sampleSnapshot()
	buf := Encode(s, sampleStats())

	f, err := Decode(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.N != 3 || f.Step != 120 {
		t.Errorf("header: expected n 3 step 120, got %d %d", f.N, f.Step)
	}
	for i := 0; i < 3; i++ {
		if f.Positions[i] != s.Pos[i] {
			t.Errorf("position %d: expected %+v, got %+v", i, s.Pos[i], f.Positions[i])
		}
		if f.Velocities[i] != s.Vel[i] {
			t.Errorf("velocity %d: expected %+v, got %+v", i, s.Vel[i], f.Velocities[i])
		}
		if f.Types[i] != uint8(s.Type[i]) {
			t.Errorf("type %d: expected %d, got %d", i, s.Type[i], f.Types[i])
		}
		if f.Energies[i] != s.Energy[i] {
			t.Errorf("energy %d: expected %g, got %g", i, s.Energy[i], f.Energies[i])
		}
		if f.GroupIDs[i] != s.GroupID[i] {
			t.Errorf("group %d: expected %d, got %d", i, s.GroupID[i], f.GroupIDs[i])
		}
	}
	if f.Resources != nil || f.Groups != nil {
		t.Error("absent optional blocks must decode to nil")
	}
}

func TestRoundTrip_TargetColumnPerRole(t *testing.T) {
	s := sampleSnapshot()
	f, err := Decode(Encode(s, sampleStats()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.Targets[0] != 2 {
		t.Errorf("forager target: expected resource 2, got %d", f.Targets[0])
	}
	if f.Targets[1] != 2 {
		t.Errorf("predator target: expected prey 2, got %d", f.Targets[1])
	}
	if f.Targets[2] != 0 {
		t.Errorf("leader target: expected resource 0, got %d", f.Targets[2])
	}
}

func TestRoundTrip_Stats(t *testing.T) {
	f, err := Decode(Encode(sampleSnapshot(), sampleStats()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Stats != sampleStats() {
		t.Errorf("stats block: expected %+v, got %+v", sampleStats(), f.Stats)
	}
}

func TestRoundTrip_OptionalBlocks(t *testing.T) {
	s := sampleSnapshot()
	s.Resources = []engine.ResourceView{
		{ID: 0, Pos: components.Vec3{X: 5}, Amount: 120, Radius: 3, Renewable: true},
		{ID: 2, Pos: components.Vec3{Y: -8}, Amount: 0.5, Radius: 1, Renewable: false},
	}
	s.Groups = []systems.Group{
		{ID: 0, Size: 2, Centroid: components.Vec3{X: 1}, Velocity: components.Vec3{X: 0.2}, Radius: 4},
	}

	f, err := Decode(Encode(s, sampleStats()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(f.Resources))
	}
	want := Resource{Pos: components.Vec3{X: 5}, Amount: 120, Radius: 3, Renewable: true}
	if f.Resources[0] != want {
		t.Errorf("resource 0: expected %+v, got %+v", want, f.Resources[0])
	}
	if f.Resources[1].Renewable {
		t.Error("resource 1 should be depletable")
	}

	if len(f.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(f.Groups))
	}
	g := f.Groups[0]
	if g.ID != 0 || g.Size != 2 || g.Radius != 4 {
		t.Errorf("group fields mangled: %+v", g)
	}
}

// ---------- layout ----------

func TestEncode_TypeColumnPadded(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 8} {
		s := &engine.Snapshot{
			Step:           1,
			N:              n,
			Pos:            make([]components.Vec3, n),
			Vel:            make([]components.Vec3, n),
			Type:           make([]components.AgentType, n),
			Energy:         make([]float32, n),
			Alive:          make([]bool, n),
			TargetResource: make([]int32, n),
			TargetPrey:     make([]int32, n),
			GroupID:        make([]int32, n),
		}
		buf := Encode(s, Stats{})
		want := headerSize + n*12 + n*12 + pad4(n) + n*4 + n*4 + n*4 + statsSize
		if len(buf) != want {
			t.Errorf("n %d: expected frame size %d, got %d", n, want, len(buf))
		}
		if len(buf)%4 != 0 {
			t.Errorf("n %d: frame size %d not 4-byte aligned", n, len(buf))
		}
		if _, err := Decode(buf); err != nil {
			t.Errorf("n %d: decode failed: %v", n, err)
		}
	}
}

// ---------- truncation ----------

func TestDecode_Truncated(t *testing.T) {
	s := sampleSnapshot()
	s.Resources = []engine.ResourceView{{ID: 0, Amount: 5, Radius: 1}}
	buf := Encode(s, sampleStats())

	cases := []struct {
		name string
		cut  int
	}{
		{"short header", 10},
		{"mid body", headerSize + 7},
		{"mid resource block", len(buf) - 5},
	}
	for _, tc := range cases {
		if _, err := Decode(buf[:tc.cut]); err != ErrTruncatedFrame {
			t.Errorf("%s: expected ErrTruncatedFrame, got %v", tc.name, err)
		}
	}
}
