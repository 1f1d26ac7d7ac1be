package systems

import (
	"testing"

	"github.com/pthm-cable/flock/components"
)

// narrowFOV builds a profile table where followers see a tight forward
// cone and predators see everything.
func narrowFOV(angle float32) *FOV {
	profiles := components.DefaultProfiles()
	profiles[components.Follower].FOVAngle = angle
	profiles[components.Follower].FOVEnabled = true
	profiles[components.Predator].FOVEnabled = false
	return NewFOV(&profiles)
}

func TestInView_ConeBoundaries(t *testing.T) {
	f := narrowFOV(90)
	vel := components.Vec3{X: 1}

	cases := []struct {
		name  string
		delta components.Vec3
		want  bool
	}{
		{"dead ahead", components.Vec3{X: 2}, true},
		{"30 degrees off", components.Vec3{X: 1, Y: 0.5}, true},
		{"60 degrees off", components.Vec3{X: 1, Y: 1.8}, false},
		{"behind", components.Vec3{X: -2}, false},
	}
	for _, tc := range cases {
		if got := f.InView(components.Follower, vel, tc.delta); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestInView_WiderConeSeesMore(t *testing.T) {
	vel := components.Vec3{X: 1}
	behind := components.Vec3{X: -1, Y: 0.3}

	if narrowFOV(90).InView(components.Follower, vel, behind) {
		t.Error("target behind should be hidden from a 90 degree cone")
	}
	if !narrowFOV(359).InView(components.Follower, vel, behind) {
		t.Error("target behind should be visible to a near-full cone")
	}
}

func TestInView_DegenerateCasesVisible(t *testing.T) {
	f := narrowFOV(90)

	if !f.InView(components.Follower, components.Vec3{}, components.Vec3{X: -5}) {
		t.Error("a stationary agent sees in all directions")
	}
	if !f.InView(components.Follower, components.Vec3{X: 1}, components.Vec3{}) {
		t.Error("zero displacement counts as visible")
	}
	if !f.InView(components.Predator, components.Vec3{X: 1}, components.Vec3{X: -5}) {
		t.Error("disabled cone must pass everything")
	}
}

func TestFilterVisible_InPlace(t *testing.T) {
	f := narrowFOV(90)
	vel := components.Vec3{X: 1}
	ns := []Neighbor{
		{Idx: 0, Delta: components.Vec3{X: 1}},
		{Idx: 1, Delta: components.Vec3{X: -1}},
		{Idx: 2, Delta: components.Vec3{X: 1, Y: 0.2}},
	}

	out := f.FilterVisible(ns, components.Follower, vel)

	if len(out) != 2 {
		t.Fatalf("expected 2 visible neighbors, got %d", len(out))
	}
	if out[0].Idx != 0 || out[1].Idx != 2 {
		t.Errorf("expected neighbors 0 and 2, got %d and %d", out[0].Idx, out[1].Idx)
	}

	all := f.FilterVisible(ns[:1], components.Predator, vel)
	if len(all) != 1 {
		t.Errorf("disabled cone should keep all neighbors, got %d", len(all))
	}
}
