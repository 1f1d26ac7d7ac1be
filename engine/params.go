// Package engine composes the simulation systems into one deterministic
// step pipeline. The Engine owns the agent arena, the spatial index, the
// resource and obstacle tables, the group detector, and the step counter;
// external consumers interact through commands and snapshots only.
package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/flock/components"
)

// BoundaryMode selects how the box edges are resolved.
type BoundaryMode uint8

const (
	BoundaryPeriodic BoundaryMode = iota
	BoundaryReflective
	BoundaryAbsorbing
)

// ParseBoundaryMode maps a config string to a mode.
func ParseBoundaryMode(s string) (BoundaryMode, error) {
	switch s {
	case "pbc", "periodic":
		return BoundaryPeriodic, nil
	case "reflective":
		return BoundaryReflective, nil
	case "absorbing":
		return BoundaryAbsorbing, nil
	}
	return 0, fmt.Errorf("unknown boundary mode %q", s)
}

// String returns the config spelling of the mode.
func (m BoundaryMode) String() string {
	switch m {
	case BoundaryPeriodic:
		return "pbc"
	case BoundaryReflective:
		return "reflective"
	case BoundaryAbsorbing:
		return "absorbing"
	}
	return "unknown"
}

// ErrInvalidParams wraps all construction and update validation failures.
var ErrInvalidParams = errors.New("invalid parameters")

// MorseParams holds the pair-force coefficients.
type MorseParams struct {
	Ca float32 // attraction strength
	Cr float32 // repulsion strength
	La float32 // attraction length scale
	Lr float32 // repulsion length scale
	Rc float32 // interaction cutoff
}

// ForagingParams tunes target selection and energy bookkeeping.
type ForagingParams struct {
	EnergyThreshold float32
	ConsumePerStep  float32
	PullStrength    float32
	TiredBelow      float32
	WeakBelow       float32
	DyingBelow      float32
}

// PredationParams tunes hunting and the attack success model.
type PredationParams struct {
	Cooldown       int32
	RewardFraction float32
	FailPenalty    float32
	PullStrength   float32
	EscapeRange    float32
	EscapeStrength float32
}

// GroupParams tunes the clustering pass.
type GroupParams struct {
	RCluster   float32
	ThetaDeg   float32
	Iterations int
	Interval   int32
}

// GoalParams configures shared goal seeking. When enabled, every agent
// whose profile carries a positive goal strength is aimed at Position.
type GoalParams struct {
	Enabled  bool
	Position components.Vec3
	Strength float32 // 0 = use profile strength
}

// ObstacleParams tunes the avoidance force.
type ObstacleParams struct {
	Strength float32
	Decay    float32
}

// Params is the full parameter block. It is immutable within a step; the
// engine swaps it only at step boundaries.
type Params struct {
	Dims int // 2 or 3

	Morse MorseParams

	Alpha float32 // Rayleigh drive gain
	V0    float32 // global preferred-speed reference
	Beta  float32 // global alignment gain, multiplied by profile scale
	Eta   float32 // global noise scale, multiplied by profile amplitude

	MinDist    float32 // soft-sphere onset distance
	RepulsionK float32

	Boundary      BoundaryMode
	BoxSize       float32
	WallStiffness float32

	EnergyMax     float32
	InitialEnergy float32
	SpeedCapMult  float32 // v_cap = mult * effective v0

	Foraging  ForagingParams
	Predation PredationParams
	Groups    GroupParams
	Goal      GoalParams
	Obstacle  ObstacleParams
}

// Capacities fixes the arena sizes declared at construction.
type Capacities struct {
	MaxGroups    int
	MaxResources int
	MaxObstacles int
}

// DefaultParams returns the baseline 3D parameter set.
func DefaultParams() Params {
	return Params{
		Dims: 3,
		Morse: MorseParams{
			Ca: 1.5,
			Cr: 2.0,
			La: 2.5,
			Lr: 0.5,
			Rc: 15,
		},
		Alpha:         2.0,
		V0:            1.0,
		Beta:          1.0,
		Eta:           1.0,
		MinDist:       0.5,
		RepulsionK:    10,
		Boundary:      BoundaryPeriodic,
		BoxSize:       50,
		WallStiffness: 10,
		EnergyMax:     100,
		InitialEnergy: 100,
		SpeedCapMult:  3,
		Foraging: ForagingParams{
			EnergyThreshold: 30,
			ConsumePerStep:  0.1,
			PullStrength:    3,
			TiredBelow:      50,
			WeakBelow:       30,
			DyingBelow:      15,
		},
		Predation: PredationParams{
			Cooldown:       20,
			RewardFraction: 0.7,
			FailPenalty:    10,
			PullStrength:   5,
			EscapeRange:    15,
			EscapeStrength: 8,
		},
		Groups: GroupParams{
			RCluster:   5,
			ThetaDeg:   30,
			Iterations: 5,
			Interval:   10,
		},
		Obstacle: ObstacleParams{
			Strength: 10,
			Decay:    1.5,
		},
	}
}

// Validate checks the parameter block. It reports the first problem found
// and wraps ErrInvalidParams.
func (p *Params) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
	}

	if p.Dims != 2 && p.Dims != 3 {
		return fail("dims must be 2 or 3, got %d", p.Dims)
	}
	if p.Morse.Rc <= 0 {
		return fail("rc must be positive, got %g", p.Morse.Rc)
	}
	if p.BoxSize <= 0 {
		return fail("box size must be positive, got %g", p.BoxSize)
	}
	if p.Morse.La <= 0 || p.Morse.Lr <= 0 {
		return fail("morse length scales must be positive")
	}
	if p.EnergyMax <= 0 {
		return fail("energy max must be positive, got %g", p.EnergyMax)
	}
	if p.Groups.Iterations < 1 || p.Groups.Interval < 1 {
		return fail("group iterations and interval must be at least 1")
	}

	for _, v := range []float32{
		p.Morse.Ca, p.Morse.Cr, p.Morse.La, p.Morse.Lr, p.Morse.Rc,
		p.Alpha, p.V0, p.Beta, p.Eta, p.MinDist, p.RepulsionK,
		p.BoxSize, p.WallStiffness, p.EnergyMax, p.InitialEnergy,
	} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fail("non-finite parameter value")
		}
	}
	return nil
}

// validateCapacities checks the construction-time capacities.
func validateCapacities(n int, caps Capacities) error {
	if n <= 0 {
		return fmt.Errorf("%w: agent count must be positive, got %d", ErrInvalidParams, n)
	}
	if caps.MaxGroups <= 0 || caps.MaxResources < 0 || caps.MaxObstacles < 0 {
		return fmt.Errorf("%w: capacities out of range", ErrInvalidParams)
	}
	return nil
}
