package components

// AgentType identifies the behavioral role of an agent.
type AgentType uint8

const (
	Follower AgentType = iota
	Explorer
	Leader
	Predator

	NumAgentTypes = 4
)

// String returns the lowercase role name.
func (t AgentType) String() string {
	switch t {
	case Follower:
		return "follower"
	case Explorer:
		return "explorer"
	case Leader:
		return "leader"
	case Predator:
		return "predator"
	}
	return "unknown"
}

// IsPredator reports whether the type hunts other agents.
func (t AgentType) IsPredator() bool {
	return t == Predator
}

// Profile holds the role-specific parameter set shared by all agents of a
// type. Profiles are read-only during a step; the engine swaps them only at
// step boundaries.
type Profile struct {
	BetaScale    float32 // multiplier on the global alignment gain
	EtaNoise     float32 // rotational noise amplitude (radians)
	V0           float32 // preferred cruise speed
	Mass         float32
	FOVAngle     float32 // full cone angle in degrees
	FOVEnabled   bool
	GoalStrength float32 // goal-seeking gain; 0 disables
	HuntRange    float32 // predator search horizon
	AttackRange  float32 // predator strike distance
}

// DefaultProfiles returns the built-in role table. Followers track the
// flock, explorers wander with high noise, leaders steer toward goals,
// predators ignore alignment and hunt.
func DefaultProfiles() [NumAgentTypes]Profile {
	return [NumAgentTypes]Profile{
		Follower: {
			BetaScale:  1.5,
			EtaNoise:   0.05,
			V0:         1.0,
			Mass:       1.0,
			FOVAngle:   120,
			FOVEnabled: true,
		},
		Explorer: {
			BetaScale:  0.5,
			EtaNoise:   0.3,
			V0:         1.3,
			Mass:       0.8,
			FOVAngle:   150,
			FOVEnabled: true,
		},
		Leader: {
			BetaScale:    1.0,
			EtaNoise:     0.15,
			V0:           1.4,
			Mass:         1.2,
			FOVAngle:     120,
			FOVEnabled:   true,
			GoalStrength: 2.0,
		},
		Predator: {
			BetaScale:   0,
			EtaNoise:    0.1,
			V0:          1.3,
			Mass:        1.5,
			FOVAngle:    180,
			FOVEnabled:  false,
			HuntRange:   20,
			AttackRange: 2,
		},
	}
}
