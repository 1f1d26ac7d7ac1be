package systems

import (
	"math"

	"github.com/pthm-cable/flock/components"
)

// PredationParams tunes hunting and the attack success model.
type PredationParams struct {
	Cooldown       int32   // steps between attack attempts
	EnergyMax      float32
	V0             float32 // speed reference for the differential term
	RewardFraction float32 // fraction of prey energy transferred on a kill
	FailPenalty    float32 // energy lost on a failed attempt
	PullStrength   float32 // attraction toward the locked prey
	EscapeRange    float32 // prey flee when a predator is this close
	EscapeStrength float32
}

// SelectPreyTargets locks each live predator onto the nearest live
// non-predator inside its hunt range. Ties are broken by the lower agent
// index through the scan order.
func SelectPreyTargets(a *components.Arena, profiles *[components.NumAgentTypes]components.Profile, delta func(from, to components.Vec3) components.Vec3) {
	for i := 0; i < a.N; i++ {
		if !a.Alive[i] || !a.Type[i].IsPredator() {
			continue
		}

		huntRange := profiles[a.Type[i]].HuntRange
		best := int32(-1)
		bestDistSq := huntRange * huntRange
		for j := 0; j < a.N; j++ {
			if j == i || !a.Alive[j] || a.Type[j].IsPredator() {
				continue
			}
			d := delta(a.Pos[i], a.Pos[j])
			if distSq := d.NormSq(); distSq < bestDistSq {
				bestDistSq = distSq
				best = int32(j)
			}
		}
		a.TargetPrey[i] = best
	}
}

// AttackOutcome summarizes one resolution pass for telemetry.
type AttackOutcome struct {
	Attempts int
	Kills    int
}

// ResolveAttacks runs the attack phase for every live predator holding a
// target. The pass is single-threaded: kills mutate prey state, and two
// predators may contest the same prey within one step (first index wins).
func ResolveAttacks(a *components.Arena, profiles *[components.NumAgentTypes]components.Profile, delta func(from, to components.Vec3) components.Vec3, p *PredationParams, step int32) AttackOutcome {
	var out AttackOutcome

	for i := 0; i < a.N; i++ {
		if !a.Alive[i] || !a.Type[i].IsPredator() {
			continue
		}
		q := a.TargetPrey[i]
		if q < 0 || !a.Alive[q] {
			continue
		}
		if step-a.LastAttackStep[i] < p.Cooldown {
			continue
		}

		attackRange := profiles[a.Type[i]].AttackRange
		d := delta(a.Pos[i], a.Pos[q])
		if d.NormSq() > attackRange*attackRange {
			continue
		}

		out.Attempts++
		a.LastAttackStep[i] = step

		prob := successProbability(a, delta, p, i, int(q), attackRange)

		u, s := components.Uniform(a.RNG[i])
		a.RNG[i] = s

		if u < prob {
			reward := a.Energy[q] * p.RewardFraction
			a.Energy[i] += reward
			if a.Energy[i] > p.EnergyMax {
				a.Energy[i] = p.EnergyMax
			}
			a.Kill(int(q))
			a.TargetPrey[i] = -1
			out.Kills++
		} else {
			a.Energy[i] -= p.FailPenalty
			if a.Energy[i] < 0 {
				a.Energy[i] = 0
			}
		}
	}

	return out
}

// successProbability implements the multi-factor attack model: a speed
// differential term, prey weakness, predator condition, and a dilution
// term from nearby same-group defenders.
func successProbability(a *components.Arena, delta func(from, to components.Vec3) components.Vec3, p *PredationParams, pred, prey int, attackRange float32) float32 {
	speedDiff := a.Vel[pred].Norm() - a.Vel[prey].Norm()
	prob := 0.5 +
		0.20*float32(math.Tanh(float64(speedDiff/p.V0))) +
		0.15*(1-a.Energy[prey]/p.EnergyMax) +
		0.06*(a.Energy[pred]/p.EnergyMax)

	n := countProtectors(a, delta, prey, attackRange*2)
	prob -= 0.30 * (1 - 1/float32(1+n))

	return clamp32(prob, 0.05, 0.95)
}

// countProtectors counts live non-predator agents sharing the prey's group
// within the defense radius.
func countProtectors(a *components.Arena, delta func(from, to components.Vec3) components.Vec3, prey int, radius float32) int {
	if a.GroupID[prey] < 0 {
		return 0
	}
	radiusSq := radius * radius
	n := 0
	for j := 0; j < a.N; j++ {
		if j == prey || !a.Alive[j] || a.Type[j].IsPredator() {
			continue
		}
		if a.GroupID[j] != a.GroupID[prey] {
			continue
		}
		if delta(a.Pos[prey], a.Pos[j]).NormSq() <= radiusSq {
			n++
		}
	}
	return n
}
