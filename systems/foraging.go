package systems

import "github.com/pthm-cable/flock/components"

// ForagingParams tunes target selection and energy bookkeeping.
type ForagingParams struct {
	EnergyThreshold float32 // start foraging below this energy
	ConsumePerStep  float32 // passive drain and per-step intake
	PullStrength    float32 // attraction toward the locked resource
	EnergyMax       float32

	// Health band thresholds on energy.
	TiredBelow float32
	WeakBelow  float32
	DyingBelow float32
}

// Band returns the health band for an energy level.
func (p *ForagingParams) Band(energy float32) components.HealthBand {
	switch {
	case energy > p.TiredBelow:
		return components.Healthy
	case energy > p.WeakBelow:
		return components.Tired
	case energy > p.DyingBelow:
		return components.Weak
	default:
		return components.Dying
	}
}

// SelectResourceTargets locks each hungry live non-predator onto its
// nearest active non-empty resource. An agent already holding a target
// re-evaluates so it tracks the closest option as it moves. Targets on
// inactive resources are released.
func SelectResourceTargets(a *components.Arena, r *Resources, delta func(from, to components.Vec3) components.Vec3, p *ForagingParams) {
	for i := 0; i < a.N; i++ {
		if !a.Alive[i] || a.Type[i].IsPredator() {
			continue
		}
		if a.Energy[i] >= p.EnergyThreshold && a.TargetResource[i] < 0 {
			continue
		}

		best := int32(-1)
		bestDistSq := float32(1e30)
		for res := 0; res < r.n; res++ {
			if !r.Active[res] || r.Amount[res] <= 0 {
				continue
			}
			d := delta(a.Pos[i], r.Pos[res])
			if distSq := d.NormSq(); distSq < bestDistSq {
				bestDistSq = distSq
				best = int32(res)
			}
		}

		a.TargetResource[i] = best
		a.HasTarget[i] = best >= 0
	}
}

// DrainEnergy applies the passive per-step energy cost to all live agents,
// updates health bands, and kills agents whose energy reaches zero.
// Returns the number of starvation deaths.
func DrainEnergy(a *components.Arena, p *ForagingParams) int {
	deaths := 0
	for i := 0; i < a.N; i++ {
		if !a.Alive[i] {
			continue
		}
		a.Energy[i] -= p.ConsumePerStep
		if a.Energy[i] <= 0 {
			a.Kill(i)
			deaths++
			continue
		}
		a.Health[i] = p.Band(a.Energy[i])
	}
	return deaths
}
