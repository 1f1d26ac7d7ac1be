// Package telemetry computes run diagnostics from engine snapshots and
// writes them to structured output files.
package telemetry

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/engine"
	"github.com/pthm-cable/flock/wire"
)

// Diagnostics holds the order parameters and population counts computed
// from one snapshot.
type Diagnostics struct {
	Step int32

	Alive     int
	Prey      int
	Predators int

	MeanSpeed    float64
	StdSpeed     float64
	RadiusGyr    float64
	Polarization float64
	NGroups      int

	MeanEnergy float64

	TotalKills       int
	TotalStarvations int
}

// Compute derives diagnostics from a snapshot. Speed statistics and the
// radius of gyration cover live agents only; polarization is the norm of
// the mean unit velocity.
func Compute(s *engine.Snapshot) Diagnostics {
	d := Diagnostics{
		Step:             s.Step,
		NGroups:          len(s.Groups),
		TotalKills:       s.TotalKills,
		TotalStarvations: s.TotalStarvations,
	}

	speeds := make([]float64, 0, s.N)
	var sumEnergy float64
	var sumDir components.Vec3
	var centroid components.Vec3

	for i := 0; i < s.N; i++ {
		if !s.Alive[i] {
			continue
		}
		d.Alive++
		if s.Type[i].IsPredator() {
			d.Predators++
		} else {
			d.Prey++
		}

		speed := s.Vel[i].Norm()
		speeds = append(speeds, float64(speed))
		sumEnergy += float64(s.Energy[i])
		if speed > 1e-6 {
			sumDir = sumDir.Add(s.Vel[i].Scale(1 / speed))
		}
		centroid = centroid.Add(s.Pos[i])
	}

	if d.Alive == 0 {
		return d
	}

	d.MeanSpeed, d.StdSpeed = stat.MeanStdDev(speeds, nil)
	if len(speeds) < 2 {
		d.StdSpeed = 0
	}
	d.MeanEnergy = sumEnergy / float64(d.Alive)
	d.Polarization = float64(sumDir.Norm()) / float64(d.Alive)

	centroid = centroid.Scale(1 / float32(d.Alive))
	var sumDistSq float64
	for i := 0; i < s.N; i++ {
		if !s.Alive[i] {
			continue
		}
		sumDistSq += float64(s.Pos[i].Sub(centroid).NormSq())
	}
	d.RadiusGyr = math.Sqrt(sumDistSq / float64(d.Alive))

	return d
}

// LogValue summarizes the diagnostics for structured logging.
func (d Diagnostics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("step", int(d.Step)),
		slog.Int("alive", d.Alive),
		slog.Int("groups", d.NGroups),
		slog.Float64("mean_speed", d.MeanSpeed),
		slog.Float64("polarization", d.Polarization),
		slog.Float64("rg", d.RadiusGyr),
		slog.Float64("mean_energy", d.MeanEnergy),
	)
}

// WireStats projects the diagnostics into the frame stats block.
func (d Diagnostics) WireStats() wire.Stats {
	return wire.Stats{
		MeanSpeed:    float32(d.MeanSpeed),
		StdSpeed:     float32(d.StdSpeed),
		RadiusGyr:    float32(d.RadiusGyr),
		Polarization: float32(d.Polarization),
		NGroups:      uint32(d.NGroups),
	}
}

// StepRow is the CSV projection of one diagnostics sample.
type StepRow struct {
	Step         int32   `csv:"step"`
	Alive        int     `csv:"alive"`
	Prey         int     `csv:"prey"`
	Predators    int     `csv:"predators"`
	MeanSpeed    float64 `csv:"mean_speed"`
	StdSpeed     float64 `csv:"std_speed"`
	RadiusGyr    float64 `csv:"rg"`
	Polarization float64 `csv:"polarization"`
	NGroups      int     `csv:"n_groups"`
	MeanEnergy   float64 `csv:"mean_energy"`
	Kills        int     `csv:"kills"`
	Starvations  int     `csv:"starvations"`
}

// Row converts the diagnostics for CSV output.
func (d Diagnostics) Row() StepRow {
	return StepRow{
		Step:         d.Step,
		Alive:        d.Alive,
		Prey:         d.Prey,
		Predators:    d.Predators,
		MeanSpeed:    d.MeanSpeed,
		StdSpeed:     d.StdSpeed,
		RadiusGyr:    d.RadiusGyr,
		Polarization: d.Polarization,
		NGroups:      d.NGroups,
		MeanEnergy:   d.MeanEnergy,
		Kills:        d.TotalKills,
		Starvations:  d.TotalStarvations,
	}
}
