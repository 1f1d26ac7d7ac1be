package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Window retains the most recent diagnostics samples so distribution
// summaries can cover a sliding interval instead of a single step.
type Window struct {
	capacity int
	samples  []Diagnostics
}

// NewWindow builds a window holding up to capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{capacity: capacity, samples: make([]Diagnostics, 0, capacity)}
}

// Push appends a sample, evicting the oldest once the window is full.
func (w *Window) Push(d Diagnostics) {
	if len(w.samples) == w.capacity {
		copy(w.samples, w.samples[1:])
		w.samples[len(w.samples)-1] = d
		return
	}
	w.samples = append(w.samples, d)
}

// Len reports how many samples the window currently holds.
func (w *Window) Len() int {
	return len(w.samples)
}

// WindowStats summarizes the speed and energy distributions over the
// retained samples.
type WindowStats struct {
	Samples int

	SpeedP10 float64
	SpeedP50 float64
	SpeedP90 float64

	EnergyP10 float64
	EnergyP50 float64
	EnergyP90 float64

	MeanPolarization float64
}

// Stats computes the windowed summary. An empty window returns the zero
// value.
func (w *Window) Stats() WindowStats {
	ws := WindowStats{Samples: len(w.samples)}
	if ws.Samples == 0 {
		return ws
	}

	speeds := make([]float64, len(w.samples))
	energies := make([]float64, len(w.samples))
	var sumPol float64
	for i, d := range w.samples {
		speeds[i] = d.MeanSpeed
		energies[i] = d.MeanEnergy
		sumPol += d.Polarization
	}
	sort.Float64s(speeds)
	sort.Float64s(energies)

	ws.SpeedP10 = stat.Quantile(0.1, stat.Empirical, speeds, nil)
	ws.SpeedP50 = stat.Quantile(0.5, stat.Empirical, speeds, nil)
	ws.SpeedP90 = stat.Quantile(0.9, stat.Empirical, speeds, nil)
	ws.EnergyP10 = stat.Quantile(0.1, stat.Empirical, energies, nil)
	ws.EnergyP50 = stat.Quantile(0.5, stat.Empirical, energies, nil)
	ws.EnergyP90 = stat.Quantile(0.9, stat.Empirical, energies, nil)
	ws.MeanPolarization = sumPol / float64(ws.Samples)

	return ws
}

// LogValue summarizes the window for structured logging.
func (ws WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("samples", ws.Samples),
		slog.Float64("speed_p10", ws.SpeedP10),
		slog.Float64("speed_p50", ws.SpeedP50),
		slog.Float64("speed_p90", ws.SpeedP90),
		slog.Float64("energy_p10", ws.EnergyP10),
		slog.Float64("energy_p50", ws.EnergyP50),
		slog.Float64("energy_p90", ws.EnergyP90),
		slog.Float64("polarization", ws.MeanPolarization),
	)
}
