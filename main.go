package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/engine"
	"github.com/pthm-cable/flock/telemetry"
	"github.com/pthm-cable/flock/wire"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	steps := flag.Int("steps", 0, "Stop after N steps (0 = use config)")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = use config, config 0 = time-based)")
	initBox := flag.Float64("init-box", 0, "Initial placement cube side (0 = full box)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	frameDir := flag.String("frame-dir", "", "Directory for binary snapshot frames")
	logStats := flag.Bool("log-stats", false, "Output diagnostics via slog at each telemetry interval")
	dtFlag := flag.Float64("dt", 0, "Step size (0 = use config)")
	logLevelFlag := flag.String("log-level", "", "Log level: debug, info, warn, error (empty = use config)")

	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Set up slog (JSON to stdout for structured logging)
	level := cfg.Telemetry.LogLevel
	if *logLevelFlag != "" {
		level = *logLevelFlag
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(level),
	}))
	slog.SetDefault(logger)

	params, err := cfg.Params()
	if err != nil {
		slog.Error("invalid parameters", "error", err)
		os.Exit(1)
	}

	eng, err := engine.New(params, cfg.AgentTypes(), cfg.Capacities(), logger)
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	for _, rc := range cfg.ResourceConfigs() {
		if _, err := eng.AddResource(rc); err != nil {
			slog.Error("failed to place resource", "error", err)
			os.Exit(1)
		}
	}
	obstacles, err := cfg.ObstacleConfigs()
	if err != nil {
		slog.Error("invalid obstacle config", "error", err)
		os.Exit(1)
	}
	for _, o := range obstacles {
		if _, err := eng.AddObstacle(o); err != nil {
			slog.Error("failed to place obstacle", "error", err)
			os.Exit(1)
		}
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = cfg.Simulation.Seed
	}
	if rngSeed == 0 {
		rngSeed = uint64(time.Now().UnixNano())
	}
	eng.Initialize(float32(*initBox), rngSeed)

	om, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
		os.Exit(1)
	}

	if *frameDir != "" {
		if err := os.MkdirAll(*frameDir, 0755); err != nil {
			slog.Error("failed to create frame directory", "error", err)
			os.Exit(1)
		}
	}

	maxSteps := cfg.Simulation.Steps
	if *steps > 0 {
		maxSteps = *steps
	}
	dt := float32(cfg.Simulation.DT)
	if *dtFlag > 0 {
		dt = float32(*dtFlag)
	}
	interval := cfg.Telemetry.Interval
	window := telemetry.NewWindow(cfg.Telemetry.WindowSize)

	slog.Info("starting simulation",
		"seed", rngSeed,
		"steps", maxSteps,
		"dt", dt,
		"agents", len(cfg.AgentTypes()),
	)

	lastSample := time.Now()
	for s := 0; s < maxSteps; s++ {
		report := eng.Step(dt)

		if interval > 0 && (s+1)%interval == 0 {
			snap := eng.Snapshot()
			diag := telemetry.Compute(snap)
			window.Push(diag)

			if *logStats {
				slog.Info("stats", "diagnostics", diag)
				slog.Debug("window", "stats", window.Stats())
				for _, pt := range eng.PhaseTimings() {
					slog.Debug("phase timing", "phase", pt.Name, "per_step", pt.PerStep)
				}
			}
			if err := om.WriteStats(diag); err != nil {
				slog.Error("telemetry write failed", "error", err)
			}

			elapsed := time.Since(lastSample)
			lastSample = time.Now()
			perSec := float64(interval) / elapsed.Seconds()
			if err := om.WritePerf(telemetry.PerfRow{
				Step:        diag.Step,
				StepMillis:  elapsed.Seconds() * 1000 / float64(interval),
				StepsPerSec: perSec,
			}); err != nil {
				slog.Error("perf write failed", "error", err)
			}

			if *frameDir != "" {
				writeFrame(*frameDir, snap, diag)
			}
		}

		if report.Alive == 0 {
			slog.Info("all agents dead", "step", report.Step)
			break
		}
	}

	slog.Info("simulation finished", "steps", eng.StepCount(), "alive", eng.AliveCount())
}

// writeFrame serializes the snapshot into the binary frame layout.
func writeFrame(dir string, snap *engine.Snapshot, diag telemetry.Diagnostics) {
	frame := wire.Encode(snap, wire.Stats{
		MeanSpeed:    float32(diag.MeanSpeed),
		StdSpeed:     float32(diag.StdSpeed),
		RadiusGyr:    float32(diag.RadiusGyr),
		Polarization: float32(diag.Polarization),
		NGroups:      uint32(diag.NGroups),
	})
	path := fmt.Sprintf("%s/frame_%08d.bin", dir, snap.Step)
	if err := os.WriteFile(path, frame, 0644); err != nil {
		slog.Error("frame write failed", "error", err, "path", path)
	}
}

// logLevel maps the config spelling to a slog level.
func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
