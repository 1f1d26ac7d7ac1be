// Package main provides Nelder-Mead search over the Morse pair-force
// coefficients for a cohesive, polarized flock at a target spatial extent.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/engine"
	"github.com/pthm-cable/flock/telemetry"
)

// paramNames label the search dimensions. The vector is optimized in log
// space so every coefficient stays positive.
var paramNames = []string{"ca", "cr", "la", "lr"}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	steps := flag.Int("steps", 2000, "Simulation steps per evaluation")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 150, "Maximum number of evaluations")
	targetRg := flag.Float64("target-rg", 8, "Target radius of gyration")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Cfg()

	baseParams, err := cfg.Params()
	if err != nil {
		log.Fatalf("invalid base parameters: %v", err)
	}

	evalSeeds := make([]uint64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = uint64(i*1000 + 42)
	}

	logPath := filepath.Join(*outputDir, "relax_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()
	logWriter.Write(append([]string{"eval", "fitness"}, paramNames...))

	evalCount := 0
	best := math.Inf(1)
	var bestX []float64
	start := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			fitness := evaluate(cfg, baseParams, x, *steps, evalSeeds, *targetRg)
			evalCount++

			row := []string{strconv.Itoa(evalCount), formatFloat(fitness)}
			for _, v := range x {
				row = append(row, formatFloat(math.Exp(v)))
			}
			logWriter.Write(row)
			logWriter.Flush()

			if fitness < best {
				best = fitness
				bestX = append([]float64(nil), x...)
				log.Printf("eval %d: fitness %.4f (best) [%s]", evalCount, fitness, time.Since(start).Round(time.Second))
			}
			return fitness
		},
	}

	initX := []float64{
		math.Log(float64(baseParams.Morse.Ca)),
		math.Log(float64(baseParams.Morse.Cr)),
		math.Log(float64(baseParams.Morse.La)),
		math.Log(float64(baseParams.Morse.Lr)),
	}

	settings := &optimize.Settings{FuncEvaluations: *maxEvals}
	result, err := optimize.Minimize(problem, initX, settings, &optimize.NelderMead{})
	if err != nil {
		log.Printf("optimization stopped: %v", err)
	}
	if result != nil && result.F < best {
		best = result.F
		bestX = result.X
	}

	if bestX == nil {
		log.Fatal("no successful evaluations")
	}
	fmt.Printf("best fitness %.4f after %d evals\n", best, evalCount)
	for i, name := range paramNames {
		fmt.Printf("  %s = %.4f\n", name, math.Exp(bestX[i]))
	}
}

// evaluate runs short simulations for every seed and scores the mean
// deviation from a fully polarized flock at the target extent.
func evaluate(cfg *config.Config, base engine.Params, x []float64, steps int, seeds []uint64, targetRg float64) float64 {
	params := base
	params.Morse.Ca = float32(math.Exp(x[0]))
	params.Morse.Cr = float32(math.Exp(x[1]))
	params.Morse.La = float32(math.Exp(x[2]))
	params.Morse.Lr = float32(math.Exp(x[3]))
	if err := params.Validate(); err != nil {
		return 1e9
	}

	var total float64
	for _, seed := range seeds {
		eng, err := engine.New(params, cfg.AgentTypes(), cfg.Capacities(), nil)
		if err != nil {
			return 1e9
		}
		for _, rc := range cfg.ResourceConfigs() {
			eng.AddResource(rc)
		}
		eng.Initialize(0, seed)
		eng.Run(steps, float32(cfg.Simulation.DT))

		diag := telemetry.Compute(eng.Snapshot())
		eng.Close()

		if diag.Alive == 0 {
			total += 1e3
			continue
		}

		polLoss := (1 - diag.Polarization) * (1 - diag.Polarization)
		rgLoss := (diag.RadiusGyr - targetRg) / targetRg
		total += polLoss + rgLoss*rgLoss
	}
	return total / float64(len(seeds))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
