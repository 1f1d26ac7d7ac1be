package engine

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/systems"
)

// Engine is the simulation root. All mutation happens through Step and the
// explicit mutators; concurrent readers use Snapshot. A single mutex
// serializes Step against parameter and world mutations so every step sees
// one consistent configuration.
type Engine struct {
	params   Params
	profiles [components.NumAgentTypes]components.Profile
	caps     Capacities

	arena     *components.Arena
	grid      *systems.SpatialGrid
	fov       *systems.FOV
	resources *systems.Resources
	obstacles *systems.Obstacles
	groups    *systems.GroupDetector
	pool      *workerPool

	predators []int32
	step      int32
	dt        float32

	lastInitBox float32
	lastSeed    uint64

	mu      sync.Mutex
	pending *Params

	snapMu sync.RWMutex
	snap   *Snapshot

	perf *phaseTracker

	log *slog.Logger

	totalKills       int
	totalStarvations int
}

// StepReport summarizes the events of one step.
type StepReport struct {
	Step        int32
	Attempts    int
	Kills       int
	Starvations int
	Alive       int
}

// New builds an engine for the given role assignment. Capacities are fixed
// for the lifetime of the engine. A nil logger discards all output.
func New(params Params, types []components.AgentType, caps Capacities, log *slog.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := validateCapacities(len(types), caps); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	profiles := components.DefaultProfiles()
	e := &Engine{
		params:    params,
		profiles:  profiles,
		caps:      caps,
		arena:     components.NewArena(types, &profiles),
		fov:       systems.NewFOV(&profiles),
		resources: systems.NewResources(caps.MaxResources),
		obstacles: systems.NewObstacles(caps.MaxObstacles, params.Obstacle.Strength, params.Obstacle.Decay),
		pool:      newWorkerPool(),
		perf:      newPhaseTracker(),
		predators: make([]int32, 0, 16),
		log:       log,
	}
	e.grid = systems.NewSpatialGrid(params.BoxSize, params.Morse.Rc, params.Dims, params.Boundary == BoundaryPeriodic)
	e.groups = systems.NewGroupDetector(e.arena.N, systems.GroupParams{
		MaxGroups:  caps.MaxGroups,
		RCluster:   params.Groups.RCluster,
		ThetaDeg:   params.Groups.ThetaDeg,
		Iterations: params.Groups.Iterations,
		Interval:   params.Groups.Interval,
	})
	return e, nil
}

// Initialize seeds positions, velocities, energies, and per-agent random
// state from the master seed. Positions are uniform over a cube of side
// initBox centered on the origin (the full box when initBox <= 0);
// initial velocities point in a random direction at the preferred speed.
func (e *Engine) Initialize(initBox float32, seed uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if initBox <= 0 || initBox > e.params.BoxSize {
		initBox = e.params.BoxSize
	}
	e.lastInitBox = initBox
	e.lastSeed = seed

	a := e.arena
	half := initBox / 2
	foragingParams := e.foragingParams()

	for i := 0; i < a.N; i++ {
		a.RNG[i] = components.SeedFor(seed, i)
		a.Alive[i] = true
		a.Energy[i] = e.params.InitialEnergy
		a.Health[i] = foragingParams.Band(a.Energy[i])
		a.TargetResource[i] = -1
		a.TargetPrey[i] = -1
		a.HasTarget[i] = false
		a.GroupID[i] = -1
		a.LastAttackStep[i] = -e.params.Predation.Cooldown
		a.Acc[i] = components.Vec3{}

		var p components.Vec3
		var u float32
		u, a.RNG[i] = components.Uniform(a.RNG[i])
		p.X = (2*u - 1) * half
		u, a.RNG[i] = components.Uniform(a.RNG[i])
		p.Y = (2*u - 1) * half
		if e.params.Dims == 3 {
			u, a.RNG[i] = components.Uniform(a.RNG[i])
			p.Z = (2*u - 1) * half
		}
		a.Pos[i] = p

		a.Vel[i] = e.randomDirection(i).Scale(e.preferredSpeed(i))
	}

	e.step = 0
	e.totalKills = 0
	e.totalStarvations = 0
	e.applyGoals()
	e.grid.Assign(a.Pos, a.Alive, a.CellID)
	e.publishSnapshot()

	e.log.Info("initialized",
		slog.Int("agents", a.N),
		slog.Uint64("seed", seed),
		slog.Int("dims", e.params.Dims))
}

// randomDirection draws a uniform direction for agent i, planar in 2D.
func (e *Engine) randomDirection(i int) components.Vec3 {
	a := e.arena
	if e.params.Dims == 2 {
		var u float32
		u, a.RNG[i] = components.Uniform(a.RNG[i])
		sin, cos := math.Sincos(float64(u) * 2 * math.Pi)
		return components.Vec3{X: float32(cos), Y: float32(sin)}
	}
	v, s := randomUnitVec3(a.RNG[i])
	a.RNG[i] = s
	return v
}

// UpdateParams stages a new parameter block. It takes effect at the start
// of the next step so the current step runs under one consistent set.
func (e *Engine) UpdateParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Dims != e.params.Dims {
		return fmt.Errorf("%w: dims cannot change after construction", ErrInvalidParams)
	}
	e.mu.Lock()
	e.pending = &p
	e.mu.Unlock()
	return nil
}

// Step advances the simulation by dt. The phase order is fixed: targeting
// reads the positions the forces will read, both force passes run against a
// grid rebuilt from current positions, and all stochastic phases consume
// per-agent generator state in index order.
func (e *Engine) Step(dt float32) StepReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.applyPending()
	e.dt = dt
	a := e.arena
	n := a.N
	e.perf.begin()

	e.grid.Assign(a.Pos, a.Alive, a.CellID)
	e.collectPredators()
	e.perf.lap(PhaseGrid)

	fp := e.foragingParams()
	pp := e.predationParams()
	systems.SelectResourceTargets(a, e.resources, e.grid.Delta, &fp)
	systems.SelectPreyTargets(a, &e.profiles, e.grid.Delta)
	e.perf.lap(PhaseTargets)

	e.pool.forRange(n, e.accumulateForces)
	e.perf.lap(PhaseForces)
	e.pool.forRange(n, e.driftHalfKick)
	e.perf.lap(PhaseIntegrate)

	e.grid.Assign(a.Pos, a.Alive, a.CellID)
	e.perf.lap(PhaseGrid)
	e.pool.forRange(n, e.accumulateForces)
	e.perf.lap(PhaseForces)
	e.pool.forRange(n, e.finishStep)
	e.perf.lap(PhaseIntegrate)

	e.resources.Consume(a, e.grid.Delta, fp.ConsumePerStep, fp.EnergyMax)
	outcome := systems.ResolveAttacks(a, &e.profiles, e.grid.Delta, &pp, e.step)
	e.resources.Regenerate()
	e.obstacles.Advance()
	starved := systems.DrainEnergy(a, &fp)
	e.perf.lap(PhaseInteractions)

	if e.step%e.params.Groups.Interval == 0 {
		e.grid.Assign(a.Pos, a.Alive, a.CellID)
		e.groups.Detect(a, e.grid)
		e.perf.lap(PhaseGroups)
	}

	e.step++
	e.totalKills += outcome.Kills
	e.totalStarvations += starved
	e.publishSnapshot()

	report := StepReport{
		Step:        e.step,
		Attempts:    outcome.Attempts,
		Kills:       outcome.Kills,
		Starvations: starved,
		Alive:       a.AliveCount(),
	}
	if outcome.Kills > 0 || starved > 0 {
		e.log.Debug("deaths",
			slog.Int("step", int(report.Step)),
			slog.Int("kills", outcome.Kills),
			slog.Int("starved", starved),
			slog.Int("alive", report.Alive))
	}
	return report
}

// Reset re-seeds and re-randomizes with the settings of the previous
// Initialize call.
func (e *Engine) Reset() {
	e.Initialize(e.lastInitBox, e.lastSeed)
}

// Run advances the simulation n steps and returns the last report.
func (e *Engine) Run(n int, dt float32) StepReport {
	var report StepReport
	for i := 0; i < n; i++ {
		report = e.Step(dt)
	}
	return report
}

// applyPending swaps in a staged parameter block and propagates the pieces
// that live in subsystems.
func (e *Engine) applyPending() {
	if e.pending == nil {
		return
	}
	p := *e.pending
	e.pending = nil

	rebuildGrid := p.BoxSize != e.params.BoxSize ||
		p.Morse.Rc != e.params.Morse.Rc ||
		(p.Boundary == BoundaryPeriodic) != (e.params.Boundary == BoundaryPeriodic)
	rebuildGroups := p.Groups != e.params.Groups

	e.params = p
	e.obstacles.Strength = p.Obstacle.Strength
	e.obstacles.Decay = p.Obstacle.Decay

	if rebuildGrid {
		e.grid = systems.NewSpatialGrid(p.BoxSize, p.Morse.Rc, p.Dims, p.Boundary == BoundaryPeriodic)
	}
	if rebuildGroups {
		e.groups = systems.NewGroupDetector(e.arena.N, systems.GroupParams{
			MaxGroups:  e.caps.MaxGroups,
			RCluster:   p.Groups.RCluster,
			ThetaDeg:   p.Groups.ThetaDeg,
			Iterations: p.Groups.Iterations,
			Interval:   p.Groups.Interval,
		})
	}
	e.applyGoals()
	e.log.Info("params updated", slog.String("boundary", p.Boundary.String()))
}

// applyGoals projects the shared goal onto every live agent whose profile
// carries goal strength, or clears all goals when disabled.
func (e *Engine) applyGoals() {
	a := e.arena
	g := &e.params.Goal
	for i := 0; i < a.N; i++ {
		strength := e.profiles[a.Type[i]].GoalStrength
		if !g.Enabled || strength <= 0 {
			a.ClearGoal(i)
			continue
		}
		if g.Strength > 0 {
			strength = g.Strength
		}
		a.SetGoal(i, g.Position, strength)
	}
}

// collectPredators rebuilds the live predator index list for the escape
// force.
func (e *Engine) collectPredators() {
	e.predators = e.predators[:0]
	a := e.arena
	for i := 0; i < a.N; i++ {
		if a.Alive[i] && a.Type[i].IsPredator() {
			e.predators = append(e.predators, int32(i))
		}
	}
}

func (e *Engine) foragingParams() systems.ForagingParams {
	return systems.ForagingParams{
		EnergyThreshold: e.params.Foraging.EnergyThreshold,
		ConsumePerStep:  e.params.Foraging.ConsumePerStep,
		PullStrength:    e.params.Foraging.PullStrength,
		EnergyMax:       e.params.EnergyMax,
		TiredBelow:      e.params.Foraging.TiredBelow,
		WeakBelow:       e.params.Foraging.WeakBelow,
		DyingBelow:      e.params.Foraging.DyingBelow,
	}
}

func (e *Engine) predationParams() systems.PredationParams {
	return systems.PredationParams{
		Cooldown:       e.params.Predation.Cooldown,
		EnergyMax:      e.params.EnergyMax,
		V0:             e.params.V0,
		RewardFraction: e.params.Predation.RewardFraction,
		FailPenalty:    e.params.Predation.FailPenalty,
		PullStrength:   e.params.Predation.PullStrength,
		EscapeRange:    e.params.Predation.EscapeRange,
		EscapeStrength: e.params.Predation.EscapeStrength,
	}
}

// AddResource places a resource and returns its id.
func (e *Engine) AddResource(cfg systems.ResourceConfig) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resources.Add(cfg)
}

// RemoveResource deactivates a resource and releases agents targeting it.
func (e *Engine) RemoveResource(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.resources.Remove(id); err != nil {
		return err
	}
	for i := 0; i < e.arena.N; i++ {
		if e.arena.TargetResource[i] == int32(id) {
			e.arena.TargetResource[i] = -1
			e.arena.HasTarget[i] = false
		}
	}
	return nil
}

// AddObstacle places an obstacle and returns its id.
func (e *Engine) AddObstacle(o systems.Obstacle) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.obstacles.Add(o)
}

// Params returns the active parameter block.
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// StepCount returns the number of completed steps.
func (e *Engine) StepCount() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// AliveCount returns the current live agent count.
func (e *Engine) AliveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.arena.AliveCount()
}

// GroupCount returns the number of groups found by the latest detection
// pass.
func (e *Engine) GroupCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.groups.Groups())
}

// Groups returns a copy of the latest group aggregates.
func (e *Engine) Groups() []systems.Group {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]systems.Group(nil), e.groups.Groups()...)
}

// Close stops the worker pool. The engine must not be stepped after Close.
func (e *Engine) Close() {
	e.pool.stop()
}
