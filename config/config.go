// Package config provides configuration loading and access for the
// simulation. A YAML file is merged over embedded defaults and checked
// against an embedded JSON schema before any values are used.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/engine"
	"github.com/pthm-cable/flock/systems"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed schema.json
var schemaJSON string

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	World      WorldConfig      `yaml:"world"`
	Forces     ForcesConfig     `yaml:"forces"`
	Energy     EnergyConfig     `yaml:"energy"`
	Foraging   ForagingConfig   `yaml:"foraging"`
	Predation  PredationConfig  `yaml:"predation"`
	Groups     GroupsConfig     `yaml:"groups"`
	Goal       GoalConfig       `yaml:"goal"`
	Obstacles  ObstaclesConfig  `yaml:"obstacles"`
	Population PopulationConfig `yaml:"population"`
	Resources  []ResourceEntry  `yaml:"resources"`
	Limits     LimitsConfig     `yaml:"limits"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// SimulationConfig holds run-level settings.
type SimulationConfig struct {
	Dims  int     `yaml:"dims"`
	DT    float64 `yaml:"dt"`
	Steps int     `yaml:"steps"`
	Seed  uint64  `yaml:"seed"`
}

// WorldConfig holds box and boundary settings.
type WorldConfig struct {
	Boundary      string  `yaml:"boundary"` // pbc, reflective, absorbing
	BoxSize       float64 `yaml:"box_size"`
	WallStiffness float64 `yaml:"wall_stiffness"`
}

// ForcesConfig holds the motion model coefficients.
type ForcesConfig struct {
	Morse        MorseConfig `yaml:"morse"`
	Alpha        float64     `yaml:"alpha"`
	V0           float64     `yaml:"v0"`
	Beta         float64     `yaml:"beta"`
	Eta          float64     `yaml:"eta"`
	MinDist      float64     `yaml:"min_dist"`
	RepulsionK   float64     `yaml:"repulsion_k"`
	SpeedCapMult float64     `yaml:"speed_cap_mult"`
}

// MorseConfig holds the pair potential coefficients.
type MorseConfig struct {
	Ca float64 `yaml:"ca"`
	Cr float64 `yaml:"cr"`
	La float64 `yaml:"la"`
	Lr float64 `yaml:"lr"`
	Rc float64 `yaml:"rc"`
}

// EnergyConfig holds the agent energy limits.
type EnergyConfig struct {
	Max     float64 `yaml:"max"`
	Initial float64 `yaml:"initial"`
}

// ForagingConfig holds foraging behavior parameters.
type ForagingConfig struct {
	EnergyThreshold float64 `yaml:"energy_threshold"`
	ConsumePerStep  float64 `yaml:"consume_per_step"`
	PullStrength    float64 `yaml:"pull_strength"`
	TiredBelow      float64 `yaml:"tired_below"`
	WeakBelow       float64 `yaml:"weak_below"`
	DyingBelow      float64 `yaml:"dying_below"`
}

// PredationConfig holds hunting parameters.
type PredationConfig struct {
	Cooldown       int     `yaml:"cooldown"`
	RewardFraction float64 `yaml:"reward_fraction"`
	FailPenalty    float64 `yaml:"fail_penalty"`
	PullStrength   float64 `yaml:"pull_strength"`
	EscapeRange    float64 `yaml:"escape_range"`
	EscapeStrength float64 `yaml:"escape_strength"`
}

// GroupsConfig holds clustering parameters.
type GroupsConfig struct {
	MaxGroups  int     `yaml:"max_groups"`
	RCluster   float64 `yaml:"r_cluster"`
	ThetaDeg   float64 `yaml:"theta_deg"`
	Iterations int     `yaml:"iterations"`
	Interval   int     `yaml:"interval"`
}

// GoalConfig holds shared goal seeking.
type GoalConfig struct {
	Enabled  bool      `yaml:"enabled"`
	Position []float64 `yaml:"position"` // x, y, z
	Strength float64   `yaml:"strength"`
}

// ObstaclesConfig holds the avoidance force and static obstacle list.
type ObstaclesConfig struct {
	Strength float64         `yaml:"strength"`
	Decay    float64         `yaml:"decay"`
	Items    []ObstacleEntry `yaml:"items"`
}

// ObstacleEntry describes one obstacle to place at startup.
type ObstacleEntry struct {
	Kind        string    `yaml:"kind"` // sphere, box, cylinder
	Center      []float64 `yaml:"center"`
	Radius      float64   `yaml:"radius"`
	HalfExtents []float64 `yaml:"half_extents"`
	Height      float64   `yaml:"height"`
	Axis        int       `yaml:"axis"`
	Velocity    []float64 `yaml:"velocity"`
}

// PopulationConfig holds the per-role agent counts.
type PopulationConfig struct {
	Followers int `yaml:"followers"`
	Explorers int `yaml:"explorers"`
	Leaders   int `yaml:"leaders"`
	Predators int `yaml:"predators"`
}

// ResourceEntry describes one resource to place at startup.
type ResourceEntry struct {
	Position      []float64 `yaml:"position"`
	Amount        float64   `yaml:"amount"`
	Radius        float64   `yaml:"radius"`
	ReplenishRate float64   `yaml:"replenish_rate"`
	MaxAmount     float64   `yaml:"max_amount"`
}

// LimitsConfig holds the fixed arena capacities.
type LimitsConfig struct {
	MaxResources int `yaml:"max_resources"`
	MaxObstacles int `yaml:"max_obstacles"`
}

// TelemetryConfig holds output settings.
type TelemetryConfig struct {
	Interval   int    `yaml:"interval"` // steps between telemetry rows
	CSVPath    string `yaml:"csv_path"`
	LogLevel   string `yaml:"log_level"`   // debug, info, warn, error
	WindowSize int    `yaml:"window_size"` // samples retained for windowed stats
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults
// if path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded
// defaults. The file is validated against the embedded schema before the
// merge.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := validateSchema(data); err != nil {
			return nil, err
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return cfg, nil
}

// validateSchema checks a raw YAML document against the embedded schema.
func validateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", bytes.NewReader([]byte(schemaJSON))); err != nil {
		return fmt.Errorf("loading config schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

// Params converts the loaded configuration into an engine parameter block.
func (c *Config) Params() (engine.Params, error) {
	boundary, err := engine.ParseBoundaryMode(c.World.Boundary)
	if err != nil {
		return engine.Params{}, err
	}

	p := engine.Params{
		Dims: c.Simulation.Dims,
		Morse: engine.MorseParams{
			Ca: float32(c.Forces.Morse.Ca),
			Cr: float32(c.Forces.Morse.Cr),
			La: float32(c.Forces.Morse.La),
			Lr: float32(c.Forces.Morse.Lr),
			Rc: float32(c.Forces.Morse.Rc),
		},
		Alpha:         float32(c.Forces.Alpha),
		V0:            float32(c.Forces.V0),
		Beta:          float32(c.Forces.Beta),
		Eta:           float32(c.Forces.Eta),
		MinDist:       float32(c.Forces.MinDist),
		RepulsionK:    float32(c.Forces.RepulsionK),
		SpeedCapMult:  float32(c.Forces.SpeedCapMult),
		Boundary:      boundary,
		BoxSize:       float32(c.World.BoxSize),
		WallStiffness: float32(c.World.WallStiffness),
		EnergyMax:     float32(c.Energy.Max),
		InitialEnergy: float32(c.Energy.Initial),
		Foraging: engine.ForagingParams{
			EnergyThreshold: float32(c.Foraging.EnergyThreshold),
			ConsumePerStep:  float32(c.Foraging.ConsumePerStep),
			PullStrength:    float32(c.Foraging.PullStrength),
			TiredBelow:      float32(c.Foraging.TiredBelow),
			WeakBelow:       float32(c.Foraging.WeakBelow),
			DyingBelow:      float32(c.Foraging.DyingBelow),
		},
		Predation: engine.PredationParams{
			Cooldown:       int32(c.Predation.Cooldown),
			RewardFraction: float32(c.Predation.RewardFraction),
			FailPenalty:    float32(c.Predation.FailPenalty),
			PullStrength:   float32(c.Predation.PullStrength),
			EscapeRange:    float32(c.Predation.EscapeRange),
			EscapeStrength: float32(c.Predation.EscapeStrength),
		},
		Groups: engine.GroupParams{
			RCluster:   float32(c.Groups.RCluster),
			ThetaDeg:   float32(c.Groups.ThetaDeg),
			Iterations: c.Groups.Iterations,
			Interval:   int32(c.Groups.Interval),
		},
		Goal: engine.GoalParams{
			Enabled:  c.Goal.Enabled,
			Position: vec3Of(c.Goal.Position),
			Strength: float32(c.Goal.Strength),
		},
		Obstacle: engine.ObstacleParams{
			Strength: float32(c.Obstacles.Strength),
			Decay:    float32(c.Obstacles.Decay),
		},
	}
	return p, p.Validate()
}

// Capacities returns the fixed arena sizes.
func (c *Config) Capacities() engine.Capacities {
	return engine.Capacities{
		MaxGroups:    c.Groups.MaxGroups,
		MaxResources: c.Limits.MaxResources,
		MaxObstacles: c.Limits.MaxObstacles,
	}
}

// AgentTypes expands the population counts into the role slice, followers
// first. Index order fixes the deterministic tie-breaks downstream.
func (c *Config) AgentTypes() []components.AgentType {
	p := c.Population
	types := make([]components.AgentType, 0, p.Followers+p.Explorers+p.Leaders+p.Predators)
	for i := 0; i < p.Followers; i++ {
		types = append(types, components.Follower)
	}
	for i := 0; i < p.Explorers; i++ {
		types = append(types, components.Explorer)
	}
	for i := 0; i < p.Leaders; i++ {
		types = append(types, components.Leader)
	}
	for i := 0; i < p.Predators; i++ {
		types = append(types, components.Predator)
	}
	return types
}

// ResourceConfigs converts the resource entries for the engine.
func (c *Config) ResourceConfigs() []systems.ResourceConfig {
	out := make([]systems.ResourceConfig, 0, len(c.Resources))
	for _, r := range c.Resources {
		out = append(out, systems.ResourceConfig{
			Position:      vec3Of(r.Position),
			Amount:        float32(r.Amount),
			Radius:        float32(r.Radius),
			ReplenishRate: float32(r.ReplenishRate),
			MaxAmount:     float32(r.MaxAmount),
		})
	}
	return out
}

// ObstacleConfigs converts the obstacle entries for the engine.
func (c *Config) ObstacleConfigs() ([]systems.Obstacle, error) {
	out := make([]systems.Obstacle, 0, len(c.Obstacles.Items))
	for _, o := range c.Obstacles.Items {
		var kind systems.ObstacleKind
		switch o.Kind {
		case "sphere":
			kind = systems.ObstacleSphere
		case "box":
			kind = systems.ObstacleBox
		case "cylinder":
			kind = systems.ObstacleCylinder
		default:
			return nil, fmt.Errorf("unknown obstacle kind %q", o.Kind)
		}
		out = append(out, systems.Obstacle{
			Kind:        kind,
			Center:      vec3Of(o.Center),
			Radius:      float32(o.Radius),
			HalfExtents: vec3Of(o.HalfExtents),
			Height:      float32(o.Height),
			Axis:        o.Axis,
			Velocity:    vec3Of(o.Velocity),
		})
	}
	return out, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func vec3Of(v []float64) components.Vec3 {
	var out components.Vec3
	if len(v) > 0 {
		out.X = float32(v[0])
	}
	if len(v) > 1 {
		out.Y = float32(v[1])
	}
	if len(v) > 2 {
		out.Z = float32(v[2])
	}
	return out
}
