// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/numeric"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Run          RunConfig          `yaml:"run"`
	Types        TypesConfig        `yaml:"types"`
	Grid         GridConfig         `yaml:"grid"`
	Densities    map[string]float64 `yaml:"densities"`     // single-character species -> density
	DensitiesCSV string             `yaml:"densities_csv"` // optional; overrides entries of Densities
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Output       OutputConfig       `yaml:"output"`
	Viewer       ViewerConfig       `yaml:"viewer"`
	Optimize     OptimizeConfig     `yaml:"optimize"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// RunConfig holds the outer loop parameters.
type RunConfig struct {
	Steps         int   `yaml:"steps"`
	Seed          int64 `yaml:"seed"`
	MaxFlowRounds int   `yaml:"max_flow_rounds"` // 0 = unbounded
}

// TypesConfig holds the numeric representation of each quantity, in the
// FLOAT / DOUBLE / FIXED(w,f) / FAST_FIXED(w,f) grammar.
type TypesConfig struct {
	Pressure string `yaml:"pressure"`
	Velocity string `yaml:"velocity"`
	Flow     string `yaml:"flow"`
}

// GridConfig holds grid dimensions and the source of the field map.
type GridConfig struct {
	Size         string         `yaml:"size"` // S(rows,cols)
	AllowDynamic bool           `yaml:"allow_dynamic"`
	FieldPath    string         `yaml:"field_path"`
	Generate     GenerateConfig `yaml:"generate"`
}

// GenerateConfig holds procedural map parameters.
type GenerateConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Seed              int64   `yaml:"seed"` // 0 = random
	Scale             float64 `yaml:"scale"`
	Octaves           int     `yaml:"octaves"`
	ObstacleThreshold float64 `yaml:"obstacle_threshold"`
	FluidLevel        float64 `yaml:"fluid_level"` // fraction of interior rows filled from the top
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         int `yaml:"stats_window"` // iterations per window
	BookmarkHistorySize int `yaml:"bookmark_history_size"`
	PerfCollectorWindow int `yaml:"perf_collector_window"`
}

// OutputConfig holds snapshot frame output settings.
type OutputConfig struct {
	Frames     bool   `yaml:"frames"`
	FramesFile string `yaml:"frames_file"` // under the output directory
}

// ViewerConfig holds raylib viewer settings.
type ViewerConfig struct {
	CellSize      int `yaml:"cell_size"`
	TargetFPS     int `yaml:"target_fps"`
	StepsPerFrame int `yaml:"steps_per_frame"`
}

// OptimizeConfig holds density tuning parameters for cmd/optimize.
type OptimizeConfig struct {
	TargetMoveRate float64 `yaml:"target_move_rate"`
	Seeds          int     `yaml:"seeds"`
	Steps          int     `yaml:"steps"`
	MaxEvals       int     `yaml:"max_evals"`
	AirMin         float64 `yaml:"air_min"`
	AirMax         float64 `yaml:"air_max"`
	FluidMin       float64 `yaml:"fluid_min"`
	FluidMax       float64 `yaml:"fluid_max"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Pressure  numeric.Spec
	Velocity  numeric.Spec
	Flow      numeric.Spec
	Size      field.Size
	Densities field.Densities
}

// GenConfig converts the generator section for field.Generate.
func (g GenerateConfig) GenConfig() field.GenConfig {
	return field.GenConfig{
		Seed:              g.Seed,
		Scale:             g.Scale,
		Octaves:           g.Octaves,
		ObstacleThreshold: g.ObstacleThreshold,
		FluidLevel:        g.FluidLevel,
	}
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
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

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
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
		// Only overwrites fields present in the file; density entries merge.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.ComputeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ComputeDerived parses the grammar strings and builds the density table.
// Callers that change fields after Load (command-line overrides) call it
// again.
func (c *Config) ComputeDerived() error {
	var err error
	if c.Derived.Pressure, err = numeric.ParseSpec(c.Types.Pressure); err != nil {
		return fmt.Errorf("types.pressure: %w", err)
	}
	if c.Derived.Velocity, err = numeric.ParseSpec(c.Types.Velocity); err != nil {
		return fmt.Errorf("types.velocity: %w", err)
	}
	if c.Derived.Flow, err = numeric.ParseSpec(c.Types.Flow); err != nil {
		return fmt.Errorf("types.flow: %w", err)
	}
	if c.Derived.Size, err = field.ParseSize(c.Grid.Size); err != nil {
		return fmt.Errorf("grid.size: %w", err)
	}

	var rho field.Densities
	for species, density := range c.Densities {
		if len(species) != 1 {
			return fmt.Errorf("densities: species %q must be a single character", species)
		}
		rho[species[0]] = density
	}
	if c.DensitiesCSV != "" {
		if rho, err = field.LoadDensityFile(c.DensitiesCSV, rho); err != nil {
			return fmt.Errorf("densities_csv: %w", err)
		}
	}
	c.Derived.Densities = rho

	if c.Telemetry.StatsWindow < 1 {
		c.Telemetry.StatsWindow = 1
	}
	return nil
}

// SetDensities replaces the density map from a table, keeping only non-zero
// entries.
func (c *Config) SetDensities(rho field.Densities) {
	c.Densities = make(map[string]float64)
	for i, d := range rho {
		if d != 0 {
			c.Densities[string([]byte{byte(i)})] = d
		}
	}
	c.Derived.Densities = rho
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
