// File: internal/config/config.go
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Simulation() SimulationConfig
	Recording() RecordingConfig
	Viewer() ViewerConfig
	Archetypes() map[string]BehaviorPreset
	Archetype(name string) (BehaviorPreset, bool)

	// Simulation Setters
	SetSimulationFrames(int)
	SetSimulationDelta(float64)
	SetSimulationSeed(int64)
	SetSimulationWorkers(int)

	// Recording Setters
	SetRecordingPath(string)

	// Database Setters
	SetDatabasePersist(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig              `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg   DatabaseConfig            `mapstructure:"database" yaml:"database"`
	SimulationCfg SimulationConfig          `mapstructure:"simulation" yaml:"simulation"`
	RecordingCfg  RecordingConfig           `mapstructure:"recording" yaml:"recording"`
	ViewerCfg     ViewerConfig              `mapstructure:"viewer" yaml:"viewer"`
	ArchetypesCfg map[string]BehaviorPreset `mapstructure:"archetypes" yaml:"archetypes"`
}

// --- Getters ---

func (c *Config) Logger() LoggerConfig                  { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig              { return c.DatabaseCfg }
func (c *Config) Simulation() SimulationConfig          { return c.SimulationCfg }
func (c *Config) Recording() RecordingConfig            { return c.RecordingCfg }
func (c *Config) Viewer() ViewerConfig                  { return c.ViewerCfg }
func (c *Config) Archetypes() map[string]BehaviorPreset { return c.ArchetypesCfg }

// Archetype looks up a named behavior preset. Names are case sensitive and match
// the keys under "archetypes" in the config file.
func (c *Config) Archetype(name string) (BehaviorPreset, bool) {
	p, ok := c.ArchetypesCfg[name]
	return p, ok
}

// --- Setters ---

func (c *Config) SetSimulationFrames(n int)       { c.SimulationCfg.Frames = n }
func (c *Config) SetSimulationDelta(dt float64)   { c.SimulationCfg.Delta = dt }
func (c *Config) SetSimulationSeed(seed int64)    { c.SimulationCfg.Seed = seed }
func (c *Config) SetSimulationWorkers(n int)      { c.SimulationCfg.Workers = n }
func (c *Config) SetRecordingPath(path string)    { c.RecordingCfg.Path = path }
func (c *Config) SetDatabasePersist(persist bool) { c.DatabaseCfg.Persist = persist }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
	// Persist enables writing runs and agent frames to PostgreSQL.
	Persist bool `mapstructure:"persist" yaml:"persist"`
	// FlushEvery is the number of frames buffered before a COPY into agent_frames.
	FlushEvery int `mapstructure:"flush_every" yaml:"flush_every"`
}

// WorldConfig describes the playable area the same way the scene does: a grid of
// square chunks, each split into a fixed number of cells per side.
type WorldConfig struct {
	ChunkSize float64 `mapstructure:"chunk_size" yaml:"chunk_size"`
	NumChunks int     `mapstructure:"num_chunks" yaml:"num_chunks"`
	Divisions int     `mapstructure:"divisions" yaml:"divisions"`
}

// HalfExtent is half the total world width. The world is centered on the origin.
func (w WorldConfig) HalfExtent() float64 {
	return w.ChunkSize * float64(w.NumChunks) / 2
}

// CellSize is the edge length of one grid cell.
func (w WorldConfig) CellSize() float64 {
	if w.Divisions <= 0 {
		return w.ChunkSize
	}
	return w.ChunkSize / float64(w.Divisions)
}

// RectConfig is an axis aligned rectangle on the ground plane.
type RectConfig struct {
	MinX float64 `mapstructure:"min_x" yaml:"min_x"`
	MaxX float64 `mapstructure:"max_x" yaml:"max_x"`
	MinZ float64 `mapstructure:"min_z" yaml:"min_z"`
	MaxZ float64 `mapstructure:"max_z" yaml:"max_z"`
}

// OffscreenConfig controls reduced-rate updates for agents outside the view rect.
type OffscreenConfig struct {
	Enabled bool       `mapstructure:"enabled" yaml:"enabled"`
	Every   int        `mapstructure:"every" yaml:"every"`
	View    RectConfig `mapstructure:"view" yaml:"view"`
}

// SimulationConfig configures the headless host loop.
type SimulationConfig struct {
	World     WorldConfig     `mapstructure:"world" yaml:"world"`
	Delta     float64         `mapstructure:"delta" yaml:"delta"`
	Frames    int             `mapstructure:"frames" yaml:"frames"`
	Seed      int64           `mapstructure:"seed" yaml:"seed"`
	Workers   int             `mapstructure:"workers" yaml:"workers"`
	Scenario  string          `mapstructure:"scenario" yaml:"scenario"`
	Offscreen OffscreenConfig `mapstructure:"offscreen" yaml:"offscreen"`
}

// RecordingConfig controls the JSONL frame recorder.
type RecordingConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
	// Every records one frame out of N.
	Every int `mapstructure:"every" yaml:"every"`
}

// ViewerConfig tunes the terminal viewer.
type ViewerConfig struct {
	FPS         int    `mapstructure:"fps" yaml:"fps"`
	AgentColor  string `mapstructure:"agent_color" yaml:"agent_color"`
	StaticColor string `mapstructure:"static_color" yaml:"static_color"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "wayfarer")
	v.SetDefault("logger.log_file", "wayfarer.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Database --
	v.SetDefault("database.persist", false)
	v.SetDefault("database.flush_every", 60)

	// -- Simulation --
	v.SetDefault("simulation.world.chunk_size", 72.0)
	v.SetDefault("simulation.world.num_chunks", 2)
	v.SetDefault("simulation.world.divisions", 50)
	v.SetDefault("simulation.delta", 1.0/60.0)
	v.SetDefault("simulation.frames", 3600)
	v.SetDefault("simulation.seed", 1)
	v.SetDefault("simulation.workers", 4)
	v.SetDefault("simulation.offscreen.enabled", false)
	v.SetDefault("simulation.offscreen.every", 4)
	v.SetDefault("simulation.offscreen.view.min_x", -24.0)
	v.SetDefault("simulation.offscreen.view.max_x", 24.0)
	v.SetDefault("simulation.offscreen.view.min_z", -24.0)
	v.SetDefault("simulation.offscreen.view.max_z", 24.0)

	// -- Recording --
	v.SetDefault("recording.every", 1)

	// -- Viewer --
	v.SetDefault("viewer.fps", 30)
	v.SetDefault("viewer.agent_color", "green")
	v.SetDefault("viewer.static_color", "gray")

	// Behavior presets live in their own file.
	setArchetypeDefaults(v)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("database.url", "WAYFARER_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// DATABASE_URL is the conventional fallback used by most PostgreSQL tooling.
	if cfg.DatabaseCfg.Persist && cfg.DatabaseCfg.URL == "" {
		cfg.DatabaseCfg.URL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.SimulationCfg.Validate(); err != nil {
		return fmt.Errorf("simulation configuration invalid: %w", err)
	}
	if c.DatabaseCfg.Persist && c.DatabaseCfg.URL == "" {
		return fmt.Errorf("database.url is required when database.persist is enabled")
	}
	if c.DatabaseCfg.FlushEvery <= 0 {
		return fmt.Errorf("database.flush_every must be a positive integer")
	}
	if c.RecordingCfg.Every <= 0 {
		return fmt.Errorf("recording.every must be a positive integer")
	}
	for name, preset := range c.ArchetypesCfg {
		if err := preset.Validate(); err != nil {
			return fmt.Errorf("archetypes.%s invalid: %w", name, err)
		}
	}
	return nil
}

// Validate checks the simulation configuration.
func (s *SimulationConfig) Validate() error {
	if s.World.ChunkSize <= 0 {
		return fmt.Errorf("world.chunk_size must be positive")
	}
	if s.World.NumChunks <= 0 {
		return fmt.Errorf("world.num_chunks must be a positive integer")
	}
	if s.World.Divisions <= 0 {
		return fmt.Errorf("world.divisions must be a positive integer")
	}
	if s.Delta <= 0 {
		return fmt.Errorf("delta must be positive")
	}
	if s.Frames < 0 {
		return fmt.Errorf("frames must not be negative")
	}
	if s.Workers <= 0 {
		return fmt.Errorf("workers must be a positive integer")
	}
	if s.Offscreen.Enabled {
		if s.Offscreen.Every <= 0 {
			return fmt.Errorf("offscreen.every must be a positive integer")
		}
		if s.Offscreen.View.MinX >= s.Offscreen.View.MaxX || s.Offscreen.View.MinZ >= s.Offscreen.View.MaxZ {
			return fmt.Errorf("offscreen.view must have min < max on both axes")
		}
	}
	return nil
}
