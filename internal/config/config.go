package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server      ServerConfig      `toml:"server"`
	Simulation  SimulationConfig  `toml:"simulation"`
	Database    DatabaseConfig    `toml:"database"`
	Persistence PersistenceConfig `toml:"persistence"`
	Scripting   ScriptingConfig   `toml:"scripting"`
	Data        DataConfig        `toml:"data"`
	Logging     LoggingConfig     `toml:"logging"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	ID        int    `toml:"id"`
	StartTime int64  // set at boot, not from config
}

type SimulationConfig struct {
	TickRate        time.Duration `toml:"tick_rate"`
	ChunkTiles      int           `toml:"chunk_tiles"`
	TileSideMeters  float64       `toml:"tile_side_meters"`
	TileDepthMeters float64       `toml:"tile_depth_meters"`
	ChunkHashSize   int           `toml:"chunk_hash_size"` // power of two
	MaxEntities     int           `toml:"max_entities"`

	RegionMaxEntities int     `toml:"region_max_entities"`
	RegionHashSize    int     `toml:"region_hash_size"` // power of two, >= region_max_entities
	RegionApron       float64 `toml:"region_apron_meters"`
	CameraTilesX      int     `toml:"camera_tiles_x"`
	CameraTilesY      int     `toml:"camera_tiles_y"`

	ArenaBytes      int `toml:"arena_bytes"`       // permanent storage budget
	FrameArenaBytes int `toml:"frame_arena_bytes"` // per-frame region budget
	RuleBuckets     int `toml:"rule_buckets"`      // power of two
	MaxOverlaps     int `toml:"max_overlaps"`

	SpatialPolicy string `toml:"spatial_policy"` // "immediate" or "deferred"
	Seed          int64  `toml:"seed"`
	Rooms         int    `toml:"rooms"` // rooms generated when no world script is present
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables persistence
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type PersistenceConfig struct {
	Enabled               bool `toml:"enabled"`
	SnapshotIntervalTicks int  `toml:"snapshot_interval_ticks"`
	Resume                bool `toml:"resume"` // rebuild the world from the latest snapshot
	QueueSize             int  `toml:"queue_size"`
}

type ScriptingConfig struct {
	Dir string `toml:"dir"`
}

type DataConfig struct {
	Shapes string `toml:"shapes"` // empty uses built-in shapes
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	s := c.Simulation
	if s.TickRate <= 0 {
		errs = append(errs, errors.New("simulation.tick_rate must be positive"))
	}
	if s.ChunkTiles <= 0 {
		errs = append(errs, errors.New("simulation.chunk_tiles must be positive"))
	}
	if s.TileSideMeters <= 0 || s.TileDepthMeters <= 0 {
		errs = append(errs, errors.New("simulation tile dimensions must be positive"))
	}
	for name, v := range map[string]int{
		"simulation.chunk_hash_size":  s.ChunkHashSize,
		"simulation.region_hash_size": s.RegionHashSize,
		"simulation.rule_buckets":     s.RuleBuckets,
	} {
		if !isPowerOfTwo(v) {
			errs = append(errs, fmt.Errorf("%s must be a power of two, got %d", name, v))
		}
	}
	if s.MaxEntities <= 0 || s.RegionMaxEntities <= 0 {
		errs = append(errs, errors.New("entity capacities must be positive"))
	}
	if s.RegionHashSize < s.RegionMaxEntities {
		errs = append(errs, fmt.Errorf("simulation.region_hash_size %d smaller than region_max_entities %d",
			s.RegionHashSize, s.RegionMaxEntities))
	}
	if s.ArenaBytes <= 0 || s.FrameArenaBytes <= 0 {
		errs = append(errs, errors.New("arena sizes must be positive"))
	}
	if s.MaxOverlaps <= 0 {
		errs = append(errs, errors.New("simulation.max_overlaps must be positive"))
	}
	if s.SpatialPolicy != "immediate" && s.SpatialPolicy != "deferred" {
		errs = append(errs, fmt.Errorf("simulation.spatial_policy %q is not immediate or deferred", s.SpatialPolicy))
	}
	if s.Rooms <= 0 {
		errs = append(errs, errors.New("simulation.rooms must be positive"))
	}
	if c.Persistence.Enabled && c.Persistence.SnapshotIntervalTicks <= 0 {
		errs = append(errs, errors.New("persistence.snapshot_interval_ticks must be positive"))
	}
	return errors.Join(errs...)
}

func isPowerOfTwo(v int) bool { return v > 0 && v&(v-1) == 0 }

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "tilesim",
			ID:   1,
		},
		Simulation: SimulationConfig{
			TickRate:          time.Second / 60,
			ChunkTiles:        16,
			TileSideMeters:    1.4,
			TileDepthMeters:   3.0,
			ChunkHashSize:     4096,
			MaxEntities:       100000,
			RegionMaxEntities: 4096,
			RegionHashSize:    4096,
			RegionApron:       15,
			CameraTilesX:      17,
			CameraTilesY:      9,
			ArenaBytes:        256 << 20,
			FrameArenaBytes:   16 << 20,
			RuleBuckets:       256,
			MaxOverlaps:       16,
			SpatialPolicy:     "immediate",
			Seed:              1234,
			Rooms:             8,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Persistence: PersistenceConfig{
			Enabled:               false,
			SnapshotIntervalTicks: 600,
			QueueSize:             2,
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
