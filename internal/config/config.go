// Package config loads the layoutd TOML configuration file and converts it
// into the option structs the library packages consume. Every field has a
// default, so an empty or missing file yields a working local setup.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/layout"
	"github.com/citegraph/layoutd/pkg/pipeline"
	"github.com/citegraph/layoutd/pkg/store"
)

// Duration wraps time.Duration so TOML files can use strings like "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full layoutd configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Mongo    MongoConfig    `toml:"mongo"`
	Redis    RedisConfig    `toml:"redis"`
	Layout   LayoutConfig   `toml:"layout"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// MongoConfig configures the edge source and position sink.
type MongoConfig struct {
	URI                 string   `toml:"uri"`
	Database            string   `toml:"database"`
	EdgesCollection     string   `toml:"edges_collection"`
	PositionsCollection string   `toml:"positions_collection"`
	Timeout             Duration `toml:"timeout"`
}

// RedisConfig configures the layout cache.
type RedisConfig struct {
	Enabled   bool   `toml:"enabled"`
	URL       string `toml:"url"`
	KeyPrefix string `toml:"key_prefix"`
}

// LayoutConfig configures the layout engine.
type LayoutConfig struct {
	Algorithm         string  `toml:"algorithm"`
	Workers           int     `toml:"workers"`
	BlockWidth        float64 `toml:"block_width"`
	BlockHeight       float64 `toml:"block_height"`
	HorizontalGap     float64 `toml:"horizontal_gap"`
	VerticalGap       float64 `toml:"vertical_gap"`
	UsePolylines      bool    `toml:"use_polylines"`
	PolylineThreshold int     `toml:"polyline_threshold"`
	CompactLayout     bool    `toml:"compact_layout"`
	MaxIterations     int     `toml:"max_iterations"`

	// EnableSIMD, EnableGPU, and MemoryStrategy are accepted for
	// compatibility with older config files and echoed in layout metadata.
	EnableSIMD     bool   `toml:"enable_simd"`
	EnableGPU      bool   `toml:"enable_gpu"`
	MemoryStrategy string `toml:"memory_strategy"`
}

// PipelineConfig configures the batch job.
type PipelineConfig struct {
	BatchSize     int64 `toml:"batch_size"`
	SaveBatchSize int   `toml:"save_batch_size"`
	RouteEdges    bool  `toml:"route_edges"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	layoutDefaults := layout.DefaultOptions()
	pipelineDefaults := pipeline.DefaultOptions()
	mongoDefaults := store.DefaultMongoConfig()

	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Mongo: MongoConfig{
			URI:                 mongoDefaults.URI,
			Database:            mongoDefaults.Database,
			EdgesCollection:     mongoDefaults.EdgesCollection,
			PositionsCollection: mongoDefaults.PositionsCollection,
			Timeout:             Duration(mongoDefaults.Timeout),
		},
		Redis: RedisConfig{
			Enabled: false,
			URL:     "redis://localhost:6379/0",
		},
		Layout: LayoutConfig{
			Algorithm:         layoutDefaults.Algorithm,
			Workers:           layoutDefaults.Workers,
			BlockWidth:        layoutDefaults.Placement.BlockWidth,
			BlockHeight:       layoutDefaults.Placement.BlockHeight,
			HorizontalGap:     layoutDefaults.Placement.HorizontalGap,
			VerticalGap:       layoutDefaults.Placement.VerticalGap,
			UsePolylines:      layoutDefaults.Routing.UsePolylines,
			PolylineThreshold: layoutDefaults.Routing.PolylineThreshold,
			CompactLayout:     layoutDefaults.Optimize.CompactLayout,
			MaxIterations:     layoutDefaults.Optimize.MaxIterations,
		},
		Pipeline: PipelineConfig{
			BatchSize:     pipelineDefaults.BatchSize,
			SaveBatchSize: pipelineDefaults.SaveBatchSize,
			RouteEdges:    pipelineDefaults.RouteEdges,
		},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "config file %s", path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parsing config file %s", path)
	}
	return cfg, nil
}

// LayoutOptions converts the config into engine options.
func (c *Config) LayoutOptions() layout.Options {
	return layout.Options{
		Algorithm: c.Layout.Algorithm,
		Workers:   c.Layout.Workers,
		Placement: layout.Config{
			BlockWidth:    c.Layout.BlockWidth,
			BlockHeight:   c.Layout.BlockHeight,
			HorizontalGap: c.Layout.HorizontalGap,
			VerticalGap:   c.Layout.VerticalGap,
		},
		Optimize: layout.OptimizeOptions{
			CompactLayout: c.Layout.CompactLayout,
			MaxIterations: c.Layout.MaxIterations,
		},
		Routing: layout.RoutingOptions{
			UsePolylines:      c.Layout.UsePolylines,
			PolylineThreshold: c.Layout.PolylineThreshold,
		},
		EnableSIMD:     c.Layout.EnableSIMD,
		EnableGPU:      c.Layout.EnableGPU,
		MemoryStrategy: c.Layout.MemoryStrategy,
	}
}

// PipelineOptions converts the config into batch job options.
func (c *Config) PipelineOptions() pipeline.Options {
	layoutOpts := c.LayoutOptions()
	return pipeline.Options{
		BatchSize:     c.Pipeline.BatchSize,
		SaveBatchSize: c.Pipeline.SaveBatchSize,
		RouteEdges:    c.Pipeline.RouteEdges,
		Placement:     layoutOpts.Placement,
		Optimize:      layoutOpts.Optimize,
		Routing:       layoutOpts.Routing,
	}
}

// MongoConfig converts the config into a store config.
func (c *Config) MongoConfig() store.MongoConfig {
	return store.MongoConfig{
		URI:                 c.Mongo.URI,
		Database:            c.Mongo.Database,
		EdgesCollection:     c.Mongo.EdgesCollection,
		PositionsCollection: c.Mongo.PositionsCollection,
		Timeout:             c.Mongo.Timeout.Std(),
	}
}
