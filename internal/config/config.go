// Package config handles colltool configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// Config holds all tool settings.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Decode  DecodeConfig  `yaml:"decode"`
	Render  RenderConfig  `yaml:"render"`
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig holds collision data locations.
type DataConfig struct {
	CollisionDir string `yaml:"collision_dir"` // Root scanned by check/search
}

// DecodeConfig bounds decoding work.
type DecodeConfig struct {
	MaxOctreeDepth      int `yaml:"max_octree_depth"`
	MaxOctreeNodes      int `yaml:"max_octree_nodes"`
	MaxOctreeReferences int `yaml:"max_octree_references"` // Prism indices summed over all leaves
	Workers             int `yaml:"workers"`               // Files decoded in parallel
}

// RenderConfig holds preview rendering settings.
type RenderConfig struct {
	Size       int    `yaml:"size"`       // Longest image edge in pixels
	Descriptor int    `yaml:"descriptor"` // Attribute field id used for coloring
	Selector   uint32 `yaml:"selector"`   // Highlighted value for range fields
	OutputDir  string `yaml:"output_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			CollisionDir: "Stage",
		},
		Decode: DecodeConfig{
			MaxOctreeDepth:      16,
			MaxOctreeNodes:      1 << 20,
			MaxOctreeReferences: 1 << 22,
			Workers:             4,
		},
		Render: RenderConfig{
			Size:       1024,
			Descriptor: 0,
			Selector:   0,
			OutputDir:  ".",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports settings that would make decoding or rendering fail.
func (c *Config) Validate() error {
	var errs []error
	if c.Decode.MaxOctreeDepth <= 0 {
		errs = append(errs, fmt.Errorf("decode.max_octree_depth must be positive, got %d", c.Decode.MaxOctreeDepth))
	}
	if c.Decode.MaxOctreeNodes <= 0 {
		errs = append(errs, fmt.Errorf("decode.max_octree_nodes must be positive, got %d", c.Decode.MaxOctreeNodes))
	}
	if c.Decode.MaxOctreeReferences <= 0 {
		errs = append(errs, fmt.Errorf("decode.max_octree_references must be positive, got %d", c.Decode.MaxOctreeReferences))
	}
	if c.Decode.Workers <= 0 {
		errs = append(errs, fmt.Errorf("decode.workers must be positive, got %d", c.Decode.Workers))
	}
	if c.Render.Size < 16 || c.Render.Size > 8192 {
		errs = append(errs, fmt.Errorf("render.size must be within [16, 8192], got %d", c.Render.Size))
	}
	if c.Render.Descriptor < 0 || c.Render.Descriptor >= 32 {
		errs = append(errs, fmt.Errorf("render.descriptor must be within [0, 32), got %d", c.Render.Descriptor))
	}
	return errors.Join(errs...)
}
