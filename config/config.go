// Package config holds the run configuration of the stub emulator.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/deobf/x86emu/loader/cache"
)

// CacheConfig configures the block cache in front of the image bytes.
type CacheConfig struct {
	// Enabled routes cursor reads through the cache.
	Enabled bool `json:"enabled"`

	// Size is the cache capacity in bytes. Default: 16KB.
	Size int `json:"size"`

	// Associativity is the number of ways per set. Default: 4.
	Associativity int `json:"associativity"`

	// BlockSize is the block size in bytes. Default: 64.
	BlockSize int `json:"block_size"`
}

// Config holds the settings for a batch of stub emulations.
type Config struct {
	// MaxInstructions bounds the instructions executed per stub.
	// 0 means no limit. Default: 4096, far above any generated stub.
	MaxInstructions uint64 `json:"max_instructions"`

	// Trace prints every executed instruction.
	Trace bool `json:"trace"`

	// Cache configures the image block cache.
	Cache CacheConfig `json:"cache"`
}

// Default returns a Config with default values.
func Default() *Config {
	def := cache.DefaultConfig()
	return &Config{
		MaxInstructions: 4096,
		Trace:           false,
		Cache: CacheConfig{
			Enabled:       false,
			Size:          def.Size,
			Associativity: def.Associativity,
			BlockSize:     def.BlockSize,
		},
	}
}

// Load loads a Config from a JSON file. Fields missing from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Save writes the Config to a JSON file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the cache geometry when the cache is enabled.
func (c *Config) Validate() error {
	if !c.Cache.Enabled {
		return nil
	}
	if err := c.CacheGeometry().Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// CacheGeometry returns the cache settings as a cache.Config.
func (c *Config) CacheGeometry() cache.Config {
	return cache.Config{
		Size:          c.Cache.Size,
		Associativity: c.Cache.Associativity,
		BlockSize:     c.Cache.BlockSize,
	}
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
