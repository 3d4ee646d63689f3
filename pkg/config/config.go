/*
Package config manages TOML (or YAML) config for kanaserve.
*/
package config

import (
	"github.com/bastiangx/kanaserve/internal/utils"
	"github.com/bastiangx/kanaserve/pkg/convert"
	"github.com/bastiangx/kanaserve/pkg/dictionary"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Server  ServerConfig    `toml:"server" yaml:"server"`
	Dict    DictConfig      `toml:"dict" yaml:"dict"`
	Convert convert.Options `toml:"convert" yaml:"convert"`
	CLI     CliConfig       `toml:"cli" yaml:"cli"`
}

// ServerConfig has server related options.
type ServerConfig struct {
	MaxSessions int  `toml:"max_sessions" yaml:"max_sessions"`
	MaxBuffer   int  `toml:"max_buffer" yaml:"max_buffer"`
	WatchConfig bool `toml:"watch_config" yaml:"watch_config"`
}

// DictConfig holds dictionary and weight resource options.
type DictConfig struct {
	Path                 string `toml:"path" yaml:"path"`
	WeightsPath          string `toml:"weights_path" yaml:"weights_path"`
	ChunkSize            int    `toml:"chunk_size" yaml:"chunk_size"`
	MaxEntriesValidation int    `toml:"max_entries_validation" yaml:"max_entries_validation"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit   int    `toml:"default_limit" yaml:"default_limit"`
	DefaultContext string `toml:"default_context" yaml:"default_context"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MaxSessions: 256,
			MaxBuffer:   256,
			WatchConfig: true,
		},
		Dict: DictConfig{
			Path:                 "data",
			WeightsPath:          "",
			ChunkSize:            50000,
			MaxEntriesValidation: dictionary.DefaultMaxEntries,
		},
		Convert: convert.DefaultOptions(),
		CLI: CliConfig{
			DefaultLimit:   10,
			DefaultContext: "",
		},
	}
}

// EngineConfig converts the loaded settings into engine settings. Resource
// paths are resolved through pr when it is non-nil.
func (c *Config) EngineConfig(pr *utils.PathResolver) convert.Config {
	dictPath, weightsPath := c.Dict.Path, c.Dict.WeightsPath
	if pr != nil {
		dictPath = pr.ResolveResource(dictPath)
		weightsPath = pr.ResolveResource(weightsPath)
	}
	return convert.Config{
		DictionaryPath: dictPath,
		WeightPath:     weightsPath,
		MaxEntries:     c.Dict.MaxEntriesValidation,
		Options:        c.Convert,
	}
}

// Sanitize replaces out-of-range values with their defaults.
func (c *Config) Sanitize() {
	def := DefaultConfig()
	if c.Server.MaxSessions <= 0 {
		log.Warnf("Invalid server.max_sessions %d, using %d", c.Server.MaxSessions, def.Server.MaxSessions)
		c.Server.MaxSessions = def.Server.MaxSessions
	}
	if c.Server.MaxBuffer <= 0 {
		log.Warnf("Invalid server.max_buffer %d, using %d", c.Server.MaxBuffer, def.Server.MaxBuffer)
		c.Server.MaxBuffer = def.Server.MaxBuffer
	}
	if c.Dict.ChunkSize <= 0 {
		c.Dict.ChunkSize = def.Dict.ChunkSize
	}
	if c.Dict.MaxEntriesValidation <= 0 {
		c.Dict.MaxEntriesValidation = def.Dict.MaxEntriesValidation
	}
	if c.CLI.DefaultLimit <= 0 {
		c.CLI.DefaultLimit = def.CLI.DefaultLimit
	}
	c.Convert = c.Convert.Normalize()
}
