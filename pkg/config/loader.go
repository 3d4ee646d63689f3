package config

import (
	"os"
	"path/filepath"

	"github.com/bastiangx/kanaserve/internal/utils"
	"github.com/charmbracelet/log"
)

const defaultConfigName = "config.toml"

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	pr, err := utils.NewPathResolver()
	if err != nil {
		return "", err
	}
	return pr.GetConfigPath(defaultConfigName)
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/kanaserve/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}

	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}
	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	return LoadConfig(configPath)
}

// LoadConfig loads from a TOML or YAML file. Keys missing from the file keep
// their defaults. A TOML file that fails typed decoding is salvaged section
// by section.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if utils.IsYAMLPath(configPath) {
		if err := utils.LoadYAMLFile(configPath, config); err != nil {
			log.Warnf("YAML parsing error in %s: %v. Using all defaults.", configPath, err)
			return DefaultConfig(), nil
		}
		config.Sanitize()
		return config, nil
	}

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	config.Sanitize()
	return config, nil
}

// tryPartialParse attempts to parse a TOML file
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if serverSection, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(serverSection, &config.Server)
	}
	if dictSection, ok := utils.ExtractSection(tempConfig, "dict"); ok {
		extractDictConfig(dictSection, &config.Dict)
	}
	if convertSection, ok := utils.ExtractSection(tempConfig, "convert"); ok {
		extractConvertConfig(convertSection, config)
	}
	if cliSection, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(cliSection, &config.CLI)
	}
	config.Sanitize()
	return config, nil
}

// extractServerConfig extracts server configuration from a map
func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_sessions"); ok {
		server.MaxSessions = val
	}
	if val, ok := utils.ExtractInt64(data, "max_buffer"); ok {
		server.MaxBuffer = val
	}
	if val, ok := utils.ExtractBool(data, "watch_config"); ok {
		server.WatchConfig = val
	}
}

// extractDictConfig extracts dictionary configuration from a map
func extractDictConfig(data map[string]any, dict *DictConfig) {
	if val, ok := utils.ExtractString(data, "path"); ok {
		dict.Path = val
	}
	if val, ok := utils.ExtractString(data, "weights_path"); ok {
		dict.WeightsPath = val
	}
	if val, ok := utils.ExtractInt64(data, "chunk_size"); ok {
		dict.ChunkSize = val
	}
	if val, ok := utils.ExtractInt64(data, "max_entries_validation"); ok {
		dict.MaxEntriesValidation = val
	}
}

// extractConvertConfig extracts conversion options from a map
func extractConvertConfig(data map[string]any, config *Config) {
	opts := &config.Convert
	if val, ok := utils.ExtractInt64(data, "max_candidates"); ok {
		opts.MaxCandidates = val
	}
	if val, ok := utils.ExtractInt64(data, "beam_width"); ok {
		opts.BeamWidth = val
	}
	if val, ok := utils.ExtractBool(data, "prediction"); ok {
		opts.Prediction = val
	}
	if val, ok := utils.ExtractInt64(data, "predict_limit"); ok {
		opts.PredictLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "prediction_cost"); ok {
		opts.PredictionCost = int64(val)
	}
	if val, ok := utils.ExtractBool(data, "kana_fallback"); ok {
		opts.KanaFallback = val
	}
	if val, ok := utils.ExtractInt64(data, "uncovered_cost"); ok {
		opts.UncoveredCost = int64(val)
	}
	if val, ok := utils.ExtractInt64(data, "cache_size"); ok {
		opts.CacheSize = val
	}
}

// extractCliConfig extracts CLI config from a map
func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		cli.DefaultLimit = val
	}
	if val, ok := utils.ExtractString(data, "default_context"); ok {
		cli.DefaultContext = val
	}
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(defaultPath)); err != nil {
		return err
	}
	return SaveConfig(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file, or YAML for .yaml/.yml paths
func SaveConfig(config *Config, configPath string) error {
	if utils.IsYAMLPath(configPath) {
		return utils.SaveYAMLFile(config, configPath)
	}
	return utils.SaveTOMLFile(config, configPath)
}
