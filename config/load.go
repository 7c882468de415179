package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Jainayushgit/store-provisioner/errors"
)

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the provisioner's configuration using Viper. Results are cached;
// call Reset() to force a reload.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access.
func GetViper() *viper.Viper {
	return initViper()
}

// LoadFromFile loads configuration from a specific file path, bypassing the
// system/user/project search order and environment variables.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	return &cfg, nil
}

// Reset clears the cached configuration. Useful for testing.
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// initViper initializes Viper with configuration sources and defaults.
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("PROVISIONER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// findProjectConfig searches for provisioner.toml by walking up the
// directory tree from the current working directory.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, "provisioner.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// mergeConfigFiles manually merges configuration files in precedence order:
// system < user < project < environment variables.
func mergeConfigFiles(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()

	configPaths := []string{
		"/etc/provisioner/config.toml",
		filepath.Join(homeDir, ".provisioner", "config.toml"),
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		configPaths = append(configPaths, projectConfig)
	}

	for _, configPath := range configPaths {
		if _, err := os.Stat(configPath); err != nil {
			continue
		}

		tempViper := viper.New()
		tempViper.SetConfigFile(configPath)
		tempViper.SetConfigType("toml")

		if err := tempViper.ReadInConfig(); err != nil {
			continue
		}

		// Merge into the config layer (not Set, which would outrank env vars);
		// later files override earlier ones.
		if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
			continue
		}
	}
}

// Get returns a configuration value using dot notation.
func Get(key string) interface{} {
	return initViper().Get(key)
}

// GetString returns a configuration value as a string using dot notation.
func GetString(key string) string {
	return initViper().GetString(key)
}

// GetBool returns a configuration value as a bool using dot notation.
func GetBool(key string) bool {
	return initViper().GetBool(key)
}

// GetInt returns a configuration value as an int using dot notation.
func GetInt(key string) int {
	return initViper().GetInt(key)
}

// Set sets a configuration value using dot notation (runtime override).
func Set(key string, value interface{}) {
	initViper().Set(key, value)
}
