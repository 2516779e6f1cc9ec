// Package config loads the chat-db configuration file. Flags override
// file values, file values override defaults; a missing file is not an
// error.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration.
type Config struct {
	Server   string `yaml:"server"`
	Nick     string `yaml:"nick"`
	Theme    string `yaml:"theme"`
	LogLevel string `yaml:"log-level"`
	LogFile  string `yaml:"log-file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:   "http://localhost:5000",
		Theme:    "auto",
		LogLevel: "info",
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine user config directory")
	}
	return filepath.Join(dir, "chat-db", "config.yaml"), nil
}

// Load reads the configuration at path on top of the defaults. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return cfg, nil
}
