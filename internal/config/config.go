// Package config loads and validates the optional tofile YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds the parsed configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version     int    `yaml:"version"`
	RawMode     string `yaml:"mode"`      // octal, e.g. "0644"
	RawMaxInput int64  `yaml:"max_input"` // bytes, 0 = unlimited
	LogLevel    string `yaml:"log_level"` // zerolog level name, e.g. "debug"
}

// Mode returns the configured file mode, or 0 to let the capturer apply
// its default.
func (c *Config) Mode() os.FileMode {
	if c.RawMode != "" {
		m, err := parseMode(c.RawMode)
		if err == nil {
			return m
		}
	}
	return 0
}

// MaxInputBytes returns the configured input cap, or 0 for unlimited.
func (c *Config) MaxInputBytes() int64 {
	if c.RawMaxInput > 0 {
		return c.RawMaxInput
	}
	return 0
}

// Level returns the configured log level. An empty level disables logging.
func (c *Config) Level() zerolog.Level {
	if c.LogLevel == "" {
		return zerolog.Disabled
	}
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.Disabled
	}
	return lvl
}

// Validate reports the first malformed field.
func (c *Config) Validate() error {
	if c.RawMode != "" {
		if _, err := parseMode(c.RawMode); err != nil {
			return err
		}
	}
	if c.RawMaxInput < 0 {
		return fmt.Errorf("max_input must not be negative, got %d", c.RawMaxInput)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	return nil
}

// Load reads the config file at path. An empty path yields a default Config;
// a named file that does not exist is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return cfg, nil
}

func parseMode(s string) (os.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("mode %q is not an octal permission", s)
	}
	if v == 0 || v > 0o777 {
		return 0, fmt.Errorf("mode %q out of range", s)
	}
	return os.FileMode(v), nil
}
