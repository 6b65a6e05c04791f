// Package config loads snapcrop settings from a YAML file and the
// environment. Command-line flags are applied on top by the caller.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/Jesssullivan/snapcrop/internal/optimize"
	"gopkg.in/yaml.v3"
)

// Config represents the batch settings.
type Config struct {
	Resolutions string `yaml:"res"`
	Format      string `yaml:"format"`
	Quality     int    `yaml:"quality"`
	Workers     int    `yaml:"workers"`
	LogPath     string `yaml:"log"`
	Verbose     bool   `yaml:"verbose"`
	CatalogPath string `yaml:"catalog"`
	MetricsFile string `yaml:"metrics_file"`
	Progress    bool   `yaml:"progress"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Format:   string(optimize.PNG),
		Quality:  optimize.DefaultQuality,
		Progress: true,
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SNAPCROP_* variables.
func (c *Config) ApplyEnv() error {
	setString(&c.Resolutions, "SNAPCROP_RES")
	setString(&c.Format, "SNAPCROP_FORMAT")
	setString(&c.LogPath, "SNAPCROP_LOG")
	setString(&c.CatalogPath, "SNAPCROP_CATALOG")
	setString(&c.MetricsFile, "SNAPCROP_METRICS_FILE")
	if err := setInt(&c.Quality, "SNAPCROP_QUALITY"); err != nil {
		return err
	}
	return setInt(&c.Workers, "SNAPCROP_WORKERS")
}

// Validate checks that the settings can drive a batch.
func (c *Config) Validate() error {
	if c.Resolutions == "" {
		return fmt.Errorf("res is required")
	}
	if _, err := optimize.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", c.Quality)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
