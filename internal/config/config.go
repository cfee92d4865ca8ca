// Package config loads hmdoc settings from a YAML file, a .env file and
// HMDOC_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hmdoc/internal/inline"
	"hmdoc/internal/logging"
	"hmdoc/internal/publish"
)

const envPrefix = "HMDOC_"

// Config is the full application configuration.
type Config struct {
	DataDir    string  `yaml:"data_dir"`
	DBPath     string  `yaml:"db_path"`
	LogLevel   string  `yaml:"log_level"`
	OffsetUnit string  `yaml:"offset_unit"`
	ImportDir  string  `yaml:"import_dir"`
	Publish    Publish `yaml:"publish"`
}

// Publish lists publish targets and the schedules that drive them.
type Publish struct {
	Targets   []publish.TargetConfig `yaml:"targets"`
	Schedules []Schedule             `yaml:"schedules"`
}

// Schedule publishes Document (or every document when empty) on a cron
// expression.
type Schedule struct {
	Cron     string `yaml:"cron"`
	Document string `yaml:"document"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	dataDir := ".hmdoc"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".hmdoc")
	}
	return &Config{
		DataDir:    dataDir,
		LogLevel:   "info",
		OffsetUnit: inline.Codepoints.String(),
	}
}

// Load builds the configuration. path may be empty; a missing .env file is
// not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "hmdoc.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.DataDir, "DATA_DIR")
	setFromEnv(&cfg.DBPath, "DB_PATH")
	setFromEnv(&cfg.LogLevel, "LOG_LEVEL")
	setFromEnv(&cfg.OffsetUnit, "OFFSET_UNIT")
	setFromEnv(&cfg.ImportDir, "IMPORT_DIR")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		*dst = v
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if _, err := inline.ParseOffsetUnit(c.OffsetUnit); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	names := make(map[string]bool)
	for i, t := range c.Publish.Targets {
		if t.Driver == "" {
			errs = append(errs, fmt.Errorf("publish target %d: driver is required", i))
		}
		name := t.Name
		if name == "" {
			name = t.Driver
		}
		if names[name] {
			errs = append(errs, fmt.Errorf("publish target %q is defined twice", name))
		}
		names[name] = true
	}
	for i, s := range c.Publish.Schedules {
		if strings.TrimSpace(s.Cron) == "" {
			errs = append(errs, fmt.Errorf("publish schedule %d: cron is required", i))
		}
	}
	return errors.Join(errs...)
}

// Unit returns the parsed offset unit. Validate has already checked it.
func (c *Config) Unit() inline.OffsetUnit {
	u, _ := inline.ParseOffsetUnit(c.OffsetUnit)
	return u
}
