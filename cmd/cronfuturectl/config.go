package main

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// JobConfig describes one scheduled shell command: a name used to key its
// snapshot file, an extended cron pattern (see future.ParsePattern), and the
// command line to run through "sh -c" on each tick.
type JobConfig struct {
	Name     string `mapstructure:"name" yaml:"name" validate:"required"`
	Pattern  string `mapstructure:"pattern" yaml:"pattern" validate:"required"`
	Command  string `mapstructure:"command" yaml:"command" validate:"required"`
	Disabled bool   `mapstructure:"disabled" yaml:"disabled"`
}

// Config is the top-level shape of cronfuturectl's config file. The yaml
// tags mirror the mapstructure ones so cancel's read-modify-write round
// trip through go.yaml.in/yaml/v3 produces the same keys viper expects.
type Config struct {
	SnapshotDir string      `mapstructure:"snapshot_dir" yaml:"snapshot_dir" validate:"required"`
	Jobs        []JobConfig `mapstructure:"jobs" yaml:"jobs" validate:"dive"`
}

var validate = validator.New()

// LoadConfig reads cronfuturectl's configuration from path: defaults, then
// the file's contents over them, then CRONFUTURECTL_* environment variables
// over both, the same three-tier arrangement edgard-murailobot's config.Load
// uses.
func LoadConfig(path string) (*Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return unmarshalValidate(v)
}

// unmarshalValidate decodes v's current state into a Config and validates
// it, shared between LoadConfig's initial read and run's OnConfigChange
// reload handler so both paths apply the same defaults and validation.
func unmarshalValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// newViper builds a viper.Viper configured identically to LoadConfig's,
// without reading the file yet. run uses this so it can call WatchConfig on
// the same instance that did the initial read.
func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetDefault("snapshot_dir", "./snapshots")
	v.SetConfigFile(path)
	v.SetEnvPrefix("CRONFUTURECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
