package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	jsonparser "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/grantvest/core/allocation"
	"github.com/kilianp07/grantvest/core/factory"
	"github.com/kilianp07/grantvest/core/report"
	"github.com/kilianp07/grantvest/core/vesting"
	"github.com/kilianp07/grantvest/infra/loader"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore, e.g. GV_VESTING__CLIFF_PERIOD_DAYS.
const EnvPrefix = "GV_"

// Default output files of the json and csv sinks.
const (
	DefaultJSONOutput = "token_allocations_hybrid_output.json"
	DefaultCSVOutput  = "token_allocations_hybrid_output.csv"
)

type Config struct {
	Distribution   allocation.Config `json:"distribution" yaml:"distribution"`
	Vesting        vesting.Config    `json:"vesting" yaml:"vesting"`
	Input          loader.Config     `json:"input" yaml:"input"`
	Report         report.Config     `json:"report" yaml:"report"`
	Logging        LoggingConfig     `json:"logging" yaml:"logging"`
	Metrics        MetricsConfig     `json:"metrics" yaml:"metrics"`
	Workers        int               `json:"workers" yaml:"workers"`
	ExampleProject string            `json:"example_project" yaml:"example_project"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// TextfilePath is written after every run when set.
	TextfilePath string `json:"textfile_path" yaml:"textfile_path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Distribution: allocation.DefaultConfig(),
		Vesting:      vesting.DefaultConfig(),
		Input:        loader.DefaultConfig(),
		Report: report.Config{Sinks: []factory.ModuleConfig{
			{Type: "json", Conf: map[string]any{"path": DefaultJSONOutput}},
			{Type: "csv", Conf: map[string]any{"path": DefaultCSVOutput}},
		}},
		Logging:        LoggingConfig{Level: "info"},
		ExampleProject: "Rust SDK",
	}
}

// Validate checks every section. The first violation is returned.
func (c Config) Validate() error {
	if err := c.Distribution.Validate(); err != nil {
		return fmt.Errorf("distribution: %w", err)
	}
	if err := c.Vesting.Validate(); err != nil {
		return fmt.Errorf("vesting: %w", err)
	}
	if err := c.Input.Validate(); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	for i, s := range c.Report.Sinks {
		if s.Type == "" {
			return fmt.Errorf("report: sink %d has no type", i)
		}
	}
	return nil
}

// defaults feeds Default() to koanf as a JSON document.
type defaults struct{}

func (defaults) ReadBytes() ([]byte, error) { return json.Marshal(Default()) }

func (defaults) Read() (map[string]any, error) {
	return nil, errors.New("defaults provider does not support Read")
}

// Load builds the configuration from the defaults, the optional file at path
// and GV_ environment overrides, then validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(defaults{}, jsonparser.Parser()); err != nil {
		return nil, err
	}
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = jsonparser.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
