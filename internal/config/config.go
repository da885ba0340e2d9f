// Package config provides unified configuration for the solve engine.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything one solve run needs: the scenario database, the
// model build knobs, the solver, persistence, and the optional result
// archive.
type Config struct {
	// ScenarioPath is the scenario SQLite database to solve.
	ScenarioPath string `json:"scenario_path" yaml:"scenario_path"`

	// Model configuration
	Model ModelConfig `json:"model" yaml:"model"`

	// Solver configuration
	Solver SolverConfig `json:"solver" yaml:"solver"`

	// Results configuration
	Results ResultsConfig `json:"results" yaml:"results"`

	// Archive configuration
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
}

// ModelConfig holds model build configuration.
type ModelConfig struct {
	// RestrictVars enables sparse variable domains: variables are declared
	// only over tuples observed in the scenario data.
	RestrictVars bool `json:"restrict_vars" yaml:"restrict_vars"`

	// VerifyOrder enables the row-order check in constraint generation.
	VerifyOrder bool `json:"verify_order" yaml:"verify_order"`

	// Workers bounds parallel phases (sparse index build, result
	// extraction). Zero selects GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// SolverConfig holds solver configuration.
type SolverConfig struct {
	// Backend names the solver backend. Only "highs" is built in.
	Backend string `json:"backend" yaml:"backend"`

	// Verbose enables solver log output.
	Verbose bool `json:"verbose" yaml:"verbose"`

	// TimeLimit caps solver run time. Zero means no limit.
	TimeLimit time.Duration `json:"time_limit" yaml:"time_limit"`

	// Diagnose runs the infeasibility search when the model is infeasible.
	Diagnose bool `json:"diagnose" yaml:"diagnose"`
}

// ResultsConfig holds result persistence configuration.
type ResultsConfig struct {
	// Variables lists the variables to save. Empty saves all of them.
	Variables []string `json:"variables" yaml:"variables"`

	// ReportZeros writes zero-valued rows instead of omitting them.
	ReportZeros bool `json:"report_zeros" yaml:"report_zeros"`
}

// ArchiveConfig holds result archive configuration.
type ArchiveConfig struct {
	// Enabled turns on archiving of the solved database.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Type is the archive type: local, s3.
	Type string `json:"type" yaml:"type"`

	// Path is the local archive directory (for local type).
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 archive configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			RestrictVars: false,
			VerifyOrder:  true,
			Workers:      0,
		},
		Solver: SolverConfig{
			Backend:  "highs",
			Verbose:  false,
			Diagnose: true,
		},
		Results: ResultsConfig{
			ReportZeros: false,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Type:    "local",
		},
	}
}

// Resolve fills in paths derived from the scenario location.
func (c *Config) Resolve() {
	if c.Archive.Path == "" && c.ScenarioPath != "" {
		c.Archive.Path = filepath.Join(filepath.Dir(c.ScenarioPath), "archive")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ScenarioPath == "" {
		return fmt.Errorf("scenario_path is required")
	}

	if c.Solver.Backend != "highs" {
		return fmt.Errorf("invalid solver backend: %s (must be highs)", c.Solver.Backend)
	}
	if c.Solver.TimeLimit < 0 {
		return fmt.Errorf("solver.time_limit must not be negative")
	}

	if c.Model.Workers < 0 {
		return fmt.Errorf("model.workers must not be negative, got %d", c.Model.Workers)
	}

	if c.Archive.Enabled {
		if c.Archive.Type != "local" && c.Archive.Type != "s3" {
			return fmt.Errorf("invalid archive type: %s (must be local or s3)", c.Archive.Type)
		}
		if c.Archive.Type == "s3" && c.Archive.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when archive type is s3")
		}
	}

	return nil
}

// ScenarioName returns the scenario database's base name without extension,
// used to scope archive keys.
func (c *Config) ScenarioName() string {
	base := filepath.Base(c.ScenarioPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadFromFile loads configuration from a YAML or JSON file, layered over
// the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the NEMO_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("NEMO_SCENARIO"); v != "" {
		cfg.ScenarioPath = v
	}

	// Model configuration
	if v := os.Getenv("NEMO_RESTRICT_VARS"); v != "" {
		cfg.Model.RestrictVars = v == "true" || v == "1"
	}
	if v := os.Getenv("NEMO_VERIFY_ORDER"); v != "" {
		cfg.Model.VerifyOrder = v == "true" || v == "1"
	}
	if v := os.Getenv("NEMO_WORKERS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Model.Workers)
	}

	// Solver configuration
	if v := os.Getenv("NEMO_SOLVER_BACKEND"); v != "" {
		cfg.Solver.Backend = v
	}
	if v := os.Getenv("NEMO_SOLVER_VERBOSE"); v != "" {
		cfg.Solver.Verbose = v == "true" || v == "1"
	}
	if v := os.Getenv("NEMO_SOLVER_TIME_LIMIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Solver.TimeLimit = d
		}
	}
	if v := os.Getenv("NEMO_DIAGNOSE"); v != "" {
		cfg.Solver.Diagnose = v == "true" || v == "1"
	}

	// Results configuration
	if v := os.Getenv("NEMO_RESULT_VARIABLES"); v != "" {
		cfg.Results.Variables = strings.Split(v, ",")
	}
	if v := os.Getenv("NEMO_REPORT_ZEROS"); v != "" {
		cfg.Results.ReportZeros = v == "true" || v == "1"
	}

	// Archive configuration
	if v := os.Getenv("NEMO_ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("NEMO_ARCHIVE_TYPE"); v != "" {
		cfg.Archive.Type = v
	}
	if v := os.Getenv("NEMO_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
	}
	if v := os.Getenv("NEMO_S3_BUCKET"); v != "" {
		cfg.Archive.S3.Bucket = v
	}
	if v := os.Getenv("NEMO_S3_REGION"); v != "" {
		cfg.Archive.S3.Region = v
	}
	if v := os.Getenv("NEMO_S3_ENDPOINT"); v != "" {
		cfg.Archive.S3.Endpoint = v
	}
}
