// Package config defines the run configuration and its layered loading.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Config contains everything one pipeline run needs.
type Config struct {
	// TrainPath and TestPath are the input CSV files.
	TrainPath string `koanf:"train_path"`
	TestPath  string `koanf:"test_path"`

	// OutDir receives every artifact. Relative artifact names are joined to it.
	OutDir         string `koanf:"out_dir"`
	SubmissionFile string `koanf:"submission_file"`
	PlotFile       string `koanf:"plot_file"`
	RecipeFile     string `koanf:"recipe_file"`
	MetricsFile    string `koanf:"metrics_file"`

	// DumpMatrices also writes the encoded train/test matrices as tensor files.
	DumpMatrices bool `koanf:"dump_matrices"`

	// Forest hyperparameters. Workers 0 means one per CPU.
	Seed        int64 `koanf:"seed"`
	Trees       int   `koanf:"trees"`
	MinNodeSize int   `koanf:"min_node_size"`
	MaxFeatures int   `koanf:"max_features"`
	Workers     int   `koanf:"workers"`

	// Identity and Identifier are the first two submission lines.
	Identity   string `koanf:"identity"`
	Identifier string `koanf:"identifier"`

	// LogLevel is one of debug, info, warn, error. LogFormat is text or json.
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		TrainPath:      "data/train.csv",
		TestPath:       "data/test.csv",
		OutDir:         "out",
		SubmissionFile: "submission.txt",
		PlotFile:       "calibration.png",
		RecipeFile:     "recipe.json",
		MetricsFile:    "metrics.prom",
		Seed:           42,
		Trees:          700,
		MinNodeSize:    10,
		Identity:       "anonymous",
		Identifier:     "0",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Validate checks the configuration for values a run cannot use.
func (c *Config) Validate() error {
	var problems []string
	if c.TrainPath == "" {
		problems = append(problems, "train_path must not be empty")
	}
	if c.TestPath == "" {
		problems = append(problems, "test_path must not be empty")
	}
	if c.OutDir == "" {
		problems = append(problems, "out_dir must not be empty")
	}
	for key, v := range map[string]string{
		"submission_file": c.SubmissionFile,
		"plot_file":       c.PlotFile,
		"recipe_file":     c.RecipeFile,
		"metrics_file":    c.MetricsFile,
	} {
		if v == "" {
			problems = append(problems, key+" must not be empty")
		}
	}
	if c.Trees < 1 {
		problems = append(problems, fmt.Sprintf("trees must be at least 1, got %d", c.Trees))
	}
	if c.MinNodeSize < 1 {
		problems = append(problems, fmt.Sprintf("min_node_size must be at least 1, got %d", c.MinNodeSize))
	}
	if c.MaxFeatures < 0 {
		problems = append(problems, fmt.Sprintf("max_features must not be negative, got %d", c.MaxFeatures))
	}
	if c.Workers < 0 {
		problems = append(problems, fmt.Sprintf("workers must not be negative, got %d", c.Workers))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("unknown log_level %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log_format %q", c.LogFormat))
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// SubmissionPath returns where the submission file is written.
func (c *Config) SubmissionPath() string { return c.resolve(c.SubmissionFile) }

// PlotPath returns where the calibration plot is written.
func (c *Config) PlotPath() string { return c.resolve(c.PlotFile) }

// RecipePath returns where the preprocessing state is written.
func (c *Config) RecipePath() string { return c.resolve(c.RecipeFile) }

// MetricsPath returns where the metrics textfile is written.
func (c *Config) MetricsPath() string { return c.resolve(c.MetricsFile) }

// MatrixPath returns where the encoded matrix of a split is dumped.
func (c *Config) MatrixPath(split string) string {
	return filepath.Join(c.OutDir, split+"_matrix.tensor")
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.OutDir, name)
}
