// Package config loads the nanospectrum YAML configuration.
//
// Every section defaults to the values the rest of the toolkit uses when
// run without a config file, so a file only needs the keys it changes:
//
//	log_level: debug
//	registry:
//	  dir: models/registered
//	  hidden: [128, 256]
//	storage:
//	  backend: s3
//	  bucket: spectra-models
//	evaluation:
//	  workers: 4
//	  unit_timeout: 30s
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/nanospectrum/internal/artifact"
	"github.com/ironsheep/nanospectrum/internal/detection"
	"github.com/ironsheep/nanospectrum/internal/evaluation"
	"github.com/ironsheep/nanospectrum/internal/logging"
	"github.com/ironsheep/nanospectrum/internal/morphology"
	"github.com/ironsheep/nanospectrum/internal/predictor"
)

// SearchPaths are tried in order when Load is given no path.
var SearchPaths = []string{"nanospectrum.yaml", "nanospectrum.yml"}

// Config is the full configuration.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Registry   predictor.Config          `yaml:"registry"`
	Storage    artifact.Config           `yaml:"storage"`
	Morphology morphology.Config         `yaml:"morphology"`
	Panel      detection.PanelConfig     `yaml:"panel"`
	Digitizer  detection.DigitizerConfig `yaml:"digitizer"`
	Evaluation evaluation.Config         `yaml:"evaluation"`

	// Source is the file the configuration was read from, empty for defaults.
	Source string `yaml:"-"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:   "info",
		LogFormat:  logging.FormatText,
		Registry:   predictor.DefaultConfig(),
		Storage:    artifact.Config{Backend: artifact.BackendLocal, Root: "."},
		Morphology: morphology.DefaultConfig(),
		Panel:      detection.DefaultPanelConfig(),
		Digitizer:  detection.DefaultDigitizerConfig(),
		Evaluation: evaluation.DefaultConfig(),
	}
}

// Load reads the configuration at path. With an empty path the SearchPaths
// are tried and, if none exists, the defaults are returned. The
// NANOSPECTRUM_LOG_LEVEL environment variable overrides log_level.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		data = b
	} else {
		for _, name := range SearchPaths {
			b, err := os.ReadFile(name)
			if err == nil {
				path, data = name, b
				break
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", name, err)
			}
		}
	}

	if data != nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.Source = path
	}

	if lvl := os.Getenv(logging.EnvLevel); lvl != "" {
		cfg.LogLevel = lvl
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case "", artifact.BackendLocal, artifact.BackendS3, artifact.BackendMinio:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Evaluation.Workers < 0 {
		return fmt.Errorf("evaluation.workers must not be negative")
	}
	if c.Evaluation.UnitTimeout < 0 {
		return fmt.Errorf("evaluation.unit_timeout must not be negative")
	}
	if c.Digitizer.DomainMax <= c.Digitizer.DomainMin {
		return fmt.Errorf("digitizer domain [%g, %g] is empty", c.Digitizer.DomainMin, c.Digitizer.DomainMax)
	}
	for _, w := range c.Registry.Hidden {
		if w <= 0 {
			return fmt.Errorf("registry.hidden widths must be positive, got %d", w)
		}
	}
	return nil
}

// Figure returns the panel and digitizer settings as one figure configuration.
func (c *Config) Figure() detection.FigureConfig {
	return detection.FigureConfig{Panel: c.Panel, Digitizer: c.Digitizer}
}
