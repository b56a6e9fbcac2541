package predictor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ironsheep/nanospectrum/internal/artifact"
	"github.com/ironsheep/nanospectrum/internal/morphology"
	"github.com/ironsheep/nanospectrum/internal/spectrum"
)

// ErrNormalization is returned when the normalization artifacts are missing or
// do not fit the predictor. It is fatal for an evaluation run.
var ErrNormalization = errors.New("predictor: normalization artifacts unusable")

// NormalizationConfig names the normalization artifacts. File names are
// joined to Dir and resolved through the artifact store.
type NormalizationConfig struct {
	Dir         string `yaml:"dir"`
	Mean        string `yaml:"mean"`
	Std         string `yaml:"std"`
	Wavelengths string `yaml:"wavelengths"`
}

// DefaultNormalizationConfig returns the standard artifact names under
// data/processed.
func DefaultNormalizationConfig() NormalizationConfig {
	return NormalizationConfig{
		Dir:         filepath.Join("data", "processed"),
		Mean:        "X_mean.npy",
		Std:         "X_std.npy",
		Wavelengths: "wavelengths.npy",
	}
}

// Normalization holds the feature standardization and the output wavelength grid.
type Normalization struct {
	Mean        []float64
	Std         []float64
	Wavelengths []float64
}

// LoadNormalization reads and validates the three normalization arrays.
// Every failure wraps ErrNormalization.
func LoadNormalization(ctx context.Context, store artifact.Store, cfg NormalizationConfig) (*Normalization, error) {
	read := func(name string) ([]float64, error) {
		p := filepath.Join(cfg.Dir, name)
		rc, err := artifact.OpenDecoded(ctx, store, p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNormalization, err)
		}
		defer rc.Close()

		v, err := spectrum.ReadNPY(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNormalization, p, err)
		}
		return v, nil
	}

	n := &Normalization{}
	var err error
	if n.Mean, err = read(cfg.Mean); err != nil {
		return nil, err
	}
	if n.Std, err = read(cfg.Std); err != nil {
		return nil, err
	}
	if n.Wavelengths, err = read(cfg.Wavelengths); err != nil {
		return nil, err
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate checks the arrays fit a four-feature predictor.
func (n *Normalization) Validate() error {
	if len(n.Mean) != morphology.FeatureLen || len(n.Std) != morphology.FeatureLen {
		return fmt.Errorf("%w: mean/std have %d/%d values, want %d",
			ErrNormalization, len(n.Mean), len(n.Std), morphology.FeatureLen)
	}
	for i, s := range n.Std {
		if s == 0 {
			return fmt.Errorf("%w: std[%d] is zero", ErrNormalization, i)
		}
	}
	w := spectrum.Spectrum{Wavelengths: n.Wavelengths, Intensity: n.Wavelengths}
	if err := w.Validate(); err != nil {
		return fmt.Errorf("%w: wavelengths: %v", ErrNormalization, err)
	}
	return nil
}

// Apply returns (features - mean) / std.
func (n *Normalization) Apply(features []float64) []float64 {
	out := make([]float64, len(features))
	for i, f := range features {
		out[i] = (f - n.Mean[i]) / n.Std[i]
	}
	return out
}
