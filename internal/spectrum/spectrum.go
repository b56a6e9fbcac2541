// Package spectrum holds the Spectrum value type and the numeric helpers shared by
// prediction, digitization and scoring: fixed wavelength grids, linear resampling,
// centered moving averages and peak/FWHM summaries.
package spectrum

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

var (
	// ErrLengthMismatch is returned when wavelengths and intensity differ in length.
	ErrLengthMismatch = errors.New("spectrum: wavelength and intensity lengths differ")

	// ErrNotIncreasing is returned when wavelengths are not strictly increasing.
	ErrNotIncreasing = errors.New("spectrum: wavelengths must be strictly increasing")

	// ErrEmpty is returned for a spectrum with no samples.
	ErrEmpty = errors.New("spectrum: no samples")
)

// Spectrum is an intensity curve sampled on an ordered wavelength grid (nm).
type Spectrum struct {
	Wavelengths []float64 `json:"wavelengths"`
	Intensity   []float64 `json:"spectrum"`
}

// New validates and returns a Spectrum. The slices are not copied.
func New(wavelengths, intensity []float64) (*Spectrum, error) {
	s := &Spectrum{Wavelengths: wavelengths, Intensity: intensity}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks len(wavelengths) == len(intensity) and that wavelengths strictly increase.
func (s *Spectrum) Validate() error {
	if len(s.Wavelengths) != len(s.Intensity) {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(s.Wavelengths), len(s.Intensity))
	}
	if len(s.Wavelengths) == 0 {
		return ErrEmpty
	}
	for i := 1; i < len(s.Wavelengths); i++ {
		if s.Wavelengths[i] <= s.Wavelengths[i-1] {
			return fmt.Errorf("%w: index %d", ErrNotIncreasing, i)
		}
	}
	return nil
}

// Len returns the number of samples.
func (s *Spectrum) Len() int { return len(s.Intensity) }

// Grid returns start, start+step, ... up to and including stop when stop lies on
// the grid. Grid(400, 800, 2) has 201 points.
func Grid(start, stop, step float64) []float64 {
	if step <= 0 || stop < start {
		return nil
	}
	n := int(math.Floor((stop-start)/step+1e-9)) + 1
	g := make([]float64, n)
	for i := range g {
		g[i] = start + float64(i)*step
	}
	return g
}

// Interpolate evaluates the piecewise-linear curve through (xs, ys) at every point of
// grid. xs must be strictly increasing. Points outside [xs[0], xs[n-1]] take the
// nearest endpoint value. A single-point curve yields a constant.
func Interpolate(xs, ys, grid []float64) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(xs), len(ys))
	}
	if len(xs) == 0 {
		return nil, ErrEmpty
	}

	out := make([]float64, len(grid))
	if len(xs) == 1 {
		for i := range out {
			out[i] = ys[0]
		}
		return out, nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("spectrum: fit interpolant: %w", err)
	}
	for i, x := range grid {
		out[i] = pl.Predict(x)
	}
	return out, nil
}

// Resample returns s re-interpolated onto grid.
func (s *Spectrum) Resample(grid []float64) (*Spectrum, error) {
	vals, err := Interpolate(s.Wavelengths, s.Intensity, grid)
	if err != nil {
		return nil, err
	}
	return &Spectrum{Wavelengths: append([]float64(nil), grid...), Intensity: vals}, nil
}

// MovingAverage applies a centered moving average of the given window width.
// Windows at the edges shrink to the neighbors that exist, so the output has the
// same length as the input and no value is dropped.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}

	// Even windows lean right, matching a centered rolling window.
	lo := (window - 1) / 2
	hi := window / 2
	for i := range values {
		a := max(0, i-lo)
		b := min(len(values), i+hi+1)
		out[i] = floats.Sum(values[a:b]) / float64(b-a)
	}
	return out
}

// Peak returns the index and wavelength of the maximum intensity.
// Ties resolve to the first occurrence.
func (s *Spectrum) Peak() (int, float64) {
	i := floats.MaxIdx(s.Intensity)
	return i, s.Wavelengths[i]
}

// FWHM returns the wavelength span between the first and last samples whose intensity
// is strictly greater than half the peak intensity. A flat or non-positive spectrum,
// where no sample exceeds half max, yields 0.
func (s *Spectrum) FWHM() float64 {
	i, _ := s.Peak()
	half := s.Intensity[i] / 2

	first, last := -1, -1
	for j, v := range s.Intensity {
		if v > half {
			if first < 0 {
				first = j
			}
			last = j
		}
	}
	if first < 0 {
		return 0
	}
	return s.Wavelengths[last] - s.Wavelengths[first]
}
