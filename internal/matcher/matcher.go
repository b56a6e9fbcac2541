// Package matcher finds the reference spectrum for a sample image.
package matcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/nanospectrum/internal/imaging"
	"github.com/ironsheep/nanospectrum/internal/spectrum"
)

// ErrUnusable is wrapped by every error returned for a ground-truth file that
// exists but cannot be interpreted.
var ErrUnusable = errors.New("matcher: unusable ground truth")

// Source is the kind of file a ground truth came from.
type Source string

const (
	SourceCSV       Source = "csv"
	SourcePairedCSV Source = "paired_csv"
	SourceNPY       Source = "npy"
)

// GroundTruth is a reference spectrum for one sample.
type GroundTruth struct {
	// Values are the reference intensities.
	Values []float64

	// Wavelengths label Values when the file carried a wavelength column;
	// nil otherwise.
	Wavelengths []float64

	// Path is the file the values were read from.
	Path string

	Source Source
}

// On returns the reference values on grid. With known wavelengths the values
// are linearly re-interpolated; otherwise they are returned as stored and the
// caller must check the length.
func (g *GroundTruth) On(grid []float64) ([]float64, error) {
	if g.Wavelengths == nil {
		return g.Values, nil
	}
	return spectrum.Interpolate(g.Wavelengths, g.Values, grid)
}

// Pair links a split suffix to its partner, so a micrograph saved as
// <base>_left can use the curve digitized into <base>_right.csv.
type Pair struct {
	Suffix  string
	Partner string
}

// Matcher locates ground-truth files next to sample images.
type Matcher struct {
	// Pairs are tried in order; the first suffix the base name ends with wins.
	Pairs []Pair
}

// New returns a Matcher for the left/right split convention.
func New() *Matcher {
	left, right := "_"+string(imaging.Left), "_"+string(imaging.Right)
	return &Matcher{Pairs: []Pair{
		{Suffix: left, Partner: right},
		{Suffix: right, Partner: left},
	}}
}

// Match returns the ground truth for imagePath, trying in order:
//
//  1. <dir>/<base>.csv
//  2. the CSV of the paired split suffix, e.g. <stem>_right.csv for <stem>_left
//  3. <dir>/<base>.npy
//
// A nil result with a nil error means there is no ground truth. When a
// candidate exists but cannot be used the next one is tried; if none
// succeeds the failures are returned together, each wrapping ErrUnusable.
func (m *Matcher) Match(imagePath string) (*GroundTruth, error) {
	dir := filepath.Dir(imagePath)
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))

	type candidate struct {
		path   string
		source Source
	}
	candidates := []candidate{{filepath.Join(dir, base+".csv"), SourceCSV}}
	for _, p := range m.Pairs {
		if stem, ok := strings.CutSuffix(base, p.Suffix); ok {
			candidates = append(candidates, candidate{filepath.Join(dir, stem+p.Partner+".csv"), SourcePairedCSV})
			break
		}
	}
	candidates = append(candidates, candidate{filepath.Join(dir, base+".npy"), SourceNPY})

	var failures []error
	for _, c := range candidates {
		if _, err := os.Stat(c.path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				failures = append(failures, fmt.Errorf("%w: %v", ErrUnusable, err))
			}
			continue
		}

		var gt *GroundTruth
		var err error
		if c.source == SourceNPY {
			gt, err = readNPY(c.path)
		} else {
			gt, err = readCSV(c.path)
		}
		if err != nil {
			failures = append(failures, fmt.Errorf("%w: %s: %v", ErrUnusable, c.path, err))
			continue
		}
		gt.Source = c.source
		return gt, nil
	}
	return nil, errors.Join(failures...)
}

// Match uses the default left/right Matcher.
func Match(imagePath string) (*GroundTruth, error) {
	return New().Match(imagePath)
}

// readCSV accepts a single column (header optional) or a named spectrum column
// with an optional wavelength column.
func readCSV(path string) (*GroundTruth, error) {
	tbl, err := spectrum.ReadTableFile(path)
	if err != nil {
		return nil, err
	}

	gt := &GroundTruth{Path: path}
	if values, ok := tbl.Column(spectrum.ColSpectrum); ok {
		gt.Values = values
		if wl, ok := tbl.Column(spectrum.ColWavelength); ok {
			s := spectrum.Spectrum{Wavelengths: wl, Intensity: values}
			if err := s.Validate(); err != nil {
				return nil, err
			}
			gt.Wavelengths = wl
		}
	} else if len(tbl.Columns) == 1 {
		gt.Values = tbl.Columns[0]
	} else {
		return nil, fmt.Errorf("no %q column among %d columns", spectrum.ColSpectrum, len(tbl.Columns))
	}

	if len(gt.Values) == 0 {
		return nil, spectrum.ErrEmpty
	}
	return gt, nil
}

func readNPY(path string) (*GroundTruth, error) {
	values, err := spectrum.ReadNPYFile(path)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, spectrum.ErrEmpty
	}
	return &GroundTruth{Values: values, Path: path}, nil
}
