package detection

import (
	"image"
	"path/filepath"
	"sort"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/ironsheep/nanospectrum/internal/imaging"
	"github.com/ironsheep/nanospectrum/internal/spectrum"
)

// DigitizerConfig controls how a plot panel is turned into a spectrum.
type DigitizerConfig struct {
	// Margin is the fraction trimmed from each side to drop axes, ticks and labels.
	Margin float64 `yaml:"margin"`

	// SaturationMin is the HSV saturation (0-255) a pixel must exceed to count as
	// part of a colored curve.
	SaturationMin float64 `yaml:"saturation_min"`

	// DarkThreshold is the gray level at or below which a pixel counts as part of
	// a monochrome curve when too few colored pixels are found.
	DarkThreshold uint8 `yaml:"dark_threshold"`

	// MinPixels is the number of candidate pixels required for a curve.
	MinPixels int `yaml:"min_pixels"`

	// DomainMin and DomainMax are the wavelengths (nm) assumed at the left and
	// right edges of the cropped plot area. Axis labels are not read.
	DomainMin float64 `yaml:"domain_min"`
	DomainMax float64 `yaml:"domain_max"`

	// GridStep is the wavelength spacing (nm) of the output grid.
	GridStep float64 `yaml:"grid_step"`

	// SmoothingWindow is the width of the centered moving average.
	SmoothingWindow int `yaml:"smoothing_window"`
}

// DefaultDigitizerConfig returns the settings used to build the reference
// ground-truth set.
func DefaultDigitizerConfig() DigitizerConfig {
	return DigitizerConfig{
		Margin:          0.15,
		SaturationMin:   40,
		DarkThreshold:   200,
		MinPixels:       50,
		DomainMin:       400,
		DomainMax:       800,
		GridStep:        2,
		SmoothingWindow: 5,
	}
}

// MaskSource records which pixel mask produced a digitized curve.
type MaskSource string

const (
	// MaskSaturation means the curve was found by its color.
	MaskSaturation MaskSource = "saturation"

	// MaskDark means the colored pass found too little and dark pixels were used.
	MaskDark MaskSource = "dark"
)

// Curve is a digitized plot together with the region it was read from.
type Curve struct {
	// Spectrum is the smoothed curve on the output wavelength grid.
	Spectrum *spectrum.Spectrum

	// Crop is the margin-trimmed plot area that was analyzed.
	Crop *image.NRGBA

	// Source is the mask that supplied the curve pixels.
	Source MaskSource

	// Pixels is the number of candidate pixels used.
	Pixels int
}

// DigitizeCurve reads the dominant curve of a plot panel. It returns nil when
// no curve can be found and never fails. See Digitize.
func DigitizeCurve(img image.Image, cfg DigitizerConfig) *spectrum.Spectrum {
	c := Digitize(img, cfg)
	if c == nil {
		return nil
	}
	return c.Spectrum
}

// Digitize reads the dominant curve of a plot panel, returning nil when fewer
// than MinPixels candidate pixels are found.
//
// # Algorithm
//
//  1. Trim Margin from every side.
//  2. Candidate pixels are those with saturation > SaturationMin. With fewer than
//     MinPixels, fall back to pixels with gray level <= DarkThreshold.
//  3. Average the row of all candidates in each column, one point per column.
//  4. Map column x to DomainMin + x/width*(DomainMax-DomainMin) and row y to the
//     normalized intensity 1 - y/height.
//  5. Linearly interpolate onto DomainMin..DomainMax in GridStep steps (values
//     beyond the first and last column are held constant).
//  6. Smooth with a centered moving average of SmoothingWindow samples.
func Digitize(img image.Image, cfg DigitizerConfig) *Curve {
	crop := imaging.CropMargins(img, cfg.Margin)
	b := crop.Bounds()
	if b.Empty() {
		return nil
	}

	source := MaskSaturation
	pts := imaging.SaturatedPixels(crop, cfg.SaturationMin)
	if len(pts) < cfg.MinPixels {
		source = MaskDark
		pts = darkPixels(crop, cfg.DarkThreshold)
	}
	if len(pts) < cfg.MinPixels || len(pts) == 0 {
		return nil
	}

	xs, ys := columnMeans(pts)

	pw, ph := float64(b.Dx()), float64(b.Dy())
	span := cfg.DomainMax - cfg.DomainMin
	for i := range xs {
		xs[i] = cfg.DomainMin + xs[i]/pw*span
		ys[i] = 1 - ys[i]/ph
	}

	grid := spectrum.Grid(cfg.DomainMin, cfg.DomainMax, cfg.GridStep)
	if len(grid) == 0 {
		return nil
	}
	values, err := spectrum.Interpolate(xs, ys, grid)
	if err != nil {
		return nil
	}

	return &Curve{
		Spectrum: &spectrum.Spectrum{
			Wavelengths: grid,
			Intensity:   spectrum.MovingAverage(values, cfg.SmoothingWindow),
		},
		Crop:   crop,
		Source: source,
		Pixels: len(pts),
	}
}

// darkPixels returns the origin-relative coordinates of pixels whose BT.601 gray
// level is at or below level. Rows are scanned in parallel.
func darkPixels(img *image.NRGBA, level uint8) []image.Point {
	gray := imaging.ToGray(img)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()

	rows := make([][]image.Point, h)
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			line := gray.Pix[y*gray.Stride : y*gray.Stride+w]
			for x, v := range line {
				if v <= level {
					rows[y] = append(rows[y], image.Pt(x, y))
				}
			}
		}
	})

	var pts []image.Point
	for _, r := range rows {
		pts = append(pts, r...)
	}
	return pts
}

// columnMeans groups pts by column and returns the sorted unique columns with
// the mean row of each.
func columnMeans(pts []image.Point) (xs, ys []float64) {
	type acc struct {
		sum   float64
		count int
	}
	cols := make(map[int]*acc)
	for _, p := range pts {
		a, ok := cols[p.X]
		if !ok {
			a = &acc{}
			cols[p.X] = a
		}
		a.sum += float64(p.Y)
		a.count++
	}

	keys := make([]int, 0, len(cols))
	for x := range cols {
		keys = append(keys, x)
	}
	sort.Ints(keys)

	xs = make([]float64, len(keys))
	ys = make([]float64, len(keys))
	for i, x := range keys {
		xs[i] = float64(x)
		ys[i] = cols[x].sum / float64(cols[x].count)
	}
	return xs, ys
}

// SaveCurve writes c to <dir>/<base>.csv (wavelength,spectrum) and its analyzed
// region to <dir>/<base>_debug_crop.png. It returns the two paths.
func SaveCurve(dir, base string, c *Curve) (csvPath, cropPath string, err error) {
	csvPath = filepath.Join(dir, base+".csv")
	if err := spectrum.WriteGroundTruth(csvPath, c.Spectrum); err != nil {
		return "", "", err
	}

	cropPath = filepath.Join(dir, base+"_debug_crop.png")
	if err := imaging.Save(c.Crop, cropPath); err != nil {
		return "", "", err
	}
	return csvPath, cropPath, nil
}
