package morphology

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/nanospectrum/internal/imaging"
)

// ErrNoParticlesDetected is returned when segmentation finds no contour above the
// noise floor.
var ErrNoParticlesDetected = errors.New("no particles detected")

// FeatureLen is the number of values in a FeatureVector.
const FeatureLen = 4

// FeatureVector summarizes the particle population of one micrograph.
// Diameters and aspect ratios are in pixels of the canonical-resolution image.
type FeatureVector struct {
	MeanDiameter float64 `json:"mean_diameter"`
	StdDiameter  float64 `json:"std_diameter"`
	Count        int     `json:"count"`
	MeanAspect   float64 `json:"aspect_ratio"`
}

// Slice returns the ordered values {mean diameter, std diameter, count, mean aspect}.
func (f FeatureVector) Slice() []float64 {
	return []float64{f.MeanDiameter, f.StdDiameter, float64(f.Count), f.MeanAspect}
}

// FromSlice builds a FeatureVector from its ordered values.
func FromSlice(v []float64) (FeatureVector, error) {
	if len(v) != FeatureLen {
		return FeatureVector{}, fmt.Errorf("feature vector has %d values, want %d", len(v), FeatureLen)
	}
	return FeatureVector{
		MeanDiameter: v[0],
		StdDiameter:  v[1],
		Count:        int(v[2]),
		MeanAspect:   v[3],
	}, nil
}

// Config holds the segmentation parameters. Zero values are replaced by the
// defaults from DefaultConfig.
type Config struct {
	// CanonicalSize is the square resolution every image is resized to before
	// segmentation, so MinArea means the same thing for every input size.
	CanonicalSize int `yaml:"canonical_size"`

	// BlurKernel is the Gaussian blur kernel size (odd).
	BlurKernel int `yaml:"blur_kernel"`

	// OpenKernel is the size of the square structuring element used for the
	// single opening pass.
	OpenKernel int `yaml:"open_kernel"`

	// MinArea is the contour area (pixels) a particle must exceed.
	MinArea float64 `yaml:"min_area"`
}

// DefaultConfig returns the parameters the reference predictors were trained with.
func DefaultConfig() Config {
	return Config{
		CanonicalSize: 512,
		BlurKernel:    5,
		OpenKernel:    3,
		MinArea:       20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CanonicalSize <= 0 {
		c.CanonicalSize = d.CanonicalSize
	}
	if c.BlurKernel <= 0 {
		c.BlurKernel = d.BlurKernel
	}
	if c.OpenKernel <= 0 {
		c.OpenKernel = d.OpenKernel
	}
	if c.MinArea <= 0 {
		c.MinArea = d.MinArea
	}
	return c
}

// Particle is one qualifying contour.
type Particle struct {
	Area     float64         `json:"area"`
	Diameter float64         `json:"diameter"`
	Aspect   float64         `json:"aspect_ratio"`
	Bounds   image.Rectangle `json:"bounds"`
}

// Result carries the feature vector together with the particles it was built from.
type Result struct {
	Features  FeatureVector `json:"features"`
	Particles []Particle    `json:"particles"`
}

// Extract segments dark particles in img and summarizes them.
//
// # Algorithm
//
//  1. Collapse to 8-bit single channel (16-bit linearly).
//  2. Resize to CanonicalSize x CanonicalSize.
//  3. Gaussian blur. A flat image has no particles and stops here.
//     Otherwise Otsu threshold inverted (particles are darker than the
//     background, so they become foreground).
//  4. One morphological opening with a square kernel to drop 1-pixel noise.
//  5. External contours only, so holes inside a particle are not particles.
//  6. Keep contours with area > MinArea; record the equivalent circular diameter
//     sqrt(4*area/pi) and the bounding-box aspect ratio w/h (1.0 when h == 0).
//
// The std diameter is the population standard deviation.
//
// Returns ErrNoParticlesDetected when no contour qualifies.
func Extract(img image.Image, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()

	mask, err := segment(img, cfg)
	if err != nil {
		return nil, err
	}
	defer mask.Close()

	particles := findParticles(mask, cfg.MinArea)
	if len(particles) == 0 {
		return nil, ErrNoParticlesDetected
	}

	diameters := make([]float64, len(particles))
	aspects := make([]float64, len(particles))
	for i, p := range particles {
		diameters[i] = p.Diameter
		aspects[i] = p.Aspect
	}
	mean, std := stat.PopMeanStdDev(diameters, nil)

	return &Result{
		Features: FeatureVector{
			MeanDiameter: mean,
			StdDiameter:  std,
			Count:        len(particles),
			MeanAspect:   stat.Mean(aspects, nil),
		},
		Particles: particles,
	}, nil
}

// ExtractFile decodes path and runs Extract.
func ExtractFile(path string, cfg Config) (*Result, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	return Extract(img, cfg)
}

// segment produces the cleaned binary foreground mask at canonical resolution.
func segment(img image.Image, cfg Config) (gocv.Mat, error) {
	gray := imaging.ToGray(img)
	if gray.Rect.Empty() {
		return gocv.Mat{}, fmt.Errorf("image has no pixels")
	}

	src, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert image to mat: %w", err)
	}
	defer src.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	size := image.Pt(cfg.CanonicalSize, cfg.CanonicalSize)
	gocv.Resize(src, &resized, size, 0, 0, gocv.InterpolationLinear)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(resized, &blurred, image.Pt(cfg.BlurKernel, cfg.BlurKernel), 0, 0, gocv.BorderDefault)

	// Otsu on a flat image picks a degenerate threshold that can turn the whole
	// frame into one contour.
	lo, hi, _, _ := gocv.MinMaxLoc(blurred)
	if lo == hi {
		return gocv.Mat{}, ErrNoParticlesDetected
	}

	mask := gocv.NewMat()
	gocv.Threshold(blurred, &mask, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(cfg.OpenKernel, cfg.OpenKernel))
	defer kernel.Close()
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)

	return mask, nil
}

func findParticles(mask gocv.Mat, minArea float64) []Particle {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	particles := make([]Particle, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area <= minArea {
			continue
		}

		rect := gocv.BoundingRect(c)
		aspect := 1.0
		if rect.Dy() > 0 {
			aspect = float64(rect.Dx()) / float64(rect.Dy())
		}

		particles = append(particles, Particle{
			Area:     area,
			Diameter: math.Sqrt(4 * area / math.Pi),
			Aspect:   aspect,
			Bounds:   rect,
		})
	}
	return particles
}

// Overlay renders the canonical-resolution grayscale image with every qualifying
// contour outlined in red, for manual inspection of the segmentation.
func Overlay(img image.Image, cfg Config) (image.Image, error) {
	cfg = cfg.withDefaults()

	mask, err := segment(img, cfg)
	if err != nil {
		return nil, err
	}
	defer mask.Close()

	src, err := gocv.ImageGrayToMatGray(imaging.ToGray(img))
	if err != nil {
		return nil, fmt.Errorf("failed to convert image to mat: %w", err)
	}
	defer src.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, image.Pt(cfg.CanonicalSize, cfg.CanonicalSize), 0, 0, gocv.InterpolationLinear)

	vis := gocv.NewMat()
	defer vis.Close()
	gocv.CvtColor(resized, &vis, gocv.ColorGrayToBGR)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	red := color.RGBA{R: 255, A: 255}
	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) > cfg.MinArea {
			gocv.DrawContours(&vis, contours, i, red, 1)
		}
	}

	return vis.ToImage()
}
