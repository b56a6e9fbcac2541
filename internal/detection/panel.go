package detection

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/ironsheep/nanospectrum/internal/imaging"
)

// PanelClass is the coarse content type of one figure panel.
type PanelClass string

const (
	// Micrograph is a texture-dense panel (an electron micrograph of particles).
	Micrograph PanelClass = "micrograph"

	// Plot is a mostly-white panel with line content (an absorption plot).
	Plot PanelClass = "plot"

	// Empty is a mostly-white panel with no line content.
	Empty PanelClass = "empty"
)

// PanelConfig holds the two-feature decision boundary used by ClassifyPanel.
type PanelConfig struct {
	// WhiteLevel is the 8-bit intensity a pixel must exceed to count as background.
	WhiteLevel uint8 `yaml:"white_level"`

	// WhiteFraction is the background fraction above which a panel is a plot or empty.
	WhiteFraction float64 `yaml:"white_fraction"`

	// TextureVariance is the Laplacian variance below which a white panel is empty.
	TextureVariance float64 `yaml:"texture_variance"`
}

// DefaultPanelConfig returns the thresholds tuned for side-by-side
// micrograph + plot composite figures.
func DefaultPanelConfig() PanelConfig {
	return PanelConfig{
		WhiteLevel:      240,
		WhiteFraction:   0.4,
		TextureVariance: 50,
	}
}

// PanelAnalysis is the outcome of classifying a panel together with the two
// features the decision was made on.
type PanelAnalysis struct {
	// Class is the assigned panel type.
	Class PanelClass `json:"class"`

	// WhiteFraction is the fraction (0.0-1.0) of pixels above WhiteLevel.
	WhiteFraction float64 `json:"white_fraction"`

	// TextureVariance is the variance of the Laplacian response.
	// Only computed for background-dominated panels; 0 otherwise.
	TextureVariance float64 `json:"texture_variance"`
}

// AnalyzePanel classifies img and reports the features behind the decision.
//
// # Decision
//
//   - white fraction > WhiteFraction and texture variance < TextureVariance: empty
//   - white fraction > WhiteFraction otherwise: plot
//   - everything else: micrograph
//
// A zero-sized panel is empty.
func AnalyzePanel(img image.Image, cfg PanelConfig) *PanelAnalysis {
	gray := imaging.ToGray(img)
	if gray.Rect.Empty() {
		return &PanelAnalysis{Class: Empty}
	}

	res := &PanelAnalysis{WhiteFraction: imaging.WhiteFraction(gray, cfg.WhiteLevel)}
	if res.WhiteFraction <= cfg.WhiteFraction {
		res.Class = Micrograph
		return res
	}

	variance, err := laplacianVariance(gray)
	if err != nil {
		// Without a texture reading the white background is all we know.
		res.Class = Empty
		return res
	}
	res.TextureVariance = variance
	if variance < cfg.TextureVariance {
		res.Class = Empty
	} else {
		res.Class = Plot
	}
	return res
}

// ClassifyPanel returns the content type of img. See AnalyzePanel.
func ClassifyPanel(img image.Image, cfg PanelConfig) PanelClass {
	return AnalyzePanel(img, cfg).Class
}

// laplacianVariance returns the population variance of the 3x3-aperture
// Laplacian of g, computed in float64.
func laplacianVariance(g *image.Gray) (float64, error) {
	src, err := gocv.ImageGrayToMatGray(g)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(src, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	std := gocv.NewMat()
	defer std.Close()
	gocv.MeanStdDev(lap, &mean, &std)

	sd := std.GetDoubleAt(0, 0)
	return sd * sd, nil
}
