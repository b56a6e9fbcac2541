package detection

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ironsheep/nanospectrum/internal/imaging"
)

// FigureConfig bundles the classifier and digitizer settings used when
// processing composite figures.
type FigureConfig struct {
	Panel     PanelConfig     `yaml:"panel"`
	Digitizer DigitizerConfig `yaml:"digitizer"`
}

// DefaultFigureConfig returns DefaultPanelConfig and DefaultDigitizerConfig.
func DefaultFigureConfig() FigureConfig {
	return FigureConfig{
		Panel:     DefaultPanelConfig(),
		Digitizer: DefaultDigitizerConfig(),
	}
}

// PanelOutcome describes what was done with one half of a figure.
type PanelOutcome struct {
	// Position is "left" or "right".
	Position imaging.Half `json:"position"`

	// Analysis is the classifier result for the panel.
	Analysis *PanelAnalysis `json:"analysis"`

	// ImagePath is set for micrograph panels saved as <base>_<pos>.png.
	ImagePath string `json:"image_path,omitempty"`

	// CurvePath is set for plot panels digitized to <base>_<pos>.csv.
	CurvePath string `json:"curve_path,omitempty"`

	// CropPath is the debug crop written next to CurvePath.
	CropPath string `json:"crop_path,omitempty"`

	// Source is the mask the curve came from.
	Source MaskSource `json:"mask_source,omitempty"`

	// Note explains a plot panel that produced no curve.
	Note string `json:"note,omitempty"`
}

// FigureResult is the outcome of processing one composite figure.
type FigureResult struct {
	// Source is the figure file that was processed.
	Source string `json:"source"`

	// Panels holds the left and right outcomes in that order.
	Panels []PanelOutcome `json:"panels"`
}

// Micrographs returns the number of panels saved as micrographs.
func (r *FigureResult) Micrographs() int {
	n := 0
	for _, p := range r.Panels {
		if p.ImagePath != "" {
			n++
		}
	}
	return n
}

// Curves returns the number of panels digitized to a curve.
func (r *FigureResult) Curves() int {
	n := 0
	for _, p := range r.Panels {
		if p.CurvePath != "" {
			n++
		}
	}
	return n
}

// ProcessFigure splits the composite figure at path into left and right
// halves, classifies each, and writes into outDir:
//
//   - micrograph panels as <base>_<pos>.png
//   - plot panels as <base>_<pos>.csv plus <base>_<pos>_debug_crop.png
//
// Empty panels and plots without a detectable curve produce no files. The
// naming lets the sample matcher pair <base>_left.png with <base>_right.csv.
func ProcessFigure(path, outDir string, cfg FigureConfig) (*FigureResult, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	res := &FigureResult{Source: path}

	for _, panel := range imaging.SplitHalves(img) {
		name := base + "_" + string(panel.Position)
		out := PanelOutcome{
			Position: panel.Position,
			Analysis: AnalyzePanel(panel.Image, cfg.Panel),
		}

		switch out.Analysis.Class {
		case Micrograph:
			out.ImagePath = filepath.Join(outDir, name+".png")
			if err := imaging.Save(panel.Image, out.ImagePath); err != nil {
				return nil, err
			}
		case Plot:
			curve := Digitize(panel.Image, cfg.Digitizer)
			if curve == nil {
				out.Note = "no curve detected"
				break
			}
			out.Source = curve.Source
			out.CurvePath, out.CropPath, err = SaveCurve(outDir, name, curve)
			if err != nil {
				return nil, err
			}
		}

		res.Panels = append(res.Panels, out)
	}
	return res, nil
}

// figureExtensions are the composite figure formats picked up by ProcessFigures.
var figureExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// ProcessFigures runs ProcessFigure on every png/jpg/jpeg file directly inside
// dir, in name order. A figure that fails is logged and skipped.
func ProcessFigures(dir, outDir string, cfg FigureConfig, logger *slog.Logger) ([]*FigureResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read figure directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !figureExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	results := make([]*FigureResult, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		res, err := ProcessFigure(path, outDir, cfg)
		if err != nil {
			logger.Warn("skipping figure", "path", path, "error", err)
			continue
		}
		for _, p := range res.Panels {
			logger.Info("panel processed",
				"figure", name,
				"position", p.Position,
				"class", p.Analysis.Class,
				"curve", p.CurvePath != "")
		}
		results = append(results, res)
	}
	return results, nil
}
