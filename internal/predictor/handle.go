package predictor

import (
	"fmt"
	"image"

	"github.com/ironsheep/nanospectrum/internal/morphology"
	"github.com/ironsheep/nanospectrum/internal/spectrum"
)

// Prediction is the output of one predictor on one sample.
type Prediction struct {
	Wavelengths []float64                `json:"wavelengths"`
	Spectrum    []float64                `json:"spectrum"`
	PeakNM      float64                  `json:"peak_nm"`
	FWHMNM      float64                  `json:"fwhm_nm"`
	Features    morphology.FeatureVector `json:"features"`
}

// AsSpectrum returns the prediction as a Spectrum sharing its slices.
func (p *Prediction) AsSpectrum() *spectrum.Spectrum {
	return &spectrum.Spectrum{Wavelengths: p.Wavelengths, Intensity: p.Spectrum}
}

// Handle is a loaded predictor. It is read-only after construction.
type Handle struct {
	name     string
	meta     Metadata
	strategy string
	net      *Network
	norm     *Normalization
	morph    morphology.Config
}

// NewHandle wires a network to its normalization. The network must map
// FeatureLen inputs to one output per wavelength.
func NewHandle(meta Metadata, net *Network, norm *Normalization, morph morphology.Config) (*Handle, error) {
	if net.InputDim() != morphology.FeatureLen {
		return nil, fmt.Errorf("predictor %q takes %d inputs, want %d", meta.ModelName, net.InputDim(), morphology.FeatureLen)
	}
	if net.OutputDim() != len(norm.Wavelengths) {
		return nil, fmt.Errorf("%w: predictor %q gives %d outputs for %d wavelengths",
			ErrNormalization, meta.ModelName, net.OutputDim(), len(norm.Wavelengths))
	}
	return &Handle{name: meta.ModelName, meta: meta, net: net, norm: norm, morph: morph}, nil
}

// Name returns the registered predictor name.
func (h *Handle) Name() string { return h.name }

// Metadata returns the registration record.
func (h *Handle) Metadata() Metadata { return h.meta }

// Strategy returns the name of the load strategy that read the weights.
func (h *Handle) Strategy() string { return h.strategy }

// Wavelengths returns the output grid.
func (h *Handle) Wavelengths() []float64 { return h.norm.Wavelengths }

// Extract runs morphology extraction with the handle's segmentation settings.
func (h *Handle) Extract(img image.Image) (morphology.FeatureVector, error) {
	res, err := morphology.Extract(img, h.morph)
	if err != nil {
		return morphology.FeatureVector{}, err
	}
	return res.Features, nil
}

// PredictImage extracts features from img and predicts its spectrum.
func (h *Handle) PredictImage(img image.Image) (*Prediction, error) {
	fv, err := h.Extract(img)
	if err != nil {
		return nil, err
	}
	return h.PredictFeatures(fv)
}

// PredictFeatures predicts the spectrum for an already extracted feature vector.
//
// The peak is the wavelength of the maximum output and the FWHM is the span
// between the first and last wavelengths whose output is strictly above half
// the maximum (0 when there are none).
func (h *Handle) PredictFeatures(fv morphology.FeatureVector) (*Prediction, error) {
	out, err := h.net.Forward(h.norm.Apply(fv.Slice()))
	if err != nil {
		return nil, err
	}

	s := &spectrum.Spectrum{Wavelengths: h.norm.Wavelengths, Intensity: out}
	_, peak := s.Peak()

	return &Prediction{
		Wavelengths: h.norm.Wavelengths,
		Spectrum:    out,
		PeakNM:      peak,
		FWHMNM:      s.FWHM(),
		Features:    fv,
	}, nil
}
