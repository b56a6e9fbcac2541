// Package metrics scores a predicted spectrum against a reference and
// aggregates the scores of one predictor over a run.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrLengthMismatch is returned when the truth, prediction and wavelength
// vectors differ in length. Callers record such a sample as unscored.
var ErrLengthMismatch = errors.New("metrics: vector lengths differ")

const (
	// samEpsilon guards the spectral angle against zero-norm spectra.
	samEpsilon = 1e-8

	// f1Epsilon guards F1 when precision and recall are both zero.
	f1Epsilon = 1e-9
)

// MetricSet is the score of one prediction against one reference.
type MetricSet struct {
	MSE         float64 `json:"mse"`
	RMSE        float64 `json:"rmse"`
	MAE         float64 `json:"mae"`
	SAMDeg      float64 `json:"sam_deg"`
	TruePeakNM  float64 `json:"true_peak_nm"`
	PredPeakNM  float64 `json:"pred_peak_nm"`
	PeakErrorNM float64 `json:"peak_error_nm"`
	WithinTol   int     `json:"peak_within_tol"`
}

// Score compares pred to truth.
//
// # Metrics
//
//   - MSE, RMSE, MAE over all samples
//   - SAMDeg: the spectral angle arccos(t.p / (|t||p|)) in degrees, with the
//     cosine clamped to [-1, 1]; a zero-norm spectrum gives 90 degrees
//   - TruePeakNM, PredPeakNM: wavelengths of the argmax of each spectrum
//   - PeakErrorNM: |true - pred| peak; WithinTol is 1 when it is <= tolNM
//
// With nil wavelengths the peak fields are left at zero.
func Score(truth, pred, wavelengths []float64, tolNM float64) (MetricSet, error) {
	if len(truth) != len(pred) {
		return MetricSet{}, fmt.Errorf("%w: truth %d, prediction %d", ErrLengthMismatch, len(truth), len(pred))
	}
	if len(truth) == 0 {
		return MetricSet{}, fmt.Errorf("%w: empty spectra", ErrLengthMismatch)
	}
	if wavelengths != nil && len(wavelengths) != len(pred) {
		return MetricSet{}, fmt.Errorf("%w: wavelengths %d, prediction %d", ErrLengthMismatch, len(wavelengths), len(pred))
	}

	var m MetricSet
	var sq, abs float64
	for i := range truth {
		d := truth[i] - pred[i]
		sq += d * d
		abs += math.Abs(d)
	}
	n := float64(len(truth))
	m.MSE = sq / n
	m.RMSE = math.Sqrt(m.MSE)
	m.MAE = abs / n
	m.SAMDeg = spectralAngle(truth, pred)

	if wavelengths != nil {
		m.TruePeakNM = wavelengths[floats.MaxIdx(truth)]
		m.PredPeakNM = wavelengths[floats.MaxIdx(pred)]
		m.PeakErrorNM = math.Abs(m.TruePeakNM - m.PredPeakNM)
		if m.PeakErrorNM <= tolNM {
			m.WithinTol = 1
		}
	}
	return m, nil
}

func spectralAngle(a, b []float64) float64 {
	// sqrt(|a|^2 |b|^2) keeps cos exactly 1 when a == b.
	denom := math.Sqrt(floats.Dot(a, a) * floats.Dot(b, b))
	if denom == 0 {
		denom = samEpsilon
	}
	cos := floats.Dot(a, b) / denom
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// Aggregate summarizes the scored samples of one predictor.
//
// Every sample counts as a prediction, so precision and recall are both
// TP / SamplesWithGT.
type Aggregate struct {
	MSE           float64 `json:"mse"`
	RMSE          float64 `json:"rmse"`
	MAE           float64 `json:"mae"`
	SAMDeg        float64 `json:"sam_deg"`
	PeakErrorMean float64 `json:"peak_error_mean"`
	PeakErrorStd  float64 `json:"peak_error_std"`
	TruePeakMean  float64 `json:"true_peak_mean"`
	PredPeakMean  float64 `json:"pred_peak_mean"`
	WithinTolMean float64 `json:"peak_within_tol_mean"`
	SamplesWithGT int     `json:"samples_with_gt"`
	TP            int     `json:"tp"`
	Precision     float64 `json:"precision"`
	Recall        float64 `json:"recall"`
	F1            float64 `json:"f1"`
}

// Summarize aggregates sets. It returns nil when sets is empty. The peak
// error std is the sample standard deviation, 0 with fewer than two samples.
func Summarize(sets []MetricSet) *Aggregate {
	if len(sets) == 0 {
		return nil
	}

	n := len(sets)
	mse := make([]float64, n)
	rmse := make([]float64, n)
	mae := make([]float64, n)
	sam := make([]float64, n)
	peak := make([]float64, n)
	truePeak := make([]float64, n)
	predPeak := make([]float64, n)
	a := &Aggregate{SamplesWithGT: n}
	for i, s := range sets {
		mse[i] = s.MSE
		rmse[i] = s.RMSE
		mae[i] = s.MAE
		sam[i] = s.SAMDeg
		peak[i] = s.PeakErrorNM
		truePeak[i] = s.TruePeakNM
		predPeak[i] = s.PredPeakNM
		a.TP += s.WithinTol
	}

	a.MSE = stat.Mean(mse, nil)
	a.RMSE = stat.Mean(rmse, nil)
	a.MAE = stat.Mean(mae, nil)
	a.SAMDeg = stat.Mean(sam, nil)
	a.PeakErrorMean = stat.Mean(peak, nil)
	a.TruePeakMean = stat.Mean(truePeak, nil)
	a.PredPeakMean = stat.Mean(predPeak, nil)
	a.WithinTolMean = float64(a.TP) / float64(n)
	if n > 1 {
		a.PeakErrorStd = stat.StdDev(peak, nil)
	}

	a.Precision = float64(a.TP) / float64(n)
	a.Recall = a.Precision
	a.F1 = 2 * a.Precision * a.Recall / (a.Precision + a.Recall + f1Epsilon)
	return a
}
