package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid(n int) []float64 {
	g := make([]float64, n)
	for i := range g {
		g[i] = 400 + 2*float64(i)
	}
	return g
}

func bump(n, peak int) []float64 {
	v := make([]float64, n)
	for i := range v {
		d := float64(i - peak)
		v[i] = math.Exp(-d * d / 20)
	}
	return v
}

func TestScoreIdentical(t *testing.T) {
	x := bump(201, 80)
	m, err := Score(x, x, grid(201), 5)
	require.NoError(t, err)

	assert.Equal(t, 0.0, m.MSE)
	assert.Equal(t, 0.0, m.RMSE)
	assert.Equal(t, 0.0, m.MAE)
	assert.InDelta(t, 0, m.SAMDeg, 1e-6)
	assert.Equal(t, 0.0, m.PeakErrorNM)
	assert.Equal(t, 1, m.WithinTol)
	assert.Equal(t, 560.0, m.TruePeakNM)
}

func TestScoreValues(t *testing.T) {
	truth := []float64{1, 0, 0}
	pred := []float64{0, 1, 0}
	m, err := Score(truth, pred, []float64{400, 402, 404}, 1)
	require.NoError(t, err)

	assert.InDelta(t, 2.0/3, m.MSE, 1e-12)
	assert.InDelta(t, math.Sqrt(2.0/3), m.RMSE, 1e-12)
	assert.InDelta(t, 2.0/3, m.MAE, 1e-12)
	assert.InDelta(t, 90, m.SAMDeg, 1e-9)
	assert.Equal(t, 2.0, m.PeakErrorNM)
	assert.Equal(t, 0, m.WithinTol)
}

func TestScoreToleranceInclusive(t *testing.T) {
	truth := bump(201, 50)
	pred := bump(201, 55)
	g := grid(201)

	m, err := Score(truth, pred, g, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, m.PeakErrorNM)
	assert.Equal(t, 1, m.WithinTol)

	m, err = Score(truth, pred, g, 9.999)
	require.NoError(t, err)
	assert.Equal(t, 0, m.WithinTol)
}

func TestScoreLengthMismatch(t *testing.T) {
	_, err := Score([]float64{1, 2}, []float64{1}, nil, 5)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Score([]float64{1, 2}, []float64{1, 2}, []float64{400}, 5)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestScoreWithoutWavelengths(t *testing.T) {
	m, err := Score([]float64{1, 2}, []float64{2, 1}, nil, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.PeakErrorNM)
	assert.Equal(t, 0, m.WithinTol)
}

func TestScoreZeroSpectrum(t *testing.T) {
	m, err := Score([]float64{0, 0}, []float64{1, 1}, nil, 5)
	require.NoError(t, err)
	assert.InDelta(t, 90, m.SAMDeg, 1e-9)
}

func TestSummarize(t *testing.T) {
	assert.Nil(t, Summarize(nil))

	sets := []MetricSet{
		{MSE: 1, RMSE: 1, MAE: 1, SAMDeg: 10, TruePeakNM: 500, PredPeakNM: 502, PeakErrorNM: 2, WithinTol: 1},
		{MSE: 3, RMSE: 2, MAE: 2, SAMDeg: 20, TruePeakNM: 520, PredPeakNM: 514, PeakErrorNM: 6, WithinTol: 1},
		{MSE: 5, RMSE: 3, MAE: 3, SAMDeg: 30, TruePeakNM: 540, PredPeakNM: 550, PeakErrorNM: 10, WithinTol: 0},
	}
	a := Summarize(sets)
	require.NotNil(t, a)

	assert.Equal(t, 3.0, a.MSE)
	assert.Equal(t, 2.0, a.RMSE)
	assert.Equal(t, 20.0, a.SAMDeg)
	assert.Equal(t, 6.0, a.PeakErrorMean)
	assert.InDelta(t, 4.0, a.PeakErrorStd, 1e-12)
	assert.Equal(t, 520.0, a.TruePeakMean)
	assert.Equal(t, 522.0, a.PredPeakMean)
	assert.InDelta(t, 2.0/3, a.WithinTolMean, 1e-12)
	assert.Equal(t, 3, a.SamplesWithGT)
	assert.Equal(t, 2, a.TP)
	assert.InDelta(t, 2.0/3, a.Precision, 1e-12)
	assert.Equal(t, a.Precision, a.Recall)
	assert.InDelta(t, 2.0/3, a.F1, 1e-8)

	single := Summarize(sets[:1])
	assert.Equal(t, 0.0, single.PeakErrorStd)
}
