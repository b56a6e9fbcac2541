package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/nanospectrum/internal/artifact"
	"github.com/ironsheep/nanospectrum/internal/morphology"
	"github.com/ironsheep/nanospectrum/internal/spectrum"
)

// gaussianNet ignores its input and always emits a Gaussian bump centered on
// output index peak.
func gaussianNet(t *testing.T, out, peak int) *Network {
	t.Helper()
	b := make([]float64, out)
	for i := range b {
		d := float64(i - peak)
		b[i] = math.Exp(-d * d / 50)
	}
	net, err := NewNetwork(Layer{Weight: mat.NewDense(out, 4, nil), Bias: mat.NewVecDense(out, b)})
	require.NoError(t, err)
	return net
}

// fixture lays out data/processed normalization arrays and a registry dir
// under a temp root and returns the root.
func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	norm := filepath.Join(root, "data", "processed")
	require.NoError(t, spectrum.WriteNPYFile(filepath.Join(norm, "X_mean.npy"), []float64{0, 0, 0, 0}))
	require.NoError(t, spectrum.WriteNPYFile(filepath.Join(norm, "X_std.npy"), []float64{1, 1, 1, 1}))
	require.NoError(t, spectrum.WriteNPYFile(filepath.Join(norm, "wavelengths.npy"), spectrum.Grid(300, 800, 2)))
	return root
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func writeStateDict(t *testing.T, path string, net *Network) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteStateDict(f, net))
	require.NoError(t, f.Close())
}

func newRegistry(root string, hidden []int) *Registry {
	cfg := DefaultConfig()
	cfg.Dir = filepath.Join(root, "models", "registered")
	cfg.Hidden = hidden
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(cfg, artifact.NewLocalStore(root), morphology.DefaultConfig(), logger)
}

func TestNetworkForward(t *testing.T) {
	l1 := Layer{
		Weight: mat.NewDense(2, 2, []float64{1, 0, 0, -1}),
		Bias:   mat.NewVecDense(2, []float64{0, 0}),
	}
	l2 := Layer{
		Weight: mat.NewDense(1, 2, []float64{1, 1}),
		Bias:   mat.NewVecDense(1, []float64{0.5}),
	}
	net, err := NewNetwork(l1, l2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, net.Dims())

	// Hidden = relu(3, -2) = (3, 0).
	out, err := net.Forward([]float64{3, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{3.5}, out)

	_, err = net.Forward([]float64{1})
	assert.Error(t, err)

	_, err = NewNetwork(l2, l1)
	assert.Error(t, err)
}

func TestLoadStrategies(t *testing.T) {
	net := gaussianNet(t, 251, 100)
	var buf bytes.Buffer
	require.NoError(t, WriteStateDict(&buf, net))

	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &flat))

	prefixed := make(map[string]json.RawMessage)
	for k, v := range flat {
		prefixed["model."+k] = v
	}

	want := []int{4, 251}

	t.Run("state_dict", func(t *testing.T) {
		got, strategy, failures := loadNetwork(buf.Bytes(), want)
		require.NotNil(t, got, "%v", failures)
		assert.Equal(t, StrategyStateDict, strategy)
		assert.Equal(t, want, got.Dims())
	})

	t.Run("checkpoint", func(t *testing.T) {
		data, err := json.Marshal(map[string]any{"state_dict": prefixed, "epoch": 12})
		require.NoError(t, err)
		got, strategy, failures := loadNetwork(data, want)
		require.NotNil(t, got, "%v", failures)
		assert.Equal(t, StrategyCheckpoint, strategy)
	})

	t.Run("full_model", func(t *testing.T) {
		deep, err := NewNetwork(
			Layer{Weight: mat.NewDense(8, 4, nil), Bias: mat.NewVecDense(8, nil)},
			Layer{Weight: mat.NewDense(251, 8, nil), Bias: mat.NewVecDense(251, nil)},
		)
		require.NoError(t, err)
		var sd bytes.Buffer
		require.NoError(t, WriteStateDict(&sd, deep))

		data, err := json.Marshal(map[string]any{
			"architecture": map[string]any{"dims": []int{4, 8, 251}, "activation": "relu"},
			"state_dict":   json.RawMessage(sd.Bytes()),
		})
		require.NoError(t, err)

		got, strategy, failures := loadNetwork(data, want)
		require.NotNil(t, got, "%v", failures)
		assert.Equal(t, StrategyFullModel, strategy)
		assert.Equal(t, []int{4, 8, 251}, got.Dims())
	})

	t.Run("architecture mismatch fails every strategy", func(t *testing.T) {
		got, _, failures := loadNetwork(buf.Bytes(), []int{4, 128, 256, 251})
		assert.Nil(t, got)
		require.Len(t, failures, 3)
		assert.Equal(t, StrategyStateDict, failures[0].Strategy)
		assert.ErrorIs(t, failures[1], errNoCheckpointKey)
		assert.ErrorIs(t, failures[2], errNoArchitecture)
	})

	t.Run("not json", func(t *testing.T) {
		got, _, failures := loadNetwork([]byte("\x80torch pickle"), want)
		assert.Nil(t, got)
		require.Len(t, failures, 1)
		assert.ErrorIs(t, failures[0], errNotWeightMapJSON)
	})
}

func TestBuildNetworkRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", `{}`},
		{"foreign key", `{"net.0.weight": [[1]], "net.0.bias": [0], "extra": 1}`},
		{"missing bias", `{"net.0.weight": [[1, 2]]}`},
		{"ragged", `{"net.0.weight": [[1, 2], [3]], "net.0.bias": [0, 0]}`},
		{"bad index", `{"net.x.weight": [[1]], "net.x.bias": [0]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc map[string]json.RawMessage
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &doc))
			_, err := buildNetwork(doc, nil)
			assert.Error(t, err)
		})
	}
}

func TestRegistryGetOrLoad(t *testing.T) {
	root := fixture(t)
	reg := newRegistry(root, []int{})

	writeStateDict(t, filepath.Join(root, "models", "registered", "a.json.weights"), gaussianNet(t, 251, 100))
	_, err := reg.Register(Metadata{ModelName: "A", Path: "models/registered/a.json.weights", Origin: "test"})
	require.NoError(t, err)

	ctx := context.Background()
	h1, err := reg.GetOrLoad(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "A", h1.Name())
	assert.Equal(t, StrategyStateDict, h1.Strategy())
	assert.Len(t, h1.Wavelengths(), 251)

	// Removing the artifact proves the second call is served from the cache.
	require.NoError(t, os.Remove(filepath.Join(root, "models", "registered", "a.json.weights")))
	h2, err := reg.GetOrLoad(ctx, "A")
	require.NoError(t, err)
	assert.Same(t, h1, h2)

	_, err = reg.GetOrLoad(ctx, "nope")
	assert.ErrorIs(t, err, ErrPredictorNotFound)

	names, err := reg.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names)
}

func TestRegistryAbsolutePathAndCompression(t *testing.T) {
	root := fixture(t)
	reg := newRegistry(root, []int{})

	var sd bytes.Buffer
	require.NoError(t, WriteStateDict(&sd, gaussianNet(t, 251, 50)))
	var zbuf bytes.Buffer
	zw, err := zstd.NewWriter(&zbuf)
	require.NoError(t, err)
	_, err = zw.Write(sd.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	abs := filepath.Join(t.TempDir(), "weights.json.zst")
	require.NoError(t, os.WriteFile(abs, zbuf.Bytes(), 0644))
	_, err = reg.Register(Metadata{ModelName: "Z", Path: abs})
	require.NoError(t, err)

	h, err := reg.GetOrLoad(context.Background(), "Z")
	require.NoError(t, err)

	p, err := h.PredictFeatures(morphology.FeatureVector{})
	require.NoError(t, err)
	assert.Equal(t, 400.0, p.PeakNM)
}

func TestRegistryLoadError(t *testing.T) {
	root := fixture(t)
	reg := newRegistry(root, nil)

	// A 4->251 network does not fit the default 4->128->256->251 layout.
	writeStateDict(t, filepath.Join(root, "w.json"), gaussianNet(t, 251, 100))
	_, err := reg.Register(Metadata{ModelName: "small", Path: "w.json"})
	require.NoError(t, err)

	_, err = reg.GetOrLoad(context.Background(), "small")
	var le *LoadError
	require.True(t, errors.As(err, &le), "got %v", err)
	assert.Len(t, le.Attempts, 3)
	assert.Contains(t, err.Error(), "architecture mismatch")
}

func TestRegistryNormalizationErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		root := fixture(t)
		require.NoError(t, os.Remove(filepath.Join(root, "data", "processed", "X_std.npy")))
		reg := newRegistry(root, []int{})
		writeStateDict(t, filepath.Join(root, "w.json"), gaussianNet(t, 251, 100))
		_, err := reg.Register(Metadata{ModelName: "A", Path: "w.json"})
		require.NoError(t, err)

		_, err = reg.GetOrLoad(ctx, "A")
		assert.ErrorIs(t, err, ErrNormalization)
	})

	t.Run("malformed weights", func(t *testing.T) {
		root := fixture(t)
		reg := newRegistry(root, []int{})
		writeJSON(t, filepath.Join(root, "w.json"), map[string]any{
			"architecture": map[string]any{"dims": []int{4, 10}},
			"state_dict": map[string]any{
				"net.0.weight": make([][]float64, 10),
			},
		})
		_, err := reg.Register(Metadata{ModelName: "A", Path: "w.json"})
		require.NoError(t, err)

		_, err = reg.GetOrLoad(ctx, "A")
		assert.Error(t, err)
	})

	t.Run("zero std", func(t *testing.T) {
		n := &Normalization{Mean: make([]float64, 4), Std: []float64{1, 0, 1, 1}, Wavelengths: []float64{1, 2}}
		assert.ErrorIs(t, n.Validate(), ErrNormalization)
	})
}

func TestPredictFeatures(t *testing.T) {
	norm := &Normalization{
		Mean:        []float64{0, 0, 0, 0},
		Std:         []float64{1, 1, 1, 1},
		Wavelengths: spectrum.Grid(300, 800, 2),
	}
	h, err := NewHandle(Metadata{ModelName: "A"}, gaussianNet(t, 251, 100), norm, morphology.DefaultConfig())
	require.NoError(t, err)

	fv := morphology.FeatureVector{MeanDiameter: 30, StdDiameter: 2, Count: 12, MeanAspect: 1.1}
	p, err := h.PredictFeatures(fv)
	require.NoError(t, err)

	assert.Len(t, p.Spectrum, 251)
	assert.Equal(t, 500.0, p.PeakNM)
	// exp(-d^2/50) > 0.5 for |d| <= 5 samples, i.e. 10 samples of 2 nm.
	assert.Equal(t, 20.0, p.FWHMNM)
	assert.Equal(t, fv, p.Features)

	_, err = NewHandle(Metadata{ModelName: "A"}, gaussianNet(t, 10, 5), norm, morphology.DefaultConfig())
	assert.ErrorIs(t, err, ErrNormalization)
}

func TestNormalizationApply(t *testing.T) {
	n := &Normalization{Mean: []float64{1, 2, 3, 4}, Std: []float64{2, 2, 2, 2}}
	assert.Equal(t, []float64{0.5, 0, -0.5, 1}, n.Apply([]float64{2, 2, 2, 6}))
}

func TestRegisterValidation(t *testing.T) {
	reg := newRegistry(t.TempDir(), nil)

	_, err := reg.Register(Metadata{ModelName: "../evil", Path: "x"})
	assert.Error(t, err)
	_, err = reg.Register(Metadata{ModelName: "ok"})
	assert.Error(t, err)

	p, err := reg.Register(Metadata{ModelName: "ok", Path: "x.pth", Notes: "baseline"})
	require.NoError(t, err)

	meta, err := reg.Metadata("ok")
	require.NoError(t, err)
	assert.Equal(t, "x.pth", meta.Path)
	assert.NotEmpty(t, meta.RegisteredAt)
	assert.FileExists(t, p)
}
