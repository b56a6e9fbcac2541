package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ironsheep/nanospectrum/internal/artifact"
	"github.com/ironsheep/nanospectrum/internal/morphology"
)

// ErrPredictorNotFound is returned when no metadata is registered under a name.
var ErrPredictorNotFound = errors.New("predictor: not registered")

// Metadata is the registration record stored as <registry>/<model_name>.json.
type Metadata struct {
	ModelName    string `json:"model_name"`
	Path         string `json:"path"`
	Origin       string `json:"origin"`
	Notes        string `json:"notes"`
	RegisteredAt string `json:"registered_at"`
}

// Config configures a Registry.
type Config struct {
	// Dir holds the <name>.json metadata files.
	Dir string `yaml:"dir"`

	// Hidden lists the hidden layer widths of the expected architecture. Nil
	// means the standard {128, 256}; an empty list means a single linear layer.
	Hidden []int `yaml:"hidden"`

	Normalization NormalizationConfig `yaml:"normalization"`
}

// DefaultHidden is the hidden layer layout of the standard predictor.
var DefaultHidden = []int{128, 256}

// DefaultConfig returns the registry layout models/registered with the
// standard architecture and normalization.
func DefaultConfig() Config {
	return Config{
		Dir:           filepath.Join("models", "registered"),
		Normalization: DefaultNormalizationConfig(),
	}
}

// Registry loads predictors on demand and caches them by name.
type Registry struct {
	cfg    Config
	store  artifact.Store
	morph  morphology.Config
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewRegistry creates an empty registry. Weights and normalization arrays are
// read through store; morph is the segmentation used by PredictImage.
func NewRegistry(cfg Config, store artifact.Store, morph morphology.Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:     cfg,
		store:   store,
		morph:   morph,
		logger:  logger,
		handles: make(map[string]*Handle),
	}
}

// Dir returns the metadata directory.
func (r *Registry) Dir() string { return r.cfg.Dir }

// Names lists every registered predictor, sorted.
func (r *Registry) Names() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.cfg.Dir, "*.json"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Metadata reads the registration record for name.
func (r *Registry) Metadata(name string) (Metadata, error) {
	if err := validName(name); err != nil {
		return Metadata{}, err
	}

	data, err := os.ReadFile(filepath.Join(r.cfg.Dir, name+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Metadata{}, fmt.Errorf("%w: %s", ErrPredictorNotFound, name)
		}
		return Metadata{}, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("predictor %q: bad metadata: %w", name, err)
	}
	if meta.ModelName == "" {
		meta.ModelName = name
	}
	if meta.Path == "" {
		return Metadata{}, fmt.Errorf("predictor %q: metadata has no path", name)
	}
	return meta, nil
}

// Register writes meta as <dir>/<model_name>.json. The weight artifact is not
// copied. RegisteredAt is filled in when empty.
func (r *Registry) Register(meta Metadata) (string, error) {
	if err := validName(meta.ModelName); err != nil {
		return "", err
	}
	if meta.Path == "" {
		return "", fmt.Errorf("predictor %q: path is required", meta.ModelName)
	}
	if meta.RegisteredAt == "" {
		meta.RegisteredAt = time.Now().Format(time.RFC3339)
	}

	if err := os.MkdirAll(r.cfg.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create registry directory: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	p := filepath.Join(r.cfg.Dir, meta.ModelName+".json")
	if err := os.WriteFile(p, append(data, '\n'), 0644); err != nil {
		return "", err
	}
	return p, nil
}

// GetOrLoad returns the cached handle for name, loading it on first use.
// Repeated calls return the same *Handle without re-reading any artifact.
func (r *Registry) GetOrLoad(ctx context.Context, name string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[name]; ok {
		return h, nil
	}

	h, err := r.load(ctx, name)
	if err != nil {
		return nil, err
	}
	r.handles[name] = h
	return h, nil
}

func (r *Registry) load(ctx context.Context, name string) (*Handle, error) {
	meta, err := r.Metadata(name)
	if err != nil {
		return nil, err
	}

	norm, err := LoadNormalization(ctx, r.store, r.cfg.Normalization)
	if err != nil {
		return nil, err
	}

	data, err := artifact.ReadAll(ctx, r.store, meta.Path)
	if err != nil {
		return nil, fmt.Errorf("predictor %q: %w", name, err)
	}

	net, strategy, failures := loadNetwork(data, r.expectedDims(len(norm.Wavelengths)))
	if net == nil {
		return nil, &LoadError{Name: name, Path: meta.Path, Attempts: failures}
	}

	h, err := NewHandle(meta, net, norm, r.morph)
	if err != nil {
		return nil, err
	}
	h.strategy = strategy

	r.logger.Info("predictor loaded",
		"name", name,
		"path", meta.Path,
		"strategy", strategy,
		"dims", net.Dims())
	return h, nil
}

func (r *Registry) expectedDims(out int) []int {
	hidden := r.cfg.Hidden
	if hidden == nil {
		hidden = DefaultHidden
	}
	dims := append([]int{morphology.FeatureLen}, hidden...)
	return append(dims, out)
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid predictor name %q", name)
	}
	return nil
}
