package evaluation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/nanospectrum/internal/imaging"
	"github.com/ironsheep/nanospectrum/internal/matcher"
	"github.com/ironsheep/nanospectrum/internal/metrics"
	"github.com/ironsheep/nanospectrum/internal/morphology"
	"github.com/ironsheep/nanospectrum/internal/predictor"
	"github.com/ironsheep/nanospectrum/internal/spectrum"
)

// AllPredictors selects every registered predictor.
const AllPredictors = "all"

// Output file names inside a run directory.
const (
	PredictionsDir = "predictions"
	ResultsFile    = "results_per_sample.csv"
	SummaryFile    = "summary.json"
)

// ErrNoPredictors is returned when none of the requested predictors loaded.
var ErrNoPredictors = errors.New("evaluation: no predictor could be loaded")

// Registry is the predictor source used by the orchestrator.
type Registry interface {
	GetOrLoad(ctx context.Context, name string) (*predictor.Handle, error)
	Names() ([]string, error)
}

// Matcher finds ground truth for a sample image.
type Matcher interface {
	Match(imagePath string) (*matcher.GroundTruth, error)
}

// Config controls a run.
type Config struct {
	// OutputRoot is the parent of every run directory.
	OutputRoot string `yaml:"output_root"`

	// Workers is the number of samples evaluated concurrently.
	Workers int `yaml:"workers"`

	// UnitTimeout bounds feature extraction and each inference. Zero disables it.
	UnitTimeout time.Duration `yaml:"unit_timeout"`

	// ToleranceNM is the default peak tolerance.
	ToleranceNM float64 `yaml:"tolerance_nm"`
}

// DefaultConfig returns a sequential configuration writing under outputs/evaluations.
func DefaultConfig() Config {
	return Config{
		OutputRoot:  filepath.Join("outputs", "evaluations"),
		Workers:     1,
		UnitTimeout: 2 * time.Minute,
		ToleranceNM: 5,
	}
}

// Orchestrator runs evaluations. Its collaborators are injected so tests can
// supply an isolated registry.
type Orchestrator struct {
	registry Registry
	matcher  Matcher
	cfg      Config
	logger   *slog.Logger
}

// New creates an Orchestrator.
func New(registry Registry, m Matcher, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{registry: registry, matcher: m, cfg: cfg, logger: logger}
}

type loaded struct {
	name   string
	handle *predictor.Handle
}

// Run evaluates the named predictors on every image under dataDir.
//
// names may be empty or {"all"} for every registered predictor. Every
// discovered image produces exactly one row per loaded predictor. When ctx
// is cancelled no new samples start, the rows written so far stay in the
// results table and no summary is produced.
func (o *Orchestrator) Run(ctx context.Context, names []string, dataDir string, toleranceNM float64) (*Summary, error) {
	started := time.Now()

	handles, err := o.loadPredictors(ctx, names)
	if err != nil {
		return nil, err
	}

	images, err := DiscoverImages(dataDir)
	if err != nil {
		return nil, err
	}

	predNames := predictionNames(dataDir, images)

	runID := uuid.New().String()
	outDir := filepath.Join(o.cfg.OutputRoot, runID)
	if err := os.MkdirAll(filepath.Join(outDir, PredictionsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	o.logger.Info("evaluation started",
		"run_id", runID,
		"predictors", len(handles),
		"samples", len(images),
		"workers", o.cfg.Workers,
		"output", outDir)

	resultsPath := filepath.Join(outDir, ResultsFile)
	rw, err := newResultsWriter(resultsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create results table: %w", err)
	}

	var (
		mu   sync.Mutex
		rows []Row
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for _, img := range images {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			sampleRows := o.evaluateSample(gctx, img, predNames[img], handles, outDir, toleranceNM)
			for _, r := range sampleRows {
				if err := rw.Write(r); err != nil {
					return fmt.Errorf("failed to write results row: %w", err)
				}
			}
			mu.Lock()
			rows = append(rows, sampleRows...)
			mu.Unlock()
			return nil
		})
	}
	werr := g.Wait()
	if cerr := rw.Close(); werr == nil && cerr != nil {
		werr = cerr
	}
	if werr != nil {
		return nil, werr
	}
	if err := ctx.Err(); err != nil {
		o.logger.Warn("evaluation interrupted", "run_id", runID, "rows", len(rows))
		return nil, err
	}

	sortRows(rows)
	if err := writeResultsAtomic(resultsPath, rows); err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:     runID,
		StartedAt: started,
		NSamples:  len(images),
		OutputDir: outDir,
		Models:    summarize(handles, rows),
	}
	if err := writeSummary(filepath.Join(outDir, SummaryFile), summary); err != nil {
		return nil, err
	}

	o.logger.Info("evaluation complete",
		"run_id", runID,
		"rows", len(rows),
		"elapsed", time.Since(started).Round(time.Millisecond))
	return summary, nil
}

// loadPredictors resolves names and loads each predictor. Unregistered names
// and normalization failures abort; other load failures are skipped.
func (o *Orchestrator) loadPredictors(ctx context.Context, names []string) ([]loaded, error) {
	if len(names) == 0 || (len(names) == 1 && strings.EqualFold(names[0], AllPredictors)) {
		all, err := o.registry.Names()
		if err != nil {
			return nil, fmt.Errorf("failed to list predictors: %w", err)
		}
		names = all
	}

	seen := make(map[string]bool)
	var out []loaded
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		h, err := o.registry.GetOrLoad(ctx, name)
		switch {
		case err == nil:
			out = append(out, loaded{name: name, handle: h})
		case errors.Is(err, predictor.ErrPredictorNotFound), errors.Is(err, predictor.ErrNormalization):
			return nil, err
		default:
			o.logger.Warn("skipping predictor", "name", name, "error", err)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoPredictors
	}
	return out, nil
}

// DiscoverImages returns every sample image under dir, recursively, sorted.
func DiscoverImages(dir string) ([]string, error) {
	var images []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && imaging.IsImageFile(path) {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan data directory: %w", err)
	}
	sort.Strings(images)
	return images, nil
}

// SampleID is the image file name without its extension.
func SampleID(imagePath string) string {
	base := filepath.Base(imagePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// predictionNames assigns every image the name its prediction files are saved
// under. The sample ID is used when it is unique among images. Otherwise the
// path relative to dataDir is flattened with "__", keeping the extension when
// that alone is still ambiguous.
func predictionNames(dataDir string, images []string) map[string]string {
	rel := func(p string) string {
		r, err := filepath.Rel(dataDir, p)
		if err != nil {
			r = p
		}
		return r
	}
	flatten := func(r string) string {
		return strings.ReplaceAll(filepath.ToSlash(r), "/", "__")
	}
	count := func(key func(string) string) map[string]int {
		n := make(map[string]int, len(images))
		for _, img := range images {
			n[key(img)]++
		}
		return n
	}

	byID := count(SampleID)
	stem := func(p string) string {
		r := rel(p)
		return flatten(strings.TrimSuffix(r, filepath.Ext(r)))
	}
	byStem := count(stem)

	names := make(map[string]string, len(images))
	for _, img := range images {
		switch {
		case byID[SampleID(img)] == 1:
			names[img] = SampleID(img)
		case byStem[stem(img)] == 1:
			names[img] = stem(img)
		default:
			names[img] = strings.ReplaceAll(flatten(rel(img)), ".", "_")
		}
	}
	return names
}

// evaluateSample produces one row per handle for imagePath. It never fails;
// per-sample problems end up in the rows' error column. predName is the
// sample part of the prediction file names.
func (o *Orchestrator) evaluateSample(ctx context.Context, imagePath, predName string, handles []loaded, outDir string, tol float64) []Row {
	id := SampleID(imagePath)
	log := o.logger.With("sample", id)

	rows := make([]Row, len(handles))
	for i, h := range handles {
		rows[i] = Row{SampleID: id, ImagePath: imagePath, ModelName: h.name}
	}
	fail := func(err error) []Row {
		log.Warn("sample not evaluated", "error", err)
		for i := range rows {
			rows[i].Error = err.Error()
		}
		return rows
	}

	gt, err := o.matcher.Match(imagePath)
	if err != nil {
		log.Warn("ground truth ignored", "error", err)
		gt = nil
	}
	if gt != nil {
		for i := range rows {
			rows[i].GroundTruth = gt.Path
		}
	}

	img, err := imaging.Open(imagePath)
	if err != nil {
		return fail(err)
	}

	// Handles from one registry share segmentation settings, so features are
	// extracted once per sample.
	features, err := withTimeout(ctx, o.cfg.UnitTimeout, func() (morphology.FeatureVector, error) {
		return handles[0].handle.Extract(img)
	})
	if err != nil {
		return fail(err)
	}

	for i, h := range handles {
		o.predictOne(ctx, &rows[i], h, features, gt, filepath.Join(outDir, PredictionsDir, h.name+"_"+predName+".csv"), tol, log)
	}
	return rows
}

func (o *Orchestrator) predictOne(ctx context.Context, row *Row, h loaded, fv morphology.FeatureVector, gt *matcher.GroundTruth, predPath string, tol float64, log *slog.Logger) {
	pred, err := withTimeout(ctx, o.cfg.UnitTimeout, func() (*predictor.Prediction, error) {
		return h.handle.PredictFeatures(fv)
	})
	if err != nil {
		log.Warn("prediction failed", "model", h.name, "error", err)
		row.Error = err.Error()
		return
	}
	row.PredPeakNM = ptr(pred.PeakNM)
	row.PredFWHMNM = ptr(pred.FWHMNM)

	if err := spectrum.WritePrediction(predPath, pred.AsSpectrum()); err != nil {
		log.Warn("prediction not saved", "model", h.name, "error", err)
		row.Error = err.Error()
	} else {
		row.Prediction = predPath
	}

	if gt == nil {
		return
	}
	truth, err := gt.On(pred.Wavelengths)
	if err != nil {
		log.Warn("ground truth not comparable", "model", h.name, "error", err)
		return
	}
	m, err := metrics.Score(truth, pred.Spectrum, pred.Wavelengths, tol)
	if err != nil {
		log.Info("sample not scored", "model", h.name, "error", err)
		return
	}
	row.SetMetrics(m)
}

// withTimeout runs fn and gives up after d. fn keeps running in the
// background after a timeout; its result is discarded.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if d <= 0 {
		return fn()
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return zero, fmt.Errorf("unit timed out: %w", ctx.Err())
	}
}

// summarize aggregates scored rows per predictor, in load order.
func summarize(handles []loaded, rows []Row) map[string]ModelOutcome {
	sets := make(map[string][]metrics.MetricSet)
	for i := range rows {
		if m, ok := rows[i].MetricSet(); ok {
			sets[rows[i].ModelName] = append(sets[rows[i].ModelName], m)
		}
	}

	out := make(map[string]ModelOutcome, len(handles))
	for _, h := range handles {
		out[h.name] = ModelOutcome{Aggregate: metrics.Summarize(sets[h.name])}
	}
	return out
}
