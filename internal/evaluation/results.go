package evaluation

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/ironsheep/nanospectrum/internal/metrics"
)

// Row is one (sample, predictor) outcome. Nil fields are "no data" and are
// written as empty CSV cells and JSON nulls.
type Row struct {
	SampleID    string   `json:"sample_id"`
	ImagePath   string   `json:"image_path"`
	ModelName   string   `json:"model_name"`
	PredPeakNM  *float64 `json:"pred_peak_nm"`
	PredFWHMNM  *float64 `json:"pred_fwhm_nm"`
	MSE         *float64 `json:"mse"`
	RMSE        *float64 `json:"rmse"`
	MAE         *float64 `json:"mae"`
	SAMDeg      *float64 `json:"sam_deg"`
	TruePeakNM  *float64 `json:"true_peak_nm"`
	PeakErrorNM *float64 `json:"peak_error_nm"`
	WithinTol   *int     `json:"peak_within_tol"`
	GroundTruth string   `json:"ground_truth,omitempty"`
	Error       string   `json:"error,omitempty"`
	Prediction  string   `json:"prediction_path,omitempty"`
}

// Scored reports whether the row carries metrics.
func (r *Row) Scored() bool { return r.MSE != nil }

// SetMetrics copies m into the row.
func (r *Row) SetMetrics(m metrics.MetricSet) {
	r.MSE = ptr(m.MSE)
	r.RMSE = ptr(m.RMSE)
	r.MAE = ptr(m.MAE)
	r.SAMDeg = ptr(m.SAMDeg)
	r.TruePeakNM = ptr(m.TruePeakNM)
	r.PeakErrorNM = ptr(m.PeakErrorNM)
	r.WithinTol = ptr(m.WithinTol)
}

// MetricSet rebuilds the metrics of a scored row.
func (r *Row) MetricSet() (metrics.MetricSet, bool) {
	if !r.Scored() {
		return metrics.MetricSet{}, false
	}
	m := metrics.MetricSet{
		MSE:         *r.MSE,
		RMSE:        *r.RMSE,
		MAE:         *r.MAE,
		SAMDeg:      *r.SAMDeg,
		TruePeakNM:  deref(r.TruePeakNM),
		PeakErrorNM: deref(r.PeakErrorNM),
	}
	if r.PredPeakNM != nil {
		m.PredPeakNM = *r.PredPeakNM
	}
	if r.WithinTol != nil {
		m.WithinTol = *r.WithinTol
	}
	return m, true
}

func ptr[T any](v T) *T { return &v }

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

var resultsHeader = []string{
	"sample_id", "image_path", "model_name",
	"pred_peak_nm", "pred_fwhm_nm",
	"mse", "rmse", "mae", "sam_deg",
	"true_peak_nm", "peak_error_nm", "peak_within_tol",
	"ground_truth", "error", "prediction_path",
}

func (r *Row) record() []string {
	return []string{
		r.SampleID,
		r.ImagePath,
		r.ModelName,
		floatCell(r.PredPeakNM),
		floatCell(r.PredFWHMNM),
		floatCell(r.MSE),
		floatCell(r.RMSE),
		floatCell(r.MAE),
		floatCell(r.SAMDeg),
		floatCell(r.TruePeakNM),
		floatCell(r.PeakErrorNM),
		intCell(r.WithinTol),
		r.GroundTruth,
		r.Error,
		r.Prediction,
	}
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// sortRows orders rows by image path, then model name.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ImagePath != rows[j].ImagePath {
			return rows[i].ImagePath < rows[j].ImagePath
		}
		return rows[i].ModelName < rows[j].ModelName
	})
}

// resultsWriter appends rows to the results table, flushing after every row
// so a crash leaves every completed row on disk.
type resultsWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

func newResultsWriter(path string) (*resultsWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(resultsHeader); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &resultsWriter{path: path, file: f, writer: w}, nil
}

// Write appends one row. It is safe for concurrent use.
func (rw *resultsWriter) Write(r Row) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if err := rw.writer.Write(r.record()); err != nil {
		return err
	}
	rw.writer.Flush()
	return rw.writer.Error()
}

func (rw *resultsWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	rw.writer.Flush()
	return rw.file.Close()
}

// writeResultsAtomic replaces the table at path with rows, via a temp file and
// rename so readers never see a half-written table.
func writeResultsAtomic(path string, rows []Row) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp results file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(resultsHeader); err != nil {
		f.Close()
		return err
	}
	for i := range rows {
		if err := w.Write(rows[i].record()); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename results file: %w", err)
	}
	return nil
}
