package spectrum

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Column names used by the CSV artifacts.
const (
	ColWavelength = "wavelength"
	ColSpectrum   = "spectrum"
	ColPrediction = "prediction"
)

// ErrNoColumns is returned by ReadTable for an empty CSV.
var ErrNoColumns = errors.New("spectrum: csv has no columns")

// Table is a numeric CSV held column-wise.
//
// Header is nil when the first row was numeric, i.e. the file had no header line.
type Table struct {
	Header  []string
	Columns [][]float64
}

// Column returns the column whose header equals name (case-insensitive, trimmed).
func (t *Table) Column(name string) ([]float64, bool) {
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return t.Columns[i], true
		}
	}
	return nil, false
}

// ReadTable parses a numeric CSV. The first row is treated as a header unless every
// cell in it parses as a number. Every later cell must be numeric.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("spectrum: read csv: %w", err)
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, ErrNoColumns
	}

	t := &Table{}
	width := len(records[0])
	if !numericRow(records[0]) {
		t.Header = records[0]
		records = records[1:]
	}

	t.Columns = make([][]float64, width)
	for i, rec := range records {
		if len(rec) != width {
			return nil, fmt.Errorf("spectrum: csv row %d has %d fields, want %d", i+1, len(rec), width)
		}
		for j, cell := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("spectrum: csv row %d column %d: %w", i+1, j, err)
			}
			t.Columns[j] = append(t.Columns[j], v)
		}
	}
	return t, nil
}

// ReadTableFile opens path and parses it with ReadTable.
func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f)
}

func numericRow(rec []string) bool {
	for _, cell := range rec {
		if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err != nil {
			return false
		}
	}
	return true
}

// WriteCSV writes two equal-length columns with the given header names to path,
// creating parent directories as needed.
func WriteCSV(path, xName, yName string, xs, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(xs), len(ys))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{xName, yName}); err != nil {
		f.Close()
		return err
	}
	for i := range xs {
		rec := []string{formatFloat(xs[i]), formatFloat(ys[i])}
		if err := w.Write(rec); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteGroundTruth persists s as a ground-truth CSV (wavelength,spectrum).
func WriteGroundTruth(path string, s *Spectrum) error {
	return WriteCSV(path, ColWavelength, ColSpectrum, s.Wavelengths, s.Intensity)
}

// WritePrediction persists s as a prediction CSV (wavelength,prediction).
func WritePrediction(path string, s *Spectrum) error {
	return WriteCSV(path, ColWavelength, ColPrediction, s.Wavelengths, s.Intensity)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
