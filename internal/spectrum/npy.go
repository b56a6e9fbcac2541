package spectrum

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio/npy"
)

// ReadNPY reads a one-dimensional numeric .npy array as float64 values.
//
// float64, float32, int64 and int32 little-endian arrays are accepted; the wavelength
// grid produced by numpy.arange is int64, the normalization vectors are float.
// Arrays with more than one non-unit dimension are rejected.
func ReadNPY(r io.Reader) ([]float64, error) {
	nr, err := npy.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("spectrum: read npy header: %w", err)
	}

	n := 1
	wide := 0
	for _, d := range nr.Header.Descr.Shape {
		n *= d
		if d > 1 {
			wide++
		}
	}
	if wide > 1 {
		return nil, fmt.Errorf("spectrum: npy array has shape %v, want a vector", nr.Header.Descr.Shape)
	}

	switch nr.Header.Descr.Type {
	case "<f8", "f8", "float64":
		var v []float64
		if err := nr.Read(&v); err != nil {
			return nil, fmt.Errorf("spectrum: read npy data: %w", err)
		}
		return v, nil
	case "<f4", "f4", "float32":
		var v []float32
		if err := nr.Read(&v); err != nil {
			return nil, fmt.Errorf("spectrum: read npy data: %w", err)
		}
		return widen(v), nil
	case "<i8", "i8", "int64":
		var v []int64
		if err := nr.Read(&v); err != nil {
			return nil, fmt.Errorf("spectrum: read npy data: %w", err)
		}
		return widen(v), nil
	case "<i4", "i4", "int32":
		var v []int32
		if err := nr.Read(&v); err != nil {
			return nil, fmt.Errorf("spectrum: read npy data: %w", err)
		}
		return widen(v), nil
	default:
		return nil, fmt.Errorf("spectrum: unsupported npy dtype %q (%d elements)", nr.Header.Descr.Type, n)
	}
}

// ReadNPYFile opens path and parses it with ReadNPY.
func ReadNPYFile(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadNPY(f)
}

// WriteNPYFile writes values as a float64 .npy vector.
func WriteNPYFile(path string, values []float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := npy.Write(f, values); err != nil {
		f.Close()
		return fmt.Errorf("spectrum: write npy: %w", err)
	}
	return f.Close()
}

func widen[T float32 | int64 | int32](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
