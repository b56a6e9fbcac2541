package predictor

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// layerKeyPrefix is the module name of the sequential stack in weight maps.
const layerKeyPrefix = "net."

// buildNetwork assembles a Network from a flat weight map keyed
// net.<index>.weight / net.<index>.bias. Every key must belong to a layer.
// When want is non-nil the layer widths must equal it exactly.
func buildNetwork(weights map[string]json.RawMessage, want []int) (*Network, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("weight map is empty")
	}

	type pair struct {
		weight *mat.Dense
		bias   *mat.VecDense
	}
	byIndex := make(map[int]*pair)

	for key, raw := range weights {
		idx, kind, err := parseLayerKey(key)
		if err != nil {
			return nil, err
		}
		p, ok := byIndex[idx]
		if !ok {
			p = &pair{}
			byIndex[idx] = p
		}

		switch kind {
		case "weight":
			var rows [][]float64
			if err := json.Unmarshal(raw, &rows); err != nil {
				return nil, fmt.Errorf("%s: want a matrix: %w", key, err)
			}
			p.weight, err = denseFromRows(rows)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
		case "bias":
			var vals []float64
			if err := json.Unmarshal(raw, &vals); err != nil {
				return nil, fmt.Errorf("%s: want a vector: %w", key, err)
			}
			if len(vals) == 0 {
				return nil, fmt.Errorf("%s: empty bias", key)
			}
			p.bias = mat.NewVecDense(len(vals), vals)
		}
	}

	indices := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	layers := make([]Layer, 0, len(indices))
	for _, idx := range indices {
		p := byIndex[idx]
		if p.weight == nil || p.bias == nil {
			return nil, fmt.Errorf("layer net.%d is missing its weight or bias", idx)
		}
		layers = append(layers, Layer{Weight: p.weight, Bias: p.bias})
	}

	net, err := NewNetwork(layers...)
	if err != nil {
		return nil, err
	}
	if want != nil && !equalDims(net.Dims(), want) {
		return nil, fmt.Errorf("architecture mismatch: weights have widths %v, want %v", net.Dims(), want)
	}
	return net, nil
}

func parseLayerKey(key string) (int, string, error) {
	rest, ok := strings.CutPrefix(key, layerKeyPrefix)
	if !ok {
		return 0, "", fmt.Errorf("unexpected key %q", key)
	}
	num, kind, ok := strings.Cut(rest, ".")
	if !ok || (kind != "weight" && kind != "bias") {
		return 0, "", fmt.Errorf("unexpected key %q", key)
	}
	idx, err := strconv.Atoi(num)
	if err != nil || idx < 0 {
		return 0, "", fmt.Errorf("unexpected key %q", key)
	}
	return idx, kind, nil
}

func denseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty matrix")
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), c, data), nil
}

func equalDims(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// WriteStateDict writes net as a bare state_dict weight map. Linear layer i is
// stored under index 2*i, leaving room for the activation modules between them.
func WriteStateDict(w io.Writer, net *Network) error {
	sd := make(map[string]any, 2*len(net.layers))
	for i, l := range net.layers {
		r, _ := l.Weight.Dims()
		rows := make([][]float64, r)
		for j := range rows {
			rows[j] = mat.Row(nil, j, l.Weight)
		}
		key := layerKeyPrefix + strconv.Itoa(2*i)
		sd[key+".weight"] = rows
		sd[key+".bias"] = mat.Col(nil, 0, l.Bias)
	}
	return json.NewEncoder(w).Encode(sd)
}
