package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Strategy names, in the order they are tried.
const (
	StrategyStateDict  = "state_dict"
	StrategyCheckpoint = "checkpoint"
	StrategyFullModel  = "full_model"
)

// checkpointPrefix is the module prefix training checkpoints put on every key.
const checkpointPrefix = "model."

var (
	errNoCheckpointKey  = errors.New(`no "state_dict" key`)
	errNoArchitecture   = errors.New(`no "architecture" key`)
	errNotWeightMapJSON = errors.New("artifact is not a JSON object")
)

// StrategyError is the reason one load strategy rejected an artifact.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e StrategyError) Error() string {
	return e.Strategy + ": " + e.Err.Error()
}

func (e StrategyError) Unwrap() error { return e.Err }

// LoadError reports that no strategy could load a predictor's weights.
type LoadError struct {
	Name     string
	Path     string
	Attempts []StrategyError
}

func (e *LoadError) Error() string {
	reasons := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		reasons[i] = a.Error()
	}
	return fmt.Sprintf("predictor %q: cannot load %s (%s)", e.Name, e.Path, strings.Join(reasons, "; "))
}

func (e *LoadError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a
	}
	return errs
}

type loadStrategy struct {
	name string
	load func(doc map[string]json.RawMessage, want []int) (*Network, error)
}

var strategies = []loadStrategy{
	{StrategyStateDict, loadStateDict},
	{StrategyCheckpoint, loadCheckpoint},
	{StrategyFullModel, loadFullModel},
}

// loadNetwork tries every strategy in order and returns the first network
// built, with the name of the strategy that built it. want is the expected
// widths {in, hidden..., out}.
func loadNetwork(data []byte, want []int) (*Network, string, []StrategyError) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", []StrategyError{{Strategy: "decode", Err: fmt.Errorf("%w: %v", errNotWeightMapJSON, err)}}
	}

	var failures []StrategyError
	for _, s := range strategies {
		net, err := s.load(doc, want)
		if err == nil {
			return net, s.name, nil
		}
		failures = append(failures, StrategyError{Strategy: s.name, Err: err})
	}
	return nil, "", failures
}

func loadStateDict(doc map[string]json.RawMessage, want []int) (*Network, error) {
	return buildNetwork(doc, want)
}

func loadCheckpoint(doc map[string]json.RawMessage, want []int) (*Network, error) {
	raw, ok := doc["state_dict"]
	if !ok {
		return nil, errNoCheckpointKey
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, fmt.Errorf("state_dict is not an object: %w", err)
	}

	stripped := make(map[string]json.RawMessage, len(nested))
	for k, v := range nested {
		stripped[strings.TrimPrefix(k, checkpointPrefix)] = v
	}
	return buildNetwork(stripped, want)
}

// fullModelArchitecture is the self-description carried by full_model artifacts.
type fullModelArchitecture struct {
	Dims       []int  `json:"dims"`
	Activation string `json:"activation"`
}

// loadFullModel accepts any hidden widths the artifact declares, as long as the
// input and output widths match what the handle needs.
func loadFullModel(doc map[string]json.RawMessage, want []int) (*Network, error) {
	rawArch, ok := doc["architecture"]
	if !ok {
		return nil, errNoArchitecture
	}
	var arch fullModelArchitecture
	if err := json.Unmarshal(rawArch, &arch); err != nil {
		return nil, fmt.Errorf("architecture: %w", err)
	}
	if arch.Activation != "" && !strings.EqualFold(arch.Activation, "relu") {
		return nil, fmt.Errorf("unsupported activation %q", arch.Activation)
	}
	if len(arch.Dims) < 2 {
		return nil, fmt.Errorf("architecture declares %d widths, need at least 2", len(arch.Dims))
	}
	if len(want) >= 2 && (arch.Dims[0] != want[0] || arch.Dims[len(arch.Dims)-1] != want[len(want)-1]) {
		return nil, fmt.Errorf("architecture maps %d to %d, want %d to %d",
			arch.Dims[0], arch.Dims[len(arch.Dims)-1], want[0], want[len(want)-1])
	}

	raw, ok := doc["state_dict"]
	if !ok {
		return nil, errNoCheckpointKey
	}
	var weights map[string]json.RawMessage
	if err := json.Unmarshal(raw, &weights); err != nil {
		return nil, fmt.Errorf("state_dict is not an object: %w", err)
	}
	return buildNetwork(weights, arch.Dims)
}
