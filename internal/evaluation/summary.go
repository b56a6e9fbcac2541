package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ironsheep/nanospectrum/internal/metrics"
)

// NoGroundTruth is recorded for a predictor with no scored sample.
const NoGroundTruth = "No Ground Truth Available"

// ModelOutcome is either an aggregate or, when Aggregate is nil, the
// NoGroundTruth sentinel.
type ModelOutcome struct {
	Aggregate *metrics.Aggregate
}

// MarshalJSON writes the aggregate object or the sentinel string.
func (m ModelOutcome) MarshalJSON() ([]byte, error) {
	if m.Aggregate == nil {
		return json.Marshal(NoGroundTruth)
	}
	return json.Marshal(m.Aggregate)
}

// UnmarshalJSON accepts either form written by MarshalJSON.
func (m *ModelOutcome) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != NoGroundTruth {
			return fmt.Errorf("unexpected model outcome %q", s)
		}
		m.Aggregate = nil
		return nil
	}
	m.Aggregate = &metrics.Aggregate{}
	return json.Unmarshal(data, m.Aggregate)
}

// Summary is the run-level result written to summary.json.
type Summary struct {
	RunID     string                  `json:"run_id"`
	StartedAt time.Time               `json:"started_at"`
	NSamples  int                     `json:"n_samples"`
	OutputDir string                  `json:"output_dir"`
	Models    map[string]ModelOutcome `json:"models"`
}

func writeSummary(path string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename summary: %w", err)
	}
	return nil
}
