package worker

import (
	"fmt"
	"time"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/franksops/gostage/store"
)

// Summary reports what a run did.
type Summary struct {
	RunID       string          `yaml:"run_id,omitempty"`
	Source      string          `yaml:"source"`
	Destination string          `yaml:"destination"`
	Args        []string        `yaml:"args,omitempty"`
	Input       string          `yaml:"input,omitempty"`
	Output      string          `yaml:"output,omitempty"`
	Started     time.Time       `yaml:"started"`
	Finished    time.Time       `yaml:"finished"`
	Phases      []PhaseTiming   `yaml:"phases,omitempty"`
	Transfers   []TransferEntry `yaml:"transfers,omitempty"`
	Kept        []string        `yaml:"kept,omitempty"`
	Error       string          `yaml:"error,omitempty"`
}

// PhaseTiming is the duration of one completed phase.
type PhaseTiming struct {
	Phase    Phase         `yaml:"phase"`
	Duration time.Duration `yaml:"duration"`
}

// TransferEntry is one journaled job.
type TransferEntry struct {
	Direction   store.Direction `yaml:"direction"`
	Source      string          `yaml:"source"`
	Destination string          `yaml:"destination"`
	State       store.JobState  `yaml:"state"`
	Bytes       int64           `yaml:"bytes"`
	Digest      string          `yaml:"blake3,omitempty"`
	Error       string          `yaml:"error,omitempty"`
}

func (s *Summary) record(p Phase, start time.Time) {
	s.Phases = append(s.Phases, PhaseTiming{Phase: p, Duration: time.Since(start).Round(time.Millisecond)})
}

func (s *Summary) addTransfers(records []*store.JobRecord) {
	for _, r := range records {
		s.Transfers = append(s.Transfers, TransferEntry{
			Direction:   r.Direction,
			Source:      r.SourcePath,
			Destination: r.DestinationPath,
			State:       r.State,
			Bytes:       r.BytesTransferred,
			Digest:      r.Digest,
			Error:       r.Error,
		})
	}
}

// Failed returns the transfers that did not complete.
func (s *Summary) Failed() []TransferEntry {
	var failed []TransferEntry
	for _, t := range s.Transfers {
		if t.State != store.StateCompleted {
			failed = append(failed, t)
		}
	}
	return failed
}

// WriteFile writes the summary as YAML, replacing path atomically.
func (s *Summary) WriteFile(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	return nil
}
