package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the deterministic part of a Result, used for golden files.
// Fixture paths and exit codes are left out: they vary between machines.
type Snapshot struct {
	Scenario string       `json:"scenario"`
	RunID    string       `json:"run_id"`
	Flag     string       `json:"flag"`
	Line     string       `json:"line"`
	Failures int          `json:"failures"`
	Warnings int          `json:"warnings"`
	Stages   []StageEvent `json:"stages"`
	Pass     bool         `json:"pass"`
	Errors   []string     `json:"errors,omitempty"`
}

// NewSnapshot extracts the golden-comparable fields of a result.
func NewSnapshot(result *Result) Snapshot {
	return Snapshot{
		Scenario: result.Scenario,
		RunID:    result.RunID,
		Flag:     result.Flag.String(),
		Line:     result.Line,
		Failures: result.Failures,
		Warnings: result.Warnings,
		Stages:   result.Stages,
		Pass:     result.Pass,
		Errors:   result.Errors,
	}
}

// MarshalSnapshot renders a snapshot as indented JSON with a trailing newline.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the snapshot against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Pin cfg.RunIDs (testutil.NewFixedRunIDGenerator) or the run ID will
// differ on every run.
func RunWithGolden(t *testing.T, scenario *Scenario, cfg Config) error {
	t.Helper()

	result, err := Run(context.Background(), scenario, cfg)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(NewSnapshot(result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
