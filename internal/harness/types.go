package harness

import (
	"fmt"

	"github.com/roach88/a11yharness/internal/audit"
)

// Stage is a state in a pipeline run.
type Stage string

// Stages in the order a successful run passes through them.
// There are no retries and no backward transitions.
const (
	StageStart          Stage = "start"
	StageFixtureWritten Stage = "fixture_written"
	StageAuditorInvoked Stage = "auditor_invoked"
	StageResultParsed   Stage = "result_parsed"
	StageReported       Stage = "reported"
)

// StageEvent records entry into a stage.
type StageEvent struct {
	Seq   int64 `json:"seq"`
	Stage Stage `json:"stage"`
}

// StageError reports the stage a run was trying to reach when it failed.
type StageError struct {
	Stage Stage
	RunID string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("run %s failed before %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID       string           `json:"run_id"`
	Scenario    string           `json:"scenario"`
	Flag        audit.OutputFlag `json:"flag"`
	FixturePath string           `json:"fixture_path"`
	ExitCode    int              `json:"exit_code"`

	// Identifier, Failures and Warnings describe the first audit target.
	Identifier string `json:"identifier"`
	Failures   int    `json:"failures"`
	Warnings   int    `json:"warnings"`

	// Line is the harness output line: "<identifier> <N> failures".
	Line string `json:"line"`

	// Tolerated holds errors skipped in best-effort mode.
	Tolerated []string `json:"tolerated,omitempty"`

	// Stages is the ordered state trace of the run.
	Stages []StageEvent `json:"stages"`

	// Pass is false when the reported result contradicts the scenario's
	// expectations. Errors lists the mismatches.
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result with an empty trace.
func NewResult(runID, scenario string, flag audit.OutputFlag) *Result {
	return &Result{
		RunID:    runID,
		Scenario: scenario,
		Flag:     flag,
		Stages:   []StageEvent{},
		Pass:     true,
	}
}

// AddStage appends a stage to the trace. Seq starts at 1.
func (r *Result) AddStage(stage Stage) {
	r.Stages = append(r.Stages, StageEvent{
		Seq:   int64(len(r.Stages) + 1),
		Stage: stage,
	})
}

// AddError adds an expectation mismatch and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTolerated records an error that best-effort mode skipped.
func (r *Result) AddTolerated(err error) {
	r.Tolerated = append(r.Tolerated, err.Error())
}

// LastStage returns the most recent stage, or "" for an empty trace.
func (r *Result) LastStage() Stage {
	if len(r.Stages) == 0 {
		return ""
	}
	return r.Stages[len(r.Stages)-1].Stage
}
