package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/a11yharness/internal/audit"
	"github.com/roach88/a11yharness/internal/fixture"
	"github.com/roach88/a11yharness/internal/report"
)

// Config controls how scenarios are run.
type Config struct {
	// Auditor is the auditor executable. Empty means audit.DefaultBinary.
	Auditor string

	// Check is the validator subcommand. Empty omits it.
	Check string

	// Flag overrides the scenario's output flag when set.
	Flag audit.OutputFlag

	// Timeout bounds the auditor run. Zero means audit.DefaultTimeout.
	Timeout time.Duration

	// AcceptExitCodes are auditor exit codes treated as success.
	// Nil means audit.DefaultAcceptExitCodes.
	AcceptExitCodes []int

	// IgnoreErrors enables best-effort mode: fixture write errors and
	// auditor errors are logged and recorded on Result.Tolerated, and the
	// run proceeds to parse whatever stdout exists. Parse errors are
	// always fatal.
	IgnoreErrors bool

	// KeepFixture leaves the fixture on disk after the run.
	KeepFixture bool

	// FixtureDir and FixturePrefix place the fixture file.
	// Empty values use the fixture package defaults.
	FixtureDir    string
	FixturePrefix string

	// RunIDs generates run IDs. Nil means UUIDv7Generator.
	RunIDs RunIDGenerator

	// Logger receives run diagnostics. Nil discards.
	Logger *slog.Logger
}

// DefaultConfig audits with `zookeeper tarsier` and fails fast on any error.
func DefaultConfig() Config {
	return Config{
		Auditor: audit.DefaultBinary,
		Check:   audit.DefaultCheck,
		Timeout: audit.DefaultTimeout,
	}
}

// Run executes one scenario: build the fixture, invoke the auditor on it,
// parse stdout, and report the first target.
//
// Each run owns its fixture and shares no state with other runs, so Run is
// safe to call concurrently. A run that fails returns a *StageError naming
// the stage it could not reach. Expectation mismatches are not errors; they
// are reported on Result.Pass and Result.Errors.
func Run(ctx context.Context, scenario *Scenario, cfg Config) (*Result, error) {
	if scenario == nil {
		return nil, errors.New("scenario is required")
	}

	flag := cfg.Flag
	if flag == "" {
		var err error
		if flag, err = scenario.OutputFlag(); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
	}

	runIDs := cfg.RunIDs
	if runIDs == nil {
		runIDs = UUIDv7Generator{}
	}
	runID := runIDs.Generate()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("run_id", runID, "scenario", scenario.Name)

	result := NewResult(runID, scenario.Name, flag)
	result.AddStage(StageStart)

	fail := func(stage Stage, err error) (*Result, error) {
		logger.Debug("run failed", "stage", stage, "error", err)
		return nil, &StageError{Stage: stage, RunID: runID, Err: err}
	}

	// Fixture
	builder := &fixture.Builder{
		Dir:               cfg.FixtureDir,
		Prefix:            cfg.FixturePrefix,
		IgnoreWriteErrors: cfg.IgnoreErrors,
		Logger:            logger,
	}
	fx, err := builder.Build(scenario.Content)
	if err != nil {
		return fail(StageFixtureWritten, err)
	}
	if !cfg.KeepFixture {
		defer func() {
			if err := fx.Release(); err != nil {
				logger.Warn("fixture cleanup failed", "path", fx.Path, "error", err)
			}
		}()
	}
	if fx.WriteErr != nil {
		result.AddTolerated(fx.WriteErr)
	}
	result.FixturePath = fx.Path
	result.AddStage(StageFixtureWritten)
	logger.Debug("stage reached", "stage", StageFixtureWritten, "path", fx.Path)

	// Auditor
	invoker := &audit.Invoker{
		Binary:          cfg.Auditor,
		Check:           cfg.Check,
		Timeout:         cfg.Timeout,
		AcceptExitCodes: cfg.AcceptExitCodes,
		Logger:          logger,
	}
	out, err := invoker.Invoke(ctx, fx.Path, flag)
	if err != nil {
		// Cancellation is never best-effort.
		if !cfg.IgnoreErrors || ctx.Err() != nil {
			return fail(StageAuditorInvoked, err)
		}
		logger.Warn("auditor error ignored", "error", err)
		result.AddTolerated(err)
	}
	var stdout []byte
	if out != nil {
		stdout = out.Stdout
		result.ExitCode = out.ExitCode
	}
	result.AddStage(StageAuditorInvoked)
	logger.Debug("stage reached", "stage", StageAuditorInvoked, "exit_code", result.ExitCode, "stdout_bytes", len(stdout))

	// Parse
	summary, err := report.Summarize(stdout)
	if err != nil {
		return fail(StageResultParsed, err)
	}
	result.Identifier = summary.Identifier
	result.Failures = summary.Failures
	result.Warnings = summary.Warnings
	result.AddStage(StageResultParsed)

	// Report
	result.Line = summary.Line()
	result.AddStage(StageReported)
	logger.Info("run reported", "line", result.Line)

	for _, msg := range EvaluateExpectations(result, scenario.Expect) {
		result.AddError(msg)
	}

	return result, nil
}
