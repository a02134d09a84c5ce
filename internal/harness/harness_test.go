package harness

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/a11yharness/internal/audit"
	"github.com/roach88/a11yharness/internal/fixture"
	"github.com/roach88/a11yharness/internal/report"
	"github.com/roach88/a11yharness/internal/testutil"
)

const (
	h1ThenH3   = "<html><head><body><h1>Heading 1</h1><h3>This is wrong, it should be h2"
	docPayload = `[["doc",{"failures":["h3 follows h1"]}]]`
)

// stubConfig runs against a stub auditor with a pinned run ID.
func stubConfig(t *testing.T, stub *testutil.Stub) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Auditor = stub.Path
	cfg.FixtureDir = t.TempDir()
	cfg.RunIDs = testutil.NewFixedRunIDGenerator("")
	return cfg
}

func testScenario(flag string) *Scenario {
	return &Scenario{
		Name:        "test-scenario",
		Description: "h3 after h1",
		Content:     h1ThenH3,
		Flag:        flag,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{Stdout: docPayload, ExitCode: 1})
	cfg := stubConfig(t, stub)

	result, err := Run(context.Background(), testScenario("-F"), cfg)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "doc 1 failures", result.Line)
	assert.Equal(t, "doc", result.Identifier)
	assert.Equal(t, 1, result.Failures)
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, "test-run-default", result.RunID)
	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Tolerated)

	want := []StageEvent{
		{Seq: 1, Stage: StageStart},
		{Seq: 2, Stage: StageFixtureWritten},
		{Seq: 3, Stage: StageAuditorInvoked},
		{Seq: 4, Stage: StageResultParsed},
		{Seq: 5, Stage: StageReported},
	}
	if diff := cmp.Diff(want, result.Stages); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, StageReported, result.LastStage())

	// The auditor saw the complete fixture as a discrete argument.
	assert.Equal(t, []string{"tarsier", result.FixturePath, "-F"}, stub.Args(t))
	assert.Equal(t, h1ThenH3, stub.Input(t))

	// The fixture is released after the run.
	_, statErr := os.Stat(result.FixturePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_Idempotent(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{Stdout: docPayload})
	cfg := stubConfig(t, stub)
	scenario := testScenario("-F")

	first, err := Run(context.Background(), scenario, cfg)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Line, second.Line)
	if diff := cmp.Diff(NewSnapshot(first), NewSnapshot(second)); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
}

func TestRun_KeepFixture(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{Stdout: docPayload})
	cfg := stubConfig(t, stub)
	cfg.KeepFixture = true
	cfg.FixturePrefix = "foo"

	result, err := Run(context.Background(), testScenario("-F"), cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(result.FixturePath)
	require.NoError(t, err)
	assert.Equal(t, h1ThenH3, string(data))
	assert.Equal(t, cfg.FixtureDir, filepath.Dir(result.FixturePath))
	assert.Regexp(t, `^foo-.*\.html$`, filepath.Base(result.FixturePath))
}

func TestRun_FlagOverride(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{Stdout: docPayload})
	cfg := stubConfig(t, stub)
	cfg.Flag = audit.NestedJSON

	result, err := Run(context.Background(), testScenario("-F"), cfg)
	require.NoError(t, err)
	assert.Equal(t, audit.NestedJSON, result.Flag)
	assert.Equal(t, []string{"tarsier", result.FixturePath, "-J"}, stub.Args(t))
}

func TestRun_NoCheckSubcommand(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{Stdout: docPayload})
	cfg := stubConfig(t, stub)
	cfg.Check = ""

	result, err := Run(context.Background(), testScenario("-J"), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{result.FixturePath, "-J"}, stub.Args(t))
}

func TestRun_CreateFailedAborts(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{Stdout: docPayload})
	cfg := stubConfig(t, stub)
	cfg.FixtureDir = filepath.Join(t.TempDir(), "missing")
	cfg.IgnoreErrors = true // create failures abort even in best-effort mode

	result, err := Run(context.Background(), testScenario("-F"), cfg)
	require.Error(t, err)
	assert.Nil(t, result)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageFixtureWritten, se.Stage)
	assert.Equal(t, "test-run-default", se.RunID)
	assert.True(t, fixture.IsCreateFailed(err))
}

func TestRun_SpawnFailedIsFatal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auditor = filepath.Join(t.TempDir(), "no-such-auditor")
	cfg.FixtureDir = t.TempDir()

	_, err := Run(context.Background(), testScenario("-F"), cfg)
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageAuditorInvoked, se.Stage)
	assert.True(t, audit.IsSpawnFailed(err))

	entries, readErr := os.ReadDir(cfg.FixtureDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "fixture must be released on failure")
}

func TestRun_SpawnFailedIgnoredStillFailsParse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auditor = filepath.Join(t.TempDir(), "no-such-auditor")
	cfg.FixtureDir = t.TempDir()
	cfg.IgnoreErrors = true

	_, err := Run(context.Background(), testScenario("-F"), cfg)
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageResultParsed, se.Stage)
	assert.True(t, report.IsParseError(err, report.ErrCodeMalformedJSON))
}

func TestRun_NonZeroExit(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{
		Stdout:   docPayload,
		Stderr:   "internal error",
		ExitCode: 2,
	})

	t.Run("fatal by default", func(t *testing.T) {
		_, err := Run(context.Background(), testScenario("-F"), stubConfig(t, stub))
		require.Error(t, err)
		assert.True(t, audit.IsNonZeroExit(err))

		var se *StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StageAuditorInvoked, se.Stage)
	})

	t.Run("tolerated in best-effort mode", func(t *testing.T) {
		cfg := stubConfig(t, stub)
		cfg.IgnoreErrors = true

		result, err := Run(context.Background(), testScenario("-F"), cfg)
		require.NoError(t, err)
		assert.Equal(t, "doc 1 failures", result.Line)
		assert.Equal(t, 2, result.ExitCode)
		require.Len(t, result.Tolerated, 1)
		assert.Contains(t, result.Tolerated[0], "NON_ZERO_EXIT")
	})
}

func TestRun_MalformedOutput(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{Stdout: "not json"})
	cfg := stubConfig(t, stub)
	cfg.IgnoreErrors = true // parse errors are fatal regardless

	result, err := Run(context.Background(), testScenario("-F"), cfg)
	require.Error(t, err)
	assert.Nil(t, result)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageResultParsed, se.Stage)
	assert.True(t, report.IsParseError(err, report.ErrCodeMalformedJSON))
	assert.Contains(t, err.Error(), `"not json"`)
}

func TestRun_Canceled(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{Stdout: docPayload})
	cfg := stubConfig(t, stub)
	cfg.IgnoreErrors = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, testScenario("-F"), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_ExpectationMismatch(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{Stdout: docPayload})
	scenario := testScenario("-F")
	two := 2
	scenario.Expect = &Expectation{Failures: &two, Identifier: "other"}

	result, err := Run(context.Background(), scenario, stubConfig(t, stub))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Expectation failed: failures")
	assert.Contains(t, result.Errors[1], "Expectation failed: identifier")
	assert.Equal(t, "doc 1 failures", result.Line)
}

func TestRun_ConcurrentRunsUseDistinctFixtures(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{Stdout: docPayload})
	cfg := stubConfig(t, stub)
	cfg.KeepFixture = true
	cfg.RunIDs = UUIDv7Generator{}

	const n = 20
	var mu sync.Mutex
	paths := make(map[string]struct{}, n)
	runIDs := make(map[string]struct{}, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			result, err := Run(context.Background(), testScenario("-F"), cfg)
			if err != nil {
				return err
			}
			if result.Line != "doc 1 failures" {
				return errors.New("unexpected line " + result.Line)
			}
			mu.Lock()
			defer mu.Unlock()
			paths[result.FixturePath] = struct{}{}
			runIDs[result.RunID] = struct{}{}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, paths, n)
	assert.Len(t, runIDs, n)
}

func TestRun_NilScenario(t *testing.T) {
	_, err := Run(context.Background(), nil, DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario is required")
}

func TestRun_InvalidScenarioFlag(t *testing.T) {
	_, err := Run(context.Background(), testScenario("--xml"), DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output flag")
}

func TestRun_LogsCarryRunID(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{Stdout: docPayload})
	cfg := stubConfig(t, stub)

	var buf bytes.Buffer
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Run(context.Background(), testScenario("-F"), cfg)
	require.NoError(t, err)

	logs := buf.String()
	assert.Contains(t, logs, "run_id=test-run-default")
	assert.Contains(t, logs, "scenario=test-scenario")
	assert.Contains(t, logs, `line="doc 1 failures"`)
}

func TestRun_DecomposedFixtureDir(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{
		Stdout:      `{"failures":["h3 follows h1"]}`,
		EchoFixture: true,
	})
	cfg := stubConfig(t, stub)
	cfg.FixtureDir = filepath.Join(t.TempDir(), "cafe\u0301")
	require.NoError(t, os.Mkdir(cfg.FixtureDir, 0o755))

	scenario := testScenario("-F")
	scenario.Expect = &Expectation{Identifier: FixtureIdentifier}

	result, err := Run(context.Background(), scenario, cfg)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	// The identifier is reported exactly as the auditor printed it.
	assert.Equal(t, result.FixturePath, result.Identifier)
	assert.Contains(t, result.Identifier, "cafe\u0301")
	assert.Equal(t, result.FixturePath+" 1 failures", result.Line)
}

func TestRun_FailureLoggedOnlyAtDebug(t *testing.T) {
	stub := testutil.WriteStubAuditor(t, testutil.StubAuditor{Stdout: "not json"})
	cfg := stubConfig(t, stub)

	var info, debug bytes.Buffer
	cfg.Logger = slog.New(slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}))
	_, err := Run(context.Background(), testScenario("-F"), cfg)
	require.Error(t, err)
	assert.NotContains(t, info.String(), "run failed")

	cfg.Logger = slog.New(slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, err = Run(context.Background(), testScenario("-F"), cfg)
	require.Error(t, err)
	assert.Contains(t, debug.String(), `msg="run failed"`)
	assert.Contains(t, debug.String(), "stage=result_parsed")
}
