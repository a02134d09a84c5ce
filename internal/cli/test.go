package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/a11yharness/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Audit    AuditOptions
	Update   bool   // regenerate golden files
	Filter   string // scenario filter (glob pattern)
	Parallel int    // maximum concurrent runs
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Line   string   `json:"line,omitempty"`
	Note   string   `json:"note,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// scenarioSource is a scenario to run, or the error that kept it from loading.
type scenarioSource struct {
	name       string
	scenario   *harness.Scenario
	goldenPath string
	loadErr    error
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [scenarios-dir]",
		Short: "Run accessibility regression scenarios",
		Long: `Run accessibility regression scenarios through the harness.

Runs every YAML scenario in scenarios-dir, or the built-in scenarios when
no directory is given. --filter matches the scenario name. A scenario
passes when the auditor output parses, its expectations hold, and the
printed line matches <scenarios-dir>/golden/<name>.golden (keyed by
scenario name) if that file exists. The fixture path in the line is
replaced by <fixture> before comparing.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  a11yharness test
  a11yharness test ./scenarios --filter "h1-*"
  a11yharness test ./scenarios --parallel 4
  a11yharness test ./scenarios --update
  a11yharness test ./scenarios --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runTests(opts, dir, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "number of scenarios to run concurrently")
	addAuditFlags(cmd, &opts.Audit)

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if opts.Parallel < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--parallel must be at least 1, got %d", opts.Parallel))
	}
	if _, err := filepath.Match(opts.Filter, ""); err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}
	if opts.Update && scenariosDir == "" {
		return NewExitError(ExitCommandError, "--update requires a scenarios directory")
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	cfg, err := opts.Audit.config(logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	sources, err := collectScenarios(scenariosDir, opts.Filter)
	if err != nil {
		return err
	}

	if len(sources) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{
				Scenarios: []ScenarioResult{},
				Total:     0,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	// Each run owns its fixture, so scenarios can run side by side.
	// Results keep input order.
	results := make([]ScenarioResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallel)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = runScenario(gctx, src, cfg, opts.Update)
			return nil
		})
	}
	_ = g.Wait()

	result := TestResult{
		Scenarios: results,
		Total:     len(results),
	}
	for _, r := range results {
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// collectScenarios loads scenarios from dir, or the built-ins when dir is
// empty, keeping those whose name matches filter. Golden files are keyed by
// scenario name, so names must be unique within a directory.
func collectScenarios(dir, filter string) ([]scenarioSource, error) {
	if dir == "" {
		builtins, err := harness.Builtins()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load built-in scenarios", err)
		}
		var sources []scenarioSource
		for _, s := range builtins {
			if matchesFilter(filter, s.Name) {
				sources = append(sources, scenarioSource{name: s.Name, scenario: s})
			}
		}
		return sources, nil
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	files, err := findScenarioFiles(dir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	seen := make(map[string]string, len(files))
	sources := make([]scenarioSource, 0, len(files))
	for _, file := range files {
		// A file that does not load is named after its base name.
		src := scenarioSource{name: strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))}
		src.scenario, src.loadErr = harness.LoadScenario(file)
		if src.scenario != nil {
			src.name = src.scenario.Name
			src.goldenPath = goldenFilePath(dir, src.name)
		}
		if !matchesFilter(filter, src.name) {
			continue
		}
		if prev, dup := seen[src.name]; dup {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("duplicate scenario name %q in %s and %s", src.name, prev, file))
		}
		seen[src.name] = file
		sources = append(sources, src)
	}
	return sources, nil
}

// matchesFilter reports whether a scenario name passes the --filter glob.
// The pattern is validated before any scenario is loaded.
func matchesFilter(filter, name string) bool {
	if filter == "" {
		return true
	}
	matched, _ := filepath.Match(filter, name)
	return matched
}

// findScenarioFiles finds all YAML scenario files in a directory.
// The golden directory is skipped.
func findScenarioFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != dir && info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario executes a single scenario and checks it against its golden line.
func runScenario(ctx context.Context, src scenarioSource, cfg harness.Config, update bool) ScenarioResult {
	if src.loadErr != nil {
		return ScenarioResult{
			Name:   src.name,
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", src.loadErr)},
		}
	}

	result, err := harness.Run(ctx, src.scenario, cfg)
	if err != nil {
		return ScenarioResult{
			Name:   src.name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	sr := ScenarioResult{
		Name:   src.name,
		Pass:   result.Pass,
		Line:   result.Line,
		Errors: result.Errors,
	}
	if src.goldenPath == "" {
		return sr
	}

	line := goldenLine(result)
	if update {
		if err := writeGoldenLine(src.goldenPath, line); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return sr
		}
		sr.Note = "golden updated"
		return sr
	}

	want, err := os.ReadFile(src.goldenPath)
	if os.IsNotExist(err) {
		return sr
	}
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("golden comparison failed: %v", err))
		return sr
	}
	if string(want) != line {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf(
			"golden mismatch (run with --update to regenerate)\n  Expected: %s\n  Actual: %s",
			strings.TrimSuffix(string(want), "\n"), strings.TrimSuffix(line, "\n")))
	}
	return sr
}

// goldenFilePath returns the golden file for a scenario: <dir>/golden/<name>.golden.
func goldenFilePath(scenariosDir, name string) string {
	return filepath.Join(scenariosDir, "golden", name+".golden")
}

// goldenLine is the printed line with the fixture path masked, since the
// real auditor echoes the randomly named fixture as the identifier. Both
// sides are NFC-normalized first so a decomposed spelling of the path is
// still masked.
func goldenLine(result *harness.Result) string {
	line := norm.NFC.String(result.Line)
	if result.FixturePath != "" {
		line = strings.ReplaceAll(line, norm.NFC.String(result.FixturePath), harness.FixtureIdentifier)
	}
	return line + "\n"
}

func writeGoldenLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(line), 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}
	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs per-scenario results and a summary as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	for _, sr := range result.Scenarios {
		mark := passMark()
		if !sr.Pass {
			mark = failMark()
		}
		switch {
		case sr.Note != "":
			fmt.Fprintf(w, "%s %s (%s)\n", mark, sr.Name, sr.Note)
		case sr.Line != "":
			fmt.Fprintf(w, "%s %s: %s\n", mark, sr.Name, sr.Line)
		default:
			fmt.Fprintf(w, "%s %s\n", mark, sr.Name)
		}
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintf(w, "%s All scenarios passed\n", passMark())
	return nil
}
