package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/a11yharness/internal/harness"
)

// DefaultScenario is the built-in scenario run when none is named.
const DefaultScenario = "h1-then-h3"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Audit AuditOptions
	File  string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "Audit one fixture and print its failure count",
		Long: `Run one scenario through the harness: write the fixture, invoke the
auditor on it, and print exactly one line:

  <identifier> <N> failures

The scenario is a built-in name (default ` + DefaultScenario + `) or a YAML
file given with --file. Diagnostics go to stderr.

Examples:
  a11yharness run
  a11yharness run h2-only --output-flag -F
  a11yharness run --file ./scenarios/nav.yaml --timeout 10s
  a11yharness run --auditor ./fake-zookeeper --check "" --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "load the scenario from a YAML file")
	addAuditFlags(cmd, &opts.Audit)

	return cmd
}

func runScenarioCommand(opts *RunOptions, args []string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := resolveScenario(opts.File, args)
	if err != nil {
		return err
	}

	cfg, err := opts.Audit.config(logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	formatter.VerboseLog("running scenario %s", scenario.Name)
	result, err := harness.Run(ctx, scenario, cfg)
	if err != nil {
		if opts.Format == "json" {
			details := map[string]string{}
			var stageErr *harness.StageError
			if errors.As(err, &stageErr) {
				details["stage"] = string(stageErr.Stage)
				formatter.RunID = stageErr.RunID
			}
			if encErr := formatter.Error(errorCode(err), err.Error(), details); encErr != nil {
				return encErr
			}
		}
		return WrapExitError(ExitFailure, "run failed", err)
	}

	for _, msg := range result.Errors {
		logger.Warn("expectation not met", "run_id", result.RunID, "detail", msg)
	}

	if opts.Format == "json" {
		formatter.RunID = result.RunID
		return formatter.Success(result)
	}
	return formatter.Success(result.Line)
}

// resolveScenario picks the scenario from --file or a built-in name.
func resolveScenario(file string, args []string) (*harness.Scenario, error) {
	if file != "" {
		if len(args) > 0 {
			return nil, NewExitError(ExitCommandError, "use either a scenario name or --file, not both")
		}
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
		return scenario, nil
	}

	name := DefaultScenario
	if len(args) > 0 {
		name = args[0]
	}
	scenario, err := harness.Builtin(name)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s", name), err)
	}
	return scenario, nil
}
