package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/a11yharness/internal/harness"
)

// ScenarioInfo describes a built-in scenario.
type ScenarioInfo struct {
	Name        string `json:"name"`
	Flag        string `json:"flag"`
	Description string `json:"description"`
	Failures    *int   `json:"expected_failures,omitempty"`
}

// NewScenariosCommand creates the scenarios command.
func NewScenariosCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List built-in scenarios",
		Long: `List the scenarios embedded in the binary.

Any of them can be run by name:
  a11yharness run h2-only`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listScenarios(rootOpts, cmd)
		},
	}
	return cmd
}

func listScenarios(opts *RootOptions, cmd *cobra.Command) error {
	builtins, err := harness.Builtins()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load built-in scenarios", err)
	}

	infos := make([]ScenarioInfo, 0, len(builtins))
	for _, s := range builtins {
		info := ScenarioInfo{Name: s.Name, Flag: s.Flag, Description: s.Description}
		if s.Expect != nil {
			info.Failures = s.Expect.Failures
		}
		infos = append(infos, info)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(infos)
	}

	w := cmd.OutOrStdout()
	for _, info := range infos {
		fmt.Fprintf(w, "%-16s %-3s %s\n", info.Name, info.Flag, info.Description)
	}
	return nil
}
