// Command a11yharness runs accessibility-regression scenarios against an
// external WCAG auditor.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/a11yharness/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
