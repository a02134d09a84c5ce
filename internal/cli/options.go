package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/a11yharness/internal/audit"
	"github.com/roach88/a11yharness/internal/harness"
)

// AuditOptions holds the flags shared by commands that run scenarios.
type AuditOptions struct {
	Auditor      string
	Check        string
	OutputFlag   string
	Timeout      time.Duration
	IgnoreErrors bool
	KeepFixture  bool
	FixtureDir   string

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to harness.UUIDv7Generator.
	RunIDs harness.RunIDGenerator
}

func addAuditFlags(cmd *cobra.Command, opts *AuditOptions) {
	cmd.Flags().StringVar(&opts.Auditor, "auditor", audit.DefaultBinary, "auditor executable")
	cmd.Flags().StringVar(&opts.Check, "check", audit.DefaultCheck, "auditor validator subcommand (empty to omit)")
	cmd.Flags().StringVar(&opts.OutputFlag, "output-flag", "", "override the scenario output flag (-F|-J)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", audit.DefaultTimeout, "auditor timeout")
	cmd.Flags().BoolVar(&opts.IgnoreErrors, "ignore-errors", false, "tolerate fixture write and auditor errors")
	cmd.Flags().BoolVar(&opts.KeepFixture, "keep-fixture", false, "leave the fixture file on disk")
	cmd.Flags().StringVar(&opts.FixtureDir, "fixture-dir", "", "directory for fixture files (default OS temp dir)")
}

// config builds the harness configuration for these flags.
func (o *AuditOptions) config(logger *slog.Logger) (harness.Config, error) {
	cfg := harness.DefaultConfig()
	cfg.Auditor = o.Auditor
	cfg.Check = o.Check
	cfg.Timeout = o.Timeout
	cfg.IgnoreErrors = o.IgnoreErrors
	cfg.KeepFixture = o.KeepFixture
	cfg.FixtureDir = o.FixtureDir
	cfg.RunIDs = o.RunIDs
	cfg.Logger = logger

	if o.OutputFlag != "" {
		flag, err := audit.ParseOutputFlag(o.OutputFlag)
		if err != nil {
			return harness.Config{}, err
		}
		cfg.Flag = flag
	}
	if cfg.Timeout <= 0 {
		return harness.Config{}, fmt.Errorf("timeout must be positive, got %s", o.Timeout)
	}
	return cfg, nil
}

// newLogger returns the diagnostic logger for a command: a text handler
// (JSON with --format json) at DEBUG with --verbose, INFO otherwise.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch opts.Format {
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// commandContext returns the command's context, canceled on SIGINT or
// SIGTERM so in-flight auditors are killed and fixtures released.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
