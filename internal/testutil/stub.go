package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// StubAuditor describes a fake auditor executable.
//
// By default the stub ignores the fixture when producing output: it prints
// Stdout verbatim, which is what the pipeline tests need to pin the
// reported line.
type StubAuditor struct {
	Stdout   string
	Stderr   string
	ExitCode int

	// EchoFixture makes the stub behave like zookeeper and name the target
	// after the fixture path it was given: it prints
	// [["<path>", <Stdout>]] with Stdout as the report object.
	EchoFixture bool

	// Sleep keeps the stub alive after printing Stdout (timeout tests).
	Sleep time.Duration
}

// Stub is a written stub auditor.
type Stub struct {
	// Path is the executable to pass as the auditor binary.
	Path string

	argsPath  string
	inputPath string
}

// WriteStubAuditor writes an executable /bin/sh script implementing cfg.
// The script records its argv and a copy of any *.html argument so tests
// can check what the auditor actually received.
func WriteStubAuditor(t testing.TB, cfg StubAuditor) *Stub {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub auditor requires /bin/sh")
	}

	dir := t.TempDir()
	s := &Stub{
		Path:      filepath.Join(dir, "auditor"),
		argsPath:  filepath.Join(dir, "args.txt"),
		inputPath: filepath.Join(dir, "input.html"),
	}
	stdoutPath := filepath.Join(dir, "stdout.txt")
	stderrPath := filepath.Join(dir, "stderr.txt")

	if err := os.WriteFile(stdoutPath, []byte(cfg.Stdout), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stderrPath, []byte(cfg.Stderr), 0o644); err != nil {
		t.Fatal(err)
	}

	var script strings.Builder
	script.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&script, "printf '%%s\\n' \"$@\" > '%s'\n", s.argsPath)
	script.WriteString("fixture=\n")
	script.WriteString("for a in \"$@\"; do\n")
	fmt.Fprintf(&script, "  case \"$a\" in *.html) cat \"$a\" > '%s'; fixture=\"$a\" ;; esac\n", s.inputPath)
	script.WriteString("done\n")
	if cfg.EchoFixture {
		script.WriteString("printf '[[\"%s\",' \"$fixture\"\n")
		fmt.Fprintf(&script, "cat '%s'\n", stdoutPath)
		script.WriteString("printf ']]'\n")
	} else {
		fmt.Fprintf(&script, "cat '%s'\n", stdoutPath)
	}
	fmt.Fprintf(&script, "cat '%s' >&2\n", stderrPath)
	if cfg.Sleep > 0 {
		fmt.Fprintf(&script, "exec sleep %d\n", int(cfg.Sleep.Round(time.Second)/time.Second))
	}
	fmt.Fprintf(&script, "exit %d\n", cfg.ExitCode)

	if err := os.WriteFile(s.Path, []byte(script.String()), 0o755); err != nil {
		t.Fatal(err)
	}
	return s
}

// Args returns the argv (after the binary) of the last stub invocation.
func (s *Stub) Args(t testing.TB) []string {
	t.Helper()
	data, err := os.ReadFile(s.argsPath)
	if err != nil {
		t.Fatalf("stub auditor was not invoked: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// Input returns the fixture content the stub read on its last invocation.
func (s *Stub) Input(t testing.TB) string {
	t.Helper()
	data, err := os.ReadFile(s.inputPath)
	if err != nil {
		t.Fatalf("stub auditor saw no .html argument: %v", err)
	}
	return string(data)
}
