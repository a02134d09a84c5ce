package fixture

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
)

// DefaultPrefix is the file name prefix for fixtures.
const DefaultPrefix = "wcag"

// tempFile is the subset of *os.File the builder needs.
type tempFile interface {
	io.Writer
	Close() error
	Name() string
}

// Builder creates fixtures.
//
// The zero value is usable: files go to os.TempDir() with DefaultPrefix and
// write errors are fatal.
type Builder struct {
	// Dir is the directory for fixtures. Empty means os.TempDir().
	Dir string

	// Prefix is prepended to the random file name. Empty means DefaultPrefix.
	Prefix string

	// IgnoreWriteErrors keeps a fixture whose content could not be fully
	// written. The error is logged and recorded on Fixture.WriteErr, and the
	// path is still returned so the auditor runs on whatever reached disk.
	IgnoreWriteErrors bool

	// Logger receives write warnings. Nil discards.
	Logger *slog.Logger

	createTemp func(dir, pattern string) (tempFile, error)
}

// Fixture is a written fixture file.
type Fixture struct {
	Path string
	Size int // bytes written

	// WriteErr holds the tolerated write error when the builder ignores
	// write errors. Nil on a clean write.
	WriteErr error

	released bool
}

// Build writes content to a new uniquely named file and closes it.
//
// Create failures are always returned as CREATE_FAILED. Write or close
// failures are returned as WRITE_FAILED (and the file removed) unless
// IgnoreWriteErrors is set.
func (b *Builder) Build(content string) (*Fixture, error) {
	create := b.createTemp
	if create == nil {
		create = osCreateTemp
	}
	prefix := b.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	f, err := create(b.Dir, prefix+"-*.html")
	if err != nil {
		return nil, &FixtureError{Code: ErrCodeCreateFailed, Err: err}
	}
	path := f.Name()

	n, writeErr := io.WriteString(f, content)
	if writeErr == nil && n < len(content) {
		writeErr = io.ErrShortWrite
	}
	// Close flushes; a close error means the auditor may not see the content.
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}

	fx := &Fixture{Path: path, Size: n}
	if writeErr != nil {
		ferr := &FixtureError{Code: ErrCodeWriteFailed, Path: path, Err: writeErr}
		if !b.IgnoreWriteErrors {
			_ = os.Remove(path)
			return nil, ferr
		}
		b.logger().Warn("fixture write failed, continuing",
			"path", path,
			"bytes", n,
			"error", writeErr,
		)
		fx.WriteErr = ferr
	}

	b.logger().Debug("fixture written", "path", path, "bytes", n)
	return fx, nil
}

// Release removes the fixture file. Safe to call more than once and on a
// nil fixture.
func (f *Fixture) Release() error {
	if f == nil || f.released {
		return nil
	}
	f.released = true
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove fixture: %w", err)
	}
	return nil
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func osCreateTemp(dir, pattern string) (tempFile, error) {
	return os.CreateTemp(dir, pattern)
}
