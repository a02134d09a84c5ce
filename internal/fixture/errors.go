package fixture

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes fixture errors.
type ErrorCode string

const (
	// ErrCodeCreateFailed indicates no temp file could be obtained.
	// Always aborts the run; there is nothing to clean up.
	ErrCodeCreateFailed ErrorCode = "CREATE_FAILED"

	// ErrCodeWriteFailed indicates the content could not be written or flushed.
	ErrCodeWriteFailed ErrorCode = "WRITE_FAILED"
)

// FixtureError is returned when a fixture cannot be built.
type FixtureError struct {
	Code ErrorCode
	Path string // empty for CREATE_FAILED
	Err  error
}

// Error implements the error interface.
func (e *FixtureError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *FixtureError) Unwrap() error {
	return e.Err
}

// IsCreateFailed reports whether err is a CREATE_FAILED fixture error.
func IsCreateFailed(err error) bool {
	var fe *FixtureError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeCreateFailed
	}
	return false
}

// IsWriteFailed reports whether err is a WRITE_FAILED fixture error.
func IsWriteFailed(err error) bool {
	var fe *FixtureError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeWriteFailed
	}
	return false
}
