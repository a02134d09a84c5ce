package audit

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes invoke errors.
type ErrorCode string

const (
	// ErrCodeSpawnFailed indicates the auditor could not be started
	// (binary missing or not executable).
	ErrCodeSpawnFailed ErrorCode = "SPAWN_FAILED"

	// ErrCodeNonZeroExit indicates the auditor exited with a code outside
	// the accepted set.
	ErrCodeNonZeroExit ErrorCode = "NON_ZERO_EXIT"

	// ErrCodeTimeout indicates the auditor did not finish within the timeout.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// maxStderrInError bounds how much stderr is embedded in an error message.
const maxStderrInError = 512

// InvokeError is returned when the auditor cannot be run to completion.
type InvokeError struct {
	Code     ErrorCode
	Binary   string
	ExitCode int    // set for NON_ZERO_EXIT
	Stderr   string // captured stderr, truncated
	Err      error
}

// Error implements the error interface.
func (e *InvokeError) Error() string {
	switch e.Code {
	case ErrCodeNonZeroExit:
		if e.Stderr != "" {
			return fmt.Sprintf("%s: %s exited with code %d: %s", e.Code, e.Binary, e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("%s: %s exited with code %d", e.Code, e.Binary, e.ExitCode)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Binary, e.Err)
	}
}

func (e *InvokeError) Unwrap() error {
	return e.Err
}

// IsSpawnFailed reports whether err is a SPAWN_FAILED invoke error.
func IsSpawnFailed(err error) bool {
	return hasCode(err, ErrCodeSpawnFailed)
}

// IsNonZeroExit reports whether err is a NON_ZERO_EXIT invoke error.
func IsNonZeroExit(err error) bool {
	return hasCode(err, ErrCodeNonZeroExit)
}

// IsTimeout reports whether err is a TIMEOUT invoke error.
func IsTimeout(err error) bool {
	return hasCode(err, ErrCodeTimeout)
}

func hasCode(err error, code ErrorCode) bool {
	var ie *InvokeError
	if errors.As(err, &ie) {
		return ie.Code == code
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...[truncated]"
}
