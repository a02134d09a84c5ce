package report

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes parse errors.
type ErrorCode string

const (
	// ErrCodeMalformedJSON indicates stdout is not valid JSON, typically
	// because the auditor failed upstream.
	ErrCodeMalformedJSON ErrorCode = "MALFORMED_JSON"

	// ErrCodeEmptySequence indicates a valid but empty target list.
	ErrCodeEmptySequence ErrorCode = "EMPTY_SEQUENCE"

	// ErrCodeMissingField indicates a target report without "failures".
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"

	// ErrCodeInvalidShape indicates JSON that does not match the auditor
	// output contract in some other way.
	ErrCodeInvalidShape ErrorCode = "INVALID_SHAPE"
)

// maxRawInError bounds the stdout excerpt kept on a ParseError.
const maxRawInError = 256

// ParseError is returned when auditor output cannot be interpreted.
type ParseError struct {
	Code    ErrorCode
	Message string
	Raw     string // stdout, truncated
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s (stdout: %q)", msg, e.Raw)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is a ParseError with the given code.
func IsParseError(err error, code ErrorCode) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

func newParseError(code ErrorCode, raw []byte, message string, err error) *ParseError {
	excerpt := string(raw)
	if len(excerpt) > maxRawInError {
		excerpt = excerpt[:maxRawInError] + "...[truncated]"
	}
	return &ParseError{Code: code, Message: message, Raw: excerpt, Err: err}
}
