package harness

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// FixtureIdentifier in expect.identifier matches a target whose
// identifier is the fixture path itself, which is what zookeeper echoes.
// Identifiers and paths are compared in NFC, since a filesystem may hand
// back a decomposed spelling of the same name.
const FixtureIdentifier = "<fixture>"

// ExpectationError describes a reported result that contradicts the
// scenario's expectations.
type ExpectationError struct {
	Field    string // "failures" or "identifier"
	Expected string
	Actual   string
	Line     string // the reported line, for context
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	fmt.Fprintf(&buf, "  Reported: %s", e.Line)
	return buf.String()
}

// EvaluateExpectations checks a reported result against expect.
// Returns one error message per mismatch; nil expect always passes.
func EvaluateExpectations(result *Result, expect *Expectation) []string {
	if expect == nil {
		return nil
	}

	var errs []string
	if expect.Failures != nil && *expect.Failures != result.Failures {
		errs = append(errs, (&ExpectationError{
			Field:    "failures",
			Expected: fmt.Sprintf("%d", *expect.Failures),
			Actual:   fmt.Sprintf("%d", result.Failures),
			Line:     result.Line,
		}).Error())
	}
	if expect.Identifier != "" && !identifierMatches(expect.Identifier, result) {
		errs = append(errs, (&ExpectationError{
			Field:    "identifier",
			Expected: fmt.Sprintf("%q", expect.Identifier),
			Actual:   fmt.Sprintf("%q", result.Identifier),
			Line:     result.Line,
		}).Error())
	}
	return errs
}

func identifierMatches(want string, result *Result) bool {
	if want == FixtureIdentifier {
		return result.FixturePath != "" && SameIdentifier(result.Identifier, result.FixturePath)
	}
	return SameIdentifier(want, result.Identifier)
}

// SameIdentifier reports whether a and b name the same target once both
// are NFC-normalized.
func SameIdentifier(a, b string) bool {
	return norm.NFC.String(a) == norm.NFC.String(b)
}
