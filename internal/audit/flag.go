package audit

import (
	"fmt"
	"strings"
)

// OutputFlag selects the auditor's JSON output mode.
//
// The two modes are not interchangeable: FlatJSON reports failures as a
// flat list per document, NestedJSON groups them by guideline and technique.
type OutputFlag string

const (
	// FlatJSON requests flat fail-details JSON ("-F").
	FlatJSON OutputFlag = "-F"

	// NestedJSON requests nested guideline/technique JSON ("-J").
	NestedJSON OutputFlag = "-J"
)

// String returns the command-line form of the flag.
func (f OutputFlag) String() string {
	return string(f)
}

// Valid reports whether f is a known output flag.
func (f OutputFlag) Valid() bool {
	return f == FlatJSON || f == NestedJSON
}

// ParseOutputFlag converts user input to an OutputFlag.
// Accepts the raw flags and their long names.
func ParseOutputFlag(s string) (OutputFlag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "-f", "f", "flat", "flat_json", "flat-json":
		return FlatJSON, nil
	case "-j", "j", "json", "nested", "nested_json", "nested-json":
		return NestedJSON, nil
	default:
		return "", fmt.Errorf("unknown output flag %q: must be one of -F (flat) or -J (nested)", s)
	}
}
