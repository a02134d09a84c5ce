// Package report interprets auditor stdout.
//
// The auditor prints a JSON array of [identifier, report] pairs, one per
// audited document. Only the first pair is reported: the harness audits a
// single fixture per run.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TargetReport is the auditor's verdict for one document.
//
// Each category is either a flat list (-F output) or a guideline ->
// technique -> list mapping (-J output). The raw JSON is kept so both
// shapes count the same way.
type TargetReport struct {
	Failures json.RawMessage `json:"failures"`
	Warnings json.RawMessage `json:"warnings,omitempty"`
	Skipped  json.RawMessage `json:"skipped,omitempty"`
	Success  json.RawMessage `json:"success,omitempty"`
}

// FailureCount returns the number of failure entries.
func (r TargetReport) FailureCount() int {
	return countEntries(r.Failures)
}

// WarningCount returns the number of warning entries.
func (r TargetReport) WarningCount() int {
	return countEntries(r.Warnings)
}

// Target is one audited document.
type Target struct {
	ID     string
	Report TargetReport
}

// AuditResult is the parsed auditor output, in auditor order.
type AuditResult struct {
	Targets []Target
}

// First returns the first target. Parse guarantees there is one.
func (a *AuditResult) First() Target {
	return a.Targets[0]
}

// Summary is what gets reported for a run.
type Summary struct {
	Identifier string `json:"identifier"`
	Failures   int    `json:"failures"`
	Warnings   int    `json:"warnings"`
}

// Line formats the summary as the harness output line.
func (s Summary) Line() string {
	return FormatLine(s.Identifier, s.Failures)
}

// FormatLine returns "<identifier> <n> failures". Zero is still reported.
func FormatLine(identifier string, failures int) string {
	return fmt.Sprintf("%s %d failures", identifier, failures)
}

// Parse decodes and validates auditor stdout.
//
// Only the first target is held to the output contract; every error is a
// *ParseError about it. Later targets are decoded when well formed and
// skipped otherwise. Identifiers are kept exactly as the auditor printed
// them.
func Parse(raw []byte) (*AuditResult, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, newParseError(ErrCodeMalformedJSON, raw, "stdout is not valid JSON", err)
	}

	if err := classify(doc, raw); err != nil {
		return nil, err
	}
	if err := contractSchema.Validate(doc); err != nil {
		return nil, newParseError(ErrCodeInvalidShape, raw, "output does not match auditor contract", err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, newParseError(ErrCodeInvalidShape, raw, "top level is not an array", err)
	}

	first, err := decodeTarget(entries[0])
	if err != nil {
		return nil, newParseError(ErrCodeInvalidShape, raw, "first target", err)
	}

	result := &AuditResult{Targets: make([]Target, 0, len(entries))}
	result.Targets = append(result.Targets, first)
	for _, entry := range entries[1:] {
		target, err := decodeTarget(entry)
		if err != nil || target.Report.Failures == nil {
			continue
		}
		result.Targets = append(result.Targets, target)
	}

	return result, nil
}

// decodeTarget decodes one [identifier, report] pair.
func decodeTarget(entry json.RawMessage) (Target, error) {
	var target Target

	var pair []json.RawMessage
	if err := json.Unmarshal(entry, &pair); err != nil {
		return target, fmt.Errorf("not an array: %w", err)
	}
	if len(pair) < 2 {
		return target, fmt.Errorf("expected [identifier, report], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &target.ID); err != nil {
		return target, fmt.Errorf("identifier is not a string: %w", err)
	}
	if err := json.Unmarshal(pair[1], &target.Report); err != nil {
		return target, fmt.Errorf("report is not an object: %w", err)
	}
	return target, nil
}

// Summarize parses raw and summarizes the first target.
func Summarize(raw []byte) (*Summary, error) {
	result, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	first := result.First()
	return &Summary{
		Identifier: first.ID,
		Failures:   first.Report.FailureCount(),
		Warnings:   first.Report.WarningCount(),
	}, nil
}

// Report parses raw and returns the output line for the first target.
func Report(raw []byte) (string, error) {
	summary, err := Summarize(raw)
	if err != nil {
		return "", err
	}
	return summary.Line(), nil
}

// classify picks out the failure modes of the first target that deserve
// their own code before the generic schema check.
func classify(doc any, raw []byte) error {
	entries, ok := doc.([]any)
	if !ok {
		return nil
	}
	if len(entries) == 0 {
		return newParseError(ErrCodeEmptySequence, raw, "auditor reported no targets", nil)
	}
	pair, ok := entries[0].([]any)
	if !ok || len(pair) < 2 {
		return nil
	}
	obj, ok := pair[1].(map[string]any)
	if !ok {
		return nil
	}
	if _, ok := obj["failures"]; !ok {
		return newParseError(ErrCodeMissingField, raw, "first target report has no \"failures\"", nil)
	}
	return nil
}

// countEntries counts list items, descending through nested objects.
func countEntries(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	return countLeaves(v)
}

func countLeaves(v any) int {
	switch t := v.(type) {
	case []any:
		return len(t)
	case map[string]any:
		n := 0
		for _, child := range t {
			n += countLeaves(child)
		}
		return n
	default:
		return 0
	}
}
