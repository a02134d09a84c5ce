// Package harness runs accessibility-regression scenarios.
//
// A scenario is a fixed, deliberately malformed HTML document plus the
// auditor output flag to request. Run drives the pipeline
//
//	start -> fixture_written -> auditor_invoked -> result_parsed -> reported
//
// and returns the reported line "<identifier> <N> failures" for the first
// audit target. The auditor itself is external; the harness only drives it
// and interprets its JSON.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: h1-then-h3
//	description: "An h3 directly after an h1 skips a heading level."
//	content: "<html><head><body><h1>Heading 1</h1><h3>Wrong, should be h2"
//	flag: "-F"          # -F flat JSON, -J nested JSON
//	expect:             # optional
//	  failures: 1
//	  identifier: doc
//
// Unknown fields are rejected. The built-in scenarios are embedded in the
// binary (see Builtins).
//
// # Error Policy
//
// By default every error aborts the run with a *StageError. With
// Config.IgnoreErrors, fixture write errors and auditor errors are logged
// and recorded, and the run continues on whatever stdout exists. Parse
// errors always abort.
//
// # Deterministic Testing
//
// Golden snapshots exclude fixture paths. With a fixed run ID generator and
// a stub auditor, the same scenario produces byte-identical snapshots.
package harness
