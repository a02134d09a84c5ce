package harness

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/roach88/a11yharness/internal/audit"
)

// validName restricts scenario names to characters that are safe in file
// names, since golden files are keyed by scenario name.
var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

//go:embed scenarios/*.yaml
var builtinFS embed.FS

// Scenario defines one malformed-heading fixture and how to audit it.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what is wrong with the fixture.
	Description string `yaml:"description"`

	// Content is the fixture HTML, written verbatim.
	Content string `yaml:"content"`

	// Flag is the auditor output flag: "-F" (flat) or "-J" (nested),
	// or any spelling accepted by audit.ParseOutputFlag.
	Flag string `yaml:"flag"`

	// Expect optionally pins the reported result.
	// If nil, any successfully reported run passes.
	Expect *Expectation `yaml:"expect,omitempty"`
}

// Expectation pins parts of the reported result.
type Expectation struct {
	// Failures is the expected failure count. Nil skips the check.
	Failures *int `yaml:"failures,omitempty"`

	// Identifier is the expected target identifier. Empty skips the check.
	Identifier string `yaml:"identifier,omitempty"`
}

// OutputFlag resolves the scenario's flag.
func (s *Scenario) OutputFlag() (audit.OutputFlag, error) {
	return audit.ParseOutputFlag(s.Flag)
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// Builtins returns the scenarios shipped with the binary, ordered by file name.
func Builtins() ([]*Scenario, error) {
	entries, err := fs.ReadDir(builtinFS, "scenarios")
	if err != nil {
		return nil, fmt.Errorf("failed to list built-in scenarios: %w", err)
	}

	scenarios := make([]*Scenario, 0, len(entries))
	for _, entry := range entries {
		data, err := builtinFS.ReadFile(path.Join("scenarios", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read built-in scenario %s: %w", entry.Name(), err)
		}
		scenario, err := ParseScenario(data)
		if err != nil {
			return nil, fmt.Errorf("built-in scenario %s: %w", entry.Name(), err)
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, nil
}

// Builtin returns the built-in scenario with the given name.
func Builtin(name string) (*Scenario, error) {
	scenarios, err := Builtins()
	if err != nil {
		return nil, err
	}
	for _, s := range scenarios {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown scenario %q", name)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !validName.MatchString(s.Name) {
		return fmt.Errorf("name %q may only contain letters, digits, '.', '_' and '-'", s.Name)
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Content == "" {
		return fmt.Errorf("content is required")
	}

	if s.Flag == "" {
		return fmt.Errorf("flag is required")
	}
	if _, err := s.OutputFlag(); err != nil {
		return fmt.Errorf("flag: %w", err)
	}

	if s.Expect != nil && s.Expect.Failures != nil && *s.Expect.Failures < 0 {
		return fmt.Errorf("expect.failures must be non-negative")
	}

	return nil
}
