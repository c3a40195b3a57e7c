package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/limitidx/internal/engine"
	"github.com/roach88/limitidx/internal/order"
)

// Scenario is an ordered list of events fed to a fresh engine, followed by
// expectations on the resulting records.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID fixes the run identifier. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Events are delivered to the engine in order.
	Events []EventStep `yaml:"events"`

	// Expect is checked against the store after the last event.
	Expect []Expectation `yaml:"expect,omitempty"`
}

// EventStep is one inbound event, in the snake_case form of order.RawEvent.
type EventStep struct {
	order.RawEvent `yaml:",inline"`

	// ExpectError is "encoding" or "malformed" when the event must be
	// rejected. Empty means the event must be merged.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Expectation checks one record. Exactly one of ID and Event selects it.
type Expectation struct {
	// ID is the record identity.
	ID string `yaml:"id,omitempty"`

	// Event selects the identity of Events[*Event].
	Event *int `yaml:"event,omitempty"`

	// Exists defaults to true.
	Exists *bool `yaml:"exists,omitempty"`

	UpdatesCount    *uint64 `yaml:"updates_count,omitempty"`
	RemainingAmount *string `yaml:"remaining_amount,omitempty"`
}

func (e Expectation) wantExists() bool {
	return e.Exists == nil || *e.Exists
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
	decoder.KnownFields(true) // catches "expects:" vs "expect:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads path, or every .yaml/.yml file in it when path is a
// directory, in file name order.
func LoadScenarios(path string) ([]*Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario path: %w", err)
	}
	if !info.IsDir() {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []*Scenario{s}, nil
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", path)
	}

	scenarios := make([]*Scenario, 0, len(files))
	for _, f := range files {
		s, err := LoadScenario(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	for i, ev := range s.Events {
		switch engine.Result(ev.ExpectError) {
		case "", engine.ResultEncoding, engine.ResultMalformed:
		default:
			return fmt.Errorf("events[%d]: expect_error must be %q or %q, got %q",
				i, engine.ResultEncoding, engine.ResultMalformed, ev.ExpectError)
		}
	}

	for i, exp := range s.Expect {
		if err := validateExpectation(i, exp, len(s.Events)); err != nil {
			return err
		}
	}
	return nil
}

func validateExpectation(index int, e Expectation, events int) error {
	switch {
	case e.ID == "" && e.Event == nil:
		return fmt.Errorf("expect[%d]: one of id or event is required", index)
	case e.ID != "" && e.Event != nil:
		return fmt.Errorf("expect[%d]: id and event are mutually exclusive", index)
	case e.Event != nil && (*e.Event < 0 || *e.Event >= events):
		return fmt.Errorf("expect[%d]: event %d out of range [0, %d)", index, *e.Event, events)
	case !e.wantExists() && (e.UpdatesCount != nil || e.RemainingAmount != nil):
		return fmt.Errorf("expect[%d]: exists: false cannot be combined with field checks", index)
	}
	return nil
}
