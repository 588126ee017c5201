package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/endog/internal/engine"
)

// DefaultStart is the clock reading at the beginning of a scenario that
// does not set one.
var DefaultStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Scenario is a scripted run against a tally engine.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Tolerance is the engine tolerance.
	Tolerance time.Duration `yaml:"tolerance"`

	// Start is the initial clock reading. Zero means DefaultStart.
	Start time.Time `yaml:"start,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scenario action. Exactly one of Submit, Advance, Sweep,
// Restart, and ExpectState is set.
type Step struct {
	Submit      *SubmitStep      `yaml:"submit,omitempty"`
	Advance     time.Duration    `yaml:"advance,omitempty"`
	Sweep       bool             `yaml:"sweep,omitempty"`
	Restart     bool             `yaml:"restart,omitempty"`
	ExpectState map[string]int64 `yaml:"expect_state,omitempty"`

	// ExpectError is the error code a Submit step should fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// SubmitStep describes the event to submit.
type SubmitStep struct {
	Key   string `yaml:"key"`
	Delta int64  `yaml:"delta"`
	Note  string `yaml:"note,omitempty"`

	// At is the event time as an offset from the scenario start.
	// Nil stamps the event with the current clock reading.
	At *time.Duration `yaml:"at,omitempty"`
}

// Assertion types.
const (
	AssertFinalState   = "final_state"
	AssertJournalCount = "journal_count"
	AssertPendingCount = "pending_count"
	AssertResultCount  = "result_count"
)

// Assertion checks the scenario outcome after the last step.
type Assertion struct {
	Type   string           `yaml:"type"`
	State  map[string]int64 `yaml:"state,omitempty"`
	Result string           `yaml:"result,omitempty"`
	Count  int              `yaml:"count,omitempty"`
}

var errorCodes = map[string]bool{
	string(engine.ErrCodeInvalidTimestamp):   true,
	string(engine.ErrCodeTooOld):             true,
	string(engine.ErrCodeApplicationFailure): true,
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML %s: %w", path, err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}

	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if s.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative, got %s", s.Tolerance)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario must have at least one step")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i+1, err)
		}
	}

	return nil
}

func validateStep(step Step) error {
	actions := 0
	if step.Submit != nil {
		actions++
	}
	if step.Advance != 0 {
		actions++
	}
	if step.Sweep {
		actions++
	}
	if step.Restart {
		actions++
	}
	if step.ExpectState != nil {
		actions++
	}
	if actions != 1 {
		return fmt.Errorf("exactly one of submit, advance, sweep, restart, expect_state is required, got %d", actions)
	}

	if step.Advance < 0 {
		return fmt.Errorf("advance must be positive, got %s", step.Advance)
	}
	if step.ExpectError != "" {
		if step.Submit == nil {
			return fmt.Errorf("expect_error is only valid on a submit step")
		}
		if !errorCodes[step.ExpectError] {
			return fmt.Errorf("unknown error code %q", step.ExpectError)
		}
	}
	if step.Submit != nil && step.Submit.Key == "" {
		return fmt.Errorf("submit key is required")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertFinalState:
		if a.State == nil {
			return fmt.Errorf("%s requires state", a.Type)
		}
	case AssertJournalCount, AssertPendingCount:
	case AssertResultCount:
		if a.Result == "" {
			return fmt.Errorf("%s requires result", a.Type)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", a.Count)
	}
	return nil
}
