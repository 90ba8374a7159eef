package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/filtergate/internal/config"
)

// Scenario is a scripted sequence of calls made through one filter.
// Times are milliseconds from the start of the run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Filter configures the strategy under test.
	Filter config.Config `yaml:"filter"`

	// Calls are made in order. At must not decrease.
	Calls []Call `yaml:"calls"`

	// Horizon is the time the run stops. Zero means run until no timers
	// remain.
	Horizon int64 `yaml:"horizon,omitempty"`

	// RunID is an optional fixed run identifier for deterministic output.
	RunID string `yaml:"run_id,omitempty"`

	// Assertions validate the resulting trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Call is one invocation of the filtered function.
type Call struct {
	// At is when the call is made.
	At int64 `yaml:"at"`

	// Arg is passed to the target, which echoes it back as its result.
	Arg string `yaml:"arg"`

	// Fail makes the target return an error with this message instead.
	Fail string `yaml:"fail,omitempty"`

	// MS changes the window (or delay) just before this call is made.
	MS *int64 `yaml:"ms,omitempty"`

	// End signals the end of activity directly instead of touching
	// (idle filters only).
	End bool `yaml:"end,omitempty"`
}

// Assertion validates the trace.
type Assertion struct {
	// Type is one of exec_count, exec_at, settled, max_per_window.
	Type string `yaml:"type"`

	// Count is the expected number of executions (exec_count).
	Count int `yaml:"count,omitempty"`

	// Times are the expected execution times (exec_at).
	Times []int64 `yaml:"times,omitempty"`

	// Args, if set, are the expected execution arguments (exec_at).
	Args []string `yaml:"args,omitempty"`

	// Call is the 1-based call index (settled).
	Call int `yaml:"call,omitempty"`

	// State is resolved, rejected, canceled or pending (settled).
	State string `yaml:"state,omitempty"`

	// Value is the expected resolved value (settled).
	Value *string `yaml:"value,omitempty"`

	// Error must be a substring of the rejection (settled).
	Error string `yaml:"error,omitempty"`

	// At is the expected settlement time (settled).
	At *int64 `yaml:"at,omitempty"`

	// Window and Max bound executions in any window starting at an
	// execution (max_per_window).
	Window int64 `yaml:"window,omitempty"`
	Max    int   `yaml:"max,omitempty"`
}

// Assertion type constants.
const (
	AssertExecCount    = "exec_count"
	AssertExecAt       = "exec_at"
	AssertSettled      = "settled"
	AssertMaxPerWindow = "max_per_window"
)

// Settlement states accepted by settled assertions.
const (
	StateResolved = "resolved"
	StateRejected = "rejected"
	StateCanceled = "canceled"
	StatePending  = "pending"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected, including inside the filter block.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if err := config.CheckSchema(&s.Filter); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if err := s.Filter.Validate(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	if len(s.Calls) == 0 {
		return fmt.Errorf("calls list is required and must be non-empty")
	}
	var prev int64
	for i, c := range s.Calls {
		if c.At < 0 {
			return fmt.Errorf("calls[%d]: at must be >= 0", i)
		}
		if c.At < prev {
			return fmt.Errorf("calls[%d]: at %d is before previous call at %d", i, c.At, prev)
		}
		prev = c.At
		if err := validateCall(i, c, s.Filter.Kind); err != nil {
			return err
		}
	}
	if s.Horizon != 0 && s.Horizon < prev {
		return fmt.Errorf("horizon %d is before the last call at %d", s.Horizon, prev)
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], len(s.Calls)); err != nil {
			return err
		}
	}
	return nil
}

func validateCall(index int, c Call, kind config.Kind) error {
	if kind == config.KindIdle {
		if c.Fail != "" {
			return fmt.Errorf("calls[%d]: fail is not supported by idle filters", index)
		}
		if c.MS != nil {
			return fmt.Errorf("calls[%d]: ms is not supported by idle filters", index)
		}
		return nil
	}
	if c.End {
		return fmt.Errorf("calls[%d]: end is only valid for idle filters", index)
	}
	return nil
}

func validateAssertion(index int, a *Assertion, calls int) error {
	switch a.Type {
	case AssertExecCount:
		if a.Count < 0 {
			return fmt.Errorf("assertion[%d]: count must be >= 0", index)
		}
	case AssertExecAt:
		if a.Args != nil && len(a.Args) != len(a.Times) {
			return fmt.Errorf("assertion[%d]: args and times must have the same length", index)
		}
	case AssertSettled:
		if a.Call < 1 || a.Call > calls {
			return fmt.Errorf("assertion[%d]: call must be between 1 and %d", index, calls)
		}
		switch a.State {
		case StateResolved, StateRejected, StateCanceled, StatePending:
		default:
			return fmt.Errorf("assertion[%d]: unknown state %q", index, a.State)
		}
	case AssertMaxPerWindow:
		if a.Window <= 0 {
			return fmt.Errorf("assertion[%d]: window must be > 0", index)
		}
		if a.Max < 1 {
			return fmt.Errorf("assertion[%d]: max must be >= 1", index)
		}
	case "":
		return fmt.Errorf("assertion[%d]: type is required", index)
	default:
		return fmt.Errorf("assertion[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
