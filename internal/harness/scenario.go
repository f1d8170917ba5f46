package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/retroryan/shopledger/internal/catalog"
)

// Scenario defines a scenario run against a fresh engine.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are keyed by it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog seeds products and inventory before anything else runs.
	Catalog []catalog.Entry `yaml:"catalog"`

	// Setup steps establish initial state and must all succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the steps under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step invokes one engine operation.
type Step struct {
	// Op is the operation name, e.g. "add_item" or "checkout".
	Op string `yaml:"op"`

	// Args are passed to the operation by name.
	Args map[string]any `yaml:"args"`

	// Expect, when present, is checked against the operation's result.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected result of a step.
type ExpectClause struct {
	// Status is "success" or "failed".
	Status string `yaml:"status"`

	// Code is the expected failure code.
	Code string `yaml:"code,omitempty"`

	// Data holds expected payload values keyed by dotted path.
	// Subset match: only listed paths are checked.
	Data map[string]any `yaml:"data,omitempty"`

	// Details holds expected failure details keyed by dotted path.
	Details map[string]any `yaml:"details,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Op is used by trace_contains and trace_count.
	Op string `yaml:"op,omitempty"`

	// Args are the expected op arguments (trace_contains, subset match).
	Args map[string]any `yaml:"args,omitempty"`

	// Ops is the expected order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of occurrences (trace_count, event_count).
	Count int `yaml:"count,omitempty"`

	// Table and Where select one row (final_state).
	Table string         `yaml:"table,omitempty"`
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected values (final_state, inventory).
	Expect map[string]any `yaml:"expect,omitempty"`

	// ProductID selects the product (inventory).
	ProductID string `yaml:"product_id,omitempty"`

	// Event is the event type (event_count), e.g. "order.placed".
	Event string `yaml:"event,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains          = "trace_contains"
	AssertTraceOrder             = "trace_order"
	AssertTraceCount             = "trace_count"
	AssertFinalState             = "final_state"
	AssertInventory              = "inventory"
	AssertReservationsConsistent = "reservations_consistent"
	AssertEventCount             = "event_count"
)

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

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
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

// validateScenario checks that all required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	cat := catalog.File{Products: s.Catalog}
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(where string, step Step) error {
	if step.Op == "" {
		return fmt.Errorf("%s: op is required", where)
	}
	if _, ok := ops[step.Op]; !ok {
		return fmt.Errorf("%s: unknown op %q", where, step.Op)
	}
	if e := step.Expect; e != nil {
		if e.Status != "success" && e.Status != "failed" {
			return fmt.Errorf("%s.expect: status must be success or failed, got %q", where, e.Status)
		}
		if e.Code != "" && e.Status != "failed" {
			return fmt.Errorf("%s.expect: code is only valid with status failed", where)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertInventory:
		if a.ProductID == "" {
			return fmt.Errorf("assertions[%d]: product_id is required for inventory", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for inventory", index)
		}
	case AssertReservationsConsistent:
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
