package harness

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatTrace renders a trace as stable text, one step per line:
//
//	scenario: reservation_lifecycle
//	1 add_item product_id=widget quantity=3 user_id=u1 -> success
//	2 add_item product_id=widget quantity=9 user_id=u2 -> failed INSUFFICIENT_STOCK
//
// Args are sorted by key. Strings that are empty or contain spaces, quotes
// or '=' are quoted.
func FormatTrace(scenarioName string, trace []TraceEvent) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", scenarioName)
	for _, event := range trace {
		b.WriteString(FormatEvent(event))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// FormatEvent renders one trace line.
func FormatEvent(event TraceEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", event.Seq, event.Op)
	for _, k := range sortedKeys(event.Args) {
		fmt.Fprintf(&b, " %s=%s", k, formatValue(event.Args[k]))
	}
	fmt.Fprintf(&b, " -> %s", event.Status)
	if event.Code != "" {
		fmt.Fprintf(&b, " %s", event.Code)
	}
	return b.String()
}

func formatValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return strconv.Quote(s)
	}
	return s
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, FormatTrace(scenarioName, result.Trace))
}
