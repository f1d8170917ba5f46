package harness

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/retroryan/shopledger/internal/events"
	"github.com/retroryan/shopledger/internal/shop"
	"github.com/retroryan/shopledger/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", FormatEvent(event))
		}
	}

	return buf.String()
}

// assertTraceContains passes if any step has the op and carries every
// expected arg.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Op == a.Op && matchArgs(event.Args, a.Args) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("op %s with args %v", a.Op, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder passes if the ops occur as a subsequence of the trace.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Ops) && event.Op == a.Ops[next] {
			next++
		}
	}
	if next == len(a.Ops) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("ops in order: %v", a.Ops),
		Actual:   fmt.Sprintf("matched %d of %d, stuck at %s", next, len(a.Ops), a.Ops[next]),
		Trace:    trace,
	}
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == a.Op {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Op),
		Actual:   fmt.Sprintf("%d occurrences", count),
		Trace:    trace,
	}
}

// assertFinalState compares one row of a table against expected column
// values. Columns not named in Expect are ignored.
func assertFinalState(ctx context.Context, q store.Querier, a Assertion) error {
	row, columns, err := fetchRow(ctx, q, a.Table, a.Where)
	if err != nil {
		return err
	}
	for _, key := range sortedKeys(a.Expect) {
		got, ok := row[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if want := a.Expect[key]; !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, want, want),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, got, got),
			}
		}
	}
	return nil
}

// fetchRow selects the single row of table matching where. Identifiers
// cannot be bound as parameters, so they are checked against
// validIdentifier before any SQL is built.
func fetchRow(ctx context.Context, q store.Querier, table string, where map[string]any) (map[string]any, []string, error) {
	if !validIdentifier.MatchString(table) {
		return nil, nil, fmt.Errorf("invalid table name %q: must match pattern %s", table, validIdentifier.String())
	}
	cond, args, err := buildWhereClause(where)
	if err != nil {
		return nil, nil, err
	}
	query := "SELECT * FROM " + table
	if cond != "" {
		query += " WHERE " + cond
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("get columns: %w", err)
	}
	if !rows.Next() {
		return nil, nil, &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", table, formatWhereClause(where)),
			Actual:   "row not found",
		}
	}
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, nil, fmt.Errorf("scan row: %w", err)
	}
	if rows.Next() {
		return nil, nil, &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", table, formatWhereClause(where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	return row, columns, rows.Err()
}

// assertInventory checks one product's stock figures.
func assertInventory(ctx context.Context, eng *shop.Engine, assertion Assertion) error {
	res := eng.InventoryStatus(ctx, assertion.ProductID)
	if !res.Succeeded() {
		return &AssertionError{
			Type:     AssertInventory,
			Expected: fmt.Sprintf("inventory for %s", assertion.ProductID),
			Actual:   fmt.Sprintf("%s: %s", res.Code, res.Error),
		}
	}
	if msgs := matchPaths(assertion.ProductID, res.Data, assertion.Expect); len(msgs) > 0 {
		return &AssertionError{
			Type:     AssertInventory,
			Expected: fmt.Sprintf("%s %v", assertion.ProductID, assertion.Expect),
			Actual:   strings.Join(msgs, "; "),
		}
	}
	return nil
}

// assertReservationsConsistent checks that no product's reserved figure
// drifted from what active carts hold.
func assertReservationsConsistent(ctx context.Context, eng *shop.Engine) error {
	lines, err := eng.Reports.Reservations(ctx)
	if err != nil {
		return fmt.Errorf("reservation report: %w", err)
	}
	var drift []string
	for _, line := range lines {
		if !line.Consistent {
			drift = append(drift, fmt.Sprintf("%s reserved=%d in_active_carts=%d", line.ProductID, line.Reserved, line.InCarts))
		}
	}
	if len(drift) > 0 {
		return &AssertionError{
			Type:     AssertReservationsConsistent,
			Expected: "reserved equals active cart quantities for every product",
			Actual:   strings.Join(drift, ", "),
		}
	}
	return nil
}

// assertEventCount checks how many events of one type were published.
func assertEventCount(rec *events.Recorder, assertion Assertion) error {
	got := len(rec.OfType(events.Type(assertion.Event)))
	if got != assertion.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s events", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d events", got),
		}
	}
	return nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Keys are sorted for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML-decoded value to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares a YAML-decoded expectation with a value scanned
// from SQLite. Numbers compare by value whatever their Go type; booleans
// match 0/1 integer columns.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		got, ok := actual.(string)
		return ok && got == exp
	case bool:
		if n, ok := actual.(int64); ok {
			return exp == (n != 0)
		}
		got, ok := actual.(bool)
		return ok && got == exp
	}

	want, wok := asFloat(expected)
	got, gok := asFloat(actual)
	if wok && gok {
		return want == got
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists || !scalarEqual(expectedVal, actualVal) {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AssertionContext is what assertions may inspect after a run.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	Engine   *shop.Engine
	Recorder *events.Recorder
}

// checker evaluates one assertion type. ready reports whether the context
// carries what the checker needs; missing names it when it does not.
type checker struct {
	ready   func(*AssertionContext) bool
	missing string
	check   func(*AssertionContext, *Result, Assertion) error
}

func always(*AssertionContext) bool { return true }

func hasStore(c *AssertionContext) bool    { return c != nil && c.Store != nil }
func hasEngine(c *AssertionContext) bool   { return c != nil && c.Engine != nil }
func hasRecorder(c *AssertionContext) bool { return c != nil && c.Recorder != nil }

var checkers = map[string]checker{
	AssertTraceContains: {ready: always, check: func(_ *AssertionContext, r *Result, a Assertion) error {
		return assertTraceContains(r.Trace, a)
	}},
	AssertTraceOrder: {ready: always, check: func(_ *AssertionContext, r *Result, a Assertion) error {
		return assertTraceOrder(r.Trace, a)
	}},
	AssertTraceCount: {ready: always, check: func(_ *AssertionContext, r *Result, a Assertion) error {
		return assertTraceCount(r.Trace, a)
	}},
	AssertFinalState: {ready: hasStore, missing: "database context", check: func(c *AssertionContext, _ *Result, a Assertion) error {
		return assertFinalState(c.Ctx, c.Store.DB(), a)
	}},
	AssertInventory: {ready: hasEngine, missing: "an engine", check: func(c *AssertionContext, _ *Result, a Assertion) error {
		return assertInventory(c.Ctx, c.Engine, a)
	}},
	AssertReservationsConsistent: {ready: hasEngine, missing: "an engine", check: func(c *AssertionContext, _ *Result, _ Assertion) error {
		return assertReservationsConsistent(c.Ctx, c.Engine)
	}},
	AssertEventCount: {ready: hasRecorder, missing: "an event recorder", check: func(c *AssertionContext, _ *Result, a Assertion) error {
		return assertEventCount(c.Recorder, a)
	}},
}

// EvaluateAssertions runs every assertion against a finished run and returns
// one message per failure, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		c, ok := checkers[a.Type]
		var err error
		switch {
		case !ok:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		case !c.ready(actx):
			err = fmt.Errorf("assertion[%d]: %s requires %s", i, a.Type, c.missing)
		default:
			err = c.check(actx, result, a)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}
