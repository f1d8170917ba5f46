package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/retroryan/shopledger/internal/catalog"
	"github.com/retroryan/shopledger/internal/events"
	"github.com/retroryan/shopledger/internal/result"
	"github.com/retroryan/shopledger/internal/shop"
	"github.com/retroryan/shopledger/internal/store"
	"github.com/retroryan/shopledger/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs scenarios with a fake clock and sequential ids.
type Harness struct {
	store    *store.Store
	engine   *shop.Engine
	clock    *testutil.FakeClock
	recorder *events.Recorder
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and engine
// 2. Seed the catalog
// 3. Execute setup steps (each must succeed)
// 4. Execute flow steps with expect validation
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		clock:    testutil.NewFakeClock(),
		recorder: &events.Recorder{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.engine = shop.New(st, shop.Options{
		Clock:     h.clock,
		Logger:    h.logger,
		Publisher: h.recorder,
		CartIDs:   testutil.NewSequentialIDs("cart"),
		OrderIDs:  testutil.NewSequentialIDs("order"),
		ReturnIDs: testutil.NewSequentialIDs("return"),
	})

	ctx := context.Background()

	cat := catalog.File{Products: scenario.Catalog}
	if res := h.engine.InitializeCatalog(ctx, cat.CatalogEntries()); !res.Succeeded() {
		return nil, fmt.Errorf("failed to seed catalog: %s", res.Error)
	}

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Ctx:      ctx,
		Store:    st,
		Engine:   h.engine,
		Recorder: h.recorder,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSetup runs all setup steps. A failing setup step is an error, not
// a validation failure: the scenario's premise does not hold.
func (h *Harness) executeSetup(ctx context.Context, setup []Step, result *Result) error {
	for i, step := range setup {
		res, err := h.invoke(ctx, step)
		if err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Op, err)
		}
		result.AddTrace(step.Op, step.Args, string(res.Status), res.Code)
		if !res.Succeeded() {
			return fmt.Errorf("setup step %d (%s): %s: %s", i, step.Op, res.Code, res.Error)
		}
		h.logger.Info("setup step completed", "step", i, "op", step.Op)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		res, err := h.invoke(ctx, step)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Op, err)
		}
		result.AddTrace(step.Op, step.Args, string(res.Status), res.Code)

		if step.Expect != nil {
			for _, msg := range checkExpect(res, step.Expect) {
				result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
			}
		}

		h.logger.Info("flow step completed",
			"step", i,
			"op", step.Op,
			"status", res.Status,
			"code", res.Code,
		)
	}
	return nil
}

func (h *Harness) invoke(ctx context.Context, step Step) (result.Result, error) {
	fn, ok := ops[step.Op]
	if !ok {
		return result.Result{}, fmt.Errorf("unknown op %q", step.Op)
	}
	a := &argReader{args: step.Args}
	res := fn(ctx, h, a)
	if a.err != nil {
		return result.Result{}, a.err
	}
	return res, nil
}

// checkExpect compares a result with an expect clause and returns one
// message per mismatch.
func checkExpect(res result.Result, want *ExpectClause) []string {
	var msgs []string
	if string(res.Status) != want.Status {
		msg := fmt.Sprintf("status = %s, expected %s", res.Status, want.Status)
		if res.Error != "" {
			msg += fmt.Sprintf(" (%s: %s)", res.Code, res.Error)
		}
		return append(msgs, msg)
	}
	if want.Code != "" && string(res.Code) != want.Code {
		msgs = append(msgs, fmt.Sprintf("code = %s, expected %s", res.Code, want.Code))
	}
	if len(want.Data) > 0 {
		msgs = append(msgs, matchPaths("data", res.Data, want.Data)...)
	}
	if len(want.Details) > 0 {
		msgs = append(msgs, matchPaths("details", res.Details, want.Details)...)
	}
	return msgs
}

// matchPaths checks expected values against a JSON view of v.
func matchPaths(label string, v any, want map[string]any) []string {
	doc, err := toJSONValue(v)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", label, err)}
	}
	var msgs []string
	for _, path := range sortedKeys(want) {
		got, ok := lookupPath(doc, path)
		if !ok {
			msgs = append(msgs, fmt.Sprintf("%s.%s: missing", label, path))
			continue
		}
		if !scalarEqual(want[path], got) {
			msgs = append(msgs, fmt.Sprintf("%s.%s = %v, expected %v", label, path, got, want[path]))
		}
	}
	return msgs
}

// toJSONValue round-trips v through encoding/json so payload structs are
// addressed by their wire names.
func toJSONValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	// Numbers stay json.Number so money keeps its two decimals ("75.00").
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return out, nil
}

// lookupPath resolves a dotted path; numeric segments index lists and the
// segment "length" yields a list's length.
func lookupPath(doc any, path string) (any, bool) {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			if seg == "length" {
				cur = len(node)
				continue
			}
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// scalarEqual compares YAML-decoded and JSON-decoded values by their
// printed form, so 3 (int) equals 3 (float64).
func scalarEqual(want, got any) bool {
	if want == nil || got == nil {
		return want == nil && got == nil
	}
	return fmt.Sprint(want) == fmt.Sprint(got)
}
