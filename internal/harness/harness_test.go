package harness

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retroryan/shopledger/internal/catalog"
	"github.com/retroryan/shopledger/internal/model"
)

func widgetCatalog(stock int) []catalog.Entry {
	return []catalog.Entry{{ID: "widget", Name: "Widget", Price: 25.00, Stock: stock}}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:    "minimal",
		Catalog: widgetCatalog(5),
		Flow: []Step{
			{Op: "add_item", Args: map[string]any{"user_id": "u1", "product_id": "widget", "quantity": 2}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Op: "add_item"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, 1, result.Trace[0].Seq)
	assert.Equal(t, "success", result.Trace[0].Status)
}

func TestRun_ExpectMismatchFailsScenario(t *testing.T) {
	scenario := &Scenario{
		Name:    "mismatch",
		Catalog: widgetCatalog(5),
		Flow: []Step{
			{
				Op:     "add_item",
				Args:   map[string]any{"user_id": "u1", "product_id": "widget", "quantity": 9},
				Expect: &ExpectClause{Status: "success"},
			},
			{
				Op:   "add_item",
				Args: map[string]any{"user_id": "u1", "product_id": "widget", "quantity": 9},
				Expect: &ExpectClause{
					Status:  "failed",
					Code:    "CART_EMPTY",
					Details: map[string]any{"available_stock": 4},
				},
			},
		},
		Assertions: []Assertion{{Type: AssertReservationsConsistent}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "status = failed, expected success")
	assert.Contains(t, result.Errors[0], "INSUFFICIENT_STOCK")
	assert.Contains(t, result.Errors[1], "code = INSUFFICIENT_STOCK, expected CART_EMPTY")
	assert.Contains(t, result.Errors[2], "details.available_stock = 5, expected 4")
}

func TestRun_SetupFailureIsError(t *testing.T) {
	scenario := &Scenario{
		Name:    "bad_setup",
		Catalog: widgetCatalog(1),
		Setup: []Step{
			{Op: "add_item", Args: map[string]any{"user_id": "u1", "product_id": "widget", "quantity": 2}},
		},
		Flow:       []Step{{Op: "get_cart", Args: map[string]any{"user_id": "u1"}}},
		Assertions: []Assertion{{Type: AssertReservationsConsistent}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (add_item)")
	assert.Contains(t, err.Error(), string(model.CodeInsufficientStock))
}

func TestRun_BadArgTypeIsError(t *testing.T) {
	scenario := &Scenario{
		Name:    "bad_args",
		Catalog: widgetCatalog(1),
		Flow: []Step{
			{Op: "add_item", Args: map[string]any{"user_id": "u1", "product_id": "widget", "quantity": "lots"}},
		},
		Assertions: []Assertion{{Type: AssertReservationsConsistent}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `arg "quantity": want integer, got string`)
}

func TestRun_MissingArgReachesEngineValidation(t *testing.T) {
	scenario := &Scenario{
		Name:    "missing_arg",
		Catalog: widgetCatalog(1),
		Flow: []Step{
			{
				Op:     "add_item",
				Args:   map[string]any{"user_id": "u1", "product_id": "widget"},
				Expect: &ExpectClause{Status: "failed", Code: "INVALID_INPUT", Details: map[string]any{"field": "quantity"}},
			},
		},
		Assertions: []Assertion{{Type: AssertTraceCount, Op: "add_item", Count: 1}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_IsolatedDatabases(t *testing.T) {
	scenario := &Scenario{
		Name:    "isolated",
		Catalog: widgetCatalog(3),
		Flow: []Step{
			{
				Op:     "add_item",
				Args:   map[string]any{"user_id": "u1", "product_id": "widget", "quantity": 3},
				Expect: &ExpectClause{Status: "success"},
			},
		},
		Assertions: []Assertion{
			{Type: AssertInventory, ProductID: "widget", Expect: map[string]any{"reserved": 3}},
		},
	}

	// A shared database would run out of stock on the second run.
	for i := 0; i < 2; i++ {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, "run %d errors: %v", i, result.Errors)
	}
}

func TestLookupPath(t *testing.T) {
	doc := map[string]any{
		"cart": map[string]any{
			"items": []any{
				map[string]any{"product_id": "widget", "quantity": float64(3)},
			},
		},
	}

	v, ok := lookupPath(doc, "cart.items.0.product_id")
	require.True(t, ok)
	assert.Equal(t, "widget", v)

	v, ok = lookupPath(doc, "cart.items.length")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = lookupPath(doc, "cart.items.1")
	assert.False(t, ok)
	_, ok = lookupPath(doc, "cart.owner")
	assert.False(t, ok)
	_, ok = lookupPath(doc, "cart.items.0.quantity.value")
	assert.False(t, ok)
}

func TestScalarEqual(t *testing.T) {
	assert.True(t, scalarEqual(3, float64(3)))
	assert.True(t, scalarEqual("175.00", "175.00"))
	assert.True(t, scalarEqual("75.00", json.Number("75.00")))
	assert.True(t, scalarEqual(3, json.Number("3")))
	assert.True(t, scalarEqual(true, true))
	assert.True(t, scalarEqual(nil, nil))
	assert.False(t, scalarEqual(175.0, "175.00"))
	assert.False(t, scalarEqual(nil, "x"))
}
