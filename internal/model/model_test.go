package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_String(t *testing.T) {
	tests := []struct {
		in   Money
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{1250, "12.50"},
		{17500, "175.00"},
		{-199, "-1.99"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.String())
	}
}

func TestMoney_FromFloatRounds(t *testing.T) {
	assert.Equal(t, Money(1299), MoneyFromFloat(12.99))
	assert.Equal(t, Money(30), MoneyFromFloat(0.1+0.2))
	assert.Equal(t, Money(1), MoneyFromFloat(0.005))
	assert.InDelta(t, 12.99, Money(1299).Float(), 1e-9)
}

func TestMoney_JSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: 17500})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total": 175.00}`, string(raw))

	var m Money
	require.NoError(t, json.Unmarshal([]byte(`19.99`), &m))
	assert.Equal(t, Money(1999), m)
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &m))
}

func TestCart_Totals(t *testing.T) {
	c := Cart{Items: []CartItem{
		{ProductID: "widget", Quantity: 3, PriceAtAdd: 2500},
		{ProductID: "gadget", Quantity: 2, PriceAtAdd: 5000},
	}}
	assert.Equal(t, Money(17500), c.Total())
	assert.Equal(t, 5, c.ItemCount())

	item, ok := c.Item("gadget")
	require.True(t, ok)
	assert.Equal(t, Money(10000), item.Subtotal())

	_, ok = c.Item("gizmo")
	assert.False(t, ok)
}

func TestInventoryStatus(t *testing.T) {
	st := StatusOf(InventoryRecord{ProductID: "widget", Stock: 10, Reserved: 4})
	assert.Equal(t, InventoryStatus{ProductID: "widget", Stock: 10, Reserved: 4, Available: 6}, st)
}

func TestCartStatus_Transitions(t *testing.T) {
	for _, next := range []CartStatus{CartCheckedOut, CartCleared, CartAbandoned} {
		assert.True(t, CartActive.CanTransition(next), "active -> %s", next)
		for _, from := range []CartStatus{CartCheckedOut, CartCleared, CartAbandoned} {
			assert.False(t, from.CanTransition(next), "%s -> %s", from, next)
		}
	}
	assert.False(t, CartActive.CanTransition(CartActive))
}

func TestOrderStatus_Transitions(t *testing.T) {
	allowed := map[string]bool{
		"pending->processing":   true,
		"pending->shipped":      true,
		"pending->cancelled":    true,
		"processing->shipped":   true,
		"processing->cancelled": true,
		"shipped->delivered":    true,
		"shipped->cancelled":    true,
	}
	for _, from := range OrderStatuses {
		for _, to := range OrderStatuses {
			key := fmt.Sprintf("%s->%s", from, to)
			assert.Equal(t, allowed[key], from.CanTransition(to), key)

			err := ValidateOrderTransition(from, to)
			if allowed[key] {
				assert.NoError(t, err, key)
				continue
			}
			require.Error(t, err, key)
			e, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, CodeInvalidTransition, e.Code)
			assert.Equal(t, from, e.Details["current_status"])
			assert.Equal(t, to, e.Details["requested_status"])
		}
	}

	assert.True(t, OrderDelivered.Terminal())
	assert.True(t, OrderCancelled.Terminal())
	assert.False(t, OrderShipped.Terminal())
}

func TestOrderStatus_Returnable(t *testing.T) {
	assert.True(t, OrderShipped.Returnable())
	assert.True(t, OrderDelivered.Returnable())
	assert.False(t, OrderPending.Returnable())
	assert.False(t, OrderCancelled.Returnable())
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, OrderShipped, st)

	_, err = ParseOrderStatus("refunded")
	require.Error(t, err)
	assert.Equal(t, CodeInvalidStatus, CodeOf(err))
	assert.True(t, IsRejection(err))

	_, err = ParseOrderStatus("Shipped")
	assert.Error(t, err, "status names are case sensitive")
}

func TestResolveReturn(t *testing.T) {
	next, err := ResolveReturn(ReturnPending, true)
	require.NoError(t, err)
	assert.Equal(t, ReturnApproved, next)

	next, err = ResolveReturn(ReturnPending, false)
	require.NoError(t, err)
	assert.Equal(t, ReturnRejected, next)

	for _, done := range []ReturnStatus{ReturnApproved, ReturnRejected} {
		next, err := ResolveReturn(done, true)
		require.Error(t, err)
		assert.Equal(t, done, next)
		assert.Equal(t, CodeAlreadyProcessed, CodeOf(err))
	}
}

func TestErrors(t *testing.T) {
	rej := Rejectf(CodeInsufficientStock, "need %d", 3).With("available_stock", 2)
	assert.Equal(t, "INSUFFICIENT_STOCK: need 3", rej.Error())
	assert.True(t, IsRejection(rej))
	assert.False(t, IsPrecondition(rej))

	wrapped := fmt.Errorf("add item: %w", rej)
	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 2, e.Details["available_stock"])
	assert.Equal(t, CodeInsufficientStock, CodeOf(wrapped))

	bad := InvalidInput("quantity", "must be positive, got %d", 0)
	assert.True(t, IsPrecondition(bad))
	assert.Equal(t, "quantity", bad.Details["field"])
	assert.Equal(t, "quantity: must be positive, got 0", bad.Message)

	assert.Equal(t, CodeStoreError, CodeOf(errors.New("disk I/O error")))
}

func TestRequireHelpers(t *testing.T) {
	assert.NoError(t, RequireID("user_id", "u1"))
	assert.Equal(t, CodeInvalidInput, CodeOf(RequireID("user_id", "")))

	assert.NoError(t, RequirePositive("quantity", 1))
	assert.Error(t, RequirePositive("quantity", 0))
	assert.Error(t, RequirePositive("quantity", -2))
}

func TestNormalizeText(t *testing.T) {
	// e followed by a combining acute composes to a single rune
	assert.Equal(t, "Caf\u00e9", NormalizeText("  Cafe\u0301 \n"))
	assert.Equal(t, "", NormalizeText("   "))
}
