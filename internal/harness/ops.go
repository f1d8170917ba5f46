package harness

import (
	"context"
	"fmt"
	"sort"

	"github.com/retroryan/shopledger/internal/result"
	"github.com/retroryan/shopledger/internal/shop"
)

// opFunc runs one engine operation. Malformed arguments are collected on
// the argReader; engine failures are reported inside the Result.
type opFunc func(ctx context.Context, h *Harness, a *argReader) result.Result

// ops maps scenario op names to engine calls.
var ops = map[string]opFunc{
	"inventory_status": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.InventoryStatus(ctx, a.str("product_id"))
	},
	"restock": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.Restock(ctx, a.str("product_id"), a.integer("quantity"))
	},
	"get_cart": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.GetCart(ctx, a.str("user_id"))
	},
	"add_item": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.AddItem(ctx, a.str("user_id"), a.str("product_id"), a.integer("quantity"))
	},
	"update_item": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.UpdateItem(ctx, a.str("user_id"), a.str("product_id"), a.integer("quantity"))
	},
	"remove_item": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.RemoveItem(ctx, a.str("user_id"), a.str("product_id"), a.optInteger("quantity"))
	},
	"clear_cart": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.ClearCart(ctx, a.str("user_id"))
	},
	"checkout": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.Checkout(ctx, a.str("user_id"), a.str("shipping_address"))
	},
	"update_order_status": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.UpdateOrderStatus(ctx, a.str("order_id"), a.str("status"))
	},
	"cancel_order": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.CancelOrder(ctx, a.str("user_id"), a.str("order_id"))
	},
	"get_order": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.GetOrder(ctx, a.str("user_id"), a.str("order_id"))
	},
	"list_orders": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.ListOrders(ctx, a.str("user_id"), a.str("status"))
	},
	"create_return": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.CreateReturn(ctx, a.str("user_id"), a.str("order_id"), a.str("item_id"), a.str("reason"))
	},
	"process_return": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.ProcessReturn(ctx, a.str("return_id"), a.boolean("approve"))
	},
	"get_return": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.GetReturn(ctx, a.str("user_id"), a.str("return_id"))
	},
	"list_returns": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.ListReturns(ctx, a.str("user_id"))
	},
	"cleanup": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.Cleanup(ctx, a.number("hours"))
	},
	"inventory_report": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.InventoryReport(ctx)
	},
	"low_stock_report": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.LowStockReport(ctx, a.integer("threshold"))
	},
	"order_stats": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.OrderStats(ctx, a.str("user_id"))
	},
	"reservation_report": func(ctx context.Context, h *Harness, a *argReader) result.Result {
		return h.engine.ReservationReport(ctx)
	},
	"advance_clock": func(_ context.Context, h *Harness, a *argReader) result.Result {
		h.clock.Advance(shop.Hours(a.number("hours")))
		return result.OK(map[string]any{"now": h.clock.Now()})
	},
}

// OpNames lists the supported ops in sorted order.
func OpNames() []string {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// argReader converts YAML-decoded args to typed values. Missing keys yield
// zero values so the engine's own validation is exercised; the first
// wrongly typed value is kept in err.
type argReader struct {
	args map[string]any
	err  error
}

func (r *argReader) fail(key string, want string, v any) {
	if r.err == nil {
		r.err = fmt.Errorf("arg %q: want %s, got %T", key, want, v)
	}
}

func (r *argReader) str(key string) string {
	v, ok := r.args[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case int, float64, bool:
		// YAML scalars like 42 or true used as ids
		return fmt.Sprint(s)
	}
	r.fail(key, "string", v)
	return ""
}

func (r *argReader) integer(key string) int {
	v, ok := r.args[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n == float64(int(n)) {
			return int(n)
		}
	}
	r.fail(key, "integer", v)
	return 0
}

func (r *argReader) optInteger(key string) *int {
	if v, ok := r.args[key]; !ok || v == nil {
		return nil
	}
	n := r.integer(key)
	return &n
}

func (r *argReader) number(key string) float64 {
	v, ok := r.args[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	r.fail(key, "number", v)
	return 0
}

func (r *argReader) boolean(key string) bool {
	v, ok := r.args[key]
	if !ok || v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	r.fail(key, "bool", v)
	return false
}
