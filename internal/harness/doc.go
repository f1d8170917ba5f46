// Package harness runs YAML scenarios against a fresh engine and checks the
// outcome of every step, the final database state and the trace.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	catalog:
//	  - { id: widget, name: Widget, price: 25.00, stock: 10 }
//	setup:
//	  - op: add_item
//	    args: { user_id: u1, product_id: widget, quantity: 2 }
//	flow:
//	  - op: add_item
//	    args: { user_id: u1, product_id: widget, quantity: 20 }
//	    expect:
//	      status: failed
//	      code: INSUFFICIENT_STOCK
//	      details: { available_stock: 8 }
//	  - op: checkout
//	    args: { user_id: u1, shipping_address: "1 Main St" }
//	    expect:
//	      status: success
//	      data: { total: "50.00", items.0.quantity: 2 }
//	assertions:
//	  - type: inventory
//	    product_id: widget
//	    expect: { stock: 8, reserved: 0, available: 8 }
//	  - type: final_state
//	    table: orders
//	    where: { order_id: order-1 }
//	    expect: { status: pending }
//
// Setup steps must succeed; a failing setup step aborts the run. Flow steps
// are checked against their expect clause when one is given. Paths in data
// and details are dot separated, with numeric segments indexing lists.
//
// Carts, orders and returns get sequential ids ("cart-1", "order-1",
// "return-1") and the clock starts at testutil.Epoch, advancing only through
// the advance_clock op, so traces are reproducible.
//
// # Assertion Types
//
//   - trace_contains: an op appears in the trace with matching args
//   - trace_order: ops appear in the given order
//   - trace_count: an op appears exactly N times
//   - final_state: query a table and check column values
//   - inventory: stock, reserved and available for one product
//   - reservations_consistent: every product's reserved figure equals the
//     quantity held by active carts
//   - event_count: the number of published events of a type
package harness
