// Package store provides SQLite-backed durable storage for the shop engine.
//
// Tables:
//   - products / inventory: catalog copy and stock bookkeeping
//   - carts / cart_items: baskets and their lines
//   - orders / order_items: checkout snapshots
//   - returns: refund claims against order lines
//
// # Transactions
//
// Every public engine operation runs inside exactly one WithTx call. Row
// helpers in this package take a Querier so they work unchanged against a
// *sql.Tx (mutations) or the *sql.DB (read-only projections that tolerate a
// slightly stale view).
//
// # Invariants enforced by the schema
//
//   - inventory: 0 <= reserved_quantity <= stock_quantity (CHECK)
//   - carts: at most one row per user with status 'active' (partial UNIQUE index)
//   - cart_items: quantity > 0, one line per (cart, product)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as INTEGER unix nanoseconds (UTC).
package store
