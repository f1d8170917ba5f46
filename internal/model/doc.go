// Package model defines the data model shared by the ledger, cart, order and
// returns packages.
//
// # Entities
//
//   - Product / InventoryRecord: catalog copy and per-product stock bookkeeping
//   - Cart / CartItem: a user's active basket; prices frozen at add time
//   - Order / OrderItem: immutable snapshot taken at checkout (status aside)
//   - ReturnRequest: a refund claim against one line of a shipped order
//
// # Lifecycles
//
// Each entity with a status owns exactly one transition function
// (CartStatus.CanTransition, OrderStatus.CanTransition,
// ReturnStatus.CanTransition). Call sites never compare status strings
// directly to decide whether a move is legal.
//
// # Errors
//
// Domain rejections and precondition failures are *Error values carrying a
// stable Code. Anything else returned by the engine is an integrity failure.
package model
