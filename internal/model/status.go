package model

// CartStatus is the lifecycle state of a cart.
type CartStatus string

const (
	CartActive     CartStatus = "active"
	CartCleared    CartStatus = "cleared"
	CartCheckedOut CartStatus = "checked_out"
	CartAbandoned  CartStatus = "abandoned"
)

// CanTransition reports whether a cart may move from s to next.
// Every terminal state is reachable only from active.
func (s CartStatus) CanTransition(next CartStatus) bool {
	if s != CartActive {
		return false
	}
	switch next {
	case CartCheckedOut, CartCleared, CartAbandoned:
		return true
	}
	return false
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every valid order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderPending,
	OrderProcessing,
	OrderShipped,
	OrderDelivered,
	OrderCancelled,
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderShipped, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderCancelled},
}

// ParseOrderStatus validates s against the enumerated set.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", Rejectf(CodeInvalidStatus, "invalid order status %q", s).
		With("valid_statuses", OrderStatuses)
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Returnable reports whether a return may be opened against an order in s.
func (s OrderStatus) Returnable() bool {
	return s == OrderShipped || s == OrderDelivered
}

// ValidateOrderTransition returns a rejection when from → to is not allowed.
func ValidateOrderTransition(from, to OrderStatus) error {
	if from.CanTransition(to) {
		return nil
	}
	return Rejectf(CodeInvalidTransition, "cannot move order from %s to %s", from, to).
		With("current_status", from).
		With("requested_status", to)
}

// ReturnStatus is the lifecycle state of a return request.
type ReturnStatus string

const (
	ReturnPending  ReturnStatus = "pending"
	ReturnApproved ReturnStatus = "approved"
	ReturnRejected ReturnStatus = "rejected"
)

// CanTransition reports whether a return may move from s to next.
func (s ReturnStatus) CanTransition(next ReturnStatus) bool {
	return s == ReturnPending && (next == ReturnApproved || next == ReturnRejected)
}

// ResolveReturn picks the terminal status for a decision and checks that the
// return can still be resolved.
func ResolveReturn(current ReturnStatus, approve bool) (ReturnStatus, error) {
	next := ReturnRejected
	if approve {
		next = ReturnApproved
	}
	if !current.CanTransition(next) {
		return current, Rejectf(CodeAlreadyProcessed, "return already processed (status: %s)", current).
			With("current_status", current)
	}
	return next, nil
}

func (s CartStatus) String() string   { return string(s) }
func (s OrderStatus) String() string  { return string(s) }
func (s ReturnStatus) String() string { return string(s) }
