package model

import "time"

// Product is the engine's copy of a catalog entry. Scalars are copied in at
// initialization; nothing references the external catalog afterwards.
type Product struct {
	ID        string    `json:"product_id"`
	Name      string    `json:"name"`
	Price     Money     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// InventoryRecord is the stock bookkeeping row for one product.
// Invariant: 0 <= Reserved <= Stock.
type InventoryRecord struct {
	ProductID     string    `json:"product_id"`
	Stock         int       `json:"stock_quantity"`
	Reserved      int       `json:"reserved_quantity"`
	LastRestocked time.Time `json:"last_restocked"`
}

// Available is derived, never stored.
func (r InventoryRecord) Available() int {
	return r.Stock - r.Reserved
}

// InventoryStatus is the read-only projection returned by Ledger.Status.
type InventoryStatus struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

// StatusOf projects a record.
func StatusOf(r InventoryRecord) InventoryStatus {
	return InventoryStatus{
		ProductID: r.ProductID,
		Stock:     r.Stock,
		Reserved:  r.Reserved,
		Available: r.Available(),
	}
}

// Cart is a user's basket. At most one cart per user is active.
type Cart struct {
	ID        string     `json:"cart_id"`
	UserID    string     `json:"user_id"`
	Status    CartStatus `json:"status"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Total sums the line subtotals.
func (c Cart) Total() Money {
	var total Money
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

// ItemCount sums the line quantities.
func (c Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Item returns the line for productID, if present.
func (c Cart) Item(productID string) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}

// CartItem is one line of a cart. PriceAtAdd is fixed when the line is
// added or updated.
type CartItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	PriceAtAdd  Money  `json:"price_at_add"`
}

// Subtotal is quantity times the frozen price.
func (i CartItem) Subtotal() Money {
	return i.PriceAtAdd.Times(i.Quantity)
}

// Order is created at checkout. Only Status (and UpdatedAt) ever change.
type Order struct {
	ID              string      `json:"order_id"`
	UserID          string      `json:"user_id"`
	Status          OrderStatus `json:"status"`
	Total           Money       `json:"total"`
	ShippingAddress string      `json:"shipping_address"`
	Items           []OrderItem `json:"items"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Item returns the order line for productID, if present.
func (o Order) Item(productID string) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return OrderItem{}, false
}

// OrderItem is a frozen snapshot, independent of later catalog changes.
type OrderItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   Money  `json:"unit_price"`
	Subtotal    Money  `json:"subtotal"`
}

// ReturnRequest is a refund claim against a single order line.
type ReturnRequest struct {
	ID           string       `json:"return_id"`
	OrderID      string       `json:"order_id"`
	UserID       string       `json:"user_id"`
	ItemID       string       `json:"item_id"`
	Quantity     int          `json:"quantity"`
	Reason       string       `json:"reason"`
	Status       ReturnStatus `json:"status"`
	RefundAmount Money        `json:"refund_amount"`
	CreatedAt    time.Time    `json:"created_at"`
	ProcessedAt  *time.Time   `json:"processed_at,omitempty"`
}
