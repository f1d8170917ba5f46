package shop

import (
	"time"

	"github.com/retroryan/shopledger/internal/cart"
	"github.com/retroryan/shopledger/internal/model"
)

// CartLine is a cart item with its computed subtotal.
type CartLine struct {
	model.CartItem
	Subtotal model.Money `json:"subtotal"`
}

// CartView is the payload returned for cart reads and mutations.
type CartView struct {
	CartID    string           `json:"cart_id,omitempty"`
	UserID    string           `json:"user_id"`
	Status    model.CartStatus `json:"status"`
	Items     []CartLine       `json:"items"`
	ItemCount int              `json:"item_count"`
	Total     model.Money      `json:"total"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
}

// ChangeView adds the mutation summary to a cart view.
type ChangeView struct {
	Cart        CartView `json:"cart"`
	ProductID   string   `json:"product_id,omitempty"`
	Quantity    int      `json:"quantity"`
	Released    int      `json:"released,omitempty"`
	LineRemoved bool     `json:"line_removed,omitempty"`
}

func cartView(c model.Cart) CartView {
	v := CartView{
		CartID:    c.ID,
		UserID:    c.UserID,
		Status:    c.Status,
		Items:     make([]CartLine, 0, len(c.Items)),
		ItemCount: c.ItemCount(),
		Total:     c.Total(),
	}
	for _, it := range c.Items {
		v.Items = append(v.Items, CartLine{CartItem: it, Subtotal: it.Subtotal()})
	}
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		v.UpdatedAt = &t
	}
	return v
}

func changeView(ch cart.Change) ChangeView {
	return ChangeView{
		Cart:        cartView(ch.Cart),
		ProductID:   ch.ProductID,
		Quantity:    ch.Quantity,
		Released:    ch.Released,
		LineRemoved: ch.LineRemoved,
	}
}
