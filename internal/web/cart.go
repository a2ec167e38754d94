package web

import (
	"context"
	"errors"
)

// ErrCartItemNotFound is returned when a line item is missing from the cart.
var ErrCartItemNotFound = errors.New("cart.item_not_found")

// CartItem is one line in a user's cart.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// CartStore keeps per-user carts. Implementations must be safe for concurrent
// use; every method is scoped to a single user.
type CartStore interface {
	// Items lists the cart's line items. An empty cart is an empty slice.
	Items(ctx context.Context, userID string) ([]CartItem, error)
	// Add merges an item into the cart, incrementing the quantity of an
	// existing line for the same product.
	Add(ctx context.Context, userID string, item CartItem) error
	// Remove deletes one line, or the whole cart when productID is empty.
	Remove(ctx context.Context, userID string, productID string) error
	// SetQuantity replaces a line's quantity; zero or less deletes the line.
	// Returns ErrCartItemNotFound for a product not in the cart.
	SetQuantity(ctx context.Context, userID string, productID string, quantity int) error
}
