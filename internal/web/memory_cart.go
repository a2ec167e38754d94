package web

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryCartStore keeps carts in process memory. Used for demo and local runs.
type MemoryCartStore struct {
	mutex sync.Mutex
	carts map[string]map[string]CartItem
}

// NewMemoryCartStore constructs an empty in-memory store.
func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string]map[string]CartItem)}
}

func (store *MemoryCartStore) Items(ctx context.Context, userID string) ([]CartItem, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	cart := store.carts[userID]
	items := make([]CartItem, 0, len(cart))
	for _, item := range cart {
		items = append(items, item)
	}
	sort.Slice(items, func(left, right int) bool {
		return items[left].ProductID < items[right].ProductID
	})
	return items, nil
}

func (store *MemoryCartStore) Add(ctx context.Context, userID string, item CartItem) error {
	if item.ProductID == "" {
		return fmt.Errorf("cart.memory.add: empty product id")
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()

	cart, exists := store.carts[userID]
	if !exists {
		cart = make(map[string]CartItem)
		store.carts[userID] = cart
	}
	if existing, found := cart[item.ProductID]; found {
		existing.Quantity += item.Quantity
		cart[item.ProductID] = existing
		return nil
	}
	cart[item.ProductID] = item
	return nil
}

func (store *MemoryCartStore) Remove(ctx context.Context, userID string, productID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if productID == "" {
		delete(store.carts, userID)
		return nil
	}
	delete(store.carts[userID], productID)
	return nil
}

func (store *MemoryCartStore) SetQuantity(ctx context.Context, userID string, productID string, quantity int) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	cart := store.carts[userID]
	item, found := cart[productID]
	if !found {
		return fmt.Errorf("cart.memory.set_quantity: %w", ErrCartItemNotFound)
	}
	if quantity <= 0 {
		delete(cart, productID)
		return nil
	}
	item.Quantity = quantity
	cart[productID] = item
	return nil
}
