// Package cart holds the shopping cart the voice core adds to.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chriscow/voicemart/pkg/catalog"
)

// ErrInvalidQuantity is returned for additions of zero or fewer items.
var ErrInvalidQuantity = errors.New("cart: quantity must be positive")

// Item is one cart line.
type Item struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// Adder is the only cart operation the voice core needs.
type Adder interface {
	// Add puts qty of p in the cart, merging with an existing line.
	Add(ctx context.Context, p catalog.Product, qty int) error
}

// Cart is the full cart the host works with.
type Cart interface {
	Adder
	Remove(ctx context.Context, productID string) error
	// UpdateQuantity sets a line's quantity; zero or less removes the line.
	UpdateQuantity(ctx context.Context, productID string, qty int) error
	Clear(ctx context.Context) error
	Items(ctx context.Context) ([]Item, error)
}

// Totals returns the number of units and the total price of items.
func Totals(items []Item) (count int, price float64) {
	for _, it := range items {
		count += it.Quantity
		price += it.Product.Price * float64(it.Quantity)
	}
	return count, price
}

// Memory is an in-process Cart. Lines keep insertion order.
type Memory struct {
	mu    sync.Mutex
	items []Item
}

// NewMemory creates an empty cart.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Add(ctx context.Context, p catalog.Product, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("add %q: %w", p.ID, ErrInvalidQuantity)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].Product.ID == p.ID {
			m.items[i].Quantity += qty
			return nil
		}
	}
	m.items = append(m.items, Item{Product: p, Quantity: qty})
	return nil
}

func (m *Memory) Remove(ctx context.Context, productID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(productID)
	return nil
}

func (m *Memory) UpdateQuantity(ctx context.Context, productID string, qty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if qty <= 0 {
		m.remove(productID)
		return nil
	}
	for i := range m.items {
		if m.items[i].Product.ID == productID {
			m.items[i].Quantity = qty
			return nil
		}
	}
	return fmt.Errorf("update %q: %w", productID, catalog.ErrNotFound)
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) Items(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.items...), nil
}

func (m *Memory) remove(productID string) {
	out := m.items[:0]
	for _, it := range m.items {
		if it.Product.ID != productID {
			out = append(out, it)
		}
	}
	m.items = out
}
