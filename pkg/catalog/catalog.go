// Package catalog models the storefront's categories and products as the
// voice core sees them: a read-only snapshot taken per command.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a product or category does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Category groups products.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Product is a purchasable item.
type Product struct {
	ID               string  `json:"id"`
	CategoryID       string  `json:"categoryId"`
	Name             string  `json:"name"`
	ShortDescription string  `json:"shortDescription,omitempty"`
	ImageURL         string  `json:"imageUrl,omitempty"`
	Price            float64 `json:"price"`
}

// Snapshot is the catalog at one point in time. Categories are ordered and
// each category's products are ordered; that order decides resolver ties.
type Snapshot struct {
	Categories []Category           `json:"categories"`
	Products   map[string][]Product `json:"products"`
}

// Each visits every product in category order, then product order, until fn
// returns false.
func (s Snapshot) Each(fn func(Product) bool) {
	for _, c := range s.Categories {
		for _, p := range s.Products[c.ID] {
			if !fn(p) {
				return
			}
		}
	}
}

// Find returns the product with the given ID.
func (s Snapshot) Find(id string) (Product, bool) {
	var found Product
	ok := false
	if id == "" {
		return found, false
	}
	s.Each(func(p Product) bool {
		if p.ID == id {
			found, ok = p, true
			return false
		}
		return true
	})
	return found, ok
}

// Len is the number of products reachable through Categories.
func (s Snapshot) Len() int {
	n := 0
	for _, c := range s.Categories {
		n += len(s.Products[c.ID])
	}
	return n
}

// Source provides the current catalog. Implementations must return data the
// caller may keep; the voice core takes a fresh snapshot for every command.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Finder is implemented by sources that can fetch one product without
// reading the whole catalog.
type Finder interface {
	Product(ctx context.Context, id string) (Product, error)
}

// Lookup returns the product with the given ID, using src's Finder when it
// has one. A missing product is ErrNotFound.
func Lookup(ctx context.Context, src Source, id string) (Product, error) {
	if f, ok := src.(Finder); ok {
		return f.Product(ctx, id)
	}
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return Product{}, err
	}
	p, ok := snap.Find(id)
	if !ok {
		return Product{}, fmt.Errorf("product %q: %w", id, ErrNotFound)
	}
	return p, nil
}

// Memory is an in-process Source whose contents can be swapped at runtime.
type Memory struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewMemory creates a source holding snap.
func NewMemory(snap Snapshot) *Memory {
	m := &Memory{}
	m.Replace(snap)
	return m
}

// Replace swaps the catalog contents.
func (m *Memory) Replace(snap Snapshot) {
	c := clone(snap)
	m.mu.Lock()
	m.snap = c
	m.mu.Unlock()
}

// Snapshot returns a copy of the current catalog.
func (m *Memory) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.snap), nil
}

func clone(s Snapshot) Snapshot {
	out := Snapshot{
		Categories: append([]Category(nil), s.Categories...),
		Products:   make(map[string][]Product, len(s.Products)),
	}
	for k, v := range s.Products {
		out.Products[k] = append([]Product(nil), v...)
	}
	return out
}
