// Package sqlite stores the catalog and the cart in a SQLite database using
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chriscow/voicemart/pkg/cart"
	"github.com/chriscow/voicemart/pkg/catalog"
)

// Store is a SQLite implementation of catalog.Source and cart.Cart.
type Store struct {
	db *sql.DB
}

var (
	_ catalog.Source = (*Store)(nil)
	_ cart.Cart      = (*Store)(nil)
)

// New opens (creating if needed) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Cart merges are read-modify-write; one connection keeps them serialized
	// and keeps in-memory databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			category_id TEXT NOT NULL,
			name TEXT NOT NULL,
			short_description TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL,
			position INTEGER NOT NULL,
			FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS cart_items (
			product_id TEXT PRIMARY KEY,
			category_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			short_description TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL,
			quantity INTEGER NOT NULL,
			added_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id, position)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot reads the whole catalog in display order.
func (s *Store) Snapshot(ctx context.Context) (catalog.Snapshot, error) {
	snap := catalog.Snapshot{Products: make(map[string][]catalog.Product)}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description FROM categories ORDER BY position, id`)
	if err != nil {
		return snap, fmt.Errorf("failed to query categories: %w", err)
	}
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			rows.Close()
			return snap, fmt.Errorf("failed to scan category: %w", err)
		}
		snap.Categories = append(snap.Categories, c)
	}
	if err := rows.Close(); err != nil {
		return snap, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, category_id, name, short_description, image_url, price
		FROM products ORDER BY position, id`)
	if err != nil {
		return snap, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.ShortDescription, &p.ImageURL, &p.Price); err != nil {
			return snap, fmt.Errorf("failed to scan product: %w", err)
		}
		snap.Products[p.CategoryID] = append(snap.Products[p.CategoryID], p)
	}

	return snap, rows.Err()
}

// Product returns one product by ID.
func (s *Store) Product(ctx context.Context, id string) (catalog.Product, error) {
	var p catalog.Product
	err := s.db.QueryRowContext(ctx, `SELECT id, category_id, name, short_description, image_url, price
		FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.CategoryID, &p.Name, &p.ShortDescription, &p.ImageURL, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("product %q: %w", id, catalog.ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// Seed replaces the catalog with snap, keeping its ordering. The cart is left
// alone.
func (s *Store) Seed(ctx context.Context, snap catalog.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("failed to clear products: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}

	for i, c := range snap.Categories {
		if _, err := tx.ExecContext(ctx, `INSERT INTO categories (id, name, description, position) VALUES (?, ?, ?, ?)`,
			c.ID, c.Name, c.Description, i); err != nil {
			return fmt.Errorf("failed to insert category %q: %w", c.ID, err)
		}
		for j, p := range snap.Products[c.ID] {
			if _, err := tx.ExecContext(ctx, `INSERT INTO products
				(id, category_id, name, short_description, image_url, price, position)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				p.ID, c.ID, p.Name, p.ShortDescription, p.ImageURL, p.Price, j); err != nil {
				return fmt.Errorf("failed to insert product %q: %w", p.ID, err)
			}
		}
	}

	return tx.Commit()
}

// Empty reports whether the catalog has no categories.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to count categories: %w", err)
	}
	return n == 0, nil
}

// SeedIfEmpty seeds snap only into an empty catalog and reports whether it did.
func (s *Store) SeedIfEmpty(ctx context.Context, snap catalog.Snapshot) (bool, error) {
	empty, err := s.Empty(ctx)
	if err != nil || !empty {
		return false, err
	}
	return true, s.Seed(ctx, snap)
}

// Add merges qty of p into the cart.
func (s *Store) Add(ctx context.Context, p catalog.Product, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("add %q: %w", p.ID, cart.ErrInvalidQuantity)
	}

	query := `INSERT INTO cart_items
		(product_id, category_id, name, short_description, image_url, price, quantity, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET quantity = quantity + excluded.quantity`
	if _, err := s.db.ExecContext(ctx, query,
		p.ID, p.CategoryID, p.Name, p.ShortDescription, p.ImageURL, p.Price, qty, time.Now()); err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, productID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE product_id = ?`, productID); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

func (s *Store) UpdateQuantity(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, productID)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE cart_items SET quantity = ? WHERE product_id = ?`, qty, productID)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update %q: %w", productID, catalog.ErrNotFound)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_items`); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Items returns cart lines in the order they were first added.
func (s *Store) Items(ctx context.Context) ([]cart.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT product_id, category_id, name, short_description, image_url, price, quantity
		FROM cart_items ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	defer rows.Close()

	var items []cart.Item
	for rows.Next() {
		var it cart.Item
		p := &it.Product
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.ShortDescription, &p.ImageURL, &p.Price, &it.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
