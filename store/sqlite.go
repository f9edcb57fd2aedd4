// Package store persists product snapshots and their subscribers in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-price-tracker/models"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Load for URLs never saved.
var ErrNotFound = errors.New("store: product not found")

const schema = `
CREATE TABLE IF NOT EXISTS products (
	url TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	scraped_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS subscribers (
	url TEXT NOT NULL,
	email TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (url, email)
);
`

// SQLite is a product store backed by a single database file.
type SQLite struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// a throwaway store.
func Open(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Load returns the stored snapshot for url.
func (s *SQLite) Load(ctx context.Context, url string) (*models.Product, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM products WHERE url = ?`, url).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", url, err)
	}

	var product models.Product
	if err := json.Unmarshal([]byte(data), &product); err != nil {
		return nil, fmt.Errorf("decode product %s: %w", url, err)
	}
	return &product, nil
}

// Save inserts or replaces the snapshot keyed by its URL.
func (s *SQLite) Save(ctx context.Context, product *models.Product) error {
	if product == nil || product.URL == "" {
		return fmt.Errorf("save product: missing url")
	}
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("encode product %s: %w", product.URL, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO products (url, data, scraped_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(url)
		 DO UPDATE SET data = excluded.data, scraped_at = excluded.scraped_at`,
		product.URL, string(data), product.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("store product %s: %w", product.URL, err)
	}
	return nil
}

// AddSubscriber registers email for url. added is false when the address was
// already subscribed.
func (s *SQLite) AddSubscriber(ctx context.Context, url, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, fmt.Errorf("add subscriber: empty email")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (url, email) VALUES (?, ?) ON CONFLICT(url, email) DO NOTHING`,
		url, email,
	)
	if err != nil {
		return false, fmt.Errorf("add subscriber for %s: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add subscriber for %s: %w", url, err)
	}
	return n > 0, nil
}

// Subscribers lists the addresses subscribed to url in subscription order.
func (s *SQLite) Subscribers(ctx context.Context, url string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT email FROM subscribers WHERE url = ? ORDER BY created_at, rowid`, url)
	if err != nil {
		return nil, fmt.Errorf("list subscribers for %s: %w", url, err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
