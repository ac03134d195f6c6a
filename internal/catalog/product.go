// Package catalog provides the product catalog store and its query model.
package catalog

import (
	"context"
	"errors"
	"strings"
)

// StockStatus describes product availability.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockOutOfStock StockStatus = "out_of_stock"
	StockUnknown    StockStatus = "unknown"
)

// ParseStockStatus normalizes a raw availability string.
func ParseStockStatus(raw string) StockStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "in stock", "in_stock", "instock", "available":
		return StockInStock
	case "out of stock", "out_of_stock", "outofstock", "unavailable":
		return StockOutOfStock
	default:
		return StockUnknown
	}
}

// Product is a catalog entry. A product identifier may repeat across
// pack-size variants; (ID, Weight) is the unique key.
type Product struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Categories  []string    `json:"categories,omitempty"`
	Price       *float64    `json:"price,omitempty"`
	Rating      *float64    `json:"rating,omitempty"`
	Weight      string      `json:"weight,omitempty"`
	Image       string      `json:"image,omitempty"`
	Link        string      `json:"link,omitempty"`
	StockStatus StockStatus `json:"stock_status"`
	Vector      []float32   `json:"-"`
}

// Key returns the composite variant key for this product.
func (p Product) Key() string {
	if strings.TrimSpace(p.Weight) == "" {
		return p.ID
	}
	return p.ID + "_" + strings.TrimSpace(p.Weight)
}

// Passage returns the searchable text for this product, built from the
// non-empty title, description, and categories.
func (p Product) Passage() string {
	parts := make([]string, 0, 3)
	if p.Title != "" {
		parts = append(parts, p.Title)
	}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	if len(p.Categories) > 0 {
		parts = append(parts, strings.Join(p.Categories, " "))
	}
	return strings.Join(parts, " ")
}

// Hit is a scored catalog match.
type Hit struct {
	Product Product
	Score   float64
}

// ErrStoreUnavailable indicates the catalog store cannot be reached.
var ErrStoreUnavailable = errors.New("catalog store unavailable")

// ErrNotFound indicates a product is not in the catalog.
var ErrNotFound = errors.New("product not found")

// Store defines the catalog store contract.
type Store interface {
	// HybridQuery blends lexical and vector scoring. blend in [0,1]:
	// 0 is fully lexical, 1 is fully semantic.
	HybridQuery(ctx context.Context, text string, vector []float32, blend float64, cap int, pred Predicate) ([]Hit, error)

	// KeywordQuery runs a purely lexical query.
	KeywordQuery(ctx context.Context, text string, cap int, pred Predicate) ([]Hit, error)

	// GetByID returns the first variant with the given product identifier.
	GetByID(ctx context.Context, id string) (Product, error)

	// FetchAll returns up to limit products.
	FetchAll(ctx context.Context, limit int) ([]Product, error)

	// Upsert inserts or replaces products keyed by (ID, Weight).
	Upsert(ctx context.Context, products []Product) error

	// Count returns the number of stored product variants.
	Count(ctx context.Context) (int64, error)

	Close() error
}
