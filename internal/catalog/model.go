// Package catalog owns the product master data referenced by the ledger.
// Product.Quantity is a derived aggregate: it is mutated exclusively by the
// ledger's quantity guard and never written through this package.
package catalog

import "time"

// Product represents a product entity.
type Product struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Unit        string    `json:"unit"`
	Quantity    int64     `json:"quantity"`
	MinStock    int64     `json:"min_stock"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	IsActive *bool
	LowStock bool
}
