// Package partners owns the supplier and customer directories used to
// validate movement counterparties.
package partners

import "time"

// Role distinguishes the two partner directories.
type Role string

const (
	// RoleSupplier marks receipt counterparties.
	RoleSupplier Role = "SUPPLIER"
	// RoleCustomer marks issue counterparties.
	RoleCustomer Role = "CUSTOMER"
)

// Partner represents a supplier or customer entity.
type Partner struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
