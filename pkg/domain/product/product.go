// Package product holds the catalogue entities and the stock line state
// machine.
package product

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/shopspring/decimal"
)

// DefaultCategory is used when a product is created without one.
const DefaultCategory = "General"

// Product is a sellable catalogue entry. Code is case-sensitive.
type Product struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// New validates the inputs and returns a Product.
func New(code, name string, price float64, category, description string) (*Product, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", domain.ErrInvalidProduct)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidProduct)
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidAmount)
	}
	if strings.TrimSpace(category) == "" {
		category = DefaultCategory
	}
	return &Product{
		Code:        code,
		Name:        name,
		Price:       price,
		Category:    strings.TrimSpace(category),
		Description: description,
	}, nil
}

// PriceWL returns the unit price floored to whole WL.
func (p Product) PriceWL() int64 {
	return decimal.NewFromFloat(p.Price).Floor().IntPart()
}

// TotalPrice returns floor(price * quantity) in WL. Totals above balance.Max
// can never be paid and are rejected as an invalid amount.
func TotalPrice(price float64, quantity int) (int64, error) {
	if quantity < 1 {
		return 0, fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidAmount)
	}
	if price < 0 {
		return 0, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidAmount)
	}
	total := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity))).Floor()
	if total.GreaterThan(decimal.NewFromInt(balance.Max)) {
		return 0, fmt.Errorf("%w: total price %s exceeds %d WL", domain.ErrInvalidAmount, total, balance.Max)
	}
	return total.IntPart(), nil
}
