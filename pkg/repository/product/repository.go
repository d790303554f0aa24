package product

import (
	"context"

	"github.com/amirasaad/storefront/pkg/domain/product"
)

// Repository defines data access for products and their stock lines.
type Repository interface {
	// Create inserts a product; a duplicate code is domain.ErrAlreadyExists.
	Create(ctx context.Context, p *product.Product) error

	// Get returns the product or domain.ErrNotFound.
	Get(ctx context.Context, code string) (*product.Product, error)

	// List returns every product ordered by category then code.
	List(ctx context.Context) ([]product.Product, error)

	// AddStockLine inserts one AVAILABLE line. Duplicate content is
	// domain.ErrAlreadyExists.
	AddStockLine(ctx context.Context, code, content, addedBy string) error

	// CountAvailable returns the number of AVAILABLE lines of code.
	CountAvailable(ctx context.Context, code string) (int64, error)

	// Available returns up to n AVAILABLE lines, oldest first.
	Available(ctx context.Context, code string, n int) ([]product.StockLine, error)

	// TransitionStock moves the given lines of code from one status to
	// another, setting buyer, and returns how many rows changed.
	TransitionStock(
		ctx context.Context,
		code string,
		ids []int64,
		from, to product.StockStatus,
		buyer *string,
	) (int64, error)

	// StockByIDs returns the given lines in id order.
	StockByIDs(ctx context.Context, ids []int64) ([]product.StockLine, error)
}
