package transaction

import (
	"context"

	"github.com/amirasaad/storefront/pkg/domain/ledger"
)

// Repository defines data access for purchase/deposit/withdrawal records.
type Repository interface {
	// Create inserts tx and sets its ID and timestamps.
	Create(ctx context.Context, tx *ledger.Transaction) error

	// ListByBuyer returns the newest records of buyerID first.
	ListByBuyer(ctx context.Context, buyerID string, limit int) ([]ledger.Transaction, error)
}
