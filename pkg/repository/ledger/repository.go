package ledger

import (
	"context"

	"github.com/amirasaad/storefront/pkg/domain/ledger"
)

// Repository defines data access for the append-only balance journal.
type Repository interface {
	// Append inserts e and sets its ID and CreatedAt.
	Append(ctx context.Context, e *ledger.Entry) error

	// ListByHandle returns the newest entries of handle first.
	ListByHandle(ctx context.Context, handle string, limit, offset int) ([]ledger.Entry, error)

	// RenameHandle repoints every entry of oldHandle to newHandle.
	RenameHandle(ctx context.Context, oldHandle, newHandle string) (int64, error)
}
