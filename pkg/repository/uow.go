package repository

import (
	"context"

	"github.com/amirasaad/storefront/pkg/repository/ledger"
	"github.com/amirasaad/storefront/pkg/repository/product"
	"github.com/amirasaad/storefront/pkg/repository/settings"
	"github.com/amirasaad/storefront/pkg/repository/transaction"
	"github.com/amirasaad/storefront/pkg/repository/user"
)

// UnitOfWork defines the contract for transactional work and type-safe
// repository access. Repositories obtained inside Do share the transaction;
// outside Do they run against the plain handle.
type UnitOfWork interface {
	// Do executes the given function within a transaction boundary.
	// If the function returns an error, the transaction is rolled back.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	UserRepository() (user.Repository, error)
	ProductRepository() (product.Repository, error)
	LedgerRepository() (ledger.Repository, error)
	TransactionRepository() (transaction.Repository, error)
	SettingsRepository() (settings.Repository, error)
}
