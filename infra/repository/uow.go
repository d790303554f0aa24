package repository

import (
	"context"

	"github.com/amirasaad/storefront/pkg/repository"
	"github.com/amirasaad/storefront/pkg/repository/ledger"
	"github.com/amirasaad/storefront/pkg/repository/product"
	"github.com/amirasaad/storefront/pkg/repository/settings"
	"github.com/amirasaad/storefront/pkg/repository/transaction"
	"github.com/amirasaad/storefront/pkg/repository/user"
	"gorm.io/gorm"
)

// TxRunner opens a transaction span. The storage gateway satisfies it and
// retries the span on transient lock errors.
type TxRunner interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// UoW provides transaction boundary and repository access in one abstraction.
// All repositories handed out inside Do share the same transaction session.
type UoW struct {
	db     *gorm.DB
	tx     *gorm.DB
	runner TxRunner
}

// NewUoW creates a new UoW for the given *gorm.DB. A nil runner uses
// db.Transaction directly.
func NewUoW(db *gorm.DB, runner TxRunner) *UoW {
	return &UoW{db: db, runner: runner}
}

// Do runs the given function in a transaction boundary, providing a UoW with repository access.
// Nested calls reuse the outer transaction.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	body := func(tx *gorm.DB) error {
		return fn(&UoW{db: u.db, tx: tx, runner: u.runner})
	}
	if u.runner != nil {
		return translate(u.runner.Transaction(ctx, body))
	}
	return translate(u.db.WithContext(ctx).Transaction(body))
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UoW) UserRepository() (user.Repository, error) {
	return NewUserRepository(u.session()), nil
}

func (u *UoW) ProductRepository() (product.Repository, error) {
	return NewProductRepository(u.session()), nil
}

func (u *UoW) LedgerRepository() (ledger.Repository, error) {
	return NewLedgerRepository(u.session()), nil
}

func (u *UoW) TransactionRepository() (transaction.Repository, error) {
	return NewTransactionRepository(u.session()), nil
}

func (u *UoW) SettingsRepository() (settings.Repository, error) {
	return NewSettingsRepository(u.session()), nil
}

var _ repository.UnitOfWork = (*UoW)(nil)
