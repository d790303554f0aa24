// Package transaction orchestrates purchases, deposits and withdrawals
// across identity, catalogue, stock and balance.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/events"
	"github.com/amirasaad/storefront/pkg/domain/ledger"
	"github.com/amirasaad/storefront/pkg/domain/product"
	"github.com/amirasaad/storefront/pkg/eventbus"
	"github.com/amirasaad/storefront/pkg/lock"
	"github.com/amirasaad/storefront/pkg/repository"
	balancesvc "github.com/amirasaad/storefront/pkg/service/balance"
)

// Identity resolves platform user ids to handles.
type Identity interface {
	GetHandle(ctx context.Context, platformUserID string) (string, error)
}

// Balances reads and mutates user balances.
type Balances interface {
	GetBalance(ctx context.Context, handle string) (balance.Balance, error)
	Refresh(ctx context.Context, handle string) (balance.Balance, error)
	UpdateBalance(ctx context.Context, u balancesvc.Update) (balancesvc.Result, error)
	History(ctx context.Context, handle string, limit, offset int) ([]ledger.Entry, error)
}

// Catalog reads products and moves stock lines.
type Catalog interface {
	GetProduct(ctx context.Context, code string) (*product.Product, error)
	GetAllProducts(ctx context.Context) ([]product.Product, error)
	GetAvailableStock(ctx context.Context, code string, n int) ([]product.StockLine, error)
	GetStockLines(ctx context.Context, ids []int64) ([]product.StockLine, error)
	UpdateStockStatus(
		ctx context.Context,
		code string,
		ids []int64,
		status product.StockStatus,
		buyer *string,
	) (int64, error)
}

// Admin provides the maintenance flag, permissions and the audit log.
type Admin interface {
	IsMaintenanceMode(ctx context.Context) (bool, error)
	CheckPermission(platformUserID, permission string) error
	LogAction(ctx context.Context, adminID, action, target, details string) error
}

// Config holds the engine lock timeout.
type Config struct {
	PurchaseLockTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{PurchaseLockTimeout: 3 * time.Second}
}

// Service is the transaction engine.
type Service struct {
	uow      repository.UnitOfWork
	identity Identity
	balances Balances
	catalog  Catalog
	admin    Admin
	locks    *lock.Registry
	bus      eventbus.Bus
	cfg      Config
	logger   *slog.Logger
}

// Deps groups the collaborators of the engine.
type Deps struct {
	Uow      repository.UnitOfWork
	Identity Identity
	Balances Balances
	Catalog  Catalog
	Admin    Admin
	Locks    *lock.Registry
	Bus      eventbus.Bus
	Logger   *slog.Logger
}

// New creates a new transaction engine.
func New(deps Deps, cfg Config) *Service {
	return &Service{
		uow:      deps.Uow,
		identity: deps.Identity,
		balances: deps.Balances,
		catalog:  deps.Catalog,
		admin:    deps.Admin,
		locks:    deps.Locks,
		bus:      deps.Bus,
		cfg:      cfg,
		logger:   deps.Logger,
	}
}

// ensureOpen fails with domain.ErrMaintenanceMode while the store is closed.
func (s *Service) ensureOpen(ctx context.Context) error {
	on, err := s.admin.IsMaintenanceMode(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	if on {
		return domain.ErrMaintenanceMode
	}
	return nil
}

// affordable re-checks a failed affordability test against a fresh
// database read before giving up.
func (s *Service) affordable(
	ctx context.Context,
	handle string,
	current balance.Balance,
	cost int64,
	logger *slog.Logger,
) (balance.Balance, error) {
	if current.CanAfford(cost) {
		return current, nil
	}
	fresh, err := s.balances.Refresh(ctx, handle)
	if err != nil {
		return balance.Zero, err
	}
	if fresh.CanAfford(cost) {
		logger.Warn("affordability recovered after refresh",
			"cached", current.Format(), "fresh", fresh.Format(), "cost", cost)
		return fresh, nil
	}
	manual := fresh.WL + fresh.DL*balance.WLPerDL + fresh.BGL*balance.WLPerBGL
	if manual >= cost {
		logger.Error("balance object rejected an affordable cost",
			"manual_total", manual, "cost", cost)
		return fresh, nil
	}
	return balance.Zero, &domain.ShortfallError{
		Have: fresh.Format(),
		Need: balance.FormatPrice(cost),
	}
}

func (s *Service) record(ctx context.Context, tx *ledger.Transaction) {
	repo, err := s.uow.TransactionRepository()
	if err == nil {
		err = repo.Create(ctx, tx)
	}
	if err != nil {
		s.logger.Error("transaction record write failed",
			"buyer_id", tx.BuyerID, "type", tx.Type, "status", tx.Status, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, e events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Emit(ctx, e); err != nil {
		s.logger.Warn("event emit failed", "event", e.Type(), "error", err)
	}
}

func (s *Service) failed(ctx context.Context, kind ledger.EntryType, buyerID string, err error) {
	s.emit(ctx, events.TransactionFailed{
		Meta:    events.NewMeta(),
		Kind:    kind,
		BuyerID: buyerID,
		Code:    domain.Code(err),
		Reason:  domain.Message(err),
	})
}

// known reports whether err already belongs to the storefront taxonomy.
func known(err error) bool {
	for _, k := range []error{
		domain.ErrNotRegistered, domain.ErrProductNotFound, domain.ErrInvalidAmount,
		domain.ErrOutOfStock, domain.ErrInsufficient, domain.ErrBalanceNotFound,
		domain.ErrLockFailed, domain.ErrMaintenanceMode, domain.ErrPermissionDenied,
		domain.ErrDatabase, domain.ErrTransaction,
	} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

func classify(err error) error {
	if known(err) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrTransaction, err)
}
