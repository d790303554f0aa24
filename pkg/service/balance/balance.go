// Package balance provides cached balance reads and journaled balance
// mutations for storefront users.
package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/storefront/pkg/cache"
	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/events"
	"github.com/amirasaad/storefront/pkg/domain/ledger"
	"github.com/amirasaad/storefront/pkg/eventbus"
	"github.com/amirasaad/storefront/pkg/lock"
	"github.com/amirasaad/storefront/pkg/metrics"
	"github.com/amirasaad/storefront/pkg/repository"
	"golang.org/x/sync/singleflight"
)

// DefaultHistoryLimit is used when a caller asks for a non-positive limit.
const DefaultHistoryLimit = 10

// Config holds cache lifetimes and the balance lock timeout.
type Config struct {
	BalanceTTL  time.Duration
	HistoryTTL  time.Duration
	LockTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BalanceTTL:  30 * time.Second,
		HistoryTTL:  time.Minute,
		LockTimeout: 3 * time.Second,
	}
}

// Update describes one balance mutation. Deltas are per tier and may be
// negative.
type Update struct {
	Handle  string
	WL      int64
	DL      int64
	BGL     int64
	Details string
	Type    ledger.EntryType
	// ProductCode is recorded on the journal row of a purchase.
	ProductCode string
	// BypassValidation skips the affordability check; the result is then
	// clamped at zero instead of failing.
	BypassValidation bool
}

// Result is the outcome of a successful Update.
type Result struct {
	Old   balance.Balance
	New   balance.Balance
	Entry ledger.Entry
}

type cachedHistory struct {
	Limit   int            `json:"limit"`
	Entries []ledger.Entry `json:"entries"`
}

// Service provides balance reads and writes.
type Service struct {
	uow    repository.UnitOfWork
	cache  cache.Cache
	locks  *lock.Registry
	bus    eventbus.Bus
	cfg    Config
	logger *slog.Logger
	loads  singleflight.Group
}

// New creates a new balance Service.
func New(
	uow repository.UnitOfWork,
	c cache.Cache,
	locks *lock.Registry,
	bus eventbus.Bus,
	cfg Config,
	logger *slog.Logger,
) *Service {
	return &Service{uow: uow, cache: c, locks: locks, bus: bus, cfg: cfg, logger: logger}
}

// GetBalance returns the balance of handle through the cache. A missing
// user is domain.ErrBalanceNotFound.
func (s *Service) GetBalance(ctx context.Context, handle string) (balance.Balance, error) {
	var b balance.Balance
	hit, err := s.cache.Get(ctx, cache.BalanceKey(handle), &b)
	if err != nil {
		s.logger.Warn("balance cache read failed", "handle", handle, "error", err)
	}
	if hit {
		return b, nil
	}
	v, err, _ := s.loads.Do(handle, func() (any, error) {
		return s.load(ctx, handle)
	})
	if err != nil {
		return balance.Zero, err
	}
	return v.(balance.Balance), nil
}

// Refresh drops the cached balance of handle and reads it from the database.
func (s *Service) Refresh(ctx context.Context, handle string) (balance.Balance, error) {
	s.forget(ctx, cache.BalanceKey(handle))
	return s.load(ctx, handle)
}

func (s *Service) load(ctx context.Context, handle string) (balance.Balance, error) {
	repo, err := s.uow.UserRepository()
	if err != nil {
		return balance.Zero, err
	}
	u, err := repo.Get(ctx, handle)
	if errors.Is(err, domain.ErrNotFound) {
		return balance.Zero, domain.ErrBalanceNotFound
	}
	if err != nil {
		return balance.Zero, fmt.Errorf("load balance: %w", err)
	}
	normalized := balance.Normalize(u.Balance, false)
	s.logger.Debug("balance loaded",
		"handle", handle,
		"wl", u.Balance.WL, "dl", u.Balance.DL, "bgl", u.Balance.BGL,
		"normalized", normalized.Format(),
	)
	if err := s.cache.Set(ctx, cache.BalanceKey(handle), normalized, s.cfg.BalanceTTL, false); err != nil {
		s.logger.Warn("balance cache write failed", "handle", handle, "error", err)
	}
	return normalized, nil
}

// UpdateBalance applies u under the balance lock of its handle and appends
// one journal entry in the same database transaction.
func (s *Service) UpdateBalance(ctx context.Context, u Update) (res Result, err error) {
	delta, inRange := balance.DeltaWL(u.WL, u.DL, u.BGL)
	logger := s.logger.With(
		"handle", u.Handle,
		"type", u.Type,
		"delta_wl", delta,
	)
	logger.Info("UpdateBalance started")
	defer func() {
		metrics.RecordBalanceUpdate(string(u.Type), domain.Code(err))
	}()

	if !u.Type.Valid() {
		return Result{}, fmt.Errorf("update balance: %w: unknown entry type %q", domain.ErrInvalidAmount, u.Type)
	}
	if !inRange {
		logger.Warn("UpdateBalance rejected: delta out of range", "wl", u.WL, "dl", u.DL, "bgl", u.BGL)
		return Result{}, fmt.Errorf("update balance: %w: delta out of range", domain.ErrInvalidAmount)
	}

	err = s.locks.With(ctx, lock.BalanceUpdate(u.Handle), s.cfg.LockTimeout, func() error {
		cached, err := s.GetBalance(ctx, u.Handle)
		if err != nil {
			return err
		}
		return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			res, err = s.apply(ctx, uow, u, cached, logger)
			return err
		})
	})
	if err != nil {
		err = classify(err)
		logger.Error("UpdateBalance failed", "error", err)
		s.emit(ctx, events.Error{
			Meta:      events.NewMeta(),
			Operation: "update_balance",
			Subject:   u.Handle,
			Code:      domain.Code(err),
			Err:       err,
		})
		return Result{}, err
	}

	s.forget(ctx, cache.BalanceKey(u.Handle))
	s.forget(ctx, cache.HistoryKey(u.Handle))
	if err := s.cache.Set(ctx, cache.BalanceKey(u.Handle), res.New, s.cfg.BalanceTTL, false); err != nil {
		logger.Warn("balance cache write failed", "error", err)
	}
	s.emit(ctx, events.BalanceUpdated{
		Meta:       events.NewMeta(),
		Handle:     u.Handle,
		EntryType:  u.Type,
		OldBalance: res.Old,
		NewBalance: res.New,
		Details:    u.Details,
	})
	logger.Info("UpdateBalance successful", "old", res.Old.Format(), "new", res.New.Format())
	return res, nil
}

func (s *Service) apply(
	ctx context.Context,
	uow repository.UnitOfWork,
	u Update,
	cached balance.Balance,
	logger *slog.Logger,
) (Result, error) {
	users, err := uow.UserRepository()
	if err != nil {
		return Result{}, err
	}
	journal, err := uow.LedgerRepository()
	if err != nil {
		return Result{}, err
	}

	row, err := users.Get(ctx, u.Handle)
	if errors.Is(err, domain.ErrNotFound) {
		return Result{}, domain.ErrBalanceNotFound
	}
	if err != nil {
		return Result{}, err
	}
	current := balance.Normalize(row.Balance, false)
	if current != cached {
		logger.Warn("cached balance disagreed with database",
			"cached", cached.Format(), "database", current.Format())
		metrics.RecordBalanceDrift()
	}

	if !current.Valid() {
		return Result{}, fmt.Errorf("update balance: %w: stored balance %s out of range", domain.ErrInvalidAmount, current.Format())
	}
	next, ok := balance.ApplyDelta(current, u.WL, u.DL, u.BGL)
	if !ok && !u.BypassValidation {
		delta, _ := balance.DeltaWL(u.WL, u.DL, u.BGL)
		need := -delta
		return Result{}, &domain.ShortfallError{
			Have: current.Format(),
			Need: balance.Normalize(balance.Balance{WL: need}, false).Format(),
		}
	}

	if err := users.UpdateBalance(ctx, u.Handle, next); err != nil {
		return Result{}, err
	}
	entry := ledger.Entry{
		Handle:      u.Handle,
		Type:        u.Type,
		Details:     u.Details,
		ProductCode: u.ProductCode,
		OldBalance:  current.Format(),
		NewBalance:  next.Format(),
	}
	if err := journal.Append(ctx, &entry); err != nil {
		return Result{}, err
	}
	return Result{Old: current, New: next, Entry: entry}, nil
}

// GetTransactionHistory returns the newest journal entries of handle,
// cached per handle.
func (s *Service) GetTransactionHistory(ctx context.Context, handle string, limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var cached cachedHistory
	if hit, _ := s.cache.Get(ctx, cache.HistoryKey(handle), &cached); hit && cached.Limit >= limit {
		return cached.Entries[:min(limit, len(cached.Entries))], nil
	}
	entries, err := s.History(ctx, handle, limit, 0)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cache.HistoryKey(handle),
		cachedHistory{Limit: limit, Entries: entries}, s.cfg.HistoryTTL, false); err != nil {
		s.logger.Warn("history cache write failed", "handle", handle, "error", err)
	}
	return entries, nil
}

// History reads a page of the journal of handle without caching.
func (s *Service) History(ctx context.Context, handle string, limit, offset int) ([]ledger.Entry, error) {
	repo, err := s.uow.LedgerRepository()
	if err != nil {
		return nil, err
	}
	entries, err := repo.ListByHandle(ctx, handle, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return entries, nil
}

func (s *Service) emit(ctx context.Context, e events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Emit(ctx, e); err != nil {
		s.logger.Warn("event emit failed", "event", e.Type(), "error", err)
	}
}

func (s *Service) forget(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("cache invalidation failed", "key", key, "error", err)
	}
}

// classify keeps the known balance error kinds and wraps anything else as
// domain.ErrTransaction.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrLockFailed),
		errors.Is(err, domain.ErrInsufficient),
		errors.Is(err, domain.ErrBalanceNotFound),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrDatabase):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrTransaction, err)
	}
}
