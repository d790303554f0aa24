// Package user binds chat-platform user ids to in-game handles (GrowIDs).
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/storefront/pkg/cache"
	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/user"
	"github.com/amirasaad/storefront/pkg/lock"
	"github.com/amirasaad/storefront/pkg/repository"
)

// Config holds the identity cache lifetime and lock timeout.
type Config struct {
	HandleTTL   time.Duration
	LockTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{HandleTTL: time.Hour, LockTimeout: 3 * time.Second}
}

// Maintenance reports whether the store is closed for maintenance.
type Maintenance interface {
	IsMaintenanceMode(ctx context.Context) (bool, error)
}

// Service provides registration and handle lookups.
type Service struct {
	uow    repository.UnitOfWork
	cache  cache.Cache
	locks  *lock.Registry
	maint  Maintenance
	cfg    Config
	logger *slog.Logger
}

// New creates a new identity Service.
func New(
	uow repository.UnitOfWork,
	c cache.Cache,
	locks *lock.Registry,
	maint Maintenance,
	cfg Config,
	logger *slog.Logger,
) *Service {
	return &Service{uow: uow, cache: c, locks: locks, maint: maint, cfg: cfg, logger: logger}
}

// ensureOpen fails with domain.ErrMaintenanceMode while the store is closed.
// Lookups stay available; only the mutators call it.
func (s *Service) ensureOpen(ctx context.Context) error {
	on, err := s.maint.IsMaintenanceMode(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	if on {
		return domain.ErrMaintenanceMode
	}
	return nil
}

// GetHandle returns the handle bound to platformUserID or
// domain.ErrNotRegistered.
func (s *Service) GetHandle(ctx context.Context, platformUserID string) (string, error) {
	var handle string
	if hit, _ := s.cache.Get(ctx, cache.HandleKey(platformUserID), &handle); hit {
		return handle, nil
	}
	repo, err := s.uow.UserRepository()
	if err != nil {
		return "", err
	}
	link, err := repo.GetLink(ctx, platformUserID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrNotRegistered
	}
	if err != nil {
		return "", fmt.Errorf("get handle: %w", err)
	}
	s.remember(ctx, platformUserID, link.Handle)
	return link.Handle, nil
}

// GetPlatformID returns the platform user id bound to handle or
// domain.ErrNotRegistered.
func (s *Service) GetPlatformID(ctx context.Context, handle string) (string, error) {
	var pid string
	if hit, _ := s.cache.Get(ctx, cache.PlatformIDKey(handle), &pid); hit {
		return pid, nil
	}
	repo, err := s.uow.UserRepository()
	if err != nil {
		return "", err
	}
	link, err := repo.GetLinkByHandle(ctx, handle)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrNotRegistered
	}
	if err != nil {
		return "", fmt.Errorf("get platform id: %w", err)
	}
	s.remember(ctx, link.PlatformUserID, handle)
	return link.PlatformUserID, nil
}

// Register binds platformUserID to handle, creating a zero-balance user when
// the handle is new. Re-registering the same pair is a no-op.
func (s *Service) Register(ctx context.Context, platformUserID, handle string) (string, error) {
	logger := s.logger.With("platform_user_id", platformUserID, "handle", handle)
	logger.Info("Register started")

	if err := s.ensureOpen(ctx); err != nil {
		logger.Warn("Register rejected", "error", err)
		return "", err
	}
	handle, err := user.NormalizeHandle(handle)
	if err != nil {
		logger.Warn("Register failed: invalid handle")
		return "", err
	}

	var previous string
	err = s.locks.With(ctx, lock.Register(platformUserID), s.cfg.LockTimeout, func() error {
		return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			repo, err := uow.UserRepository()
			if err != nil {
				return err
			}
			if err := ensureHandleFree(ctx, repo, platformUserID, handle); err != nil {
				return err
			}
			if link, err := repo.GetLink(ctx, platformUserID); err == nil {
				previous = link.Handle
			} else if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if err := repo.EnsureUser(ctx, handle); err != nil {
				return err
			}
			return repo.UpsertLink(ctx, platformUserID, handle)
		})
	})
	if err != nil {
		logger.Error("Register failed", "error", err)
		return "", s.wrap("register", err)
	}

	if previous != "" && previous != handle {
		s.forget(ctx, cache.PlatformIDKey(previous))
	}
	s.remember(ctx, platformUserID, handle)
	s.forget(ctx, cache.BalanceKey(handle))
	logger.Info("Register successful")
	return handle, nil
}

// UpdateHandle moves platformUserID, its balance and its journal to
// newHandle. The old user row is removed once nothing references it.
func (s *Service) UpdateHandle(ctx context.Context, platformUserID, newHandle string) (string, error) {
	logger := s.logger.With("platform_user_id", platformUserID, "new_handle", newHandle)
	logger.Info("UpdateHandle started")

	if err := s.ensureOpen(ctx); err != nil {
		logger.Warn("UpdateHandle rejected", "error", err)
		return "", err
	}
	newHandle, err := user.NormalizeHandle(newHandle)
	if err != nil {
		logger.Warn("UpdateHandle failed: invalid handle")
		return "", err
	}

	var oldHandle string
	err = s.locks.With(ctx, lock.Register(platformUserID), s.cfg.LockTimeout, func() error {
		old, err := s.GetHandle(ctx, platformUserID)
		if err != nil {
			return err
		}
		oldHandle = old
		// Balance writers of the old handle must not interleave with the move.
		return s.locks.With(ctx, lock.BalanceUpdate(old), s.cfg.LockTimeout, func() error {
			return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
				return s.moveHandle(ctx, uow, platformUserID, old, newHandle)
			})
		})
	})
	if err != nil {
		logger.Error("UpdateHandle failed", "error", err)
		return "", s.wrap("update handle", err)
	}

	for _, h := range []string{oldHandle, newHandle} {
		s.forget(ctx, cache.PlatformIDKey(h))
		s.forget(ctx, cache.BalanceKey(h))
		s.forget(ctx, cache.HistoryKey(h))
	}
	s.forget(ctx, cache.HandleKey(platformUserID))
	s.remember(ctx, platformUserID, newHandle)
	logger.Info("UpdateHandle successful", "old_handle", oldHandle)
	return newHandle, nil
}

func (s *Service) moveHandle(
	ctx context.Context,
	uow repository.UnitOfWork,
	platformUserID, oldHandle, newHandle string,
) error {
	users, err := uow.UserRepository()
	if err != nil {
		return err
	}
	journal, err := uow.LedgerRepository()
	if err != nil {
		return err
	}
	if err := ensureHandleFree(ctx, users, platformUserID, newHandle); err != nil {
		return err
	}

	current := balance.Zero
	old, err := users.Get(ctx, oldHandle)
	switch {
	case err == nil:
		current = old.Balance
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}
	if err := users.UpsertUser(ctx, newHandle, current); err != nil {
		return err
	}
	if err := users.UpsertLink(ctx, platformUserID, newHandle); err != nil {
		return err
	}
	if oldHandle == newHandle {
		return nil
	}
	if _, err := journal.RenameHandle(ctx, oldHandle, newHandle); err != nil {
		return err
	}
	if err := users.Delete(ctx, oldHandle); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

type linkReader interface {
	GetLinkByHandle(ctx context.Context, handle string) (*user.HandleLink, error)
}

func ensureHandleFree(ctx context.Context, repo linkReader, platformUserID, handle string) error {
	link, err := repo.GetLinkByHandle(ctx, handle)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if link.PlatformUserID != platformUserID {
		return domain.ErrHandleExists
	}
	return nil
}

func (s *Service) remember(ctx context.Context, platformUserID, handle string) {
	if err := s.cache.Set(ctx, cache.HandleKey(platformUserID), handle, s.cfg.HandleTTL, false); err != nil {
		s.logger.Warn("handle cache write failed", "platform_user_id", platformUserID, "error", err)
	}
	if err := s.cache.Set(ctx, cache.PlatformIDKey(handle), platformUserID, s.cfg.HandleTTL, false); err != nil {
		s.logger.Warn("platform id cache write failed", "handle", handle, "error", err)
	}
}

func (s *Service) forget(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("cache invalidation failed", "key", key, "error", err)
	}
}

// wrap keeps known error kinds and folds the rest into ErrTransaction.
func (s *Service) wrap(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrHandleExists),
		errors.Is(err, domain.ErrNotRegistered),
		errors.Is(err, domain.ErrLockFailed),
		errors.Is(err, domain.ErrDatabase):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, domain.ErrAlreadyExists):
		return fmt.Errorf("%s: %w", op, domain.ErrHandleExists)
	default:
		return fmt.Errorf("%s: %w: %v", op, domain.ErrTransaction, err)
	}
}
