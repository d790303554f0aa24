// Package admin provides the maintenance flag, administrator permission
// checks, the audit log and the world information shown to shoppers.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/amirasaad/storefront/pkg/cache"
	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/admin"
	"github.com/amirasaad/storefront/pkg/repository"
)

// PermissionAdmin is the only permission the storefront distinguishes.
const PermissionAdmin = "admin"

// DefaultMaintenanceTTL bounds how stale the cached maintenance flag may get.
const DefaultMaintenanceTTL = 24 * time.Hour

// Config configures the admin Service.
type Config struct {
	AdminIDs       []string
	MaintenanceTTL time.Duration
}

// Service provides administrative operations.
type Service struct {
	uow    repository.UnitOfWork
	cache  cache.Cache
	cfg    Config
	logger *slog.Logger
}

// New creates a new admin Service.
func New(
	uow repository.UnitOfWork,
	c cache.Cache,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.MaintenanceTTL <= 0 {
		cfg.MaintenanceTTL = DefaultMaintenanceTTL
	}
	return &Service{uow: uow, cache: c, cfg: cfg, logger: logger}
}

// IsAdmin reports whether platformUserID is a configured administrator.
func (s *Service) IsAdmin(platformUserID string) bool {
	return platformUserID != "" && slices.Contains(s.cfg.AdminIDs, platformUserID)
}

// CheckPermission returns domain.ErrPermissionDenied unless platformUserID
// holds permission.
func (s *Service) CheckPermission(platformUserID, permission string) error {
	if permission == PermissionAdmin && s.IsAdmin(platformUserID) {
		return nil
	}
	return domain.ErrPermissionDenied
}

// IsMaintenanceMode reads the maintenance flag through the cache.
func (s *Service) IsMaintenanceMode(ctx context.Context) (bool, error) {
	var on bool
	hit, err := s.cache.Get(ctx, cache.MaintenanceKey, &on)
	if err != nil {
		s.logger.Warn("maintenance flag cache read failed", "error", err)
	}
	if hit {
		return on, nil
	}

	repo, err := s.uow.SettingsRepository()
	if err != nil {
		return false, err
	}
	value, ok, err := repo.Get(ctx, cache.MaintenanceKey)
	if err != nil {
		return false, fmt.Errorf("read maintenance flag: %w", err)
	}
	if ok {
		on, _ = strconv.ParseBool(value)
	}
	if err := s.cache.Set(ctx, cache.MaintenanceKey, on, s.cfg.MaintenanceTTL, false); err != nil {
		s.logger.Warn("maintenance flag cache write failed", "error", err)
	}
	return on, nil
}

// SetMaintenanceMode persists the flag and audits the change. The cache is
// written through after the commit.
func (s *Service) SetMaintenanceMode(ctx context.Context, adminID string, on bool) error {
	logger := s.logger.With("admin_id", adminID, "maintenance", on)
	logger.Info("SetMaintenanceMode started")
	if err := s.CheckPermission(adminID, PermissionAdmin); err != nil {
		logger.Warn("SetMaintenanceMode failed: permission denied")
		return err
	}
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.SettingsRepository()
		if err != nil {
			return err
		}
		if err := repo.Set(ctx, cache.MaintenanceKey, strconv.FormatBool(on)); err != nil {
			return err
		}
		return repo.AppendLog(ctx, &admin.Log{
			AdminID: adminID,
			Action:  admin.ActionMaintenance,
			Details: strconv.FormatBool(on),
		})
	})
	if err != nil {
		logger.Error("SetMaintenanceMode failed: database error", "error", err)
		return fmt.Errorf("set maintenance mode: %w", err)
	}
	if err := s.cache.Set(ctx, cache.MaintenanceKey, on, s.cfg.MaintenanceTTL, false); err != nil {
		logger.Warn("maintenance flag cache write failed", "error", err)
		_ = s.cache.Delete(ctx, cache.MaintenanceKey)
	}
	logger.Info("SetMaintenanceMode successful")
	return nil
}

// LogAction appends an audit row.
func (s *Service) LogAction(ctx context.Context, adminID, action, target, details string) error {
	repo, err := s.uow.SettingsRepository()
	if err != nil {
		return err
	}
	if err := repo.AppendLog(ctx, &admin.Log{
		AdminID: adminID,
		Action:  action,
		Target:  target,
		Details: details,
	}); err != nil {
		s.logger.Error("audit log append failed",
			"admin_id", adminID, "action", action, "error", err)
		return fmt.Errorf("log admin action: %w", err)
	}
	return nil
}

// RecentLogs returns the newest audit rows first.
func (s *Service) RecentLogs(ctx context.Context, limit int) ([]admin.Log, error) {
	repo, err := s.uow.SettingsRepository()
	if err != nil {
		return nil, err
	}
	return repo.ListLogs(ctx, limit)
}

// GetWorldInfo returns the configured world, or an empty value when none
// has been set.
func (s *Service) GetWorldInfo(ctx context.Context) (admin.WorldInfo, error) {
	repo, err := s.uow.SettingsRepository()
	if err != nil {
		return admin.WorldInfo{}, err
	}
	w, err := repo.GetWorldInfo(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return admin.WorldInfo{}, nil
	}
	if err != nil {
		return admin.WorldInfo{}, fmt.Errorf("read world info: %w", err)
	}
	return *w, nil
}

// SetWorldInfo replaces the world info and audits the change.
func (s *Service) SetWorldInfo(ctx context.Context, adminID string, w admin.WorldInfo) error {
	if err := s.CheckPermission(adminID, PermissionAdmin); err != nil {
		return err
	}
	return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.SettingsRepository()
		if err != nil {
			return err
		}
		if err := repo.SetWorldInfo(ctx, w); err != nil {
			return err
		}
		return repo.AppendLog(ctx, &admin.Log{
			AdminID: adminID,
			Action:  admin.ActionSetWorldInfo,
			Target:  w.World,
			Details: fmt.Sprintf("owner=%s bot=%s", w.Owner, w.BotName),
		})
	})
}
