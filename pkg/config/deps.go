package config

import (
	"log/slog"

	"github.com/amirasaad/storefront/pkg/cache"
	"github.com/amirasaad/storefront/pkg/eventbus"
	"github.com/amirasaad/storefront/pkg/livestock"
	"github.com/amirasaad/storefront/pkg/lock"
	"github.com/amirasaad/storefront/pkg/repository"
)

// Deps holds all infrastructure dependencies for building the app and services.
type Deps struct {
	Uow     repository.UnitOfWork
	Cache   cache.Cache
	Locks   *lock.Registry
	Surface livestock.Surface
	Bus     eventbus.Bus
	Logger  *slog.Logger
	Config  *App
}
