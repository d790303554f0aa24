package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/storefront/pkg/config"
	"github.com/amirasaad/storefront/pkg/donation"
	"github.com/amirasaad/storefront/pkg/livestock"
	"github.com/amirasaad/storefront/pkg/metrics"
	"github.com/amirasaad/storefront/pkg/service/admin"
	"github.com/amirasaad/storefront/pkg/service/balance"
	"github.com/amirasaad/storefront/pkg/service/product"
	"github.com/amirasaad/storefront/pkg/service/transaction"
	"github.com/amirasaad/storefront/pkg/service/user"
	"github.com/robfig/cron/v3"
)

// App is the assembled storefront.
type App struct {
	Deps   *config.Deps
	Config *config.App

	UserService        *user.Service
	BalanceService     *balance.Service
	ProductService     *product.Service
	AdminService       *admin.Service
	TransactionService *transaction.Service
	Donations          *donation.Ingestor

	Display    *livestock.DisplayManager
	Controls   *livestock.ControlManager
	Reconciler *livestock.Reconciler

	scheduler *cron.Cron
	logger    *slog.Logger
	refreshes sync.WaitGroup
}

// New builds every service on top of deps and subscribes the event
// handlers. Background jobs start with Start.
func New(deps *config.Deps) *App {
	cfg := deps.Config
	logger := deps.Logger
	a := &App{Deps: deps, Config: cfg, logger: logger.With("component", "app")}

	a.AdminService = admin.New(deps.Uow, deps.Cache, admin.Config{
		AdminIDs:       cfg.Store.AdminIDs,
		MaintenanceTTL: cfg.Cache.MaintenanceTTL,
	}, logger)
	a.UserService = user.New(deps.Uow, deps.Cache, deps.Locks, a.AdminService, user.Config{
		HandleTTL:   cfg.Cache.HandleTTL,
		LockTimeout: cfg.Lock.RegisterTimeout,
	}, logger)
	a.BalanceService = balance.New(deps.Uow, deps.Cache, deps.Locks, deps.Bus, balance.Config{
		BalanceTTL:  cfg.Cache.BalanceTTL,
		HistoryTTL:  cfg.Cache.HistoryTTL,
		LockTimeout: cfg.Lock.BalanceTimeout,
	}, logger)
	a.ProductService = product.New(deps.Uow, deps.Cache, a.AdminService, product.Config{
		ProductTTL:    cfg.Cache.ProductTTL,
		StockCountTTL: cfg.Cache.StockCountTTL,
	}, logger)
	a.TransactionService = transaction.New(transaction.Deps{
		Uow:      deps.Uow,
		Identity: a.UserService,
		Balances: a.BalanceService,
		Catalog:  a.ProductService,
		Admin:    a.AdminService,
		Locks:    deps.Locks,
		Bus:      deps.Bus,
		Logger:   logger,
	}, transaction.Config{PurchaseLockTimeout: cfg.Lock.PurchaseTimeout})
	a.Donations = donation.New(a.BalanceService, a.AdminService, logger)

	a.Display = livestock.NewDisplayManager(deps.Surface, a.ProductService, a.AdminService, livestock.DisplayConfig{
		ChannelID:      cfg.Store.ChannelID,
		BotID:          cfg.Store.BotID,
		AlertThreshold: cfg.Store.AlertThreshold,
		ScanLimit:      cfg.Store.ScanLimit,
		IOTimeout:      cfg.Store.IOTimeout,
	}, logger)
	controlCfg := livestock.DefaultControlConfig()
	controlCfg.LockTimeout = cfg.Lock.InteractionTimeout
	controlCfg.RatePerSecond = cfg.RateLimit.ClicksPerSec
	controlCfg.RateBurst = cfg.RateLimit.ClickBurst
	a.Controls = livestock.NewControlManager(a.Display, livestock.ControlDeps{
		Identity: a.UserService,
		Balances: a.BalanceService,
		Engine:   a.TransactionService,
		World:    a.AdminService,
		Catalog:  a.ProductService,
		Surface:  deps.Surface,
		Locks:    deps.Locks,
		Logger:   logger,
	}, controlCfg)
	a.Reconciler = livestock.NewReconciler(a.Display, cfg.Store.ReconcileInterval, 2*cfg.Store.IOTimeout, logger)

	locks := deps.Locks
	metrics.RegisterGauge("locks", "held", "Named locks currently held.", func() float64 {
		return float64(locks.Stats().Held)
	})
	metrics.RegisterGauge("locks", "acquire_failures", "Lock acquisitions that timed out since start.", func() float64 {
		return float64(locks.Stats().Failed)
	})

	SetupBus(Dependencies{
		Bus:     deps.Bus,
		Refresh: a.RefreshDisplay,
		Logger:  logger,
	})
	return a
}

// Start posts the stock message and starts the background jobs.
func (a *App) Start(ctx context.Context) error {
	if err := a.Display.Update(ctx); err != nil {
		a.logger.Warn("initial display update failed, reconciler will retry", "error", err)
	}
	scheduler, err := a.newScheduler()
	if err != nil {
		return err
	}
	a.scheduler = scheduler
	a.scheduler.Start()
	a.logger.Info("background jobs started", "jobs", len(a.scheduler.Entries()))
	return nil
}

// Stop halts the background jobs and waits for running ones and pending
// display refreshes.
func (a *App) Stop(ctx context.Context) error {
	if a.scheduler != nil {
		select {
		case <-a.scheduler.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan struct{})
	go func() {
		a.refreshes.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshDisplay updates the stock message in the background.
func (a *App) RefreshDisplay() {
	a.refreshes.Add(1)
	go func() {
		defer a.refreshes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*a.Config.Store.IOTimeout+time.Second)
		defer cancel()
		if err := a.Display.Update(ctx); err != nil {
			a.logger.Warn("display refresh failed", "error", err)
		}
	}()
}

// WaitRefreshes blocks until pending display refreshes finish.
func (a *App) WaitRefreshes() {
	a.refreshes.Wait()
}
