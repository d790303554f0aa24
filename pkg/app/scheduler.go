package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

func (a *App) newScheduler() (*cron.Cron, error) {
	log := cronLogger{logger: a.logger.With("component", "scheduler")}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	if _, err := a.Reconciler.Schedule(c); err != nil {
		return nil, err
	}

	cfg := a.Config
	jobs := []struct {
		name  string
		every time.Duration
		run   func()
	}{
		{"lock_gc", cfg.Lock.GCInterval, func() {
			if n := a.Deps.Locks.GC(); n > 0 {
				a.logger.Debug("idle locks collected", "count", n)
			}
		}},
		{"cache_sweep", cfg.Cache.SweepInterval, func() {
			if _, err := a.Deps.Cache.ClearExpired(context.Background()); err != nil {
				a.logger.Warn("cache sweep failed", "error", err)
			}
		}},
		{"limiter_cleanup", cfg.RateLimit.LimiterIdleTTL, func() {
			a.Controls.Limiter().Cleanup(cfg.RateLimit.LimiterIdleTTL)
		}},
	}
	for _, j := range jobs {
		if _, err := c.AddFunc("@every "+j.every.String(), j.run); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	return c, nil
}
