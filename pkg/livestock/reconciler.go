package livestock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultReconcileInterval is how often the display is reconciled.
const DefaultReconcileInterval = 5 * time.Minute

// Reconciler keeps the stock message present and current.
type Reconciler struct {
	display  *DisplayManager
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewReconciler reconciles display every interval, bounding each run by
// timeout.
func NewReconciler(display *DisplayManager, interval, timeout time.Duration, logger *slog.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	if timeout <= 0 {
		timeout = 2 * display.cfg.IOTimeout
	}
	return &Reconciler{
		display:  display,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With("component", "reconciler"),
	}
}

// Schedule registers the periodic run on c.
func (r *Reconciler) Schedule(c *cron.Cron) (cron.EntryID, error) {
	id, err := c.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		_ = r.RunOnce(context.Background())
	})
	if err != nil {
		return 0, fmt.Errorf("schedule reconciler: %w", err)
	}
	return id, nil
}

// RunOnce performs one reconciliation.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	if err := r.display.Reconcile(ctx); err != nil {
		r.logger.Warn("reconcile failed", "error", err, "took", time.Since(start))
		return err
	}
	r.logger.Debug("reconcile done", "took", time.Since(start))
	return nil
}
