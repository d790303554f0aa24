// Package lock provides named cooperative locks with acquisition timeouts.
// Lock names are the only coordination primitive between flows; idle names
// are dropped by GC so the registry does not grow without bound.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirasaad/storefront/pkg/domain"
	"golang.org/x/sync/semaphore"
)

// DefaultIdleHorizon is how long an untouched lock survives GC.
const DefaultIdleHorizon = 5 * time.Minute

// Name builders for the lock keys used across the core.
func BalanceUpdate(handle string) string { return "balance_update_" + handle }
func Purchase(buyerID, productCode string) string {
	return "purchase_" + buyerID + "_" + productCode
}
func Register(platformUserID string) string    { return "register_" + platformUserID }
func Interaction(platformUserID string) string { return "interaction_" + platformUserID }

type entry struct {
	sem      *semaphore.Weighted
	held     bool
	waiters  int
	lastUsed time.Time
}

// Registry owns every named lock.
type Registry struct {
	mu       sync.Mutex
	locks    map[string]*entry
	idle     time.Duration
	logger   *slog.Logger
	acquired atomic.Uint64
	failed   atomic.Uint64
	now      func() time.Time
}

// Stats summarizes the registry.
type Stats struct {
	Total    int    `json:"total"`
	Held     int    `json:"held"`
	Acquired uint64 `json:"acquired"`
	Failed   uint64 `json:"failed"`
}

// NewRegistry returns an empty registry. A non-positive idle horizon falls
// back to DefaultIdleHorizon.
func NewRegistry(idle time.Duration, logger *slog.Logger) *Registry {
	if idle <= 0 {
		idle = DefaultIdleHorizon
	}
	return &Registry{
		locks:  make(map[string]*entry),
		idle:   idle,
		logger: logger.With("component", "lock_registry"),
		now:    time.Now,
	}
}

// Acquire waits up to timeout for name. On timeout or cancellation it
// returns an error wrapping domain.ErrLockFailed.
func (r *Registry) Acquire(ctx context.Context, name string, timeout time.Duration) error {
	r.mu.Lock()
	e, ok := r.locks[name]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		r.locks[name] = e
	}
	e.waiters++
	e.lastUsed = r.now()
	r.mu.Unlock()

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := e.sem.Acquire(actx, 1)

	r.mu.Lock()
	e.waiters--
	e.lastUsed = r.now()
	if err == nil {
		e.held = true
	}
	r.mu.Unlock()

	if err != nil {
		r.failed.Add(1)
		r.logger.Warn("lock acquisition failed", "lock", name, "timeout", timeout, "error", err)
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrLockFailed, name, ctx.Err())
		}
		return fmt.Errorf("%w: %s", domain.ErrLockFailed, name)
	}
	r.acquired.Add(1)
	return nil
}

// TryAcquire takes name only if it is free.
func (r *Registry) TryAcquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.locks[name]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		r.locks[name] = e
	}
	e.lastUsed = r.now()
	if !e.sem.TryAcquire(1) {
		r.failed.Add(1)
		return false
	}
	e.held = true
	r.acquired.Add(1)
	return true
}

// Release frees name. Releasing a lock that is not held is a no-op.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.locks[name]
	if !ok || !e.held {
		return
	}
	e.held = false
	e.lastUsed = r.now()
	e.sem.Release(1)
}

// With runs fn while holding name.
func (r *Registry) With(ctx context.Context, name string, timeout time.Duration, fn func() error) error {
	if err := r.Acquire(ctx, name, timeout); err != nil {
		return err
	}
	defer r.Release(name)
	return fn()
}

// GC drops locks that are free, have no waiters and were untouched for the
// idle horizon. It returns how many were dropped.
func (r *Registry) GC() int {
	cutoff := r.now().Add(-r.idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for name, e := range r.locks {
		if e.held || e.waiters > 0 || e.lastUsed.After(cutoff) {
			continue
		}
		delete(r.locks, name)
		dropped++
	}
	if dropped > 0 {
		r.logger.Debug("lock registry gc", "dropped", dropped, "remaining", len(r.locks))
	}
	return dropped
}

// Stats returns current counts.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Stats{Total: len(r.locks), Acquired: r.acquired.Load(), Failed: r.failed.Load()}
	for _, e := range r.locks {
		if e.held {
			st.Held++
		}
	}
	return st
}
