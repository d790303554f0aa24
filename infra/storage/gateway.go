// Package storage is the single SQLite gateway behind every repository.
// Access is serialized through one connection; transient lock errors are
// retried with exponential backoff.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	// DefaultBusyTimeout is the SQLite busy_timeout applied to every connection.
	DefaultBusyTimeout = 5 * time.Second
	// DefaultMaxAttempts bounds retries on transient lock errors.
	DefaultMaxAttempts = 3
)

// Config describes how to open the database.
type Config struct {
	Path            string
	BusyTimeout     time.Duration
	MaxAttempts     int
	InitialInterval time.Duration
}

// Gateway owns the database handle.
type Gateway struct {
	db              *gorm.DB
	logger          *slog.Logger
	maxAttempts     int
	initialInterval time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRetry sets the attempt count and the first backoff interval.
func WithRetry(maxAttempts int, initial time.Duration) Option {
	return func(g *Gateway) {
		if maxAttempts > 0 {
			g.maxAttempts = maxAttempts
		}
		if initial > 0 {
			g.initialInterval = initial
		}
	}
}

// DSN builds the mattn/go-sqlite3 connection string with WAL, foreign keys,
// synchronous=NORMAL and the busy timeout.
func DSN(path string, busyTimeout time.Duration) string {
	if busyTimeout < DefaultBusyTimeout {
		busyTimeout = DefaultBusyTimeout
	}
	return fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=%d&_synchronous=NORMAL&_txlock=immediate",
		path, busyTimeout.Milliseconds(),
	)
}

// Open connects to the SQLite file at cfg.Path, verifies the connection and
// applies pending migrations.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Gateway, error) {
	db, err := gorm.Open(sqlite.Open(DSN(cfg.Path, cfg.BusyTimeout)), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	g := New(db, logger, WithRetry(cfg.MaxAttempts, cfg.InitialInterval))
	if err := g.retry(ctx, "ping", func() error { return sqlDB.PingContext(ctx) }); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	g.logger.Info("storage ready", "path", cfg.Path)
	return g, nil
}

// New wraps an already opened gorm handle.
func New(db *gorm.DB, logger *slog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		db:              db,
		logger:          logger.With("component", "storage"),
		maxAttempts:     DefaultMaxAttempts,
		initialInterval: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DB returns the gorm handle. Callers inside a transaction must use the
// transaction handle instead; the pool has a single connection.
func (g *Gateway) DB() *gorm.DB {
	return g.db
}

// Query scans the rows of a raw statement into dest.
func (g *Gateway) Query(ctx context.Context, dest any, query string, args ...any) error {
	return g.retry(ctx, "query", func() error {
		return g.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
	})
}

// Exec runs a raw statement and returns the affected row count.
func (g *Gateway) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	err := g.retry(ctx, "exec", func() error {
		res := g.db.WithContext(ctx).Exec(query, args...)
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

// Transaction runs fn inside BEGIN/COMMIT. Any error rolls back. A
// transient lock error restarts the whole span, so fn must only touch the
// database through tx.
func (g *Gateway) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.retry(ctx, "transaction", func() error {
		return g.db.WithContext(ctx).Transaction(fn)
	})
}

// Close releases the connection.
func (g *Gateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *Gateway) retry(ctx context.Context, op string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.initialInterval
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(g.maxAttempts-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		g.logger.Warn("database busy, retrying", "op", op, "attempt", attempt, "error", err)
		return err
	}, b)
}

// IsTransient reports whether err is a SQLite busy/locked condition.
func IsTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
