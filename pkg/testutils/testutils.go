// Package testutils builds throwaway storefront environments for tests:
// a migrated SQLite file, a memory cache, a lock registry and a memory bus.
package testutils

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	infracache "github.com/amirasaad/storefront/infra/cache"
	infraeventbus "github.com/amirasaad/storefront/infra/eventbus"
	infrarepo "github.com/amirasaad/storefront/infra/repository"
	"github.com/amirasaad/storefront/infra/storage"
	"github.com/amirasaad/storefront/pkg/lock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Env bundles the infrastructure a service test needs.
type Env struct {
	Ctx     context.Context
	Gateway *storage.Gateway
	UoW     *infrarepo.UoW
	Cache   *infracache.MemoryCache
	Locks   *lock.Registry
	Bus     *infraeventbus.MemoryEventBus
	Logger  *slog.Logger
}

// NewEnv opens a fresh database under t.TempDir and tears it down with t.
func NewEnv(t testing.TB) *Env {
	t.Helper()
	logger := DiscardLogger()
	gw, err := storage.Open(context.Background(), storage.Config{
		Path: filepath.Join(t.TempDir(), "storefront.db"),
	}, logger)
	require.NoError(t, err)
	c := infracache.NewMemoryCache(0)
	t.Cleanup(func() {
		c.Close()
		_ = gw.Close()
	})
	return &Env{
		Ctx:     context.Background(),
		Gateway: gw,
		UoW:     infrarepo.NewUoW(gw.DB(), gw),
		Cache:   c,
		Locks:   lock.NewRegistry(0, logger),
		Bus:     infraeventbus.NewWithMemory(logger),
		Logger:  logger,
	}
}

// DB returns the raw gorm handle for assertions.
func (e *Env) DB() *gorm.DB {
	return e.Gateway.DB()
}

// Count runs a COUNT(*) query and returns the result.
func (e *Env) Count(t testing.TB, sql string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.DB().Raw(sql, args...).Scan(&n).Error)
	return n
}

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MakeRequest is a helper for making HTTP requests in tests
func MakeRequest(app *fiber.App, method, path, body, token string) *http.Response {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		panic(err) // For standalone tests, panic on error
	}
	return resp
}
