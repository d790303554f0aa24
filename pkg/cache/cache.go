// Package cache defines the keyed TTL store used for short-lived projections
// of persisted state. Writers invalidate; readers tolerate brief staleness.
package cache

import (
	"context"
	"time"
)

// Cache is a key/value store with per-entry TTL and a permanent flag.
// Values are stored as JSON so every backend round-trips the same shape.
type Cache interface {
	// Get decodes the entry for key into dest. The boolean is false on a
	// miss or an expired entry.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores value for ttl. A zero ttl never expires. Permanent entries
	// survive ClearTemporary.
	Set(ctx context.Context, key string, value any, ttl time.Duration, permanent bool) error
	Delete(ctx context.Context, key string) error
	// DeletePattern removes every key matching a path.Match style glob and
	// returns how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)
	ClearExpired(ctx context.Context) (int, error)
	ClearTemporary(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// Stats is a point-in-time summary of a cache.
type Stats struct {
	Backend   string `json:"backend"`
	Entries   int    `json:"entries"`
	Permanent int    `json:"permanent"`
	Expired   int    `json:"expired"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
}

// Key builders for the projections the services cache.
func HandleKey(platformUserID string) string { return "handle_" + platformUserID }
func PlatformIDKey(handle string) string     { return "pid_" + handle }
func BalanceKey(handle string) string        { return "balance_" + handle }
func HistoryKey(handle string) string        { return "trx_history_" + handle }
func ProductKey(code string) string          { return "product_" + code }
func StockCountKey(code string) string       { return "stock_count_" + code }

// AllProductsKey caches the full catalogue.
const AllProductsKey = "all_products"

// MaintenanceKey caches the maintenance flag.
const MaintenanceKey = "maintenance_mode"
