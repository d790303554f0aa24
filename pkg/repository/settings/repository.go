package settings

import (
	"context"

	"github.com/amirasaad/storefront/pkg/domain/admin"
)

// Repository defines data access for bot settings, the admin audit log and
// world information.
type Repository interface {
	// Get returns the value of key and whether it is set.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes key.
	Set(ctx context.Context, key, value string) error

	// AppendLog inserts an audit row.
	AppendLog(ctx context.Context, l *admin.Log) error

	// ListLogs returns the newest audit rows first.
	ListLogs(ctx context.Context, limit int) ([]admin.Log, error)

	// GetWorldInfo returns the stored world info or domain.ErrNotFound.
	GetWorldInfo(ctx context.Context) (*admin.WorldInfo, error)

	// SetWorldInfo replaces the world info.
	SetWorldInfo(ctx context.Context, w admin.WorldInfo) error
}
