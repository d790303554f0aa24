package user

import (
	"context"

	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/user"
)

// Repository defines data access for users and their platform links.
type Repository interface {
	// Get returns the user keyed by handle or domain.ErrNotFound.
	Get(ctx context.Context, handle string) (*user.User, error)

	// GetLink returns the link for a platform user id or domain.ErrNotFound.
	GetLink(ctx context.Context, platformUserID string) (*user.HandleLink, error)

	// GetLinkByHandle returns the link bound to handle or domain.ErrNotFound.
	GetLinkByHandle(ctx context.Context, handle string) (*user.HandleLink, error)

	// EnsureUser inserts a zero-balance user unless handle already exists.
	EnsureUser(ctx context.Context, handle string) error

	// UpsertUser writes the balances of handle, creating the row if needed.
	UpsertUser(ctx context.Context, handle string, b balance.Balance) error

	// UpsertLink binds platformUserID to handle, replacing any earlier binding.
	UpsertLink(ctx context.Context, platformUserID, handle string) error

	// UpdateBalance overwrites the balances of an existing user.
	UpdateBalance(ctx context.Context, handle string, b balance.Balance) error

	// Delete removes the user row; links cascade.
	Delete(ctx context.Context, handle string) error
}
