// Package user holds the identity entities: a User keyed by its in-game
// handle (GrowID) and the HandleLink binding a platform user id to it.
package user

import (
	"strings"
	"time"

	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/balance"
)

// MinHandleLength is the shortest accepted handle.
const MinHandleLength = 3

// User is a balance holder identified by its handle.
type User struct {
	Handle    string
	Balance   balance.Balance
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HandleLink binds one platform user id to one handle.
type HandleLink struct {
	PlatformUserID string
	Handle         string
	CreatedAt      time.Time
}

// NormalizeHandle trims surrounding whitespace and validates the result.
func NormalizeHandle(handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if len([]rune(handle)) < MinHandleLength {
		return "", domain.ErrInvalidHandle
	}
	return handle, nil
}
