package eventbus

import (
	"context"

	"github.com/amirasaad/storefront/pkg/domain/events"
)

// HandlerFunc handles one event. A returned error is logged by the bus and
// never reaches the emitter.
type HandlerFunc func(ctx context.Context, event events.Event) error

// Bus defines the contract for publishing and subscribing to core events.
type Bus interface {
	// Register subscribes handler to every event of eventType.
	Register(eventType events.EventType, handler HandlerFunc)
	// Emit delivers event to its subscribers. Subscriber failures are
	// swallowed.
	Emit(ctx context.Context, event events.Event) error
}
