// Package app assembles the storefront services, subscribes the event
// handlers and runs the background jobs.
package app

import (
	"context"
	"log/slog"

	"github.com/amirasaad/storefront/pkg/domain/events"
	"github.com/amirasaad/storefront/pkg/eventbus"
)

// Dependencies contains all the dependencies needed by the SetupBus function
type Dependencies struct {
	Bus eventbus.Bus
	// Refresh schedules a display update; it must not block.
	Refresh func()
	Logger  *slog.Logger
}

// SetupBus registers all event handlers with the provided event Bus.
func SetupBus(deps Dependencies) {
	logger := deps.Logger.With("component", "events")
	bus := deps.Bus

	// Sold stock changes the display.
	bus.Register(events.EventTypePurchaseCompleted, func(_ context.Context, e events.Event) error {
		if p, ok := e.(events.PurchaseCompleted); ok {
			logger.Info("purchase completed", "handle", p.Handle, "product_code", p.ProductCode, "quantity", p.Quantity)
		}
		deps.Refresh()
		return nil
	})

	bus.Register(events.EventTypeTransactionFailed, func(_ context.Context, e events.Event) error {
		if f, ok := e.(events.TransactionFailed); ok {
			logger.Info("transaction failed", "kind", f.Kind, "buyer_id", f.BuyerID, "code", f.Code)
		}
		return nil
	})

	bus.Register(events.EventTypeError, func(_ context.Context, e events.Event) error {
		if f, ok := e.(events.Error); ok {
			logger.Warn("operation error", "operation", f.Operation, "subject", f.Subject, "code", f.Code, "error", f.Err)
		}
		return nil
	})
}
