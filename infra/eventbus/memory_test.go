package eventbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/amirasaad/storefront/pkg/domain/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *MemoryEventBus {
	return NewWithMemory(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMemoryEventBus_DeliversByType(t *testing.T) {
	bus := newTestBus()
	var got []string
	bus.Register(events.EventTypeBalanceUpdated, func(ctx context.Context, e events.Event) error {
		got = append(got, e.(events.BalanceUpdated).Handle)
		return nil
	})
	bus.Register(events.EventTypeError, func(ctx context.Context, e events.Event) error {
		t.Fatal("error handler must not see balance events")
		return nil
	})

	require.NoError(t, bus.Emit(context.Background(), events.BalanceUpdated{Meta: events.NewMeta(), Handle: "Fdy"}))
	assert.Equal(t, []string{"Fdy"}, got)
	assert.Len(t, bus.PublishedOf(events.EventTypeBalanceUpdated), 1)
}

func TestMemoryEventBus_SubscriberFailuresAreSwallowed(t *testing.T) {
	bus := newTestBus()
	calls := 0
	bus.Register(events.EventTypeError, func(ctx context.Context, e events.Event) error {
		calls++
		panic("boom")
	})
	bus.Register(events.EventTypeError, func(ctx context.Context, e events.Event) error {
		calls++
		return errors.New("handler failed")
	})
	bus.Register(events.EventTypeError, func(ctx context.Context, e events.Event) error {
		calls++
		return nil
	})

	err := bus.Emit(context.Background(), events.Error{Meta: events.NewMeta(), Operation: "purchase"})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestMemoryEventBus_PublishedIsBounded(t *testing.T) {
	bus := newTestBus()
	for range publishedCap + 10 {
		_ = bus.Emit(context.Background(), events.TransactionStarted{Meta: events.NewMeta()})
	}
	assert.Len(t, bus.Published(), publishedCap)
	bus.ClearPublished()
	assert.Empty(t, bus.Published())
}
