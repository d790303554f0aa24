package surface

import (
	"context"
	"errors"
	"testing"

	"github.com/amirasaad/storefront/pkg/livestock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SendEditRecent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.Send(ctx, "stock", livestock.Message{AuthorID: "bot", Content: "one"})
	require.NoError(t, err)
	m.Post("stock", "someone", "hello")

	recent, err := m.RecentMessages(ctx, "stock", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "hello", recent[0].Content, "newest first")

	limited, err := m.RecentMessages(ctx, "stock", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	first.Content = "two"
	edited, err := m.Edit(ctx, "stock", first)
	require.NoError(t, err)
	assert.Equal(t, "two", edited.Content)
	assert.False(t, edited.EditedAt.IsZero())

	require.True(t, m.Delete("stock", first.ID))
	_, err = m.Edit(ctx, "stock", first)
	assert.ErrorIs(t, err, livestock.ErrMessageNotFound)
	assert.Len(t, m.Messages("stock"), 1)
}

func TestMemory_FailureInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("platform down")

	m.Fail(OpSend, boom)
	_, err := m.Send(ctx, "stock", livestock.Message{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.Calls(OpSend))

	m.Fail(OpSend, nil)
	_, err = m.Send(ctx, "stock", livestock.Message{})
	assert.NoError(t, err)
}

func TestMemory_Directs(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.SendDirect(context.Background(), "42", "code-1"))
	assert.Equal(t, []string{"code-1"}, m.Directs("42"))
	assert.Empty(t, m.Directs("7"))
}
