// Package surface provides in-process chat surfaces for the live stock
// display.
package surface

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/amirasaad/storefront/pkg/livestock"
	"github.com/google/uuid"
)

// Operations that can be made to fail.
const (
	OpRecent = "recent"
	OpSend   = "send"
	OpEdit   = "edit"
	OpDirect = "direct"
)

// Memory is a livestock.Surface held in memory. It backs the HTTP adapter
// and the tests.
type Memory struct {
	mu       sync.RWMutex
	channels map[string][]livestock.Message
	directs  map[string][]string
	failures map[string]error
	calls    map[string]int
	now      func() time.Time
}

// NewMemory returns an empty surface.
func NewMemory() *Memory {
	return &Memory{
		channels: make(map[string][]livestock.Message),
		directs:  make(map[string][]string),
		failures: make(map[string]error),
		calls:    make(map[string]int),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ livestock.Surface = (*Memory)(nil)

// Fail makes every call of op return err until cleared with a nil err.
func (m *Memory) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns how often op was invoked.
func (m *Memory) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

func (m *Memory) enter(op string) error {
	m.calls[op]++
	return m.failures[op]
}

// RecentMessages returns up to limit messages, newest first.
func (m *Memory) RecentMessages(ctx context.Context, channelID string, limit int) ([]livestock.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpRecent); err != nil {
		return nil, err
	}
	msgs := m.channels[channelID]
	out := make([]livestock.Message, 0, min(limit, len(msgs)))
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

// Send posts a new message.
func (m *Memory) Send(ctx context.Context, channelID string, msg livestock.Message) (livestock.Message, error) {
	if err := ctx.Err(); err != nil {
		return livestock.Message{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpSend); err != nil {
		return livestock.Message{}, err
	}
	msg.ID = uuid.NewString()
	msg.ChannelID = channelID
	msg.CreatedAt = m.now()
	msg.Controls = slices.Clone(msg.Controls)
	m.channels[channelID] = append(m.channels[channelID], msg)
	return msg, nil
}

// Edit replaces the content and controls of msg.ID.
func (m *Memory) Edit(ctx context.Context, channelID string, msg livestock.Message) (livestock.Message, error) {
	if err := ctx.Err(); err != nil {
		return livestock.Message{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpEdit); err != nil {
		return livestock.Message{}, err
	}
	msgs := m.channels[channelID]
	for i := range msgs {
		if msgs[i].ID == msg.ID {
			msgs[i].Content = msg.Content
			msgs[i].Controls = slices.Clone(msg.Controls)
			msgs[i].EditedAt = m.now()
			return msgs[i], nil
		}
	}
	return livestock.Message{}, fmt.Errorf("%w: %s", livestock.ErrMessageNotFound, msg.ID)
}

// SendDirect records a private message to userID.
func (m *Memory) SendDirect(ctx context.Context, userID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpDirect); err != nil {
		return err
	}
	m.directs[userID] = append(m.directs[userID], text)
	return nil
}

// Post adds a message from someone else to channelID.
func (m *Memory) Post(channelID, authorID, content string) livestock.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := livestock.Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: m.now(),
	}
	m.channels[channelID] = append(m.channels[channelID], msg)
	return msg
}

// Delete removes a message, as a moderator would.
func (m *Memory) Delete(channelID, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.channels[channelID]
	for i := range msgs {
		if msgs[i].ID == id {
			m.channels[channelID] = slices.Delete(msgs, i, i+1)
			return true
		}
	}
	return false
}

// Messages returns the messages of channelID, oldest first.
func (m *Memory) Messages(channelID string) []livestock.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.channels[channelID])
}

// Directs returns the private messages sent to userID.
func (m *Memory) Directs(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.directs[userID])
}
