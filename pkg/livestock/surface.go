// Package livestock keeps the live stock display on the chat platform: one
// bot-owned message showing the catalogue with interactive controls
// attached, reconciled in the background.
package livestock

import (
	"context"
	"errors"
	"time"
)

// ErrMessageNotFound is returned by Surface.Edit when the message is gone.
var ErrMessageNotFound = errors.New("livestock: message not found")

// ControlID names an interactive control.
type ControlID string

const (
	ControlRegister ControlID = "register"
	ControlBalance  ControlID = "balance"
	ControlWorld    ControlID = "world"
	ControlBuy      ControlID = "buy"
	ControlHistory  ControlID = "history"
)

// Mutates reports whether the control writes state and is therefore closed
// during maintenance.
func (id ControlID) Mutates() bool {
	return id == ControlRegister || id == ControlBuy
}

// Option is one choice of a select control.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Control is an interactive element attached to a message.
type Control struct {
	ID      ControlID `json:"id"`
	Label   string    `json:"label"`
	Options []Option  `json:"options,omitempty"`
}

// Message is a message on the surface.
type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	Controls  []Control `json:"controls,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	EditedAt  time.Time `json:"edited_at,omitzero"`
}

// Surface is the chat platform as seen by the managers.
type Surface interface {
	// RecentMessages returns up to limit messages of channelID, newest first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	Send(ctx context.Context, channelID string, m Message) (Message, error)
	// Edit replaces content and controls of m.ID.
	Edit(ctx context.Context, channelID string, m Message) (Message, error)
	SendDirect(ctx context.Context, userID, text string) error
}
