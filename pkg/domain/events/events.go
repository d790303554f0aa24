// Package events defines the callbacks emitted by the storefront core. Each
// event is its own struct; subscribers switch on the concrete type.
package events

import (
	"time"

	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/ledger"
	"github.com/google/uuid"
)

// EventType names an event for subscription.
type EventType string

const (
	EventTypeTransactionStarted   EventType = "transaction_started"
	EventTypeTransactionCompleted EventType = "transaction_completed"
	EventTypeTransactionFailed    EventType = "transaction_failed"
	EventTypePurchaseCompleted    EventType = "purchase_completed"
	EventTypeDepositCompleted     EventType = "deposit_completed"
	EventTypeWithdrawalCompleted  EventType = "withdrawal_completed"
	EventTypeBalanceUpdated       EventType = "balance_updated"
	EventTypeError                EventType = "error"
)

// String returns the string representation of the event type.
func (et EventType) String() string {
	return string(et)
}

// Event is implemented by every event emitted on the bus.
type Event interface {
	Type() string
}

// Meta is embedded in every event.
type Meta struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMeta stamps a fresh event id and the current UTC time.
func NewMeta() Meta {
	return Meta{ID: uuid.New(), Timestamp: time.Now().UTC()}
}

// TransactionStarted is emitted when a purchase, deposit or withdrawal
// passes its entry checks.
type TransactionStarted struct {
	Meta
	Kind        ledger.EntryType `json:"kind"`
	BuyerID     string           `json:"buyer_id"`
	ProductCode string           `json:"product_code,omitempty"`
	Quantity    int              `json:"quantity,omitempty"`
}

func (TransactionStarted) Type() string { return EventTypeTransactionStarted.String() }

// TransactionCompleted is emitted after any successful transaction.
type TransactionCompleted struct {
	Meta
	Kind       ledger.EntryType `json:"kind"`
	BuyerID    string           `json:"buyer_id"`
	Handle     string           `json:"handle"`
	AmountWL   int64            `json:"amount_wl"`
	NewBalance balance.Balance  `json:"new_balance"`
}

func (TransactionCompleted) Type() string { return EventTypeTransactionCompleted.String() }

// TransactionFailed is emitted when a transaction fails after it started.
type TransactionFailed struct {
	Meta
	Kind    ledger.EntryType `json:"kind"`
	BuyerID string           `json:"buyer_id"`
	Code    string           `json:"code"`
	Reason  string           `json:"reason"`
}

func (TransactionFailed) Type() string { return EventTypeTransactionFailed.String() }

// PurchaseCompleted carries the delivered stock for a successful purchase.
type PurchaseCompleted struct {
	Meta
	BuyerID     string          `json:"buyer_id"`
	Handle      string          `json:"handle"`
	ProductCode string          `json:"product_code"`
	Quantity    int             `json:"quantity"`
	TotalPaid   int64           `json:"total_paid"`
	Content     []string        `json:"-"`
	NewBalance  balance.Balance `json:"new_balance"`
}

func (PurchaseCompleted) Type() string { return EventTypePurchaseCompleted.String() }

// DepositCompleted is emitted after a successful deposit or donation credit.
type DepositCompleted struct {
	Meta
	PlatformUserID string          `json:"platform_user_id"`
	Handle         string          `json:"handle"`
	Amount         balance.Balance `json:"amount"`
	NewBalance     balance.Balance `json:"new_balance"`
	AdminID        string          `json:"admin_id,omitempty"`
}

func (DepositCompleted) Type() string { return EventTypeDepositCompleted.String() }

// WithdrawalCompleted is emitted after a successful withdrawal.
type WithdrawalCompleted struct {
	Meta
	PlatformUserID string          `json:"platform_user_id"`
	Handle         string          `json:"handle"`
	Amount         balance.Balance `json:"amount"`
	NewBalance     balance.Balance `json:"new_balance"`
	AdminID        string          `json:"admin_id,omitempty"`
}

func (WithdrawalCompleted) Type() string { return EventTypeWithdrawalCompleted.String() }

// BalanceUpdated is emitted for every committed balance mutation.
type BalanceUpdated struct {
	Meta
	Handle     string           `json:"handle"`
	EntryType  ledger.EntryType `json:"entry_type"`
	OldBalance balance.Balance  `json:"old_balance"`
	NewBalance balance.Balance  `json:"new_balance"`
	Details    string           `json:"details"`
}

func (BalanceUpdated) Type() string { return EventTypeBalanceUpdated.String() }

// Error is emitted when a core operation fails unexpectedly.
type Error struct {
	Meta
	Operation string `json:"operation"`
	Subject   string `json:"subject"`
	Code      string `json:"code"`
	Err       error  `json:"-"`
}

func (Error) Type() string { return EventTypeError.String() }
