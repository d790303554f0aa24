// Package ledger holds the balance journal and the higher level
// purchase/deposit/withdrawal transaction records.
package ledger

import (
	"time"

	"github.com/amirasaad/storefront/pkg/domain/balance"
)

// EntryType classifies a journal row.
type EntryType string

const (
	TypeDeposit     EntryType = "DEPOSIT"
	TypeWithdrawal  EntryType = "WITHDRAWAL"
	TypePurchase    EntryType = "PURCHASE"
	TypeDonation    EntryType = "DONATION"
	TypeAdminAdd    EntryType = "ADMIN_ADD"
	TypeAdminRemove EntryType = "ADMIN_REMOVE"
)

// Valid reports whether t is a known journal type.
func (t EntryType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypePurchase, TypeDonation, TypeAdminAdd, TypeAdminRemove:
		return true
	}
	return false
}

// Entry is one append-only journal row. OldBalance and NewBalance hold
// balance.Format output. ProductCode is set on purchase rows only.
type Entry struct {
	ID          int64     `json:"id"`
	Handle      string    `json:"handle"`
	Type        EntryType `json:"type"`
	Details     string    `json:"details"`
	ProductCode string    `json:"product_code,omitempty"`
	OldBalance  string    `json:"old_balance"`
	NewBalance  string    `json:"new_balance"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeltaWL parses both balance columns and returns new minus old.
func (e Entry) DeltaWL() (int64, error) {
	oldBal, err := balance.Parse(e.OldBalance)
	if err != nil {
		return 0, err
	}
	newBal, err := balance.Parse(e.NewBalance)
	if err != nil {
		return 0, err
	}
	return newBal.TotalWL() - oldBal.TotalWL(), nil
}

// HistoryEntry is a journal row enriched for display.
type HistoryEntry struct {
	Entry
	AmountWL      int64  `json:"amount_wl"`
	AmountDisplay string `json:"amount_display"`
	ProductName   string `json:"product_name,omitempty"`
}

// TxStatus is the state of a higher level transaction record.
type TxStatus string

const (
	StatusPending   TxStatus = "PENDING"
	StatusCompleted TxStatus = "COMPLETED"
	StatusFailed    TxStatus = "FAILED"
	StatusRefunded  TxStatus = "REFUNDED"
)

// Transaction is the higher level record of one purchase, deposit or
// withdrawal attempt.
type Transaction struct {
	ID          int64     `json:"id"`
	BuyerID     string    `json:"buyer_id"`
	ProductCode *string   `json:"product_code,omitempty"`
	Quantity    int       `json:"quantity"`
	TotalPrice  int64     `json:"total_price"`
	Type        EntryType `json:"type"`
	Status      TxStatus  `json:"status"`
	Details     string    `json:"details"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
