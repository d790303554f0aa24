// Package admin holds the operator-facing records: the audit log and the
// world information shown to buyers.
package admin

import "time"

// Actions recorded in the audit log.
const (
	ActionMaintenance  = "maintenance"
	ActionDeposit      = "deposit"
	ActionWithdraw     = "withdraw"
	ActionAddProduct   = "add_product"
	ActionAddStock     = "add_stock"
	ActionDeleteStock  = "delete_stock"
	ActionSetWorldInfo = "set_world_info"
)

// Log is one audit row.
type Log struct {
	ID        int64     `json:"id"`
	AdminID   string    `json:"admin_id"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// WorldInfo describes where buyers collect their goods.
type WorldInfo struct {
	World     string    `json:"world"`
	Owner     string    `json:"owner"`
	BotName   string    `json:"bot_name"`
	UpdatedAt time.Time `json:"updated_at"`
}
