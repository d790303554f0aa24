package repository

import (
	"time"
)

// User represents a users row.
type User struct {
	Handle     string `gorm:"column:growid;primaryKey"`
	BalanceWL  int64  `gorm:"column:balance_wl;not null;default:0"`
	BalanceDL  int64  `gorm:"column:balance_dl;not null;default:0"`
	BalanceBGL int64  `gorm:"column:balance_bgl;not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// HandleLink represents a user_growid row.
type HandleLink struct {
	PlatformUserID string `gorm:"column:user_id;primaryKey"`
	Handle         string `gorm:"column:growid;not null"`
	CreatedAt      time.Time
}

// TableName specifies the table name for the HandleLink model.
func (HandleLink) TableName() string {
	return "user_growid"
}

// Product represents a products row.
type Product struct {
	Code        string  `gorm:"primaryKey"`
	Name        string  `gorm:"not null"`
	Price       float64 `gorm:"not null"`
	Category    string  `gorm:"not null;default:General"`
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName specifies the table name for the Product model.
func (Product) TableName() string {
	return "products"
}

// Stock represents a stock row.
type Stock struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	ProductCode string    `gorm:"not null"`
	Content     string    `gorm:"not null;uniqueIndex"`
	Status      string    `gorm:"not null;default:AVAILABLE"`
	AddedBy     string    `gorm:"not null"`
	BuyerHandle *string   `gorm:"column:buyer_growid"`
	AddedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time
}

// TableName specifies the table name for the Stock model.
func (Stock) TableName() string {
	return "stock"
}

// BalanceTx represents a balance_transactions row.
type BalanceTx struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Handle      string `gorm:"column:growid;not null"`
	Type        string `gorm:"not null"`
	Details     string
	ProductCode *string
	OldBalance  string `gorm:"not null"`
	NewBalance  string `gorm:"not null"`
	CreatedAt   time.Time
}

// TableName specifies the table name for the BalanceTx model.
func (BalanceTx) TableName() string {
	return "balance_transactions"
}

// Transaction represents a transactions row.
type Transaction struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	BuyerID     string `gorm:"not null"`
	ProductCode *string
	Quantity    int
	TotalPrice  int64
	Type        string `gorm:"not null"`
	Status      string `gorm:"not null"`
	Details     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}

// BotSetting represents a bot_settings row.
type BotSetting struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName specifies the table name for the BotSetting model.
func (BotSetting) TableName() string {
	return "bot_settings"
}

// AdminLog represents an admin_logs row.
type AdminLog struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	AdminID   string `gorm:"not null"`
	Action    string `gorm:"not null"`
	Target    string
	Details   string
	CreatedAt time.Time
}

// TableName specifies the table name for the AdminLog model.
func (AdminLog) TableName() string {
	return "admin_logs"
}

// WorldInfo represents the single world_info row.
type WorldInfo struct {
	ID        int `gorm:"primaryKey"`
	World     string
	Owner     string
	BotName   string
	UpdatedAt time.Time
}

// TableName specifies the table name for the WorldInfo model.
func (WorldInfo) TableName() string {
	return "world_info"
}
