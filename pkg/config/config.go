package config

import (
	"time"
)

type Jwt struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	Expiry time.Duration `envconfig:"EXPIRY" default:"24h"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[storefront]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type DB struct {
	Path            string        `envconfig:"PATH" default:"storefront.db"`
	BusyTimeout     time.Duration `envconfig:"BUSY_TIMEOUT" default:"5s"`
	MaxRetries      int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialInterval time.Duration `envconfig:"RETRY_INTERVAL" default:"100ms"`
}

type Cache struct {
	Backend        string        `envconfig:"BACKEND" default:"memory"`
	BalanceTTL     time.Duration `envconfig:"BALANCE_TTL" default:"30s"`
	HistoryTTL     time.Duration `envconfig:"HISTORY_TTL" default:"1m"`
	ProductTTL     time.Duration `envconfig:"PRODUCT_TTL" default:"5m"`
	StockCountTTL  time.Duration `envconfig:"STOCK_COUNT_TTL" default:"30s"`
	HandleTTL      time.Duration `envconfig:"HANDLE_TTL" default:"1h"`
	MaintenanceTTL time.Duration `envconfig:"MAINTENANCE_TTL" default:"24h"`
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
}

type Redis struct {
	URL          string        `envconfig:"URL" default:"redis://localhost:6379/0"`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" default:"storefront:"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

type Lock struct {
	BalanceTimeout     time.Duration `envconfig:"BALANCE_TIMEOUT" default:"3s"`
	PurchaseTimeout    time.Duration `envconfig:"PURCHASE_TIMEOUT" default:"3s"`
	InteractionTimeout time.Duration `envconfig:"INTERACTION_TIMEOUT" default:"3s"`
	RegisterTimeout    time.Duration `envconfig:"REGISTER_TIMEOUT" default:"3s"`
	IdleHorizon        time.Duration `envconfig:"IDLE_HORIZON" default:"5m"`
	GCInterval         time.Duration `envconfig:"GC_INTERVAL" default:"1m"`
}

type Store struct {
	AdminIDs          []string      `envconfig:"ADMIN_IDS"`
	ChannelID         string        `envconfig:"CHANNEL_ID" default:"stock"`
	BotID             string        `envconfig:"BOT_ID" default:"storefront-bot"`
	AlertThreshold    int64         `envconfig:"STOCK_ALERT_THRESHOLD" default:"5"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"5m"`
	IOTimeout         time.Duration `envconfig:"IO_TIMEOUT" default:"10s"`
	ScanLimit         int           `envconfig:"HISTORY_SCAN_LIMIT" default:"50"`
}

type RateLimit struct {
	MaxRequests    int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window         time.Duration `envconfig:"WINDOW" default:"1m"`
	ClicksPerSec   float64       `envconfig:"CLICKS_PER_SECOND" default:"1"`
	ClickBurst     int           `envconfig:"CLICK_BURST" default:"3"`
	LimiterIdleTTL time.Duration `envconfig:"LIMITER_IDLE_TTL" default:"10m"`
}

type App struct {
	Env       string     `envconfig:"APP_ENV" default:"development"`
	Server    *Server    `envconfig:"SERVER"`
	Log       *Log       `envconfig:"LOG"`
	DB        *DB        `envconfig:"DATABASE"`
	Cache     *Cache     `envconfig:"CACHE"`
	Redis     *Redis     `envconfig:"REDIS"`
	Lock      *Lock      `envconfig:"LOCK"`
	Store     *Store     `envconfig:"STORE"`
	RateLimit *RateLimit `envconfig:"RATE_LIMIT"`
	Jwt       *Jwt       `envconfig:"JWT"`
}
