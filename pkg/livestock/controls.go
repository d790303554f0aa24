package livestock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/admin"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/ledger"
	"github.com/amirasaad/storefront/pkg/lock"
	"github.com/amirasaad/storefront/pkg/metrics"
	"github.com/amirasaad/storefront/pkg/response"
	"github.com/amirasaad/storefront/pkg/service/transaction"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

var (
	// ErrDegraded is returned by View while the display is unhealthy.
	ErrDegraded       = errors.New("livestock: display unhealthy, controls withheld")
	ErrUnknownControl = errors.New("livestock: unknown control")
)

// BusyMessage is the reply when the user's previous interaction still holds
// its lock.
const BusyMessage = "Your previous action is still processing, please wait."

// Identity resolves and binds platform users.
type Identity interface {
	Register(ctx context.Context, platformUserID, handle string) (string, error)
	GetHandle(ctx context.Context, platformUserID string) (string, error)
}

// BalanceReader reads balances by handle.
type BalanceReader interface {
	GetBalance(ctx context.Context, handle string) (balance.Balance, error)
}

// Engine runs purchases and reads history.
type Engine interface {
	ProcessPurchase(ctx context.Context, buyerID, productCode string, quantity int) (transaction.PurchaseResult, error)
	GetTransactionHistory(ctx context.Context, platformUserID string, limit, offset int) ([]ledger.HistoryEntry, error)
}

// WorldInfo reads the pickup world.
type WorldInfo interface {
	GetWorldInfo(ctx context.Context) (admin.WorldInfo, error)
}

// ControlConfig configures the ControlManager.
type ControlConfig struct {
	LockTimeout   time.Duration
	ViewAttempts  int
	RetryInterval time.Duration
	SummaryEvery  int64
	MaxOptions    int
	HistoryLimit  int
	RatePerSecond float64
	RateBurst     int
}

// DefaultControlConfig returns the production settings.
func DefaultControlConfig() ControlConfig {
	return ControlConfig{
		LockTimeout:   3 * time.Second,
		ViewAttempts:  3,
		RetryInterval: 200 * time.Millisecond,
		SummaryEvery:  10,
		MaxOptions:    25,
		HistoryLimit:  10,
		RatePerSecond: 1,
		RateBurst:     3,
	}
}

// Interaction is one click on a control. A nil Quantity buys one unit; an
// explicit zero is passed through and rejected by the engine.
type Interaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id" validate:"required"`
	Control     ControlID `json:"control" validate:"required,oneof=register balance world buy history"`
	Handle      string    `json:"handle,omitempty"`
	ProductCode string    `json:"product_code,omitempty"`
	Quantity    *int      `json:"quantity,omitempty"`
}

// ControlStats counts the use of one control.
type ControlStats struct {
	Clicks   int64     `json:"clicks"`
	Errors   int64     `json:"errors"`
	LastUsed time.Time `json:"last_used,omitzero"`
}

// ControlManager serves interactions on the controls attached to the stock
// message.
type ControlManager struct {
	display  *DisplayManager
	identity Identity
	balances BalanceReader
	engine   Engine
	world    WorldInfo
	catalog  Catalog
	surface  Surface
	locks    *lock.Registry
	limiter  *RateLimiter
	cfg      ControlConfig
	logger   *slog.Logger

	// Written by the DisplayManager.
	peer peerStatus

	mu     sync.Mutex
	stats  map[ControlID]*ControlStats
	clicks int64
	health Health
}

// ControlDeps are the collaborators of a ControlManager.
type ControlDeps struct {
	Identity Identity
	Balances BalanceReader
	Engine   Engine
	World    WorldInfo
	Catalog  Catalog
	Surface  Surface
	Locks    *lock.Registry
	Logger   *slog.Logger
}

// NewControlManager attaches a ControlManager to display.
func NewControlManager(display *DisplayManager, deps ControlDeps, cfg ControlConfig) *ControlManager {
	if cfg.ViewAttempts < 1 {
		cfg.ViewAttempts = 1
	}
	if cfg.SummaryEvery < 1 {
		cfg.SummaryEvery = 10
	}
	if cfg.HistoryLimit < 1 {
		cfg.HistoryLimit = 10
	}
	c := &ControlManager{
		display:  display,
		identity: deps.Identity,
		balances: deps.Balances,
		engine:   deps.Engine,
		world:    deps.World,
		catalog:  deps.Catalog,
		surface:  deps.Surface,
		locks:    deps.Locks,
		limiter:  NewRateLimiter(cfg.RatePerSecond, cfg.RateBurst),
		cfg:      cfg,
		logger:   deps.Logger.With("component", "controls"),
		stats:    make(map[ControlID]*ControlStats),
		health:   Health{Healthy: true},
	}
	c.peer.set(true, "")
	display.controls = c
	return c
}

// Limiter exposes the per-user limiter for periodic cleanup.
func (c *ControlManager) Limiter() *RateLimiter { return c.limiter }

// View builds the controls to attach to the stock message. It refuses while
// the display is unhealthy and retries transient build failures.
func (c *ControlManager) View(ctx context.Context) ([]Control, error) {
	if !c.peer.healthy.Load() {
		reason := c.peer.errorText()
		c.mu.Lock()
		c.health.Degradations++
		c.health.LastError = "degraded: " + reason
		c.mu.Unlock()
		c.logger.Warn("controls withheld", "reason", reason)
		return nil, fmt.Errorf("%w: %s", ErrDegraded, reason)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryInterval
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.ViewAttempts-1)), ctx)

	var controls []Control
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		controls, err = c.build(ctx)
		if err != nil {
			c.logger.Warn("building controls failed", "attempt", attempt, "error", err)
		}
		return err
	}, b)
	if err != nil {
		c.fail(err)
		return nil, err
	}
	c.ok()
	return controls, nil
}

func (c *ControlManager) build(ctx context.Context) ([]Control, error) {
	products, err := c.catalog.GetAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	options := make([]Option, 0, len(products))
	for _, p := range products {
		if c.cfg.MaxOptions > 0 && len(options) == c.cfg.MaxOptions {
			break
		}
		options = append(options, Option{
			Value: p.Code,
			Label: fmt.Sprintf("%s (%s)", p.Name, balance.FormatPrice(p.PriceWL())),
		})
	}
	return []Control{
		{ID: ControlRegister, Label: "Set GrowID"},
		{ID: ControlBalance, Label: "Balance"},
		{ID: ControlWorld, Label: "World Info"},
		{ID: ControlBuy, Label: "Buy", Options: options},
		{ID: ControlHistory, Label: "History"},
	}, nil
}

// HandleInteraction serves one click. The reply is always an envelope;
// failures carry the error code.
func (c *ControlManager) HandleInteraction(ctx context.Context, in Interaction) (reply response.Response[any]) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	logger := c.logger.With("interaction_id", in.ID, "user_id", in.UserID, "control", in.Control)
	logger.Debug("HandleInteraction started")

	var err error
	defer func() {
		c.count(in.Control, err)
		if err != nil {
			logger.Info("HandleInteraction failed", "error", err)
			return
		}
		logger.Debug("HandleInteraction successful")
	}()

	if !c.limiter.Allow(in.UserID) {
		err = domain.ErrRateLimited
		return response.Fail[any](err)
	}
	if in.Control.Mutates() {
		if err = c.ensureOpen(ctx); err != nil {
			return response.Fail[any](err)
		}
	}
	if lerr := c.locks.Acquire(ctx, lock.Interaction(in.UserID), c.cfg.LockTimeout); lerr != nil {
		err = lerr
		reply = response.Fail[any](err)
		reply.Message = BusyMessage
		return reply
	}
	defer c.locks.Release(lock.Interaction(in.UserID))

	var (
		data any
		text string
	)
	data, text, err = c.dispatch(ctx, in, logger)
	return response.From(data, err, text)
}

func (c *ControlManager) ensureOpen(ctx context.Context) error {
	on, err := c.display.maint.IsMaintenanceMode(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	if on {
		return domain.ErrMaintenanceMode
	}
	return nil
}

func (c *ControlManager) dispatch(ctx context.Context, in Interaction, logger *slog.Logger) (any, string, error) {
	switch in.Control {
	case ControlRegister:
		handle, err := c.identity.Register(ctx, in.UserID, in.Handle)
		if err != nil {
			return nil, "", err
		}
		return map[string]string{"handle": handle}, fmt.Sprintf("Your GrowID is now %s.", handle), nil

	case ControlBalance:
		handle, err := c.identity.GetHandle(ctx, in.UserID)
		if err != nil {
			return nil, "", err
		}
		b, err := c.balances.GetBalance(ctx, handle)
		if err != nil {
			return nil, "", err
		}
		return b, fmt.Sprintf("Balance of %s: %s", handle, b.Format()), nil

	case ControlWorld:
		w, err := c.world.GetWorldInfo(ctx)
		if err != nil {
			return nil, "", err
		}
		if w.World == "" {
			return w, "World information has not been set yet.", nil
		}
		return w, fmt.Sprintf("World: %s | Owner: %s | Bot: %s", w.World, w.Owner, w.BotName), nil

	case ControlBuy:
		qty := 1
		if in.Quantity != nil {
			qty = *in.Quantity
		}
		res, err := c.engine.ProcessPurchase(ctx, in.UserID, in.ProductCode, qty)
		if err != nil {
			return nil, "", err
		}
		dm := fmt.Sprintf("Your purchase of %dx %s:\n%s", res.Quantity, res.ProductCode, strings.Join(res.Content, "\n"))
		if err := c.surface.SendDirect(ctx, in.UserID, dm); err != nil {
			logger.Warn("delivering purchase by direct message failed", "error", err)
		}
		return res, fmt.Sprintf("Bought %dx %s for %s. New balance: %s",
			res.Quantity, res.ProductCode, balance.FormatPrice(res.TotalPaid), res.NewBalance.Format()), nil

	case ControlHistory:
		entries, err := c.engine.GetTransactionHistory(ctx, in.UserID, c.cfg.HistoryLimit, 0)
		if err != nil {
			return nil, "", err
		}
		if len(entries) == 0 {
			return entries, "No transactions yet.", nil
		}
		var sb strings.Builder
		for _, e := range entries {
			fmt.Fprintf(&sb, "%s %s %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.AmountDisplay, e.Details)
		}
		return entries, strings.TrimRight(sb.String(), "\n"), nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnknownControl, in.Control)
}

func (c *ControlManager) count(id ControlID, err error) {
	code := domain.Code(err)
	metrics.RecordControl(string(id), code)

	c.mu.Lock()
	s, ok := c.stats[id]
	if !ok {
		s = &ControlStats{}
		c.stats[id] = s
	}
	s.Clicks++
	s.LastUsed = time.Now().UTC()
	if err != nil {
		s.Errors++
	}
	c.clicks++
	summary := c.clicks%c.cfg.SummaryEvery == 0
	c.mu.Unlock()

	if summary {
		c.logSummary()
	}
}

func (c *ControlManager) logSummary() {
	report := c.Report()
	attrs := make([]any, 0, 2*len(report)+2)
	ids := make([]string, 0, len(report))
	for id := range report {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		s := report[ControlID(id)]
		attrs = append(attrs, id, fmt.Sprintf("%d clicks/%d errors", s.Clicks, s.Errors))
	}
	h := c.Health()
	attrs = append(attrs, "healthy", h.Healthy, "display_healthy", h.PeerHealthy)
	c.logger.Info("control summary", attrs...)
}

// Report returns a copy of the per-control statistics.
func (c *ControlManager) Report() map[ControlID]ControlStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[ControlID]ControlStats, len(c.stats))
	for id, s := range c.stats {
		out[id] = *s
	}
	return out
}

func (c *ControlManager) fail(err error) {
	c.mu.Lock()
	c.health.Healthy = false
	c.health.LastError = err.Error()
	c.health.ErrorCount++
	c.mu.Unlock()
	c.display.peer.set(false, err.Error())
	c.logger.Error("controls unavailable", "error", err)
}

func (c *ControlManager) ok() {
	c.mu.Lock()
	c.health.Healthy = true
	c.health.LastError = ""
	c.health.LastUpdate = time.Now().UTC()
	c.mu.Unlock()
	c.display.peer.set(true, "")
}

// Health returns the control status and the mirrored display status.
func (c *ControlManager) Health() Health {
	c.mu.Lock()
	h := c.health
	c.mu.Unlock()
	h.PeerHealthy = c.peer.healthy.Load()
	h.PeerError = c.peer.errorText()
	return h
}
