package livestock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/product"
	"github.com/amirasaad/storefront/pkg/metrics"
)

// Catalog is the product view the display renders.
type Catalog interface {
	GetAllProducts(ctx context.Context) ([]product.Product, error)
	GetStockCount(ctx context.Context, code string) (int64, error)
}

// Maintenance reports whether the store is closed.
type Maintenance interface {
	IsMaintenanceMode(ctx context.Context) (bool, error)
}

// DisplayConfig configures the DisplayManager.
type DisplayConfig struct {
	ChannelID      string
	BotID          string
	AlertThreshold int64
	ScanLimit      int
	IOTimeout      time.Duration
}

// Health is the status of a manager as exposed on the health endpoint.
type Health struct {
	Healthy      bool      `json:"healthy"`
	LastError    string    `json:"last_error,omitempty"`
	ErrorCount   int       `json:"error_count"`
	LastUpdate   time.Time `json:"last_update,omitzero"`
	PeerHealthy  bool      `json:"peer_healthy"`
	PeerError    string    `json:"peer_error,omitempty"`
	MessageID    string    `json:"message_id,omitempty"`
	HasControls  bool      `json:"has_controls"`
	Degradations int       `json:"degradations,omitempty"`
}

// peerStatus is the health of the other manager, written by that manager
// directly. Neither manager notifies the other through a method.
type peerStatus struct {
	healthy   atomic.Bool
	lastError atomic.Value
}

func (p *peerStatus) set(healthy bool, lastError string) {
	p.healthy.Store(healthy)
	p.lastError.Store(lastError)
}

func (p *peerStatus) errorText() string {
	s, _ := p.lastError.Load().(string)
	return s
}

// DisplayManager owns the stock message on the display channel.
type DisplayManager struct {
	surface Surface
	catalog Catalog
	maint   Maintenance
	cfg     DisplayConfig
	logger  *slog.Logger

	controls *ControlManager
	// Written by the ControlManager.
	peer peerStatus

	mu          sync.Mutex
	messageID   string
	fingerprint uint64
	hasControls bool

	healthMu sync.RWMutex
	health   Health
}

// NewDisplayManager creates a DisplayManager. Attach controls with
// NewControlManager.
func NewDisplayManager(
	surface Surface,
	catalog Catalog,
	maint Maintenance,
	cfg DisplayConfig,
	logger *slog.Logger,
) *DisplayManager {
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = 50
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = 10 * time.Second
	}
	d := &DisplayManager{
		surface: surface,
		catalog: catalog,
		maint:   maint,
		cfg:     cfg,
		logger:  logger.With("component", "display"),
		health:  Health{Healthy: true},
	}
	d.peer.set(true, "")
	return d
}

// FindLastMessage scans recent channel history for the newest stock
// message posted by the bot.
func (d *DisplayManager) FindLastMessage(ctx context.Context) (Message, bool, error) {
	msgs, err := d.surface.RecentMessages(ctx, d.cfg.ChannelID, d.cfg.ScanLimit)
	if err != nil {
		return Message{}, false, fmt.Errorf("scan channel history: %w", err)
	}
	for _, m := range msgs {
		if m.AuthorID == d.cfg.BotID && strings.Contains(m.Content, TitleToken) {
			return m, true, nil
		}
	}
	return Message{}, false, nil
}

// CreateSnapshot composes the current catalogue grouped by category.
func (d *DisplayManager) CreateSnapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{TakenAt: time.Now().UTC()}
	on, err := d.maint.IsMaintenanceMode(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read maintenance flag: %w", err)
	}
	if on {
		snap.Maintenance = true
		return snap, nil
	}

	products, err := d.catalog.GetAllProducts(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read catalogue: %w", err)
	}
	byCategory := make(map[string][]Item)
	for _, p := range products {
		count, err := d.catalog.GetStockCount(ctx, p.Code)
		if err != nil {
			return Snapshot{}, fmt.Errorf("count stock of %s: %w", p.Code, err)
		}
		byCategory[p.Category] = append(byCategory[p.Category], Item{
			Code:  p.Code,
			Name:  p.Name,
			Price: balance.FormatPrice(p.PriceWL()),
			Stock: count,
			Level: LevelFor(count, d.cfg.AlertThreshold),
		})
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		snap.Sections = append(snap.Sections, Section{Category: c, Items: byCategory[c]})
	}
	return snap, nil
}

// Update renders a fresh snapshot into the stock message, creating the
// message when it does not exist.
func (d *DisplayManager) Update(ctx context.Context) error {
	return d.refresh(ctx, true)
}

// Reconcile is Update that skips the edit when neither the catalogue nor
// the controls changed and the message still carries its controls.
func (d *DisplayManager) Reconcile(ctx context.Context) error {
	return d.refresh(ctx, false)
}

func (d *DisplayManager) refresh(ctx context.Context, force bool) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.IOTimeout)
	defer cancel()
	d.mu.Lock()
	defer d.mu.Unlock()

	snap, err := d.CreateSnapshot(ctx)
	if err != nil {
		return d.fail(err)
	}
	var controls []Control
	if d.controls != nil {
		controls, err = d.controls.View(ctx)
		if err != nil {
			d.logger.Warn("rendering without controls", "error", err)
			controls = nil
		}
	}
	fp := snap.Fingerprint(controls)

	if !force && d.messageID != "" && fp == d.fingerprint && d.hasControls {
		exists, err := d.stillThere(ctx)
		if err != nil {
			return d.fail(err)
		}
		if exists {
			metrics.RecordDisplayUpdate("unchanged")
			d.ok()
			return nil
		}
		d.messageID = ""
	}

	if d.messageID == "" {
		if m, found, err := d.FindLastMessage(ctx); err != nil {
			d.logger.Warn("message lookup failed, posting a new one", "error", err)
		} else if found {
			d.messageID = m.ID
		}
	}

	msg := Message{
		ID:        d.messageID,
		ChannelID: d.cfg.ChannelID,
		AuthorID:  d.cfg.BotID,
		Content:   snap.Render(),
		Controls:  controls,
	}
	result := "edited"
	if d.messageID != "" {
		_, err = d.surface.Edit(ctx, d.cfg.ChannelID, msg)
		if errors.Is(err, ErrMessageNotFound) {
			d.logger.Info("stock message disappeared, recreating", "message_id", d.messageID)
			d.messageID = ""
			msg.ID = ""
			err = nil
		}
	}
	if err == nil && d.messageID == "" {
		var sent Message
		sent, err = d.surface.Send(ctx, d.cfg.ChannelID, msg)
		d.messageID = sent.ID
		result = "created"
	}
	if err != nil {
		metrics.RecordDisplayUpdate("error")
		return d.fail(fmt.Errorf("publish stock message: %w", err))
	}

	d.fingerprint = fp
	d.hasControls = len(controls) > 0
	metrics.RecordDisplayUpdate(result)
	d.ok()
	return nil
}

func (d *DisplayManager) stillThere(ctx context.Context) (bool, error) {
	msgs, err := d.surface.RecentMessages(ctx, d.cfg.ChannelID, d.cfg.ScanLimit)
	if err != nil {
		return false, fmt.Errorf("scan channel history: %w", err)
	}
	for _, m := range msgs {
		if m.ID == d.messageID {
			return true, nil
		}
	}
	return false, nil
}

func (d *DisplayManager) fail(err error) error {
	d.healthMu.Lock()
	d.health.Healthy = false
	d.health.LastError = err.Error()
	d.health.ErrorCount++
	d.healthMu.Unlock()
	if d.controls != nil {
		d.controls.peer.set(false, err.Error())
	}
	d.logger.Error("display update failed", "error", err)
	return err
}

func (d *DisplayManager) ok() {
	d.healthMu.Lock()
	d.health.Healthy = true
	d.health.LastError = ""
	d.health.LastUpdate = time.Now().UTC()
	d.healthMu.Unlock()
	if d.controls != nil {
		d.controls.peer.set(true, "")
	}
}

// Health returns the display status and the mirrored control status.
func (d *DisplayManager) Health() Health {
	d.healthMu.RLock()
	h := d.health
	d.healthMu.RUnlock()
	h.PeerHealthy = d.peer.healthy.Load()
	h.PeerError = d.peer.errorText()
	d.mu.Lock()
	h.MessageID = d.messageID
	h.HasControls = d.hasControls
	d.mu.Unlock()
	return h
}
