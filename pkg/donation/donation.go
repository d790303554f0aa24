// Package donation credits balances from the in-game donation log messages
// relayed to the chat platform.
package donation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/ledger"
	"github.com/amirasaad/storefront/pkg/metrics"
	balancesvc "github.com/amirasaad/storefront/pkg/service/balance"
)

// FailureReply is sent when a donation cannot be matched to a user.
const FailureReply = "Failed to find growid"

var (
	// ErrNoAmount is returned when a donation names no lock quantity.
	ErrNoAmount = errors.New("donation: no amount found")

	forms = []*regexp.Regexp{
		regexp.MustCompile(`(?is)GrowID:\s*(\w+).*?Deposit:\s*([^\n]+)`),
		regexp.MustCompile(`(?is)GrowID:\s*(\w+).*?Jumlah:\s*([^\n]+)`),
	}
	lockPattern = regexp.MustCompile(`(?i)(\d[\d,]*)\s*(world|diamond|blue\s*gem)\s*locks?`)
)

// Donation is a parsed donation message.
type Donation struct {
	Handle string
	Amount balance.Balance
}

// Balances is the part of the balance service the ingestor needs.
type Balances interface {
	GetBalance(ctx context.Context, handle string) (balance.Balance, error)
	UpdateBalance(ctx context.Context, u balancesvc.Update) (balancesvc.Result, error)
}

// Maintenance reports whether the store is closed for maintenance.
type Maintenance interface {
	IsMaintenanceMode(ctx context.Context) (bool, error)
}

// Ingestor matches donation messages and credits the named user.
type Ingestor struct {
	balances Balances
	maint    Maintenance
	logger   *slog.Logger
}

// New creates a new Ingestor.
func New(balances Balances, maint Maintenance, logger *slog.Logger) *Ingestor {
	return &Ingestor{balances: balances, maint: maint, logger: logger.With("component", "donation")}
}

// Parse extracts the handle and amount from text. ok is false when text is
// not a donation message at all.
func Parse(text string) (d Donation, ok bool, err error) {
	for _, form := range forms {
		m := form.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, err := parseAmount(m[2])
		return Donation{Handle: m[1], Amount: amount}, true, err
	}
	return Donation{}, false, nil
}

func parseAmount(phrase string) (balance.Balance, error) {
	var b balance.Balance
	matches := lockPattern.FindAllStringSubmatch(phrase, -1)
	for _, m := range matches {
		n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
		if err != nil {
			return balance.Zero, fmt.Errorf("%w: %q", ErrNoAmount, phrase)
		}
		switch kind := strings.ToLower(strings.Join(strings.Fields(m[2]), " ")); kind {
		case "world":
			b.WL, err = addTier(b.WL, n, balance.MaxWL)
		case "diamond":
			b.DL, err = addTier(b.DL, n, balance.MaxDL)
		case "blue gem":
			b.BGL, err = addTier(b.BGL, n, balance.MaxBGL)
		}
		if err != nil {
			return balance.Zero, fmt.Errorf("%w: %q", err, phrase)
		}
	}
	if len(matches) == 0 {
		// Accept the short "N WL, N DL" form as well.
		parsed, err := balance.Parse(phrase)
		if errors.Is(err, balance.ErrOutOfRange) {
			return balance.Zero, err
		}
		if err != nil {
			return balance.Zero, fmt.Errorf("%w: %q", ErrNoAmount, phrase)
		}
		b = parsed
	}
	if b.IsZero() {
		return balance.Zero, fmt.Errorf("%w: %q", ErrNoAmount, phrase)
	}
	return b, nil
}

func addTier(acc, n, limit int64) (int64, error) {
	if n > limit || acc > limit-n {
		return 0, balance.ErrOutOfRange
	}
	return acc + n, nil
}

// Handle processes one inbound message. handled is false when the message
// is not a donation; otherwise reply is the text to send back.
func (i *Ingestor) Handle(ctx context.Context, text string) (reply string, handled bool) {
	d, ok, err := Parse(text)
	if !ok {
		return "", false
	}
	logger := i.logger.With("handle", d.Handle)
	if err != nil {
		logger.Warn("donation amount unreadable", "error", err)
		metrics.RecordDonation("unparsable")
		return FailureReply, true
	}

	on, err := i.maint.IsMaintenanceMode(ctx)
	if err != nil {
		logger.Error("maintenance lookup failed", "error", err)
		metrics.RecordDonation("failed")
		return domain.Message(domain.ErrDatabase), true
	}
	if on {
		// Not credited; the amount is logged so an admin can add it by hand.
		logger.Warn("donation rejected during maintenance", "amount", d.Amount.Format())
		metrics.RecordDonation("maintenance")
		return domain.Message(domain.ErrMaintenanceMode), true
	}

	if _, err := i.balances.GetBalance(ctx, d.Handle); err != nil {
		logger.Warn("donation for unknown handle", "error", err)
		metrics.RecordDonation("unknown_handle")
		return FailureReply, true
	}

	res, err := i.balances.UpdateBalance(ctx, balancesvc.Update{
		Handle:  d.Handle,
		WL:      d.Amount.WL,
		DL:      d.Amount.DL,
		BGL:     d.Amount.BGL,
		Details: "Donation: " + d.Amount.Format(),
		Type:    ledger.TypeDonation,
	})
	if err != nil {
		logger.Error("donation credit failed", "error", err)
		metrics.RecordDonation("failed")
		if errors.Is(err, domain.ErrBalanceNotFound) {
			return FailureReply, true
		}
		return domain.Message(err), true
	}
	metrics.RecordDonation("credited")
	logger.Info("donation credited", "amount", d.Amount.Format(), "balance", res.New.Format())
	return fmt.Sprintf("Successfully deposited %s to %s. Current balance: %s",
		d.Amount.Format(), d.Handle, res.New.Format()), true
}
