// Package balance implements the three-denomination currency value used by
// the storefront: World Locks (WL), Diamond Locks (DL) and Blue Gem Locks (BGL).
//
// Invariants:
//   - 1 DL = 100 WL and 1 BGL = 10 000 WL.
//   - Every tier is non-negative.
//   - Arithmetic results are clamped to [0, Max] WL-equivalent.
package balance

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	// WLPerDL is the number of World Locks in one Diamond Lock.
	WLPerDL int64 = 100
	// WLPerBGL is the number of World Locks in one Blue Gem Lock.
	WLPerBGL int64 = 10_000
	// DLPerBGL is the number of Diamond Locks in one Blue Gem Lock.
	DLPerBGL int64 = 100
	// Max is the largest representable WL-equivalent value.
	Max int64 = 1_000_000
	// LargeDLThreshold is the DL amount at which normalization folds DL into BGL
	// even when the caller did not opt in.
	LargeDLThreshold int64 = 10_000
)

var (
	// ErrUnparsable is returned by Parse when no denomination could be read.
	ErrUnparsable = errors.New("balance: unparsable value")
	// ErrOutOfRange is returned by Parse when a tier exceeds what Max allows.
	ErrOutOfRange = errors.New("balance: tier out of range")
)

// Per-tier ceilings. No tier may hold more than Max WL worth on its own.
const (
	MaxWL  = Max
	MaxDL  = Max / WLPerDL
	MaxBGL = Max / WLPerBGL
)

// Balance is an immutable WL/DL/BGL triple.
type Balance struct {
	WL  int64 `json:"wl"`
	DL  int64 `json:"dl"`
	BGL int64 `json:"bgl"`
}

// Zero is the empty balance.
var Zero = Balance{}

// New returns a Balance with negative tiers clamped to zero.
func New(wl, dl, bgl int64) Balance {
	return Balance{WL: max(wl, 0), DL: max(dl, 0), BGL: max(bgl, 0)}
}

// FromWL decomposes a WL total greedily into BGL, then DL, then WL.
func FromWL(total int64) Balance {
	if total <= 0 {
		return Zero
	}
	bgl := total / WLPerBGL
	rest := total % WLPerBGL
	return Balance{WL: rest % WLPerDL, DL: rest / WLPerDL, BGL: bgl}
}

// TotalWL returns the WL-equivalent value of b.
func (b Balance) TotalWL() int64 {
	return b.WL + b.DL*WLPerDL + b.BGL*WLPerBGL
}

// Valid reports whether every tier lies within [0, its ceiling]. TotalWL
// cannot overflow for a valid balance.
func (b Balance) Valid() bool {
	return b.WL >= 0 && b.WL <= MaxWL &&
		b.DL >= 0 && b.DL <= MaxDL &&
		b.BGL >= 0 && b.BGL <= MaxBGL
}

// ValidDelta reports whether each per-tier delta is within its ceiling in
// magnitude. DeltaWL and ApplyDelta reject anything else.
func ValidDelta(dwl, ddl, dbgl int64) bool {
	return within(dwl, MaxWL) && within(ddl, MaxDL) && within(dbgl, MaxBGL)
}

func within(n, limit int64) bool {
	return n >= -limit && n <= limit
}

// IsZero reports whether b holds nothing.
func (b Balance) IsZero() bool {
	return b.TotalWL() == 0
}

// CanAfford reports whether b covers cost WL. A false answer is re-checked
// against a manual recomputation of the components; the recomputed value
// wins when the two disagree.
func (b Balance) CanAfford(cost int64) bool {
	stored := b.TotalWL()
	if stored >= cost {
		return true
	}
	manual := b.WL
	manual += b.DL * WLPerDL
	manual += b.BGL * WLPerBGL
	if manual != stored {
		slog.Error("balance total disagrees with its components",
			"stored_total", stored,
			"recomputed_total", manual,
			"wl", b.WL, "dl", b.DL, "bgl", b.BGL,
		)
	}
	if manual >= cost {
		slog.Warn("affordability decided by recomputed total",
			"recomputed_total", manual, "cost", cost)
		return true
	}
	return false
}

// CanAffordPrice floors a fractional price before checking affordability.
func (b Balance) CanAffordPrice(price float64) bool {
	return b.CanAfford(int64(math.Floor(price)))
}

// CanAffordBalance reports whether b covers the WL value of cost.
func (b Balance) CanAffordBalance(cost Balance) bool {
	return b.CanAfford(cost.TotalWL())
}

// Add returns b plus o, clamped to Max.
func (b Balance) Add(o Balance) Balance {
	return b.AddWL(o.TotalWL())
}

// Subtract returns b minus o, clamped at zero.
func (b Balance) Subtract(o Balance) Balance {
	return b.AddWL(-o.TotalWL())
}

// AddWL returns b shifted by delta WL. The result is clamped to [0, Max] and
// normalized without folding DL into BGL.
func (b Balance) AddWL(delta int64) Balance {
	total := clamp(b.TotalWL() + delta)
	return Normalize(Balance{WL: total}, false)
}

// SubtractWL is AddWL with the sign flipped.
func (b Balance) SubtractWL(amount int64) Balance {
	return b.AddWL(-amount)
}

// Normalize carries WL into DL whenever WL >= 100. DL is carried into BGL
// only when DL >= LargeDLThreshold or autoBGL is set, so normal magnitudes
// keep their DL display.
func Normalize(b Balance, autoBGL bool) Balance {
	b = New(b.WL, b.DL, b.BGL)
	if b.WL >= WLPerDL {
		b.DL += b.WL / WLPerDL
		b.WL %= WLPerDL
	}
	if b.DL >= LargeDLThreshold || (autoBGL && b.DL >= DLPerBGL) {
		b.BGL += b.DL / DLPerBGL
		b.DL %= DLPerBGL
	}
	return b
}

// DeltaWL returns the WL value of a per-tier delta. ok is false when a tier
// is outside ValidDelta; the value is then zero.
func DeltaWL(dwl, ddl, dbgl int64) (wl int64, ok bool) {
	if !ValidDelta(dwl, ddl, dbgl) {
		return 0, false
	}
	return dwl + ddl*WLPerDL + dbgl*WLPerBGL, true
}

// ApplyDelta adds per-tier deltas to b. A tier driven negative borrows from
// the tiers above it, so (0 WL, 1 DL) minus 20 WL is 80 WL. ok is false when
// the total would drop below zero, or when b or the delta is out of range;
// the returned balance is then Zero. The result is clamped to Max and
// normalized without folding DL into BGL.
func ApplyDelta(b Balance, dwl, ddl, dbgl int64) (result Balance, ok bool) {
	delta, ok := DeltaWL(dwl, ddl, dbgl)
	if !ok || !b.Valid() {
		return Zero, false
	}
	total := b.TotalWL() + delta
	if total < 0 {
		return Zero, false
	}
	if total > Max {
		return Normalize(FromWL(Max), false), true
	}
	c := Balance{WL: b.WL + dwl, DL: b.DL + ddl, BGL: b.BGL + dbgl}
	if c.WL < 0 {
		need := ceilDiv(-c.WL, WLPerDL)
		c.DL -= need
		c.WL += need * WLPerDL
	}
	if c.DL < 0 {
		need := ceilDiv(-c.DL, DLPerBGL)
		c.BGL -= need
		c.DL += need * DLPerBGL
	}
	if c.BGL < 0 {
		// Lower tiers hold the value; fall back to a plain decomposition.
		return Normalize(Balance{WL: total}, false), true
	}
	return Normalize(c, false), true
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// String formats b as "N BGL, N DL, N WL", omitting empty tiers.
func (b Balance) String() string {
	return b.Format()
}

// Format emits the non-zero tiers in BGL, DL, WL order with comma thousands
// separators. An empty balance formats as "0 WL".
func (b Balance) Format() string {
	if b.TotalWL() == 0 {
		return "0 WL"
	}
	parts := make([]string, 0, 3)
	if b.BGL > 0 {
		parts = append(parts, humanize.Comma(b.BGL)+" BGL")
	}
	if b.DL > 0 {
		parts = append(parts, humanize.Comma(b.DL)+" DL")
	}
	if b.WL > 0 {
		parts = append(parts, humanize.Comma(b.WL)+" WL")
	}
	return strings.Join(parts, ", ")
}

var tierPattern = regexp.MustCompile(`(?i)(\d[\d,]*)\s*(BGL|DL|WL)\b`)

// Parse reads the output of Format back into a Balance. Tiers may appear in
// any order; missing tiers are zero. A result outside Valid is rejected with
// ErrOutOfRange.
func Parse(s string) (Balance, error) {
	matches := tierPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return Zero, fmt.Errorf("%w: %q", ErrUnparsable, s)
	}
	var b Balance
	for _, m := range matches {
		n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
		if err != nil {
			return Zero, fmt.Errorf("%w: %q: %v", ErrUnparsable, s, err)
		}
		switch strings.ToUpper(m[2]) {
		case "BGL":
			b.BGL = addCapped(b.BGL, n, MaxBGL)
		case "DL":
			b.DL = addCapped(b.DL, n, MaxDL)
		case "WL":
			b.WL = addCapped(b.WL, n, MaxWL)
		}
		if !b.Valid() {
			return Zero, fmt.Errorf("%w: %q", ErrOutOfRange, s)
		}
	}
	return b, nil
}

// FormatPrice renders a WL price in the largest denomination it reaches:
// >= 10 000 as BGL, >= 100 as DL, otherwise WL.
func FormatPrice(wl int64) string {
	switch {
	case wl >= WLPerBGL:
		return humanize.CommafWithDigits(float64(wl)/float64(WLPerBGL), 2) + " BGL"
	case wl >= WLPerDL:
		return humanize.CommafWithDigits(float64(wl)/float64(WLPerDL), 2) + " DL"
	default:
		return humanize.Comma(wl) + " WL"
	}
}

// FormatDelta renders a signed WL difference, e.g. "+1 DL" or "-20 WL".
func FormatDelta(delta int64) string {
	if delta < 0 {
		return "-" + Normalize(Balance{WL: -delta}, false).Format()
	}
	return "+" + Normalize(Balance{WL: delta}, false).Format()
}

// addCapped returns acc+n, or limit+1 when the sum would pass limit, so the
// caller sees an out-of-range value without overflowing.
func addCapped(acc, n, limit int64) int64 {
	if n > limit || acc > limit-n {
		return limit + 1
	}
	return acc + n
}

func clamp(total int64) int64 {
	if total < 0 {
		return 0
	}
	if total > Max {
		return Max
	}
	return total
}
