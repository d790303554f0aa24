package transaction

import (
	"context"
	"regexp"

	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/ledger"
	"github.com/amirasaad/storefront/pkg/domain/product"
)

// DefaultHistoryPage is used when a caller asks for a non-positive limit.
const DefaultHistoryPage = 10

var purchaseDetails = regexp.MustCompile(`^Purchase \d+x (.+)$`)

// GetTransactionHistory returns a page of the journal of the user bound to
// platformUserID, newest first, with the signed amount and the purchased
// product resolved for display.
func (s *Service) GetTransactionHistory(
	ctx context.Context,
	platformUserID string,
	limit, offset int,
) ([]ledger.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryPage
	}
	handle, err := s.identity.GetHandle(ctx, platformUserID)
	if err != nil {
		return nil, err
	}
	entries, err := s.balances.History(ctx, handle, limit, offset)
	if err != nil {
		return nil, classify(err)
	}

	byCode := make(map[string]product.Product)
	byName := make(map[string][]product.Product)
	if products, err := s.catalog.GetAllProducts(ctx); err != nil {
		s.logger.Warn("product lookup for history failed", "error", err)
	} else {
		for _, p := range products {
			byCode[p.Code] = p
			byName[p.Name] = append(byName[p.Name], p)
		}
	}

	out := make([]ledger.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		h := ledger.HistoryEntry{Entry: e}
		if delta, err := e.DeltaWL(); err == nil {
			h.AmountWL = delta
			h.AmountDisplay = balance.FormatDelta(delta)
		} else {
			s.logger.Warn("unparsable journal balance", "entry_id", e.ID, "error", err)
		}
		if e.Type == ledger.TypePurchase {
			if m := purchaseDetails.FindStringSubmatch(e.Details); m != nil {
				h.ProductName = m[1]
			}
			if p, ok := byCode[e.ProductCode]; ok {
				h.ProductName = p.Name
			} else if e.ProductCode == "" {
				// Rows written before the code was journaled carry only the
				// name; resolve it when exactly one product has that name.
				if same := byName[h.ProductName]; len(same) == 1 {
					h.ProductCode = same[0].Code
				}
			}
		}
		out = append(out, h)
	}
	return out, nil
}
