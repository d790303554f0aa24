package transaction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/events"
	"github.com/amirasaad/storefront/pkg/domain/ledger"
	"github.com/amirasaad/storefront/pkg/domain/product"
	"github.com/amirasaad/storefront/pkg/lock"
	"github.com/amirasaad/storefront/pkg/metrics"
	balancesvc "github.com/amirasaad/storefront/pkg/service/balance"
)

// PurchaseResult is the delivery of a successful purchase.
type PurchaseResult struct {
	ProductCode string          `json:"product_code"`
	Quantity    int             `json:"quantity"`
	Content     []string        `json:"content"`
	TotalPaid   int64           `json:"total_paid"`
	NewBalance  balance.Balance `json:"new_balance"`
}

// ProcessPurchase sells quantity units of productCode to buyerID. Either
// every unit is delivered and paid for, or stock and balance are left as
// they were.
func (s *Service) ProcessPurchase(
	ctx context.Context,
	buyerID, productCode string,
	quantity int,
) (res PurchaseResult, err error) {
	logger := s.logger.With("buyer_id", buyerID, "product_code", productCode, "quantity", quantity)
	logger.Info("ProcessPurchase started")
	start := time.Now()
	defer func() {
		metrics.RecordPurchaseDuration(time.Since(start))
		metrics.RecordTransaction(string(ledger.TypePurchase), domain.Code(err))
		if err != nil {
			logger.Warn("ProcessPurchase failed", "error", err)
			s.failed(ctx, ledger.TypePurchase, buyerID, err)
			return
		}
		logger.Info("ProcessPurchase successful", "total_paid", res.TotalPaid)
	}()

	if err := s.ensureOpen(ctx); err != nil {
		return PurchaseResult{}, err
	}
	if quantity < 1 {
		return PurchaseResult{}, domain.ErrInvalidAmount
	}

	err = s.locks.With(ctx, lock.Purchase(buyerID, productCode), s.cfg.PurchaseLockTimeout, func() error {
		var err error
		res, err = s.purchase(ctx, buyerID, productCode, quantity)
		return err
	})
	if err != nil {
		return PurchaseResult{}, classify(err)
	}
	return res, nil
}

func (s *Service) purchase(ctx context.Context, buyerID, code string, quantity int) (PurchaseResult, error) {
	logger := s.logger.With("buyer_id", buyerID, "product_code", code)
	s.emit(ctx, events.TransactionStarted{
		Meta:        events.NewMeta(),
		Kind:        ledger.TypePurchase,
		BuyerID:     buyerID,
		ProductCode: code,
		Quantity:    quantity,
	})

	handle, err := s.identity.GetHandle(ctx, buyerID)
	if err != nil {
		return PurchaseResult{}, err
	}
	p, err := s.catalog.GetProduct(ctx, code)
	if err != nil {
		return PurchaseResult{}, err
	}

	record := &ledger.Transaction{
		BuyerID:     buyerID,
		ProductCode: &code,
		Quantity:    quantity,
		Type:        ledger.TypePurchase,
		Status:      ledger.StatusFailed,
	}
	res, err := s.deliver(ctx, handle, p, quantity, record, logger)
	if err != nil {
		record.Details = domain.Code(err) + ": " + err.Error()
		s.record(ctx, record)
		return PurchaseResult{}, err
	}
	record.Status = ledger.StatusCompleted
	s.record(ctx, record)

	s.emit(ctx, events.PurchaseCompleted{
		Meta:        events.NewMeta(),
		BuyerID:     buyerID,
		Handle:      handle,
		ProductCode: code,
		Quantity:    quantity,
		TotalPaid:   res.TotalPaid,
		Content:     res.Content,
		NewBalance:  res.NewBalance,
	})
	s.emit(ctx, events.TransactionCompleted{
		Meta:       events.NewMeta(),
		Kind:       ledger.TypePurchase,
		BuyerID:    buyerID,
		Handle:     handle,
		AmountWL:   -res.TotalPaid,
		NewBalance: res.NewBalance,
	})
	return res, nil
}

func (s *Service) deliver(
	ctx context.Context,
	handle string,
	p *product.Product,
	quantity int,
	record *ledger.Transaction,
	logger *slog.Logger,
) (PurchaseResult, error) {
	lines, err := s.catalog.GetAvailableStock(ctx, p.Code, quantity)
	if err != nil {
		return PurchaseResult{}, err
	}
	if len(lines) < quantity {
		return PurchaseResult{}, domain.ErrOutOfStock
	}

	total, err := product.TotalPrice(p.Price, quantity)
	if err != nil {
		return PurchaseResult{}, err
	}
	record.TotalPrice = total

	current, err := s.balances.GetBalance(ctx, handle)
	if err != nil {
		return PurchaseResult{}, err
	}
	if _, err := s.affordable(ctx, handle, current, total, logger.With("handle", handle)); err != nil {
		return PurchaseResult{}, err
	}

	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ID
	}
	n, err := s.catalog.UpdateStockStatus(ctx, p.Code, ids, product.StockSold, &handle)
	if err != nil {
		return PurchaseResult{}, err
	}
	if n < int64(len(ids)) {
		logger.Warn("stock selection raced", "requested", len(ids), "sold", n)
		s.restore(ctx, p.Code, s.soldTo(ctx, handle, ids, logger), logger)
		return PurchaseResult{}, domain.ErrOutOfStock
	}

	debit, err := s.balances.UpdateBalance(ctx, balancesvc.Update{
		Handle:      handle,
		WL:          -total,
		Details:     fmt.Sprintf("Purchase %dx %s", quantity, p.Name),
		Type:        ledger.TypePurchase,
		ProductCode: p.Code,
	})
	if err != nil {
		logger.Error("debit failed, restoring stock", "error", err)
		s.restore(ctx, p.Code, ids, logger)
		return PurchaseResult{}, fmt.Errorf("%w: %v", domain.ErrTransaction, err)
	}

	content := make([]string, len(lines))
	for i, l := range lines {
		content[i] = l.Content
	}
	record.Details = debit.Entry.Details
	return PurchaseResult{
		ProductCode: p.Code,
		Quantity:    quantity,
		Content:     content,
		TotalPaid:   total,
		NewBalance:  debit.New,
	}, nil
}

// soldTo narrows ids to the lines currently SOLD to handle. Another buyer
// may have taken the rest between selection and transition.
func (s *Service) soldTo(ctx context.Context, handle string, ids []int64, logger *slog.Logger) []int64 {
	lines, err := s.catalog.GetStockLines(ctx, ids)
	if err != nil {
		logger.Error("stock lookup failed; nothing restored", "ids", ids, "error", err)
		return nil
	}
	ours := make([]int64, 0, len(lines))
	for _, l := range lines {
		if l.Status == product.StockSold && l.BuyerHandle != nil && *l.BuyerHandle == handle {
			ours = append(ours, l.ID)
		}
	}
	return ours
}

// restore moves lines this attempt sold back to AVAILABLE.
func (s *Service) restore(ctx context.Context, code string, ids []int64, logger *slog.Logger) {
	n, err := s.catalog.UpdateStockStatus(ctx, code, ids, product.StockAvailable, nil)
	if err != nil {
		logger.Error("stock restore failed; lines stay SOLD", "ids", ids, "error", err)
		return
	}
	if n != int64(len(ids)) {
		logger.Error("stock restore incomplete", "ids", ids, "restored", n)
	}
}
