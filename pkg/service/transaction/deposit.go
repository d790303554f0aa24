package transaction

import (
	"context"
	"fmt"

	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/admin"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/events"
	"github.com/amirasaad/storefront/pkg/domain/ledger"
	"github.com/amirasaad/storefront/pkg/metrics"
	balancesvc "github.com/amirasaad/storefront/pkg/service/balance"
)

// AdminPermission is the permission required for admin-initiated
// deposits and withdrawals.
const AdminPermission = "admin"

// Amount is a per-tier quantity of currency.
type Amount struct {
	WL  int64 `json:"wl"`
	DL  int64 `json:"dl"`
	BGL int64 `json:"bgl"`
}

// Balance returns the amount as a Balance value.
func (a Amount) Balance() balance.Balance {
	return balance.Balance{WL: a.WL, DL: a.DL, BGL: a.BGL}
}

func (a Amount) validate() error {
	if !a.Balance().Valid() {
		return domain.ErrInvalidAmount
	}
	if total := a.Balance().TotalWL(); total == 0 || total > balance.Max {
		return domain.ErrInvalidAmount
	}
	return nil
}

// BalanceChange is the result of a deposit or withdrawal.
type BalanceChange struct {
	Handle     string          `json:"handle"`
	Amount     balance.Balance `json:"amount"`
	OldBalance balance.Balance `json:"old_balance"`
	NewBalance balance.Balance `json:"new_balance"`
}

// ProcessDeposit credits amount to the user bound to platformUserID. A
// non-empty adminID marks an administrative credit.
func (s *Service) ProcessDeposit(
	ctx context.Context,
	platformUserID string,
	amount Amount,
	adminID string,
) (res BalanceChange, err error) {
	entryType := ledger.TypeDeposit
	if adminID != "" {
		entryType = ledger.TypeAdminAdd
	}
	res, err = s.move(ctx, platformUserID, amount, adminID, entryType, 1)
	if err != nil {
		return BalanceChange{}, err
	}
	s.emit(ctx, events.DepositCompleted{
		Meta:           events.NewMeta(),
		PlatformUserID: platformUserID,
		Handle:         res.Handle,
		Amount:         res.Amount,
		NewBalance:     res.NewBalance,
		AdminID:        adminID,
	})
	return res, nil
}

// ProcessWithdrawal debits amount from the user bound to platformUserID.
// The user must hold at least amount.
func (s *Service) ProcessWithdrawal(
	ctx context.Context,
	platformUserID string,
	amount Amount,
	adminID string,
) (res BalanceChange, err error) {
	entryType := ledger.TypeWithdrawal
	if adminID != "" {
		entryType = ledger.TypeAdminRemove
	}
	res, err = s.move(ctx, platformUserID, amount, adminID, entryType, -1)
	if err != nil {
		return BalanceChange{}, err
	}
	s.emit(ctx, events.WithdrawalCompleted{
		Meta:           events.NewMeta(),
		PlatformUserID: platformUserID,
		Handle:         res.Handle,
		Amount:         res.Amount,
		NewBalance:     res.NewBalance,
		AdminID:        adminID,
	})
	return res, nil
}

// move applies amount with the given sign. It is shared by deposits and
// withdrawals, which differ only in direction and the affordability check.
func (s *Service) move(
	ctx context.Context,
	platformUserID string,
	amount Amount,
	adminID string,
	entryType ledger.EntryType,
	sign int64,
) (res BalanceChange, err error) {
	logger := s.logger.With(
		"platform_user_id", platformUserID,
		"type", entryType,
		"amount", amount.Balance().Format(),
	)
	logger.Info("balance transaction started")
	defer func() {
		metrics.RecordTransaction(string(entryType), domain.Code(err))
		if err != nil {
			logger.Warn("balance transaction failed", "error", err)
			s.failed(ctx, entryType, platformUserID, err)
			return
		}
		logger.Info("balance transaction successful", "new_balance", res.NewBalance.Format())
	}()

	if err := s.ensureOpen(ctx); err != nil {
		return BalanceChange{}, err
	}
	if adminID != "" {
		if err := s.admin.CheckPermission(adminID, AdminPermission); err != nil {
			return BalanceChange{}, err
		}
	}
	if err := amount.validate(); err != nil {
		return BalanceChange{}, err
	}
	handle, err := s.identity.GetHandle(ctx, platformUserID)
	if err != nil {
		return BalanceChange{}, err
	}
	s.emit(ctx, events.TransactionStarted{
		Meta:    events.NewMeta(),
		Kind:    entryType,
		BuyerID: platformUserID,
	})

	total := amount.Balance().TotalWL()
	record := &ledger.Transaction{
		BuyerID:    platformUserID,
		Quantity:   1,
		TotalPrice: total,
		Type:       entryType,
		Status:     ledger.StatusFailed,
	}

	if sign < 0 {
		current, err := s.balances.GetBalance(ctx, handle)
		if err == nil {
			_, err = s.affordable(ctx, handle, current, total, logger)
		}
		if err != nil {
			record.Details = domain.Code(err)
			s.record(ctx, record)
			return BalanceChange{}, err
		}
	}

	details := fmt.Sprintf("%s %s", entryType, amount.Balance().Format())
	if adminID != "" {
		details += " by admin " + adminID
	}
	updated, err := s.balances.UpdateBalance(ctx, balancesvc.Update{
		Handle:  handle,
		WL:      sign * amount.WL,
		DL:      sign * amount.DL,
		BGL:     sign * amount.BGL,
		Details: details,
		Type:    entryType,
	})
	if err != nil {
		err = classify(err)
		record.Details = domain.Code(err)
		s.record(ctx, record)
		return BalanceChange{}, err
	}
	record.Status = ledger.StatusCompleted
	record.Details = details
	s.record(ctx, record)

	if adminID != "" {
		action := admin.ActionDeposit
		if sign < 0 {
			action = admin.ActionWithdraw
		}
		if err := s.admin.LogAction(ctx, adminID, action, handle, details); err != nil {
			logger.Warn("audit log failed", "error", err)
		}
	}

	s.emit(ctx, events.TransactionCompleted{
		Meta:       events.NewMeta(),
		Kind:       entryType,
		BuyerID:    platformUserID,
		Handle:     handle,
		AmountWL:   sign * total,
		NewBalance: updated.New,
	})
	return BalanceChange{
		Handle:     handle,
		Amount:     amount.Balance(),
		OldBalance: updated.Old,
		NewBalance: updated.New,
	}, nil
}
