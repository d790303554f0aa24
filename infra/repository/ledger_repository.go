package repository

import (
	"context"

	"github.com/amirasaad/storefront/pkg/domain/ledger"
	ledgerrepo "github.com/amirasaad/storefront/pkg/repository/ledger"
	txrepo "github.com/amirasaad/storefront/pkg/repository/transaction"
	"gorm.io/gorm"
)

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a balance journal repository bound to db.
func NewLedgerRepository(db *gorm.DB) ledgerrepo.Repository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Append(ctx context.Context, e *ledger.Entry) error {
	m := BalanceTx{
		Handle:     e.Handle,
		Type:       string(e.Type),
		Details:    e.Details,
		OldBalance: e.OldBalance,
		NewBalance: e.NewBalance,
	}
	if e.ProductCode != "" {
		m.ProductCode = &e.ProductCode
	}
	err := run(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
	if err != nil {
		return err
	}
	e.ID, e.CreatedAt = m.ID, m.CreatedAt
	return nil
}

func (r *ledgerRepository) ListByHandle(ctx context.Context, handle string, limit, offset int) ([]ledger.Entry, error) {
	var models []BalanceTx
	err := run(func() error {
		return r.db.WithContext(ctx).
			Where("growid = ?", handle).
			Order("created_at DESC").Order("id DESC").
			Limit(limit).Offset(offset).
			Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Entry, 0, len(models))
	for _, m := range models {
		e := ledger.Entry{
			ID:         m.ID,
			Handle:     m.Handle,
			Type:       ledger.EntryType(m.Type),
			Details:    m.Details,
			OldBalance: m.OldBalance,
			NewBalance: m.NewBalance,
			CreatedAt:  m.CreatedAt,
		}
		if m.ProductCode != nil {
			e.ProductCode = *m.ProductCode
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *ledgerRepository) RenameHandle(ctx context.Context, oldHandle, newHandle string) (int64, error) {
	var affected int64
	err := run(func() error {
		res := r.db.WithContext(ctx).Model(&BalanceTx{}).
			Where("growid = ?", oldHandle).
			Update("growid", newHandle)
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a transaction record repository bound to db.
func NewTransactionRepository(db *gorm.DB) txrepo.Repository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *ledger.Transaction) error {
	m := Transaction{
		BuyerID:     tx.BuyerID,
		ProductCode: tx.ProductCode,
		Quantity:    tx.Quantity,
		TotalPrice:  tx.TotalPrice,
		Type:        string(tx.Type),
		Status:      string(tx.Status),
		Details:     tx.Details,
	}
	err := run(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
	if err != nil {
		return err
	}
	tx.ID, tx.CreatedAt, tx.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *transactionRepository) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]ledger.Transaction, error) {
	var models []Transaction
	err := run(func() error {
		return r.db.WithContext(ctx).
			Where("buyer_id = ?", buyerID).
			Order("created_at DESC").Order("id DESC").
			Limit(limit).
			Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Transaction, 0, len(models))
	for _, m := range models {
		out = append(out, ledger.Transaction{
			ID:          m.ID,
			BuyerID:     m.BuyerID,
			ProductCode: m.ProductCode,
			Quantity:    m.Quantity,
			TotalPrice:  m.TotalPrice,
			Type:        ledger.EntryType(m.Type),
			Status:      ledger.TxStatus(m.Status),
			Details:     m.Details,
			CreatedAt:   m.CreatedAt,
			UpdatedAt:   m.UpdatedAt,
		})
	}
	return out, nil
}

var (
	_ ledgerrepo.Repository = (*ledgerRepository)(nil)
	_ txrepo.Repository     = (*transactionRepository)(nil)
)
