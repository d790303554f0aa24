package repository

import (
	"context"
	"time"

	"github.com/amirasaad/storefront/pkg/domain/product"
	productrepo "github.com/amirasaad/storefront/pkg/repository/product"
	"gorm.io/gorm"
)

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a product and stock repository bound to db.
func NewProductRepository(db *gorm.DB) productrepo.Repository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, p *product.Product) error {
	m := Product{
		Code:     p.Code,
		Name:     p.Name,
		Price:    p.Price,
		Category: p.Category,
	}
	if p.Description != "" {
		m.Description = &p.Description
	}
	err := run(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
	if err != nil {
		return err
	}
	p.CreatedAt, p.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *productRepository) Get(ctx context.Context, code string) (*product.Product, error) {
	var m Product
	err := run(func() error {
		return r.db.WithContext(ctx).Where("code = ?", code).First(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return mapProductModel(&m), nil
}

func (r *productRepository) List(ctx context.Context) ([]product.Product, error) {
	var models []Product
	err := run(func() error {
		return r.db.WithContext(ctx).Order("category ASC").Order("code ASC").Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]product.Product, 0, len(models))
	for i := range models {
		out = append(out, *mapProductModel(&models[i]))
	}
	return out, nil
}

func (r *productRepository) AddStockLine(ctx context.Context, code, content, addedBy string) error {
	m := Stock{
		ProductCode: code,
		Content:     content,
		Status:      string(product.StockAvailable),
		AddedBy:     addedBy,
	}
	return run(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

func (r *productRepository) CountAvailable(ctx context.Context, code string) (int64, error) {
	var count int64
	err := run(func() error {
		return r.db.WithContext(ctx).Model(&Stock{}).
			Where("product_code = ? AND status = ?", code, product.StockAvailable).
			Count(&count).Error
	})
	return count, err
}

func (r *productRepository) Available(ctx context.Context, code string, n int) ([]product.StockLine, error) {
	var models []Stock
	err := run(func() error {
		return r.db.WithContext(ctx).
			Where("product_code = ? AND status = ?", code, product.StockAvailable).
			Order("added_at ASC").Order("id ASC").
			Limit(n).
			Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	return mapStockModels(models), nil
}

func (r *productRepository) TransitionStock(
	ctx context.Context,
	code string,
	ids []int64,
	from, to product.StockStatus,
	buyer *string,
) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int64
	err := run(func() error {
		res := r.db.WithContext(ctx).Model(&Stock{}).
			Where("id IN ? AND product_code = ? AND status = ?", ids, code, from).
			Updates(map[string]any{
				"status":       to,
				"buyer_growid": buyer,
				"updated_at":   time.Now().UTC(),
			})
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

func (r *productRepository) StockByIDs(ctx context.Context, ids []int64) ([]product.StockLine, error) {
	var models []Stock
	err := run(func() error {
		return r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	return mapStockModels(models), nil
}

func mapProductModel(m *Product) *product.Product {
	p := &product.Product{
		Code:      m.Code,
		Name:      m.Name,
		Price:     m.Price,
		Category:  m.Category,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Description != nil {
		p.Description = *m.Description
	}
	if p.Category == "" {
		p.Category = product.DefaultCategory
	}
	return p
}

func mapStockModels(models []Stock) []product.StockLine {
	out := make([]product.StockLine, 0, len(models))
	for _, m := range models {
		out = append(out, product.StockLine{
			ID:          m.ID,
			ProductCode: m.ProductCode,
			Content:     m.Content,
			Status:      product.StockStatus(m.Status),
			AddedBy:     m.AddedBy,
			BuyerHandle: m.BuyerHandle,
			AddedAt:     m.AddedAt,
			UpdatedAt:   m.UpdatedAt,
		})
	}
	return out
}

var _ productrepo.Repository = (*productRepository)(nil)
