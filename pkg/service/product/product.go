// Package product provides the catalogue and the stock inventory.
package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirasaad/storefront/pkg/cache"
	"github.com/amirasaad/storefront/pkg/domain"
	"github.com/amirasaad/storefront/pkg/domain/admin"
	"github.com/amirasaad/storefront/pkg/domain/product"
	"github.com/amirasaad/storefront/pkg/repository"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

// Config holds cache lifetimes for catalogue projections.
type Config struct {
	ProductTTL    time.Duration
	StockCountTTL time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{ProductTTL: 5 * time.Minute, StockCountTTL: 30 * time.Second}
}

// Auditor records administrative catalogue changes.
type Auditor interface {
	LogAction(ctx context.Context, adminID, action, target, details string) error
}

// NewProduct is the input of CreateProduct.
type NewProduct struct {
	Code        string  `json:"code" validate:"required,max=32"`
	Name        string  `json:"name" validate:"required,max=100"`
	Price       float64 `json:"price" validate:"gte=0"`
	Category    string  `json:"category" validate:"max=50"`
	Description string  `json:"description" validate:"max=500"`
}

// Service provides catalogue and stock operations.
type Service struct {
	uow      repository.UnitOfWork
	cache    cache.Cache
	auditor  Auditor
	cfg      Config
	logger   *slog.Logger
	validate *validator.Validate
	loads    singleflight.Group
}

// New creates a new product Service. auditor may be nil.
func New(
	uow repository.UnitOfWork,
	c cache.Cache,
	auditor Auditor,
	cfg Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		uow:      uow,
		cache:    c,
		auditor:  auditor,
		cfg:      cfg,
		logger:   logger,
		validate: validator.New(),
	}
}

// GetProduct returns the product with code or domain.ErrProductNotFound.
func (s *Service) GetProduct(ctx context.Context, code string) (*product.Product, error) {
	var p product.Product
	if hit, _ := s.cache.Get(ctx, cache.ProductKey(code), &p); hit {
		return &p, nil
	}
	v, err, _ := s.loads.Do(cache.ProductKey(code), func() (any, error) {
		repo, err := s.uow.ProductRepository()
		if err != nil {
			return nil, err
		}
		p, err := repo.Get(ctx, code)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrProductNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		s.store(ctx, cache.ProductKey(code), p, s.cfg.ProductTTL)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*product.Product), nil
}

// GetAllProducts returns the catalogue ordered by category then code.
func (s *Service) GetAllProducts(ctx context.Context) ([]product.Product, error) {
	var all []product.Product
	if hit, _ := s.cache.Get(ctx, cache.AllProductsKey, &all); hit {
		return all, nil
	}
	v, err, _ := s.loads.Do(cache.AllProductsKey, func() (any, error) {
		repo, err := s.uow.ProductRepository()
		if err != nil {
			return nil, err
		}
		all, err := repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		s.store(ctx, cache.AllProductsKey, all, s.cfg.ProductTTL)
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]product.Product), nil
}

// CreateProduct validates and inserts a product. adminID is recorded in the
// audit log when non-empty.
func (s *Service) CreateProduct(ctx context.Context, in NewProduct, adminID string) (*product.Product, error) {
	logger := s.logger.With("code", in.Code, "admin_id", adminID)
	logger.Info("CreateProduct started")

	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		logger.Warn("CreateProduct failed: validation", "error", err)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && verrs[0].Field() == "Price" {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAmount, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidProduct, err)
	}
	p, err := product.New(in.Code, in.Name, in.Price, in.Category, in.Description)
	if err != nil {
		logger.Warn("CreateProduct failed: invalid product", "error", err)
		return nil, err
	}

	repo, err := s.uow.ProductRepository()
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, p); err != nil {
		logger.Error("CreateProduct failed", "error", err)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: product %s already exists", domain.ErrInvalidProduct, p.Code)
		}
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.forget(ctx, cache.AllProductsKey)
	s.forget(ctx, cache.ProductKey(p.Code))
	s.audit(ctx, adminID, admin.ActionAddProduct, p.Code, p.Name)
	logger.Info("CreateProduct successful")
	return p, nil
}

// AddStock inserts one AVAILABLE line per non-blank line of content. Lines
// are inserted independently, so a duplicate only fails itself.
func (s *Service) AddStock(ctx context.Context, code, content, addedBy string) (product.AddStockResult, error) {
	logger := s.logger.With("code", code, "added_by", addedBy)
	logger.Info("AddStock started")

	if _, err := s.GetProduct(ctx, code); err != nil {
		logger.Warn("AddStock failed: unknown product", "error", err)
		return product.AddStockResult{}, err
	}
	repo, err := s.uow.ProductRepository()
	if err != nil {
		return product.AddStockResult{}, err
	}

	lines := product.SplitStockLines(content)
	res := product.AddStockResult{TotalLines: len(lines)}
	for _, line := range lines {
		if err := repo.AddStockLine(ctx, code, line, addedBy); err != nil {
			res.FailedCount++
			logger.Debug("stock line rejected", "error", err)
			continue
		}
		res.SuccessCount++
	}
	s.forget(ctx, cache.StockCountKey(code))
	if res.SuccessCount > 0 {
		s.audit(ctx, addedBy, admin.ActionAddStock, code,
			fmt.Sprintf("%d/%d lines added", res.SuccessCount, res.TotalLines))
	}
	logger.Info("AddStock successful",
		"total", res.TotalLines, "added", res.SuccessCount, "failed", res.FailedCount)
	return res, nil
}

// GetStockCount returns the number of AVAILABLE lines of code.
func (s *Service) GetStockCount(ctx context.Context, code string) (int64, error) {
	var n int64
	if hit, _ := s.cache.Get(ctx, cache.StockCountKey(code), &n); hit {
		return n, nil
	}
	repo, err := s.uow.ProductRepository()
	if err != nil {
		return 0, err
	}
	n, err = repo.CountAvailable(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("count stock: %w", err)
	}
	s.store(ctx, cache.StockCountKey(code), n, s.cfg.StockCountTTL)
	return n, nil
}

// GetAvailableStock returns up to n AVAILABLE lines, oldest first. The
// lines are not reserved.
func (s *Service) GetAvailableStock(ctx context.Context, code string, n int) ([]product.StockLine, error) {
	if n < 1 {
		return nil, domain.ErrInvalidAmount
	}
	repo, err := s.uow.ProductRepository()
	if err != nil {
		return nil, err
	}
	lines, err := repo.Available(ctx, code, n)
	if err != nil {
		return nil, fmt.Errorf("read available stock: %w", err)
	}
	return lines, nil
}

// GetStockLines returns the given lines in id order.
func (s *Service) GetStockLines(ctx context.Context, ids []int64) ([]product.StockLine, error) {
	repo, err := s.uow.ProductRepository()
	if err != nil {
		return nil, err
	}
	lines, err := repo.StockByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("read stock lines: %w", err)
	}
	return lines, nil
}

// UpdateStockStatus moves the given lines of code to status. Only lines in
// the legal source status change; the affected count is returned and the
// stock count projection is invalidated.
func (s *Service) UpdateStockStatus(
	ctx context.Context,
	code string,
	ids []int64,
	status product.StockStatus,
	buyer *string,
) (int64, error) {
	from, ok := product.SourceStatus(status)
	if !ok {
		return 0, fmt.Errorf("%w: illegal stock status %q", domain.ErrTransaction, status)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	repo, err := s.uow.ProductRepository()
	if err != nil {
		return 0, err
	}
	n, err := repo.TransitionStock(ctx, code, ids, from, status, buyer)
	s.forget(ctx, cache.StockCountKey(code))
	if err != nil {
		return 0, fmt.Errorf("update stock status: %w", err)
	}
	s.logger.Debug("stock status updated",
		"code", code, "from", from, "to", status, "requested", len(ids), "changed", n)
	return n, nil
}

// MarkStockSold sells one AVAILABLE line to buyer.
func (s *Service) MarkStockSold(ctx context.Context, id int64, buyer string) error {
	repo, err := s.uow.ProductRepository()
	if err != nil {
		return err
	}
	lines, err := repo.StockByIDs(ctx, []int64{id})
	if err != nil {
		return fmt.Errorf("read stock line: %w", err)
	}
	if len(lines) == 0 || lines[0].Status != product.StockAvailable {
		return domain.ErrOutOfStock
	}
	n, err := s.UpdateStockStatus(ctx, lines[0].ProductCode, []int64{id}, product.StockSold, &buyer)
	if err != nil {
		return err
	}
	if n != 1 {
		return domain.ErrOutOfStock
	}
	return nil
}

// DeleteStock retires AVAILABLE lines. Sold lines are left untouched.
func (s *Service) DeleteStock(ctx context.Context, code string, ids []int64, adminID string) (int64, error) {
	n, err := s.UpdateStockStatus(ctx, code, ids, product.StockDeleted, nil)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.audit(ctx, adminID, admin.ActionDeleteStock, code, fmt.Sprintf("%d lines deleted", n))
	}
	return n, nil
}

func (s *Service) audit(ctx context.Context, adminID, action, target, details string) {
	if s.auditor == nil || adminID == "" {
		return
	}
	if err := s.auditor.LogAction(ctx, adminID, action, target, details); err != nil {
		s.logger.Warn("audit log failed", "action", action, "error", err)
	}
}

func (s *Service) store(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, value, ttl, false); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (s *Service) forget(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("cache invalidation failed", "key", key, "error", err)
	}
}
