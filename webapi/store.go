package webapi

import (
	"github.com/amirasaad/storefront/pkg/app"
	"github.com/amirasaad/storefront/pkg/domain/balance"
	"github.com/amirasaad/storefront/pkg/domain/ledger"
	"github.com/amirasaad/storefront/pkg/domain/product"
	"github.com/amirasaad/storefront/pkg/service/transaction"
	"github.com/gofiber/fiber/v2"
)

// ProductView is a catalogue entry with its live stock.
type ProductView struct {
	product.Product
	PriceDisplay string `json:"price_display"`
	Stock        int64  `json:"stock"`
}

// PurchaseInput is the body of POST /purchases.
type PurchaseInput struct {
	ProductCode string `json:"product_code" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,min=1"`
}

// StoreRoutes registers the buyer endpoints.
func StoreRoutes(r fiber.Router, a *app.App) {
	r.Get("/products", ListProducts(a))
	r.Get("/products/:code", GetProduct(a))
	r.Post("/purchases", Purchase(a))
	r.Get("/history", History(a))
}

func (v *ProductView) fill(a *app.App, c *fiber.Ctx) error {
	n, err := a.ProductService.GetStockCount(c.Context(), v.Code)
	v.Stock = n
	v.PriceDisplay = balance.FormatPrice(v.PriceWL())
	return err
}

// ListProducts returns the catalogue with stock counts.
func ListProducts(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		products, err := a.ProductService.GetAllProducts(c.Context())
		if err != nil {
			return respond[[]ProductView](c, 0, nil, err, "")
		}
		views := make([]ProductView, len(products))
		for i, p := range products {
			views[i].Product = p
			if err := views[i].fill(a, c); err != nil {
				return respond[[]ProductView](c, 0, nil, err, "")
			}
		}
		return respond(c, fiber.StatusOK, views, nil, "")
	}
}

// GetProduct returns one product with its stock count.
func GetProduct(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := a.ProductService.GetProduct(c.Context(), c.Params("code"))
		if err != nil {
			return respond[*ProductView](c, 0, nil, err, "")
		}
		view := &ProductView{Product: *p}
		err = view.fill(a, c)
		return respond(c, fiber.StatusOK, view, err, "")
	}
}

// Purchase buys stock for the caller. The delivered lines are in the reply.
func Purchase(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pid, ok, err := caller(c)
		if !ok {
			return err
		}
		input, err := BindAndValidate[PurchaseInput](c)
		if input == nil {
			return err
		}
		res, err := a.TransactionService.ProcessPurchase(c.Context(), pid, input.ProductCode, input.Quantity)
		return respond[transaction.PurchaseResult](c, fiber.StatusOK, res, err, "Purchase successful")
	}
}

// History returns a page of the caller's journal, newest first.
func History(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pid, ok, err := caller(c)
		if !ok {
			return err
		}
		limit := c.QueryInt("limit", transaction.DefaultHistoryPage)
		offset := c.QueryInt("offset", 0)
		if offset < 0 {
			offset = 0
		}
		entries, err := a.TransactionService.GetTransactionHistory(c.Context(), pid, limit, offset)
		return respond[[]ledger.HistoryEntry](c, fiber.StatusOK, entries, err, "")
	}
}
