package webapi

import (
	"github.com/amirasaad/storefront/pkg/app"
	"github.com/amirasaad/storefront/pkg/domain/admin"
	"github.com/amirasaad/storefront/pkg/domain/product"
	adminsvc "github.com/amirasaad/storefront/pkg/service/admin"
	productsvc "github.com/amirasaad/storefront/pkg/service/product"
	"github.com/amirasaad/storefront/pkg/service/transaction"
	"github.com/gofiber/fiber/v2"
)

// AmountInput moves currency to or from a user.
type AmountInput struct {
	PlatformUserID string `json:"platform_user_id" validate:"required"`
	WL             int64  `json:"wl" validate:"min=0"`
	DL             int64  `json:"dl" validate:"min=0"`
	BGL            int64  `json:"bgl" validate:"min=0"`
}

// StockInput carries newline separated stock lines.
type StockInput struct {
	Content string `json:"content" validate:"required"`
}

// DeleteStockInput names stock lines to withdraw from sale.
type DeleteStockInput struct {
	IDs []int64 `json:"ids" validate:"required,min=1"`
}

// MaintenanceInput toggles maintenance mode.
type MaintenanceInput struct {
	Enabled bool `json:"enabled"`
}

// WorldInput describes the pickup world.
type WorldInput struct {
	World   string `json:"world" validate:"required"`
	Owner   string `json:"owner" validate:"required"`
	BotName string `json:"bot_name"`
}

// AdminRoutes registers the operator endpoints. Every handler checks the
// admin permission of the caller.
func AdminRoutes(r fiber.Router, a *app.App) {
	r.Use(requireAdmin(a))
	r.Post("/deposits", MoveBalance(a, true))
	r.Post("/withdrawals", MoveBalance(a, false))
	r.Post("/products", CreateProduct(a))
	r.Post("/products/:code/stock", AddStock(a))
	r.Delete("/products/:code/stock", DeleteStock(a))
	r.Put("/maintenance", SetMaintenance(a))
	r.Put("/world", SetWorld(a))
	r.Get("/logs", AdminLogs(a))
}

func requireAdmin(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pid, ok, err := caller(c)
		if !ok {
			return err
		}
		if err := a.AdminService.CheckPermission(pid, adminsvc.PermissionAdmin); err != nil {
			return respond[any](c, 0, nil, err, "")
		}
		c.Locals("admin_id", pid)
		return c.Next()
	}
}

func adminID(c *fiber.Ctx) string {
	id, _ := c.Locals("admin_id").(string)
	return id
}

// MoveBalance credits (deposit) or debits a user's balance.
func MoveBalance(a *app.App, deposit bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[AmountInput](c)
		if input == nil {
			return err
		}
		amount := transaction.Amount{WL: input.WL, DL: input.DL, BGL: input.BGL}
		var res transaction.BalanceChange
		if deposit {
			res, err = a.TransactionService.ProcessDeposit(c.Context(), input.PlatformUserID, amount, adminID(c))
			return respond(c, fiber.StatusOK, res, err, "Deposit successful")
		}
		res, err = a.TransactionService.ProcessWithdrawal(c.Context(), input.PlatformUserID, amount, adminID(c))
		return respond(c, fiber.StatusOK, res, err, "Withdrawal successful")
	}
}

// CreateProduct adds a catalogue entry.
func CreateProduct(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[productsvc.NewProduct](c)
		if input == nil {
			return err
		}
		p, err := a.ProductService.CreateProduct(c.Context(), *input, adminID(c))
		if err == nil {
			a.RefreshDisplay()
		}
		return respond(c, fiber.StatusCreated, p, err, "Product created")
	}
}

// AddStock ingests stock lines for a product.
func AddStock(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[StockInput](c)
		if input == nil {
			return err
		}
		res, err := a.ProductService.AddStock(c.Context(), c.Params("code"), input.Content, adminID(c))
		if err == nil && res.SuccessCount > 0 {
			a.RefreshDisplay()
		}
		return respond[product.AddStockResult](c, fiber.StatusOK, res, err, "Stock added")
	}
}

// DeleteStock withdraws available lines from sale.
func DeleteStock(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[DeleteStockInput](c)
		if input == nil {
			return err
		}
		n, err := a.ProductService.DeleteStock(c.Context(), c.Params("code"), input.IDs, adminID(c))
		if err == nil && n > 0 {
			a.RefreshDisplay()
		}
		return respond(c, fiber.StatusOK, fiber.Map{"deleted": n}, err, "Stock deleted")
	}
}

// SetMaintenance toggles maintenance mode and refreshes the display.
func SetMaintenance(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input MaintenanceInput
		if err := c.BodyParser(&input); err != nil {
			return fail(c, fiber.StatusBadRequest, "InvalidRequest", "Invalid request body: "+err.Error())
		}
		err := a.AdminService.SetMaintenanceMode(c.Context(), adminID(c), input.Enabled)
		if err == nil {
			a.RefreshDisplay()
		}
		return respond(c, fiber.StatusOK, fiber.Map{"maintenance": input.Enabled}, err, "Maintenance mode updated")
	}
}

// SetWorld updates the pickup world shown to buyers.
func SetWorld(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[WorldInput](c)
		if input == nil {
			return err
		}
		w := admin.WorldInfo{World: input.World, Owner: input.Owner, BotName: input.BotName}
		err = a.AdminService.SetWorldInfo(c.Context(), adminID(c), w)
		return respond(c, fiber.StatusOK, w, err, "World info updated")
	}
}

// AdminLogs returns the newest audit rows.
func AdminLogs(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		logs, err := a.AdminService.RecentLogs(c.Context(), c.QueryInt("limit", 50))
		return respond[[]admin.Log](c, fiber.StatusOK, logs, err, "")
	}
}
